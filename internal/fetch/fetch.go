// Package fetch retrieves pages of contract records from the DOGE savings
// source, over HTTP or through a headless browser.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
)

// NoCursor signals pagination exhaustion when returned as the next cursor.
const NoCursor = 0

// Page is one page of raw contract fragments, exactly as received.
type Page struct {
	Entries      []json.RawMessage
	TotalResults int
	TotalPages   int
}

// Fetcher is the single contract with the upstream source: given a cursor,
// return a page of raw entries and the next cursor (NoCursor when there are
// no more pages). Whether retrieval happens over HTTP or through browser
// automation is an implementation detail.
type Fetcher interface {
	Fetch(ctx context.Context, cursor int) (*Page, int, error)

	// TotalResults asks the source how many records it currently offers,
	// via a minimal pilot request.
	TotalResults(ctx context.Context) (int, error)
}

// ExhaustedError means the retry ceiling was spent on one cursor. It carries
// the cursor and attempt count so a later run can resume instead of losing
// progress.
type ExhaustedError struct {
	Cursor   int
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch exhausted at cursor %d after %d attempts: %v", e.Cursor, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
