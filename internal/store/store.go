// Package store persists the reconciled dataset, the append-only raw fetch
// log, and the run history as files on disk.
package store

import (
	"context"

	"github.com/sells-group/doge-tracker/internal/model"
)

// Store is the persistence interface for the ingestion pipeline.
type Store interface {
	// Load reads the current snapshot. A missing dataset file yields an
	// empty snapshot, not an error.
	Load(ctx context.Context) (*model.Snapshot, error)

	// Save atomically replaces the dataset with the snapshot. Saving the
	// same snapshot twice produces byte-identical output.
	Save(ctx context.Context, snapshot *model.Snapshot) error

	// AppendRaw appends entries to the raw fetch log. The log is
	// write-once: rows are never rewritten or deleted.
	AppendRaw(ctx context.Context, entries []model.RawFetchEntry) error
}
