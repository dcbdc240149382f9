package fetch

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// payload mirrors the DOGE API response envelope. Both fetch backends
// produce this same JSON, so decoding is shared.
type payload struct {
	Success bool `json:"success"`
	Result  struct {
		Contracts []json.RawMessage `json:"contracts"`
	} `json:"result"`
	Meta struct {
		TotalResults int `json:"total_results"`
		Pages        int `json:"pages"`
	} `json:"meta"`
}

// decodePage parses a response body into a Page and computes the next
// cursor. Pagination ends when the page is empty or the reported page count
// is reached.
func decodePage(body []byte, cursor int) (*Page, int, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, NoCursor, eris.Wrap(err, "fetch: decode response")
	}

	page := &Page{
		Entries:      p.Result.Contracts,
		TotalResults: p.Meta.TotalResults,
		TotalPages:   p.Meta.Pages,
	}

	next := NoCursor
	if len(page.Entries) > 0 && (page.TotalPages == 0 || cursor < page.TotalPages) {
		next = cursor + 1
	}
	return page, next, nil
}
