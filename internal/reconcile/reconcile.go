// Package reconcile diffs freshly fetched contract records against the
// previously persisted snapshot.
package reconcile

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/doge-tracker/internal/model"
)

// Change carries the old and new record of an update for audit.
type Change struct {
	Old model.ContractRecord
	New model.ContractRecord
}

// Result classifies a run's incoming records against the previous snapshot
// and holds the next snapshot to persist.
type Result struct {
	Inserted  []model.ContractRecord
	Updated   []Change
	Deleted   []model.ContractRecord
	Unchanged int
	Next      *model.Snapshot
}

// Reconcile merges incoming records into the previous snapshot.
//
// A PIID absent from previous is inserted; present with any field differing
// is updated (exact equality per field); otherwise unchanged. A PIID
// present in previous but absent from incoming is marked deleted with the
// run timestamp, but only when complete is true: a partial listing must
// never be read as evidence of deletion. Records already carrying a
// deletion marker and still absent count as unchanged. Deleted records are
// retained, never removed, so the snapshot only grows.
//
// previous is read-only; the returned snapshot is freshly built, keeping
// previous insertion order with new PIIDs appended in incoming order.
func Reconcile(previous *model.Snapshot, incoming []model.ContractRecord, complete bool, now time.Time) *Result {
	res := &Result{}

	seen := make(map[string]model.ContractRecord, len(incoming))
	order := make([]string, 0, len(incoming))
	for _, rec := range incoming {
		if _, dup := seen[rec.PIID]; !dup {
			order = append(order, rec.PIID)
		}
		// The same PIID twice in one run: the later record wins.
		seen[rec.PIID] = rec
	}

	next := make([]model.ContractRecord, 0, previous.Len()+len(order))

	for _, prev := range previous.Records() {
		in, ok := seen[prev.PIID]
		switch {
		case !ok && !complete:
			// Partial listing: absence means nothing.
			next = append(next, prev)
			res.Unchanged++
		case !ok && prev.DeletedDate != nil:
			// Already marked deleted on an earlier run.
			next = append(next, prev)
			res.Unchanged++
		case !ok:
			marked := prev
			d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			marked.DeletedDate = &d
			next = append(next, marked)
			res.Deleted = append(res.Deleted, marked)
		case in.Equal(prev):
			next = append(next, prev)
			res.Unchanged++
		default:
			next = append(next, in)
			res.Updated = append(res.Updated, Change{Old: prev, New: in})
		}
	}

	for _, piid := range order {
		if _, existed := previous.Get(piid); existed {
			continue
		}
		rec := seen[piid]
		next = append(next, rec)
		res.Inserted = append(res.Inserted, rec)
	}

	res.Next = model.NewSnapshot(next)

	zap.L().Info("reconciled records",
		zap.Bool("complete_listing", complete),
		zap.Int("inserted", len(res.Inserted)),
		zap.Int("updated", len(res.Updated)),
		zap.Int("deleted", len(res.Deleted)),
		zap.Int("unchanged", res.Unchanged),
	)
	return res
}
