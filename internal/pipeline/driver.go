// Package pipeline orchestrates fetch, parse, reconcile, and persist for
// one ingestion run.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/doge-tracker/internal/fetch"
	"github.com/sells-group/doge-tracker/internal/model"
	"github.com/sells-group/doge-tracker/internal/parse"
	"github.com/sells-group/doge-tracker/internal/reconcile"
	"github.com/sells-group/doge-tracker/internal/resilience"
	"github.com/sells-group/doge-tracker/internal/store"
)

// State names a phase of the run for logging. The driver moves
// start → fetching → parsing → ... → reconciling → persisted and ends in
// done or failed.
type State string

const (
	StateStart       State = "start"
	StateFetching    State = "fetching"
	StateCooldown    State = "cooldown"
	StateParsing     State = "parsing"
	StateReconciling State = "reconciling"
	StatePersisted   State = "persisted"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Options tunes driver behavior outside the fetcher's own retry budget.
type Options struct {
	// Source labels the run in the run log ("api" or "browser").
	Source string

	// Cooldown is the pause after the fetcher reports rate limiting,
	// before the same cursor is retried. Longer than retry backoff.
	Cooldown time.Duration

	// MaxCooldowns bounds rate-limit retries per run.
	MaxCooldowns int

	// SkipIfCurrent ends the run early when the source's reported total
	// matches the active records already stored.
	SkipIfCurrent bool
}

// Driver runs the ingestion state machine.
type Driver struct {
	fetcher fetch.Fetcher
	store   store.Store
	runLog  *store.RunLog
	opts    Options
	now     func() time.Time
	log     *zap.Logger
}

// New creates a Driver.
func New(f fetch.Fetcher, st store.Store, runLog *store.RunLog, opts Options) *Driver {
	if opts.Cooldown <= 0 {
		opts.Cooldown = time.Minute
	}
	if opts.MaxCooldowns <= 0 {
		opts.MaxCooldowns = 3
	}
	if opts.Source == "" {
		opts.Source = "api"
	}
	return &Driver{
		fetcher: f,
		store:   st,
		runLog:  runLog,
		opts:    opts,
		now:     time.Now,
		log:     zap.L().With(zap.String("component", "pipeline")),
	}
}

// Run executes one full ingestion run and records it in the run log. On
// failure the previously persisted dataset is left exactly as it was; raw
// entries fetched before the failure are already in the raw log.
func (d *Driver) Run(ctx context.Context) (*model.Run, error) {
	started := d.now()
	run := model.NewRun(d.opts.Source, started)
	log := d.log.With(zap.String("run_id", run.ID))
	log.Info("run starting", zap.String("state", string(StateStart)), zap.String("source", run.Source))

	previous, err := d.store.Load(ctx)
	if err != nil {
		return run, err
	}

	if err := d.runLog.Start(ctx, run); err != nil {
		return run, err
	}

	if total, err := d.fetcher.TotalResults(ctx); err != nil {
		log.Warn("pilot request failed, continuing without total", zap.Error(err))
	} else {
		log.Info("source reports total results",
			zap.Int("total", total),
			zap.Int("stored_active", previous.ActiveLen()),
		)
		if d.opts.SkipIfCurrent && total > 0 && total == previous.ActiveLen() {
			log.Info("dataset already current, skipping fetch")
			run.Unchanged = previous.Len()
			return run, d.runLog.Complete(ctx, run, d.now())
		}
	}

	incoming, complete, err := d.fetchAll(ctx, run, log)
	if err != nil {
		d.fail(ctx, run, log, err)
		return run, err
	}
	if !complete {
		// Unreachable today: fetchAll only returns complete listings or an
		// error. Kept as a guard so partial data can never reach the
		// reconciler.
		err := errors.New("pipeline: refusing to reconcile a partial listing")
		d.fail(ctx, run, log, err)
		return run, err
	}

	log.Info("state change", zap.String("state", string(StateReconciling)),
		zap.Int("incoming", len(incoming)))
	res := reconcile.Reconcile(previous, incoming, true, started)

	if err := d.store.Save(ctx, res.Next); err != nil {
		d.fail(ctx, run, log, err)
		return run, err
	}
	log.Info("state change", zap.String("state", string(StatePersisted)),
		zap.Int("rows", res.Next.Len()))

	run.Inserted = len(res.Inserted)
	run.Updated = len(res.Updated)
	run.Deleted = len(res.Deleted)
	run.Unchanged = res.Unchanged
	if err := d.runLog.Complete(ctx, run, d.now()); err != nil {
		return run, err
	}

	log.Info("run complete", zap.String("state", string(StateDone)),
		zap.Int("pages", run.Pages),
		zap.Int("inserted", run.Inserted),
		zap.Int("updated", run.Updated),
		zap.Int("deleted", run.Deleted),
		zap.Int("unchanged", run.Unchanged),
		zap.Int("skipped", run.Skipped),
	)
	return run, nil
}

// fetchAll walks the pagination cursor to exhaustion, appending raw entries
// page by page and parsing records as pages arrive. It returns complete =
// true only when every page was fetched; any error means the listing must
// be treated as partial.
func (d *Driver) fetchAll(ctx context.Context, run *model.Run, log *zap.Logger) ([]model.ContractRecord, bool, error) {
	var incoming []model.ContractRecord
	cursor := 1
	cooldowns := 0

	for {
		// Cancellation is honored between pages, never mid-write.
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		log.Debug("state change", zap.String("state", string(StateFetching)), zap.Int("cursor", cursor))
		page, next, err := d.fetcher.Fetch(ctx, cursor)
		if err != nil {
			if resilience.IsRateLimited(err) {
				cooldowns++
				if cooldowns > d.opts.MaxCooldowns {
					return nil, false, &fetch.ExhaustedError{Cursor: cursor, Attempts: cooldowns, Err: err}
				}
				log.Warn("state change", zap.String("state", string(StateCooldown)),
					zap.Int("cursor", cursor),
					zap.Int("cooldown", cooldowns),
					zap.Duration("wait", d.opts.Cooldown),
				)
				if err := sleep(ctx, d.opts.Cooldown); err != nil {
					return nil, false, err
				}
				continue
			}
			return nil, false, err
		}

		run.Pages++
		fetchedAt := d.now()

		// Raw entries are persisted before parsing so a later failure
		// loses nothing already retrieved.
		raw := make([]model.RawFetchEntry, 0, len(page.Entries))
		for _, fragment := range page.Entries {
			raw = append(raw, model.RawFetchEntry{
				RunID:     run.ID,
				FetchedAt: fetchedAt,
				Page:      cursor,
				Values:    parse.RawValues(fragment),
			})
		}
		if err := d.store.AppendRaw(ctx, raw); err != nil {
			return nil, false, err
		}

		log.Debug("state change", zap.String("state", string(StateParsing)),
			zap.Int("cursor", cursor), zap.Int("entries", len(page.Entries)))
		for _, fragment := range page.Entries {
			rec, err := parse.Record(fragment)
			if err != nil {
				run.Skipped++
				log.Warn("skipping malformed record",
					zap.Int("page", cursor),
					zap.Error(err),
				)
				continue
			}
			incoming = append(incoming, rec)
		}

		// Absent or repeating cursors end pagination; the repeat guard
		// protects against a source that loops.
		if next == fetch.NoCursor || next == cursor {
			return incoming, true, nil
		}
		cursor = next
	}
}

func (d *Driver) fail(ctx context.Context, run *model.Run, log *zap.Logger, cause error) {
	log.Error("run failed", zap.String("state", string(StateFailed)),
		zap.Int("pages_processed", run.Pages),
		zap.Error(cause),
	)
	if err := d.runLog.Fail(ctx, run, d.now(), cause.Error()); err != nil {
		log.Error("failed to record run failure", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
