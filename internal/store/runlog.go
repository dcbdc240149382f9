package store

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/doge-tracker/internal/model"
)

// RunLog records pipeline runs as JSON lines, one object per state change.
// The file is append-only; the latest line per run ID wins on read.
type RunLog struct {
	path string
}

// NewRunLog creates a RunLog at the given path.
func NewRunLog(path string) *RunLog {
	return &RunLog{path: path}
}

// Start appends the run in its running state.
func (l *RunLog) Start(ctx context.Context, run *model.Run) error {
	return l.append(ctx, run)
}

// Complete marks the run successful and appends its final counts.
func (l *RunLog) Complete(ctx context.Context, run *model.Run, now time.Time) error {
	t := now.UTC()
	run.Status = model.RunComplete
	run.CompletedAt = &t
	return l.append(ctx, run)
}

// Fail marks the run failed with an error message.
func (l *RunLog) Fail(ctx context.Context, run *model.Run, now time.Time, errMsg string) error {
	t := now.UTC()
	run.Status = model.RunFailed
	run.CompletedAt = &t
	run.Error = errMsg
	return l.append(ctx, run)
}

// LastSuccess returns the start time of the most recent complete run, or
// nil if there has never been one.
func (l *RunLog) LastSuccess(ctx context.Context) (*time.Time, error) {
	runs, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.Status == model.RunComplete {
			t := r.StartedAt
			return &t, nil
		}
	}
	return nil, nil
}

// List returns the known runs, most recent first.
func (l *RunLog) List(_ context.Context) ([]model.Run, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: open %s", l.path)
	}
	defer f.Close() //nolint:errcheck

	latest := make(map[string]model.Run)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r model.Run
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, eris.Wrap(err, "runlog: decode entry")
		}
		latest[r.ID] = r
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "runlog: scan")
	}

	runs := make([]model.Run, 0, len(latest))
	for _, r := range latest {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

func (l *RunLog) append(_ context.Context, run *model.Run) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return eris.Wrap(err, "runlog: create dir")
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "runlog: open %s", l.path)
	}
	defer f.Close() //nolint:errcheck

	data, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "runlog: encode run")
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return eris.Wrap(err, "runlog: write run")
	}
	return nil
}
