package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/doge-tracker/internal/model"
)

func TestRunLogListEmpty(t *testing.T) {
	l := NewRunLog(filepath.Join(t.TempDir(), "runs.jsonl"))
	runs, err := l.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunLogLatestLineWins(t *testing.T) {
	ctx := context.Background()
	l := NewRunLog(filepath.Join(t.TempDir(), "runs.jsonl"))

	started := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	run := model.NewRun("api", started)
	require.NoError(t, l.Start(ctx, run))

	run.Pages = 3
	run.Inserted = 12
	require.NoError(t, l.Complete(ctx, run, started.Add(time.Minute)))

	runs, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunComplete, runs[0].Status)
	assert.Equal(t, 3, runs[0].Pages)
	assert.Equal(t, 12, runs[0].Inserted)
	require.NotNil(t, runs[0].CompletedAt)
}

func TestRunLogOrderAndFailure(t *testing.T) {
	ctx := context.Background()
	l := NewRunLog(filepath.Join(t.TempDir(), "runs.jsonl"))

	t1 := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	first := model.NewRun("api", t1)
	require.NoError(t, l.Start(ctx, first))
	require.NoError(t, l.Complete(ctx, first, t1.Add(time.Minute)))

	second := model.NewRun("browser", t2)
	require.NoError(t, l.Start(ctx, second))
	require.NoError(t, l.Fail(ctx, second, t2.Add(time.Minute), "rate limited"))

	runs, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID, "most recent run first")
	assert.Equal(t, model.RunFailed, runs[0].Status)
	assert.Equal(t, "rate limited", runs[0].Error)

	last, err := l.LastSuccess(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, t1, last.UTC())
}

func TestRunLogLastSuccessNone(t *testing.T) {
	ctx := context.Background()
	l := NewRunLog(filepath.Join(t.TempDir(), "runs.jsonl"))

	run := model.NewRun("api", time.Now())
	require.NoError(t, l.Start(ctx, run))
	require.NoError(t, l.Fail(ctx, run, time.Now(), "boom"))

	last, err := l.LastSuccess(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)
}
