package store

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/doge-tracker/internal/model"
)

// CSVStore implements Store over two CSV files: the reconciled dataset and
// the append-only raw fetch log.
type CSVStore struct {
	datasetPath string
	rawLogPath  string
}

// NewCSVStore creates a CSVStore writing to the given paths.
func NewCSVStore(datasetPath, rawLogPath string) *CSVStore {
	return &CSVStore{datasetPath: datasetPath, rawLogPath: rawLogPath}
}

// Load reads the dataset CSV into a snapshot, preserving row order.
func (s *CSVStore) Load(ctx context.Context) (*model.Snapshot, error) {
	f, err := os.Open(s.datasetPath)
	if os.IsNotExist(err) {
		return model.NewSnapshot(nil), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: open dataset %s", s.datasetPath)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(model.DatasetHeader)

	var records []model.ContractRecord
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "store: load cancelled")
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "store: read dataset row")
		}
		if first {
			first = false
			continue
		}
		rec, err := model.RecordFromCSVRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return model.NewSnapshot(records), nil
}

// Save writes the snapshot to a temporary file in the dataset's directory
// and renames it into place, so a crash mid-write never corrupts the
// previously valid dataset.
func (s *CSVStore) Save(_ context.Context, snapshot *model.Snapshot) error {
	dir := filepath.Dir(s.datasetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "store: create data dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.datasetPath)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "store: create temp dataset")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	w := csv.NewWriter(tmp)
	if err := w.Write(model.DatasetHeader); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "store: write dataset header")
	}
	for _, rec := range snapshot.Records() {
		if err := w.Write(rec.CSVRow()); err != nil {
			tmp.Close() //nolint:errcheck
			return eris.Wrapf(err, "store: write dataset row %s", rec.PIID)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "store: flush dataset")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "store: sync dataset")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "store: close temp dataset")
	}

	if err := os.Rename(tmpPath, s.datasetPath); err != nil {
		return eris.Wrapf(err, "store: replace dataset %s", s.datasetPath)
	}

	zap.L().Info("saved dataset",
		zap.String("path", s.datasetPath),
		zap.Int("rows", snapshot.Len()),
	)
	return nil
}

// AppendRaw appends entries to the raw log, writing the header first when
// the file is new.
func (s *CSVStore) AppendRaw(_ context.Context, entries []model.RawFetchEntry) error {
	if len(entries) == 0 {
		return nil
	}

	dir := filepath.Dir(s.rawLogPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "store: create data dir %s", dir)
	}

	f, err := os.OpenFile(s.rawLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "store: open raw log %s", s.rawLogPath)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return eris.Wrap(err, "store: stat raw log")
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(model.RawLogHeader()); err != nil {
			return eris.Wrap(err, "store: write raw log header")
		}
	}
	for _, e := range entries {
		if err := w.Write(e.CSVRow()); err != nil {
			return eris.Wrap(err, "store: write raw log row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "store: flush raw log")
	}
	return nil
}
