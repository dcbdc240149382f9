package store

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
)

// RunLock is a run-level lock file. A second concurrent run is undefined
// behavior for the file store, so it is refused up front.
type RunLock struct {
	path string
}

// AcquireRunLock creates the lock file exclusively, failing if another run
// holds it.
func AcquireRunLock(path string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "lock: create dir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if os.IsExist(err) {
		return nil, eris.Errorf("lock: another run appears to be active (%s exists; remove it if stale)", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "lock: create %s", path)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if err := f.Close(); err != nil {
		return nil, eris.Wrap(err, "lock: close")
	}
	return &RunLock{path: path}, nil
}

// Release removes the lock file.
func (l *RunLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "lock: remove %s", l.path)
	}
	return nil
}
