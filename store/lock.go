package store

import (
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/purestorage/4grep/errkind"
)

// touchFile updates a file's mtime/atime to now, creating it if absent.
// Used to keep a held pack lock from looking stale to age-based
// reclamation on peers that inspect the lock file's timestamp rather
// than (or in addition to) taking a kernel flock themselves.
func touchFile(path string, now time.Time) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	f.Close()
	return os.Chtimes(path, now, now)
}

// TouchInterval is how often a held pack lock is refreshed so that no
// other process's stale-lock reclamation kicks in mid-pack.
const TouchInterval = 60 * time.Second

// advisoryLock wraps a sidecar lock file with gofrs/flock. The file is
// created lazily on first (Try)Lock and deliberately never removed:
// unlinking a lock file out from under a concurrent holder would let a
// new process create and lock a different inode at the same path while
// the original holder still believes it owns the old one, defeating
// flock's exclusivity guarantee entirely.
type advisoryLock struct {
	path string
	fl   *flock.Flock
}

func newAdvisoryLock(path string) *advisoryLock {
	return &advisoryLock{path: path, fl: flock.New(path)}
}

// TryAcquire attempts a non-blocking lock. It reports false with a nil
// error if another holder currently has it; callers treat that as
// "slot or bucket in use, move on", not as a failure.
func (l *advisoryLock) TryAcquire() (bool, error) {
	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("store: lock %s: %w", l.path, errkind.WrapIO(err))
	}
	return ok, nil
}

// IsHeld reports whether some holder currently has the lock, without
// taking it. It probes with a non-blocking try-lock on a throwaway
// handle and immediately releases if it succeeds.
func IsHeld(path string) (bool, error) {
	probe := flock.New(path)
	ok, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("store: probe lock %s: %w", path, errkind.WrapIO(err))
	}
	if ok {
		probe.Unlock()
		return false, nil
	}
	return true, nil
}

// Release drops the lock, leaving the sidecar file in place.
func (l *advisoryLock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("store: unlock %s: %w", l.path, errkind.WrapIO(err))
	}
	return nil
}

// touchLoop refreshes the lock file's mtime at TouchInterval until
// stop is closed, defeating any age-based stale-lock reclamation a
// cooperating process might perform while this pack runs long.
func touchLoop(path string, stop <-chan struct{}) {
	ticker := time.NewTicker(TouchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			_ = touchFile(path, now)
		}
	}
}
