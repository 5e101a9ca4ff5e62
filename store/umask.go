package store

import (
	"sync"

	"golang.org/x/sys/unix"
)

// umaskMu serializes the scoped umask(0) override: umask is process-wide
// kernel state, so two goroutines racing withZeroUmask would stomp on
// each other's restore value.
var umaskMu sync.Mutex

// withZeroUmask clears the process umask for the duration of fn so that
// files and directories created inside it keep their explicit mode bits,
// then restores whatever umask was in effect before. Scoped around both
// loose writes and pack operations per spec §6's "explicit mode bits
// survive" invariant.
func withZeroUmask(fn func() error) error {
	umaskMu.Lock()
	prev := unix.Umask(0)
	defer func() {
		unix.Umask(prev)
		umaskMu.Unlock()
	}()
	return fn()
}
