// Package errkind names the error kinds used across the index store.
//
// These are not exhaustive Go error types: most call sites wrap an
// underlying cause with fmt.Errorf("...: %w", errkind.X) and callers
// distinguish kinds with errors.Is.
package errkind

type kind string

func (k kind) Error() string { return string(k) }

const (
	// NotFound covers both a source file that could not be resolved and
	// a (path, mtime) key with no matching index record.
	NotFound = kind("not-found")

	// IOError covers read/write/fsync/mmap failures.
	IOError = kind("io-error")

	// Corrupt means a record failed its structural check.
	Corrupt = kind("corrupt")

	// Empty means a zero-length loose file was encountered; benign.
	Empty = kind("empty")

	// LockBusy means another holder has the advisory lock; not an error
	// to the lookup path.
	LockBusy = kind("lock-busy")

	// Truncated means a gzip stream ended mid-member.
	Truncated = kind("truncated")

	// FormatError means the Zstandard decoder rejected the payload.
	FormatError = kind("format-error")

	// NoSlot means all 1000 loose-file collision slots were exhausted.
	NoSlot = kind("no-slot")
)

// wrappedErr pairs a cause with one of the kind sentinels above so that
// errors.Is(err, errkind.X) succeeds while errors.Unwrap still reaches
// the original cause.
type wrappedErr struct {
	k     kind
	cause error
}

func (e *wrappedErr) Error() string { return string(e.k) + ": " + e.cause.Error() }
func (e *wrappedErr) Unwrap() error { return e.cause }
func (e *wrappedErr) Is(target error) bool {
	if k, ok := target.(kind); ok {
		return k == e.k
	}
	return false
}

func wrap(k kind, cause error) error {
	if cause == nil {
		return k
	}
	return &wrappedErr{k: k, cause: cause}
}

// WrapCorrupt wraps cause as a Corrupt error.
func WrapCorrupt(cause error) error { return wrap(Corrupt, cause) }

// WrapIO wraps cause as an IOError.
func WrapIO(cause error) error { return wrap(IOError, cause) }

// WrapFormat wraps cause as a FormatError.
func WrapFormat(cause error) error { return wrap(FormatError, cause) }
