package swrcache

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed Store.
	ErrClosed = errors.New("swrcache: store closed")
	// ErrNoFetcher is returned when a key is revalidated before any
	// subscriber registered a fetcher for it.
	ErrNoFetcher = errors.New("swrcache: no fetcher registered for key")
)

// InvalidateError reports a snapshot-tier failure during Invalidate. The
// in-memory entry is always marked stale; only the persisted snapshot may
// have survived.
type InvalidateError struct {
	Key     string
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("invalidate %q failed: gen bump and delete failed: bump=%v; delete=%v",
			e.Key, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("invalidate %q: gen bump failed: %v", e.Key, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("invalidate %q: snapshot delete failed: %v", e.Key, e.DelErr)
	default:
		return fmt.Sprintf("invalidate %q: unknown error", e.Key)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}

// PanicError wraps a value recovered from a panicking fetcher.
type PanicError struct {
	Key   string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("swrcache: fetcher for %q panicked: %v", e.Key, e.Value)
}
