package receiver

import "errors"

// Sentinel conditions surfaced inside the error taxonomy below.
var (
	// ErrDisposed reports an operation on a disposed receiver.
	ErrDisposed = errors.New("receiver disposed")
	// ErrNotInitialized reports an operation before Initialize.
	ErrNotInitialized = errors.New("receiver not initialized")
	// ErrNoData reports that no vsync has occurred yet, so there is no
	// event data to return. Distinct from a failed query.
	ErrNoData = errors.New("no vsync event data yet")
)

// InitError reports a rejected subscription setup. It is terminal for the
// receiver instance: the caller must not retry on the same receiver.
type InitError struct {
	Err error
}

func (e *InitError) Error() string { return "initializing display event receiver: " + e.Err.Error() }
func (e *InitError) Unwrap() error { return e.Err }

// ScheduleError reports a rejected vsync request. The receiver remains
// usable; the caller may retry.
type ScheduleError struct {
	Err error
}

func (e *ScheduleError) Error() string { return "scheduling vsync: " + e.Err.Error() }
func (e *ScheduleError) Unwrap() error { return e.Err }

// QueryError reports a failed on-demand vsync data fetch. No state changes.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return "querying vsync event data: " + e.Err.Error() }
func (e *QueryError) Unwrap() error { return e.Err }
