package refresh

import (
	"time"
)

// Status is the lifecycle stage of a panel's data.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

// State is the cached result of the most recent refresh cycle. Build it with
// the constructors below: Ready never carries an error and Failed never
// carries data.
type State[T any] struct {
	Status    Status
	Data      T
	FetchedAt time.Time
	Err       error
}

func Idle[T any]() State[T] {
	return State[T]{Status: StatusIdle}
}

func Loading[T any]() State[T] {
	return State[T]{Status: StatusLoading}
}

func Failed[T any](err error) State[T] {
	return State[T]{Status: StatusError, Err: err}
}

func Ready[T any](data T, fetchedAt time.Time) State[T] {
	return State[T]{Status: StatusReady, Data: data, FetchedAt: fetchedAt}
}
