package refresh

import "time"

// Observer receives refresh lifecycle notifications. Implementations must be
// safe for concurrent use since every controller reports from its own
// goroutine.
type Observer interface {
	FetchFailed(panel string, attempt int, err error)
	CycleFinished(panel string, status Status, duration time.Duration)
}

// Observers fans notifications out to several observers.
type Observers []Observer

func (o Observers) FetchFailed(panel string, attempt int, err error) {
	for _, obs := range o {
		if obs != nil {
			obs.FetchFailed(panel, attempt, err)
		}
	}
}

func (o Observers) CycleFinished(panel string, status Status, duration time.Duration) {
	for _, obs := range o {
		if obs != nil {
			obs.CycleFinished(panel, status, duration)
		}
	}
}

type nopObserver struct{}

func (nopObserver) FetchFailed(string, int, error)              {}
func (nopObserver) CycleFinished(string, Status, time.Duration) {}
