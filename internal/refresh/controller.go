package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"cryptodash/logger"

	"github.com/google/uuid"
)

// ErrAlreadyStarted is returned by Start on a running controller.
var ErrAlreadyStarted = errors.New("refresh controller already started")

// FetchFunc loads one fresh payload.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Options customises a Controller. Zero values fall back to defaults.
type Options struct {
	Policy   Policy
	Observer Observer
	Logger   *logger.Log
	Clock    func() time.Time
	After    func(time.Duration) <-chan time.Time
}

// Controller polls a FetchFunc on a fixed interval and caches the outcome.
type Controller[T any] struct {
	name     string
	fetch    FetchFunc[T]
	policy   Policy
	observer Observer
	log      *logger.Entry
	clock    func() time.Time
	after    func(time.Duration) <-chan time.Time

	mu       sync.RWMutex
	state    State[T]
	watchers []func(State[T])

	inFlight atomic.Bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController builds an idle controller named after its panel.
func NewController[T any](name string, fetch FetchFunc[T], opts Options) *Controller[T] {
	c := &Controller[T]{
		name:     name,
		fetch:    fetch,
		policy:   opts.Policy,
		observer: opts.Observer,
		clock:    opts.Clock,
		after:    opts.After,
		state:    Idle[T](),
	}
	if c.policy.MaxRetries < 0 {
		c.policy.MaxRetries = 0
	}
	if c.policy.BaseDelay <= 0 {
		c.policy.BaseDelay = DefaultBaseDelay
	}
	if c.policy.MaxDelay <= 0 {
		c.policy.MaxDelay = DefaultMaxDelay
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.after == nil {
		c.after = time.After
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	c.log = log.WithComponent("refresh").WithField("panel", name)
	return c
}

func (c *Controller[T]) Name() string {
	return c.name
}

// State returns a snapshot of the cached state.
func (c *Controller[T]) State() State[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Watch registers fn to be called after every state change.
func (c *Controller[T]) Watch(fn func(State[T])) {
	c.mu.Lock()
	c.watchers = append(c.watchers, fn)
	c.mu.Unlock()
}

// Start runs a first cycle immediately and then one cycle every
// Policy.Interval measured from the end of the previous cycle.
func (c *Controller[T]) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.loop(ctx, c.done)

	c.log.WithField("interval", c.policy.Interval.String()).Info("refresh controller started")
	return nil
}

// Stop cancels the poll loop and waits for it to exit. Results of a fetch
// still in flight are discarded.
func (c *Controller[T]) Stop() {
	c.runMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.log.Info("refresh controller stopped")
}

func (c *Controller[T]) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		c.RunOnce(ctx)
		if c.policy.Interval <= 0 {
			<-ctx.Done()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-c.after(c.policy.Interval):
		}
	}
}

// RunOnce performs one refresh cycle unless one is already in flight, in
// which case it returns false without doing anything.
func (c *Controller[T]) RunOnce(ctx context.Context) bool {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.log.Debug("refresh cycle already in flight; skipping")
		return false
	}
	defer c.inFlight.Store(false)

	c.cycle(ctx)
	return true
}

func (c *Controller[T]) cycle(ctx context.Context) {
	log := c.log.WithField("cycle_id", uuid.NewString())
	start := c.clock()

	c.set(ctx, Loading[T]())

	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.policy.Backoff(attempt - 1)
			log.WithFields(logger.Fields{"attempt": attempt, "delay": delay.String()}).Debug("retrying fetch")
			select {
			case <-ctx.Done():
				log.Debug("refresh cycle cancelled during backoff")
				return
			case <-c.after(delay):
			}
		}

		data, err := c.fetch(ctx)
		if ctx.Err() != nil {
			log.Debug("discarding fetch result after cancellation")
			return
		}
		if err == nil {
			c.set(ctx, Ready(data, c.clock()))
			c.finish(log, StatusReady, start)
			return
		}

		lastErr = err
		c.observer.FetchFailed(c.name, attempt, err)
		log.WithError(err).WithField("attempt", attempt).Warn("fetch failed")
	}

	c.set(ctx, Failed[T](lastErr))
	c.finish(log, StatusError, start)
}

func (c *Controller[T]) finish(log *logger.Entry, status Status, start time.Time) {
	duration := c.clock().Sub(start)
	c.observer.CycleFinished(c.name, status, duration)
	logger.LogPerformanceEntry(log, "refresh", "cycle", duration, logger.Fields{"status": status.String()})
	if status == StatusError {
		log.Error("refresh cycle failed; retries exhausted")
		return
	}
	log.Info("refresh cycle completed")
}

// set swaps the cached state and notifies watchers, unless ctx is already
// cancelled.
func (c *Controller[T]) set(ctx context.Context, s State[T]) {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.state = s
	watchers := make([]func(State[T]), len(c.watchers))
	copy(watchers, c.watchers)
	c.mu.Unlock()

	for _, fn := range watchers {
		fn(s)
	}
}
