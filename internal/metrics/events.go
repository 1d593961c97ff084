package metrics

import (
	"sync"
	"time"

	"cryptodash/internal/refresh"
	"cryptodash/logger"
)

// EventType distinguishes the two refresh notifications.
type EventType string

const (
	EventFetchFailed   EventType = "fetch_failed"
	EventCycleFinished EventType = "cycle_finished"
)

// Event is one refresh notification for a panel. Kind and Attempt are set on
// fetch failures, Status and Duration on finished cycles.
type Event struct {
	Time     time.Time
	Type     EventType
	Panel    string
	Kind     string
	Attempt  int
	Status   refresh.Status
	Duration time.Duration
}

// Subscriber receives every published event on the publishing goroutine.
type Subscriber func(Event)

// SubscriptionID identifies a subscriber for Unsubscribe.
type SubscriptionID uint64

var (
	subsMu  sync.RWMutex
	subs    = make(map[SubscriptionID]Subscriber)
	nextSub SubscriptionID
)

// Subscribe adds fn to the event feed. A nil fn yields the zero id.
func Subscribe(fn Subscriber) SubscriptionID {
	if fn == nil {
		return 0
	}

	subsMu.Lock()
	defer subsMu.Unlock()
	nextSub++
	subs[nextSub] = fn
	return nextSub
}

func Unsubscribe(id SubscriptionID) {
	if id == 0 {
		return
	}
	subsMu.Lock()
	delete(subs, id)
	subsMu.Unlock()
}

// publish logs ev at debug level and delivers it to every subscriber.
func publish(log *logger.Log, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	fields := logger.Fields{"panel": ev.Panel, "event": string(ev.Type)}
	switch ev.Type {
	case EventFetchFailed:
		fields["kind"] = ev.Kind
		fields["attempt"] = ev.Attempt
	case EventCycleFinished:
		fields["status"] = ev.Status.String()
		fields["duration_ms"] = ev.Duration.Milliseconds()
	}
	log.WithComponent(component).WithFields(fields).Debug("refresh event")

	subsMu.RLock()
	targets := make([]Subscriber, 0, len(subs))
	for _, fn := range subs {
		targets = append(targets, fn)
	}
	subsMu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}
