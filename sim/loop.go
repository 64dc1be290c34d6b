package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Engine is the view of the simulation engine needed to take a snapshot.
type Engine interface {
	CurrentTime() float64
	// ScheduledEvents returns every event that has not been delivered yet.
	ScheduledEvents() []Event
}

// Interception is the verdict of a pre-interceptor.
type Interception int

const (
	// Proceed lets the event be delivered.
	Proceed Interception = iota
	// Abort discards the event before any subscriber sees it.
	Abort
)

// PreInterceptor runs before an event is delivered and may abort its delivery.
type PreInterceptor func(ev Event) Interception

// Subscriber handles a delivered event and returns follow-up events to publish.
type Subscriber func(ev Event) ([]Event, error)

// PostInterceptor runs after all subscribers handled an event.
type PostInterceptor func(ev Event)

// Loop is a single-threaded cooperative event loop.
type Loop struct {
	queue   *EventHeap
	now     float64
	stopped bool

	pre  []PreInterceptor
	subs []Subscriber
	post []PostInterceptor

	Delivered int // number of events handed to subscribers
	Aborted   int // number of events discarded by pre-interceptors
}

// NewLoop creates an empty loop with its clock at 0.
func NewLoop() *Loop {
	return &Loop{queue: NewEventHeap()}
}

// CurrentTime returns the simulation clock.
func (l *Loop) CurrentTime() float64 {
	return l.now
}

// ScheduledEvents returns the pending events in delivery order.
func (l *Loop) ScheduledEvents() []Event {
	return l.queue.Pending()
}

// Schedule enqueues ev at its absolute time.
func (l *Loop) Schedule(ev Event) {
	l.queue.Schedule(ev)
}

// Publish enqueues ev at the current time plus its delay.
func (l *Loop) Publish(ev Event) {
	ev.setTime(l.now + ev.Delay())
	l.queue.Schedule(ev)
}

// OnPreIntercept registers a pre-interceptor.
func (l *Loop) OnPreIntercept(f PreInterceptor) { l.pre = append(l.pre, f) }

// Subscribe registers a subscriber.
func (l *Loop) Subscribe(f Subscriber) { l.subs = append(l.subs, f) }

// OnPostIntercept registers a post-interceptor.
func (l *Loop) OnPostIntercept(f PostInterceptor) { l.post = append(l.post, f) }

// Stop ends Run after the event currently delivered.
func (l *Loop) Stop() { l.stopped = true }

// Stopped reports whether Stop was called.
func (l *Loop) Stopped() bool { return l.stopped }

// Step delivers the next event. It returns false when no event is pending.
func (l *Loop) Step() (bool, error) {
	ev := l.queue.PopNext()
	if ev == nil {
		return false, nil
	}
	// Events carried over from a previous run keep their negative time and are
	// delivered at the current instant.
	if ev.Time() > l.now {
		l.now = ev.Time()
	}

	for _, f := range l.pre {
		if f(ev) == Abort {
			logrus.Debugf("[t=%g] aborted %s", l.now, EventName(ev))
			l.Aborted++
			return true, nil
		}
	}

	var published []Event
	for _, f := range l.subs {
		out, err := f(ev)
		if err != nil {
			return false, fmt.Errorf("handling %s at %g: %w", EventName(ev), l.now, err)
		}
		published = append(published, out...)
	}
	l.Delivered++
	for _, f := range l.post {
		f(ev)
	}
	for _, out := range published {
		l.Publish(out)
	}
	return true, nil
}

// Run delivers events until none is pending, Stop is called or the next
// event lies beyond horizon.
func (l *Loop) Run(horizon float64) error {
	for !l.stopped {
		next := l.queue.Peek()
		if next == nil || next.Time() > horizon {
			break
		}
		if _, err := l.Step(); err != nil {
			return err
		}
	}
	logrus.Infof("[t=%g] loop finished: delivered=%d aborted=%d pending=%d", l.now, l.Delivered, l.Aborted, l.queue.Len())
	return nil
}
