package trigger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sudo-init-do/juggle/internal/metrics"
)

// Kind identifies what was created.
type Kind string

const (
	KindMessageCreated Kind = "message.created"
	KindReviewCreated  Kind = "review.created"
)

const (
	defaultQueueSize      = 100
	defaultSubscriberSize = 50
)

// Event is raised once for every record created under a watched path.
type Event struct {
	Kind      Kind
	Path      string
	Params    map[string]string
	Timestamp time.Time
}

// Subscriber receives events until it is unsubscribed or the broker stops.
type Subscriber chan *Event

// Broker fans trigger events out to subscribers. Neither Publish nor the
// distribution loop ever blocks: an event that finds the queue or a
// subscriber full is dropped and counted.
type Broker struct {
	queue   chan *Event
	done    chan struct{}
	stop    sync.Once
	subSize int

	mu   sync.RWMutex
	subs map[Subscriber]struct{}

	dropped atomic.Uint64
}

// BrokerOption tunes buffer sizes.
type BrokerOption func(*Broker)

// WithQueueSize sets how many events may wait for distribution.
func WithQueueSize(n int) BrokerOption {
	return func(b *Broker) { b.queue = make(chan *Event, n) }
}

// WithSubscriberSize sets each subscriber's buffer.
func WithSubscriberSize(n int) BrokerOption {
	return func(b *Broker) { b.subSize = n }
}

func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		queue:   make(chan *Event, defaultQueueSize),
		done:    make(chan struct{}),
		subSize: defaultSubscriberSize,
		subs:    make(map[Subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start runs the distribution loop in its own goroutine.
func (b *Broker) Start() {
	go func() {
		for {
			select {
			case evt := <-b.queue:
				b.deliver(evt)
			case <-b.done:
				return
			}
		}
	}()
}

// Stop ends distribution. Later calls are no-ops.
func (b *Broker) Stop() {
	b.stop.Do(func() { close(b.done) })
}

func (b *Broker) Subscribe() Subscriber {
	sub := make(Subscriber, b.subSize)
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe closes sub. Unknown or already removed subscribers are ignored.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub)
	}
}

// Publish queues evt and reports whether it was accepted. It returns false
// once the broker is stopped or while the queue is full.
func (b *Broker) Publish(evt *Event) bool {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.queue <- evt:
		return true
	default:
		b.drop(evt, "queue")
		return false
	}
}

func (b *Broker) deliver(evt *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub <- evt:
		default:
			b.drop(evt, "subscriber")
		}
	}
}

func (b *Broker) drop(evt *Event, stage string) {
	b.dropped.Add(1)
	metrics.TriggerEventsDroppedTotal.WithLabelValues(string(evt.Kind), stage).Inc()
}

// Dropped returns how many deliveries were discarded so far.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
