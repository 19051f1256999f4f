package feed

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	EvtKindStatus = "status"
	EvtKindAudit  = "audit"

	DefaultBufferSize = 64
)

var droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderator_feed_dropped_events_total",
	Help: "Events dropped because a subscriber was not keeping up",
})

type Event struct {
	Kind    string    `json:"kind"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

type subscriber struct {
	mu       sync.Mutex
	closed   bool
	outgoing chan Event
}

// Broker fans events out to any number of subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type Broker struct {
	nextID atomic.Uint64
	subs   *xsync.MapOf[uint64, *subscriber]
}

func NewBroker() *Broker {
	return &Broker{subs: xsync.NewMapOf[uint64, *subscriber]()}
}

// Subscribe registers a listener. The returned func unsubscribes and closes
// the channel; calling it more than once is safe.
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	id := b.nextID.Add(1)
	sub := &subscriber{outgoing: make(chan Event, buffer)}
	b.subs.Store(id, sub)

	cleanup := func() {
		b.subs.Delete(id)
		sub.mu.Lock()
		defer sub.mu.Unlock()
		if !sub.closed {
			sub.closed = true
			close(sub.outgoing)
		}
	}
	return sub.outgoing, cleanup
}

func (b *Broker) Publish(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	b.subs.Range(func(id uint64, sub *subscriber) bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		if sub.closed {
			return true
		}
		select {
		case sub.outgoing <- evt:
		default:
			droppedEvents.Inc()
			log.Printf("[Feed] Subscriber %d is full, dropping %s event", id, evt.Kind)
		}
		return true
	})
}

// Subscribers reports the number of active listeners.
func (b *Broker) Subscribers() int {
	return b.subs.Size()
}
