package audit

import (
	"discord-moderator/feed"
	"discord-moderator/model"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultBuffer = 1024
	maxBatch      = 50
	flushInterval = time.Second
)

var recordedEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_audit_entries_total",
	Help: "Audit entries recorded, by type",
}, []string{"type"})

var droppedEntries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderator_audit_dropped_total",
	Help: "Audit entries dropped because the write queue was full or closed",
})

// Writer persists batches of audit entries.
type Writer interface {
	InsertAuditEntries(entries []model.AuditEntry) error
}

// Sink records audit entries without ever blocking the caller. Entries are
// published to the feed immediately and written to the store in batches by a
// background goroutine.
type Sink struct {
	writer Writer
	broker *feed.Broker

	mu     sync.RWMutex
	closed bool
	queue  chan model.AuditEntry
	done   chan struct{}
}

// NewSink starts the background writer. broker may be nil.
func NewSink(writer Writer, broker *feed.Broker, buffer int) *Sink {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Sink{
		writer: writer,
		broker: broker,
		queue:  make(chan model.AuditEntry, buffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) Record(entry model.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Details == "" {
		entry.Details = "{}"
	}
	recordedEntries.WithLabelValues(string(entry.Type)).Inc()

	if s.broker != nil {
		s.broker.Publish(feed.Event{Kind: feed.EvtKindAudit, Time: entry.Timestamp, Payload: entry})
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		droppedEntries.Inc()
		return
	}
	select {
	case s.queue <- entry:
	default:
		droppedEntries.Inc()
		log.Printf("[Audit] Write queue full, dropping %s entry %s", entry.Type, entry.ID)
	}
}

// Close stops accepting entries and waits until queued ones are written.
func (s *Sink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]model.AuditEntry, 0, maxBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.writer.InsertAuditEntries(batch); err != nil {
			log.Printf("[Audit] Failed to write %d audit entries: %v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-s.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= maxBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
