package audit

import (
	"discord-moderator/feed"
	"discord-moderator/model"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	gate    chan struct{}
	err     error
}

func (w *memWriter) InsertAuditEntries(entries []model.AuditEntry) error {
	if w.gate != nil {
		<-w.gate
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.entries = append(w.entries, entries...)
	return nil
}

func (w *memWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func TestSinkWritesAndPublishes(t *testing.T) {
	assert := assert.New(t)
	broker := feed.NewBroker()
	events, cancel := broker.Subscribe(10)
	defer cancel()

	w := &memWriter{}
	s := NewSink(w, broker, 10)
	s.Record(model.AuditEntry{Type: model.AuditBotEvent, Action: "ready"})
	s.Record(model.AuditEntry{ID: "fixed", Type: model.AuditError, Reason: "boom"})
	s.Close()

	require.Equal(t, 2, w.Len())
	_, err := uuid.Parse(w.entries[0].ID)
	assert.NoError(err)
	assert.False(w.entries[0].Timestamp.IsZero())
	assert.Equal("{}", w.entries[0].Details)
	assert.Equal("fixed", w.entries[1].ID)

	evt := <-events
	assert.Equal(feed.EvtKindAudit, evt.Kind)
	assert.Equal("ready", evt.Payload.(model.AuditEntry).Action)
}

func TestSinkNeverBlocks(t *testing.T) {
	w := &memWriter{gate: make(chan struct{})}
	s := NewSink(w, nil, 2)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Record(model.AuditEntry{Type: model.AuditAIAnalysis})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a stuck writer")
	}

	close(w.gate)
	s.Close()
	assert.LessOrEqual(t, w.Len(), 100)
	assert.Positive(t, w.Len())

	// closed sinks drop silently
	assert.NotPanics(t, func() { s.Record(model.AuditEntry{Type: model.AuditBotEvent}) })
}

func TestSinkWriterErrorIsContained(t *testing.T) {
	w := &memWriter{err: errors.New("disk full")}
	s := NewSink(w, nil, 4)
	assert.NotPanics(t, func() {
		s.Record(model.AuditEntry{Type: model.AuditError})
		s.Close()
	})
}

func TestSinkWithStore(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	s := NewSink(store, nil, 8)
	s.Record(model.AuditEntry{Type: model.AuditModAction, UserID: "u1", Action: "kick"})
	s.Close()

	entries, err := store.Query(model.AuditQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kick", entries[0].Action)

	stats, err := store.Stats(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ByAction["kick"])
}
