package classifier

import (
	"discord-moderator/model"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// MaxContextMessages bounds the per-channel history sent along with a message.
	MaxContextMessages = 10
	maxTrackedChannels = 500
)

// Context keeps a short rolling history per channel. It only enriches
// classification requests; losing it never affects correctness.
type Context struct {
	mu       sync.Mutex
	limit    int
	channels *lru.Cache[string, []model.ContextEntry]
}

func NewContext() *Context {
	channels, _ := lru.New[string, []model.ContextEntry](maxTrackedChannels)
	return &Context{limit: MaxContextMessages, channels: channels}
}

// History returns a copy of the channel history, oldest first.
func (c *Context) History(channelID string) []model.ContextEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.channels.Get(channelID)
	if !ok {
		return nil
	}
	out := make([]model.ContextEntry, len(entries))
	copy(out, entries)
	return out
}

// Add appends an entry, dropping the oldest once the channel exceeds the bound.
func (c *Context) Add(channelID string, entry model.ContextEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, _ := c.channels.Get(channelID)
	entries = append(entries, entry)
	if len(entries) > c.limit {
		entries = append([]model.ContextEntry(nil), entries[len(entries)-c.limit:]...)
	}
	c.channels.Add(channelID, entries)
}
