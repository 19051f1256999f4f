package utils

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	table := []struct {
		in   string
		want time.Duration
	}{
		{"90s", 90 * time.Second},
		{"7d", 7 * 24 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"1w2d", 9 * 24 * time.Hour},
		{"1d12h", 36 * time.Hour},
		{" 2h30m ", 150 * time.Minute},
	}
	for _, row := range table {
		got, err := ParseDuration(row.in)
		require.NoError(t, err, row.in)
		assert.Equal(t, row.want, got, row.in)
	}
	for _, bad := range []string{"", "xd", "-1d", "1d2x", "forever"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestCanReviewBans(t *testing.T) {
	assert.True(t, CanReviewBans("100", 0, "100"))
	assert.True(t, CanReviewBans("200", discordgo.PermissionBanMembers, "100"))
	assert.True(t, CanReviewBans("200", discordgo.PermissionAdministrator, ""))
	assert.False(t, CanReviewBans("200", discordgo.PermissionManageMessages, "100"))
	assert.False(t, CanReviewBans("200", 0, ""))
	assert.False(t, CanReviewBans("", 0, ""))
}

func TestHasAnyRole(t *testing.T) {
	assert.True(t, HasAnyRole([]string{"a", "b"}, []string{"c", "b"}))
	assert.False(t, HasAnyRole([]string{"a"}, nil))
}

func TestUserLocksSerializePerUser(t *testing.T) {
	locks := NewUserLocks()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("u1")
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
	assert.Zero(t, locks.Len())
}

func TestNewHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	c := NewHTTPClient("test", time.Second)
	assert.Equal(t, time.Second, c.Timeout)
	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}
