package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	server := miniredis.RunT(t)

	t.Run("connects and pings", func(t *testing.T) {
		client, err := NewClient("redis://" + server.Addr())
		require.NoError(t, err)
		defer client.Close()
	})

	t.Run("rejects malformed url", func(t *testing.T) {
		_, err := NewClient("::not a url")
		assert.Error(t, err)
	})

	t.Run("fails when server is unreachable", func(t *testing.T) {
		_, err := NewClient("redis://127.0.0.1:1")
		assert.Error(t, err)
	})
}

func TestSessionEventsChannel(t *testing.T) {
	assert.Equal(t, "attendance:session:abc:events", SessionEventsChannel("abc"))
}

func TestRateLimitKey(t *testing.T) {
	assert.Equal(t, "attendance:ratelimit:ip:claim:203.0.113.7", RateLimitKey("ip:claim:203.0.113.7"))
}
