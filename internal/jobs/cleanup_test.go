package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockTokenDeleter struct {
	mu    sync.Mutex
	calls []time.Time
	count int64
	err   error
}

func (m *mockTokenDeleter) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, now)
	return m.count, m.err
}

func (m *mockTokenDeleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestCleanupJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewCleanupJob(&mockTokenDeleter{}, 5*time.Minute)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
	})

	t.Run("runs cleanup on start", func(t *testing.T) {
		fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		tokens := &mockTokenDeleter{count: 6}
		job := NewCleanupJob(tokens, time.Hour)
		job.now = func() time.Time { return fixed }

		job.Start()
		assert.Eventually(t, func() bool { return tokens.callCount() == 1 }, time.Second, 5*time.Millisecond)
		job.Stop()

		assert.Equal(t, []time.Time{fixed}, tokens.calls)
	})

	t.Run("keeps ticking", func(t *testing.T) {
		tokens := &mockTokenDeleter{}
		job := NewCleanupJob(tokens, 10*time.Millisecond)

		job.Start()
		assert.Eventually(t, func() bool { return tokens.callCount() >= 3 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("survives repository errors", func(t *testing.T) {
		tokens := &mockTokenDeleter{err: errors.New("database unavailable")}
		job := NewCleanupJob(tokens, 10*time.Millisecond)

		job.Start()
		assert.Eventually(t, func() bool { return tokens.callCount() >= 2 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		job := NewCleanupJob(&mockTokenDeleter{}, time.Hour)
		job.Start()

		job.Stop()
		job.Stop()
	})
}
