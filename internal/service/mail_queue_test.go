package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// flakyMailer fails the first n sends.
type flakyMailer struct {
	mu    sync.Mutex
	fails int
	calls int
	sent  chan string
}

func (m *flakyMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	m.calls++
	fail := m.calls <= m.fails
	m.mu.Unlock()
	if fail {
		return errors.New("smtp unavailable")
	}
	m.sent <- to
	return nil
}

func noBackoff(int) time.Duration { return time.Millisecond }

func TestMailQueue_DeliversInBackground(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := &flakyMailer{sent: make(chan string, 4)}
	q := NewMailQueue(m, 2, 4, 0)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	require.NoError(t, q.Send(ctx, "a@example.com", "Request Approved", "body"))
	select {
	case to := <-m.sent:
		assert.Equal(t, "a@example.com", to)
	case <-time.After(2 * time.Second):
		t.Fatal("mail not sent")
	}

	cancel()
	q.Wait()
}

func TestMailQueue_RetriesUntilSent(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := &flakyMailer{fails: 2, sent: make(chan string, 1)}
	q := NewMailQueue(m, 1, 1, 3)
	q.backoff = noBackoff
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	require.NoError(t, q.Send(ctx, "b@example.com", "s", "b"))
	select {
	case <-m.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("mail not sent after retries")
	}
	cancel()
	q.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 3, m.calls)
}

func TestMailQueue_FullQueueRejects(t *testing.T) {
	// Not started, so nothing drains the buffer.
	q := NewMailQueue(&flakyMailer{sent: make(chan string, 1)}, 1, 1, 0)
	require.NoError(t, q.Send(context.Background(), "a@example.com", "s", "b"))
	assert.ErrorIs(t, q.Send(context.Background(), "b@example.com", "s", "b"), ErrMailQueueFull)
}
