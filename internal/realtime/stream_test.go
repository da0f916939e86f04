package realtime

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/findmate/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for one writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestStream_SendAfterCloseFails(t *testing.T) {
	s := NewStream("u1", 4)
	s.Close()
	s.Close()

	assert.ErrorIs(t, s.Send(Handshake()), ErrStreamClosed)
}

func TestStream_SendWhenFull(t *testing.T) {
	s := NewStream("u1", 1)

	require.NoError(t, s.Send(Handshake()))
	assert.ErrorIs(t, s.Send(Handshake()), ErrStreamFull)
}

func TestStream_IDsAreUnique(t *testing.T) {
	a := NewStream("u1", 1)
	b := NewStream("u1", 1)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "u1", a.UserID())
}

func TestStream_ServeWritesHandshakeThenFrames(t *testing.T) {
	s := NewStream("u1", 4)
	var out syncBuffer
	flushes := 0
	var flushMu sync.Mutex
	flush := func() {
		flushMu.Lock()
		flushes++
		flushMu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, &out, flush, 0) }()

	require.NoError(t, s.Send(NotificationFrame(&models.Notification{Recipient: "u1", Kind: models.KindMessage})))
	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "data: ") == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "data: {\"type\":\"connected\"}\n\n"))
	assert.Contains(t, got, "\"type\":\"new_notification\"")
	flushMu.Lock()
	assert.Equal(t, 2, flushes)
	flushMu.Unlock()

	assert.ErrorIs(t, s.Send(Handshake()), ErrStreamClosed)
}

func TestStream_ServeEmitsHeartbeat(t *testing.T) {
	s := NewStream("u1", 1)
	var out syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx, &out, func() {}, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), ": ping\n\n")
	}, time.Second, 5*time.Millisecond)
}

func TestStream_ServeStopsOnClose(t *testing.T) {
	s := NewStream("u1", 1)
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), &syncBuffer{}, func() {}, 0) }()

	s.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

func TestStream_ServeReturnsWriteError(t *testing.T) {
	s := NewStream("u1", 1)

	err := s.Serve(context.Background(), failingWriter{}, func() {}, 0)

	assert.EqualError(t, err, "broken pipe")
	assert.ErrorIs(t, s.Send(Handshake()), ErrStreamClosed)
}
