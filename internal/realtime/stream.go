package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStreamClosed is returned when sending on a stream whose transport has gone away.
	ErrStreamClosed = errors.New("stream closed")
	// ErrStreamFull is returned when the client does not drain frames fast enough.
	ErrStreamFull = errors.New("stream buffer full")
)

var heartbeatFrame = []byte(": ping\n\n")

// Stream is the live channel of one open event-stream response.
// Send only enqueues; the goroutine running Serve owns the writer.
type Stream struct {
	id     string
	userID string
	queue  chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewStream creates a stream for userID holding at most buffer pending frames.
func NewStream(userID string, buffer int) *Stream {
	if buffer < 1 {
		buffer = 1
	}
	return &Stream{
		id:     uuid.NewString(),
		userID: userID,
		queue:  make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// ID returns the unique id of this stream.
func (s *Stream) ID() string {
	return s.id
}

// UserID returns the user the stream belongs to.
func (s *Stream) UserID() string {
	return s.userID
}

// Send queues a frame without blocking.
func (s *Stream) Send(f Frame) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}

	data, err := f.Encode()
	if err != nil {
		return err
	}

	select {
	case s.queue <- data:
		return nil
	case <-s.done:
		return ErrStreamClosed
	default:
		return ErrStreamFull
	}
}

// Close marks the stream as gone. Safe to call more than once.
func (s *Stream) Close() {
	s.once.Do(func() { close(s.done) })
}

// Done is closed once the stream has been closed.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Serve writes the handshake and then every queued frame to w, calling flush
// after each write. It returns when ctx ends, the stream is closed, or a write
// fails. A heartbeat of zero disables keepalive comments.
func (s *Stream) Serve(ctx context.Context, w io.Writer, flush func(), heartbeat time.Duration) error {
	defer s.Close()

	handshake, err := Handshake().Encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(handshake); err != nil {
		return err
	}
	flush()

	var tick <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-tick:
			if _, err := w.Write(heartbeatFrame); err != nil {
				return err
			}
			flush()
		case data := <-s.queue:
			if _, err := w.Write(data); err != nil {
				return err
			}
			flush()
		}
	}
}
