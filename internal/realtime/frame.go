package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/anonto42/findmate/backend/internal/models"
)

// Frame types sent on a live channel
const (
	FrameConnected       = "connected"
	FrameNewNotification = "new_notification"
)

// Frame is a single server-to-client event.
type Frame struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// Handshake is the first frame written on every new stream.
func Handshake() Frame {
	return Frame{Type: FrameConnected}
}

// NotificationFrame wraps a persisted notification.
func NotificationFrame(n *models.Notification) Frame {
	return Frame{Type: FrameNewNotification, Notification: n}
}

// Encode renders the frame in event-stream framing: "data: <json>\n\n".
// encoding/json never emits raw newlines, so the payload stays on one line.
func (f Frame) Encode() ([]byte, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", f.Type, err)
	}
	var buf bytes.Buffer
	buf.Grow(len(payload) + 8)
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}
