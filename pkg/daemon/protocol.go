package daemon

import (
	"encoding/json"

	"github.com/b/procrastabs/pkg/engine"
	"github.com/b/procrastabs/pkg/paths"
)

// MessageType identifies the type of message
type MessageType string

const (
	MsgSubscribe   MessageType = "subscribe"   // Client -> Daemon: push every status change
	MsgUnsubscribe MessageType = "unsubscribe" // Client -> Daemon: stop pushes and hang up
	MsgStatus      MessageType = "status"      // both ways: request / current snapshot
	MsgPing        MessageType = "ping"
	MsgPong        MessageType = "pong"
	MsgError       MessageType = "error"
)

// Message is the newline-delimited JSON frame exchanged on the socket
type Message struct {
	Type     MessageType     `json:"type"`
	ClientID string          `json:"client_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// StatusPayload is the body of a MsgStatus push
type StatusPayload struct {
	SequenceNum uint64        `json:"seq"` // Monotonic per daemon run
	RunID       string        `json:"run_id"`
	Status      engine.Status `json:"status"`
}

// ErrorPayload is the body of a MsgError reply
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessage builds a frame with payload marshalled in place.
func NewMessage(t MessageType, clientID string, payload any) (Message, error) {
	msg := Message{Type: t, ClientID: clientID}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = data
	return msg, nil
}

// Decode unmarshals the payload into out.
func (m Message) Decode(out any) error {
	return json.Unmarshal(m.Payload, out)
}

// SocketPath returns the daemon socket path for a session
func SocketPath(sessionID string) string {
	return paths.RuntimePath(sessionID, "sock")
}

// PidPath returns the pidfile path for a session
func PidPath(sessionID string) string {
	return paths.RuntimePath(sessionID, "pid")
}
