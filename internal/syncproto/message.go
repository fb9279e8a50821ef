// Package syncproto defines the JSON messages exchanged between the sync
// server and its clients:
//
//	{ "type": "...", "payload": ..., "requestId": "...", "timestamp": 0 }
package syncproto

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/opentask/taskin/internal/task"
)

// Type names a message.
type Type string

// Server to client.
const (
	TypeTasks       Type = "tasks"
	TypeTaskFound   Type = "task:found"
	TypeTaskUpdated Type = "task:updated"
	TypeTaskCreated Type = "task:created"
	TypeTaskDeleted Type = "task:deleted"
	TypeError       Type = "error"
	TypePong        Type = "pong"
)

// Client to server.
const (
	TypeList   Type = "list"
	TypeFind   Type = "find"
	TypeUpdate Type = "update"
	TypeStart  Type = "start"
	TypeFinish Type = "finish"
	TypePause  Type = "pause"
	TypePing   Type = "ping"
)

// Message is one frame of the protocol. Timestamp is milliseconds since
// the Unix epoch.
type Message struct {
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// TaskRef is the payload of find, start, finish and pause.
type TaskRef struct {
	TaskID string `json:"taskId"`
}

// ErrorPayload is the payload of error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// New builds a message with payload encoded as JSON. A nil payload is
// omitted; use json.RawMessage("null") to send an explicit null.
func New(t Type, payload any, requestID string) (Message, error) {
	m := Message{Type: t, RequestID: requestID}
	if payload == nil {
		return m, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", t, err)
	}
	m.Payload = raw
	return m, nil
}

// NewRequestID returns a fresh correlation id.
func NewRequestID() string {
	return uuid.NewString()
}

// Parse decodes one frame. A frame without a type is rejected.
func Parse(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("invalid message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("invalid message: missing type")
	}
	return m, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", m.Type, err)
	}
	return nil
}

// IsNull reports whether the payload is absent or JSON null.
func (m Message) IsNull() bool {
	return len(m.Payload) == 0 || string(m.Payload) == "null"
}

// TaskID decodes a TaskRef payload and returns its id.
func (m Message) TaskID() (string, error) {
	var ref TaskRef
	if err := m.Decode(&ref); err != nil {
		return "", err
	}
	if ref.TaskID == "" {
		return "", fmt.Errorf("%s: missing taskId", m.Type)
	}
	return ref.TaskID, nil
}

// Task decodes a task payload.
func (m Message) Task() (*task.Task, error) {
	var t task.Task
	if err := m.Decode(&t); err != nil {
		return nil, err
	}
	if t.ID == "" {
		return nil, fmt.Errorf("%s: task without id", m.Type)
	}
	return &t, nil
}

// Tasks decodes a task list payload.
func (m Message) Tasks() ([]task.Task, error) {
	var ts []task.Task
	if err := m.Decode(&ts); err != nil {
		return nil, err
	}
	return ts, nil
}

// Encode marshals the message with the given timestamp.
func (m Message) Encode(ts int64) ([]byte, error) {
	m.Timestamp = ts
	return json.Marshal(m)
}
