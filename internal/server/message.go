package server

import (
	"encoding/json"
	"time"
)

// MessageType represents a WebSocket message type with type safety
type MessageType string

const (
	// Client to server
	MessageTypeCommand MessageType = "command"

	// Server to client
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypeAck      MessageType = "ack"
	MessageTypeError    MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Command names accepted in CommandData.
const (
	CommandStart   = "start"
	CommandSelect  = "select"
	CommandAdvance = "advance"
	CommandRestart = "restart"
)

// CommandData is sent by the client to drive its engine.
type CommandData struct {
	Command  string `json:"command"`
	Position int    `json:"position,omitempty"`
}

// AckData reports whether a command changed the game. Commands that are not
// valid for the current phase are acknowledged with Applied=false.
type AckData struct {
	Command string `json:"command"`
	Applied bool   `json:"applied"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
