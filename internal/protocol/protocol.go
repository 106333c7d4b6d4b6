// Package protocol implements the kmrelay UDP wire format: the 16-byte
// header, the per-command payload layouts, the controller text lines they
// render to, and the JSON messages of the monitoring websocket feed.
package protocol

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeEvent carries one relay decision (forwarded or rejected packet)
	TypeEvent MessageType = "event"

	// TypeStatus is sent once to a client right after it connects
	TypeStatus MessageType = "status"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventPayload is the payload for TypeEvent
type EventPayload struct {
	Time    int64  `json:"ts"` // Unix ms timestamp
	Source  string `json:"source"`
	Command string `json:"command,omitempty"`
	Mac     string `json:"mac,omitempty"`
	Index   uint32 `json:"index,omitempty"`
	Line    string `json:"line,omitempty"`
	Fields  any    `json:"fields,omitempty"` // decoded command, control points included
	Error   string `json:"error,omitempty"`
}

// StatusPayload is the payload for TypeStatus
type StatusPayload struct {
	Listen    string `json:"listen"`
	Paused    bool   `json:"paused"`
	Received  uint64 `json:"received"`
	Forwarded uint64 `json:"forwarded"`
	Rejected  uint64 `json:"rejected"`
}
