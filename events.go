package console

import (
	"encoding/json"
	"time"
)

// Configuration describes how the gateway launches one MCP server process.
type Configuration struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ErrorDetail is one error entry as reported by the gateway.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CanonicalEvent is the single domain event shape every wire event is
// normalized into. Optional fields are zero-valued (or nil) when the wire
// event does not carry them.
type CanonicalEvent struct {
	ServerName       string
	Kind             EventKind
	Timestamp        time.Time
	Errors           []ErrorDetail
	InstanceID       string
	RequestID        string
	OldConfiguration *Configuration
	Configuration    *Configuration
}

// EventRecord is one raw record as delivered by the push stream: the SSE
// event name carries the kind, the id carries the replay cursor, and the
// data is the JSON envelope.
type EventRecord struct {
	Name string
	ID   string
	Data []byte
}

// eventEnvelope is the wire shape of an event record's data.
type eventEnvelope struct {
	Target    string          `json:"target"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// eventPayload holds the optional structured sub-objects of an envelope
// payload. Absent sub-objects stay nil.
type eventPayload struct {
	Errors           []ErrorDetail  `json:"errors,omitempty"`
	Configuration    *Configuration `json:"configuration,omitempty"`
	NewConfiguration *Configuration `json:"newConfiguration,omitempty"`
	OldConfiguration *Configuration `json:"oldConfiguration,omitempty"`
}
