// Package streaming defines the wire messages of the live training stream.
package streaming

import (
	"encoding/json"

	"github.com/neatdrive/simulator/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeRunStart   = "run_start"
	TypeGeneration = "generation"
	TypeRunEnd     = "run_end"
	TypeAck        = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// RunStartPayload carries run and track data.
type RunStartPayload struct {
	Run   *core.Run   `json:"run"`
	Track *core.Track `json:"track"`
}

// RunEndPayload closes a run.
type RunEndPayload struct {
	RunID       uint `json:"runId"`
	Generations int  `json:"generations"`
}
