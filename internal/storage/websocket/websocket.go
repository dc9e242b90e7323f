// Package websocket implements storage.Backend by streaming run data to a
// dashboard server.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/neatdrive/simulator/pkg/core"
	"github.com/neatdrive/simulator/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams run data over WebSocket. Run IDs are local counters; the
// server keys runs by connection.
type Backend struct {
	conn        *connection
	cfg         Config
	nextRunID   atomic.Uint64
	runID       atomic.Uint64
	generations atomic.Int64
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartRun assigns the run ID, sends run_start and waits for the server ack.
func (b *Backend) StartRun(run *core.Run, track *core.Track) error {
	run.ID = uint(b.nextRunID.Add(1))
	data, err := marshalEnvelope(streaming.TypeRunStart, streaming.RunStartPayload{Run: run, Track: track})
	if err != nil {
		return err
	}
	b.conn.setReplay(data)
	b.runID.Store(uint64(run.ID))
	b.generations.Store(0)
	return b.conn.sendAndWait(data, streaming.TypeRunStart, ackTimeout)
}

// RecordGeneration streams a generation without waiting for an ack.
func (b *Backend) RecordGeneration(res *core.GenerationResult) error {
	data, err := marshalEnvelope(streaming.TypeGeneration, res)
	if err != nil {
		return err
	}
	b.conn.send(data)
	b.generations.Add(1)
	return nil
}

// EndRun sends run_end and waits for the server ack.
func (b *Backend) EndRun() error {
	data, err := marshalEnvelope(streaming.TypeRunEnd, streaming.RunEndPayload{
		RunID:       uint(b.runID.Load()),
		Generations: int(b.generations.Load()),
	})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeRunEnd, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.setReplay(nil)
	b.runID.Store(0)
	return err
}
