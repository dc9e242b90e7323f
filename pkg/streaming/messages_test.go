package streaming

import (
	"encoding/json"
	"testing"

	"github.com/neatdrive/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_GenerationPayload(t *testing.T) {
	res := core.GenerationResult{Generation: 4, BestFitness: 0.75, StopReason: core.StopTickLimit}
	raw, err := json.Marshal(res)
	require.NoError(t, err)

	data, err := json.Marshal(Envelope{Type: TypeGeneration, Payload: raw})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypeGeneration, env.Type)

	var decoded core.GenerationResult
	require.NoError(t, json.Unmarshal(env.Payload, &decoded))
	assert.Equal(t, 4, decoded.Generation)
	assert.Equal(t, core.StopTickLimit, decoded.StopReason)
}

func TestAckMessage(t *testing.T) {
	var ack AckMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"ack","for":"run_start"}`), &ack))
	assert.Equal(t, TypeAck, ack.Type)
	assert.Equal(t, TypeRunStart, ack.For)
}
