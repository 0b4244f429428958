package console

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryMetricsRecorder(t *testing.T) {
	m := NewInMemoryMetricsRecorder()

	m.IncInvocations(ActionToolCall)
	m.IncInvocations(ActionToolCall)
	m.IncInvocationErrors(ActionToolCall, "timeout")
	m.ObserveInvocationLatency(ActionToolCall, 12.5, true)
	m.IncStreamEvents("mcp-server.created")
	m.IncStreamErrors()
	m.IncStateTransitions(StateConnected)

	assert.Equal(t, 2, m.Invocations[ActionToolCall])
	assert.Equal(t, 1, m.InvocationErrors[ActionToolCall]["timeout"])
	assert.Equal(t, []float64{12.5}, m.LatencyMs[ActionToolCall])
	assert.Equal(t, []bool{true}, m.LatencySuccess[ActionToolCall])
	assert.Equal(t, 1, m.StreamEvents["mcp-server.created"])
	assert.Equal(t, 1, m.StreamErrors)
	assert.Equal(t, 1, m.StateTransitions[StateConnected])
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPrometheusMetricsRecorder(registry, WithNamespace("test"), WithSubsystem("console"))

	m.IncInvocations(ActionToolCall)
	m.IncInvocationErrors(ActionToolCall, "rejected")
	m.ObserveInvocationLatency(ActionToolCall, 3, false)
	m.IncStreamEvents("mcp-server.created")
	m.IncStreamErrors()
	m.IncStateTransitions(StateReconnecting)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.invocations.WithLabelValues(ActionToolCall)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.invocationErrors.WithLabelValues(ActionToolCall, "rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.streamEvents.WithLabelValues("mcp-server.created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.streamErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.stateTransitions.WithLabelValues("reconnecting")))

	count, err := testutil.GatherAndCount(registry)
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}
