package console

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpops/mcp-console-go/gatewaytest"
)

func instanceEventData(target string) string {
	return `{"target": "` + target + `", "timestamp": "2026-08-27T10:15:00Z"}`
}

func TestSSETransportDeliversEvents(t *testing.T) {
	gw := gatewaytest.New()
	defer gw.Close()

	c := NewStreamConnector(NewSSETransport())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Start(ctx, gw.StreamURL(), ""))
	waitForState(t, c, StateConnected)

	id := gw.Push("mcp-server.instance.started", instanceEventData("mcp-servers/acme/instances/i1"))

	select {
	case ev := <-c.Events():
		assert.Equal(t, EventInstanceStarted, ev.Kind)
		assert.Equal(t, "acme", ev.ServerName)
		assert.Equal(t, "i1", ev.InstanceID)
	case <-time.After(3 * time.Second):
		t.Fatal("no event delivered over SSE")
	}
	assert.Equal(t, id, c.LastEventID())

	c.Stop()
	assert.Equal(t, StateDisconnected, c.State())
}

func TestSSETransportReplaysFromLastEventID(t *testing.T) {
	gw := gatewaytest.New()
	defer gw.Close()

	first := gw.Push("mcp-server.created", instanceEventData("mcp-servers/acme"))
	second := gw.Push("mcp-server.instance.starting", instanceEventData("mcp-servers/acme/instances/i1"))

	c := NewStreamConnector(NewSSETransport())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resuming after the first id replays only the second event.
	require.NoError(t, c.Start(ctx, gw.StreamURL(), first))

	select {
	case ev := <-c.Events():
		assert.Equal(t, EventInstanceStarting, ev.Kind)
	case <-time.After(3 * time.Second):
		t.Fatal("replayed event not delivered")
	}
	assert.Equal(t, second, c.LastEventID())

	c.Stop()
}

func TestSSETransportReconnectsAfterDrop(t *testing.T) {
	gw := gatewaytest.New()
	defer gw.Close()

	transport := NewSSETransport(WithSSERetryWait(10 * time.Millisecond))
	c := NewStreamConnector(transport)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Start(ctx, gw.StreamURL(), ""))
	waitForState(t, c, StateConnected)

	gw.Push("mcp-server.created", instanceEventData("mcp-servers/acme"))
	select {
	case <-c.Events():
	case <-time.After(3 * time.Second):
		t.Fatal("first event not delivered")
	}

	gw.DropConnections()
	waitForState(t, c, StateReconnecting)
	waitForState(t, c, StateConnected)

	// Events pushed after the drop arrive on the replayed connection.
	gw.Push("mcp-server.deleted", instanceEventData("mcp-servers/acme"))
	select {
	case ev := <-c.Events():
		assert.Equal(t, EventServerDeleted, ev.Kind)
	case <-time.After(3 * time.Second):
		t.Fatal("event after reconnect not delivered")
	}

	c.Stop()
}

func TestSSETransportRefusesNonStreamEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	transport := NewSSETransport()
	_, err := transport.Open(context.Background(), server.URL, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStreamNotEventFeed))
}

func TestSSETransportRefusesBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	transport := NewSSETransport()
	_, err := transport.Open(context.Background(), server.URL, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStreamNotEventFeed))
	assert.Contains(t, err.Error(), "403")
}

func TestSSETransportInvalidURL(t *testing.T) {
	transport := NewSSETransport()

	_, err := transport.Open(context.Background(), "://nope", "")
	assert.True(t, errors.Is(err, ErrInvalidStreamURL))

	_, err = transport.Open(context.Background(), "/relative/only", "")
	assert.True(t, errors.Is(err, ErrInvalidStreamURL))
}

func TestSplitSSEField(t *testing.T) {
	field, value, ok := splitSSEField("data: {\"a\": 1}")
	assert.True(t, ok)
	assert.Equal(t, "data", field)
	assert.Equal(t, "{\"a\": 1}", value)

	_, _, ok = splitSSEField(": keep-alive comment")
	assert.False(t, ok)

	_, _, ok = splitSSEField("no colon here")
	assert.False(t, ok)
}
