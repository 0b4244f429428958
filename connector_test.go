package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle is a scriptable StreamHandle.
type fakeHandle struct {
	signals chan StreamSignal

	mu         sync.Mutex
	closeCount int
	closeOnce  sync.Once
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{signals: make(chan StreamSignal, 32)}
}

func (h *fakeHandle) Signals() <-chan StreamSignal {
	return h.signals
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	h.closeCount++
	h.mu.Unlock()
	h.closeOnce.Do(func() { close(h.signals) })
	return nil
}

func (h *fakeHandle) closedTimes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeCount
}

func (h *fakeHandle) send(sig StreamSignal) {
	h.signals <- sig
}

// fakeTransport is a StreamTransport with injectable behavior.
type fakeTransport struct {
	mu      sync.Mutex
	opened  []string // lastEventID per Open call
	handles []*fakeHandle
	openErr error
}

func (t *fakeTransport) Open(ctx context.Context, endpoint, lastEventID string) (StreamHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openErr != nil {
		return nil, t.openErr
	}
	h := newFakeHandle()
	t.opened = append(t.opened, lastEventID)
	t.handles = append(t.handles, h)
	return h, nil
}

func (t *fakeTransport) handle(i int) *fakeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handles[i]
}

func eventRecordData(target, timestamp string) []byte {
	return []byte(`{"target": "` + target + `", "timestamp": "` + timestamp + `"}`)
}

func waitForState(t *testing.T, c *StreamConnector, want ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("connector never reached state %s, still %s", want, c.State())
}

func TestConnectorLifecycle(t *testing.T) {
	transport := &fakeTransport{}
	c := NewStreamConnector(transport)

	assert.Equal(t, StateDisconnected, c.State())

	require.NoError(t, c.Start(context.Background(), "https://gw.example/v1/events/stream", ""))
	handle := transport.handle(0)

	handle.send(StreamSignal{Kind: SignalOpened})
	waitForState(t, c, StateConnected)

	handle.send(StreamSignal{
		Kind: SignalMessage,
		Name: "mcp-server.instance.started",
		ID:   "evt-1",
		Data: eventRecordData("mcp-servers/acme/instances/i1", "2026-08-27T10:15:00Z"),
	})

	select {
	case ev := <-c.Events():
		assert.Equal(t, EventInstanceStarted, ev.Kind)
		assert.Equal(t, "acme", ev.ServerName)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	assert.Equal(t, "evt-1", c.LastEventID())

	c.Stop()
	assert.Equal(t, StateDisconnected, c.State())
	assert.GreaterOrEqual(t, handle.closedTimes(), 1)

	// Stop when already stopped is a no-op.
	c.Stop()
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnectorStartTwiceClosesFirstHandle(t *testing.T) {
	transport := &fakeTransport{}
	c := NewStreamConnector(transport)

	require.NoError(t, c.Start(context.Background(), "https://gw.example/v1/events/stream", ""))
	first := transport.handle(0)
	first.send(StreamSignal{Kind: SignalOpened})
	waitForState(t, c, StateConnected)

	require.NoError(t, c.Start(context.Background(), "https://gw.example/v1/events/stream", "evt-9"))
	second := transport.handle(1)

	// The first handle was released before the second subscription opened.
	assert.GreaterOrEqual(t, first.closedTimes(), 1)
	transport.mu.Lock()
	assert.Equal(t, []string{"", "evt-9"}, transport.opened)
	transport.mu.Unlock()

	// Only the second subscription drives state now.
	second.send(StreamSignal{Kind: SignalOpened})
	waitForState(t, c, StateConnected)
	assert.Equal(t, "evt-9", c.LastEventID())
}

func TestConnectorReconnectingState(t *testing.T) {
	transport := &fakeTransport{}
	c := NewStreamConnector(transport)
	require.NoError(t, c.Start(context.Background(), "https://gw.example/v1/events/stream", ""))
	handle := transport.handle(0)

	handle.send(StreamSignal{Kind: SignalOpened})
	waitForState(t, c, StateConnected)

	handle.send(StreamSignal{Kind: SignalRetrying})
	waitForState(t, c, StateReconnecting)

	handle.send(StreamSignal{Kind: SignalOpened})
	waitForState(t, c, StateConnected)

	c.Stop()
}

func TestConnectorFatalError(t *testing.T) {
	transport := &fakeTransport{}
	c := NewStreamConnector(transport)
	require.NoError(t, c.Start(context.Background(), "https://gw.example/v1/events/stream", ""))
	handle := transport.handle(0)

	handle.send(StreamSignal{Kind: SignalOpened})
	handle.send(StreamSignal{Kind: SignalFatal, Err: errors.New("gateway melted")})
	waitForState(t, c, StateError)

	select {
	case err := <-c.Errors():
		assert.True(t, errors.Is(err, ErrStreamFatal))
		assert.Contains(t, err.Error(), "gateway melted")
	case <-time.After(2 * time.Second):
		t.Fatal("no error delivered")
	}
}

func TestConnectorOpenFailure(t *testing.T) {
	transport := &fakeTransport{openErr: errors.New("connection refused")}
	c := NewStreamConnector(transport)

	err := c.Start(context.Background(), "https://gw.example/v1/events/stream", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStreamFatal))
	assert.Equal(t, StateError, c.State())
}

func TestConnectorSurvivesBadRecord(t *testing.T) {
	transport := &fakeTransport{}
	metrics := NewInMemoryMetricsRecorder()
	c := NewStreamConnector(transport, WithConnectorMetrics(metrics))
	require.NoError(t, c.Start(context.Background(), "https://gw.example/v1/events/stream", ""))
	handle := transport.handle(0)
	handle.send(StreamSignal{Kind: SignalOpened})

	// An unmappable record is reported but does not kill the stream.
	handle.send(StreamSignal{
		Kind: SignalMessage,
		Name: "mcp-server.not-a-kind",
		ID:   "evt-1",
		Data: eventRecordData("mcp-servers/acme", "2026-08-27T10:15:00Z"),
	})
	handle.send(StreamSignal{
		Kind: SignalMessage,
		Name: "mcp-server.created",
		ID:   "evt-2",
		Data: eventRecordData("mcp-servers/acme", "2026-08-27T10:15:01Z"),
	})

	select {
	case err := <-c.Errors():
		assert.True(t, errors.Is(err, ErrUnknownEventKind))
	case <-time.After(2 * time.Second):
		t.Fatal("mapping error not reported")
	}

	select {
	case ev := <-c.Events():
		assert.Equal(t, EventServerCreated, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not continue after bad record")
	}

	// The cursor advanced past the bad record too.
	assert.Equal(t, "evt-2", c.LastEventID())
	assert.Equal(t, StateConnected, c.State())
	c.Stop()
}

func TestConnectorDefinitiveClose(t *testing.T) {
	transport := &fakeTransport{}
	c := NewStreamConnector(transport)
	require.NoError(t, c.Start(context.Background(), "https://gw.example/v1/events/stream", ""))
	handle := transport.handle(0)

	handle.send(StreamSignal{Kind: SignalOpened})
	waitForState(t, c, StateConnected)

	handle.send(StreamSignal{Kind: SignalClosed})
	waitForState(t, c, StateDisconnected)
}

func TestConnectorStateChangeNotifications(t *testing.T) {
	transport := &fakeTransport{}
	c := NewStreamConnector(transport)
	require.NoError(t, c.Start(context.Background(), "https://gw.example/v1/events/stream", ""))
	handle := transport.handle(0)
	handle.send(StreamSignal{Kind: SignalOpened})
	waitForState(t, c, StateConnected)
	c.Stop()

	var seen []ConnectionState
	for {
		select {
		case s := <-c.StateChanges():
			seen = append(seen, s)
			continue
		default:
		}
		break
	}
	assert.Equal(t, []ConnectionState{StateConnecting, StateConnected, StateDisconnected}, seen)
}
