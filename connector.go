// Package console implements the protocol-client core of an operator
// console for a remote MCP-server management gateway. It provides a
// resilient event-stream connector with replay-by-last-id semantics, a
// normalizer from wire events to one canonical domain event, an
// asynchronous create-then-poll invocation client for tool calls, prompt
// calls and resource reads, and a recursive parser that turns a tool or
// prompt input schema into a typed parameter tree.
package console

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ConnectionState represents the state of one stream subscription.
type ConnectionState string

// Connection state constants. Disconnected is both the initial state and
// the only state before the first Start.
const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateError        ConnectionState = "error"
)

// String returns the string representation of the state.
func (s ConnectionState) String() string {
	return string(s)
}

// SignalKind discriminates the notifications a stream handle emits.
type SignalKind int

// Stream signal kinds.
const (
	// SignalOpened reports that the push connection is established.
	SignalOpened SignalKind = iota
	// SignalMessage carries one raw event record.
	SignalMessage
	// SignalRetrying reports a transient drop the transport is recovering
	// from on its own.
	SignalRetrying
	// SignalClosed reports a definitive close of the connection.
	SignalClosed
	// SignalFatal reports a non-recoverable transport error.
	SignalFatal
)

// StreamSignal is one notification from a stream handle.
type StreamSignal struct {
	Kind SignalKind

	// Name, Data and ID are set for SignalMessage.
	Name string
	Data []byte
	ID   string

	// Err is set for SignalFatal.
	Err error
}

// StreamHandle is one open push connection. Signals is closed when the
// connection is finished; Close is safe to call more than once.
type StreamHandle interface {
	Signals() <-chan StreamSignal
	Close() error
}

// StreamTransport opens push connections. It is a capability supplied by
// the hosting environment; SSETransport is the production implementation.
type StreamTransport interface {
	// Open establishes a connection to the stream endpoint. A non-empty
	// lastEventID asks the gateway to resume the feed after that id.
	Open(ctx context.Context, endpoint, lastEventID string) (StreamHandle, error)
}

// StreamConnector owns one logical subscription to the gateway's push feed.
// It tracks connection state, remembers the last observed event id, and
// feeds raw records through Normalize to its event channel.
//
// Start and Stop must be serialized by the caller; the notification
// channels are intended for a single consumer.
type StreamConnector struct {
	transport StreamTransport
	logger    Logger
	metrics   MetricsRecorder

	mu          sync.Mutex
	state       ConnectionState
	lastEventID string
	handle      StreamHandle
	stop        chan struct{}
	pumpDone    chan struct{}

	events chan CanonicalEvent
	states chan ConnectionState
	errs   chan error
}

// ConnectorOption configures a StreamConnector.
type ConnectorOption func(*StreamConnector)

// WithConnectorLogger sets the connector logger.
func WithConnectorLogger(logger Logger) ConnectorOption {
	return func(c *StreamConnector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConnectorMetrics sets the metrics recorder.
func WithConnectorMetrics(recorder MetricsRecorder) ConnectorOption {
	return func(c *StreamConnector) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) ConnectorOption {
	return func(c *StreamConnector) {
		if n > 0 {
			c.events = make(chan CanonicalEvent, n)
		}
	}
}

// NewStreamConnector creates a connector over the given transport.
func NewStreamConnector(transport StreamTransport, options ...ConnectorOption) *StreamConnector {
	c := &StreamConnector{
		transport: transport,
		logger:    GetDefaultLogger(),
		metrics:   nopMetrics{},
		state:     StateDisconnected,
		events:    make(chan CanonicalEvent, 64),
		states:    make(chan ConnectionState, 16),
		errs:      make(chan error, 16),
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// Events yields the canonical events of the current and any future
// subscription, in arrival order.
func (c *StreamConnector) Events() <-chan CanonicalEvent {
	return c.events
}

// StateChanges yields connection state transitions.
func (c *StreamConnector) StateChanges() <-chan ConnectionState {
	return c.states
}

// Errors yields transport and per-record mapping errors.
func (c *StreamConnector) Errors() <-chan error {
	return c.errs
}

// State returns the current connection state.
func (c *StreamConnector) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastEventID returns the id of the last record observed on the stream, or
// the id Start was seeded with.
func (c *StreamConnector) LastEventID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventID
}

// Start opens a subscription to the stream endpoint. Any existing
// subscription is stopped first, synchronously, so no two subscriptions are
// ever live concurrently. A non-empty lastEventID resumes the feed after
// that id; an empty one starts from now. The context governs the lifetime
// of the subscription.
func (c *StreamConnector) Start(ctx context.Context, endpoint, lastEventID string) error {
	c.Stop()

	subscription := uuid.NewString()
	logger := c.logger.WithFields(map[string]interface{}{"subscription": subscription})

	c.mu.Lock()
	c.lastEventID = lastEventID
	c.mu.Unlock()
	c.setState(StateConnecting)

	handle, err := c.transport.Open(ctx, endpoint, lastEventID)
	if err != nil {
		c.setState(StateError)
		err = fmt.Errorf("%w: %v", ErrStreamFatal, err)
		c.emitError(err)
		return err
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	c.mu.Lock()
	c.handle = handle
	c.stop = stop
	c.pumpDone = done
	c.mu.Unlock()

	logger.Debugf("stream subscription opened: endpoint=%s lastEventID=%q", endpoint, lastEventID)
	go c.pump(handle, stop, done, logger)

	return nil
}

// Stop tears down the current subscription. It is a no-op when already
// stopped and guarantees the transport handle is released before returning.
func (c *StreamConnector) Stop() {
	c.mu.Lock()
	handle := c.handle
	stop := c.stop
	done := c.pumpDone
	c.handle = nil
	c.stop = nil
	c.pumpDone = nil
	c.mu.Unlock()

	if done == nil {
		return
	}
	close(stop)
	if handle != nil {
		_ = handle.Close()
	}
	<-done
	c.setState(StateDisconnected)
}

// pump drains handle signals until the subscription finishes. It runs once
// per subscription; the stop channel unblocks it when Stop wins a race with
// a slow consumer.
func (c *StreamConnector) pump(handle StreamHandle, stop, done chan struct{}, logger Logger) {
	defer close(done)
	defer handle.Close()

	for {
		select {
		case <-stop:
			return
		case sig, ok := <-handle.Signals():
			if !ok {
				// Signal channel closed without an explicit close or fatal
				// notification: treat as definitive close.
				c.finish(handle, StateDisconnected)
				return
			}
			switch sig.Kind {
			case SignalOpened:
				c.setState(StateConnected)
			case SignalMessage:
				c.handleMessage(sig, stop, logger)
			case SignalRetrying:
				c.setState(StateReconnecting)
			case SignalClosed:
				c.finish(handle, StateDisconnected)
				return
			case SignalFatal:
				c.emitError(fmt.Errorf("%w: %v", ErrStreamFatal, sig.Err))
				c.finish(handle, StateError)
				return
			}
		}
	}
}

// handleMessage advances the replay cursor, normalizes one record and
// emits it. A mapping failure is reported and the stream keeps running.
func (c *StreamConnector) handleMessage(sig StreamSignal, stop chan struct{}, logger Logger) {
	if sig.ID != "" {
		c.mu.Lock()
		c.lastEventID = sig.ID
		c.mu.Unlock()
	}

	ev, err := Normalize(EventRecord{Name: sig.Name, ID: sig.ID, Data: sig.Data})
	if err != nil {
		logger.Warnf("dropping unmappable event record id=%q: %v", sig.ID, err)
		c.emitError(err)
		return
	}

	c.metrics.IncStreamEvents(ev.Kind.WireName())
	select {
	case c.events <- ev:
	case <-stop:
	}
}

// finish clears the stored handle if it is still the live one and records
// the terminal state of the subscription.
func (c *StreamConnector) finish(handle StreamHandle, state ConnectionState) {
	c.mu.Lock()
	if c.handle == handle {
		c.handle = nil
	}
	c.mu.Unlock()
	c.setState(state)
}

func (c *StreamConnector) setState(state ConnectionState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	c.metrics.IncStateTransitions(state)
	select {
	case c.states <- state:
	default:
		c.logger.Debugf("state channel full, dropping transition to %s", state)
	}
}

func (c *StreamConnector) emitError(err error) {
	c.metrics.IncStreamErrors()
	select {
	case c.errs <- err:
	default:
		c.logger.Warnf("error channel full, dropping: %v", err)
	}
}
