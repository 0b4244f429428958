package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Stream endpoint constants.
const (
	lastEventIDParam   = "lastEventId"
	contentTypeSSE     = "text/event-stream"
	defaultRetryWait   = 2 * time.Second
	maxRetryWait       = 30 * time.Second
	defaultMessageName = "message"
)

// SSETransport is the production StreamTransport: a server-sent-events
// connection over net/http. Transient drops are retried internally with the
// last observed id as the replay cursor; the handle reports them as
// SignalRetrying. Permanent refusals (non-200, wrong content type) become
// SignalFatal.
type SSETransport struct {
	httpClient *http.Client
	logger     Logger
	retryWait  time.Duration
	maxRetries int
}

// SSEOption configures an SSETransport.
type SSEOption func(*SSETransport)

// WithSSEHTTPClient sets the HTTP client used for stream connections.
func WithSSEHTTPClient(client *http.Client) SSEOption {
	return func(t *SSETransport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithSSELogger sets the transport logger.
func WithSSELogger(logger Logger) SSEOption {
	return func(t *SSETransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithSSERetryWait sets the initial wait between reconnect attempts. The
// server may override it with an SSE retry field.
func WithSSERetryWait(wait time.Duration) SSEOption {
	return func(t *SSETransport) {
		if wait > 0 {
			t.retryWait = wait
		}
	}
}

// WithSSEMaxRetries bounds consecutive failed reconnect attempts before the
// handle reports a fatal error. Zero means retry until cancelled.
func WithSSEMaxRetries(n int) SSEOption {
	return func(t *SSETransport) {
		t.maxRetries = n
	}
}

// NewSSETransport creates an SSE stream transport.
func NewSSETransport(options ...SSEOption) *SSETransport {
	t := &SSETransport{
		httpClient: &http.Client{},
		logger:     GetDefaultLogger(),
		retryWait:  defaultRetryWait,
	}

	for _, option := range options {
		option(t)
	}

	return t
}

// Open connects to the stream endpoint. The first connect happens
// synchronously so a bad endpoint or refused connection fails Open itself;
// after that the handle recovers transient drops on its own. The context
// governs the lifetime of the connection.
func (t *SSETransport) Open(ctx context.Context, endpoint, lastEventID string) (StreamHandle, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStreamURL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidStreamURL, endpoint)
	}

	runCtx, cancel := context.WithCancel(ctx)
	body, err := t.connect(runCtx, u, lastEventID)
	if err != nil {
		cancel()
		return nil, err
	}

	h := &sseHandle{
		transport: t,
		endpoint:  u,
		lastID:    lastEventID,
		retryWait: t.retryWait,
		signals:   make(chan StreamSignal, 16),
		cancel:    cancel,
	}
	go h.run(runCtx, body)

	return h, nil
}

// connect issues the GET and validates the response. A non-200 status or a
// non-stream content type is a permanent refusal.
func (t *SSETransport) connect(ctx context.Context, endpoint *url.URL, lastEventID string) (io.ReadCloser, error) {
	u := *endpoint
	if lastEventID != "" {
		q := u.Query()
		q.Set(lastEventIDParam, lastEventID)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", contentTypeSSE)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream connection failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", ErrStreamNotEventFeed, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, contentTypeSSE) {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: content type %q", ErrStreamNotEventFeed, ct)
	}

	return resp.Body, nil
}

// sseHandle is one open SSE connection with internal reconnection.
type sseHandle struct {
	transport *SSETransport
	endpoint  *url.URL
	lastID    string
	retryWait time.Duration
	signals   chan StreamSignal
	cancel    context.CancelFunc
}

func (h *sseHandle) Signals() <-chan StreamSignal {
	return h.signals
}

// Close tears down the connection. Safe to call more than once.
func (h *sseHandle) Close() error {
	h.cancel()
	return nil
}

// run reads the stream, reconnecting on transient drops, until the context
// is cancelled, the reconnect budget is exhausted, or the server refuses
// the connection permanently.
func (h *sseHandle) run(ctx context.Context, body io.ReadCloser) {
	defer close(h.signals)

	for {
		h.emit(ctx, StreamSignal{Kind: SignalOpened})
		readErr := h.readStream(ctx, body)
		body.Close()

		if ctx.Err() != nil {
			h.emit(ctx, StreamSignal{Kind: SignalClosed})
			return
		}
		h.transport.logger.Debugf("stream dropped, reconnecting: %v", readErr)

		next, err := h.reconnect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				h.emit(ctx, StreamSignal{Kind: SignalClosed})
			} else {
				h.emit(ctx, StreamSignal{Kind: SignalFatal, Err: err})
			}
			return
		}
		body = next
	}
}

// reconnect retries the connection with backoff, emitting SignalRetrying
// before each attempt. Permanent refusals stop the retry loop immediately.
func (h *sseHandle) reconnect(ctx context.Context) (io.ReadCloser, error) {
	wait := h.retryWait
	for attempt := 1; ; attempt++ {
		h.emit(ctx, StreamSignal{Kind: SignalRetrying})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}

		body, err := h.transport.connect(ctx, h.endpoint, h.lastID)
		if err == nil {
			h.retryWait = h.transport.retryWait
			return body, nil
		}
		if errorsIsPermanent(err) {
			return nil, err
		}
		if h.transport.maxRetries > 0 && attempt >= h.transport.maxRetries {
			return nil, fmt.Errorf("reconnect attempts exhausted: %w", err)
		}

		wait *= 2
		if wait > maxRetryWait {
			wait = maxRetryWait
		}
	}
}

// readStream scans SSE lines and emits one message signal per event. It
// returns when the stream breaks.
func (h *sseHandle) readStream(ctx context.Context, body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name, id string
	var data []string

	for scanner.Scan() {
		line := scanner.Text()

		// An empty line terminates the event.
		if line == "" {
			if len(data) > 0 {
				h.dispatch(ctx, name, id, strings.Join(data, "\n"))
			}
			name, id, data = "", "", nil
			continue
		}

		field, value, ok := splitSSEField(line)
		if !ok {
			continue
		}
		switch field {
		case "event":
			name = value
		case "id":
			id = value
		case "data":
			data = append(data, value)
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
				h.retryWait = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (h *sseHandle) dispatch(ctx context.Context, name, id, data string) {
	if id != "" {
		h.lastID = id
	}
	if name == "" {
		name = defaultMessageName
	}
	h.emit(ctx, StreamSignal{Kind: SignalMessage, Name: name, Data: []byte(data), ID: id})
}

func (h *sseHandle) emit(ctx context.Context, sig StreamSignal) {
	select {
	case h.signals <- sig:
	case <-ctx.Done():
	}
}

// splitSSEField splits "field: value" per the SSE wire format. Lines
// without a colon are comments or padding and are skipped.
func splitSSEField(line string) (field, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	return line[:idx], strings.TrimSpace(line[idx+1:]), true
}

// errorsIsPermanent reports whether a connect error is a permanent refusal
// rather than a transient network failure.
func errorsIsPermanent(err error) bool {
	return errors.Is(err, ErrStreamNotEventFeed)
}
