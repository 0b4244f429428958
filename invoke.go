package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Invocation defaults (reference values from the gateway protocol).
const (
	defaultPollInterval = 500 * time.Millisecond
	defaultWaitBudget   = 5 * time.Minute
)

// Action kinds carried in the request-creation body.
const (
	ActionToolCall     = "tool-call"
	ActionPromptCall   = "prompt-call"
	ActionResourceRead = "resource-read"
)

// Request status values reported by the gateway. completed and failed are
// terminal; anything else the client does not recognize is a protocol
// violation.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// InvocationAction is one of the three request variants. All variants share
// the create-then-poll lifecycle; they differ only in the parameter payload
// and the field extracted from the terminal result.
type InvocationAction interface {
	// ActionKind returns the wire action kind.
	ActionKind() string
	// params returns the action-specific parameter payload.
	params() map[string]interface{}
	// resultField names the terminal result field holding this action's
	// output.
	resultField() string
}

// ToolCall invokes a named tool on a server instance.
type ToolCall struct {
	InstanceID string
	Name       string
	Arguments  map[string]interface{}
}

func (a ToolCall) ActionKind() string { return ActionToolCall }

func (a ToolCall) params() map[string]interface{} {
	p := map[string]interface{}{
		"instanceId": a.InstanceID,
		"toolName":   a.Name,
	}
	if len(a.Arguments) > 0 {
		p["arguments"] = a.Arguments
	}
	return p
}

func (a ToolCall) resultField() string { return "toolResult" }

// PromptCall renders a named prompt on a server instance.
type PromptCall struct {
	InstanceID string
	Name       string
	Arguments  map[string]interface{}
}

func (a PromptCall) ActionKind() string { return ActionPromptCall }

func (a PromptCall) params() map[string]interface{} {
	p := map[string]interface{}{
		"instanceId": a.InstanceID,
		"promptName": a.Name,
	}
	if len(a.Arguments) > 0 {
		p["arguments"] = a.Arguments
	}
	return p
}

func (a PromptCall) resultField() string { return "promptResult" }

// ResourceRead reads a resource by URI from a server instance.
type ResourceRead struct {
	InstanceID string
	URI        string
}

func (a ResourceRead) ActionKind() string { return ActionResourceRead }

func (a ResourceRead) params() map[string]interface{} {
	return map[string]interface{}{
		"instanceId":  a.InstanceID,
		"resourceUri": a.URI,
	}
}

func (a ResourceRead) resultField() string { return "resourceContents" }

// InvocationResult is the terminal outcome of one request.
type InvocationResult struct {
	RequestID string
	Status    string
	// Output is the action-specific slice of the terminal result, set when
	// the request completed.
	Output json.RawMessage
	// Errors is the gateway-reported error list, set when the request
	// failed.
	Errors []ErrorDetail
}

// createRequestBody is the wire body of the request-creation call.
type createRequestBody struct {
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

// requestStatus is the wire shape of both the creation response and the
// poll response.
type requestStatus struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Errors []ErrorDetail   `json:"errors,omitempty"`
}

// Invoker performs create-then-poll invocations against a gateway. It is
// stateless between calls; concurrent Invoke calls are safe.
type Invoker struct {
	httpClient   *http.Client
	logger       Logger
	metrics      MetricsRecorder
	pollInterval time.Duration
	waitBudget   time.Duration
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithInvokerHTTPClient sets the HTTP client.
func WithInvokerHTTPClient(client *http.Client) InvokerOption {
	return func(c *Invoker) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithInvokerLogger sets the logger.
func WithInvokerLogger(logger Logger) InvokerOption {
	return func(c *Invoker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInvokerMetrics sets the metrics recorder.
func WithInvokerMetrics(recorder MetricsRecorder) InvokerOption {
	return func(c *Invoker) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithPollInterval sets the delay between status polls.
func WithPollInterval(interval time.Duration) InvokerOption {
	return func(c *Invoker) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithWaitBudget sets the overall wait budget for one invocation.
func WithWaitBudget(budget time.Duration) InvokerOption {
	return func(c *Invoker) {
		if budget > 0 {
			c.waitBudget = budget
		}
	}
}

// NewInvoker creates an invocation client.
func NewInvoker(options ...InvokerOption) *Invoker {
	c := &Invoker{
		httpClient:   &http.Client{},
		logger:       GetDefaultLogger(),
		metrics:      nopMetrics{},
		pollInterval: defaultPollInterval,
		waitBudget:   defaultWaitBudget,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// Invoke creates a request for the action on the named server and polls it
// to a terminal status. Distinct failures: creation rejected
// (ErrRequestRejected), terminal failed (ErrInvocationFailed), wait budget
// exceeded (ErrWaitBudgetExceeded), unrecognized status (ErrUnknownStatus),
// and cancellation (the context error). None are retried internally.
func (c *Invoker) Invoke(ctx context.Context, gatewayURL, serverName string, action InvocationAction) (*InvocationResult, error) {
	kind := action.ActionKind()
	c.metrics.IncInvocations(kind)
	start := time.Now()

	result, err := c.invoke(ctx, gatewayURL, serverName, action)

	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		c.metrics.IncInvocationErrors(kind, failureReason(err))
	}
	c.metrics.ObserveInvocationLatency(kind, elapsed, err == nil)

	return result, err
}

func (c *Invoker) invoke(ctx context.Context, gatewayURL, serverName string, action InvocationAction) (*InvocationResult, error) {
	requestsURL, err := requestsEndpoint(gatewayURL, serverName)
	if err != nil {
		return nil, err
	}

	created, err := c.createRequest(ctx, requestsURL, action)
	if err != nil {
		return nil, err
	}
	c.logger.Debugf("request %s created for %s on %s, status %s", created.ID, action.ActionKind(), serverName, created.Status)

	return c.pollToTerminal(ctx, requestsURL+"/"+url.PathEscape(created.ID), created, action)
}

// createRequest performs the request-creation call. A non-success transport
// response is a hard failure; there is no retry at this layer.
func (c *Invoker) createRequest(ctx context.Context, requestsURL string, action InvocationAction) (*requestStatus, error) {
	body, err := json.Marshal(createRequestBody{
		Action: action.ActionKind(),
		Params: action.params(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestsURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestRejected, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var created requestStatus
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("%w: invalid creation response: %v", ErrRequestRejected, err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("%w: creation response carries no request id", ErrRequestRejected)
	}

	return &created, nil
}

// pollToTerminal fetches request status at the poll interval until it is
// terminal or the wait budget runs out. Cancellation is checked before each
// poll and before each delay.
func (c *Invoker) pollToTerminal(ctx context.Context, requestURL string, current *requestStatus, action InvocationAction) (*InvocationResult, error) {
	deadline := time.Now().Add(c.waitBudget)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		switch current.Status {
		case StatusCompleted:
			return &InvocationResult{
				RequestID: current.ID,
				Status:    current.Status,
				Output:    extractOutput(current.Result, action),
			}, nil
		case StatusFailed:
			result := &InvocationResult{
				RequestID: current.ID,
				Status:    current.Status,
				Errors:    current.Errors,
			}
			return result, fmt.Errorf("%w: %s", ErrInvocationFailed, firstErrorMessage(current.Errors))
		case StatusPending, StatusAccepted, StatusRunning:
			// Not terminal yet.
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, current.Status)
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("invocation cancelled: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: no terminal status within %s", ErrWaitBudgetExceeded, c.waitBudget)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("invocation cancelled: %w", ctx.Err())
		case <-ticker.C:
		}

		next, err := c.fetchStatus(ctx, requestURL)
		if err != nil {
			return nil, err
		}
		current = next
	}
}

func (c *Invoker) fetchStatus(ctx context.Context, requestURL string) (*requestStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("invocation cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvocationPolling, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrInvocationPolling, resp.StatusCode)
	}

	var status requestStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: invalid status response: %v", ErrInvocationPolling, err)
	}
	return &status, nil
}

// CallTool invokes a tool and returns its terminal output.
func (c *Invoker) CallTool(ctx context.Context, gatewayURL, serverName, instanceID, tool string, arguments map[string]interface{}) (*InvocationResult, error) {
	return c.Invoke(ctx, gatewayURL, serverName, ToolCall{InstanceID: instanceID, Name: tool, Arguments: arguments})
}

// CallPrompt renders a prompt and returns its terminal output.
func (c *Invoker) CallPrompt(ctx context.Context, gatewayURL, serverName, instanceID, prompt string, arguments map[string]interface{}) (*InvocationResult, error) {
	return c.Invoke(ctx, gatewayURL, serverName, PromptCall{InstanceID: instanceID, Name: prompt, Arguments: arguments})
}

// ReadResource reads a resource and returns its contents.
func (c *Invoker) ReadResource(ctx context.Context, gatewayURL, serverName, instanceID, uri string) (*InvocationResult, error) {
	return c.Invoke(ctx, gatewayURL, serverName, ResourceRead{InstanceID: instanceID, URI: uri})
}

// requestsEndpoint builds the request-collection URL for a server.
func requestsEndpoint(gatewayURL, serverName string) (string, error) {
	base, err := url.Parse(gatewayURL)
	if err != nil || !base.IsAbs() {
		return "", fmt.Errorf("%w: %q", ErrInvalidGatewayURL, gatewayURL)
	}
	ref := &url.URL{Path: "v1/mcp-servers/" + url.PathEscape(serverName) + "/requests"}
	return base.ResolveReference(ref).String(), nil
}

// extractOutput pulls the action's output field from the terminal result,
// falling back to the whole result when the field is absent.
func extractOutput(result json.RawMessage, action InvocationAction) json.RawMessage {
	if len(result) == 0 {
		return nil
	}
	if field := gjson.GetBytes(result, action.resultField()); field.Exists() {
		return json.RawMessage(field.Raw)
	}
	return result
}

func firstErrorMessage(errs []ErrorDetail) string {
	for _, e := range errs {
		if e.Message != "" {
			return e.Message
		}
	}
	return "gateway reported no error detail"
}

// failureReason maps an invocation error to a stable metrics label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrRequestRejected):
		return "rejected"
	case errors.Is(err, ErrInvocationFailed):
		return "failed"
	case errors.Is(err, ErrWaitBudgetExceeded):
		return "timeout"
	case errors.Is(err, ErrUnknownStatus):
		return "unknown-status"
	case errors.Is(err, ErrInvocationPolling):
		return "poll"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
