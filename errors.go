package console

import "errors"

// Common errors. Callers match them with errors.Is; the wrapped message
// carries the specifics.
var (
	// Event mapping errors.
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrMalformedTarget  = errors.New("malformed event target")
	ErrInvalidTimestamp = errors.New("invalid event timestamp")
	ErrInvalidEnvelope  = errors.New("invalid event envelope")

	// Stream connector errors.
	ErrStreamFatal        = errors.New("fatal stream error")
	ErrInvalidStreamURL   = errors.New("invalid stream endpoint URL")
	ErrStreamNotEventFeed = errors.New("endpoint is not an event stream")

	// Invocation errors.
	ErrInvalidGatewayURL  = errors.New("invalid gateway URL")
	ErrRequestRejected    = errors.New("request creation rejected")
	ErrInvocationFailed   = errors.New("invocation failed")
	ErrWaitBudgetExceeded = errors.New("wait budget exceeded")
	ErrUnknownStatus      = errors.New("unrecognized request status")
	ErrInvocationPolling  = errors.New("request status poll failed")

	// Metadata errors.
	ErrInvalidArguments   = errors.New("arguments do not match input schema")
	ErrInvalidURITemplate = errors.New("invalid resource URI template")
)
