package console

import "fmt"

// EventKind identifies one canonical gateway lifecycle event. The set is
// closed: every kind has exactly one wire name and every wire name resolves
// to exactly one kind.
type EventKind int

// Event kinds, in wire vocabulary order.
const (
	EventServerCreated EventKind = iota
	EventServerDeleted

	EventInstanceStarting
	EventInstanceStarted
	EventInstanceStartFailed
	EventInstanceStopping
	EventInstanceStopped
	EventInstanceStopFailed

	EventConfigurationCreated
	EventConfigurationUpdated
	EventConfigurationDeleted

	EventToolsRetrieving
	EventToolsRetrieved
	EventToolsRetrievalFailed
	EventPromptsRetrieving
	EventPromptsRetrieved
	EventPromptsRetrievalFailed
	EventResourcesRetrieving
	EventResourcesRetrieved
	EventResourcesRetrievalFailed

	EventToolInvocationAccepted
	EventToolInvocationInvoking
	EventToolInvocationInvoked
	EventToolInvocationFailed

	// eventKindCount sentinel, keep last.
	eventKindCount
)

// kindNames is the authoritative kind-to-wire-name table. kindsByName is
// derived from it once at init; together they form the bidirectional
// registry. Neither is mutated after init.
var kindNames = [eventKindCount]string{
	EventServerCreated: "mcp-server.created",
	EventServerDeleted: "mcp-server.deleted",

	EventInstanceStarting:    "mcp-server.instance.starting",
	EventInstanceStarted:     "mcp-server.instance.started",
	EventInstanceStartFailed: "mcp-server.instance.start-failed",
	EventInstanceStopping:    "mcp-server.instance.stopping",
	EventInstanceStopped:     "mcp-server.instance.stopped",
	EventInstanceStopFailed:  "mcp-server.instance.stop-failed",

	EventConfigurationCreated: "mcp-server.configuration.created",
	EventConfigurationUpdated: "mcp-server.configuration.updated",
	EventConfigurationDeleted: "mcp-server.configuration.deleted",

	EventToolsRetrieving:          "mcp-server.metadata.tools.retrieving",
	EventToolsRetrieved:           "mcp-server.metadata.tools.retrieved",
	EventToolsRetrievalFailed:     "mcp-server.metadata.tools.failed",
	EventPromptsRetrieving:        "mcp-server.metadata.prompts.retrieving",
	EventPromptsRetrieved:         "mcp-server.metadata.prompts.retrieved",
	EventPromptsRetrievalFailed:   "mcp-server.metadata.prompts.failed",
	EventResourcesRetrieving:      "mcp-server.metadata.resources.retrieving",
	EventResourcesRetrieved:       "mcp-server.metadata.resources.retrieved",
	EventResourcesRetrievalFailed: "mcp-server.metadata.resources.failed",

	EventToolInvocationAccepted: "mcp-server.tool-invocation.accepted",
	EventToolInvocationInvoking: "mcp-server.tool-invocation.invoking",
	EventToolInvocationInvoked:  "mcp-server.tool-invocation.invoked",
	EventToolInvocationFailed:   "mcp-server.tool-invocation.failed",
}

var kindsByName = func() map[string]EventKind {
	m := make(map[string]EventKind, len(kindNames))
	for kind, name := range kindNames {
		m[name] = EventKind(kind)
	}
	return m
}()

// WireName returns the dot-separated event name used on the stream.
func (k EventKind) WireName() string {
	if k < 0 || k >= eventKindCount {
		return fmt.Sprintf("unknown(%d)", int(k))
	}
	return kindNames[k]
}

// String returns the wire name.
func (k EventKind) String() string {
	return k.WireName()
}

// ParseEventKind resolves a wire event name to its kind. An unknown name is
// an error, never coerced to a default kind.
func ParseEventKind(name string) (EventKind, error) {
	kind, ok := kindsByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEventKind, name)
	}
	return kind, nil
}

// LookupEventKind is the non-failing variant of ParseEventKind.
func LookupEventKind(name string) (EventKind, bool) {
	kind, ok := kindsByName[name]
	return kind, ok
}

// EventKinds returns every kind in wire vocabulary order.
func EventKinds() []EventKind {
	kinds := make([]EventKind, eventKindCount)
	for i := range kinds {
		kinds[i] = EventKind(i)
	}
	return kinds
}
