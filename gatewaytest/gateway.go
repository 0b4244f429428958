// Package gatewaytest provides a fake MCP management gateway shared by
// tests: it serves the event stream endpoint and the request lifecycle
// endpoints the console core talks to.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Event is one server-sent event the fake gateway pushes to its stream.
type Event struct {
	ID   string
	Name string
	Data string
}

// Step is one scripted poll response for a created request.
type Step struct {
	Status string
	// Result is raw JSON attached to the step, usually on the terminal one.
	Result string
	// Errors is raw JSON for the errors list of a failed step.
	Errors string
}

// Gateway is the fake gateway. Create one with New, push events with Push,
// script request lifecycles with ScriptRequest, and point the code under
// test at URL().
type Gateway struct {
	server *httptest.Server

	mu           sync.Mutex
	events       []Event
	eventCounter int
	conns        map[chan Event]struct{}
	scripts      [][]Step
	pending      map[string][]Step
	requestSeq   int
	createCount  int
	pollCount    int
}

// New starts a fake gateway.
func New() *Gateway {
	g := &Gateway{
		conns:   make(map[chan Event]struct{}),
		pending: make(map[string][]Step),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/events/stream", g.handleStream)
	mux.HandleFunc("/v1/mcp-servers/", g.handleRequests)
	g.server = httptest.NewServer(mux)
	return g
}

// URL returns the gateway base URL.
func (g *Gateway) URL() string {
	return g.server.URL
}

// StreamURL returns the event stream endpoint.
func (g *Gateway) StreamURL() string {
	return g.server.URL + "/v1/events/stream"
}

// Close shuts the gateway down.
func (g *Gateway) Close() {
	g.server.Close()
}

// Push stores one event and fans it out to all connected streams,
// assigning it the next event id. It returns the assigned id.
func (g *Gateway) Push(name, data string) string {
	g.mu.Lock()
	g.eventCounter++
	ev := Event{ID: fmt.Sprintf("evt-%d", g.eventCounter), Name: name, Data: data}
	g.events = append(g.events, ev)
	// Sends stay under the lock so DropConnections cannot close a channel
	// mid-fan-out. They never block: the channels are buffered and lossy.
	for conn := range g.conns {
		select {
		case conn <- ev:
		default:
		}
	}
	g.mu.Unlock()
	return ev.ID
}

// DropConnections closes every live stream connection, simulating a
// transient network drop. Reconnecting clients replay from lastEventId.
func (g *Gateway) DropConnections() {
	g.mu.Lock()
	for conn := range g.conns {
		close(conn)
	}
	g.conns = make(map[chan Event]struct{})
	g.mu.Unlock()
}

// ScriptRequest queues the status sequence for the next created request.
// The first step is the creation response; each poll consumes one further
// step, and the final step keeps repeating.
func (g *Gateway) ScriptRequest(steps ...Step) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts = append(g.scripts, steps)
}

// CreateCount returns how many requests were created.
func (g *Gateway) CreateCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createCount
}

// PollCount returns how many status polls were served.
func (g *Gateway) PollCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pollCount
}

func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	conn := make(chan Event, 64)

	g.mu.Lock()
	last := r.URL.Query().Get("lastEventId")
	replayFrom := 0
	if last != "" {
		for i, ev := range g.events {
			if ev.ID == last {
				replayFrom = i + 1
				break
			}
		}
	} else {
		replayFrom = len(g.events)
	}
	replay := append([]Event(nil), g.events[replayFrom:]...)
	g.conns[conn] = struct{}{}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.conns, conn)
		g.mu.Unlock()
	}()

	for _, ev := range replay {
		writeEvent(w, ev)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-conn:
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

func (g *Gateway) handleRequests(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// v1 / mcp-servers / <server> / requests [ / <id> ]
	if len(parts) < 4 || parts[3] != "requests" {
		http.NotFound(w, r)
		return
	}

	switch {
	case r.Method == http.MethodPost && len(parts) == 4:
		g.handleCreate(w)
	case r.Method == http.MethodGet && len(parts) == 5:
		g.handlePoll(w, r, parts[4])
	default:
		http.NotFound(w, r)
	}
}

func (g *Gateway) handleCreate(w http.ResponseWriter) {
	g.mu.Lock()
	g.createCount++
	if len(g.scripts) == 0 || len(g.scripts[0]) == 0 {
		g.mu.Unlock()
		http.Error(w, `{"message":"no scripted request"}`, http.StatusBadRequest)
		return
	}
	steps := g.scripts[0]
	g.scripts = g.scripts[1:]
	g.requestSeq++
	id := fmt.Sprintf("req-%d", g.requestSeq)
	first := steps[0]
	g.pending[id] = steps[1:]
	g.mu.Unlock()

	writeStatus(w, id, first)
}

func (g *Gateway) handlePoll(w http.ResponseWriter, r *http.Request, id string) {
	g.mu.Lock()
	g.pollCount++
	steps, ok := g.pending[id]
	if !ok {
		g.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	var step Step
	if len(steps) == 0 {
		g.mu.Unlock()
		http.Error(w, `{"message":"script exhausted"}`, http.StatusInternalServerError)
		return
	}
	step = steps[0]
	if len(steps) > 1 {
		g.pending[id] = steps[1:]
	}
	g.mu.Unlock()

	writeStatus(w, id, step)
}

func writeStatus(w http.ResponseWriter, id string, step Step) {
	w.Header().Set("Content-Type", "application/json")
	body := map[string]json.RawMessage{
		"id":     json.RawMessage(fmt.Sprintf("%q", id)),
		"status": json.RawMessage(fmt.Sprintf("%q", step.Status)),
	}
	if step.Result != "" {
		body["result"] = json.RawMessage(step.Result)
	}
	if step.Errors != "" {
		body["errors"] = json.RawMessage(step.Errors)
	}
	_ = json.NewEncoder(w).Encode(body)
}

// writeEvent writes one SSE event, splitting data across lines per the SSE
// wire format.
func writeEvent(w http.ResponseWriter, ev Event) {
	fmt.Fprintf(w, "id: %s\n", ev.ID)
	if ev.Name != "" {
		fmt.Fprintf(w, "event: %s\n", ev.Name)
	}
	for _, line := range strings.Split(strings.TrimSuffix(ev.Data, "\n"), "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
