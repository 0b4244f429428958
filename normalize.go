package console

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// targetPrefix is the first segment of every event target locator.
const (
	targetPrefix           = "mcp-servers"
	targetInstancesSegment = "instances"
)

// Normalize converts one wire event record into a CanonicalEvent. It is a
// pure mapping: no I/O, no state. A record that cannot be mapped (unknown
// kind, malformed target, unparsable timestamp, invalid envelope) fails with
// a descriptive error.
func Normalize(rec EventRecord) (CanonicalEvent, error) {
	kind, err := ParseEventKind(rec.Name)
	if err != nil {
		return CanonicalEvent{}, err
	}

	var env eventEnvelope
	if err := json.Unmarshal(rec.Data, &env); err != nil {
		return CanonicalEvent{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	serverName, instanceID, err := parseTarget(env.Target)
	if err != nil {
		return CanonicalEvent{}, err
	}

	timestamp, err := time.Parse(time.RFC3339, env.Timestamp)
	if err != nil {
		return CanonicalEvent{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, env.Timestamp)
	}

	ev := CanonicalEvent{
		ServerName: serverName,
		Kind:       kind,
		Timestamp:  timestamp,
		InstanceID: instanceID,
		RequestID:  env.RequestID,
	}

	if len(env.Payload) > 0 {
		var payload eventPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return CanonicalEvent{}, fmt.Errorf("%w: payload: %v", ErrInvalidEnvelope, err)
		}
		ev.Errors = payload.Errors
		ev.OldConfiguration = payload.OldConfiguration
		// Update events carry the new configuration under "newConfiguration",
		// create events under "configuration".
		ev.Configuration = payload.Configuration
		if payload.NewConfiguration != nil {
			ev.Configuration = payload.NewConfiguration
		}
	}

	return ev, nil
}

// parseTarget splits a target locator into server name and instance id.
// Accepted shapes are "mcp-servers/<name>" and
// "mcp-servers/<name>/instances/<id>". The empty locator is accepted and
// yields neither field.
func parseTarget(target string) (serverName, instanceID string, err error) {
	if target == "" {
		return "", "", nil
	}

	segments := strings.Split(target, "/")
	switch {
	case len(segments) == 2 && segments[0] == targetPrefix && segments[1] != "":
		return segments[1], "", nil
	case len(segments) == 4 && segments[0] == targetPrefix && segments[1] != "" &&
		segments[2] == targetInstancesSegment && segments[3] != "":
		return segments[1], segments[3], nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrMalformedTarget, target)
	}
}
