package main

import (
	"encoding/json"
	"fmt"

	"optimouse/internal/buttons"
	"optimouse/internal/mouse"
	"optimouse/internal/simerr"
)

// ============================================================================
// Events - inputs to the daemon loop
// ============================================================================
// Events come from the keyboard readers, the IPC socket and the websocket
// server. The daemon loop is their only consumer and the only owner of the
// harness.
// ============================================================================

// Event is a marker interface for everything the daemon loop reduces.
type Event interface {
	eventMarker()
}

// SetButtons sets debounced button levels. Nil fields are left unchanged.
type SetButtons struct {
	Left  *bool `json:"left,omitempty"`
	Right *bool `json:"right,omitempty"`
}

func (SetButtons) eventMarker() {}

// SetRaw sets the two contact levels of one switch (raw mode).
type SetRaw struct {
	Button string `json:"button"` // "left" or "right"
	Top    bool   `json:"top"`
	Bottom bool   `json:"bottom"`
}

func (SetRaw) eventMarker() {}

// SetTracking puts the simulated sensor on (true) or off (false) a surface.
type SetTracking struct {
	Tracking bool `json:"tracking"`
}

func (SetTracking) eventMarker() {}

// GetParams asks for the current mouse parameters.
type GetParams struct {
	Reply chan mouse.Params `json:"-"`
}

func (GetParams) eventMarker() {}

// RequestStateSnapshot asks the daemon loop for a coherent StateSnapshot.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot `json:"-"`
}

func (RequestStateSnapshot) eventMarker() {}

// Quit stops the daemon. It is emitted by local input only.
type Quit struct{}

func (Quit) eventMarker() {}

// BoolPtr returns a pointer to v, for building SetButtons.
func BoolPtr(v bool) *bool { return &v }

// parseButton maps a wire button name to a channel.
func parseButton(name string) (buttons.Channel, error) {
	switch name {
	case "left":
		return buttons.Left, nil
	case "right":
		return buttons.Right, nil
	default:
		return 0, simerr.New(simerr.UnknownButton, "parse button", fmt.Sprintf("%q (must be left or right)", name))
	}
}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
// Errors carry a simerr code for the IPC reply.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, simerr.Wrap(simerr.InvalidPayload, "unmarshal envelope", err)
	}

	switch env.Type {
	case "set_buttons":
		var a SetButtons
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, simerr.Wrap(simerr.InvalidPayload, "unmarshal SetButtons", err)
		}
		return a, nil

	case "set_raw":
		var a SetRaw
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, simerr.Wrap(simerr.InvalidPayload, "unmarshal SetRaw", err)
		}
		if _, err := parseButton(a.Button); err != nil {
			return nil, err
		}
		return a, nil

	case "set_tracking":
		var a SetTracking
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, simerr.Wrap(simerr.InvalidPayload, "unmarshal SetTracking", err)
		}
		return a, nil

	case "get_params":
		return GetParams{}, nil

	case "get_state":
		return RequestStateSnapshot{}, nil

	default:
		return nil, simerr.New(simerr.UnknownCommand, "unmarshal event", fmt.Sprintf("%q", env.Type))
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case SetButtons:
		env.Type = "set_buttons"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetButtons: %w", err)
		}
		env.Data = data

	case SetRaw:
		env.Type = "set_raw"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetRaw: %w", err)
		}
		env.Data = data

	case SetTracking:
		env.Type = "set_tracking"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetTracking: %w", err)
		}
		env.Data = data

	case GetParams:
		env.Type = "get_params"

	case RequestStateSnapshot:
		env.Type = "get_state"

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
