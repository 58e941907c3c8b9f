package main

import (
	"testing"

	"optimouse/internal/simerr"
)

func TestUnmarshalEvent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Event
	}{
		{"press left", `{"type":"set_buttons","data":{"left":true}}`, SetButtons{Left: BoolPtr(true)}},
		{"raw", `{"type":"set_raw","data":{"button":"right","top":false,"bottom":true}}`, SetRaw{Button: "right", Bottom: true}},
		{"tracking", `{"type":"set_tracking","data":{"tracking":true}}`, SetTracking{Tracking: true}},
		{"params", `{"type":"get_params"}`, GetParams{}},
		{"state", `{"type":"get_state"}`, RequestStateSnapshot{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalEvent([]byte(tt.in))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch want := tt.want.(type) {
			case SetButtons:
				g, ok := got.(SetButtons)
				if !ok {
					t.Fatalf("got %T, want SetButtons", got)
				}
				if (g.Left == nil) != (want.Left == nil) || (g.Left != nil && *g.Left != *want.Left) || g.Right != nil {
					t.Fatalf("got %+v, want %+v", g, want)
				}
			case GetParams:
				if _, ok := got.(GetParams); !ok {
					t.Fatalf("got %T, want GetParams", got)
				}
			case RequestStateSnapshot:
				if _, ok := got.(RequestStateSnapshot); !ok {
					t.Fatalf("got %T, want RequestStateSnapshot", got)
				}
			default:
				if got != tt.want {
					t.Fatalf("got %+v, want %+v", got, tt.want)
				}
			}
		})
	}
}

func TestUnmarshalEvent_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		code simerr.Code
	}{
		{"not json", `press left`, simerr.InvalidPayload},
		{"bad payload", `{"type":"set_tracking","data":{"tracking":"yes"}}`, simerr.InvalidPayload},
		{"unknown type", `{"type":"scroll"}`, simerr.UnknownCommand},
		{"unknown button", `{"type":"set_raw","data":{"button":"middle"}}`, simerr.UnknownButton},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEvent([]byte(tt.in))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := simerr.Of(err); got != tt.code {
				t.Fatalf("code = %q, want %q (%v)", got, tt.code, err)
			}
		})
	}
}

func TestMarshalEvent_RoundTrip(t *testing.T) {
	for _, ev := range []Event{
		SetButtons{Right: BoolPtr(false)},
		SetRaw{Button: "left", Top: true},
		SetTracking{Tracking: true},
		GetParams{},
		RequestStateSnapshot{},
	} {
		data, err := MarshalEvent(ev)
		if err != nil {
			t.Fatalf("marshal %T: %v", ev, err)
		}
		got, err := UnmarshalEvent(data)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if typeName(got) != typeName(ev) {
			t.Fatalf("round trip %T -> %T", ev, got)
		}
	}

	if _, err := MarshalEvent(Quit{}); err == nil {
		t.Fatal("Quit must not be marshalable")
	}
}

func typeName(e Event) string {
	switch e.(type) {
	case SetButtons:
		return "set_buttons"
	case SetRaw:
		return "set_raw"
	case SetTracking:
		return "set_tracking"
	case GetParams:
		return "get_params"
	case RequestStateSnapshot:
		return "get_state"
	default:
		return "?"
	}
}
