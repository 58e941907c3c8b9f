package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"optimouse/internal/mouse"
	"optimouse/internal/simerr"
)

func TestDispatchIPC_Errors(t *testing.T) {
	ctx := context.Background()

	// Nobody reads this channel, so every send hits a full queue.
	blocked := make(chan Event)

	tests := []struct {
		name string
		line string
		code simerr.Code
	}{
		{"invalid json", `{`, simerr.InvalidPayload},
		{"unknown command", `{"type":"reboot"}`, simerr.UnknownCommand},
		{"unknown button", `{"type":"set_raw","data":{"button":"middle"}}`, simerr.UnknownButton},
		{"queue full", `{"type":"set_tracking","data":{"tracking":true}}`, simerr.QueueFull},
		{"query queue full", `{"type":"get_params"}`, simerr.QueueFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := dispatchIPC(ctx, []byte(tt.line), blocked)
			if resp.Status != "error" {
				t.Fatalf("status = %q, want error", resp.Status)
			}
			if resp.Code != tt.code {
				t.Fatalf("code = %q, want %q (%s)", resp.Code, tt.code, resp.Error)
			}
		})
	}
}

func TestDispatchIPC_QueryTimesOut(t *testing.T) {
	// Buffered but never reduced: the query is queued and nobody answers.
	events := make(chan Event, 1)
	resp := dispatchIPC(context.Background(), []byte(`{"type":"get_state"}`), events)
	if resp.Code != simerr.Timeout {
		t.Fatalf("code = %q, want %q", resp.Code, simerr.Timeout)
	}
}

func TestIPCServer_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Unix socket paths are length-limited; keep the directory short.
	dir, err := os.MkdirTemp("", "om")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	socket := filepath.Join(dir, "ipc.sock")

	events := make(chan Event, 8)
	startTestDaemon(t, ctx, events, nil)

	serverErr := make(chan error, 1)
	go func() { serverErr <- runIPCServer(ctx, socket, events, slog.Default()) }()

	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	}, "ipc socket not created")

	if _, err := SendIPCEvent(socket, SetTracking{Tracking: true}); err != nil {
		t.Fatalf("set_tracking: %v", err)
	}

	resp, err := SendIPCEvent(socket, GetParams{})
	if err != nil {
		t.Fatalf("get_params: %v", err)
	}
	var p mouse.Params
	if err := json.Unmarshal(resp.Data, &p); err != nil {
		t.Fatalf("decode params %s: %v", resp.Data, err)
	}
	if p != mouse.DefaultParams() {
		t.Fatalf("params = %v, want defaults", p)
	}

	waitUntil(t, time.Second, func() bool {
		resp, err := SendIPCEvent(socket, RequestStateSnapshot{})
		if err != nil {
			return false
		}
		var snap map[string]any
		if err := json.Unmarshal(resp.Data, &snap); err != nil {
			return false
		}
		in, _ := snap["input"].(map[string]any)
		return snap["state"] == "idle" && in["tracking"] == true
	}, "state never showed idle with tracking")

	cancel()
	select {
	case err := <-serverErr:
		if err != nil {
			t.Fatalf("server error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for ipc server to stop")
	}
	if _, err := os.Stat(socket); !os.IsNotExist(err) {
		t.Fatalf("socket not removed on shutdown: %v", err)
	}
}

func TestSendIPCEvent_ErrorCarriesCode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir, err := os.MkdirTemp("", "om")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	socket := filepath.Join(dir, "ipc.sock")

	// No daemon: queries time out.
	go runIPCServer(ctx, socket, make(chan Event, 1), slog.Default())
	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	}, "ipc socket not created")

	_, err = SendIPCEvent(socket, GetParams{})
	if got := simerr.Of(err); got != simerr.Timeout {
		t.Fatalf("code = %q, want %q (%v)", got, simerr.Timeout, err)
	}
}
