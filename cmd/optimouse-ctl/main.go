package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ============================================================================
// optimouse-ctl - Command-line IPC Client
// ============================================================================
// This tool drives the optimouse-sim daemon via IPC.
//
// Usage:
//   optimouse-ctl press left|right|both
//   optimouse-ctl release [left|right|both]
//   optimouse-ctl lift | place
//   optimouse-ctl raw left|right <top> <bottom>
//   optimouse-ctl params | state
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/optimouse.sock)
// ============================================================================

const defaultSocketPath = "/tmp/optimouse.sock"

// Request types (duplicated from the daemon for a standalone binary)
type setButtons struct {
	Left  *bool `json:"left,omitempty"`
	Right *bool `json:"right,omitempty"`
}

type setRaw struct {
	Button string `json:"button"`
	Top    bool   `json:"top"`
	Bottom bool   `json:"bottom"`
}

type setTracking struct {
	Tracking bool `json:"tracking"`
}

// request is an envelope ready to send.
type request struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func main() {
	socketPath := defaultSocketPath

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Check for -socket flag
	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		os.Exit(0)
	}

	req, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	resp, err := send(socketPath, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(resp.Data) == 0 {
		fmt.Println("ok")
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp.Data, "", "  "); err != nil {
		fmt.Println(string(resp.Data))
		return
	}
	fmt.Println(pretty.String())
}

// parseCommand turns command-line arguments into a request.
func parseCommand(args []string) (request, error) {
	if len(args) == 0 {
		return request{}, fmt.Errorf("missing command")
	}

	switch args[0] {
	case "press", "release":
		down := args[0] == "press"
		which := "both"
		if len(args) > 1 {
			which = args[1]
		} else if down {
			return request{}, fmt.Errorf("press requires left, right or both")
		}
		var sb setButtons
		switch which {
		case "left":
			sb.Left = &down
		case "right":
			sb.Right = &down
		case "both":
			sb.Left, sb.Right = &down, &down
		default:
			return request{}, fmt.Errorf("unknown button: %s", which)
		}
		return request{Type: "set_buttons", Data: sb}, nil

	case "lift":
		return request{Type: "set_tracking", Data: setTracking{Tracking: false}}, nil

	case "place":
		return request{Type: "set_tracking", Data: setTracking{Tracking: true}}, nil

	case "raw":
		if len(args) < 4 {
			return request{}, fmt.Errorf("raw requires a button and two contact levels")
		}
		top, err := strconv.ParseBool(args[2])
		if err != nil {
			return request{}, fmt.Errorf("invalid top level: %w", err)
		}
		bottom, err := strconv.ParseBool(args[3])
		if err != nil {
			return request{}, fmt.Errorf("invalid bottom level: %w", err)
		}
		// The daemon validates the button name.
		return request{Type: "set_raw", Data: setRaw{Button: args[1], Top: top, Bottom: bottom}}, nil

	case "params":
		return request{Type: "get_params"}, nil

	case "state":
		return request{Type: "get_state"}, nil

	default:
		return request{}, fmt.Errorf("unknown command: %s", args[0])
	}
}

func send(socketPath string, req request) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return IPCResponse{}, fmt.Errorf("send request: %w", err)
	}

	var response IPCResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if response.Status == "error" {
		return response, fmt.Errorf("daemon error (%s): %s", response.Code, response.Error)
	}

	return response, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `optimouse-ctl - Control the optimouse-sim daemon via IPC

Usage:
  optimouse-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/optimouse.sock)

Commands:
  press left|right|both           Press buttons
  release [left|right|both]       Release buttons (default both)
  lift                            Take the sensor off the surface
  place                           Put the sensor on the surface
  raw left|right <top> <bottom>   Set contact levels (daemon in -raw mode)
  params                          Print CPI, angle snap and lift-off distance
  state                           Print the controller state
  help, -h, --help                Show this help message

Examples:
  optimouse-ctl lift
  optimouse-ctl press both
  optimouse-ctl raw left false true
  optimouse-ctl -socket /run/optimouse.sock params
`)
}
