package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"optimouse/internal/mouse"
	"optimouse/internal/simerr"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "set_buttons", "data": {"left": true}}
//   - Server responds: {"status": "ok", "data": ...}
//     or {"status": "error", "code": "unknown_command", "error": "msg"}
//
// Level changes are fire-and-forget; get_params and get_state wait for the
// daemon loop to answer.
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string          `json:"status"`          // "ok" or "error"
	Error  string          `json:"error,omitempty"` // error message if status == "error"
	Code   simerr.Code     `json:"code,omitempty"`  // stable error code if status == "error"
	Data   json.RawMessage `json:"data,omitempty"`  // query result
}

func okResponse(data any) IPCResponse {
	resp := IPCResponse{Status: "ok"}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return errorResponse(simerr.Wrap(simerr.Error, "marshal reply", err))
		}
		resp.Data = b
	}
	return resp
}

func errorResponse(err error) IPCResponse {
	return IPCResponse{
		Status: "error",
		Error:  err.Error(),
		Code:   simerr.Of(err),
	}
}

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, events, logger)
	}
}

// handleIPCConnection handles a single IPC connection
func handleIPCConnection(ctx context.Context, conn net.Conn, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("IPC received", "line", line)

		response := dispatchIPC(ctx, []byte(line), events)
		if encErr := encoder.Encode(response); encErr != nil {
			logger.Error("IPC failed to send response", "error", encErr)
			return
		}
	}

	logger.Debug("IPC connection closed")
}

// dispatchIPC decodes one request line, hands it to the daemon loop and
// builds the reply.
func dispatchIPC(ctx context.Context, line []byte, events chan<- Event) IPCResponse {
	ev, err := UnmarshalEvent(line)
	if err != nil {
		return errorResponse(err)
	}

	switch q := ev.(type) {
	case GetParams:
		q.Reply = make(chan mouse.Params, 1)
		return query(ctx, events, q, q.Reply)
	case RequestStateSnapshot:
		q.Reply = make(chan StateSnapshot, 1)
		return query(ctx, events, q, q.Reply)
	}

	select {
	case events <- ev:
		return okResponse(nil)
	default:
		return errorResponse(simerr.New(simerr.QueueFull, "enqueue event", "event queue full"))
	}
}

// query sends ev and waits for the daemon loop to answer on reply.
func query[T any](ctx context.Context, events chan<- Event, ev Event, reply chan T) IPCResponse {
	select {
	case events <- ev:
	default:
		return errorResponse(simerr.New(simerr.QueueFull, "enqueue query", "event queue full"))
	}

	timer := time.NewTimer(ipcReplyTimeoutMS * time.Millisecond)
	defer timer.Stop()

	select {
	case v := <-reply:
		return okResponse(v)
	case <-timer.C:
		return errorResponse(simerr.New(simerr.Timeout, "await reply", "daemon did not answer"))
	case <-ctx.Done():
		return errorResponse(simerr.Wrap(simerr.Unavailable, "await reply", ctx.Err()))
	}
}

// ============================================================================
// IPC Client Utility Functions
// ============================================================================

// SendIPCEvent sends an event to the daemon via IPC and returns the response.
// A response with status "error" is returned as an error carrying its code.
func SendIPCEvent(socketPath string, ev Event) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := MarshalEvent(ev)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return IPCResponse{}, fmt.Errorf("send event: %w", err)
	}

	decoder := json.NewDecoder(conn)
	var resp IPCResponse
	if err := decoder.Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return resp, simerr.New(resp.Code, "ipc", resp.Error)
	}

	return resp, nil
}
