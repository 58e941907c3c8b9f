// Package simerr defines the stable error codes the simulator reports to
// clients over IPC.
package simerr

import "errors"

// Code is a stable, wire-facing error identifier.
type Code string

func (c Code) Error() string { return string(c) }

const (
	OK             Code = "ok"
	InvalidPayload Code = "invalid_payload"
	UnknownCommand Code = "unknown_command"
	UnknownButton  Code = "unknown_button"
	QueueFull      Code = "queue_full"
	Timeout        Code = "timeout"
	Unavailable    Code = "unavailable"

	Error Code = "error" // generic fallback
)

// E carries a Code together with the operation that failed and its cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// New returns an *E for op with the given code and message.
func New(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// Wrap returns an *E for op with the given code and cause.
func Wrap(c Code, op string, err error) error {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from err, looking through wrapped errors. A nil error is
// OK and an error without a code is Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	var e *E
	if errors.As(err, &e) {
		return e.C
	}
	return Error
}
