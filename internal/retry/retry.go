// Package retry classifies infrastructure errors into terminal and
// transient classes. Message-level rejections never pass through here; the
// composer treats those as terminal per message by construction. This
// package only decides whether the surrounding loop (stream consumer,
// broadcaster, store access) should back off and retry or give up.
package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
)

type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

type classifiedError struct {
	err    error
	class  Class
	reason string
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

// Transient marks err as retriable regardless of its shape.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{
		err:    err,
		class:  ClassTransient,
		reason: "explicit_transient",
	}
}

// Terminal marks err as non-retriable regardless of its shape.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{
		err:    err,
		class:  ClassTerminal,
		reason: "explicit_terminal",
	}
}

func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return Decision{Class: marked.class, Reason: marked.reason}
	}

	if errors.Is(err, context.Canceled) {
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return Decision{Class: ClassTransient, Reason: "sql_bad_conn"}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyPostgresCode(string(pqErr.Code))
	}

	if grpcStatus, ok := status.FromError(err); ok {
		switch grpcStatus.Code() {
		case codes.Canceled:
			return Decision{Class: ClassTerminal, Reason: "grpc_canceled"}
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
			return Decision{Class: ClassTransient, Reason: "grpc_" + strings.ToLower(grpcStatus.Code().String())}
		default:
			return Decision{Class: ClassTerminal, Reason: "grpc_" + strings.ToLower(grpcStatus.Code().String())}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Decision{Class: ClassTransient, Reason: "net_timeout"}
		}
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, terminalMessageTokens) {
		return Decision{Class: ClassTerminal, Reason: "message_terminal"}
	}
	if containsAny(lower, transientMessageTokens) {
		return Decision{Class: ClassTransient, Reason: "message_transient"}
	}

	return Decision{Class: ClassTerminal, Reason: "unknown_terminal_default"}
}

// classifyPostgresCode maps SQLSTATE classes: serialization conflicts,
// deadlocks, resource exhaustion, and connectivity loss retry; constraint
// violations and everything else surface immediately.
func classifyPostgresCode(code string) Decision {
	switch code {
	case "40001", "40P01":
		return Decision{Class: ClassTransient, Reason: "pg_serialization"}
	case "57P03":
		return Decision{Class: ClassTransient, Reason: "pg_cannot_connect_now"}
	}
	if strings.HasPrefix(code, "53") {
		return Decision{Class: ClassTransient, Reason: "pg_insufficient_resources"}
	}
	if strings.HasPrefix(code, "08") {
		return Decision{Class: ClassTransient, Reason: "pg_connection"}
	}
	return Decision{Class: ClassTerminal, Reason: "pg_" + strings.ToLower(code)}
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"econnreset",
	"econnrefused",
	"too many requests",
	"rate limit",
	"http status 429",
	"http status 502",
	"http status 503",
	"http status 504",
	"server closed idle connection",
	"loading dataset",
	"i/o timeout",
}

var terminalMessageTokens = []string{
	"malformed payload",
	"unknown message kind",
	"invalid argument",
	"invalid params",
	"parse error",
	"not found",
	"constraint violation",
	"permission denied",
}
