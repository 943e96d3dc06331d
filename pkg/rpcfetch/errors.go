package rpcfetch

import (
	"fmt"

	"github.com/pkg/errors"
)

// Package errors.
var (
	// ErrNoEndpoints is returned when no RPC endpoints are available.
	ErrNoEndpoints = errors.New("no RPC endpoints available")

	// ErrRateLimited is returned when the endpoint answered 429.
	ErrRateLimited = errors.New("rate limited by RPC endpoint")

	// ErrTooManyAccounts is returned when a batch exceeds MaxMultipleAccounts.
	ErrTooManyAccounts = errors.New("too many accounts in one request")

	// ErrRequestTimeout is returned when an RPC request times out.
	ErrRequestTimeout = errors.New("request timeout")
)

// RPCError represents a JSON-RPC error response.
type RPCError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// JSON-RPC error codes worth distinguishing.
const (
	CodeInvalidParams  = -32602
	CodeMethodNotFound = -32601

	// CodeScanLimit is returned by nodes that refuse large program scans.
	CodeScanLimit = -32010
)

// IsRetryable returns true if the error is likely transient and worth retrying
// by the caller.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrRequestTimeout) {
		return true
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case CodeInvalidParams, CodeMethodNotFound, CodeScanLimit:
			return false
		}
	}

	// Most other errors are potentially retryable
	return true
}
