// Package toolerr defines the error taxonomy returned by every X1-Lens tool.
//
// Each error carries a Kind, a human readable Message and a Hint telling the
// caller what to try next. Errors are never retried internally.
package toolerr

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies a specific failure.
type Kind string

// Error kinds.
const (
	KindInvalidInput        Kind = "invalid_input"
	KindProgramNotFound     Kind = "program_not_found"
	KindInterfaceNotFound   Kind = "interface_not_found"
	KindAccountTypeNotFound Kind = "account_type_not_found"
	KindAccountNotFound     Kind = "account_not_found"
	KindDecode              Kind = "decode_error"
	KindDerivationExhausted Kind = "derivation_exhausted"
	KindUpstream            Kind = "upstream_failure"
)

// Category groups kinds into the five failure classes callers branch on.
type Category string

// Error categories.
const (
	CategoryInvalidInput        Category = "InvalidInput"
	CategoryNotFound            Category = "NotFound"
	CategoryDecodeError         Category = "DecodeError"
	CategoryDerivationExhausted Category = "DerivationExhausted"
	CategoryUpstreamFailure     Category = "UpstreamFailure"
)

// Category returns the failure class of k.
func (k Kind) Category() Category {
	switch k {
	case KindInvalidInput:
		return CategoryInvalidInput
	case KindProgramNotFound, KindInterfaceNotFound, KindAccountTypeNotFound, KindAccountNotFound:
		return CategoryNotFound
	case KindDecode:
		return CategoryDecodeError
	case KindDerivationExhausted:
		return CategoryDerivationExhausted
	default:
		return CategoryUpstreamFailure
	}
}

// Error is a classified tool failure.
type Error struct {
	Kind    Kind
	Message string
	Hint    string

	// Available lists valid names when a lookup by name failed.
	Available []string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Cause supports github.com/pkg/errors.Cause.
func (e *Error) Cause() error { return e.cause }

// Describe renders the message, the underlying cause and the hint as one
// block of text suitable for an agent.
func (e *Error) Describe() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	if len(e.Available) > 0 {
		b.WriteString(". Available: ")
		b.WriteString(strings.Join(e.Available, ", "))
	}
	if e.Hint != "" {
		b.WriteString(". ")
		b.WriteString(e.Hint)
	}
	return b.String()
}

// WithHint returns e with its hint replaced.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// New creates an error of the given kind with the default hint for that kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Hint:    defaultHints[kind],
	}
}

// Wrap classifies cause as kind.
func Wrap(cause error, kind Kind, format string, args ...interface{}) *Error {
	e := New(kind, format, args...)
	e.cause = cause
	return e
}

// InvalidInput reports a caller mistake.
func InvalidInput(format string, args ...interface{}) *Error {
	return New(KindInvalidInput, format, args...)
}

// Upstream reports a failure talking to the chain.
func Upstream(cause error, format string, args ...interface{}) *Error {
	return Wrap(cause, KindUpstream, format, args...)
}

// AccountTypeNotFound reports an unknown account type and lists the real ones.
func AccountTypeNotFound(name string, available []string) *Error {
	e := New(KindAccountTypeNotFound, "account type %q not found", name)
	e.Available = append([]string(nil), available...)
	return e
}

// From classifies any error. Errors that are already classified are returned
// as is; context errors and anything unknown become upstream failures.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Upstream(err, "request did not complete")
	}
	return Upstream(err, "unexpected failure")
}

// KindOf returns the kind of err, or the empty kind for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var defaultHints = map[Kind]string{
	KindInvalidInput:        "Check the input values and try again",
	KindProgramNotFound:     "No program is deployed at this address on the configured cluster. Verify the program id and cluster",
	KindInterfaceNotFound:   "The program exists but has not published an Anchor IDL on-chain, so its accounts cannot be decoded",
	KindAccountTypeNotFound: "Use list_account_types to see the account types this program defines",
	KindAccountNotFound:     "No account exists at this address. Use derive_pda or fetch_all_accounts to find valid addresses",
	KindDecode:              "The account data does not match this account type. Use get_account_structure to compare layouts or try another account type",
	KindDerivationExhausted: "No bump produced a valid address for these seeds. Check the seed values and their order with list_instructions",
	KindUpstream:            "The RPC endpoint failed. Try again later or configure another endpoint",
}
