// Package faults classifies engine errors so callers can decide between
// rejecting, retrying, and halting.
package faults

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an engine error.
type Kind uint8

const (
	// Unknown covers unclassified failures.
	Unknown Kind = iota
	// Validation is a caller fault: bad input, unknown asset, reused reference.
	Validation
	// NotReady means a dependent resource has not materialized yet; retryable.
	NotReady
	// ConfigurationDrift is fatal: the process configuration contradicts the
	// held key material. Nothing fund-moving may run.
	ConfigurationDrift
	// PaymentUnverified rejects issuance with zero side effects.
	PaymentUnverified
	// ExternalDependency means the ledger or database was unreachable before
	// any fund-moving effect; safe for the caller to retry.
	ExternalDependency
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotReady:
		return "not_ready"
	case ConfigurationDrift:
		return "configuration_drift"
	case PaymentUnverified:
		return "payment_unverified"
	case ExternalDependency:
		return "external_dependency"
	default:
		return "unknown"
	}
}

// Error carries a failure class along with the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and the operation that observed it.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure class of err, Unknown if unclassified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
