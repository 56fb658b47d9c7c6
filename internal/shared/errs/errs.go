// Package errs defines the broker's error taxonomy and its wire mapping.
//
// Every failure a caller can observe is one of the sentinels below, possibly
// wrapped with context via fmt.Errorf("...: %w", err). Collaborator failures
// keep the collaborator's error verbatim so the approval UI can show it.
//
// Error Kinds:
//   - UnknownChannel: channel name absent from the catalogue
//   - PayloadShape: payload failed decoding or validation
//   - OriginNotPermitted: caller lacks the capability the channel requires
//   - RequestNotFound: stale or duplicate approve/cancel
//   - UserRejected: the user cancelled the request
//   - Collaborator: signer, broadcaster or registry failed
//   - UnsupportedMethod, RateLimited, BrokerClosed
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownChannel     = errors.New("unknown channel")
	ErrPayloadShape       = errors.New("invalid payload")
	ErrOriginNotPermitted = errors.New("origin not permitted")
	ErrRequestNotFound    = errors.New("request no longer exists")
	ErrUserRejected       = errors.New("user rejected the request")
	ErrCollaborator       = errors.New("collaborator failure")
	ErrUnsupportedMethod  = errors.New("unsupported method")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrBrokerClosed       = errors.New("broker closed")
)

// Code is the stable, machine-readable error identifier sent on the wire.
type Code string

const (
	CodeUnknownChannel     Code = "unknown_channel"
	CodePayloadShape       Code = "payload_shape"
	CodeOriginNotPermitted Code = "origin_not_permitted"
	CodeRequestNotFound    Code = "request_not_found"
	CodeUserRejected       Code = "user_rejected"
	CodeCollaborator       Code = "collaborator_failure"
	CodeUnsupportedMethod  Code = "unsupported_method"
	CodeRateLimited        Code = "rate_limited"
	CodeBrokerClosed       Code = "broker_closed"
	CodeInternal           Code = "internal"
)

// EIP-1193 / JSON-RPC provider error codes, reported to page callers.
const (
	ProviderUserRejected      = 4001
	ProviderUnauthorized      = 4100
	ProviderUnsupportedMethod = 4200
	ProviderDisconnected      = 4900
	ProviderInvalidParams     = -32602
	ProviderInternal          = -32603
	ProviderLimitExceeded     = -32005
)

// CollaboratorError carries a collaborator's error verbatim.
type CollaboratorError struct {
	Op  string
	Err error
}

// Collaborator wraps err as a collaborator failure for operation op.
// A nil err returns nil.
func Collaborator(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Op: op, Err: err}
}

func (e *CollaboratorError) Error() string {
	return e.Err.Error()
}

func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaborator, e.Err}
}

// Shape wraps a decoding or validation error as a payload shape error.
func Shape(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPayloadShape, fmt.Sprintf(format, args...))
}

// CodeOf classifies err into a wire code.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownChannel):
		return CodeUnknownChannel
	case errors.Is(err, ErrPayloadShape):
		return CodePayloadShape
	case errors.Is(err, ErrOriginNotPermitted):
		return CodeOriginNotPermitted
	case errors.Is(err, ErrRequestNotFound):
		return CodeRequestNotFound
	case errors.Is(err, ErrCollaborator):
		return CodeCollaborator
	case errors.Is(err, ErrUserRejected):
		return CodeUserRejected
	case errors.Is(err, ErrUnsupportedMethod):
		return CodeUnsupportedMethod
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrBrokerClosed):
		return CodeBrokerClosed
	default:
		return CodeInternal
	}
}

// ProviderCodeOf maps err to the EIP-1193 code a page provider expects.
func ProviderCodeOf(err error) int {
	switch CodeOf(err) {
	case CodeUserRejected:
		return ProviderUserRejected
	case CodeOriginNotPermitted:
		return ProviderUnauthorized
	case CodeUnsupportedMethod, CodeUnknownChannel:
		return ProviderUnsupportedMethod
	case CodePayloadShape:
		return ProviderInvalidParams
	case CodeRateLimited:
		return ProviderLimitExceeded
	case CodeBrokerClosed:
		return ProviderDisconnected
	default:
		return ProviderInternal
	}
}

// Wire is the error object carried in an outbound envelope.
type Wire struct {
	Code         Code   `json:"code"`
	ProviderCode int    `json:"providerCode"`
	Message      string `json:"message"`
}

// ToWire converts err for transmission. Collaborator failures keep the
// collaborator's message unchanged.
func ToWire(err error) *Wire {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		msg = ce.Err.Error()
	}
	return &Wire{
		Code:         CodeOf(err),
		ProviderCode: ProviderCodeOf(err),
		Message:      msg,
	}
}
