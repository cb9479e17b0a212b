// Package xerrors defines the structured error kind/type shared by every
// layer of the Jensen client (transport, dispatcher, downloader) and
// re-exported as the public jensen.Error/jensen.Kind API. It is a leaf
// package specifically so the lower layers (which need to construct typed
// errors) do not have to import the root jensen package, which would
// create an import cycle (jensen -> transport/dispatcher/... -> jensen).
package xerrors

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories a Client operation can fail with
// (spec §7).
type Kind int

const (
	// KindUnknown is the zero value; no error built by this package carries
	// it, and KindOf reports it for errors that are not a *Error.
	KindUnknown Kind = iota
	KindDeviceNotFound
	KindPermissionDenied
	KindDeviceNotConnected
	KindTimeout
	KindTransportStalled
	KindConnectionLost
	KindProtocolError
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindDeviceNotFound:
		return "device_not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindDeviceNotConnected:
		return "device_not_connected"
	case KindTimeout:
		return "timeout"
	case KindTransportStalled:
		return "transport_stalled"
	case KindConnectionLost:
		return "connection_lost"
	case KindProtocolError:
		return "protocol_error"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the structured error type returned by every jensen operation.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("jensen: [%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("jensen: [%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind, optionally wrapping cause.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is allows errors.Is(err, ErrTimeout) style sentinel matching by Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// Sentinel errors usable with errors.Is for the zero-data cases.
var (
	ErrDeviceNotFound     = &Error{Kind: KindDeviceNotFound, Message: "no matching device"}
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied, Message: "permission denied opening device"}
	ErrDeviceNotConnected = &Error{Kind: KindDeviceNotConnected, Message: "device not connected"}
	ErrTimeout            = &Error{Kind: KindTimeout, Message: "operation timed out"}
	ErrTransportStalled   = &Error{Kind: KindTransportStalled, Message: "endpoint halted"}
	ErrConnectionLost     = &Error{Kind: KindConnectionLost, Message: "connection lost"}
	ErrProtocolError      = &Error{Kind: KindProtocolError, Message: "protocol error"}
	ErrCancelled          = &Error{Kind: KindCancelled, Message: "operation cancelled"}
)

// KindOf extracts the Kind from err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindUnknown, false
}
