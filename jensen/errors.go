// Package jensen implements a client for the Jensen USB device protocol
// used by HiDock audio-recording devices.
package jensen

import "github.com/hidock/jensen-client/internal/xerrors"

// Error and Kind are re-exported from internal/xerrors, which holds the
// real definitions so the transport/dispatcher/downloader layers can
// construct these errors without importing this package (that would form
// an import cycle, since this package imports them to build Client).
type (
	Error = xerrors.Error
	Kind  = xerrors.Kind
)

const (
	// KindUnknown is the zero value; no error built by this package carries
	// it, and KindOf reports it for errors that are not a *Error.
	KindUnknown            = xerrors.KindUnknown
	KindDeviceNotFound     = xerrors.KindDeviceNotFound
	KindPermissionDenied   = xerrors.KindPermissionDenied
	KindDeviceNotConnected = xerrors.KindDeviceNotConnected
	KindTimeout            = xerrors.KindTimeout
	KindTransportStalled   = xerrors.KindTransportStalled
	KindConnectionLost     = xerrors.KindConnectionLost
	KindProtocolError      = xerrors.KindProtocolError
	KindCancelled          = xerrors.KindCancelled
)

// Sentinel errors usable with errors.Is for the zero-data cases.
var (
	ErrDeviceNotFound     = xerrors.ErrDeviceNotFound
	ErrPermissionDenied   = xerrors.ErrPermissionDenied
	ErrDeviceNotConnected = xerrors.ErrDeviceNotConnected
	ErrTimeout            = xerrors.ErrTimeout
	ErrTransportStalled   = xerrors.ErrTransportStalled
	ErrConnectionLost     = xerrors.ErrConnectionLost
	ErrProtocolError      = xerrors.ErrProtocolError
	ErrCancelled          = xerrors.ErrCancelled
)

// NewError builds an *Error of the given kind, optionally wrapping cause.
func NewError(kind Kind, message string, cause error) *Error {
	return xerrors.New(kind, message, cause)
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	return xerrors.KindOf(err)
}
