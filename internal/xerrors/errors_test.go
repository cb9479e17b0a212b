package xerrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := fmt.Errorf("usb: short read")
	err := New(KindTimeout, "get_device_info", cause)
	want := "jensen: [timeout] get_device_info: usb: short read"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := New(KindProtocolError, "short response", nil)
	want := "jensen: [protocol_error] short response"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorsIsMatchesByKindNotMessage(t *testing.T) {
	err := New(KindTimeout, "some specific op timed out", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Error("expected errors.Is to match ErrTimeout by Kind regardless of Message")
	}
	if errors.Is(err, ErrConnectionLost) {
		t.Error("expected errors.Is to not match a different Kind's sentinel")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := New(KindProtocolError, "wrapped", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through to the wrapped cause")
	}
}

func TestKindOfExtractsKindFromWrappedError(t *testing.T) {
	err := fmt.Errorf("context: %w", New(KindCancelled, "aborted", nil))
	kind, ok := KindOf(err)
	if !ok || kind != KindCancelled {
		t.Errorf("KindOf = (%v, %v), want (KindCancelled, true)", kind, ok)
	}
}

func TestKindOfFalseForPlainError(t *testing.T) {
	_, ok := KindOf(fmt.Errorf("plain"))
	if ok {
		t.Error("expected KindOf to return false for a non-*Error")
	}
}

func TestKindStringValues(t *testing.T) {
	cases := map[Kind]string{
		KindDeviceNotFound:     "device_not_found",
		KindPermissionDenied:   "permission_denied",
		KindDeviceNotConnected: "device_not_connected",
		KindTimeout:            "timeout",
		KindTransportStalled:   "transport_stalled",
		KindConnectionLost:     "connection_lost",
		KindProtocolError:      "protocol_error",
		KindCancelled:          "cancelled",
		KindUnknown:            "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
