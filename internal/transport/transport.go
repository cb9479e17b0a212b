// Package transport implements the USB bulk-pipe transport for a Jensen
// device: enumeration by vendor/product filter, interface claim, bulk
// IN/OUT transfers, and halt recovery (spec §4.1, §6.1).
package transport

import (
	"context"
	"log"
	"time"

	"github.com/google/gousb"

	"github.com/hidock/jensen-client/internal/xerrors"
)

// ReadBufferSize is the size of the bulk-IN read buffer (spec §4.1).
const ReadBufferSize = 64 * 1024

// Filter identifies one (vendor, product) pair to match against connected
// devices.
type Filter struct {
	Vendor  gousb.ID
	Product gousb.ID
}

// Config parameterizes which interface/endpoints the Transport claims
// (spec §6.1: defaults are interface 0, config 1, OUT endpoint 1, IN
// endpoint 2; the numbers are configuration, not hardcoded constants).
type Config struct {
	Filters       []Filter
	ConfigNum     int
	InterfaceNum  int
	OutEndpoint   int
	InEndpoint    int
}

// DefaultConfig returns the documented defaults for HiDock devices
// (spec §6.1).
func DefaultConfig() Config {
	return Config{
		Filters: []Filter{
			{Vendor: 0x10D6, Product: 0xAF0C}, // HiDock H1 default
			{Vendor: 0x10D6, Product: 0xAF0D}, // HiDock H1E
			{Vendor: 0x10D6, Product: 0xAF0E}, // HiDock P1
			{Vendor: 0x1A86, Product: 0xAF0C}, // bridge IC variant
		},
		ConfigNum:    1,
		InterfaceNum: 0,
		OutEndpoint:  1,
		InEndpoint:   2,
	}
}

// Transport owns the USB device handle and its claimed interface.
type Transport struct {
	cfg    Config
	logger *log.Logger

	ctx    *gousb.Context
	dev    *gousb.Device
	devCfg *gousb.Config
	intf   *gousb.Interface
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint

	stallRecoveries int
}

// New constructs a Transport bound to cfg. Open must be called before use.
func New(cfg Config, logger *log.Logger) *Transport {
	if logger == nil {
		logger = log.Default()
	}
	return &Transport{cfg: cfg, logger: logger}
}

// Open enumerates devices matching the configured filters, opens the first
// match, sets the configuration, and claims the interface (spec §4.1).
func (t *Transport) Open() error {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		for _, f := range t.cfg.Filters {
			if desc.Vendor == f.Vendor && desc.Product == f.Product {
				return true
			}
		}
		return false
	})
	if err != nil {
		ctx.Close()
		return xerrors.New(xerrors.KindDeviceNotFound, "enumerating USB devices", err)
	}
	if len(devs) == 0 {
		ctx.Close()
		return xerrors.ErrDeviceNotFound
	}
	// Close every match but the first; OpenDevices already opened them all.
	for _, extra := range devs[1:] {
		extra.Close()
	}
	dev := devs[0]

	devCfg, err := dev.Config(t.cfg.ConfigNum)
	if err != nil {
		dev.Close()
		ctx.Close()
		return translateOpenErr("setting USB configuration", err)
	}

	intf, err := devCfg.Interface(t.cfg.InterfaceNum, 0)
	if err != nil {
		devCfg.Close()
		dev.Close()
		ctx.Close()
		return translateOpenErr("claiming USB interface", err)
	}

	epOut, err := intf.OutEndpoint(t.cfg.OutEndpoint)
	if err != nil {
		intf.Close()
		devCfg.Close()
		dev.Close()
		ctx.Close()
		return xerrors.New(xerrors.KindProtocolError, "opening OUT endpoint", err)
	}
	epIn, err := intf.InEndpoint(t.cfg.InEndpoint)
	if err != nil {
		intf.Close()
		devCfg.Close()
		dev.Close()
		ctx.Close()
		return xerrors.New(xerrors.KindProtocolError, "opening IN endpoint", err)
	}

	t.ctx, t.dev, t.devCfg, t.intf = ctx, dev, devCfg, intf
	t.epOut, t.epIn = epOut, epIn
	t.logger.Printf("transport: opened device vid=%#04x pid=%#04x", dev.Desc.Vendor, dev.Desc.Product)
	return nil
}

func translateOpenErr(op string, err error) error {
	// gousb surfaces OS permission failures as generic errors; string
	// matching is the only signal libusb exposes here.
	msg := err.Error()
	if contains(msg, "permission") || contains(msg, "access") {
		return xerrors.New(xerrors.KindPermissionDenied, op, err)
	}
	if contains(msg, "busy") {
		return xerrors.New(xerrors.KindConnectionLost, op+" (device busy)", err)
	}
	return xerrors.New(xerrors.KindProtocolError, op, err)
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// SerialNumber reads the device's USB string descriptor for its serial
// number, when available (used as a fallback identity alongside the
// protocol-level serial in DeviceInfo).
func (t *Transport) SerialNumber() (string, error) {
	if t.dev == nil {
		return "", xerrors.ErrDeviceNotConnected
	}
	return t.dev.SerialNumber()
}

// Write performs one bulk OUT transfer with the given timeout.
func (t *Transport) Write(ctx context.Context, data []byte, timeout time.Duration) (int, error) {
	if t.epOut == nil {
		return 0, xerrors.ErrDeviceNotConnected
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := t.epOut.WriteContext(wctx, data)
	if err != nil {
		return n, t.translateTransferErr("write", err)
	}
	return n, nil
}

// Read performs one bulk IN transfer into a buffer of size maxLen, with the
// given timeout.
func (t *Transport) Read(ctx context.Context, maxLen int, timeout time.Duration) ([]byte, error) {
	if t.epIn == nil {
		return nil, xerrors.ErrDeviceNotConnected
	}
	buf := make([]byte, maxLen)
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := t.epIn.ReadContext(rctx, buf)
	if err != nil {
		return nil, t.translateTransferErr("read", err)
	}
	return buf[:n], nil
}

// translateTransferErr classifies a transfer failure and, on a stall,
// attempts one halt-clear before surfacing a typed error (spec §4.1's
// policy: "On stalled, clear the halt on the affected endpoint once; if it
// recurs, surface protocol_error").
func (t *Transport) translateTransferErr(op string, err error) error {
	if err == context.DeadlineExceeded {
		return xerrors.New(xerrors.KindTimeout, op+" timed out", err)
	}
	msg := err.Error()
	if contains(msg, "stall") || contains(msg, "halt") {
		if t.stallRecoveries == 0 {
			t.stallRecoveries++
			if clearErr := t.clearHalt(); clearErr == nil {
				return xerrors.New(xerrors.KindTransportStalled, op+" stalled, halt cleared", err)
			}
		}
		return xerrors.New(xerrors.KindProtocolError, op+" stalled repeatedly", err)
	}
	if contains(msg, "no device") || contains(msg, "disconnected") || contains(msg, "no such device") {
		return xerrors.New(xerrors.KindConnectionLost, op+" device disconnected", err)
	}
	return xerrors.New(xerrors.KindConnectionLost, op+" transfer failed", err)
}

// clearHalt issues the standard USB CLEAR_FEATURE(ENDPOINT_HALT) control
// request against the IN endpoint. gousb does not expose a dedicated
// clear-halt call; this is the standard control-transfer encoding for it.
func (t *Transport) clearHalt() error {
	if t.dev == nil {
		return xerrors.ErrDeviceNotConnected
	}
	const (
		reqTypeEndpointOut = 0x02 // host-to-device, standard, endpoint recipient
		reqClearFeature    = 0x01
		featureEndpointHalt = 0x00
	)
	epAddr := uint16(0x80 | t.cfg.InEndpoint)
	_, err := t.dev.Control(reqTypeEndpointOut, reqClearFeature, featureEndpointHalt, epAddr, nil)
	if err != nil {
		t.logger.Printf("transport: clear-halt failed: %v", err)
		return err
	}
	t.logger.Printf("transport: cleared halt on endpoint %#02x", epAddr)
	return nil
}

// Close releases the interface and closes the device; idempotent.
func (t *Transport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.devCfg != nil {
		t.devCfg.Close()
		t.devCfg = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	t.epOut, t.epIn = nil, nil
	return nil
}

// IsOpen reports whether the transport currently holds a claimed interface.
func (t *Transport) IsOpen() bool { return t.intf != nil }

// Probe checks whether a device matching the configured filters is still
// present, used by the Connection Lifecycle's disconnect-polling check
// (spec §4.1: "Disconnection is detected either by transfer error or by a
// polling check").
func (t *Transport) Probe() bool {
	ctx := gousb.NewContext()
	defer ctx.Close()
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		for _, f := range t.cfg.Filters {
			if desc.Vendor == f.Vendor && desc.Product == f.Product {
				return true
			}
		}
		return false
	})
	if err != nil {
		return false
	}
	for _, d := range devs {
		d.Close()
	}
	return len(devs) > 0
}
