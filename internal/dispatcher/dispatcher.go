// Package dispatcher serializes commands onto a Transport, assigns
// sequence ids, and correlates inbound packets to the waiter expecting
// them — including server-initiated streaming packets that share a
// command id but carry independent sequence ids (spec §4.3).
package dispatcher

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hidock/jensen-client/internal/framer"
	"github.com/hidock/jensen-client/internal/xerrors"
)

// Writer is the subset of transport.Transport the Dispatcher needs to send
// frames; accepting an interface keeps this package testable without a
// real USB device.
type Writer interface {
	Write(ctx context.Context, data []byte, timeout time.Duration) (int, error)
}

// Reader is the subset of transport.Transport the Dispatcher needs to pull
// bytes for framing.
type Reader interface {
	Read(ctx context.Context, maxLen int, timeout time.Duration) ([]byte, error)
}

// ReadWriter is the combined transport surface the Dispatcher drives.
type ReadWriter interface {
	Writer
	Reader
}

const defaultReadChunk = 64 * 1024

// Dispatcher is the sole owner of the inbound byte buffer and the
// transport handle; callers only ever interact through Exec/ExecStream/
// ExecStreamChunked (spec §5's shared-resource policy).
type Dispatcher struct {
	rw     ReadWriter
	fr     *framer.Framer
	logger *log.Logger

	txMu sync.Mutex // serializes send+await transactions (spec §4.3, §5)

	seq   uint32
	inbuf []byte

	commandsSent   uint64
	usbTimeouts    uint64
	connectionLost uint64
	protocolErrors uint64
}

// New constructs a Dispatcher over rw.
func New(rw ReadWriter, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{rw: rw, fr: framer.New(), logger: logger}
}

// Counters is a snapshot of the Dispatcher's error/command counters
// (spec §4.9's error counters feeding the retry-suppression threshold).
type Counters struct {
	CommandsSent   uint64
	USBTimeouts    uint64
	ConnectionLost uint64
	ProtocolErrors uint64
}

func (d *Dispatcher) Counters() Counters {
	return Counters{
		CommandsSent:   atomic.LoadUint64(&d.commandsSent),
		USBTimeouts:    atomic.LoadUint64(&d.usbTimeouts),
		ConnectionLost: atomic.LoadUint64(&d.connectionLost),
		ProtocolErrors: atomic.LoadUint64(&d.protocolErrors),
	}
}

// ResetErrorCounts clears all error counters. Replaces the source's
// randomized reset (spec §9); callers decide policy for when to call it.
func (d *Dispatcher) ResetErrorCounts() {
	atomic.StoreUint64(&d.usbTimeouts, 0)
	atomic.StoreUint64(&d.connectionLost, 0)
	atomic.StoreUint64(&d.protocolErrors, 0)
}

// nextSeq increments and returns the next sequence id, wrapping at 2^32
// (spec §4.3's "wrap at 2^32").
func (d *Dispatcher) nextSeq() uint32 {
	return atomic.AddUint32(&d.seq, 1)
}

// send serializes cmdID/body into a frame, writes it, and returns the
// sequence id assigned. Callers must hold no other in-flight transaction;
// use Exec/ExecStream below for the send+await pairing under the
// exclusion lock.
func (d *Dispatcher) send(ctx context.Context, cmdID uint16, body []byte, timeout time.Duration) (uint32, error) {
	seq := d.nextSeq()
	frame := framer.Build(cmdID, seq, body)
	if _, err := d.rw.Write(ctx, frame, timeout); err != nil {
		d.countTransferErr(err)
		return seq, err
	}
	atomic.AddUint64(&d.commandsSent, 1)
	return seq, nil
}

func (d *Dispatcher) countTransferErr(err error) {
	kind, _ := xerrors.KindOf(err)
	switch kind {
	case xerrors.KindTimeout:
		atomic.AddUint64(&d.usbTimeouts, 1)
	case xerrors.KindConnectionLost:
		atomic.AddUint64(&d.connectionLost, 1)
	default:
		atomic.AddUint64(&d.protocolErrors, 1)
	}
}

// Exec sends cmdID/body and waits for the matching response packet
// (spec §4.3's send path + receive path), serialized against any other
// in-flight transaction.
func (d *Dispatcher) Exec(ctx context.Context, cmdID uint16, body []byte, timeout time.Duration) (*framer.Packet, error) {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	seq, err := d.send(ctx, cmdID, body, timeout)
	if err != nil {
		return nil, err
	}
	return d.awaitResponse(ctx, seq, 0, timeout)
}

// ExecStream sends cmdID/body and then collects every packet carrying
// cmdID as a streaming response, concatenating bodies, until the quiet
// period or overall timeout elapses (spec §4.3's streaming collector).
// onPacket is invoked once per packet (not once per byte) so callers can
// do incremental parsing (the Stream Parsers component) without buffering
// the whole stream themselves; it may return a non-nil error to abort
// early (e.g. once a known file count is reached).
func (d *Dispatcher) ExecStream(ctx context.Context, cmdID uint16, body []byte, sendTimeout, overall time.Duration, quiet time.Duration, onPacket func(*framer.Packet) error) error {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	if _, err := d.send(ctx, cmdID, body, sendTimeout); err != nil {
		return err
	}
	return d.collectStream(ctx, cmdID, overall, quiet, onPacket)
}

// awaitResponse implements the receive path (spec §4.3): packets are
// accepted either by exact sequence match, or (if streamCmdID is nonzero)
// by command id. Non-matching packets are logged and discarded.
func (d *Dispatcher) awaitResponse(ctx context.Context, expectedSeq uint32, streamCmdID uint16, timeout time.Duration) (*framer.Packet, error) {
	deadline := time.Now().Add(timeout)
	for {
		select {
		case <-ctx.Done():
			return nil, xerrors.New(xerrors.KindCancelled, "await_response cancelled", ctx.Err())
		default:
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			atomic.AddUint64(&d.usbTimeouts, 1)
			return nil, xerrors.ErrTimeout
		}

		pkt, err := d.readOnePacket(ctx, remaining)
		if err != nil {
			if kind, ok := xerrors.KindOf(err); ok && kind == xerrors.KindCancelled {
				return nil, err
			}
			d.countTransferErr(err)
			return nil, err
		}
		if pkt == nil {
			// need_more: loop, yielding briefly to avoid busy-waiting
			// (spec §5's "~10ms between reads").
			select {
			case <-ctx.Done():
				return nil, xerrors.New(xerrors.KindCancelled, "await_response cancelled", ctx.Err())
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		if pkt.SeqID == expectedSeq || (streamCmdID != 0 && pkt.CmdID == streamCmdID) {
			return pkt, nil
		}
		d.logger.Printf("dispatcher: discarding unexpected packet cmd=%#02x seq=%d (expected seq=%d)", pkt.CmdID, pkt.SeqID, expectedSeq)
	}
}

// collectStream implements the streaming collector (spec §4.3): accepts
// every packet whose CmdID matches, invoking onPacket for each. It stops
// once at least one data-carrying packet has arrived and `quiet` has
// elapsed since collection started, or on the overall timeout (surfacing
// success rather than an error if data already arrived, per spec §4.3).
func (d *Dispatcher) collectStream(ctx context.Context, cmdID uint16, overall, quiet time.Duration, onPacket func(*framer.Packet) error) error {
	start := time.Now()
	deadline := start.Add(overall)
	haveData := false

	for {
		select {
		case <-ctx.Done():
			return xerrors.New(xerrors.KindCancelled, "collect_stream cancelled", ctx.Err())
		default:
		}

		if haveData && time.Since(start) >= quiet {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			if haveData {
				return nil
			}
			atomic.AddUint64(&d.usbTimeouts, 1)
			return xerrors.ErrTimeout
		}
		// Never wait past the quiet-period boundary once data has
		// arrived, so the heuristic actually takes effect.
		waitFor := remaining
		if haveData {
			if untilQuiet := quiet - time.Since(start); untilQuiet < waitFor {
				waitFor = untilQuiet
			}
		}

		pkt, err := d.readOnePacket(ctx, waitFor)
		if err != nil {
			if kind, ok := xerrors.KindOf(err); ok && kind == xerrors.KindTimeout && haveData {
				return nil
			}
			if kind, ok := xerrors.KindOf(err); ok && kind == xerrors.KindCancelled {
				return err
			}
			d.countTransferErr(err)
			return err
		}
		if pkt == nil {
			select {
			case <-ctx.Done():
				return xerrors.New(xerrors.KindCancelled, "collect_stream cancelled", ctx.Err())
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		if pkt.CmdID != cmdID {
			d.logger.Printf("dispatcher: discarding unexpected stream packet cmd=%#02x seq=%d", pkt.CmdID, pkt.SeqID)
			continue
		}
		haveData = true
		if err := onPacket(pkt); err != nil {
			return err
		}
	}
}

// ExecStreamChunked is the File Downloader's collection primitive (spec
// §4.5): unlike ExecStream's quiet-period heuristic (suited to the
// file-list stream, which trails off after one burst), a download keeps
// accepting packets as long as each one arrives within perChunkWait of the
// previous one, bounded by an overall deadline. Collection ends when
// onPacket returns a non-nil error (the accumulator signaling completion)
// or either timeout elapses.
func (d *Dispatcher) ExecStreamChunked(ctx context.Context, cmdID uint16, body []byte, sendTimeout, overall, perChunkWait time.Duration, onPacket func(*framer.Packet) error) error {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	if _, err := d.send(ctx, cmdID, body, sendTimeout); err != nil {
		return err
	}
	return d.collectStreamChunked(ctx, cmdID, overall, perChunkWait, onPacket)
}

func (d *Dispatcher) collectStreamChunked(ctx context.Context, cmdID uint16, overall, perChunkWait time.Duration, onPacket func(*framer.Packet) error) error {
	deadline := time.Now().Add(overall)
	lastChunk := time.Now()

	for {
		select {
		case <-ctx.Done():
			return xerrors.New(xerrors.KindCancelled, "collect_stream cancelled", ctx.Err())
		default:
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			atomic.AddUint64(&d.usbTimeouts, 1)
			return xerrors.ErrTimeout
		}
		untilChunkTimeout := perChunkWait - time.Since(lastChunk)
		waitFor := remaining
		if untilChunkTimeout < waitFor {
			waitFor = untilChunkTimeout
		}
		if waitFor <= 0 {
			atomic.AddUint64(&d.usbTimeouts, 1)
			return xerrors.ErrTimeout
		}

		pkt, err := d.readOnePacket(ctx, waitFor)
		if err != nil {
			if kind, ok := xerrors.KindOf(err); ok && kind == xerrors.KindCancelled {
				return err
			}
			d.countTransferErr(err)
			return err
		}
		if pkt == nil {
			select {
			case <-ctx.Done():
				return xerrors.New(xerrors.KindCancelled, "collect_stream cancelled", ctx.Err())
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		if pkt.CmdID != cmdID {
			d.logger.Printf("dispatcher: discarding unexpected stream packet cmd=%#02x seq=%d", pkt.CmdID, pkt.SeqID)
			continue
		}
		lastChunk = time.Now()
		if err := onPacket(pkt); err != nil {
			return err
		}
	}
}

// readOnePacket issues one bulk read (if the current buffer has no
// complete packet waiting), appends to the inbound buffer, and asks the
// Framer to parse. It returns (nil, nil) on need_more so callers can loop.
func (d *Dispatcher) readOnePacket(ctx context.Context, timeout time.Duration) (*framer.Packet, error) {
	if pkt, ok := d.tryParseBuffered(); ok {
		return pkt, nil
	}

	chunk, err := d.rw.Read(ctx, defaultReadChunk, timeout)
	if err != nil {
		return nil, err
	}
	d.inbuf = append(d.inbuf, chunk...)

	if pkt, ok := d.tryParseBuffered(); ok {
		return pkt, nil
	}
	return nil, nil
}

func (d *Dispatcher) tryParseBuffered() (*framer.Packet, bool) {
	res := d.fr.Parse(d.inbuf)
	if res.Discarded > 0 {
		d.inbuf = d.inbuf[res.Discarded:]
	}
	if res.NeedMore {
		return nil, false
	}
	// res.Consumed counts from the start of the buffer Parse was given,
	// which already included the res.Discarded prefix we just removed.
	d.inbuf = d.inbuf[res.Consumed-res.Discarded:]
	return res.Packet, true
}
