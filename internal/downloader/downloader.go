// Package downloader implements the file-download chunk accumulator
// (spec §4.5): it consumes the streamed response to a block-read command
// and assembles a contiguous byte buffer, reporting progress as chunks
// arrive.
package downloader

import (
	"time"

	"github.com/hidock/jensen-client/internal/xerrors"
)

// ProgressFunc is invoked after each chunk with (received, total).
type ProgressFunc func(received, total uint32)

// Accumulator assembles a file download from a sequence of chunks whose
// total declared size is known in advance (spec §4.5).
type Accumulator struct {
	declaredSize uint32
	buf          []byte
	onProgress   ProgressFunc

	lastChunkAt time.Time
}

// NewAccumulator constructs an Accumulator for a file of declaredSize
// bytes (as sent in the TransferFile/GetFileBlock request body).
func NewAccumulator(declaredSize uint32, onProgress ProgressFunc) *Accumulator {
	return &Accumulator{
		declaredSize: declaredSize,
		buf:          make([]byte, 0, declaredSize),
		onProgress:   onProgress,
		lastChunkAt:  time.Now(),
	}
}

// Feed appends one chunk's data. It returns true once total_received has
// reached declaredSize (spec §4.5's accumulator rule: an empty chunk once
// the declared size is reached is the completion signal; extra bytes
// beyond the declared size are kept, not truncated, since the device's
// declaration is trusted only as a lower bound).
func (a *Accumulator) Feed(chunk []byte) (done bool) {
	a.lastChunkAt = time.Now()
	if len(chunk) == 0 {
		return uint32(len(a.buf)) >= a.declaredSize
	}
	a.buf = append(a.buf, chunk...)
	if a.onProgress != nil {
		a.onProgress(uint32(len(a.buf)), a.declaredSize)
	}
	return uint32(len(a.buf)) >= a.declaredSize
}

// Received returns the number of bytes accumulated so far.
func (a *Accumulator) Received() uint32 { return uint32(len(a.buf)) }

// SinceLastChunk reports how long it has been since the last non-empty or
// empty chunk was fed, used to enforce the 15-second per-chunk wait
// (spec §4.5, §5).
func (a *Accumulator) SinceLastChunk() time.Duration { return time.Since(a.lastChunkAt) }

// Bytes returns the contiguous accumulated buffer, exactly
// total_received bytes long (spec §4.5's output contract).
func (a *Accumulator) Bytes() []byte { return a.buf }

// Result is returned by the higher-level download orchestration in the
// jensen package; it is defined here so Accumulator's caller and its tests
// share one shape.
type Result struct {
	Data      []byte
	Cancelled bool
}

// TimeoutError builds the typed timeout error for a stalled per-chunk wait
// or an overall download timeout (spec §4.5: 60s overall, 15s per chunk).
func TimeoutError(context string) error {
	return xerrors.New(xerrors.KindTimeout, "download "+context, nil)
}
