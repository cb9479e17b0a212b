package downloader

import (
	"bytes"
	"testing"

	"github.com/hidock/jensen-client/internal/xerrors"
)

func TestAccumulatorFeedCompletesAtDeclaredSize(t *testing.T) {
	var progressed []uint32
	acc := NewAccumulator(10, func(received, total uint32) {
		progressed = append(progressed, received)
		if total != 10 {
			t.Errorf("onProgress total = %d, want 10", total)
		}
	})

	if done := acc.Feed([]byte("12345")); done {
		t.Fatal("expected done=false after 5/10 bytes")
	}
	if done := acc.Feed([]byte("67890")); !done {
		t.Fatal("expected done=true after 10/10 bytes")
	}
	if !bytes.Equal(acc.Bytes(), []byte("1234567890")) {
		t.Errorf("Bytes() = %q", acc.Bytes())
	}
	if len(progressed) != 2 || progressed[0] != 5 || progressed[1] != 10 {
		t.Errorf("progress callbacks = %v, want [5 10]", progressed)
	}
}

func TestAccumulatorEmptyChunkSignalsCompletionOnceDeclaredSizeReached(t *testing.T) {
	acc := NewAccumulator(3, nil)
	acc.Feed([]byte("abc"))
	if done := acc.Feed(nil); !done {
		t.Fatal("expected an empty chunk after reaching declared size to signal done")
	}
}

func TestAccumulatorEmptyChunkBeforeDeclaredSizeDoesNotSignalCompletion(t *testing.T) {
	acc := NewAccumulator(10, nil)
	acc.Feed([]byte("ab"))
	if done := acc.Feed(nil); done {
		t.Fatal("an empty chunk before declared size is reached must not signal done")
	}
}

func TestAccumulatorKeepsBytesBeyondDeclaredSize(t *testing.T) {
	acc := NewAccumulator(3, nil)
	done := acc.Feed([]byte("abcdef"))
	if !done {
		t.Fatal("expected done=true once received >= declared size")
	}
	if !bytes.Equal(acc.Bytes(), []byte("abcdef")) {
		t.Errorf("Bytes() = %q, want the full 6 bytes kept, not truncated to 3", acc.Bytes())
	}
}

func TestAccumulatorReceived(t *testing.T) {
	acc := NewAccumulator(100, nil)
	acc.Feed([]byte("hello"))
	if acc.Received() != 5 {
		t.Errorf("Received() = %d, want 5", acc.Received())
	}
}

func TestTimeoutErrorIsKindTimeout(t *testing.T) {
	err := TimeoutError("per-chunk wait")
	kind, ok := xerrors.KindOf(err)
	if !ok || kind != xerrors.KindTimeout {
		t.Errorf("KindOf(TimeoutError(...)) = (%v, %v), want (KindTimeout, true)", kind, ok)
	}
}
