package protocol

import (
	"errors"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// serve runs a device-side transport over conn until it closes.
func serve(conn net.Conn, handler BlockHandler) {
	out := NewScratchOutput()
	fifo := NewFifoBuffer(2 * MessageMax)
	transport := NewTransport(out, handler)
	transport.SetFlushCallback(func() {
		_, _ = conn.Write(out.Result())
		out.Reset()
	})

	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			fifo.Write(buf[:n])
			transport.Receive(fifo)
		}
		if err != nil {
			return
		}
	}
}

func TestTransportReplyCarriesSequence(t *testing.T) {
	out := NewScratchOutput()
	var seen [][]uint32
	transport := NewTransport(out, func(words []uint32) []uint32 {
		seen = append(seen, words)
		return append([]uint32{0xFFFFFFFE}, words...)
	})

	req, _ := AppendFrame(0x1A, []uint32{7, 8})
	in := NewSliceInputBuffer(req)
	transport.Receive(in)

	if in.Available() != 0 {
		t.Errorf("Expected frame consumed, %d bytes left", in.Available())
	}
	if len(seen) != 1 {
		t.Fatalf("Expected handler to run once, ran %d times", len(seen))
	}

	block, _, err := DecodeFrame(out.Result())
	if err != nil {
		t.Fatalf("Reply does not decode: %v", err)
	}
	if block.Sequence != 0x1A {
		t.Errorf("Expected reply seq 0x1A, got 0x%02x", block.Sequence)
	}
	if diff := cmp.Diff([]uint32{0xFFFFFFFE, 7, 8}, block.Words); diff != "" {
		t.Errorf("Reply mismatch (-want +got):\n%s", diff)
	}
}

func TestTransportKeepsPartialFrame(t *testing.T) {
	out := NewScratchOutput()
	calls := 0
	transport := NewTransport(out, func(words []uint32) []uint32 {
		calls++
		return words
	})

	req, _ := AppendFrame(MessageDest, []uint32{1, 2, 3})
	fifo := NewFifoBuffer(256)
	fifo.Write(req[:4])
	transport.Receive(fifo)
	if calls != 0 || fifo.Available() != 4 {
		t.Fatalf("Partial frame must wait: calls=%d available=%d", calls, fifo.Available())
	}

	fifo.Write(req[4:])
	transport.Receive(fifo)
	if calls != 1 || fifo.Available() != 0 {
		t.Errorf("Expected frame handled once completed: calls=%d available=%d", calls, fifo.Available())
	}
}

func TestTransportRecoversFromPanic(t *testing.T) {
	out := NewScratchOutput()
	transport := NewTransport(out, func(words []uint32) []uint32 {
		if len(words) == 1 && words[0] == 0xDEAD {
			panic("boom")
		}
		return words
	})

	bad, _ := AppendFrame(0x10, []uint32{0xDEAD})
	good, _ := AppendFrame(0x11, []uint32{1})
	transport.Receive(NewSliceInputBuffer(bad))
	transport.Receive(NewSliceInputBuffer(good))

	frames, _, panics := transport.Stats()
	if frames != 2 || panics != 1 {
		t.Errorf("Expected 2 frames and 1 panic, got %d and %d", frames, panics)
	}
	block, _, err := DecodeFrame(out.Result())
	if err != nil || block.Sequence != 0x11 {
		t.Errorf("Expected only the good frame answered, got %+v err=%v", block, err)
	}
}

func TestHostTransportCall(t *testing.T) {
	host, device := net.Pipe()
	go serve(device, func(words []uint32) []uint32 {
		reply := make([]uint32, len(words))
		for i, w := range words {
			reply[i] = w + 1
		}
		return reply
	})

	ht := NewHostTransport(host)
	defer ht.Close()

	for i := uint32(0); i < 20; i++ {
		reply, err := ht.Call([]uint32{i, i * 2}, time.Second)
		if err != nil {
			t.Fatalf("Call %d failed: %v", i, err)
		}
		if diff := cmp.Diff([]uint32{i + 1, i*2 + 1}, reply); diff != "" {
			t.Errorf("Call %d reply mismatch (-want +got):\n%s", i, diff)
		}
	}
	device.Close()
}

func TestHostTransportTimeout(t *testing.T) {
	host, device := net.Pipe()
	go func() {
		_, _ = io.Copy(io.Discard, device)
	}()

	ht := NewHostTransport(host)
	defer ht.Close()

	_, err := ht.Call([]uint32{1}, 20*time.Millisecond)
	if !errors.Is(err, ErrReplyTimeout) {
		t.Errorf("Expected ErrReplyTimeout, got %v", err)
	}
}

func TestHostTransportClosed(t *testing.T) {
	host, device := net.Pipe()
	defer device.Close()
	go func() {
		_, _ = io.Copy(io.Discard, device)
	}()

	ht := NewHostTransport(host)
	if err := ht.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := ht.Call([]uint32{1}, time.Second); err == nil {
		t.Error("Expected an error after Close")
	}
	// Close is idempotent.
	if err := ht.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

// brokenPort accepts writes and fails every read like an unplugged adapter.
type brokenPort struct{}

func (brokenPort) Read([]byte) (int, error)    { return 0, syscall.EIO }
func (brokenPort) Write(p []byte) (int, error) { return len(p), nil }
func (brokenPort) Close() error                { return nil }

func TestHostTransportReadErrorIsFatal(t *testing.T) {
	ht := NewHostTransport(brokenPort{})
	defer ht.Close()

	_, err := ht.Call([]uint32{1}, 5*time.Second)
	if !errors.Is(err, ErrTransportClosed) {
		t.Fatalf("Expected ErrTransportClosed, got %v", err)
	}
	if !errors.Is(ht.Err(), syscall.EIO) {
		t.Errorf("Expected EIO as the read error, got %v", ht.Err())
	}
}

func TestHostTransportDiscardsStaleReply(t *testing.T) {
	host, device := net.Pipe()
	ht := NewHostTransport(host)
	defer ht.Close()

	// A reply carrying the sequence the next call will use, left over
	// from a call that gave up.
	stale, err := AppendFrame(MessageDest, []uint32{0xDEAD})
	if err != nil {
		t.Fatalf("AppendFrame: %v", err)
	}
	go func() {
		_, _ = device.Write(stale)
		serve(device, func(words []uint32) []uint32 { return words })
	}()

	deadline := time.Now().Add(time.Second)
	for len(ht.replies) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Stale reply never queued")
		}
		time.Sleep(time.Millisecond)
	}

	reply, err := ht.Call([]uint32{7}, time.Second)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if diff := cmp.Diff([]uint32{7}, reply); diff != "" {
		t.Errorf("Reply mismatch (-want +got):\n%s", diff)
	}
	device.Close()
}
