package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

var (
	ErrTransportClosed = errors.New("protocol: transport closed")
	ErrReplyTimeout    = errors.New("protocol: reply timeout")
)

// DefaultCallTimeout bounds a Call made without an explicit timeout.
const DefaultCallTimeout = 2 * time.Second

// HostTransport is the host side of the link. Calls are serialized; each
// writes one request frame and waits for the reply carrying its sequence.
type HostTransport struct {
	port  io.ReadWriteCloser
	clock clock.Clock

	callMutex sync.Mutex
	seq       uint8

	readMutex   sync.Mutex
	inputBuffer *FifoBuffer
	scanner     scanner
	replies     chan Block

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}

	errMutex sync.Mutex
	readErr  error
}

// NewHostTransport starts a transport over port with the wall clock.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	return NewHostTransportWithClock(port, clock.New())
}

// NewHostTransportWithClock starts a transport whose reply timeouts run on
// clk.
func NewHostTransportWithClock(port io.ReadWriteCloser, clk clock.Clock) *HostTransport {
	t := &HostTransport{
		port:        port,
		clock:       clk,
		seq:         MessageDest,
		inputBuffer: NewFifoBuffer(2 * MessageMax),
		scanner:     scanner{synchronized: true},
		replies:     make(chan Block, 4),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}

	go t.readLoop()

	return t
}

// Call sends words and returns the reply block's words. Replies queued
// by earlier calls that timed out are discarded first. The sequence
// counter is 4 bits, so a reply delayed past 16 further calls can still be
// taken for the current one.
func (t *HostTransport) Call(words []uint32, timeout time.Duration) ([]uint32, error) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	t.callMutex.Lock()
	defer t.callMutex.Unlock()

	seq := t.seq
	t.seq = NextSequence(seq)

drain:
	for {
		select {
		case <-t.replies:
		default:
			break drain
		}
	}

	frame, err := AppendFrame(seq, words)
	if err != nil {
		return nil, fmt.Errorf("failed to build frame: %w", err)
	}
	if err := t.writeFrame(frame); err != nil {
		return nil, fmt.Errorf("failed to write frame: %w", err)
	}

	timer := t.clock.Timer(timeout)
	defer timer.Stop()
	for {
		select {
		case b := <-t.replies:
			if b.Sequence != seq {
				// Late reply to an earlier call that timed out.
				continue
			}
			return b.Words, nil

		case <-timer.C:
			return nil, fmt.Errorf("%w after %v (seq 0x%02x)", ErrReplyTimeout, timeout, seq)

		case <-t.doneChan:
			if err := t.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrTransportClosed, err)
			}
			return nil, ErrTransportClosed
		}
	}
}

func (t *HostTransport) writeFrame(frame []byte) error {
	n, err := t.port.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(frame))
	}
	return nil
}

// readLoop continuously reads from the port and queues decoded replies.
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			t.inputBuffer.Write(buffer[:n])
			t.processInput()
		}
		if err != nil {
			// Serial ports report read timeouts as EOF; keep polling.
			// Anything else means the port is gone.
			if !errors.Is(err, io.EOF) || t.stopped() {
				t.setErr(err)
				return
			}
			select {
			case <-t.stopChan:
				t.setErr(err)
				return
			case <-t.clock.After(10 * time.Millisecond):
			}
		}
	}
}

func (t *HostTransport) processInput() {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	consumed := t.scanner.scan(t.inputBuffer.Data(), func(b Block) {
		select {
		case t.replies <- b:
		default:
			// Nobody is waiting; drop the oldest reply.
			select {
			case <-t.replies:
			default:
			}
			t.replies <- b
		}
	})
	t.inputBuffer.Pop(consumed)
}

func (t *HostTransport) stopped() bool {
	select {
	case <-t.stopChan:
		return true
	default:
		return false
	}
}

func (t *HostTransport) setErr(err error) {
	t.errMutex.Lock()
	defer t.errMutex.Unlock()
	if t.readErr == nil {
		t.readErr = err
	}
}

// Err returns the error that ended the read loop, if any.
func (t *HostTransport) Err() error {
	t.errMutex.Lock()
	defer t.errMutex.Unlock()
	return t.readErr
}

// Dropped returns how many frames failed to decode.
func (t *HostTransport) Dropped() uint32 {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()
	return t.scanner.dropped
}

// Close stops the read loop and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}
