package protocol

import "sync/atomic"

// BlockHandler runs one request block and returns the reply block.
type BlockHandler func(words []uint32) []uint32

// Transport is the device side of the link: it decodes request frames,
// runs the handler and frames each reply with the request's sequence.
type Transport struct {
	scanner       scanner
	output        OutputBuffer
	handler       BlockHandler
	flushCallback func() // Called after each reply frame
	frames        uint32 // atomic
	panics        uint32 // atomic
}

// NewTransport creates a new Transport instance
func NewTransport(output OutputBuffer, handler BlockHandler) *Transport {
	return &Transport{
		scanner: scanner{synchronized: true},
		output:  output,
		handler: handler,
	}
}

// Receive consumes every complete frame in input. Partial frames stay in
// the buffer for the next call.
func (t *Transport) Receive(input InputBuffer) {
	consumed := t.scanner.scan(input.Data(), t.handle)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

func (t *Transport) handle(b Block) {
	// A panicking handler drops its frame without a reply.
	defer func() {
		if r := recover(); r != nil {
			atomic.AddUint32(&t.panics, 1)
		}
	}()

	atomic.AddUint32(&t.frames, 1)
	var reply []uint32
	if t.handler != nil {
		reply = t.handler(b.Words)
	}
	if err := EncodeFrame(t.output, b.Sequence, reply); err != nil {
		t.scanner.dropped++
		return
	}
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// SetFlushCallback sets a callback that pushes buffered reply bytes out.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// Reset drops synchronization state, e.g. after the link reconnects.
func (t *Transport) Reset() {
	t.scanner = scanner{synchronized: true}
}

// Stats returns handled frames, frames dropped by decoding and handler
// panics.
func (t *Transport) Stats() (frames, dropped, panics uint32) {
	return atomic.LoadUint32(&t.frames), t.scanner.dropped, atomic.LoadUint32(&t.panics)
}
