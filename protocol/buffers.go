package protocol

// InputBuffer is a queue of received bytes the frame scanner consumes
// from the front.
type InputBuffer interface {
	Data() []byte
	Available() int
	Pop(n int)
}

// OutputBuffer collects encoded frames. Update patches the length bytes
// of a frame once its body is known.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer reads from a fixed byte slice.
type SliceInputBuffer struct {
	data []byte
}

func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte {
	return s.data
}

func (s *SliceInputBuffer) Available() int {
	return len(s.data)
}

func (s *SliceInputBuffer) Pop(n int) {
	s.data = s.data[min(n, len(s.data)):]
}

// ScratchOutput is a fixed MessageMax buffer. Writes past the end are
// dropped and reported by Overflowed until the next Reset.
type ScratchOutput struct {
	buf      [MessageMax]byte
	pos      int
	overflow bool
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
	if n < len(data) {
		s.overflow = true
	}
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos < 0 || pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns everything written since the last Reset.
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Overflowed reports whether any write was truncated.
func (s *ScratchOutput) Overflowed() bool {
	return s.overflow
}

func (s *ScratchOutput) Reset() {
	s.pos = 0
	s.overflow = false
}

// FifoBuffer queues serial input for the scanner. Unread bytes are kept
// contiguous so Data never copies; space is reclaimed by sliding them to
// the front when a write would run off the end.
type FifoBuffer struct {
	buf  []byte
	head int
	tail int
}

func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count.
func (f *FifoBuffer) Write(data []byte) int {
	if len(data) > len(f.buf)-f.tail && f.head > 0 {
		f.compact()
	}
	n := copy(f.buf[f.tail:], data)
	f.tail += n
	return n
}

// Read moves up to len(data) bytes out of the buffer.
func (f *FifoBuffer) Read(data []byte) int {
	n := copy(data, f.buf[f.head:f.tail])
	f.Pop(n)
	return n
}

func (f *FifoBuffer) Available() int {
	return f.tail - f.head
}

// Free returns how many bytes Write can still accept.
func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.Available()
}

// Data returns the unread bytes. The slice is valid until the next Write.
func (f *FifoBuffer) Data() []byte {
	return f.buf[f.head:f.tail]
}

func (f *FifoBuffer) Pop(n int) {
	f.head += min(n, f.Available())
	if f.head == f.tail {
		f.head, f.tail = 0, 0
	}
}

func (f *FifoBuffer) IsEmpty() bool {
	return f.head == f.tail
}

func (f *FifoBuffer) Reset() {
	f.head, f.tail = 0, 0
}

func (f *FifoBuffer) compact() {
	f.tail = copy(f.buf, f.buf[f.head:f.tail])
	f.head = 0
}
