package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent records one dispatched mailbox command for post-mortem dumps.
type TraceEvent struct {
	Op     Op     // Operation code (0 = empty slot)
	Bus    BusID  // Decoded sub-index
	Addr   uint32 // Address operand, if any
	Len    uint32 // Length operand, if any
	Status uint32 // Status written back, or StatusOK for ops without one
}

const (
	TraceRingSize = 32 // Keep the last 32 commands
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled bool

	traceRing     [TraceRingSize]TraceEvent
	traceRingHead uint8
	traceCount    uint32
)

// SetDebugWriter sets the platform-specific debug output function
// (UART on firmware, a logger on the host).
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(string) {}
	}
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled {
		debugPrintln(msg)
	}
}

// RecordTrace stores ev in the ring, overwriting the oldest entry.
func RecordTrace(ev TraceEvent) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	idx := traceRingHead
	traceRing[idx] = ev
	traceRingHead = (idx + 1) % TraceRingSize
	traceCount++
}

// Trace returns the recorded events, oldest first.
func Trace() []TraceEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	out := make([]TraceEvent, 0, TraceRingSize)
	start := traceRingHead
	for i := uint8(0); i < TraceRingSize; i++ {
		ev := traceRing[(start+i)%TraceRingSize]
		if ev.Op == 0 {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// DumpTrace writes the trace ring through the debug writer regardless of
// the debug enable flag.
func DumpTrace() {
	events := Trace()
	state := disableInterrupts()
	total := traceCount
	restoreInterrupts(state)

	debugPrintln("[TRACE] === Command Trace ===")
	debugPrintln("[TRACE] Total commands: " + utoa(total))
	for _, ev := range events {
		debugPrintln("[TRACE] " + ev.Op.String() +
			" bus=" + utoa(uint32(ev.Bus)) +
			" addr=0x" + hex8(uint8(ev.Addr)) +
			" len=" + utoa(ev.Len) +
			" status=0x" + hex32(ev.Status))
	}
	debugPrintln("[TRACE] === End Trace ===")
}

// ClearTrace empties the trace ring
func ClearTrace() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for i := range traceRing {
		traceRing[i] = TraceEvent{}
	}
	traceRingHead = 0
	traceCount = 0
}
