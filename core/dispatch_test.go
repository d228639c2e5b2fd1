package core_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"i2cmb/core"
	"i2cmb/sim"
)

// recordingDriver logs every call and returns canned results.
type recordingDriver struct {
	calls   []string
	readOut []byte
	err     error
	n       int
}

func (d *recordingDriver) Enable(id core.BusID) error {
	d.calls = append(d.calls, "enable")
	return d.err
}

func (d *recordingDriver) SetClock(id core.BusID, baud uint32) error {
	d.calls = append(d.calls, "set_clock")
	return d.err
}

func (d *recordingDriver) Disable(id core.BusID) error {
	d.calls = append(d.calls, "disable")
	return d.err
}

func (d *recordingDriver) Read(id core.BusID, addr core.Address, p []byte) (int, error) {
	d.calls = append(d.calls, "read")
	n := copy(p, d.readOut)
	if d.err != nil {
		n = d.n
	}
	return n, d.err
}

func (d *recordingDriver) Write(id core.BusID, addr core.Address, p []byte) (int, error) {
	d.calls = append(d.calls, "write")
	return len(p), d.err
}

func mailbox(op core.Op, sub uint32, operands ...uint32) core.Mailbox {
	mb := make(core.Mailbox, core.MailboxWords)
	mb[core.SlotCommand] = uint32(core.CommandWord(op, sub))
	copy(mb[core.SlotAddr:], operands)
	return mb
}

func TestDispatchRoutesExactlyOneOperation(t *testing.T) {
	testCases := []struct {
		op       core.Op
		operands []uint32
		expected string
	}{
		{core.OpEnable, nil, "enable"},
		{core.OpSetClock, []uint32{400000}, "set_clock"},
		{core.OpDisable, nil, "disable"},
		{core.OpRead, []uint32{0x50, 4}, "read"},
		{core.OpWrite, []uint32{0x50, 4}, "write"},
	}

	for _, tc := range testCases {
		drv := &recordingDriver{}
		d := core.NewDispatcher(drv)
		if err := d.Dispatch(mailbox(tc.op, 0, tc.operands...)); err != nil {
			t.Errorf("%v: unexpected error %v", tc.op, err)
		}
		if diff := cmp.Diff([]string{tc.expected}, drv.calls); diff != "" {
			t.Errorf("%v: call mismatch (-want +got):\n%s", tc.op, diff)
		}
	}
}

func TestDispatchUnknownOpLeavesMailbox(t *testing.T) {
	for _, op := range []core.Op{0, 4, 6, 7, 9, 0xFFF} {
		drv := &recordingDriver{}
		d := core.NewDispatcher(drv)
		mb := mailbox(op, 0, 0x50, 4, 0xCAFEBABE)
		before := append(core.Mailbox(nil), mb...)

		if err := d.Dispatch(mb); !errors.Is(err, core.ErrUnknownOp) {
			t.Errorf("op %d: expected ErrUnknownOp, got %v", op, err)
		}
		if len(drv.calls) != 0 {
			t.Errorf("op %d: driver must not be called, got %v", op, drv.calls)
		}
		if diff := cmp.Diff(before, mb); diff != "" {
			t.Errorf("op %d: mailbox changed (-before +after):\n%s", op, diff)
		}
	}
}

func TestDispatchStatusWriteBack(t *testing.T) {
	testCases := []struct {
		err    error
		status uint32
	}{
		{nil, core.StatusOK},
		{core.ErrOutOfRange, core.StatusOutOfRange},
		{&core.NackError{Phase: core.PhaseData, Address: 0x50, Byte: 1}, core.StatusNack},
		{core.ErrTimeout, core.StatusTimeout},
	}

	for _, tc := range testCases {
		for _, op := range []core.Op{core.OpRead, core.OpWrite} {
			drv := &recordingDriver{err: tc.err}
			mb := mailbox(op, 0, 0x50, 2)
			_ = core.NewDispatcher(drv).Dispatch(mb)
			if mb[core.SlotAddr] != tc.status {
				t.Errorf("%v with %v: expected status 0x%08X, got 0x%08X", op, tc.err, tc.status, mb[core.SlotAddr])
			}
		}
	}
}

func TestDispatchControlOpsWriteNoStatus(t *testing.T) {
	drv := &recordingDriver{err: core.ErrOutOfRange}
	mb := mailbox(core.OpSetClock, 9, 100000)

	if err := core.NewDispatcher(drv).Dispatch(mb); !errors.Is(err, core.ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange, got %v", err)
	}
	if mb[core.SlotAddr] != 100000 {
		t.Errorf("set_clock must not overwrite its operand, got %d", mb[core.SlotAddr])
	}
}

func TestDispatchInvalidOperands(t *testing.T) {
	drv := &recordingDriver{}
	mb := mailbox(core.OpRead, 0, 0x50, 0)

	if err := core.NewDispatcher(drv).Dispatch(mb); !errors.Is(err, core.ErrInvalidLength) {
		t.Errorf("Expected ErrInvalidLength, got %v", err)
	}
	if mb[core.SlotAddr] != core.StatusInvalid {
		t.Errorf("Expected StatusInvalid, got 0x%08X", mb[core.SlotAddr])
	}
	if len(drv.calls) != 0 {
		t.Errorf("Driver must not be called, got %v", drv.calls)
	}
}

func TestDispatchReadPacksData(t *testing.T) {
	drv := &recordingDriver{readOut: []byte{0x11, 0x22, 0x33, 0x44, 0x55}}
	mb := mailbox(core.OpRead, 0, 0x50, 5)

	if err := core.NewDispatcher(drv).Dispatch(mb); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	want := []uint32{0x44332211, 0x55}
	if diff := cmp.Diff(want, []uint32(mb[core.SlotData:core.SlotData+2])); diff != "" {
		t.Errorf("Packed data mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchAgainstSimulatedBus(t *testing.T) {
	space := sim.NewSpace()
	ctrl := space.AddController(0x8000)
	dev := sim.NewEchoDevice(0x1D)
	ctrl.Attach(dev)
	buses, err := core.NewBusTable(0x8000)
	if err != nil {
		t.Fatalf("NewBusTable: %v", err)
	}
	m, err := core.NewMaster(space, core.MasterConfig{Buses: buses})
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	d := core.NewDispatcher(m)

	if err := d.Dispatch(mailbox(core.OpEnable, 0)); err != nil {
		t.Fatalf("enable: %v", err)
	}

	payload := []byte("mailbox")
	mb := mailbox(core.OpWrite, 0, 0x1D, uint32(len(payload)))
	core.PackBytes(mb[core.SlotData:], payload)
	if err := d.Dispatch(mb); err != nil || mb[core.SlotAddr] != core.StatusOK {
		t.Fatalf("write: err=%v status=0x%08X", err, mb[core.SlotAddr])
	}
	if !bytes.Equal(dev.Data(), payload) {
		t.Errorf("Device got %q", dev.Data())
	}

	mb = mailbox(core.OpRead, 0, 0x1D, uint32(len(payload)))
	if err := d.Dispatch(mb); err != nil || mb[core.SlotAddr] != core.StatusOK {
		t.Fatalf("read: err=%v status=0x%08X", err, mb[core.SlotAddr])
	}
	if got := core.UnpackBytes(mb[core.SlotData:], len(payload)); !bytes.Equal(got, payload) {
		t.Errorf("Expected %q, got %q", payload, got)
	}

	// The bus selector only picks among configured buses.
	mb = mailbox(core.OpRead, 1, 0x1D, 1)
	if err := d.Dispatch(mb); !errors.Is(err, core.ErrOutOfRange) || mb[core.SlotAddr] != core.StatusOutOfRange {
		t.Errorf("Expected out of range status, got err=%v status=0x%08X", err, mb[core.SlotAddr])
	}
}

func TestTraceRecordsDispatches(t *testing.T) {
	core.ClearTrace()
	drv := &recordingDriver{}
	d := core.NewDispatcher(drv)

	_ = d.Dispatch(mailbox(core.OpEnable, 0))
	_ = d.Dispatch(mailbox(core.OpWrite, 0, 0x42, 3))

	got := core.Trace()
	want := []core.TraceEvent{
		{Op: core.OpEnable},
		{Op: core.OpWrite, Addr: 0x42, Len: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Trace mismatch (-want +got):\n%s", diff)
	}

	var lines []string
	core.SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer core.SetDebugWriter(nil)
	core.DumpTrace()
	if len(lines) != 5 || !strings.Contains(lines[4], "End Trace") {
		t.Errorf("Unexpected dump: %q", lines)
	}
}

func TestTraceRingWraps(t *testing.T) {
	core.ClearTrace()
	for i := 0; i < core.TraceRingSize+5; i++ {
		core.RecordTrace(core.TraceEvent{Op: core.OpRead, Len: uint32(i)})
	}

	got := core.Trace()
	if len(got) != core.TraceRingSize {
		t.Fatalf("Expected %d events, got %d", core.TraceRingSize, len(got))
	}
	if got[0].Len != 5 || got[len(got)-1].Len != core.TraceRingSize+4 {
		t.Errorf("Expected oldest-first window 5..%d, got %d..%d",
			core.TraceRingSize+4, got[0].Len, got[len(got)-1].Len)
	}
}

func TestHandleBlock(t *testing.T) {
	drv := &recordingDriver{err: core.ErrTimeout}
	d := core.NewDispatcher(drv)

	reply := d.HandleBlock([]uint32{uint32(core.CommandWord(core.OpEnable, 0))})
	if len(reply) != 2 || reply[1] != core.StatusTimeout {
		t.Errorf("Expected enable reply with timeout trailer, got %#v", reply)
	}

	reply = d.HandleBlock([]uint32{uint32(core.CommandWord(core.Op(99), 0)), 7})
	if diff := cmp.Diff([]uint32{uint32(core.CommandWord(core.Op(99), 0)), 7, core.StatusInvalid}, reply); diff != "" {
		t.Errorf("Unknown op reply mismatch (-want +got):\n%s", diff)
	}

	reply = d.HandleBlock(nil)
	dict := string(core.UnpackBytes(reply[1:], int(reply[0])))
	if dict != d.Ops().Dictionary() {
		t.Errorf("Expected dictionary %q, got %q", d.Ops().Dictionary(), dict)
	}
}

func newSimDispatcher(t *testing.T) (*core.Dispatcher, *sim.EchoDevice) {
	t.Helper()
	space := sim.NewSpace()
	ctrl := space.AddController(0x8000)
	dev := sim.NewEchoDevice(0x1D)
	ctrl.Attach(dev)
	buses, err := core.NewBusTable(0x8000)
	if err != nil {
		t.Fatalf("NewBusTable: %v", err)
	}
	m, err := core.NewMaster(space, core.MasterConfig{Buses: buses})
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	if err := m.Enable(0); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	return core.NewDispatcher(m), dev
}

func TestHandleBlockRejectsOversizedBlock(t *testing.T) {
	d, dev := newSimDispatcher(t)

	words := make([]uint32, core.MailboxWords+4)
	words[core.SlotCommand] = uint32(core.CommandWord(core.OpWrite, 0))
	words[core.SlotAddr] = 0x1D
	words[core.SlotLength] = uint32(len(words)-core.SlotData) * 4

	reply := d.HandleBlock(words)
	if diff := cmp.Diff([]uint32{core.StatusInvalid}, reply); diff != "" {
		t.Errorf("Reply mismatch (-want +got):\n%s", diff)
	}
	if len(dev.Data()) != 0 {
		t.Errorf("Nothing may reach the bus, device got %d bytes", len(dev.Data()))
	}
}

func TestDispatchBoundsLengthByMailbox(t *testing.T) {
	d, dev := newSimDispatcher(t)

	// A full-size mailbox with a length one past its data area.
	mb := mailbox(core.OpWrite, 0, 0x1D, core.MaxTransfer+1)
	if err := d.Dispatch(mb); !errors.Is(err, core.ErrInvalidLength) {
		t.Errorf("Expected ErrInvalidLength, got %v", err)
	}
	if mb[core.SlotAddr] != core.StatusInvalid || len(dev.Data()) != 0 {
		t.Errorf("Expected rejection before the bus, status=0x%08X data=%d", mb[core.SlotAddr], len(dev.Data()))
	}

	// A block just under the frame limit still cannot exceed MaxTransfer.
	long := make(core.Mailbox, core.MailboxWords)
	copy(long, mailbox(core.OpRead, 0, 0x1D, core.MaxTransfer+4))
	if err := d.Dispatch(long); !errors.Is(err, core.ErrInvalidLength) {
		t.Errorf("Expected ErrInvalidLength, got %v", err)
	}
}

func TestDispatchOutOfRangeOutranksOperands(t *testing.T) {
	d, _ := newSimDispatcher(t)

	for _, tc := range []struct {
		addr, n uint32
	}{
		{0x1D, 0},
		{0x80, 1},
	} {
		mb := mailbox(core.OpRead, 3, tc.addr, tc.n)
		if err := d.Dispatch(mb); !errors.Is(err, core.ErrOutOfRange) {
			t.Errorf("addr=%#x len=%d: expected ErrOutOfRange, got %v", tc.addr, tc.n, err)
		}
		if mb[core.SlotAddr] != core.StatusOutOfRange {
			t.Errorf("addr=%#x len=%d: expected StatusOutOfRange, got 0x%08X", tc.addr, tc.n, mb[core.SlotAddr])
		}
	}

	// On a configured bus the operand error stands.
	mb := mailbox(core.OpRead, 0, 0x1D, 0)
	if err := d.Dispatch(mb); !errors.Is(err, core.ErrInvalidLength) || mb[core.SlotAddr] != core.StatusInvalid {
		t.Errorf("Expected invalid length, got err=%v status=0x%08X", err, mb[core.SlotAddr])
	}
}
