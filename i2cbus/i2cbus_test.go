package i2cbus

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"i2cmb/core"
	"i2cmb/sim"
)

func newMaster(t *testing.T) (*core.Master, *sim.Controller) {
	t.Helper()
	space := sim.NewSpace()
	ctrl := space.AddController(0x40)
	buses, err := core.NewBusTable(0x40)
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
	return m, ctrl
}

func TestBusAsPeriphDev(t *testing.T) {
	m, ctrl := newMaster(t)
	ctrl.Attach(sim.NewEchoDevice(0x48))

	bus := New(m, 0, "")
	if bus.String() != "i2cmb0" {
		t.Errorf("Expected default name i2cmb0, got %s", bus.String())
	}

	dev := &i2c.Dev{Bus: bus, Addr: 0x48}
	if _, err := dev.Write([]byte{0x10, 0x20}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	r := make([]byte, 2)
	if err := dev.Tx(nil, r); err != nil {
		t.Fatalf("Tx failed: %v", err)
	}
	if !bytes.Equal(r, []byte{0x10, 0x20}) {
		t.Errorf("Expected echo, got %v", r)
	}
}

func TestBusSetSpeed(t *testing.T) {
	m, ctrl := newMaster(t)
	bus := New(m, 0, "main")

	if err := bus.SetSpeed(400 * physic.KiloHertz); err != nil {
		t.Fatalf("SetSpeed failed: %v", err)
	}
	if ctrl.Prescale() != 77 {
		t.Errorf("Expected prescale 77, got %d", ctrl.Prescale())
	}

	if err := bus.SetSpeed(10 * physic.Hertz); !errors.Is(err, ErrSpeed) {
		t.Errorf("Expected ErrSpeed, got %v", err)
	}
}

func TestBusRejectsTenBitAddress(t *testing.T) {
	m, _ := newMaster(t)
	bus := New(m, 0, "")

	if err := bus.Tx(0x200, []byte{1}, nil); !errors.Is(err, core.ErrInvalidAddress) {
		t.Errorf("Expected ErrInvalidAddress, got %v", err)
	}
}

func TestBusRegisterAccess(t *testing.T) {
	m, ctrl := newMaster(t)
	dev := sim.NewEchoDevice(0x1D)
	ctrl.Attach(dev)
	bus := New(m, 0, "")

	if err := bus.WriteRegister(0x1D, 0x2D, []byte{0x08}); err != nil {
		t.Fatalf("WriteRegister failed: %v", err)
	}
	if !bytes.Equal(dev.Data(), []byte{0x2D, 0x08}) {
		t.Errorf("Expected register then value on the wire, got %v", dev.Data())
	}

	// The echo device answers a register read with the register byte itself.
	buf := make([]byte, 1)
	if err := bus.ReadRegister(0x1D, 0x32, buf); err != nil {
		t.Fatalf("ReadRegister failed: %v", err)
	}
	if buf[0] != 0x32 {
		t.Errorf("Expected 0x32, got %#x", buf[0])
	}
}

func TestBusNackWrapped(t *testing.T) {
	m, _ := newMaster(t)
	bus := New(m, 0, "")

	err := bus.Tx(0x50, []byte{1}, nil)
	var nack *core.NackError
	if !errors.As(err, &nack) || nack.Phase != core.PhaseAddress {
		t.Errorf("Expected wrapped address NackError, got %v", err)
	}
}

func TestScan(t *testing.T) {
	m, ctrl := newMaster(t)
	for _, a := range []core.Address{0x77, 0x1D, 0x48, 0x03} {
		ctrl.Attach(sim.NewEchoDevice(a))
	}

	found, err := Scan(m, 0)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	// 0x03 is reserved and never probed.
	if diff := cmp.Diff([]core.Address{0x1D, 0x48, 0x77}, found); diff != "" {
		t.Errorf("Scan mismatch (-want +got):\n%s", diff)
	}
}

func TestScanStopsOnOtherErrors(t *testing.T) {
	m, _ := newMaster(t)

	if _, err := Scan(m, 3); !errors.Is(err, core.ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange, got %v", err)
	}
}
