package devmem

import (
	"errors"
	"testing"

	"i2cmb/core"
)

func TestSpan(t *testing.T) {
	table, err := core.NewBusTable(0x43C10000, 0x43C00000)
	if err != nil {
		t.Fatalf("NewBusTable: %v", err)
	}

	base, size, err := Span(table)
	if err != nil {
		t.Fatalf("Span failed: %v", err)
	}
	if base != 0x43C00000 || size != 0x10000+core.RegCount*4 {
		t.Errorf("Expected 0x43C00000+%d, got 0x%x+%d", 0x10000+core.RegCount*4, base, size)
	}
}

func TestSpanEmpty(t *testing.T) {
	if _, _, err := Span(core.BusTable{}); !errors.Is(err, ErrEmptyWindow) {
		t.Errorf("Expected ErrEmptyWindow, got %v", err)
	}
}
