//go:build tinygo

// Firmware for a soft-core CPU that shares its address space with the
// bus-master cores. Mailbox frames arrive on the console UART and are
// served by the dispatcher.
//
// Bus bases are set at link time:
//
//	tinygo build -ldflags "-X main.busBases=0x43C00000,0x43C10000" ./targets/fpga
package main

import (
	"machine"
	"strconv"
	"strings"
	"time"

	"i2cmb/core"
	"i2cmb/protocol"
)

var (
	// busBases is a comma separated list of hex base addresses.
	busBases = "0x43C00000"

	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	// Debug counters
	messagesReceived uint32
	msgerrors        uint32
)

func parseBases(s string) ([]uintptr, error) {
	var bases []uintptr
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimPrefix(strings.TrimSpace(f), "0x")
		v, err := strconv.ParseUint(f, 16, 32)
		if err != nil {
			return nil, err
		}
		bases = append(bases, uintptr(v))
	}
	return bases, nil
}

func main() {
	bases, err := parseBases(busBases)
	if err != nil {
		halt("bad bus base list: " + busBases)
	}
	table, err := core.NewBusTable(bases...)
	if err != nil {
		halt(err.Error())
	}
	master, err := core.NewMaster(core.VolatileSpace{}, core.MasterConfig{Buses: table})
	if err != nil {
		halt(err.Error())
	}
	dispatcher := core.NewDispatcher(master)

	inputBuffer = protocol.NewFifoBuffer(2 * protocol.MessageMax)
	outputBuffer = protocol.NewScratchOutput()
	transport = protocol.NewTransport(outputBuffer, dispatcher.HandleBlock)
	transport.SetFlushCallback(writeUART)

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
					core.DumpTrace()
				}
			}()

			readUART()
			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
				messagesReceived++
			}
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

func readUART() {
	for machine.Serial.Buffered() > 0 && inputBuffer.Free() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			msgerrors++
			return
		}
		inputBuffer.Write([]byte{b})
	}
}

func writeUART() {
	if result := outputBuffer.Result(); len(result) > 0 {
		if _, err := machine.Serial.Write(result); err != nil {
			msgerrors++
		}
	}
	outputBuffer.Reset()
}

// halt parks the CPU on a configuration error. Nothing answers on the
// console, so the host sees reply timeouts.
func halt(msg string) {
	core.DebugPrintln("[FPGA] halted: " + msg)
	for {
		time.Sleep(time.Second)
	}
}
