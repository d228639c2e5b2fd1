package i2cbus

import (
	"errors"

	"i2cmb/core"
)

// Probe range; addresses outside it are reserved.
const (
	ScanFirst core.Address = 0x08
	ScanLast  core.Address = 0x77
)

// Scan probes every non-reserved address on bus with a one-byte read and
// returns those that acknowledge. Errors other than a NACK stop the scan.
func Scan(ctrl Controller, bus core.BusID) ([]core.Address, error) {
	var found []core.Address
	var b [1]byte
	for addr := ScanFirst; addr <= ScanLast; addr++ {
		_, err := ctrl.Read(bus, addr, b[:])
		switch {
		case err == nil:
			found = append(found, addr)
		case errors.Is(err, core.ErrNack):
		default:
			return found, err
		}
	}
	return found, nil
}
