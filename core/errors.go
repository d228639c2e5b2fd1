package core

import "errors"

var (
	ErrOutOfRange     = errors.New("i2c: bus index out of range")
	ErrInvalidLength  = errors.New("i2c: invalid transfer length")
	ErrInvalidAddress = errors.New("i2c: invalid 7-bit address")
	ErrInvalidBaud    = errors.New("i2c: invalid baud rate")
	ErrTimeout        = errors.New("i2c: timeout waiting for transfer")

	// ErrNack matches every negative acknowledgement. ErrAddressNack and
	// ErrDataNack narrow it to the phase that failed.
	ErrNack        = errors.New("i2c: nack")
	ErrAddressNack = errors.New("i2c: address nack")
	ErrDataNack    = errors.New("i2c: data nack")

	ErrNoBuses       = errors.New("i2c: bus table is empty")
	ErrTooManyBuses  = errors.New("i2c: too many buses")
	ErrDuplicateBase = errors.New("i2c: duplicate bus base address")
)

// NackPhase tells which part of a transaction the slave refused.
type NackPhase uint8

const (
	PhaseAddress NackPhase = iota
	PhaseData
)

func (p NackPhase) String() string {
	if p == PhaseAddress {
		return "address"
	}
	return "data"
}

// NackError reports a negative acknowledgement. Byte is the index of the
// refused data byte and is only meaningful for PhaseData.
type NackError struct {
	Phase   NackPhase
	Address Address
	Byte    int
}

func (e *NackError) Error() string {
	msg := "i2c: " + e.Phase.String() + " nack from 0x" + hex8(uint8(e.Address))
	if e.Phase == PhaseData {
		msg += " at byte " + itoa(e.Byte)
	}
	return msg
}

// Is lets errors.Is match ErrNack and the phase sentinel.
func (e *NackError) Is(target error) bool {
	switch target {
	case ErrNack:
		return true
	case ErrAddressNack:
		return e.Phase == PhaseAddress
	case ErrDataNack:
		return e.Phase == PhaseData
	}
	return false
}
