// Package mailbox is the remote caller side of the command dispatcher: it
// builds mailbox blocks, sends them over the frame transport and maps the
// returned status words back to driver errors.
package mailbox

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"i2cmb/core"
	"i2cmb/host/serial"
	"i2cmb/protocol"
)

// DefaultTimeout bounds a request when WithTimeout is not given.
const DefaultTimeout = protocol.DefaultCallTimeout

// ErrBadReply means the far end answered with a block of the wrong shape.
var ErrBadReply = errors.New("mailbox: malformed reply")

// Client issues mailbox commands to a daemon or firmware.
type Client struct {
	transport *protocol.HostTransport
	timeout   time.Duration
	device    uint8
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithDevice sets the device id byte of every command word.
func WithDevice(dev uint8) Option {
	return func(c *Client) { c.device = dev }
}

// WithLogger logs each request at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New wraps an open stream.
func New(port io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transport = protocol.NewHostTransport(port)
	return c
}

// Dial opens a serial device and wraps it.
func Dial(cfg *serial.Config, opts ...Option) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(port, opts...), nil
}

// Close shuts the transport and its port.
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) word(op core.Op, bus core.BusID) uint32 {
	return uint32(core.CommandWord(op, uint32(bus)).WithDevice(c.device))
}

// call sends mb and returns the mailbox part of the reply and the mapped
// dispatch status.
func (c *Client) call(mb core.Mailbox) (core.Mailbox, error) {
	op := core.Word(mb[core.SlotCommand]).Op()
	reply, err := c.transport.Call(mb, c.timeout)
	if err != nil {
		c.logger.Debug("mailbox call failed", zap.Stringer("op", op), zap.Error(err))
		return nil, err
	}
	if len(reply) == 1 && len(mb) > 1 {
		// Rejected without dispatch.
		if err := core.ErrorOf(reply[0]); err != nil {
			return nil, err
		}
	}
	if len(reply) != len(mb)+1 {
		return nil, fmt.Errorf("%w: %d words for a %d word request", ErrBadReply, len(reply), len(mb))
	}
	status := reply[len(mb)]
	c.logger.Debug("mailbox call",
		zap.Stringer("op", op),
		zap.Uint32("sub", core.Word(mb[core.SlotCommand]).Sub()),
		zap.Uint32("status", status))
	return core.Mailbox(reply[:len(mb)]), core.ErrorOf(status)
}

// Enable resets the bus to the default baud and enables the core.
func (c *Client) Enable(bus core.BusID) error {
	_, err := c.call(core.Mailbox{c.word(core.OpEnable, bus)})
	return err
}

// SetClock programs the bus for baud.
func (c *Client) SetClock(bus core.BusID, baud uint32) error {
	_, err := c.call(core.Mailbox{c.word(core.OpSetClock, bus), baud})
	return err
}

// Disable issues a stop condition on the bus.
func (c *Client) Disable(bus core.BusID) error {
	_, err := c.call(core.Mailbox{c.word(core.OpDisable, bus)})
	return err
}

func transferBlock(w uint32, addr core.Address, n int) core.Mailbox {
	mb := make(core.Mailbox, core.SlotData+core.WordsFor(n))
	mb[core.SlotCommand] = w
	mb[core.SlotAddr] = uint32(addr)
	mb[core.SlotLength] = uint32(n)
	return mb
}

func checkTransfer(addr core.Address, n int) error {
	if n == 0 || n > core.MaxTransfer {
		return core.ErrInvalidLength
	}
	if addr > 0x7F {
		return core.ErrInvalidAddress
	}
	return nil
}

// Read fills p from the device at addr. The status does not say how far a
// failed read got, so n is len(p) on success and 0 otherwise.
func (c *Client) Read(bus core.BusID, addr core.Address, p []byte) (int, error) {
	if err := checkTransfer(addr, len(p)); err != nil {
		return 0, err
	}
	reply, err := c.call(transferBlock(c.word(core.OpRead, bus), addr, len(p)))
	if err != nil {
		return 0, err
	}
	copy(p, core.UnpackBytes(reply[core.SlotData:], len(p)))
	return len(p), nil
}

// Write sends p to the device at addr, with the same n rule as Read.
func (c *Client) Write(bus core.BusID, addr core.Address, p []byte) (int, error) {
	if err := checkTransfer(addr, len(p)); err != nil {
		return 0, err
	}
	mb := transferBlock(c.word(core.OpWrite, bus), addr, len(p))
	core.PackBytes(mb[core.SlotData:], p)
	if _, err := c.call(mb); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Tx writes w then reads r, skipping whichever is empty.
func (c *Client) Tx(bus core.BusID, addr core.Address, w, r []byte) error {
	if len(w) > 0 {
		if _, err := c.Write(bus, addr, w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		if _, err := c.Read(bus, addr, r); err != nil {
			return err
		}
	}
	return nil
}

// Dictionary fetches the remote operation listing.
func (c *Client) Dictionary() (string, error) {
	reply, err := c.transport.Call(nil, c.timeout)
	if err != nil {
		return "", err
	}
	if len(reply) == 0 || core.WordsFor(int(reply[0])) != len(reply)-1 {
		return "", ErrBadReply
	}
	return string(core.UnpackBytes(reply[1:], int(reply[0]))), nil
}

var _ core.Driver = (*Client)(nil)
