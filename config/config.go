// Package config loads the daemon configuration: bus base addresses, clock
// parameters, the register backend and the serial link. Files are JSON with
// ${VAR} references expanded from the environment before parsing.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/a8m/envsubst"

	"i2cmb/core"
	"i2cmb/host/devmem"
	"i2cmb/host/serial"
)

// Register backends.
const (
	BackendDevMem = "devmem"
	BackendSim    = "sim"
)

var (
	ErrNoBuses      = errors.New("config: no buses configured")
	ErrBackend      = errors.New("config: unknown backend")
	ErrBadBase      = errors.New("config: bad base address")
	ErrBadDevice    = errors.New("config: bad simulated device")
	ErrPollTimeout  = errors.New("config: bad poll timeout")
	ErrDuplicateBus = errors.New("config: duplicate bus name")
)

// Config is the daemon configuration.
type Config struct {
	SourceClockHz uint32       `json:"source_clock_hz"`
	DefaultBaud   uint32       `json:"default_baud"`
	PollTimeout   string       `json:"poll_timeout"`
	Buses         []BusConfig  `json:"buses"`
	Backend       string       `json:"backend"`
	DevMem        string       `json:"devmem"`
	Serial        SerialConfig `json:"serial"`
	SimDevices    []SimDevice  `json:"sim_devices,omitempty"`
	Debug         bool         `json:"debug"`

	pollTimeout time.Duration
	bases       []uintptr
}

// BusConfig names one bus-master instance. Base is a hex string.
type BusConfig struct {
	Name string `json:"name"`
	Base string `json:"base"`
}

// SerialConfig is the link the daemon serves frames on.
type SerialConfig struct {
	Device string `json:"device"`
	Baud   int    `json:"baud"`
}

// SimDevice attaches an echo slave to a bus of the simulated backend.
type SimDevice struct {
	Bus     int    `json:"bus"`
	Address string `json:"address"`
}

// Load reads and parses a configuration file, expanding environment
// references first.
func Load(path string) (*Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes JSON, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(cfg *Config) {
	if cfg.SourceClockHz == 0 {
		cfg.SourceClockHz = core.DefaultSourceClockHz
	}
	if cfg.DefaultBaud == 0 {
		cfg.DefaultBaud = core.DefaultBaud
	}
	if cfg.PollTimeout == "" {
		cfg.PollTimeout = core.DefaultPollTimeout.String()
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendDevMem
	}
	if cfg.DevMem == "" {
		cfg.DevMem = devmem.DefaultPath
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = serial.DefaultBaud
	}
	for i := range cfg.Buses {
		if cfg.Buses[i].Name == "" {
			cfg.Buses[i].Name = "i2c" + strconv.Itoa(i)
		}
	}
}

func (c *Config) validate() error {
	if len(c.Buses) == 0 {
		return ErrNoBuses
	}
	if c.Backend != BackendDevMem && c.Backend != BackendSim {
		return fmt.Errorf("%w %q", ErrBackend, c.Backend)
	}

	d, err := time.ParseDuration(c.PollTimeout)
	if err != nil || d <= 0 {
		return fmt.Errorf("%w %q", ErrPollTimeout, c.PollTimeout)
	}
	c.pollTimeout = d

	if _, err := core.Prescale(c.SourceClockHz, c.DefaultBaud); err != nil {
		return fmt.Errorf("config: default baud %d: %w", c.DefaultBaud, err)
	}

	names := make(map[string]bool, len(c.Buses))
	c.bases = make([]uintptr, 0, len(c.Buses))
	for _, b := range c.Buses {
		if names[b.Name] {
			return fmt.Errorf("%w %q", ErrDuplicateBus, b.Name)
		}
		names[b.Name] = true

		base, err := parseHex(b.Base)
		if err != nil || base%4 != 0 {
			return fmt.Errorf("%w %q for bus %s", ErrBadBase, b.Base, b.Name)
		}
		c.bases = append(c.bases, uintptr(base))
	}
	if _, err := core.NewBusTable(c.bases...); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for _, d := range c.SimDevices {
		addr, err := parseHex(d.Address)
		if err != nil || addr > 0x7F || d.Bus < 0 || d.Bus >= len(c.Buses) {
			return fmt.Errorf("%w: bus %d address %q", ErrBadDevice, d.Bus, d.Address)
		}
	}
	return nil
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}

// BusTable builds the bus table from the configured bases.
func (c *Config) BusTable() (core.BusTable, error) {
	return core.NewBusTable(c.bases...)
}

// MasterConfig builds the driver configuration.
func (c *Config) MasterConfig() (core.MasterConfig, error) {
	buses, err := c.BusTable()
	if err != nil {
		return core.MasterConfig{}, err
	}
	return core.MasterConfig{
		Buses:         buses,
		SourceClockHz: c.SourceClockHz,
		DefaultBaud:   c.DefaultBaud,
		PollTimeout:   c.pollTimeout,
	}, nil
}

// Timeout returns the parsed poll timeout.
func (c *Config) Timeout() time.Duration {
	return c.pollTimeout
}

// Bases returns the parsed base address of each bus, in bus order.
func (c *Config) Bases() []uintptr {
	return append([]uintptr(nil), c.bases...)
}

// SimAddress returns the parsed address of a validated simulated device.
func (d SimDevice) SimAddress() core.Address {
	a, _ := parseHex(d.Address)
	return core.Address(a)
}

// SerialPort returns the serial configuration for the daemon's link.
func (c *Config) SerialPort() *serial.Config {
	sc := serial.DefaultConfig(c.Serial.Device)
	sc.Baud = c.Serial.Baud
	return sc
}
