package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"i2cmb/core"
	"i2cmb/i2cbus"
)

// remote is what the commands need from the far end.
type remote interface {
	i2cbus.Controller
	Enable(bus core.BusID) error
	Disable(bus core.BusID) error
	Dictionary() (string, error)
}

var errUsage = errors.New("wrong number of arguments")

type command struct {
	name  string
	args  string
	usage string
	nargs int  // required arguments
	more  bool // accepts extra arguments
	run   func(r remote, out io.Writer, args []string) error
}

var commandTable = []command{
	{"enable", "BUS", "enable the core at the default baud", 1, false, runEnable},
	{"clock", "BUS BAUD", "set the bus clock", 2, false, runClock},
	{"disable", "BUS", "issue a stop condition", 1, false, runDisable},
	{"read", "BUS ADDR LEN", "read LEN bytes from ADDR", 3, false, runRead},
	{"write", "BUS ADDR BYTE...", "write bytes to ADDR", 3, true, runWrite},
	{"scan", "BUS", "list addresses that acknowledge", 1, false, runScan},
	{"ops", "", "print the remote operation dictionary", 0, false, runOps},
}

func lookupCommand(name string) (command, bool) {
	for _, cmd := range commandTable {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

// execute runs one tokenized command line.
func execute(r remote, out io.Writer, line []string) error {
	if len(line) == 0 {
		return nil
	}
	cmd, ok := lookupCommand(line[0])
	if !ok {
		return fmt.Errorf("unknown command %q", line[0])
	}
	args := line[1:]
	if len(args) < cmd.nargs || (!cmd.more && len(args) > cmd.nargs) {
		return fmt.Errorf("%s: %w (usage: %s %s)", cmd.name, errUsage, cmd.name, cmd.args)
	}
	return cmd.run(r, out, args)
}

func commands() []*cli.Command {
	var out []*cli.Command
	for _, cmd := range commandTable {
		name := cmd.name
		out = append(out, &cli.Command{
			Name:      name,
			Usage:     cmd.usage,
			ArgsUsage: cmd.args,
			Action: func(c *cli.Context) error {
				return withClient(c, func(r remote) error {
					return execute(r, os.Stdout, append([]string{name}, c.Args().Slice()...))
				})
			},
		})
	}
	out = append(out, &cli.Command{
		Name:  "repl",
		Usage: "read commands from standard input",
		Action: func(c *cli.Context) error {
			return withClient(c, func(r remote) error {
				return repl(r, os.Stdin, os.Stdout)
			})
		},
	})
	return out
}

func parseBus(s string) (core.BusID, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad bus %q", s)
	}
	return core.BusID(v), nil
}

func parseAddr(s string) (core.Address, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil || v > 0x7F {
		return 0, fmt.Errorf("bad address %q", s)
	}
	return core.Address(v), nil
}

// parseBytes accepts bytes in any strconv base, e.g. "0x1f 31 0b11111".
func parseBytes(args []string) ([]byte, error) {
	p := make([]byte, len(args))
	for i, s := range args {
		v, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("bad byte %q", s)
		}
		p[i] = byte(v)
	}
	return p, nil
}

func hexBytes(p []byte) string {
	parts := make([]string, len(p))
	for i, b := range p {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}

func runEnable(r remote, out io.Writer, args []string) error {
	bus, err := parseBus(args[0])
	if err != nil {
		return err
	}
	return r.Enable(bus)
}

func runClock(r remote, out io.Writer, args []string) error {
	bus, err := parseBus(args[0])
	if err != nil {
		return err
	}
	baud, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return fmt.Errorf("bad baud %q", args[1])
	}
	return r.SetClock(bus, uint32(baud))
}

func runDisable(r remote, out io.Writer, args []string) error {
	bus, err := parseBus(args[0])
	if err != nil {
		return err
	}
	return r.Disable(bus)
}

func runRead(r remote, out io.Writer, args []string) error {
	bus, err := parseBus(args[0])
	if err != nil {
		return err
	}
	addr, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	n, err := strconv.ParseUint(args[2], 0, 16)
	if err != nil || n == 0 {
		return fmt.Errorf("bad length %q", args[2])
	}
	p := make([]byte, n)
	if _, err := r.Read(bus, addr, p); err != nil {
		return err
	}
	fmt.Fprintf(out, "0x%02x: %s\n", addr, hexBytes(p))
	return nil
}

func runWrite(r remote, out io.Writer, args []string) error {
	bus, err := parseBus(args[0])
	if err != nil {
		return err
	}
	addr, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	p, err := parseBytes(args[2:])
	if err != nil {
		return err
	}
	n, err := r.Write(bus, addr, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d bytes to 0x%02x\n", n, addr)
	return nil
}

func runScan(r remote, out io.Writer, args []string) error {
	bus, err := parseBus(args[0])
	if err != nil {
		return err
	}
	found, err := i2cbus.Scan(r, bus)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(out, "no devices")
		return nil
	}
	for _, a := range found {
		fmt.Fprintf(out, "0x%02x\n", a)
	}
	return nil
}

func runOps(r remote, out io.Writer, args []string) error {
	dict, err := r.Dictionary()
	if err != nil {
		return err
	}
	fmt.Fprint(out, dict)
	return nil
}
