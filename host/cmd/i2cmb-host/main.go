// Command i2cmb-host drives a remote bus master through the mailbox
// protocol, one command per invocation or interactively.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"i2cmb/host/mailbox"
	"i2cmb/host/serial"
)

func main() {
	app := &cli.App{
		Name:  "i2cmb-host",
		Usage: "issue bus-master mailbox commands",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "device",
				Aliases: []string{"d"},
				Value:   "/dev/ttyUSB0",
				EnvVars: []string{"I2CMB_DEVICE"},
				Usage:   "serial device of the daemon or firmware",
			},
			&cli.IntFlag{
				Name:  "baud",
				Value: serial.DefaultBaud,
				Usage: "serial baud rate",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: mailbox.DefaultTimeout,
				Usage: "reply timeout per command",
			},
			&cli.UintFlag{
				Name:  "device-id",
				Usage: "device id byte placed in every command word",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log every mailbox call",
			},
		},
		Commands: commands(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withClient connects, runs fn and releases the link and the logger.
func withClient(c *cli.Context, fn func(r remote) error) (err error) {
	logger := zap.NewNop()
	if c.Bool("verbose") {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}

	cfg := serial.DefaultConfig(c.String("device"))
	cfg.Baud = c.Int("baud")
	client, err := mailbox.Dial(cfg,
		mailbox.WithTimeout(c.Duration("timeout")),
		mailbox.WithDevice(uint8(c.Uint("device-id"))),
		mailbox.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, client.Close(), ignoreSyncError(logger.Sync()))
	}()

	return fn(client)
}

// ignoreSyncError drops the error zap reports when syncing a terminal.
func ignoreSyncError(err error) error {
	if err != nil && isTerminalSyncError(err) {
		return nil
	}
	return err
}
