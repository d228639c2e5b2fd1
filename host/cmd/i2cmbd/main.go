// Command i2cmbd serves mailbox frames from a serial link against the
// bus-master register blocks, mapped from /dev/mem or simulated.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"i2cmb/config"
	"i2cmb/core"
	"i2cmb/host/serial"
)

func main() {
	app := &cli.App{
		Name:  "i2cmbd",
		Usage: "serve bus-master mailbox commands over a serial link",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "/etc/i2cmbd.json",
				EnvVars: []string{"I2CMBD_CONFIG"},
				Usage:   "configuration file",
			},
			&cli.StringFlag{
				Name:  "device",
				Usage: "serial device, overrides the configuration",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "development logging with driver debug output",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(c *cli.Context) (err error) {
	logger, err := newLogger(c.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	// Sync fails on terminals; it is not worth reporting.
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if dev := c.String("device"); dev != "" {
		cfg.Serial.Device = dev
	}

	core.SetDebugWriter(func(s string) { logger.Debug(s) })
	core.SetDebugEnabled(cfg.Debug || c.Bool("verbose"))

	space, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, space.Close()) }()

	mc, err := cfg.MasterConfig()
	if err != nil {
		return err
	}
	master, err := core.NewMaster(space, mc)
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}
	dispatcher := core.NewDispatcher(master)

	port, err := serial.Open(cfg.SerialPort())
	if err != nil {
		return err
	}

	logger.Info("serving",
		zap.String("device", cfg.Serial.Device),
		zap.Int("baud", cfg.Serial.Baud),
		zap.String("backend", cfg.Backend),
		zap.Int("buses", len(cfg.Buses)))

	srv := newServer(port, dispatcher.HandleBlock, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		sig := <-sigs
		logger.Info("shutting down", zap.Stringer("signal", sig))
		srv.stop()
	}()

	err = multierr.Combine(srv.serve(), srv.stop())
	if cfg.Debug {
		core.DumpTrace()
	}
	return err
}
