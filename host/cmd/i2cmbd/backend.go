package main

import (
	"go.uber.org/zap"

	"i2cmb/config"
	"i2cmb/core"
	"i2cmb/host/devmem"
	"i2cmb/sim"
)

// registerSpace is a core.Space the daemon must release on exit.
type registerSpace interface {
	core.Space
	Close() error
}

type simSpace struct {
	*sim.Space
}

func (simSpace) Close() error { return nil }

func openBackend(cfg *config.Config, logger *zap.Logger) (registerSpace, error) {
	if cfg.Backend == config.BackendSim {
		return newSimBackend(cfg, logger), nil
	}

	table, err := cfg.BusTable()
	if err != nil {
		return nil, err
	}
	w, err := devmem.OpenTable(cfg.DevMem, table)
	if err != nil {
		return nil, err
	}
	logger.Info("mapped register blocks", zap.String("path", cfg.DevMem), zap.Int("buses", table.Len()))
	return w, nil
}

// newSimBackend builds one simulated controller per configured bus with
// echo slaves where the configuration asks for them.
func newSimBackend(cfg *config.Config, logger *zap.Logger) simSpace {
	space := sim.NewSpace()
	var ctrls []*sim.Controller
	for _, base := range cfg.Bases() {
		c := space.AddController(base)
		c.BusyPolls = 1
		ctrls = append(ctrls, c)
	}
	for _, d := range cfg.SimDevices {
		ctrls[d.Bus].Attach(sim.NewEchoDevice(d.SimAddress()))
		logger.Info("simulated device", zap.Int("bus", d.Bus), zap.String("address", d.Address))
	}
	return simSpace{space}
}
