package main

import (
	"fmt"

	"github.com/qzeleza/chargerman/internal/background"
	"github.com/qzeleza/chargerman/internal/config"
	"github.com/qzeleza/chargerman/internal/logger"
	"github.com/qzeleza/chargerman/internal/paths"
	"github.com/qzeleza/chargerman/internal/psb"
)

// deps bundles the daemon's shared dependencies, built once per CLI
// invocation.
type deps struct {
	log       *logger.Logger
	cfgMgr    *config.Manager
	cfg       *config.Description
	bgMgr     *background.Manager
	bus       *psb.Bus
	simDevice bool
}

func buildDeps() (*deps, error) {
	log := logger.New(paths.LogPath(), 5000, true, false)

	cfgMgr, err := config.New(log, paths.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("could not create config manager: %w", err)
	}
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	log.SetLevel(cfg.Tuning.LogLevel)

	bus := psb.NewBus()
	simDevice := cfg.Tuning.UseSimulator
	if simDevice {
		wireSimulatedBus(bus, cfg)
	}

	return &deps{
		log:       log,
		cfgMgr:    cfgMgr,
		cfg:       cfg,
		bgMgr:     background.New(log),
		bus:       bus,
		simDevice: simDevice,
	}, nil
}

// wireSimulatedBus registers a psb.SimDevice under every configured
// charger, fast-charger, and fuel-gauge name, used when the config's
// tuning.use_simulator is set, for daemon runs and the CLI alike (concrete charger-IC and fuel-gauge drivers are
// out of scope for this daemon per spec.md §1; a production deployment
// links in a platform-specific psb.Device implementation in place of
// this wiring).
func wireSimulatedBus(bus *psb.Bus, cfg *config.Description) {
	for _, name := range cfg.ChargerNames {
		bus.Register(name, psb.NewSimDevice())
	}
	for _, name := range cfg.FastChargerNames {
		bus.Register(name, psb.NewSimDevice())
	}
	bus.Register(cfg.FuelGaugeName, psb.NewSimDevice())
}
