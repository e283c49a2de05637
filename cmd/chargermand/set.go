package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/qzeleza/chargerman/internal/chargerctl"
	"github.com/qzeleza/chargerman/internal/psb"
)

// setCommand exposes the user-writable properties of spec.md §6:
// CONSTANT_CHARGE_CURRENT, INPUT_CURRENT_LIMIT, and a thermal
// CHARGE_CONTROL_LIMIT, mirrored here as subcommands the way the
// governing driver exposes them as sysfs attributes a user echoes
// values into. Because this daemon has no concrete charger-IC driver
// wired in (out of scope, per §1), these subcommands act on the
// daemon's own simulated bus (populated only when tuning.use_simulator
// is set) rather than a shared kernel instance; a
// production build links a real psb.Device so the running monitor
// observes the write on its next tick.
func setCommand() *cli.Command {
	return &cli.Command{
		Name:  "set",
		Usage: "write a user-controllable charger property",
		Commands: []*cli.Command{
			setChargeCurrentCommand(),
			setInputLimitCommand(),
			setControlLimitCommand(),
		},
	}
}

func setChargeCurrentCommand() *cli.Command {
	return &cli.Command{
		Name:      "charge-current",
		Usage:     "set CONSTANT_CHARGE_CURRENT on the primary charger, in microamps",
		ArgsUsage: "<microamps>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ua, err := parseInt32Arg(cmd)
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			h, release, err := d.bus.Acquire(d.cfg.ChargerNames[0])
			if err != nil {
				return err
			}
			defer release()
			return h.Set(psb.PROP_CONSTANT_CHARGE_CURRENT, int64(ua))
		},
	}
}

func setInputLimitCommand() *cli.Command {
	return &cli.Command{
		Name:      "input-limit",
		Usage:     "set INPUT_CURRENT_LIMIT on the primary charger, in microamps",
		ArgsUsage: "<microamps>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ua, err := parseInt32Arg(cmd)
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			c := chargerctl.New(d.bus, d.cfg.ChargerNames[0])
			return c.SetInputCurrentLimit(ua)
		},
	}
}

// setControlLimitCommand sets a thermal CHARGE_CONTROL_LIMIT, per
// spec.md §6: the requested value is capped by double_ic_total_limit_ua
// and written as the input current limit, split in half across the
// primary and first fast charger when fast chargers are configured and
// the simulated bus is in use. The active JEITA row's target current
// does not cap it.
func setControlLimitCommand() *cli.Command {
	return &cli.Command{
		Name:      "control-limit",
		Usage:     "set a thermal CHARGE_CONTROL_LIMIT, in microamps",
		ArgsUsage: "<microamps>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			requested, err := parseInt32Arg(cmd)
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}

			limit := requested
			if limit > d.cfg.DoubleICTotalLimitUA {
				limit = d.cfg.DoubleICTotalLimitUA
			}

			fastActive := len(d.cfg.FastChargerNames) > 0 && d.simDevice
			if fastActive {
				half := limit / 2
				primary := chargerctl.New(d.bus, d.cfg.ChargerNames[0])
				secondary := chargerctl.New(d.bus, d.cfg.FastChargerNames[0])
				if err := primary.SetInputCurrentLimit(half); err != nil {
					return err
				}
				return secondary.SetInputCurrentLimit(half)
			}

			primary := chargerctl.New(d.bus, d.cfg.ChargerNames[0])
			return primary.SetInputCurrentLimit(limit)
		},
	}
}

func parseInt32Arg(cmd *cli.Command) (int32, error) {
	if cmd.Args().Len() != 1 {
		return 0, fmt.Errorf("expected exactly one numeric argument")
	}
	var v int64
	if _, err := fmt.Sscanf(cmd.Args().First(), "%d", &v); err != nil {
		return 0, fmt.Errorf("could not parse %q as an integer: %w", cmd.Args().First(), err)
	}
	return int32(v), nil
}
