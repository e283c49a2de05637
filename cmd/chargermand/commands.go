package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/qzeleza/chargerman/internal/config"
	"github.com/qzeleza/chargerman/internal/monitor"
	"github.com/qzeleza/chargerman/internal/notify"
)

const runMode = "run"

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the monitor loop in the foreground",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			return d.bgMgr.Run(runMode, func() {
				runMonitorLoop(ctx, d)
			})
		},
	}
}

// runMonitorLoop builds the Monitor, wires its notification sink to
// the daemon's own logger, and drives Run until ctx is cancelled. A
// termination signal handled by background.Manager exits the process
// directly rather than returning through here.
func runMonitorLoop(ctx context.Context, d *deps) {
	sink := func(msg notify.Message) {
		d.log.Info(fmt.Sprintf("event %s: %s", msg.Kind, msg.Text))
	}

	m := monitor.New("primary", d.cfg, d.bus, d.log, sink)

	configUpdates := make(chan *config.Description, 1)
	events := make(chan monitor.EventRequest, 8)
	stop := make(chan struct{})

	go d.cfgMgr.Watch(configUpdates, stop, d.log)
	defer close(stop)

	d.log.Info("monitor loop starting")
	if err := m.Run(ctx, configUpdates, events); err != nil {
		d.log.Info(fmt.Sprintf("monitor loop exited: %v", err))
	}
}
