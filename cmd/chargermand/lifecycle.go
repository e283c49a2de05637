package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/qzeleza/chargerman/internal/service"
)

func backgroundCommand() *cli.Command {
	return &cli.Command{
		Name:    "background",
		Aliases: []string{"bg"},
		Usage:   "detach and run the monitor loop in the background",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if d.bgMgr.IsRunning(runMode) {
				return fmt.Errorf("chargermand is already running in the background")
			}
			if term.IsTerminal(int(os.Stdin.Fd())) {
				fmt.Println("Detaching from the terminal; use `chargermand log` to follow output.")
			}
			return d.bgMgr.LaunchDetached("run")
		},
	}
}

func installCommand() *cli.Command {
	return &cli.Command{
		Name:  "install",
		Usage: "install chargermand as a systemd user service",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			return service.Install(d.log)
		},
	}
}

func uninstallCommand() *cli.Command {
	return &cli.Command{
		Name:  "uninstall",
		Usage: "remove the systemd user service",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			return service.Uninstall(d.log)
		},
	}
}
