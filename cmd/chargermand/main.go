// Command chargermand is the battery charger manager daemon: it reads
// sensors through the Power-Supply Bus, applies the JEITA/fast-charge/
// full-battery/guard policies of the monitor package, and exposes a
// small CLI for installing itself as a systemd user service,
// inspecting status, and tuning configuration.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	app := buildCLI()
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "chargermand:", err)
		os.Exit(1)
	}
}

func buildCLI() *cli.Command {
	return &cli.Command{
		Name:        "chargermand",
		Usage:       "battery charger manager daemon",
		Description: "Supervises charger ICs and a fuel gauge to safely charge a Li-ion battery.",
		Commands: []*cli.Command{
			runCommand(),
			backgroundCommand(),
			installCommand(),
			uninstallCommand(),
			statusCommand(),
			logCommand(),
			configCommand(),
			setCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
	}
}
