package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/qzeleza/chargerman/internal/paths"
	"github.com/qzeleza/chargerman/internal/service"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "report whether the daemon is installed and running",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			p := message.NewPrinter(language.English)

			bgRunning := d.bgMgr.IsRunning(runMode)
			svcActive := service.IsActive(d.log)

			p.Printf("chargermand status\n")
			p.Printf("  background process: %s\n", boolLabel(bgRunning, "running", "stopped"))
			p.Printf("  systemd user unit:   %s\n", boolLabel(svcActive, "active", "inactive"))
			p.Printf("  poll interval:       %d ms\n", d.cfg.Tuning.PollIntervalMS)
			p.Printf("  log level:           %s\n", d.cfg.Tuning.LogLevel)
			p.Printf("  simulated bus:       %s\n", boolLabel(d.simDevice, "yes", "no"))
			p.Printf("  config path:         %s\n", d.cfgMgr.Path())
			p.Printf("  primary charger:     %s\n", firstOr(d.cfg.ChargerNames, "(none configured)"))
			p.Printf("  fuel gauge:          %s\n", d.cfg.FuelGaugeName)
			return nil
		},
	}
}

func boolLabel(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}

func firstOr(names []string, fallback string) string {
	if len(names) == 0 {
		return fallback
	}
	return names[0]
}

func logCommand() *cli.Command {
	return &cli.Command{
		Name:  "log",
		Usage: "print the daemon's log file",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "lines", Aliases: []string{"n"}, Value: 50, Usage: "number of trailing lines to print"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return printTail(paths.LogPath(), int(cmd.Int("lines")))
		},
	}
}

func printTail(path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open log file %q: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not read log file %q: %w", path, err)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}
