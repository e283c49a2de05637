package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "print the current configuration",
		Commands: []*cli.Command{
			{
				Name:  "path",
				Usage: "print the configuration file path",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					d, err := buildDeps()
					if err != nil {
						return err
					}
					fmt.Println(d.cfgMgr.Path())
					return nil
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(d.cfg)
		},
	}
}
