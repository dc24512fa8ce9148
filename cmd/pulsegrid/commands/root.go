// Package commands defines the pulsegrid CLI.
package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/pulsegrid/pulsegrid/internal/app"
)

// New creates the root CLI command.
func New(version, commit, date string) *cli.Command {
	return &cli.Command{
		Name:    "pulsegrid",
		Usage:   "Alert detection and notification pipeline for remote physiological monitoring",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Sources: cli.EnvVars("PULSEGRID_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(version),
		},
		DefaultCommand: "serve",
	}
}

func serveCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the ingestion, alerting and streaming server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := app.New(app.Options{
				ConfigPath: cmd.String("config"),
				Version:    version,
			})
			if err != nil {
				return err
			}
			if err := a.Initialize(ctx); err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- a.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				return a.Shutdown(context.Background())
			}
		},
	}
}
