// Command swwatch replays Service Worker update lifecycles against the
// in-memory platform and reports what the update monitor did with them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bottlerocket-os/swwatch/pkg/config"
	"github.com/bottlerocket-os/swwatch/pkg/logging"
	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/bottlerocket-os/swwatch/pkg/scenario"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

const defaultParallel = 4

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		logging.New("main").WithError(err).Error("swwatch failed")
		cancel()
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "swwatch",
		Usage:     "simulate service worker update lifecycles",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "log at debug level"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				return logging.Set(logging.Level("debug"))
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "simulate",
				Usage:     "run scenario files and report their outcome",
				ArgsUsage: "<scenario.toml>...",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "parallel", Value: defaultParallel, Usage: "scenarios run at once"},
				},
				Action: simulate,
			},
			{
				Name:  "config",
				Usage: "print the resolved configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "TOML file with an [updater] table"},
				},
				Action: printConfig,
			},
		},
	}
}

func simulate(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("at least one scenario file must be provided")
	}
	if c.Int("parallel") < 1 {
		return errors.Errorf("parallel must be at least 1, got %d", c.Int("parallel"))
	}

	scenarios := make([]*scenario.Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := scenario.Load(path)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, s)
	}

	results, err := scenario.RunAll(c.Context, logging.New("simulate"), scenarios, c.Int("parallel"))
	for _, res := range results {
		fmt.Fprintln(c.App.Writer, res)
	}
	return err
}

func printConfig(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("file"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	tree, err := toml.TreeFromMap(map[string]interface{}{
		"updater": map[string]interface{}{
			marker.ScriptPathKey:          cfg.ScriptPath,
			marker.NoRegisterKey:          cfg.NoRegister,
			marker.NamespaceKey:           cfg.Namespace,
			marker.ReloadDelayKey:         cfg.ReloadDelay.String(),
			marker.LogLevelKey:            cfg.LogLevel,
			marker.EnvironmentKey:         cfg.Environment,
			marker.EnvironmentsForWorkKey: cfg.EnvironmentsForWork,
			marker.DispatchEventKey:       cfg.DispatchEvent,
		},
	})
	if err != nil {
		return errors.Wrap(err, "could not render configuration")
	}
	_, err = io.WriteString(c.App.Writer, tree.String())
	return err
}
