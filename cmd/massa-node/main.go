// Command massa-node runs the consensus graph core as a standalone process:
// it loads a config file (falling back to defaults), assembles the core via
// consensus.New, starts the worker loop, and blocks until an interrupt or
// SIGTERM triggers a graceful shutdown.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/praizmiky/massa/log"
	"github.com/praizmiky/massa/node"
)

func main() {
	app := &cli.App{
		Name:  "massa-node",
		Usage: "run the consensus graph core",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"MASSA_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "override data_dir",
				EnvVars: []string{"MASSA_DATA_DIR"},
			},
			&cli.UintFlag{
				Name:  "thread-count",
				Usage: "override thread_count",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log_level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "ws",
				Usage: "override ws_enabled",
			},
			&cli.StringFlag{
				Name:  "ws-listen-addr",
				Usage: "override ws_listen_addr",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "massa-node:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.SetDefault(log.New(slogLevel(cfg.LogLevel)))

	n, err := node.New(cfg)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	if err := n.Start(); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	if err := n.Stop(); err != nil {
		return fmt.Errorf("stop node: %w", err)
	}
	return nil
}

// slogLevel maps the config's log_level string onto slog's level scale;
// node.Config.Validate already restricts it to one of these four values.
func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig builds a node.Config from, in increasing precedence: defaults,
// the --config file if given, then individual CLI flag overrides.
func loadConfig(c *cli.Context) (*node.Config, error) {
	var cfg *node.Config
	if path := c.String("config"); path != "" {
		loaded, err := node.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		defaults := node.DefaultConfig()
		cfg = &defaults
	}

	overrides := map[string]interface{}{}
	if c.IsSet("data-dir") {
		overrides["data_dir"] = c.String("data-dir")
	}
	if c.IsSet("thread-count") {
		overrides["thread_count"] = c.Uint("thread-count")
	}
	if c.IsSet("log-level") {
		overrides["log_level"] = c.String("log-level")
	}
	if c.IsSet("ws") {
		overrides["ws_enabled"] = c.Bool("ws")
	}
	if c.IsSet("ws-listen-addr") {
		overrides["ws_listen_addr"] = c.String("ws-listen-addr")
	}
	if err := node.ApplyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}
