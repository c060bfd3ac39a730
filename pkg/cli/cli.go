// Package cli provides the command-line interface for uiscout.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiscout/pkg/config"
	"github.com/devicelab-dev/uiscout/pkg/logger"
	"github.com/devicelab-dev/uiscout/pkg/portal"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config.yaml (default: search the working directory)",
		EnvVars: []string{"UISCOUT_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "portal-url",
		Usage:   "Portal relay base URL",
		EnvVars: []string{"UISCOUT_PORTAL_URL"},
	},
	&cli.StringFlag{
		Name:    "serial",
		Aliases: []string{"s"},
		Usage:   "Device serial for adb operations",
		EnvVars: []string{"UISCOUT_SERIAL"},
	},
	&cli.IntFlag{
		Name:    "display",
		Aliases: []string{"d"},
		Usage:   "Display to target",
		EnvVars: []string{"UISCOUT_DISPLAY"},
	},
	&cli.StringFlag{
		Name:    "language",
		Aliases: []string{"l"},
		Usage:   "Language for translated selector values",
		EnvVars: []string{"UISCOUT_LANGUAGE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable debug logging",
		EnvVars: []string{"UISCOUT_VERBOSE"},
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "uiscout",
		Usage:   "UI element location engine for devices running the portal relay",
		Version: Version,
		Description: `uiscout resolves YAML selectors against the live UI of a connected
device and runs image matching against screens, files, and recordings.

Examples:
  uiscout hierarchy --format json
  uiscout locate login.yaml --timeout 10s
  uiscout match frame.png button.png --threshold 0.8
  uiscout video-scan run.mp4 spinner.png --skip-frames 5`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			hierarchyCommand,
			screenshotCommand,
			locateCommand,
			matchCommand,
			compareCommand,
			videoScanCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration for one command invocation and
// applies command-line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, wdErr
		}
		cfg, err = config.LoadFromDir(wd)
	}
	if err != nil {
		return nil, err
	}

	if v := c.String("portal-url"); v != "" {
		cfg.PortalURL = v
	}
	if v := c.String("serial"); v != "" {
		cfg.Serial = v
	}
	if v := c.String("language"); v != "" {
		cfg.Language = v
	}
	if c.Bool("verbose") {
		cfg.LogLevel = "DEBUG"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging points the engine log at the configured log directory.
func setupLogging(cfg *config.Config) error {
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	if err := logger.Init(cfg.LogFile()); err != nil {
		return err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	return nil
}

// newClient connects to the portal relay and verifies it is reachable.
func newClient(ctx context.Context, cfg *config.Config) (*portal.Client, error) {
	client := portal.New(cfg.PortalURL)
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
