package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiscout/pkg/portal"
)

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Print the UI tree of the connected device",
	Description: `Print the current UI hierarchy from the portal relay.

Examples:
  uiscout hierarchy
  uiscout hierarchy --format json
  uiscout hierarchy -d 1 --output tree.xml`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Usage: "Output format (xml, json)",
			Value: portal.FormatXML,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a file instead of stdout",
		},
	},
	Action: runHierarchy,
}

var screenshotCommand = &cli.Command{
	Name:  "screenshot",
	Usage: "Capture the device screen to a PNG file",
	Description: `Capture the screen through the portal relay. Without --output the
image lands in the cache directory under a generated name.

Examples:
  uiscout screenshot
  uiscout screenshot -o screen.png
  uiscout screenshot -d 1`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Destination file",
		},
	},
	Action: runScreenshot,
}

func runHierarchy(c *cli.Context) error {
	format := c.String("format")
	if format != portal.FormatXML && format != portal.FormatJSON {
		return fmt.Errorf("unknown format %q (use xml or json)", format)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	client, err := newClient(c.Context, cfg)
	if err != nil {
		return err
	}

	data, err := client.Hierarchy(c.Context, c.Int("display"), format)
	if err != nil {
		return err
	}

	if out := c.String("output"); out != "" {
		return os.WriteFile(out, data, 0o644)
	}
	fmt.Println(string(data))
	return nil
}

func runScreenshot(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	client, err := newClient(c.Context, cfg)
	if err != nil {
		return err
	}

	display := c.Int("display")
	if out := c.String("output"); out != "" {
		data, err := client.Capture(c.Context, display)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	path, err := client.SaveCapture(c.Context, display, cfg.CacheDir)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
