package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/locator"
	"github.com/devicelab-dev/uiscout/pkg/selector"
)

var locateCommand = &cli.Command{
	Name:      "locate",
	Usage:     "Resolve a selector file against the device",
	ArgsUsage: "<selector.yaml>",
	Description: `Resolve a YAML selector against the live UI and print the matches.

The file holds one selector, for example:

  text: Login
  class_name: android.widget.Button

or an image selector:

  image:
    path: button.png
    threshold: 0.85

Examples:
  uiscout locate login.yaml
  uiscout locate list_row.yaml --all
  uiscout locate spinner.yaml --absent --timeout 5s
  uiscout locate login.yaml --combine class_name --combine text`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Print every match instead of the first",
		},
		&cli.BoolFlag{
			Name:  "absent",
			Usage: "Wait for the element to disappear instead of appear",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Resolution deadline (default: locateTimeout from config)",
		},
		&cli.StringSliceFlag{
			Name:  "combine",
			Usage: "Selector key to combine, in order (repeatable)",
		},
	},
	Action: runLocate,
}

// matchView is the printable shape of one resolved component.
type matchView struct {
	Bounds      string  `json:"bounds"`
	CenterX     int     `json:"centerX"`
	CenterY     int     `json:"centerY"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Text        string  `json:"text,omitempty"`
	Description string  `json:"description,omitempty"`
	Method      string  `json:"method,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

func componentViews(comps []*locator.Component) []matchView {
	views := make([]matchView, 0, len(comps))
	for _, comp := range comps {
		v := matchView{
			Bounds:      comp.Bounds().String(),
			CenterX:     comp.Center().X,
			CenterY:     comp.Center().Y,
			Width:       comp.Size().Width,
			Height:      comp.Size().Height,
			Text:        comp.Text(),
			Description: comp.Description(),
		}
		if m := comp.Match(); m != nil {
			v.Method = m.Method
			v.Confidence = m.Confidence
		}
		views = append(views, v)
	}
	return views
}

func runLocate(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one selector file argument")
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	sel, err := selector.Parse(data)
	if err != nil {
		return err
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

	lcfg := locator.Config{
		Window:      core.DefaultWindow(),
		FindTimeout: cfg.LocateTimeout.Std(),
	}
	lcfg.Window.DisplayID = c.Int("display")
	if cfg.Language != "" {
		lang, err := core.ParseLanguage(cfg.Language)
		if err != nil {
			return err
		}
		lcfg.Language = lang
	}

	loc := locator.New(client, lcfg)
	defer loc.Close()

	opts := locator.FindOptions{
		Absent:  c.Bool("absent"),
		Timeout: c.Duration("timeout"),
	}
	for _, k := range c.StringSlice("combine") {
		opts.Combination = append(opts.Combination, selector.Key(k))
	}

	if c.Bool("all") {
		comps, err := loc.FindAll(c.Context, sel, opts)
		if err != nil {
			return err
		}
		return printJSON(componentViews(comps))
	}

	comp, err := loc.Find(c.Context, sel, opts)
	if err != nil {
		return err
	}
	if comp == nil {
		fmt.Println("confirmed absent")
		return nil
	}
	return printJSON(componentViews([]*locator.Component{comp})[0])
}
