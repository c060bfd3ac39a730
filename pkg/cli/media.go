package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiscout/pkg/imagematch"
	"github.com/devicelab-dev/uiscout/pkg/video"
)

var matchCommand = &cli.Command{
	Name:      "match",
	Usage:     "Find a template image inside a frame image",
	ArgsUsage: "<frame.png> <template.png>",
	Description: `Run template matching against two local files and print the matches.

Examples:
  uiscout match screen.png button.png
  uiscout match screen.png button.png --threshold 0.8
  uiscout match screen.png logo.png --detector feature`,
	Flags: []cli.Flag{
		&cli.Float64Flag{
			Name:  "threshold",
			Usage: "Minimum confidence",
			Value: 0.9,
		},
		&cli.StringSliceFlag{
			Name:  "detector",
			Usage: "Detector to run: template, multi_scale, feature (repeatable; default all)",
		},
	},
	Action: runMatch,
}

var compareCommand = &cli.Command{
	Name:      "compare",
	Usage:     "Score the similarity of two images",
	ArgsUsage: "<a.png> <b.png>",
	Description: `Print a similarity score in [0, 1] for two local images.

Examples:
  uiscout compare expected.png actual.png
  uiscout compare expected.png actual.png --algorithm ssim`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "algorithm",
			Aliases: []string{"a"},
			Usage:   "histogram, ssim, orb, or phash",
			Value:   "histogram",
		},
	},
	Action: runCompare,
}

var videoScanCommand = &cli.Command{
	Name:      "video-scan",
	Usage:     "Scan a screen recording for a template image",
	ArgsUsage: "<video.mp4> <template.png>",
	Description: `Decode a recording frame by frame and print every sampled frame where
the template appears. Requires ffmpeg and ffprobe on PATH.

Examples:
  uiscout video-scan run.mp4 spinner.png
  uiscout video-scan run.mp4 dialog.png --skip-frames 5 --threshold 0.8`,
	Flags: []cli.Flag{
		&cli.Float64Flag{
			Name:  "threshold",
			Usage: "Minimum confidence",
			Value: 0.9,
		},
		&cli.IntFlag{
			Name:  "skip-frames",
			Usage: "Sample every Nth frame",
			Value: 1,
		},
		&cli.StringSliceFlag{
			Name:  "detector",
			Usage: "Detector to run: template, multi_scale, feature (repeatable; default all)",
		},
	},
	Action: runVideoScan,
}

func parseDetectors(names []string) ([]imagematch.Detector, error) {
	detectors := make([]imagematch.Detector, 0, len(names))
	for _, name := range names {
		d, err := imagematch.ParseDetector(name)
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, d)
	}
	return detectors, nil
}

func runMatch(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected a frame file and a template file")
	}
	detectors, err := parseDetectors(c.StringSlice("detector"))
	if err != nil {
		return err
	}

	matches, err := imagematch.FindAllFiles(c.Args().Get(0), c.Args().Get(1), c.Float64("threshold"), detectors...)
	if err != nil {
		return err
	}
	return printJSON(matches)
}

func runCompare(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected two image files")
	}
	alg, err := imagematch.ParseAlgorithm(c.String("algorithm"))
	if err != nil {
		return err
	}

	score, err := imagematch.SimilarityFiles(c.Args().Get(0), c.Args().Get(1), alg)
	if err != nil {
		return err
	}
	fmt.Printf("%.4f\n", score)
	return nil
}

func runVideoScan(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected a video file and a template file")
	}
	detectors, err := parseDetectors(c.StringSlice("detector"))
	if err != nil {
		return err
	}

	found, err := video.FindInVideo(c.Context, c.Args().Get(0), c.Args().Get(1), c.Float64("threshold"), c.Int("skip-frames"), detectors...)
	if err != nil {
		return err
	}
	return printJSON(found)
}
