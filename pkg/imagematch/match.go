// Package imagematch locates a reference image inside a captured frame and
// scores whole-image similarity. It is stateless and safe to call from
// multiple goroutines as long as each call owns its image buffers.
package imagematch

import (
	"image"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/logger"
)

// Detector selects one of the matching strategies.
type Detector int

const (
	// DetectTemplate is plain normalized cross correlation at native scale.
	DetectTemplate Detector = iota
	// DetectMultiScale repeats the correlation across template scales.
	DetectMultiScale
	// DetectFeature matches binary keypoint descriptors and is tolerant of
	// rotation and mild distortion.
	DetectFeature
)

func (d Detector) String() string {
	switch d {
	case DetectTemplate:
		return "template"
	case DetectMultiScale:
		return "multi_scale"
	case DetectFeature:
		return "feature"
	default:
		return "unknown"
	}
}

// ParseDetector maps a detector name to its constant.
func ParseDetector(s string) (Detector, error) {
	switch s {
	case "template":
		return DetectTemplate, nil
	case "multi_scale":
		return DetectMultiScale, nil
	case "feature":
		return DetectFeature, nil
	default:
		return 0, core.ErrInvalidConfig.WithMessagef("unknown match method %q", s)
	}
}

// Match is one located occurrence of the template.
type Match struct {
	Confidence float64     `json:"confidence"`
	Bounds     core.Bounds `json:"bounds"`
	Method     string      `json:"method"`
}

// FindAll locates every occurrence of the template in the frame whose score
// clears the threshold. Detectors run independently and their candidates
// are deduplicated together; passing no detectors runs all of them.
func FindAll(frame, template image.Image, threshold float64, detectors ...Detector) []Match {
	if len(detectors) == 0 {
		detectors = []Detector{DetectTemplate, DetectMultiScale, DetectFeature}
	}

	start := time.Now()
	frameGray := toGray(frame)
	tplGray := toGray(template)
	frameGrid := gridFromGray(frameGray)
	tplGrid := gridFromGray(tplGray)

	var tplMatches, scaleMatches, featMatches []Match
	var g errgroup.Group
	seen := make(map[Detector]bool, len(detectors))
	for _, d := range detectors {
		if seen[d] {
			continue
		}
		seen[d] = true
		switch d {
		case DetectTemplate:
			g.Go(func() error {
				tplMatches = matchTemplate(frameGrid, tplGrid, threshold)
				return nil
			})
		case DetectMultiScale:
			g.Go(func() error {
				scaleMatches = matchMultiScale(frameGrid, tplGray, threshold)
				return nil
			})
		case DetectFeature:
			g.Go(func() error {
				featMatches = matchFeatures(frameGrid, tplGrid, threshold)
				return nil
			})
		}
	}
	_ = g.Wait()

	all := make([]Match, 0, len(tplMatches)+len(scaleMatches)+len(featMatches))
	all = append(all, tplMatches...)
	all = append(all, scaleMatches...)
	all = append(all, featMatches...)

	kept := suppressOverlaps(all, nmsOverlap)
	logger.Debug("image match: %d candidates, %d kept [%v]", len(all), len(kept), time.Since(start))
	return kept
}

// FindAllFiles loads both images from disk and runs FindAll.
func FindAllFiles(framePath, templatePath string, threshold float64, detectors ...Detector) ([]Match, error) {
	frame, err := Load(framePath)
	if err != nil {
		return nil, err
	}
	template, err := Load(templatePath)
	if err != nil {
		return nil, err
	}
	return FindAll(frame, template, threshold, detectors...), nil
}
