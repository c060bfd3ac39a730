package selector

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

// DefaultImageThreshold is the match threshold applied when an image
// criterion is written without one.
const DefaultImageThreshold = 0.9

// ImageRef points at a reference image and the minimum match confidence
// required for it to count as found.
type ImageRef struct {
	Path      string  `yaml:"path"`
	Threshold float64 `yaml:"threshold"`
}

// Image holds the image criterion: a single reference or one per language.
// YAML forms:
//
//	image: icons/login.png
//	image: {path: icons/login.png, threshold: 0.85}
//	image:
//	  english: icons/login_en.png
//	  japanese: {path: icons/login_ja.png, threshold: 0.8}
type Image struct {
	ref          *ImageRef
	translations map[core.Language]ImageRef
}

// ImagePath builds a single-reference image criterion with the default
// threshold.
func ImagePath(path string) *Image {
	return &Image{ref: &ImageRef{Path: path, Threshold: DefaultImageThreshold}}
}

// ImageWithThreshold builds a single-reference image criterion.
func ImageWithThreshold(path string, threshold float64) *Image {
	return &Image{ref: &ImageRef{Path: path, Threshold: threshold}}
}

// ImageTranslations builds a per-language image criterion.
func ImageTranslations(m map[core.Language]ImageRef) *Image {
	t := make(map[core.Language]ImageRef, len(m))
	for l, r := range m {
		t[l] = r
	}
	return &Image{translations: t}
}

// Resolve returns the reference for the given language.
func (i *Image) Resolve(lang core.Language) (ImageRef, bool) {
	if i == nil {
		return ImageRef{}, false
	}
	if i.ref != nil {
		return *i.ref, true
	}
	r, ok := i.translations[lang]
	return r, ok
}

func decodeImageRef(node *yaml.Node) (ImageRef, error) {
	if node.Kind == yaml.ScalarNode {
		return ImageRef{Path: node.Value, Threshold: DefaultImageThreshold}, nil
	}
	var raw struct {
		Path      string  `yaml:"path"`
		Threshold float64 `yaml:"threshold"`
	}
	if err := node.Decode(&raw); err != nil {
		return ImageRef{}, err
	}
	if raw.Path == "" {
		return ImageRef{}, fmt.Errorf("image selector: missing path")
	}
	if raw.Threshold == 0 {
		raw.Threshold = DefaultImageThreshold
	}
	return ImageRef{Path: raw.Path, Threshold: raw.Threshold}, nil
}

// UnmarshalYAML accepts a path scalar, a {path, threshold} mapping, or a
// language map of either.
func (i *Image) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		ref, err := decodeImageRef(node)
		if err != nil {
			return err
		}
		i.ref = &ref
		return nil
	case yaml.MappingNode:
		// A mapping is either a single {path, threshold} or a language map.
		// Distinguish by the first key.
		if len(node.Content) >= 2 {
			first := node.Content[0].Value
			if first == "path" || first == "threshold" {
				ref, err := decodeImageRef(node)
				if err != nil {
					return err
				}
				i.ref = &ref
				return nil
			}
		}
		i.translations = make(map[core.Language]ImageRef)
		for n := 0; n+1 < len(node.Content); n += 2 {
			lang, err := core.ParseLanguage(node.Content[n].Value)
			if err != nil {
				return fmt.Errorf("image selector: %w", err)
			}
			ref, err := decodeImageRef(node.Content[n+1])
			if err != nil {
				return err
			}
			i.translations[lang] = ref
		}
		return nil
	default:
		return fmt.Errorf("image selector: expected path, mapping, or language map")
	}
}
