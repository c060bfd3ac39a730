package selector

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

// Selector represents element selection criteria. Pure data structure; the
// query compilers decide which criteria participate and how they combine.
type Selector struct {
	// Attribute criteria
	ID          *Value `yaml:"id"`
	Text        *Value `yaml:"text"`
	Description *Value `yaml:"description"`
	ClassName   *Value `yaml:"class_name"`

	// Raw-query escape hatches, never combined with other criteria
	XPath    *Value `yaml:"xpath"`
	JSONPath *Value `yaml:"jsonpath"`

	// Text variants
	TextStartsWith *Value `yaml:"text_starts_with"`
	TextEndsWith   *Value `yaml:"text_ends_with"`
	TextContains   *Value `yaml:"text_contains"`
	TextMatches    *Value `yaml:"text_matches"`

	// Description variants
	DescriptionStartsWith *Value `yaml:"description_starts_with"`
	DescriptionEndsWith   *Value `yaml:"description_ends_with"`
	DescriptionContains   *Value `yaml:"description_contains"`
	DescriptionMatches    *Value `yaml:"description_matches"`

	// Image criterion, terminal like the raw queries
	Image *Image `yaml:"image"`

	// Target display surface; nil means the default window
	Window *core.Window `yaml:"window"`
}

// selectorRaw is used for YAML parsing of the mapping form.
type selectorRaw struct {
	ID                    *Value       `yaml:"id"`
	Text                  *Value       `yaml:"text"`
	Description           *Value       `yaml:"description"`
	ClassName             *Value       `yaml:"class_name"`
	XPath                 *Value       `yaml:"xpath"`
	JSONPath              *Value       `yaml:"jsonpath"`
	TextStartsWith        *Value       `yaml:"text_starts_with"`
	TextEndsWith          *Value       `yaml:"text_ends_with"`
	TextContains          *Value       `yaml:"text_contains"`
	TextMatches           *Value       `yaml:"text_matches"`
	DescriptionStartsWith *Value       `yaml:"description_starts_with"`
	DescriptionEndsWith   *Value       `yaml:"description_ends_with"`
	DescriptionContains   *Value       `yaml:"description_contains"`
	DescriptionMatches    *Value       `yaml:"description_matches"`
	Image                 *Image       `yaml:"image"`
	Window                *core.Window `yaml:"window"`
}

// UnmarshalYAML allows Selector to be unmarshaled from string or struct.
// A bare string is shorthand for a text criterion.
func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Text = String(node.Value)
		return nil
	}

	var raw selectorRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}

	s.ID = raw.ID
	s.Text = raw.Text
	s.Description = raw.Description
	s.ClassName = raw.ClassName
	s.XPath = raw.XPath
	s.JSONPath = raw.JSONPath
	s.TextStartsWith = raw.TextStartsWith
	s.TextEndsWith = raw.TextEndsWith
	s.TextContains = raw.TextContains
	s.TextMatches = raw.TextMatches
	s.DescriptionStartsWith = raw.DescriptionStartsWith
	s.DescriptionEndsWith = raw.DescriptionEndsWith
	s.DescriptionContains = raw.DescriptionContains
	s.DescriptionMatches = raw.DescriptionMatches
	s.Image = raw.Image
	s.Window = raw.Window

	return nil
}

// Value returns the string criterion stored under key. The image key is not a
// string criterion and always returns false; callers use ResolveImage for it.
func (s *Selector) Value(key Key) (*Value, bool) {
	var v *Value
	switch key {
	case KeyID:
		v = s.ID
	case KeyText:
		v = s.Text
	case KeyDescription:
		v = s.Description
	case KeyClassName:
		v = s.ClassName
	case KeyXPath:
		v = s.XPath
	case KeyJSONPath:
		v = s.JSONPath
	case KeyTextStartsWith:
		v = s.TextStartsWith
	case KeyTextEndsWith:
		v = s.TextEndsWith
	case KeyTextContains:
		v = s.TextContains
	case KeyTextMatches:
		v = s.TextMatches
	case KeyDescriptionStartsWith:
		v = s.DescriptionStartsWith
	case KeyDescriptionEndsWith:
		v = s.DescriptionEndsWith
	case KeyDescriptionContains:
		v = s.DescriptionContains
	case KeyDescriptionMatches:
		v = s.DescriptionMatches
	default:
		return nil, false
	}
	return v, v != nil
}

// Resolve returns the value stored under key for the given language.
func (s *Selector) Resolve(key Key, lang core.Language) (string, bool) {
	v, ok := s.Value(key)
	if !ok {
		return "", false
	}
	return v.Resolve(lang)
}

// ResolveImage returns the image reference for the given language.
func (s *Selector) ResolveImage(lang core.Language) (ImageRef, bool) {
	return s.Image.Resolve(lang)
}

// TargetWindow returns the window the selector addresses, defaulting to the
// primary display.
func (s *Selector) TargetWindow() core.Window {
	if s.Window != nil {
		return *s.Window
	}
	return core.DefaultWindow()
}

// IsEmpty returns true if no criterion is set.
func (s *Selector) IsEmpty() bool {
	for _, key := range Keys {
		if key == KeyImage {
			continue
		}
		if _, ok := s.Value(key); ok {
			return false
		}
	}
	return s.Image == nil
}

// Describe returns a human-readable description: the first present criterion
// in priority order, rendered as key="value".
func (s *Selector) Describe(lang core.Language) string {
	for _, key := range PriorityOrder(KeyXPath) {
		if key == KeyImage {
			if ref, ok := s.ResolveImage(lang); ok {
				return fmt.Sprintf("image=%q", ref.Path)
			}
			continue
		}
		if v, ok := s.Resolve(key, lang); ok {
			return fmt.Sprintf("%s=%q", key, v)
		}
	}
	return ""
}

// Parse decodes a YAML selector document.
func Parse(data []byte) (*Selector, error) {
	var s Selector
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing selector: %w", err)
	}
	return &s, nil
}
