package selector

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

// Value holds one criterion's data: either a single string used for every
// language, or a translation table keyed by language tag. In YAML both forms
// are accepted:
//
//	text: Login
//	text:
//	  english: Login
//	  japanese: ログイン
type Value struct {
	single       string
	hasSingle    bool
	translations map[core.Language]string
}

// String builds a single-valued criterion.
func String(s string) *Value {
	return &Value{single: s, hasSingle: true}
}

// Translations builds a per-language criterion.
func Translations(m map[core.Language]string) *Value {
	t := make(map[core.Language]string, len(m))
	for l, v := range m {
		t[l] = v
	}
	return &Value{translations: t}
}

// Resolve returns the value for the given language. Single values resolve for
// any language; translated values resolve only when the table has an entry.
func (v *Value) Resolve(lang core.Language) (string, bool) {
	if v == nil {
		return "", false
	}
	if v.hasSingle {
		return v.single, true
	}
	s, ok := v.translations[lang]
	return s, ok
}

// IsTranslated reports whether the value carries a per-language table.
func (v *Value) IsTranslated() bool {
	return v != nil && !v.hasSingle
}

// UnmarshalYAML allows Value to be unmarshaled from a scalar or a language map.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		v.single = node.Value
		v.hasSingle = true
		return nil
	case yaml.MappingNode:
		var raw map[string]string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		v.translations = make(map[core.Language]string, len(raw))
		for tag, val := range raw {
			lang, err := core.ParseLanguage(tag)
			if err != nil {
				return fmt.Errorf("selector value: %w", err)
			}
			v.translations[lang] = val
		}
		return nil
	default:
		return fmt.Errorf("selector value: expected string or language map")
	}
}

// MarshalYAML renders the value back in its original shape.
func (v *Value) MarshalYAML() (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if v.hasSingle {
		return v.single, nil
	}
	out := make(map[string]string, len(v.translations))
	for lang, val := range v.translations {
		out[string(lang)] = val
	}
	return out, nil
}
