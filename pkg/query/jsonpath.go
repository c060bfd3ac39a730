package query

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/uiscout/pkg/selector"
)

// JSONPathCompiler emits document queries over JSON hierarchy snapshots,
// which list nodes as a flat array of attribute objects. Unlike the
// structural variant it has a native ends_with predicate, so no suffix
// criterion is ever rewritten to a regex.
type JSONPathCompiler struct{}

// NewJSONPathCompiler returns the document query compiler.
func NewJSONPathCompiler() *JSONPathCompiler {
	return &JSONPathCompiler{}
}

// Kind identifies this compiler's output syntax.
func (c *JSONPathCompiler) Kind() Kind {
	return KindJSONPath
}

// Compile resolves the selector's criteria and emits a JSONPath query.
func (c *JSONPathCompiler) Compile(sel *selector.Selector, opts Options) (Compiled, error) {
	res, err := resolveCriteria(sel, opts.language(), opts.Combination, selector.KeyJSONPath)
	if err != nil {
		return Compiled{}, err
	}
	if res.image != nil {
		return imageCompiled(KindJSONPath, *res.image), nil
	}
	if res.hasRaw {
		return Compiled{Kind: KindJSONPath, Method: MethodQuery, Syntax: res.raw}, nil
	}

	var classFrag string
	frags := make([]string, 0, len(res.criteria))
	for _, cr := range res.criteria {
		if cr.key == selector.KeyClassName {
			classFrag = fmt.Sprintf(`@.class == "%s"`, cr.value)
			continue
		}
		frags = append(frags, jsonpathFragment(cr.key, cr.value))
	}
	if classFrag != "" {
		frags = append([]string{classFrag}, frags...)
	}

	syntax := "$[*]"
	if len(frags) > 0 {
		syntax = fmt.Sprintf("$[*][?(%s)]", strings.Join(frags, " && "))
	}
	return Compiled{Kind: KindJSONPath, Method: MethodQuery, Syntax: syntax}, nil
}

func jsonpathFragment(key selector.Key, value string) string {
	switch key {
	case selector.KeyID:
		return fmt.Sprintf(`@."resource-id" == "%s"`, value)
	case selector.KeyText:
		return fmt.Sprintf(`@.text == "%s"`, value)
	case selector.KeyDescription:
		return fmt.Sprintf(`@."content-desc" == "%s"`, value)
	case selector.KeyTextStartsWith:
		return fmt.Sprintf(`starts_with(@.text, "%s")`, value)
	case selector.KeyTextEndsWith:
		return fmt.Sprintf(`ends_with(@.text, "%s")`, value)
	case selector.KeyTextContains:
		return fmt.Sprintf(`contains(@.text, "%s")`, value)
	case selector.KeyTextMatches:
		return fmt.Sprintf(`regex_test(@.text, "%s")`, value)
	case selector.KeyDescriptionStartsWith:
		return fmt.Sprintf(`starts_with(@."content-desc", "%s")`, value)
	case selector.KeyDescriptionEndsWith:
		return fmt.Sprintf(`ends_with(@."content-desc", "%s")`, value)
	case selector.KeyDescriptionContains:
		return fmt.Sprintf(`contains(@."content-desc", "%s")`, value)
	case selector.KeyDescriptionMatches:
		return fmt.Sprintf(`regex_test(@."content-desc", "%s")`, value)
	default:
		return ""
	}
}
