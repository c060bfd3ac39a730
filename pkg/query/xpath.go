package query

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/uiscout/pkg/selector"
)

// XPathCompiler emits structural queries over tag-attribute hierarchy trees.
// Element tags are class names, so a class criterion seeds the location path
// and the remaining criteria become attribute predicates.
type XPathCompiler struct{}

// NewXPathCompiler returns the structural query compiler.
func NewXPathCompiler() *XPathCompiler {
	return &XPathCompiler{}
}

// Kind identifies this compiler's output syntax.
func (c *XPathCompiler) Kind() Kind {
	return KindXPath
}

// Compile resolves the selector's criteria and emits an XPath query.
// Suffix criteria reached through default resolution are rewritten to a
// "matches" predicate with a ".*value" pattern; explicit combinations keep
// the native ends-with predicate.
func (c *XPathCompiler) Compile(sel *selector.Selector, opts Options) (Compiled, error) {
	res, err := resolveCriteria(sel, opts.language(), opts.Combination, selector.KeyXPath)
	if err != nil {
		return Compiled{}, err
	}
	if res.image != nil {
		return imageCompiled(KindXPath, *res.image), nil
	}
	if res.hasRaw {
		return Compiled{Kind: KindXPath, Method: MethodQuery, Syntax: res.raw}, nil
	}

	base := "//*"
	frags := make([]string, 0, len(res.criteria))
	for _, cr := range res.criteria {
		if cr.key == selector.KeyClassName {
			base = "//" + cr.value
			continue
		}
		key, value := cr.key, cr.value
		if res.defaulted && selector.EndsWithVariant(key) {
			key = matchesVariant(key)
			value = ".*" + value
		}
		frags = append(frags, xpathFragment(key, value))
	}

	syntax := base
	if len(frags) > 0 {
		syntax = fmt.Sprintf("%s[%s]", base, strings.Join(frags, " and "))
	}
	return Compiled{Kind: KindXPath, Method: MethodQuery, Syntax: syntax}, nil
}

func matchesVariant(key selector.Key) selector.Key {
	if key == selector.KeyDescriptionEndsWith {
		return selector.KeyDescriptionMatches
	}
	return selector.KeyTextMatches
}

func xpathFragment(key selector.Key, value string) string {
	switch key {
	case selector.KeyID:
		return fmt.Sprintf(`@resource-id="%s"`, value)
	case selector.KeyText:
		return fmt.Sprintf(`@text="%s"`, value)
	case selector.KeyDescription:
		return fmt.Sprintf(`@content-desc="%s"`, value)
	case selector.KeyTextStartsWith:
		return fmt.Sprintf(`starts-with(@text, "%s")`, value)
	case selector.KeyTextEndsWith:
		return fmt.Sprintf(`ends-with(@text, "%s")`, value)
	case selector.KeyTextContains:
		return fmt.Sprintf(`contains(@text, "%s")`, value)
	case selector.KeyTextMatches:
		return fmt.Sprintf(`matches(@text, "%s")`, value)
	case selector.KeyDescriptionStartsWith:
		return fmt.Sprintf(`starts-with(@content-desc, "%s")`, value)
	case selector.KeyDescriptionEndsWith:
		return fmt.Sprintf(`ends-with(@content-desc, "%s")`, value)
	case selector.KeyDescriptionContains:
		return fmt.Sprintf(`contains(@content-desc, "%s")`, value)
	case selector.KeyDescriptionMatches:
		return fmt.Sprintf(`matches(@content-desc, "%s")`, value)
	default:
		return ""
	}
}
