package query

import (
	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/selector"
)

// criterion is one resolved key/value pair participating in a query.
type criterion struct {
	key   selector.Key
	value string
}

// resolved is the outcome of criteria resolution: either an ordered criteria
// list, a raw query to emit verbatim, or an image reference.
type resolved struct {
	criteria []criterion
	raw      string
	hasRaw   bool
	image    *selector.ImageRef

	// defaulted marks results produced by priority-order fallback rather
	// than an explicit combination.
	defaulted bool
}

func rawLabel(raw selector.Key) string {
	if raw == selector.KeyJSONPath {
		return "Jsonpath"
	}
	return "Xpath"
}

func otherRaw(raw selector.Key) selector.Key {
	if raw == selector.KeyXPath {
		return selector.KeyJSONPath
	}
	return selector.KeyXPath
}

// resolveCriteria decides which criteria participate in the compiled query.
// rawKey names the compiler's own raw-query kind; the other compiler's raw
// key is not addressable here.
func resolveCriteria(sel *selector.Selector, lang core.Language, combination []selector.Key, rawKey selector.Key) (resolved, error) {
	if combination == nil {
		return resolveDefault(sel, lang, rawKey)
	}
	return resolveCombination(sel, lang, combination, rawKey)
}

// resolveDefault scans the priority order and takes the first criterion with
// a value for the active language as the sole criterion.
func resolveDefault(sel *selector.Selector, lang core.Language, rawKey selector.Key) (resolved, error) {
	for _, key := range selector.PriorityOrder(rawKey) {
		if key == selector.KeyImage {
			if ref, ok := sel.ResolveImage(lang); ok {
				return resolved{image: &ref, defaulted: true}, nil
			}
			continue
		}
		v, ok := sel.Resolve(key, lang)
		if !ok {
			continue
		}
		if key == rawKey {
			return resolved{raw: v, hasRaw: true, defaulted: true}, nil
		}
		return resolved{criteria: []criterion{{key: key, value: v}}, defaulted: true}, nil
	}
	return resolved{}, core.ErrInvalidSelector
}

// resolveCombination takes the caller-supplied keys in order. Every key must
// be known, combinable, and carry a value for the active language.
func resolveCombination(sel *selector.Selector, lang core.Language, combination []selector.Key, rawKey selector.Key) (resolved, error) {
	crits := make([]criterion, 0, len(combination))
	for _, key := range combination {
		switch {
		case key == selector.KeyImage:
			return resolved{}, core.ErrSelectorNotCombinable.
				WithMessage("Image selector is not supported in combination")
		case key == rawKey:
			return resolved{}, core.ErrSelectorNotCombinable.
				WithMessagef("%s selector is not supported in combination", rawLabel(rawKey))
		case key == otherRaw(rawKey) || !selector.Known(key):
			return resolved{}, core.ErrUnknownSelectorKey.
				WithMessagef("Invalid selector key: %s", key)
		}
		v, ok := sel.Resolve(key, lang)
		if !ok {
			return resolved{}, core.ErrMissingTranslation.
				WithMessagef("selector key %s has no value for language %s", key, lang).
				WithDetails(map[string]interface{}{"key": string(key), "language": string(lang)})
		}
		crits = append(crits, criterion{key: key, value: v})
	}
	if len(crits) == 0 {
		return resolved{}, core.ErrInvalidSelector
	}
	return resolved{criteria: crits}, nil
}

// imageCompiled builds the image-method result shared by both compilers.
func imageCompiled(kind Kind, ref selector.ImageRef) Compiled {
	threshold := ref.Threshold
	if threshold == 0 {
		threshold = defaultCompileThreshold
	}
	return Compiled{
		Kind:      kind,
		Method:    MethodImage,
		ImagePath: ref.Path,
		Threshold: threshold,
	}
}
