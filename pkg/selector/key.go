// Package selector defines the declarative element description model: named
// matching criteria, optionally translated per language, plus raw-query and
// image escape hatches.
package selector

// Key names one matching criterion on a Selector.
type Key string

const (
	KeyID          Key = "id"
	KeyText        Key = "text"
	KeyDescription Key = "description"
	KeyClassName   Key = "class_name"
	KeyXPath       Key = "xpath"
	KeyJSONPath    Key = "jsonpath"

	KeyTextStartsWith Key = "text_starts_with"
	KeyTextEndsWith   Key = "text_ends_with"
	KeyTextContains   Key = "text_contains"
	KeyTextMatches    Key = "text_matches"

	KeyDescriptionStartsWith Key = "description_starts_with"
	KeyDescriptionEndsWith   Key = "description_ends_with"
	KeyDescriptionContains   Key = "description_contains"
	KeyDescriptionMatches    Key = "description_matches"

	KeyImage Key = "image"
)

// Keys lists every criterion key.
var Keys = []Key{
	KeyID,
	KeyText,
	KeyDescription,
	KeyClassName,
	KeyXPath,
	KeyJSONPath,
	KeyTextStartsWith,
	KeyTextEndsWith,
	KeyTextContains,
	KeyTextMatches,
	KeyDescriptionStartsWith,
	KeyDescriptionEndsWith,
	KeyDescriptionContains,
	KeyDescriptionMatches,
	KeyImage,
}

// Known reports whether k is one of the defined criterion keys.
func Known(k Key) bool {
	for _, known := range Keys {
		if k == known {
			return true
		}
	}
	return false
}

// PriorityOrder returns the scan order used for default (single-criterion)
// resolution. The raw-query slot is compiler specific, so the caller passes
// its own raw kind (KeyXPath or KeyJSONPath); the other raw key does not
// participate.
func PriorityOrder(raw Key) []Key {
	return []Key{
		KeyID,
		KeyText,
		KeyDescription,
		raw,
		KeyClassName,
		KeyTextStartsWith,
		KeyTextEndsWith,
		KeyTextContains,
		KeyTextMatches,
		KeyDescriptionStartsWith,
		KeyDescriptionEndsWith,
		KeyDescriptionContains,
		KeyDescriptionMatches,
		KeyImage,
	}
}

// EndsWithVariant reports whether k is a suffix-matching criterion. These are
// the keys the structural compiler rewrites to a regex in default resolution.
func EndsWithVariant(k Key) bool {
	return k == KeyTextEndsWith || k == KeyDescriptionEndsWith
}
