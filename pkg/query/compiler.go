// Package query compiles selectors into executable query strings and
// evaluates them against hierarchy snapshots. Two compiler strategies share
// one contract: a structural (XPath) variant run against tag-attribute trees
// and a document (JSONPath) variant run against JSON snapshots.
package query

import (
	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/selector"
)

// Method declares how a compiled selector is resolved.
type Method int

const (
	MethodQuery Method = iota // Evaluate Syntax against a hierarchy snapshot
	MethodImage               // Match ImagePath against a captured frame
)

// String returns the string representation of Method
func (m Method) String() string {
	switch m {
	case MethodQuery:
		return "query"
	case MethodImage:
		return "image"
	default:
		return "unknown"
	}
}

// Kind identifies which compiler produced a query.
type Kind int

const (
	KindXPath Kind = iota
	KindJSONPath
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindXPath:
		return "xpath"
	case KindJSONPath:
		return "jsonpath"
	default:
		return "unknown"
	}
}

// Compiled is the immutable result of compiling a selector.
type Compiled struct {
	Kind      Kind
	Method    Method
	Syntax    string  // query string, set when Method == MethodQuery
	ImagePath string  // reference image path, set when Method == MethodImage
	Threshold float64 // minimum match confidence, set when Method == MethodImage
}

// Options carries per-compilation inputs.
type Options struct {
	// Language selects which translation of multi-language values to use.
	// Empty defaults to english.
	Language core.Language

	// Combination lists the criteria to AND together, in emission order.
	// Nil selects default single-criterion resolution.
	Combination []selector.Key
}

func (o Options) language() core.Language {
	if o.Language == "" {
		return core.LanguageEnglish
	}
	return o.Language
}

// Compiler turns a selector into a compiled query.
type Compiler interface {
	Kind() Kind
	Compile(sel *selector.Selector, opts Options) (Compiled, error)
}

// defaultCompileThreshold applies when an image reference reaches the
// compiler without a threshold of its own.
const defaultCompileThreshold = 0.95
