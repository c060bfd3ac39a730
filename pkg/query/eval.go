package query

import (
	"context"
	"regexp"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

// programCacheSize bounds the memoized compiled-program caches. Selector
// suites reuse a small set of query strings, so parse work is paid once.
const programCacheSize = 256

var (
	xpathPrograms    = mustCache[*xpath.Expr]()
	documentPrograms = mustCache[gval.Evaluable]()
)

func mustCache[V any]() *lru.Cache[string, V] {
	c, err := lru.New[string, V](programCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}

// documentLanguage extends JSONPath filters with the predicate functions the
// document compiler emits. Arguments arrive untyped from the evaluator;
// non-string attribute values simply never match.
var documentLanguage = gval.NewLanguage(
	jsonpath.Language(),
	gval.Function("starts_with", func(args ...interface{}) (interface{}, error) {
		s, prefix := stringArg(args, 0), stringArg(args, 1)
		return strings.HasPrefix(s, prefix), nil
	}),
	gval.Function("ends_with", func(args ...interface{}) (interface{}, error) {
		s, suffix := stringArg(args, 0), stringArg(args, 1)
		return strings.HasSuffix(s, suffix), nil
	}),
	gval.Function("contains", func(args ...interface{}) (interface{}, error) {
		s, sub := stringArg(args, 0), stringArg(args, 1)
		return strings.Contains(s, sub), nil
	}),
	gval.Function("regex_test", func(args ...interface{}) (interface{}, error) {
		s, pattern := stringArg(args, 0), stringArg(args, 1)
		re, err := regexPattern(pattern)
		if err != nil {
			return nil, err
		}
		return re.MatchString(s), nil
	}),
)

func stringArg(args []interface{}, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

var regexPatterns = mustCache[*regexp.Regexp]()

func regexPattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexPatterns.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexPatterns.Add(pattern, re)
	return re, nil
}

func xpathProgram(expr string) (*xpath.Expr, error) {
	if prog, ok := xpathPrograms.Get(expr); ok {
		return prog, nil
	}
	prog, err := xpath.Compile(expr)
	if err != nil {
		return nil, err
	}
	xpathPrograms.Add(expr, prog)
	return prog, nil
}

// quotedAttr matches the @."attr-name" form the document compiler emits for
// attributes with dashes in their names. The evaluator wants bracket form.
var quotedAttr = regexp.MustCompile(`@\."((?:[^"\\]|\\.)*)"`)

func normalizeDocumentExpr(expr string) string {
	return quotedAttr.ReplaceAllString(expr, `@["$1"]`)
}

func documentProgram(expr string) (gval.Evaluable, error) {
	if prog, ok := documentPrograms.Get(expr); ok {
		return prog, nil
	}
	prog, err := documentLanguage.NewEvaluable(normalizeDocumentExpr(expr))
	if err != nil {
		return nil, err
	}
	documentPrograms.Add(expr, prog)
	return prog, nil
}

// EvaluateXPath runs a structural query against a parsed hierarchy tree and
// returns the matching nodes in document order.
func EvaluateXPath(root *xmlquery.Node, expr string) ([]*xmlquery.Node, error) {
	prog, err := xpathProgram(expr)
	if err != nil {
		return nil, core.ErrInvalidSelector.
			WithMessagef("invalid structural query %q", expr).
			WithCause(err)
	}
	return xmlquery.QuerySelectorAll(root, prog), nil
}

// EvaluateJSONPath runs a document query against an unmarshaled JSON
// hierarchy snapshot and returns the matching values in document order.
func EvaluateJSONPath(ctx context.Context, doc interface{}, expr string) ([]interface{}, error) {
	prog, err := documentProgram(expr)
	if err != nil {
		return nil, core.ErrInvalidSelector.
			WithMessagef("invalid document query %q", expr).
			WithCause(err)
	}
	out, err := prog(ctx, doc)
	if err != nil {
		return nil, core.ErrInvalidSelector.
			WithMessagef("document query %q failed", expr).
			WithCause(err)
	}
	switch v := out.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return v, nil
	default:
		return []interface{}{v}, nil
	}
}
