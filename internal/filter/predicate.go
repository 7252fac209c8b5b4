package filter

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/alfredjeanlab/vitro/internal/model"
)

// Predicate is a where clause compiled into an expr program. It answers
// locally whether a record would be returned by a query with that filter.
type Predicate struct {
	program *exprvm.Program
	source  string
	args    map[string]any
}

// comparison operators of a where clause, mapped to expr functions.
var operators = map[string]string{
	"eq":         "opEq",
	"neq":        "opNeq",
	"in":         "opIn",
	"is":         "opIs",
	"gt":         "opGt",
	"gte":        "opGte",
	"lt":         "opLt",
	"lte":        "opLte",
	"like":       "opLike",
	"ilike":      "opILike",
	"startsWith": "opStartsWith",
}

// Compile translates where into an expr program. A nil or empty clause
// matches every record.
func Compile(where map[string]any) (*Predicate, error) {
	b := &builder{args: map[string]any{}}
	src, err := b.conjunction(where, nil)
	if err != nil {
		return nil, err
	}

	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.Function("fieldValue", fieldValue),
	}
	for _, name := range sortedValues(operators) {
		options = append(options, exprlang.Function(name, comparator(name)))
	}
	program, err := exprlang.Compile(src, options...)
	if err != nil {
		return nil, fmt.Errorf("compiling filter %q: %w", src, err)
	}
	return &Predicate{program: program, source: src, args: b.args}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(where map[string]any) *Predicate {
	p, err := Compile(where)
	if err != nil {
		panic(err)
	}
	return p
}

// Source returns the generated expression.
func (p *Predicate) Source() string { return p.source }

// Matches reports whether rec satisfies the clause. Evaluation errors count as
// a mismatch.
func (p *Predicate) Matches(rec model.Record) bool {
	env := make(map[string]any, len(p.args)+1)
	for k, v := range p.args {
		env[k] = v
	}
	env["record"] = map[string]any(rec)
	out, err := exprlang.Run(p.program, env)
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

type builder struct {
	args map[string]any
	n    int
}

func (b *builder) arg(v any) string {
	name := "arg" + strconv.Itoa(b.n)
	b.n++
	b.args[name] = v
	return name
}

// conjunction renders every key of clause, joined with &&. path is the field
// path of an enclosing composite field.
func (b *builder) conjunction(clause map[string]any, path []string) (string, error) {
	if len(clause) == 0 {
		return "true", nil
	}
	keys := make([]string, 0, len(clause))
	for k := range clause {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		part, err := b.term(k, clause[k], path)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " && ") + ")", nil
}

func (b *builder) term(key string, value any, path []string) (string, error) {
	switch key {
	case "and", "or":
		list, ok := value.([]any)
		if !ok {
			return "", fmt.Errorf("%q expects a list, got %T", key, value)
		}
		if len(list) == 0 {
			if key == "and" {
				return "true", nil
			}
			return "false", nil
		}
		parts := make([]string, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return "", fmt.Errorf("%q items must be objects, got %T", key, item)
			}
			part, err := b.conjunction(m, path)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		sep := " && "
		if key == "or" {
			sep = " || "
		}
		return "(" + strings.Join(parts, sep) + ")", nil

	case "not":
		m, ok := value.(map[string]any)
		if !ok {
			return "", fmt.Errorf("\"not\" expects an object, got %T", value)
		}
		inner, err := b.conjunction(m, path)
		if err != nil {
			return "", err
		}
		return "!" + inner, nil
	}

	if fn, ok := operators[key]; ok {
		if len(path) == 0 {
			return "", fmt.Errorf("operator %q outside a field", key)
		}
		return fmt.Sprintf("%s(%s, %s)", fn, fieldRef(path), b.arg(value)), nil
	}

	m, ok := value.(map[string]any)
	if !ok {
		return "", fmt.Errorf("field %q expects an object, got %T", key, value)
	}
	next := append(append([]string{}, path...), key)
	return b.conjunction(m, next)
}

func fieldRef(path []string) string {
	quoted := make([]string, len(path))
	for i, p := range path {
		quoted[i] = strconv.Quote(p)
	}
	return "fieldValue(record, " + strings.Join(quoted, ", ") + ")"
}

// fieldValue walks a record along a field path; missing steps yield nil.
func fieldValue(params ...any) (any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	cur := params[0]
	for _, p := range params[1:] {
		name, _ := p.(string)
		switch m := cur.(type) {
		case map[string]any:
			cur = m[name]
		case model.Record:
			cur = m[name]
		default:
			return nil, nil
		}
	}
	return cur, nil
}

func comparator(name string) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(params))
		}
		a, b := params[0], params[1]
		switch name {
		case "opEq":
			return equalValues(a, b), nil
		case "opNeq":
			return !equalValues(a, b), nil
		case "opIn":
			rv := reflect.ValueOf(b)
			if rv.Kind() != reflect.Slice {
				return false, nil
			}
			for i := 0; i < rv.Len(); i++ {
				if equalValues(a, rv.Index(i).Interface()) {
					return true, nil
				}
			}
			return false, nil
		case "opIs":
			switch b {
			case "NULL":
				return a == nil, nil
			case "NOT_NULL":
				return a != nil, nil
			}
			return false, nil
		case "opGt", "opGte", "opLt", "opLte":
			c, ok := compareValues(a, b)
			if !ok {
				return false, nil
			}
			switch name {
			case "opGt":
				return c > 0, nil
			case "opGte":
				return c >= 0, nil
			case "opLt":
				return c < 0, nil
			}
			return c <= 0, nil
		case "opLike", "opILike":
			s, ok := a.(string)
			pattern, ok2 := b.(string)
			if !ok || !ok2 {
				return false, nil
			}
			return likeMatch(s, pattern, name == "opILike"), nil
		case "opStartsWith":
			s, ok := a.(string)
			prefix, ok2 := b.(string)
			return ok && ok2 && strings.HasPrefix(s, prefix), nil
		}
		return nil, fmt.Errorf("unknown operator %s", name)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders numbers numerically and strings lexically, which also
// orders ISO-8601 dates.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, ok := a.(string)
	sb, ok2 := b.(string)
	if !ok || !ok2 {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

// likeMatch implements SQL LIKE: % matches any run, _ one character.
func likeMatch(s, pattern string, insensitive bool) bool {
	var re strings.Builder
	if insensitive {
		re.WriteString("(?is)")
	} else {
		re.WriteString("(?s)")
	}
	re.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			re.WriteString(".*")
		case '_':
			re.WriteString(".")
		default:
			re.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	re.WriteString("$")
	ok, err := regexp.MatchString(re.String(), s)
	return err == nil && ok
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
