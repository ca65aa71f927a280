package condition

import (
	"reflect"
	"strconv"
	"strings"
)

// undefined marks a field path that could not be resolved. It is distinct
// from a JSON null, which resolves to nil.
type undefined struct{}

// Evaluate reports whether data satisfies the node. It has no side effects.
//
// An empty AND is true and an empty OR is false. Unknown operators and
// malformed nodes evaluate to false.
func Evaluate(n Node, data any) bool {
	switch n := n.(type) {
	case *Composite:
		return evaluateComposite(n, data)
	case *Leaf:
		return evaluateLeaf(n, data)
	default:
		return false
	}
}

// Evaluate evaluates the tree's root. A tree without a root is always met.
func (t *Tree) Evaluate(data any) bool {
	if t == nil || t.Root == nil {
		return true
	}

	return Evaluate(t.Root, data)
}

func evaluateComposite(c *Composite, data any) bool {
	switch c.Operator {
	case And:
		for _, r := range c.Rules {
			if !Evaluate(r, data) {
				return false
			}
		}
		return true

	case Or:
		for _, r := range c.Rules {
			if Evaluate(r, data) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

func evaluateLeaf(l *Leaf, data any) bool {
	v := resolve(data, l.Field)

	switch l.Operator {
	case Equals:
		return equal(v, l.Value)
	case NotEquals:
		return !equal(v, l.Value)
	case GreaterThan:
		c, ok := compare(v, l.Value)
		return ok && c > 0
	case LessThan:
		c, ok := compare(v, l.Value)
		return ok && c < 0
	case Contains:
		return contains(v, l.Value)
	case NotContains:
		return !contains(v, l.Value)
	default:
		return false
	}
}

// resolve walks data along a dot separated path. Array elements are
// addressed by their index.
func resolve(data any, path string) any {
	if path == "" {
		return undefined{}
	}

	cur := data
	for _, segment := range strings.Split(path, ".") {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[segment]
			if !ok {
				return undefined{}
			}
			cur = next

		case []any:
			i, err := strconv.Atoi(segment)
			if err != nil || i < 0 || i >= len(c) {
				return undefined{}
			}
			cur = c[i]

		default:
			return undefined{}
		}
	}

	return cur
}

func equal(a, b any) bool {
	if _, ok := a.(undefined); ok {
		_, ok := b.(undefined)
		return ok
	}

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}

	return reflect.DeepEqual(a, b)
}

// compare orders two numbers or two strings. Numeric strings are coerced
// when compared with a number.
func compare(a, b any) (int, bool) {
	if _, ok := a.(undefined); ok {
		return 0, false
	}

	sa, aIsString := a.(string)
	sb, bIsString := b.(string)
	if aIsString && bIsString {
		return strings.Compare(sa, sb), true
	}

	fa, ok := toNumber(a)
	if !ok {
		return 0, false
	}

	fb, ok := toNumber(b)
	if !ok {
		return 0, false
	}

	switch {
	case fa > fb:
		return 1, true
	case fa < fb:
		return -1, true
	default:
		return 0, true
	}
}

func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		n, ok := stringify(needle)
		return ok && strings.Contains(h, n)

	case []any:
		for _, e := range h {
			if equal(e, needle) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

func stringify(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	default:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return "", false
	}
}

func toNumber(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}

	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
