// Package condition implements the boolean rule trees attached to workflows.
//
// A tree is built from two node kinds: a Leaf compares one field of the
// trigger payload against a value, and a Composite combines child nodes with
// AND or OR. Evaluation never fails; malformed nodes evaluate to false.
package condition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Operator is a leaf comparison operator.
type Operator string

const (
	Equals      Operator = "equals"
	NotEquals   Operator = "not_equals"
	GreaterThan Operator = "greater_than"
	LessThan    Operator = "less_than"
	Contains    Operator = "contains"
	NotContains Operator = "not_contains"
)

// Logic is the combinator of a composite node.
type Logic string

const (
	And Logic = "AND"
	Or  Logic = "OR"
)

// Node is either a *Leaf or a *Composite.
type Node interface {
	node()
}

// Leaf compares the value found at the dot separated Field path with Value.
// A leaf decoded without a value compares against an unresolved field, so
// equals matches exactly when the field is missing.
type Leaf struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

func (*Leaf) node() {}

// MarshalJSON implements json.Marshaler
func (l *Leaf) MarshalJSON() ([]byte, error) {
	type leaf Leaf

	if _, ok := l.Value.(undefined); ok {
		return json.Marshal(struct {
			Field    string   `json:"field"`
			Operator Operator `json:"operator"`
		}{l.Field, l.Operator})
	}

	return json.Marshal((*leaf)(l))
}

// Composite combines Rules left to right, short-circuiting.
type Composite struct {
	Operator Logic  `json:"operator"`
	Rules    []Node `json:"rules"`
}

func (*Composite) node() {}

// MarshalJSON implements json.Marshaler
func (c *Composite) MarshalJSON() ([]byte, error) {
	rules := make([]json.RawMessage, 0, len(c.Rules))
	for _, r := range c.Rules {
		b, err := marshalNode(r)
		if err != nil {
			return nil, err
		}

		rules = append(rules, b)
	}

	return json.Marshal(struct {
		Operator Logic             `json:"operator"`
		Rules    []json.RawMessage `json:"rules"`
	}{c.Operator, rules})
}

// invalid keeps the raw bytes of a node that could not be decoded so that it
// survives a round trip through storage unchanged.
type invalid struct {
	raw json.RawMessage
}

func (invalid) node() {}

// Tree is the root of a workflow's condition tree.
type Tree struct {
	Root Node
}

// Parse decodes a condition tree. Only input that is not JSON at all is
// rejected; structurally malformed nodes decode into nodes evaluating to false.
func Parse(b []byte) (*Tree, error) {
	var t Tree
	if err := t.UnmarshalJSON(b); err != nil {
		return nil, err
	}

	return &t, nil
}

// MarshalJSON implements json.Marshaler
func (t Tree) MarshalJSON() ([]byte, error) {
	if t.Root == nil {
		return []byte("null"), nil
	}

	return marshalNode(t.Root)
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Tree) UnmarshalJSON(b []byte) error {
	if !json.Valid(b) {
		return fmt.Errorf("condition tree is not valid JSON")
	}

	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		t.Root = nil
		return nil
	}

	t.Root = decodeNode(b)

	return nil
}

func marshalNode(n Node) ([]byte, error) {
	switch n := n.(type) {
	case nil:
		return []byte("null"), nil
	case *Leaf:
		return json.Marshal(n)
	case *Composite:
		return n.MarshalJSON()
	case invalid:
		return n.raw, nil
	default:
		return nil, fmt.Errorf("unknown condition node %T", n)
	}
}

func decodeNode(raw json.RawMessage) Node {
	var probe struct {
		Field    *string         `json:"field"`
		Operator string          `json:"operator"`
		Rules    json.RawMessage `json:"rules"`
		Value    json.RawMessage `json:"value"`
	}

	if err := json.Unmarshal(raw, &probe); err != nil {
		return invalid{raw: append(json.RawMessage(nil), raw...)}
	}

	logic := Logic(strings.ToUpper(probe.Operator))
	isLogic := logic == And || logic == Or
	if probe.Rules != nil || (isLogic && probe.Field == nil) {
		var rawRules []json.RawMessage
		if len(probe.Rules) > 0 && !bytes.Equal(probe.Rules, []byte("null")) {
			if err := json.Unmarshal(probe.Rules, &rawRules); err != nil {
				return invalid{raw: append(json.RawMessage(nil), raw...)}
			}
		}

		c := &Composite{
			Operator: logic,
			Rules:    make([]Node, 0, len(rawRules)),
		}
		for _, r := range rawRules {
			c.Rules = append(c.Rules, decodeNode(r))
		}

		return c
	}

	if probe.Field == nil {
		return invalid{raw: append(json.RawMessage(nil), raw...)}
	}

	leaf := &Leaf{
		Field:    *probe.Field,
		Operator: Operator(probe.Operator),
		Value:    undefined{},
	}

	if len(probe.Value) > 0 {
		var v any
		if err := json.Unmarshal(probe.Value, &v); err != nil {
			return invalid{raw: append(json.RawMessage(nil), raw...)}
		}
		leaf.Value = v
	}

	return leaf
}
