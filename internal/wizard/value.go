package wizard

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the shape of a collected field value
type Kind string

const (
	KindText   Kind = "text"
	KindList   Kind = "list"
	KindNumber Kind = "number"
	KindRange  Kind = "range"
)

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindList, KindNumber, KindRange:
		return true
	}
	return false
}

// Value is a tagged union holding one collected answer. The zero Value is
// empty and has no kind.
type Value struct {
	kind   Kind
	text   string
	list   []string
	number float64
	min    float64
	max    float64
}

func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

func List(items ...string) Value {
	return Value{kind: KindList, list: append([]string(nil), items...)}
}

func Number(n float64) Value {
	return Value{kind: KindNumber, number: n}
}

func Range(lo, hi float64) Value {
	return Value{kind: KindRange, min: lo, max: hi}
}

func (v Value) Kind() Kind { return v.kind }

// Text returns the raw text of a text value, or the rendered form otherwise
func (v Value) Text() string {
	if v.kind == KindText {
		return v.text
	}
	return v.String()
}

// List returns a copy of the items of a list value. A text value is returned as
// a single item list.
func (v Value) List() []string {
	switch v.kind {
	case KindList:
		return append([]string(nil), v.list...)
	case KindText:
		if strings.TrimSpace(v.text) == "" {
			return nil
		}
		return []string{v.text}
	}
	return nil
}

func (v Value) Number() float64 { return v.number }

func (v Value) Range() (float64, float64) { return v.min, v.max }

// IsEmpty reports whether the value counts as "not filled in". Blank text and
// lists without a non-blank item are empty. Numbers and ranges are filled once set.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindText:
		return strings.TrimSpace(v.text) == ""
	case KindList:
		for _, item := range v.list {
			if strings.TrimSpace(item) != "" {
				return false
			}
		}
		return true
	case KindNumber, KindRange:
		return false
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindList:
		return strings.Join(v.list, ", ")
	case KindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case KindRange:
		return strconv.FormatFloat(v.min, 'f', -1, 64) + " - " + strconv.FormatFloat(v.max, 'f', -1, 64)
	}
	return ""
}

// Equal reports whether two values have the same kind and content
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	case KindNumber:
		return v.number == o.number
	case KindRange:
		return v.min == o.min && v.max == o.max
	}
	return true
}

type rangeWire struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindNumber:
		return json.Marshal(v.number)
	case KindRange:
		return json.Marshal(rangeWire{Min: v.min, Max: v.max})
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) MarshalYAML() (any, error) {
	switch v.kind {
	case KindText:
		return v.text, nil
	case KindList:
		return v.list, nil
	case KindNumber:
		return v.number, nil
	case KindRange:
		return rangeWire{Min: v.min, Max: v.max}, nil
	}
	return nil, nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!int", "!!float":
			var n float64
			if err := node.Decode(&n); err != nil {
				return err
			}
			*v = Number(n)
		case "!!null":
			*v = Value{}
		default:
			*v = Text(node.Value)
		}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*v = List(items...)
		return nil
	case yaml.MappingNode:
		var r rangeWire
		if err := node.Decode(&r); err != nil {
			return err
		}
		*v = Range(r.Min, r.Max)
		return nil
	}
	return fmt.Errorf("unsupported yaml node for field value at line %d", node.Line)
}

func valueFromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return Text(x), nil
	case float64:
		return Number(x), nil
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				items = append(items, s)
				continue
			}
			items = append(items, fmt.Sprint(item))
		}
		return List(items...), nil
	case map[string]any:
		lo, okMin := x["min"].(float64)
		hi, okMax := x["max"].(float64)
		if !okMin || !okMax {
			return Value{}, fmt.Errorf("range value needs numeric min and max")
		}
		return Range(lo, hi), nil
	}
	return Value{}, fmt.Errorf("unsupported field value type %T", raw)
}

var rangePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)`)

// ParseValue converts free-form user input into a value of the given kind.
// Lists are split on commas and newlines.
func ParseValue(kind Kind, raw string) (Value, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case KindText, "":
		return Text(raw), nil
	case KindList:
		var items []string
		for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' }) {
			if item := strings.TrimSpace(part); item != "" {
				items = append(items, item)
			}
		}
		return List(items...), nil
	case KindNumber:
		if raw == "" {
			return Value{}, nil
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not a number", raw)
		}
		return Number(n), nil
	case KindRange:
		if raw == "" {
			return Value{}, nil
		}
		m := rangePattern.FindStringSubmatch(raw)
		if m == nil {
			return Value{}, fmt.Errorf("%q is not a range like 50000 - 70000", raw)
		}
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		if hi < lo {
			lo, hi = hi, lo
		}
		return Range(lo, hi), nil
	}
	return Value{}, fmt.Errorf("unknown field kind %q", kind)
}
