// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonval models JSON documents as a tagged union so payload
// transformations can tell a missing key apart from a key that holds a value
// of the wrong kind.
package jsonval

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a JSON value. The zero Value is null.
//
// Object values share their underlying map on copy, the same way Go maps do;
// use Clone before handing a value to code that may mutate it.
type Value struct {
	kind Kind
	b    bool
	s    string // string payload, or the literal text of a number
	arr  []Value
	obj  map[string]Value
}

// NullValue returns the JSON null.
func NullValue() Value { return Value{} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// NumberValue wraps a number literal.
func NumberValue(n json.Number) Value { return Value{kind: Number, s: n.String()} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: String, s: s} }

// ArrayValue wraps a list of values.
func ArrayValue(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: Array, arr: items}
}

// ObjectValue wraps a map of fields. A nil map becomes an empty object.
func ObjectValue(fields map[string]Value) Value {
	if fields == nil {
		fields = make(map[string]Value)
	}
	return Value{kind: Object, obj: fields}
}

// NewObject returns an empty object.
func NewObject() Value { return ObjectValue(nil) }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == Null }
func (v Value) IsObject() bool { return v.kind == Object }

// AsString returns the string payload when v is a string.
func (v Value) AsString() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.s, true
}

// AsBool returns the boolean payload when v is a bool.
func (v Value) AsBool() (bool, bool) {
	if v.kind != Bool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns the number literal when v is a number.
func (v Value) AsNumber() (json.Number, bool) {
	if v.kind != Number {
		return "", false
	}
	return json.Number(v.s), true
}

// Items returns the elements of an array, or nil.
func (v Value) Items() []Value {
	if v.kind != Array {
		return nil
	}
	return v.arr
}

// Fields returns the fields of an object, or nil. The map is shared with v.
func (v Value) Fields() map[string]Value {
	if v.kind != Object {
		return nil
	}
	return v.obj
}

// Keys returns the sorted field names of an object.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of elements of an array or fields of an object.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return len(v.obj)
	}
	return 0
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case Array:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Clone()
		}
		return Value{kind: Array, arr: items}
	case Object:
		fields := make(map[string]Value, len(v.obj))
		for k, f := range v.obj {
			fields[k] = f.Clone()
		}
		return Value{kind: Object, obj: fields}
	default:
		return v
	}
}

// Equal reports whether v and o hold the same JSON value. Numbers compare by
// literal text first and numerically as a fallback.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.b == o.b
	case String:
		return v.s == o.s
	case Number:
		if v.s == o.s {
			return true
		}
		a, errA := strconv.ParseFloat(v.s, 64)
		b, errB := strconv.ParseFloat(o.s, 64)
		return errA == nil && errB == nil && a == b
	case Array:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, f := range v.obj {
			g, ok := o.obj[k]
			if !ok || !f.Equal(g) {
				return false
			}
		}
		return true
	}
	return false
}

// Text renders v for display: strings as-is, everything else as compact JSON.
func (v Value) Text() string {
	if v.kind == String {
		return v.s
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}

// Parse decodes a single JSON document. Trailing data is an error.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("parse json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("parse json: unexpected data after top-level value")
	}
	return FromAny(raw)
}

// FromAny converts the output of encoding/json or yaml.v3 decoding (and common
// Go scalars) into a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return t, nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		return NumberValue(t), nil
	case string:
		return StringValue(t), nil
	case int:
		return Value{kind: Number, s: strconv.Itoa(t)}, nil
	case int64:
		return Value{kind: Number, s: strconv.FormatInt(t, 10)}, nil
	case uint64:
		return Value{kind: Number, s: strconv.FormatUint(t, 10)}, nil
	case float64:
		return Value{kind: Number, s: strconv.FormatFloat(t, 'g', -1, 64)}, nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = iv
		}
		return ArrayValue(items), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, f := range t {
			fv, err := FromAny(f)
			if err != nil {
				return Value{}, err
			}
			fields[k] = fv
		}
		return ObjectValue(fields), nil
	case map[string]string:
		fields := make(map[string]Value, len(t))
		for k, f := range t {
			fields[k] = StringValue(f)
		}
		return ObjectValue(fields), nil
	default:
		return Value{}, fmt.Errorf("jsonval: unsupported type %T", x)
	}
}

// Any converts v back into plain Go values (map[string]any, []any, string,
// bool, json.Number, nil).
func (v Value) Any() any {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return json.Number(v.s)
	case String:
		return v.s
	case Array:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Any()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.obj))
		for k, f := range v.obj {
			out[k] = f.Any()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler. Object keys are written in sorted order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Number:
		buf.WriteString(v.s)
	case String:
		data, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(data)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := v.obj[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("jsonval: invalid kind %d", v.kind)
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler so values can be written inline in
// integration definition files.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
