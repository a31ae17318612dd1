// Package amf implements the AMF0 value encoding used by RTMP command and
// metadata messages.
package amf

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind is the type of an AMF0 value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindBoolean
	KindString
	KindObject
	KindEcmaArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindEcmaArray:
		return "ecma-array"
	}

	return "unknown"
}

// Value is an AMF0 value. The zero value is Null.
type Value struct {
	kind  Kind
	num   float64
	flag  bool
	str   string
	props map[string]Value
}

func Null() Value {
	return Value{kind: KindNull}
}

func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

func Boolean(b bool) Value {
	return Value{kind: KindBoolean, flag: b}
}

func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Object returns an anonymous object with the given properties. The map is
// copied.
func Object(props map[string]Value) Value {
	return Value{kind: KindObject, props: copyProps(props)}
}

// EcmaArray returns an associative array with the given properties. The map is
// copied.
func EcmaArray(props map[string]Value) Value {
	return Value{kind: KindEcmaArray, props: copyProps(props)}
}

func copyProps(props map[string]Value) map[string]Value {
	m := make(map[string]Value, len(props))
	for k, v := range props {
		m[k] = v
	}

	return m
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// IsObject returns whether the value is an object or an associative array.
func (v Value) IsObject() bool {
	return v.kind == KindObject || v.kind == KindEcmaArray
}

func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) AsBool() (bool, bool) {
	return v.flag, v.kind == KindBoolean
}

func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// Get returns the property with the given key. The second return value is false
// if the value isn't an object or the key doesn't exist.
func (v Value) Get(key string) (Value, bool) {
	if !v.IsObject() {
		return Value{}, false
	}

	p, ok := v.props[key]

	return p, ok
}

// GetString is a shortcut for a string property.
func (v Value) GetString(key string) (string, bool) {
	p, ok := v.Get(key)
	if !ok {
		return "", false
	}

	return p.AsString()
}

// Set sets a property in place. It is a no-op for non object values.
func (v Value) Set(key string, p Value) {
	if !v.IsObject() || v.props == nil {
		return
	}

	v.props[key] = p
}

// Len returns the number of properties of an object.
func (v Value) Len() int {
	return len(v.props)
}

// Keys returns the sorted property names.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.props))
	for k := range v.props {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Properties returns a copy of the properties of an object.
func (v Value) Properties() map[string]Value {
	if !v.IsObject() {
		return nil
	}

	return copyProps(v.props)
}

// Merge returns an associative array with the properties of v, overwritten by
// the properties of o. If v is not an object, the result contains only the
// properties of o.
func (v Value) Merge(o Value) Value {
	m := EcmaArray(v.props)
	for k, p := range o.props {
		m.props[k] = p
	}

	return m
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	if !v.IsObject() {
		return v
	}

	c := Value{kind: v.kind, props: make(map[string]Value, len(v.props))}
	for k, p := range v.props {
		c.props[k] = p.Clone()
	}

	return c
}

// Equal compares two values. Numbers are compared by their bit pattern and
// objects regardless of key order.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}

	switch a.kind {
	case KindNull:
		return true
	case KindNumber:
		return math.Float64bits(a.num) == math.Float64bits(b.num)
	case KindBoolean:
		return a.flag == b.flag
	case KindString:
		return a.str == b.str
	}

	if len(a.props) != len(b.props) {
		return false
	}

	for k, p := range a.props {
		q, ok := b.props[k]
		if !ok || !Equal(p, q) {
			return false
		}
	}

	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.flag)
	case KindString:
		return strconv.Quote(v.str)
	}

	var sb strings.Builder

	if v.kind == KindEcmaArray {
		sb.WriteString("[")
	} else {
		sb.WriteString("{")
	}

	for i, k := range v.Keys() {
		if i != 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", k, v.props[k].String())
	}

	if v.kind == KindEcmaArray {
		sb.WriteString("]")
	} else {
		sb.WriteString("}")
	}

	return sb.String()
}
