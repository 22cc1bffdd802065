// Package abi defines the typed values exchanged across the contract-call boundary:
// function name + positional typed arguments in, typed (ok value) / (err code) out.
package abi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"token-forge/internal/domain"
)

// Type is the kind tag of a Value.
type Type string

const (
	TypeUInt      Type = "uint"
	TypeBool      Type = "bool"
	TypeASCII     Type = "ascii"
	TypePrincipal Type = "principal"
	TypeBuffer    Type = "buffer"
	TypeNone      Type = "none"
	TypeSome      Type = "some"
	TypeList      Type = "list"
	TypeTuple     Type = "tuple"

	// TypeOptional is only used in signatures; it accepts none or some.
	TypeOptional Type = "optional"
)

// ErrMalformedValue is returned when a wire value cannot be decoded.
var ErrMalformedValue = errors.New("malformed abi value")

// Value is a tagged ABI value. Only the field matching Type is meaningful.
type Value struct {
	Type  Type
	UInt  domain.Amount
	Bool  bool
	Str   string // ascii text or principal
	Bytes []byte
	Inner *Value
	List  []Value
	Tuple map[string]Value
}

func UInt(v domain.Amount) Value { return Value{Type: TypeUInt, UInt: v} }

func UInt64(v uint64) Value { return UInt(domain.NewAmount(v)) }

func Bool(v bool) Value { return Value{Type: TypeBool, Bool: v} }

func ASCII(s string) Value { return Value{Type: TypeASCII, Str: s} }

func Principal(p domain.Principal) Value { return Value{Type: TypePrincipal, Str: string(p)} }

func Buffer(b []byte) Value { return Value{Type: TypeBuffer, Bytes: b} }

func None() Value { return Value{Type: TypeNone} }

func Some(v Value) Value { return Value{Type: TypeSome, Inner: &v} }

func List(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{Type: TypeList, List: vs}
}

func Tuple(fields map[string]Value) Value { return Value{Type: TypeTuple, Tuple: fields} }

// AsUint64 returns the uint value if it fits in 64 bits.
func (v Value) AsUint64() (uint64, bool) {
	if v.Type != TypeUInt || v.UInt.Hi != 0 {
		return 0, false
	}
	return v.UInt.Lo, true
}

// AsPrincipal returns the principal value.
func (v Value) AsPrincipal() domain.Principal {
	return domain.Principal(v.Str)
}

// Field returns a tuple field, or a none value if absent.
func (v Value) Field(name string) Value {
	if f, ok := v.Tuple[name]; ok {
		return f
	}
	return None()
}

// String renders v in a compact s-expression form, e.g. (tuple (name "MTK") (supply u10)).
func (v Value) String() string {
	switch v.Type {
	case TypeUInt:
		return "u" + v.UInt.String()
	case TypeBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case TypeASCII:
		return fmt.Sprintf("%q", v.Str)
	case TypePrincipal:
		return "'" + v.Str
	case TypeBuffer:
		return "0x" + hex.EncodeToString(v.Bytes)
	case TypeNone:
		return "none"
	case TypeSome:
		return "(some " + v.Inner.String() + ")"
	case TypeList:
		parts := make([]string, 0, len(v.List)+1)
		parts = append(parts, "list")
		for _, item := range v.List {
			parts = append(parts, item.String())
		}
		return "(" + strings.Join(parts, " ") + ")"
	case TypeTuple:
		keys := make([]string, 0, len(v.Tuple))
		for k := range v.Tuple {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := []string{"tuple"}
		for _, k := range keys {
			parts = append(parts, "("+k+" "+v.Tuple[k].String()+")")
		}
		return "(" + strings.Join(parts, " ") + ")"
	default:
		return "<invalid>"
	}
}

// wireValue is the JSON form: {"type":"uint","value":"100"}.
type wireValue struct {
	Type  Type            `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Type {
	case TypeUInt:
		payload = v.UInt.String()
	case TypeBool:
		payload = v.Bool
	case TypeASCII, TypePrincipal:
		payload = v.Str
	case TypeBuffer:
		payload = hex.EncodeToString(v.Bytes)
	case TypeNone:
		return json.Marshal(wireValue{Type: TypeNone})
	case TypeSome:
		if v.Inner == nil {
			return nil, fmt.Errorf("%w: some without inner value", ErrMalformedValue)
		}
		payload = v.Inner
	case TypeList:
		list := v.List
		if list == nil {
			list = []Value{}
		}
		payload = list
	case TypeTuple:
		payload = v.Tuple
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedValue, v.Type)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Type: v.Type, Value: raw})
}

// UnmarshalJSON implements json.Unmarshaler. Text and principals are validated here so
// contracts never observe a malformed string-ascii or principal.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedValue, err)
	}

	out := Value{Type: w.Type}
	switch w.Type {
	case TypeUInt:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return fmt.Errorf("%w: uint must be a decimal string", ErrMalformedValue)
		}
		amount, err := domain.ParseAmount(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedValue, err)
		}
		out.UInt = amount
	case TypeBool:
		if err := json.Unmarshal(w.Value, &out.Bool); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedValue, err)
		}
	case TypeASCII:
		if err := json.Unmarshal(w.Value, &out.Str); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedValue, err)
		}
		if !IsASCII(out.Str) {
			return fmt.Errorf("%w: non-ascii text", ErrMalformedValue)
		}
	case TypePrincipal:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedValue, err)
		}
		p, err := domain.ParsePrincipal(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedValue, err)
		}
		out.Str = string(p)
	case TypeBuffer:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedValue, err)
		}
		b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedValue, err)
		}
		out.Bytes = b
	case TypeNone:
	case TypeSome:
		var inner Value
		if err := json.Unmarshal(w.Value, &inner); err != nil {
			return err
		}
		out.Inner = &inner
	case TypeList:
		out.List = []Value{}
		if err := json.Unmarshal(w.Value, &out.List); err != nil {
			return err
		}
	case TypeTuple:
		if err := json.Unmarshal(w.Value, &out.Tuple); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedValue, w.Type)
	}

	*v = out
	return nil
}

// IsASCII reports whether s only contains printable ASCII characters.
func IsASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
