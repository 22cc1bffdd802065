package abi

import (
	"errors"
	"fmt"
)

// ErrBadArgument is returned when call arguments do not match a function signature.
var ErrBadArgument = errors.New("bad argument")

// Param is one positional parameter of a contract function.
type Param struct {
	Name string
	Type Type
	// Inner constrains the wrapped value of an optional parameter. Empty accepts any.
	Inner Type
	// MaxLen bounds buffer and ascii lengths, including a wrapped one. Zero is unbounded.
	MaxLen int
}

func (p Param) check(v Value) error {
	if !accepts(p.Type, v.Type) {
		return fmt.Errorf("want %s, got %s", p.Type, v.Type)
	}
	if v.Type == TypeSome {
		if v.Inner == nil {
			return fmt.Errorf("some without a value")
		}
		if p.Inner != "" && v.Inner.Type != p.Inner {
			return fmt.Errorf("want (optional %s), got (some %s)", p.Inner, v.Inner.Type)
		}
		v = *v.Inner
	}
	if p.MaxLen > 0 {
		switch v.Type {
		case TypeBuffer:
			if len(v.Bytes) > p.MaxLen {
				return fmt.Errorf("buffer of %d bytes exceeds %d", len(v.Bytes), p.MaxLen)
			}
		case TypeASCII:
			if len(v.Str) > p.MaxLen {
				return fmt.Errorf("text of %d characters exceeds %d", len(v.Str), p.MaxLen)
			}
		}
	}
	return nil
}

// Signature describes a public contract function.
type Signature struct {
	Name     string
	Params   []Param
	ReadOnly bool
}

// Check validates arity and argument kinds.
func (s Signature) Check(args []Value) error {
	if len(args) != len(s.Params) {
		return fmt.Errorf("%w: %s expects %d arguments, got %d", ErrBadArgument, s.Name, len(s.Params), len(args))
	}
	for i, p := range s.Params {
		if err := p.check(args[i]); err != nil {
			return fmt.Errorf("%w: %s argument %q: %v", ErrBadArgument, s.Name, p.Name, err)
		}
	}
	return nil
}

// Equal reports whether two signatures declare the same function shape.
func (s Signature) Equal(other Signature) bool {
	if s.Name != other.Name || s.ReadOnly != other.ReadOnly || len(s.Params) != len(other.Params) {
		return false
	}
	for i := range s.Params {
		a, b := s.Params[i], other.Params[i]
		if a.Type != b.Type || a.Inner != b.Inner || a.MaxLen != b.MaxLen {
			return false
		}
	}
	return true
}

func accepts(want, got Type) bool {
	if want == TypeOptional {
		return got == TypeNone || got == TypeSome
	}
	return want == got
}
