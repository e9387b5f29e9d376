// Copyright 2024 The GoJVM Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package vm

import "fmt"

// Kind tags a runtime Value. Unlike classfile.ValueKind (which only needs
// to describe descriptor parameter/return types) this set also covers the
// two reference-shaped values the engine's println bridge and getstatic
// sentinel push: ClassRef and String.
type Kind uint8

const (
	KindVoid Kind = iota
	KindClassRef
	KindString
	KindByte
	KindChar
	KindBool
	KindShort
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindClassRef:
		return "class-ref"
	case KindString:
		return "string"
	case KindByte:
		return "byte"
	case KindChar:
		return "char"
	case KindBool:
		return "bool"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a tagged operand-stack/return-value cell. Exactly one payload
// field is meaningful, selected by Kind, mirroring the flat-struct variant
// shape classfile.Constant uses for the same reason: a fixed, closed set
// of tags that never benefits from a Go interface's dynamic dispatch.
type Value struct {
	Kind     Kind
	Int      int32
	Float32  float32
	Str      string
	ClassRef string
}

func VoidValue() Value                 { return Value{Kind: KindVoid} }
func IntValue(v int32) Value           { return Value{Kind: KindInt, Int: v} }
func ByteValue(v int32) Value          { return Value{Kind: KindByte, Int: v} }
func ShortValue(v int32) Value         { return Value{Kind: KindShort, Int: v} }
func FloatValue(v float32) Value       { return Value{Kind: KindFloat, Float32: v} }
func StringValue(v string) Value       { return Value{Kind: KindString, Str: v} }
func ClassRefValue(name string) Value  { return Value{Kind: KindClassRef, ClassRef: name} }

// expectKind returns an error wrapping ErrTypeMismatch if v isn't of want.
func expectKind(v Value, want Kind) error {
	if v.Kind != want {
		return fmt.Errorf("%w: want %s, got %s", ErrTypeMismatch, want, v.Kind)
	}
	return nil
}
