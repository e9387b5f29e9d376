// Copyright 2024 The GoJVM Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package classfile

// Attribute is a generically decoded attribute_info: a name (resolved
// through the constant pool) and its raw payload, borrowed directly from
// the class file's backing buffer. Only the Code attribute is interpreted
// further, by parseCode; every other attribute (SourceFile,
// LineNumberTable, etc.) is kept only in this raw shape, matching the
// teacher's habit of decoding directory-only metadata it doesn't act on
// (ImageDataDirectory) while leaving section payloads as raw byte slices.
type Attribute struct {
	Name string
	Info []byte
}

// ExceptionHandler is one entry of a Code attribute's exception table.
// gojvm never raises or catches exceptions (see Non-goals) but still
// decodes the table, matching the reference implementation's behaviour of
// reading it into the Frame/Code-like structures without acting on it.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// Code is the decoded body of a Code attribute: the bytecode to execute
// plus the stack/locals sizing the verifier would otherwise have checked.
type Code struct {
	MaxStack   uint16
	MaxLocals  uint16
	Bytecode   []byte
	Exceptions []ExceptionHandler
	Attributes []Attribute
}

func parseAttribute(c *cursor, cp *ConstantPool) (Attribute, error) {
	nameIndex, err := c.readU16()
	if err != nil {
		return Attribute{}, err
	}
	name, err := cp.UTF8At(nameIndex)
	if err != nil {
		return Attribute{}, cfe(err, "attribute name")
	}
	length, err := c.readU32()
	if err != nil {
		return Attribute{}, err
	}
	info, err := c.borrow(length)
	if err != nil {
		return Attribute{}, cfe(ErrOutsideBoundary, "attribute info")
	}
	return Attribute{Name: name, Info: info}, nil
}

func parseAttributes(c *cursor, cp *ConstantPool) ([]Attribute, error) {
	count, err := c.readU16()
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, 0, count)
	for i := uint16(0); i < count; i++ {
		a, err := parseAttribute(c, cp)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

// parseCode decodes a Code attribute's payload. The attribute's Info bytes
// have already been sliced out of the class file by parseAttribute, so a
// fresh cursor over that slice starts at the Code attribute's own byte 0.
func parseCode(info []byte) (*Code, error) {
	c := newCursor(info)

	maxStack, err := c.readU16()
	if err != nil {
		return nil, cfe(err, "code.max_stack")
	}
	maxLocals, err := c.readU16()
	if err != nil {
		return nil, cfe(err, "code.max_locals")
	}
	codeLength, err := c.readU32()
	if err != nil {
		return nil, cfe(err, "code.code_length")
	}
	bytecode, err := c.borrow(codeLength)
	if err != nil {
		return nil, cfe(ErrOutsideBoundary, "code.code")
	}

	exceptionTableLength, err := c.readU16()
	if err != nil {
		return nil, cfe(err, "code.exception_table_length")
	}
	exceptions := make([]ExceptionHandler, 0, exceptionTableLength)
	for i := uint16(0); i < exceptionTableLength; i++ {
		startPC, err := c.readU16()
		if err != nil {
			return nil, err
		}
		endPC, err := c.readU16()
		if err != nil {
			return nil, err
		}
		handlerPC, err := c.readU16()
		if err != nil {
			return nil, err
		}
		catchType, err := c.readU16()
		if err != nil {
			return nil, err
		}
		exceptions = append(exceptions, ExceptionHandler{
			StartPC:   startPC,
			EndPC:     endPC,
			HandlerPC: handlerPC,
			CatchType: catchType,
		})
	}

	// Nested attributes (LineNumberTable, LocalVariableTable, ...) require
	// resolving names through the owning class's constant pool, which this
	// narrowly-scoped cursor doesn't have access to; gojvm has no use for
	// them, so they are skipped by length rather than decoded, matching
	// the reference implementation's choice not to look inside them.
	nestedCount, err := c.readU16()
	if err != nil {
		return nil, cfe(err, "code.attributes_count")
	}
	for i := uint16(0); i < nestedCount; i++ {
		if _, err := c.readU16(); err != nil { // attribute_name_index, unresolved on purpose
			return nil, err
		}
		length, err := c.readU32()
		if err != nil {
			return nil, err
		}
		if _, err := c.borrow(length); err != nil {
			return nil, cfe(ErrOutsideBoundary, "nested attribute info")
		}
	}

	return &Code{
		MaxStack:   maxStack,
		MaxLocals:  maxLocals,
		Bytecode:   bytecode,
		Exceptions: exceptions,
	}, nil
}

// CodeAttribute finds and decodes the Code attribute among m's attributes.
func (m *Method) CodeAttribute() (*Code, error) {
	for _, a := range m.Attributes {
		if a.Name == "Code" {
			return parseCode(a.Info)
		}
	}
	return nil, cfe(ErrCodeAttributeMissing, m.Name)
}
