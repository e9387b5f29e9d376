// Copyright 2024 The GoJVM Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package vm

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// vmClassBuilder assembles a class file byte buffer wired with the
// constant pool entries every test needs: System.out (Fieldref, index
// testSystemOutRef) and PrintStream.println (Methodref, index testPrintlnRef),
// so test bytecode can reference getstatic/invokevirtual by fixed indices
// without hand-computing constant pool offsets.
type vmClassBuilder struct {
	buf     bytes.Buffer
	entries int
}

// Constant pool indices newTestClassPrelude always produces, in order:
// the System.out Fieldref and PrintStream.println Methodref every test's
// getstatic/invokevirtual bytecode references by these fixed values.
const (
	testSystemOutRef = 6
	testPrintlnRef   = 12
)

func (b *vmClassBuilder) u8(v uint8)   { b.buf.WriteByte(v) }
func (b *vmClassBuilder) u16(v uint16) { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *vmClassBuilder) u32(v uint32) { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *vmClassBuilder) raw(p []byte) { b.buf.Write(p) }

func (b *vmClassBuilder) utf8(s string) uint16 {
	b.u8(1)
	b.u16(uint16(len(s)))
	b.raw([]byte(s))
	b.entries++
	return uint16(b.entries)
}

func (b *vmClassBuilder) classRef(nameIdx uint16) uint16 {
	b.u8(7)
	b.u16(nameIdx)
	b.entries++
	return uint16(b.entries)
}

func (b *vmClassBuilder) nameAndType(nameIdx, descIdx uint16) uint16 {
	b.u8(12)
	b.u16(nameIdx)
	b.u16(descIdx)
	b.entries++
	return uint16(b.entries)
}

func (b *vmClassBuilder) fieldref(classIdx, natIdx uint16) uint16 {
	b.u8(9)
	b.u16(classIdx)
	b.u16(natIdx)
	b.entries++
	return uint16(b.entries)
}

func (b *vmClassBuilder) methodref(classIdx, natIdx uint16) uint16 {
	b.u8(10)
	b.u16(classIdx)
	b.u16(natIdx)
	b.entries++
	return uint16(b.entries)
}

// fixedIndices holds the constant pool indices every helper method below
// wires test bytecode against, so test code can write literal operand
// bytes instead of threading indices through every call site.
type fixedIndices struct {
	thisClass     uint16
	systemOutRef  uint16 // Fieldref, for getstatic
	printlnRef    uint16 // Methodref, for invokevirtual
}

func newTestClassPrelude() (*vmClassBuilder, fixedIndices) {
	b := &vmClassBuilder{}

	systemClassName := b.utf8("java/lang/System")
	systemClass := b.classRef(systemClassName)
	outName := b.utf8("out")
	printStreamDesc := b.utf8("Ljava/io/PrintStream;")
	outNat := b.nameAndType(outName, printStreamDesc)
	systemOutRef := b.fieldref(systemClass, outNat)

	printStreamClassName := b.utf8("java/io/PrintStream")
	printStreamClass := b.classRef(printStreamClassName)
	printlnName := b.utf8("println")
	printlnDesc := b.utf8("(I)V")
	printlnNat := b.nameAndType(printlnName, printlnDesc)
	printlnRef := b.methodref(printStreamClass, printlnNat)

	thisName := b.utf8("Test")
	thisClass := b.classRef(thisName)

	return b, fixedIndices{
		thisClass:    thisClass,
		systemOutRef: systemOutRef,
		printlnRef:   printlnRef,
	}
}

type vmMethod struct {
	name      string
	descriptor string
	static    bool
	code      []byte
	maxStack  uint16
	maxLocals uint16
}

func buildMultiMethodClass(methods []vmMethod) []byte {
	b, fi := newTestClassPrelude()
	codeName := b.utf8("Code")

	var methodsBuf bytes.Buffer
	wm := func(v interface{}) { binary.Write(&methodsBuf, binary.BigEndian, v) }
	for _, m := range methods {
		nameIdx := b.utf8(m.name)
		descIdx := b.utf8(m.descriptor)

		accessFlags := uint16(0x0001) // public
		if m.static {
			accessFlags |= 0x0008
		}
		wm(accessFlags)
		wm(nameIdx)
		wm(descIdx)
		wm(uint16(1)) // attributes_count
		wm(codeName)

		var code bytes.Buffer
		wc := func(v interface{}) { binary.Write(&code, binary.BigEndian, v) }
		wc(m.maxStack)
		wc(m.maxLocals)
		wc(uint32(len(m.code)))
		code.Write(m.code)
		wc(uint16(0)) // exception_table_length
		wc(uint16(0)) // attributes_count

		wm(uint32(code.Len()))
		methodsBuf.Write(code.Bytes())
	}

	var out bytes.Buffer
	w := func(v interface{}) { binary.Write(&out, binary.BigEndian, v) }
	w(uint32(0xCAFEBABE))
	w(uint16(0)) // minor
	w(uint16(0)) // major
	w(uint16(b.entries + 1))
	out.Write(b.buf.Bytes())

	w(uint16(0x0021)) // access_flags: public super
	w(fi.thisClass)
	w(uint16(0)) // super_class
	w(uint16(0)) // interfaces_count
	w(uint16(0)) // fields_count

	w(uint16(len(methods)))
	out.Write(methodsBuf.Bytes())

	w(uint16(0)) // class attributes_count
	return out.Bytes()
}

func singleMethodClass(t *testing.T, name string, code []byte, maxStack, maxLocals uint16) []byte {
	t.Helper()
	return buildMultiMethodClass([]vmMethod{
		{name: name, descriptor: "()V", static: true, code: code, maxStack: maxStack, maxLocals: maxLocals},
	})
}

// testHelperRef is the Methodref index twoMethodClass wires for invoking
// its own "helper" method via invokestatic (simple-name resolution means
// any Methodref naming "helper" in its NameAndType works, regardless of
// which class it nominally points at).
const testHelperRef = 18

// twoMethodClass builds a class whose main() calls a static helper()I
// computing 2+3 via iadd, then prints it, exercising invokestatic
// parameter-free linkage, the ireturn pop-and-transfer fix, and iadd
// itself (scenario S3's literal "int sum(){ return 2+3; }").
func twoMethodClass(t *testing.T) []byte {
	t.Helper()
	b, fi := newTestClassPrelude() // entries 1-14, fi.thisClass == 14

	helperName := b.utf8("helper")    // 15
	helperDesc := b.utf8("()I")       // 16
	helperNat := b.nameAndType(helperName, helperDesc) // 17
	helperRef := b.methodref(fi.thisClass, helperNat)  // 18
	if helperRef != testHelperRef {
		t.Fatalf("constant pool layout drifted: helperRef = %d, want %d", helperRef, testHelperRef)
	}
	codeName := b.utf8("Code")

	helperCode := []byte{
		byte(OpIConst2),
		byte(OpIConst3),
		byte(OpIAdd),
		byte(OpIReturn),
	}
	mainCode := []byte{
		byte(OpGetStatic), 0, testSystemOutRef,
		byte(OpInvokeStatic), 0, testHelperRef,
		byte(OpInvokeVirtual), 0, testPrintlnRef,
		byte(OpReturn),
	}

	var methodsBuf bytes.Buffer
	wm := func(v interface{}) { binary.Write(&methodsBuf, binary.BigEndian, v) }
	writeMethod := func(nameIdx, descIdx uint16, code []byte, maxStack, maxLocals uint16) {
		wm(uint16(0x0009)) // public static
		wm(nameIdx)
		wm(descIdx)
		wm(uint16(1))
		wm(codeName)

		var cbuf bytes.Buffer
		wc := func(v interface{}) { binary.Write(&cbuf, binary.BigEndian, v) }
		wc(maxStack)
		wc(maxLocals)
		wc(uint32(len(code)))
		cbuf.Write(code)
		wc(uint16(0))
		wc(uint16(0))

		wm(uint32(cbuf.Len()))
		methodsBuf.Write(cbuf.Bytes())
	}
	writeMethod(helperName, helperDesc, helperCode, 2, 0)
	mainName := b.utf8("main")
	mainDesc := b.utf8("()V")
	writeMethod(mainName, mainDesc, mainCode, 4, 0)

	var out bytes.Buffer
	w := func(v interface{}) { binary.Write(&out, binary.BigEndian, v) }
	w(uint32(0xCAFEBABE))
	w(uint16(0))
	w(uint16(0))
	w(uint16(b.entries + 1))
	out.Write(b.buf.Bytes())

	w(uint16(0x0021))
	w(fi.thisClass)
	w(uint16(0))
	w(uint16(0))
	w(uint16(0))

	w(uint16(2))
	out.Write(methodsBuf.Bytes())

	w(uint16(0))
	return out.Bytes()
}

// buildLoopBytecode assembles:
//
//	iconst_0           ; i = 0
//	istore_0
//	L0: iload_0
//	    iconst_3
//	    if_icmpge L1   ; branch out when i >= 3
//	    getstatic
//	    iload_0
//	    invokevirtual
//	    iinc 0, 1
//	    goto L0
//	L1: return
func buildLoopBytecode() []byte {
	code := []byte{
		byte(OpIConst0),
		byte(OpIStore0),
		// L0 = pc 2
		byte(OpILoad0),
		byte(OpIConst3),
		byte(OpIfICmpGE), 0, 0, // patched below
		byte(OpGetStatic), 0, testSystemOutRef,
		byte(OpILoad0),
		byte(OpInvokeVirtual), 0, testPrintlnRef,
		byte(OpIInc), 0, 1,
		byte(OpGoto), 0, 0, // patched below
		// L1
		byte(OpReturn),
	}

	l0 := 2
	ifICmpGEPos := 4
	gotoPos := 17
	l1 := len(code) - 1

	// branchTarget(posAfterOperand, offset) = posAfterOperand + offset - 3,
	// and posAfterOperand = opcodeAddress + 3, so offset = target -
	// opcodeAddress with no further adjustment.
	ifOffset := int16(l1 - ifICmpGEPos)
	code[ifICmpGEPos+1] = byte(ifOffset >> 8)
	code[ifICmpGEPos+2] = byte(ifOffset)

	gotoOffset := int16(l0 - gotoPos)
	code[gotoPos+1] = byte(gotoOffset >> 8)
	code[gotoPos+2] = byte(gotoOffset)

	return code
}
