// Copyright 2024 The GoJVM Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package vm

// Opcode is a single bytecode instruction tag, the recognised subset of the
// class-file format's full instruction set.
type Opcode uint8

const (
	OpIConstM1 Opcode = 0x02
	OpIConst0  Opcode = 0x03
	OpIConst1  Opcode = 0x04
	OpIConst2  Opcode = 0x05
	OpIConst3  Opcode = 0x06
	OpIConst4  Opcode = 0x07
	OpIConst5  Opcode = 0x08

	OpBIPush Opcode = 0x10
	OpSIPush Opcode = 0x11
	OpLDC    Opcode = 0x12

	OpILoad  Opcode = 0x15
	OpILoad0 Opcode = 0x1A
	OpILoad1 Opcode = 0x1B
	OpILoad2 Opcode = 0x1C
	OpILoad3 Opcode = 0x1D

	OpIStore  Opcode = 0x36
	OpIStore0 Opcode = 0x3B
	OpIStore1 Opcode = 0x3C
	OpIStore2 Opcode = 0x3D
	OpIStore3 Opcode = 0x3E

	OpIAdd Opcode = 0x60
	OpIInc Opcode = 0x84

	OpIfICmpEQ Opcode = 0x9F
	OpIfICmpNE Opcode = 0xA0
	OpIfICmpLT Opcode = 0xA1
	OpIfICmpGE Opcode = 0xA2
	OpIfICmpGT Opcode = 0xA3
	OpIfICmpLE Opcode = 0xA4

	OpGoto Opcode = 0xA7

	OpIReturn Opcode = 0xAC
	OpReturn  Opcode = 0xB1

	OpGetStatic     Opcode = 0xB2
	OpInvokeVirtual Opcode = 0xB6
	OpInvokeStatic  Opcode = 0xB8

	OpNop Opcode = 0x00
)

// isIConst reports whether op is one of the iconst_<n> family (0x02-0x08).
func isIConst(op Opcode) bool { return op >= OpIConstM1 && op <= OpIConst5 }

// iConstValue returns the pushed int for an iconst_<n> opcode: -1..5.
func iConstValue(op Opcode) int32 { return int32(op) - 3 }

func isILoadN(op Opcode) bool  { return op >= OpILoad0 && op <= OpILoad3 }
func iLoadNIndex(op Opcode) int { return int(op - OpILoad0) }

func isIStoreN(op Opcode) bool  { return op >= OpIStore0 && op <= OpIStore3 }
func iStoreNIndex(op Opcode) int { return int(op - OpIStore0) }
