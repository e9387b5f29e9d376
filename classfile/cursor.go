// Copyright 2024 The GoJVM Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package classfile

import (
	"encoding/binary"
	"math"
)

// ErrOutsideBoundary is returned when a cursor read would run past the end
// of the underlying buffer.
var ErrOutsideBoundary = newClassFormatError("reading data outside boundary")

// cursor is a random-access read head over an immutable byte buffer. Every
// read honours the cursor's endianness flag for multi-byte values; single
// byte reads are endianness-agnostic by construction.
//
// The class-file format is big-endian end to end except for one quirk: the
// bytes of a UTF8 constant are copied verbatim in source order, which this
// cursor models by flipping littleEndian to true for the duration of that
// copy (see parseUTF8 in parse.go).
type cursor struct {
	data         []byte
	pos          uint32
	littleEndian bool
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) remaining() uint32 {
	return uint32(len(c.data)) - c.pos
}

func (c *cursor) ensure(size uint32) error {
	if size > uint32(len(c.data))-c.pos {
		return ErrOutsideBoundary
	}
	return nil
}

func (c *cursor) order() binary.ByteOrder {
	if c.littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// readU8 reads a single unsigned byte. Endianness is irrelevant for a
// single byte.
func (c *cursor) readU8() (uint8, error) {
	if err := c.ensure(1); err != nil {
		return 0, err
	}
	v := c.data[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) readI8() (int8, error) {
	v, err := c.readU8()
	return int8(v), err
}

func (c *cursor) readU16() (uint16, error) {
	if err := c.ensure(2); err != nil {
		return 0, err
	}
	v := c.order().Uint16(c.data[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) readI16() (int16, error) {
	v, err := c.readU16()
	return int16(v), err
}

func (c *cursor) readU32() (uint32, error) {
	if err := c.ensure(4); err != nil {
		return 0, err
	}
	v := c.order().Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) readI32() (int32, error) {
	v, err := c.readU32()
	return int32(v), err
}

func (c *cursor) readU64() (uint64, error) {
	if err := c.ensure(8); err != nil {
		return 0, err
	}
	v := c.order().Uint64(c.data[c.pos:])
	c.pos += 8
	return v, nil
}

func (c *cursor) readI64() (int64, error) {
	v, err := c.readU64()
	return int64(v), err
}

func (c *cursor) readFloat32() (float32, error) {
	bits, err := c.readU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (c *cursor) readFloat64() (float64, error) {
	bits, err := c.readU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// readBytes returns a copy of the next n bytes, honouring the endianness
// flag the way readU16/readU32 do: big-endian (the default) reverses the
// byte order exactly as a multi-byte integer read would, little-endian
// copies verbatim.
func (c *cursor) readBytes(n uint32) ([]byte, error) {
	if err := c.ensure(n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if c.littleEndian {
		copy(buf, c.data[c.pos:c.pos+n])
	} else {
		for i := uint32(0); i < n; i++ {
			buf[i] = c.data[c.pos+n-1-i]
		}
	}
	c.pos += n
	return buf, nil
}

// borrow returns a slice into the cursor's own backing array without
// copying, and advances the position past it. The caller must not retain
// the slice past the lifetime of the buffer the cursor was built from.
func (c *cursor) borrow(n uint32) ([]byte, error) {
	if err := c.ensure(n); err != nil {
		return nil, err
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}
