// Copyright 2024 The GoJVM Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package classfile

import "fmt"

// parseConstantPool decodes the constant_pool table following the
// constant_pool_count field. Entry 0 is never valid (1-indexed table);
// constant_pool_count is therefore one greater than the number of entries
// actually stored.
func parseConstantPool(c *cursor, opts *Options) (*ConstantPool, error) {
	count, err := c.readU16()
	if err != nil {
		return nil, cfe(err, "constant_pool_count")
	}
	if uint32(count) > opts.MaxConstantPoolEntries {
		return nil, cfe(ErrTooManyConstants, fmt.Sprintf("%d", count))
	}

	n := int(count) - 1
	if n < 0 {
		n = 0
	}
	cp := &ConstantPool{
		entries: make([]Constant, n),
		phantom: make([]bool, n),
	}

	for i := 0; i < n; i++ {
		entry, wide, err := parseConstant(c)
		if err != nil {
			return nil, cfe(err, fmt.Sprintf("constant #%d", i+1))
		}
		cp.entries[i] = entry
		if wide {
			// A Long or Double constant occupies its own index and the
			// following index, per the class-file format's indexing rule
			// (see SPEC_FULL.md §5). The phantom slot is skipped here by
			// advancing i an extra step and marking it unusable.
			i++
			if i < n {
				cp.phantom[i] = true
			}
		}
	}
	return cp, nil
}

func parseConstant(c *cursor) (Constant, bool, error) {
	tagByte, err := c.readU8()
	if err != nil {
		return Constant{}, false, err
	}
	tag := ConstantTag(tagByte)

	switch tag {
	case TagUTF8:
		s, err := parseUTF8(c)
		if err != nil {
			return Constant{}, false, err
		}
		return Constant{Tag: tag, UTF8: s}, false, nil

	case TagInteger:
		v, err := c.readI32()
		if err != nil {
			return Constant{}, false, err
		}
		return Constant{Tag: tag, Int32: v}, false, nil

	case TagFloat:
		v, err := c.readFloat32()
		if err != nil {
			return Constant{}, false, err
		}
		return Constant{Tag: tag, Float32: v}, false, nil

	case TagLong, TagDouble:
		// Neither value is retained: gojvm never performs long/double
		// arithmetic (Non-goals), but the bytes must still be consumed so
		// the cursor lands on the next real entry.
		if _, err := c.readU64(); err != nil {
			return Constant{}, false, err
		}
		return Constant{Tag: tag}, true, nil

	case TagClass, TagString:
		idx, err := c.readU16()
		if err != nil {
			return Constant{}, false, err
		}
		return Constant{Tag: tag, NameIndex: idx}, false, nil

	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		classIndex, err := c.readU16()
		if err != nil {
			return Constant{}, false, err
		}
		natIndex, err := c.readU16()
		if err != nil {
			return Constant{}, false, err
		}
		return Constant{Tag: tag, ClassIndex: classIndex, NameAndTypeIndex: natIndex}, false, nil

	case TagNameAndType:
		nameIndex, err := c.readU16()
		if err != nil {
			return Constant{}, false, err
		}
		descIndex, err := c.readU16()
		if err != nil {
			return Constant{}, false, err
		}
		return Constant{Tag: tag, NameIndex: nameIndex, DescriptorIndex: descIndex}, false, nil

	default:
		return Constant{}, false, cfe(ErrUnsupportedTag, fmt.Sprintf("tag %d", tagByte))
	}
}

// parseUTF8 decodes a CONSTANT_Utf8_info's modified-UTF8 payload.
//
// The reference implementation flips its cursor into "little-endian" mode
// for the duration of this copy. That flag name is misleading: UTF8 bytes
// have no multi-byte numeric interpretation to reverse, so what the flip
// actually achieves is copying the length-prefixed byte run in source
// order instead of the byte-reversed order a big-endian integer read would
// produce. gojvm's cursor models that directly: littleEndian=true on
// readBytes means "copy verbatim".
func parseUTF8(c *cursor) (string, error) {
	length, err := c.readU16()
	if err != nil {
		return "", err
	}
	c.littleEndian = true
	raw, err := c.readBytes(uint32(length))
	c.littleEndian = false
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
