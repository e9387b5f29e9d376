// Copyright 2024 The GoJVM Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package classfile

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/go-kratos/kratos/v2/log"
)

// ClassFileMagic is the fixed first four bytes of every class file.
const ClassFileMagic uint32 = 0xCAFEBABE

// MaxDefaultConstantPoolEntries bounds the constant pool size accepted by
// default. A crafted constant_pool_count close to 65535 costs little to
// decode for this subset (no nested constant types), but the ceiling is
// kept anyway for the same reason the teacher caps COFF symbol counts:
// an attacker-controlled count should never dictate an unbounded
// allocation on its own.
const MaxDefaultConstantPoolEntries = 1 << 16

// AccessFlags is the raw access_flags bitmask of a class or method.
type AccessFlags uint16

const (
	AccPublic    AccessFlags = 0x0001
	AccStatic    AccessFlags = 0x0008
	AccFinal     AccessFlags = 0x0010
	AccSuper     AccessFlags = 0x0020
	AccAbstract  AccessFlags = 0x0400
	AccSynthetic AccessFlags = 0x1000
)

func (f AccessFlags) Has(flag AccessFlags) bool {
	return f&flag != 0
}

// Method is a decoded method_info entry.
type Method struct {
	AccessFlags AccessFlags
	Name        string
	Descriptor  string
	Attributes  []Attribute
}

// File is a fully decoded class file.
type File struct {
	Magic        uint32
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool ConstantPool
	AccessFlags  AccessFlags
	ThisClass    uint16
	SuperClass   uint16
	Methods      []Method
	Attributes   []Attribute

	data   mmap.MMap // nil when constructed via NewBytes
	f      *os.File
	opts   *Options
	logger *log.Helper
}

// Options configures how a File is loaded and decoded.
type Options struct {
	// MaxConstantPoolEntries caps constant_pool_count, by default
	// MaxDefaultConstantPoolEntries.
	MaxConstantPoolEntries uint32

	// MaxMethodParams caps how many parameters a single method descriptor
	// may declare, by default MaxDescriptorParams. A value above
	// MaxDescriptorParams has no effect: ParseDescriptor rejects longer
	// parameter lists regardless.
	MaxMethodParams int

	// A custom logger.
	Logger log.Logger
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.MaxConstantPoolEntries == 0 {
		o.MaxConstantPoolEntries = MaxDefaultConstantPoolEntries
	}
	if o.MaxMethodParams == 0 {
		o.MaxMethodParams = MaxDescriptorParams
	}
	return o
}

func newHelper(opts *Options) *log.Helper {
	if opts.Logger == nil {
		return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout),
			log.FilterLevel(log.LevelError)))
	}
	return log.NewHelper(opts.Logger)
}

// New memory-maps the class file at name and decodes it.
func New(name string, opts *Options) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	opts = opts.withDefaults()
	file := &File{
		data:   data,
		f:      f,
		opts:   opts,
		logger: newHelper(opts),
	}

	if err := file.parse(data); err != nil {
		file.Close()
		return nil, err
	}
	return file, nil
}

// NewBytes decodes a class file already held in memory.
func NewBytes(data []byte, opts *Options) (*File, error) {
	opts = opts.withDefaults()
	file := &File{
		opts:   opts,
		logger: newHelper(opts),
	}
	if err := file.parse(data); err != nil {
		return nil, err
	}
	return file, nil
}

// Close releases the memory mapping and underlying file handle, if any.
func (cf *File) Close() error {
	if cf.data != nil {
		_ = cf.data.Unmap()
	}
	if cf.f != nil {
		return cf.f.Close()
	}
	return nil
}

// MethodByName looks up a method by its simple name, the same
// resolution-by-name-only linkage the engine's invokestatic uses (see
// vm.Engine and DESIGN.md Open Questions).
func (cf *File) MethodByName(name string) (*Method, error) {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name {
			return &cf.Methods[i], nil
		}
	}
	return nil, cfe(ErrMethodNotFound, name)
}

// ThisClassName resolves ThisClass through the constant pool.
func (cf *File) ThisClassName() (string, error) {
	return cf.ConstantPool.ClassNameAt(cf.ThisClass)
}

func (cf *File) parse(data []byte) error {
	c := newCursor(data)

	magic, err := c.readU32()
	if err != nil {
		return cfe(err, "magic")
	}
	if magic != ClassFileMagic {
		return cfe(ErrBadMagic, "magic")
	}

	minor, err := c.readU16()
	if err != nil {
		return cfe(err, "minor_version")
	}
	major, err := c.readU16()
	if err != nil {
		return cfe(err, "major_version")
	}

	cp, err := parseConstantPool(c, cf.opts)
	if err != nil {
		return cfe(err, "constant_pool")
	}

	accessFlags, err := c.readU16()
	if err != nil {
		return cfe(err, "access_flags")
	}
	thisClass, err := c.readU16()
	if err != nil {
		return cfe(err, "this_class")
	}
	superClass, err := c.readU16()
	if err != nil {
		return cfe(err, "super_class")
	}

	interfacesCount, err := c.readU16()
	if err != nil {
		return cfe(err, "interfaces_count")
	}
	if interfacesCount != 0 {
		return cfe(ErrInterfacesUnsupported, "interfaces_count")
	}

	fieldsCount, err := c.readU16()
	if err != nil {
		return cfe(err, "fields_count")
	}
	if fieldsCount != 0 {
		return cfe(ErrFieldsUnsupported, "fields_count")
	}

	methodsCount, err := c.readU16()
	if err != nil {
		return cfe(err, "methods_count")
	}
	methods := make([]Method, 0, methodsCount)
	for i := uint16(0); i < methodsCount; i++ {
		m, err := parseMethod(c, cp, cf.opts)
		if err != nil {
			return cfe(err, "methods")
		}
		methods = append(methods, m)
	}

	attrs, err := parseAttributes(c, cp)
	if err != nil {
		return cfe(err, "attributes")
	}

	cf.Magic = magic
	cf.MinorVersion = minor
	cf.MajorVersion = major
	cf.ConstantPool = *cp
	cf.AccessFlags = AccessFlags(accessFlags)
	cf.ThisClass = thisClass
	cf.SuperClass = superClass
	cf.Methods = methods
	cf.Attributes = attrs

	cf.logger.Debugf("decoded class file: this_class=%d major=%d methods=%d", thisClass, major, len(methods))
	return nil
}

func parseMethod(c *cursor, cp *ConstantPool, opts *Options) (Method, error) {
	accessFlags, err := c.readU16()
	if err != nil {
		return Method{}, err
	}
	nameIndex, err := c.readU16()
	if err != nil {
		return Method{}, err
	}
	name, err := cp.UTF8At(nameIndex)
	if err != nil {
		return Method{}, cfe(err, "method name")
	}
	descIndex, err := c.readU16()
	if err != nil {
		return Method{}, err
	}
	descriptor, err := cp.UTF8At(descIndex)
	if err != nil {
		return Method{}, cfe(err, "method descriptor")
	}
	desc, err := ParseDescriptor(descriptor)
	if err != nil {
		return Method{}, cfe(err, name)
	}
	if len(desc.Params) > opts.MaxMethodParams {
		return Method{}, cfe(ErrTooManyParams, name)
	}
	attrs, err := parseAttributes(c, cp)
	if err != nil {
		return Method{}, cfe(err, "method attributes")
	}
	return Method{
		AccessFlags: AccessFlags(accessFlags),
		Name:        name,
		Descriptor:  descriptor,
		Attributes:  attrs,
	}, nil
}
