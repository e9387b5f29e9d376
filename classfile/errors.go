// Copyright 2024 The GoJVM Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package classfile

import (
	"errors"
	"fmt"
	"runtime"
)

// Sentinel errors describing a malformed class file. Wrap these with
// fmt.Errorf("...: %w", err) at the call site to attach positional context;
// callers that need to distinguish failure classes can still errors.Is
// against the sentinel.
var (
	ErrBadMagic              = errors.New("bad magic number")
	ErrUnsupportedTag        = errors.New("unsupported constant pool tag")
	ErrConstantPoolIndex     = errors.New("constant pool index out of range")
	ErrConstantPoolType      = errors.New("constant pool entry has the wrong type")
	ErrInterfacesUnsupported = errors.New("class files with interfaces are unsupported")
	ErrFieldsUnsupported     = errors.New("class files with fields are unsupported")
	ErrMethodNotFound        = errors.New("method not found")
	ErrCodeAttributeMissing  = errors.New("method has no Code attribute")
	ErrDescriptorTooComplex  = errors.New("descriptor has an unsupported parameter or return type")
	ErrTooManyParams         = errors.New("descriptor declares too many parameters")
	ErrTooManyConstants      = errors.New("constant pool exceeds the configured maximum")
)

// classFormatError wraps a sentinel (or ad-hoc) failure with the file and
// line of the call site that detected it, mirroring the position-tagged
// diagnostics jacobin's class loader attaches to every format error it
// raises.
type classFormatError struct {
	msg  string
	file string
	line int
}

func (e *classFormatError) Error() string {
	return fmt.Sprintf("%s (%s:%d)", e.msg, e.file, e.line)
}

func newClassFormatError(msg string) error {
	_, file, line, _ := runtime.Caller(1)
	return &classFormatError{msg: msg, file: file, line: line}
}

// cfe wraps an existing sentinel error with positional context without
// losing the sentinel's identity for errors.Is.
func cfe(err error, context string) error {
	_, file, line, _ := runtime.Caller(1)
	return fmt.Errorf("%s: %w (%s:%d)", context, err, file, line)
}
