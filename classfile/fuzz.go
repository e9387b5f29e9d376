// Copyright 2024 The GoJVM Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

//go:build gofuzz

package classfile

func Fuzz(data []byte) int {
	f, err := NewBytes(data, &Options{})
	if err != nil {
		return 0
	}
	for i := range f.Methods {
		_, _ = f.Methods[i].CodeAttribute()
	}
	return 1
}
