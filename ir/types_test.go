// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package ir

import (
	"testing"

	"github.com/bencz/anvil/target"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx := NewContext()
	if err := ctx.SetArchitecture(target.X86_64); err != nil {
		t.Fatalf("SetArchitecture: %v", err)
	}
	return ctx
}

func TestIntTypeInterning(t *testing.T) {
	ctx := newTestContext(t)

	a, err := ctx.IntType(32, true)
	if err != nil {
		t.Fatalf("IntType: %v", err)
	}
	b, err := ctx.IntType(32, true)
	if err != nil {
		t.Fatalf("IntType: %v", err)
	}
	if a != b {
		t.Errorf("IntType(32, true) returned distinct pointers on repeated calls")
	}

	u, err := ctx.IntType(32, false)
	if err != nil {
		t.Fatalf("IntType: %v", err)
	}
	if a == u {
		t.Errorf("signed and unsigned i32 must not intern to the same type")
	}
}

func TestIntTypeRejectsInvalidWidth(t *testing.T) {
	ctx := newTestContext(t)
	if _, err := ctx.IntType(24, true); err == nil {
		t.Fatalf("IntType(24, ...) should have been rejected")
	}
}

func TestPointerTypeInterning(t *testing.T) {
	ctx := newTestContext(t)

	p1, err := ctx.PointerType(ctx.I32())
	if err != nil {
		t.Fatalf("PointerType: %v", err)
	}
	p2, err := ctx.PointerType(ctx.I32())
	if err != nil {
		t.Fatalf("PointerType: %v", err)
	}
	if p1 != p2 {
		t.Errorf("PointerType(i32) returned distinct pointers on repeated calls")
	}
	if p1.Size() != 8 {
		t.Errorf("pointer size on x86-64 = %d, want 8", p1.Size())
	}
}

func TestPointerTypeRequiresArchitecture(t *testing.T) {
	ctx := NewContext()
	if _, err := ctx.PointerType(ctx.I32()); err == nil {
		t.Fatalf("PointerType before SetArchitecture should have been rejected")
	}
}

func TestStructTypeLayoutAndInterning(t *testing.T) {
	ctx := newTestContext(t)

	i8 := ctx.I8()
	i32 := ctx.I32()

	s1, err := ctx.StructType([]Type{i8, i32})
	if err != nil {
		t.Fatalf("StructType: %v", err)
	}
	s2, err := ctx.StructType([]Type{i8, i32})
	if err != nil {
		t.Fatalf("StructType: %v", err)
	}
	if s1 != s2 {
		t.Errorf("StructType([i8, i32]) returned distinct pointers on repeated calls")
	}

	st := s1.(*StructType)
	if st.Fields[0].Offset != 0 {
		t.Errorf("field 0 offset = %d, want 0", st.Fields[0].Offset)
	}
	if st.Fields[1].Offset != 4 {
		t.Errorf("field 1 offset (after alignment padding) = %d, want 4", st.Fields[1].Offset)
	}
	if st.Size() != 8 {
		t.Errorf("struct size = %d, want 8 (trailing padding to i32 alignment)", st.Size())
	}

	other, err := ctx.StructType([]Type{i32, i8})
	if err != nil {
		t.Fatalf("StructType: %v", err)
	}
	if other == s1 {
		t.Errorf("differently-ordered fields must not share an interned struct type")
	}
}

func TestArrayTypeInterning(t *testing.T) {
	ctx := newTestContext(t)

	a1, err := ctx.ArrayType(ctx.I32(), 4)
	if err != nil {
		t.Fatalf("ArrayType: %v", err)
	}
	a2, err := ctx.ArrayType(ctx.I32(), 4)
	if err != nil {
		t.Fatalf("ArrayType: %v", err)
	}
	if a1 != a2 {
		t.Errorf("ArrayType(i32, 4) returned distinct pointers on repeated calls")
	}
	if a1.Size() != 16 {
		t.Errorf("array size = %d, want 16", a1.Size())
	}

	if _, err := ctx.ArrayType(ctx.I32(), -1); err == nil {
		t.Errorf("negative array length should have been rejected")
	}
}

func TestFunctionTypeInterning(t *testing.T) {
	ctx := newTestContext(t)

	f1, err := ctx.FunctionType(ctx.I32(), []Type{ctx.I32(), ctx.I32()}, false)
	if err != nil {
		t.Fatalf("FunctionType: %v", err)
	}
	f2, err := ctx.FunctionType(ctx.I32(), []Type{ctx.I32(), ctx.I32()}, false)
	if err != nil {
		t.Fatalf("FunctionType: %v", err)
	}
	if f1 != f2 {
		t.Errorf("FunctionType returned distinct pointers on repeated calls")
	}

	variadic, err := ctx.FunctionType(ctx.I32(), []Type{ctx.I32(), ctx.I32()}, true)
	if err != nil {
		t.Fatalf("FunctionType: %v", err)
	}
	if variadic == f1 {
		t.Errorf("variadic and non-variadic signatures must not share an interned type")
	}
}
