// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package ir

import (
	"strings"

	"github.com/bencz/anvil/diag"
)

// VoidType returns the Context's unique void type.
func (c *Context) VoidType() Type { return c.voidType }

// IntType returns the interned signed/unsigned integer type of the
// given exact bit width (8, 16, 32, or 64).
func (c *Context) IntType(width int, signed bool) (Type, error) {
	switch width {
	case 8, 16, 32, 64:
	default:
		return nil, c.fail(diag.New(diag.InvalidArgument, "invalid integer width %d: must be 8, 16, 32, or 64", width))
	}

	key := [2]int{width, boolToInt(signed)}
	if t, ok := c.intTypes[key]; ok {
		return t, nil
	}

	t := &IntType{Width: width, Signed: signed}
	c.intTypes[key] = t
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// I8, I16, I32, I64 return the interned signed integer types.
func (c *Context) I8() Type  { t, _ := c.IntType(8, true); return t }
func (c *Context) I16() Type { t, _ := c.IntType(16, true); return t }
func (c *Context) I32() Type { t, _ := c.IntType(32, true); return t }
func (c *Context) I64() Type { t, _ := c.IntType(64, true); return t }

// U8, U16, U32, U64 return the interned unsigned integer types.
func (c *Context) U8() Type  { t, _ := c.IntType(8, false); return t }
func (c *Context) U16() Type { t, _ := c.IntType(16, false); return t }
func (c *Context) U32() Type { t, _ := c.IntType(32, false); return t }
func (c *Context) U64() Type { t, _ := c.IntType(64, false); return t }

// FloatType returns the interned IEEE-754 binary floating-point type
// of the given width (32 or 64).
func (c *Context) FloatType(width int) (Type, error) {
	switch width {
	case 32, 64:
	default:
		return nil, c.fail(diag.New(diag.InvalidArgument, "invalid floating-point width %d: must be 32 or 64", width))
	}

	if t, ok := c.floatTypes[width]; ok {
		return t, nil
	}

	t := &FloatType{Width: width}
	c.floatTypes[width] = t
	return t, nil
}

// F32, F64 return the interned floating-point types.
func (c *Context) F32() Type { t, _ := c.FloatType(32); return t }
func (c *Context) F64() Type { t, _ := c.FloatType(64); return t }

// PointerType returns the interned pointer-to-elem type. Requires an
// architecture to be selected, since a pointer's size depends on it.
func (c *Context) PointerType(elem Type) (Type, error) {
	if elem == nil {
		return nil, c.fail(diag.New(diag.InvalidArgument, "pointer element type must not be nil"))
	}
	if c.arch == nil {
		return nil, c.fail(diag.New(diag.NoBackend, "cannot construct a pointer type before an architecture is selected"))
	}

	if t, ok := c.pointerType[elem]; ok {
		return t, nil
	}

	t := &PointerType{Elem: elem, size: c.arch.PointerSize}
	c.pointerType[elem] = t
	return t, nil
}

// ArrayType returns the interned array-of-elem type with the given
// element count.
func (c *Context) ArrayType(elem Type, length int) (Type, error) {
	if elem == nil {
		return nil, c.fail(diag.New(diag.InvalidArgument, "array element type must not be nil"))
	}
	if length < 0 {
		return nil, c.fail(diag.New(diag.InvalidArgument, "array length must not be negative: %d", length))
	}

	key := arrayKey{elem: elem, length: length}
	if t, ok := c.arrayType[key]; ok {
		return t, nil
	}

	t := &ArrayType{Elem: elem, Length: length, size: elem.Size() * length}
	c.arrayType[key] = t
	return t, nil
}

// StructType returns the interned struct type with the given
// ordered field types. Field offsets and the struct's total size and
// alignment are computed here, using natural (C-like) alignment
// under the active architecture's pointer size, and never change
// afterwards.
func (c *Context) StructType(fields []Type) (Type, error) {
	for i, f := range fields {
		if f == nil {
			return nil, c.fail(diag.New(diag.InvalidArgument, "struct field %d type must not be nil", i))
		}
	}

	key := structKey(fields)
	if t, ok := c.structType[key]; ok {
		return t, nil
	}

	laid := make([]StructField, len(fields))
	offset := 0
	maxAlign := 1
	for i, f := range fields {
		align := f.Align()
		if align < 1 {
			align = 1
		}
		if align > maxAlign {
			maxAlign = align
		}
		offset = alignUp(offset, align)
		laid[i] = StructField{Type: f, Offset: offset}
		offset += f.Size()
	}
	size := alignUp(offset, maxAlign)

	t := &StructType{Fields: laid, size: size, align: maxAlign}
	c.structType[key] = t
	return t, nil
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

func structKey(fields []Type) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.String())
	}
	return b.String()
}

// FunctionType returns the interned function signature type.
func (c *Context) FunctionType(result Type, params []Type, variadic bool) (Type, error) {
	if result == nil {
		return nil, c.fail(diag.New(diag.InvalidArgument, "function result type must not be nil"))
	}
	for i, p := range params {
		if p == nil {
			return nil, c.fail(diag.New(diag.InvalidArgument, "function parameter %d type must not be nil", i))
		}
	}

	key := funcKey(result, params, variadic)
	if t, ok := c.funcType[key]; ok {
		return t, nil
	}

	t := &FuncType{Result: result, Params: append([]Type(nil), params...), Variadic: variadic}
	c.funcType[key] = t
	return t, nil
}

func funcKey(result Type, params []Type, variadic bool) string {
	var b strings.Builder
	b.WriteString(result.String())
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	if variadic {
		b.WriteString("...")
	}
	return b.String()
}
