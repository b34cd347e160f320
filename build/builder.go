// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package build implements a strongly-typed instruction builder over
// package ir: one method per opcode, each validating its operand
// contract before appending the instruction to the Context's current
// insertion block. Builder methods never insert an implicit
// terminator; callers must end every Block themselves with Ret, Br,
// or BrCond.
package build

import (
	"github.com/bencz/anvil/diag"
	"github.com/bencz/anvil/ir"
)

// Builder appends instructions to a Context's current insertion
// block.
type Builder struct {
	ctx *ir.Context
}

// New returns a Builder that appends instructions to ctx's current
// insertion block.
func New(ctx *ir.Context) *Builder { return &Builder{ctx: ctx} }

// Context returns the Builder's underlying Context.
func (b *Builder) Context() *ir.Context { return b.ctx }

func invalid(format string, args ...any) error {
	return diag.New(diag.InvalidArgument, format, args...)
}

func (b *Builder) block() (*ir.Block, error) {
	bb := b.ctx.InsertPoint()
	if bb == nil {
		return nil, diag.New(diag.Internal, "no insertion point is set")
	}
	if bb.IsTerminated() {
		return nil, invalid("block %q is already terminated", bb.Label)
	}
	return bb, nil
}

func asInt(t ir.Type) (*ir.IntType, bool)     { it, ok := t.(*ir.IntType); return it, ok }
func asFloat(t ir.Type) (*ir.FloatType, bool) { ft, ok := t.(*ir.FloatType); return ft, ok }
func asPointer(t ir.Type) (*ir.PointerType, bool) {
	pt, ok := t.(*ir.PointerType)
	return pt, ok
}
func asStruct(t ir.Type) (*ir.StructType, bool) {
	st, ok := t.(*ir.StructType)
	return st, ok
}
func asFunc(t ir.Type) (*ir.FuncType, bool) { ft, ok := t.(*ir.FuncType); return ft, ok }

// binaryArith builds a binary arithmetic or bitwise opcode, requiring
// both operands to share an identical integer type and yielding a
// result of that same type.
func (b *Builder) binaryArith(op ir.Opcode, lhs, rhs *ir.Value) (*ir.Value, error) {
	if _, ok := asInt(lhs.Type); !ok {
		return nil, invalid("%s: left operand must be an integer type, got %s", op, lhs.Type)
	}
	if lhs.Type != rhs.Type {
		return nil, invalid("%s: operand types must match, got %s and %s", op, lhs.Type, rhs.Type)
	}

	bb, err := b.block()
	if err != nil {
		return nil, err
	}
	ins, err := bb.NewInstruction(op, lhs.Type, lhs, rhs)
	if err != nil {
		return nil, err
	}
	return ins.Result, nil
}

func (b *Builder) Add(lhs, rhs *ir.Value) (*ir.Value, error)  { return b.binaryArith(ir.OpAdd, lhs, rhs) }
func (b *Builder) Sub(lhs, rhs *ir.Value) (*ir.Value, error)  { return b.binaryArith(ir.OpSub, lhs, rhs) }
func (b *Builder) Mul(lhs, rhs *ir.Value) (*ir.Value, error)  { return b.binaryArith(ir.OpMul, lhs, rhs) }
func (b *Builder) SDiv(lhs, rhs *ir.Value) (*ir.Value, error) { return b.binaryArith(ir.OpSDiv, lhs, rhs) }
func (b *Builder) UDiv(lhs, rhs *ir.Value) (*ir.Value, error) { return b.binaryArith(ir.OpUDiv, lhs, rhs) }
func (b *Builder) SRem(lhs, rhs *ir.Value) (*ir.Value, error) { return b.binaryArith(ir.OpSRem, lhs, rhs) }
func (b *Builder) URem(lhs, rhs *ir.Value) (*ir.Value, error) { return b.binaryArith(ir.OpURem, lhs, rhs) }
func (b *Builder) And(lhs, rhs *ir.Value) (*ir.Value, error)  { return b.binaryArith(ir.OpAnd, lhs, rhs) }
func (b *Builder) Or(lhs, rhs *ir.Value) (*ir.Value, error)   { return b.binaryArith(ir.OpOr, lhs, rhs) }
func (b *Builder) Xor(lhs, rhs *ir.Value) (*ir.Value, error)  { return b.binaryArith(ir.OpXor, lhs, rhs) }

// shift builds a shift opcode: the shifted value and the result share
// a type, while the shift amount may be any integer type (it is
// lowered independently and never widens the result).
func (b *Builder) shift(op ir.Opcode, val, amount *ir.Value) (*ir.Value, error) {
	if _, ok := asInt(val.Type); !ok {
		return nil, invalid("%s: shifted operand must be an integer type, got %s", op, val.Type)
	}
	if _, ok := asInt(amount.Type); !ok {
		return nil, invalid("%s: shift amount must be an integer type, got %s", op, amount.Type)
	}

	bb, err := b.block()
	if err != nil {
		return nil, err
	}
	ins, err := bb.NewInstruction(op, val.Type, val, amount)
	if err != nil {
		return nil, err
	}
	return ins.Result, nil
}

func (b *Builder) Shl(val, amount *ir.Value) (*ir.Value, error)  { return b.shift(ir.OpShl, val, amount) }
func (b *Builder) LShr(val, amount *ir.Value) (*ir.Value, error) { return b.shift(ir.OpLShr, val, amount) }
func (b *Builder) AShr(val, amount *ir.Value) (*ir.Value, error) { return b.shift(ir.OpAShr, val, amount) }

func (b *Builder) unary(op ir.Opcode, val *ir.Value) (*ir.Value, error) {
	bb, err := b.block()
	if err != nil {
		return nil, err
	}
	ins, err := bb.NewInstruction(op, val.Type, val)
	if err != nil {
		return nil, err
	}
	return ins.Result, nil
}

// Neg negates an integer operand.
func (b *Builder) Neg(val *ir.Value) (*ir.Value, error) {
	if _, ok := asInt(val.Type); !ok {
		return nil, invalid("neg: operand must be an integer type, got %s", val.Type)
	}
	return b.unary(ir.OpNeg, val)
}

// Not computes the bitwise complement of an integer operand.
func (b *Builder) Not(val *ir.Value) (*ir.Value, error) {
	if _, ok := asInt(val.Type); !ok {
		return nil, invalid("not: operand must be an integer type, got %s", val.Type)
	}
	return b.unary(ir.OpNot, val)
}

// icmp builds an integer comparison, whose result is always a
// boolean i8 marked IsBoolean so lowering can skip materializing an
// explicit zero test.
func (b *Builder) icmp(op ir.Opcode, lhs, rhs *ir.Value) (*ir.Value, error) {
	if _, ok := asInt(lhs.Type); !ok {
		return nil, invalid("%s: operands must be an integer type, got %s", op, lhs.Type)
	}
	if lhs.Type != rhs.Type {
		return nil, invalid("%s: operand types must match, got %s and %s", op, lhs.Type, rhs.Type)
	}

	bb, err := b.block()
	if err != nil {
		return nil, err
	}
	resultType, err := b.ctx.IntType(8, false)
	if err != nil {
		return nil, err
	}
	ins, err := bb.NewInstruction(op, resultType, lhs, rhs)
	if err != nil {
		return nil, err
	}
	ins.Result.IsBoolean = true
	return ins.Result, nil
}

func (b *Builder) ICmpEQ(lhs, rhs *ir.Value) (*ir.Value, error)  { return b.icmp(ir.OpICmpEQ, lhs, rhs) }
func (b *Builder) ICmpNE(lhs, rhs *ir.Value) (*ir.Value, error)  { return b.icmp(ir.OpICmpNE, lhs, rhs) }
func (b *Builder) ICmpSLT(lhs, rhs *ir.Value) (*ir.Value, error) { return b.icmp(ir.OpICmpSLT, lhs, rhs) }
func (b *Builder) ICmpSLE(lhs, rhs *ir.Value) (*ir.Value, error) { return b.icmp(ir.OpICmpSLE, lhs, rhs) }
func (b *Builder) ICmpSGT(lhs, rhs *ir.Value) (*ir.Value, error) { return b.icmp(ir.OpICmpSGT, lhs, rhs) }
func (b *Builder) ICmpSGE(lhs, rhs *ir.Value) (*ir.Value, error) { return b.icmp(ir.OpICmpSGE, lhs, rhs) }
func (b *Builder) ICmpULT(lhs, rhs *ir.Value) (*ir.Value, error) { return b.icmp(ir.OpICmpULT, lhs, rhs) }
func (b *Builder) ICmpULE(lhs, rhs *ir.Value) (*ir.Value, error) { return b.icmp(ir.OpICmpULE, lhs, rhs) }
func (b *Builder) ICmpUGT(lhs, rhs *ir.Value) (*ir.Value, error) { return b.icmp(ir.OpICmpUGT, lhs, rhs) }
func (b *Builder) ICmpUGE(lhs, rhs *ir.Value) (*ir.Value, error) { return b.icmp(ir.OpICmpUGE, lhs, rhs) }

func (b *Builder) binaryFloat(op ir.Opcode, lhs, rhs *ir.Value) (*ir.Value, error) {
	if _, ok := asFloat(lhs.Type); !ok {
		return nil, invalid("%s: operands must be a floating-point type, got %s", op, lhs.Type)
	}
	if lhs.Type != rhs.Type {
		return nil, invalid("%s: operand types must match, got %s and %s", op, lhs.Type, rhs.Type)
	}

	bb, err := b.block()
	if err != nil {
		return nil, err
	}
	ins, err := bb.NewInstruction(op, lhs.Type, lhs, rhs)
	if err != nil {
		return nil, err
	}
	return ins.Result, nil
}

func (b *Builder) FAdd(lhs, rhs *ir.Value) (*ir.Value, error) { return b.binaryFloat(ir.OpFAdd, lhs, rhs) }
func (b *Builder) FSub(lhs, rhs *ir.Value) (*ir.Value, error) { return b.binaryFloat(ir.OpFSub, lhs, rhs) }
func (b *Builder) FMul(lhs, rhs *ir.Value) (*ir.Value, error) { return b.binaryFloat(ir.OpFMul, lhs, rhs) }
func (b *Builder) FDiv(lhs, rhs *ir.Value) (*ir.Value, error) { return b.binaryFloat(ir.OpFDiv, lhs, rhs) }

func (b *Builder) unaryFloat(op ir.Opcode, val *ir.Value) (*ir.Value, error) {
	if _, ok := asFloat(val.Type); !ok {
		return nil, invalid("%s: operand must be a floating-point type, got %s", op, val.Type)
	}
	return b.unary(op, val)
}

func (b *Builder) FNeg(val *ir.Value) (*ir.Value, error) { return b.unaryFloat(ir.OpFNeg, val) }
func (b *Builder) FAbs(val *ir.Value) (*ir.Value, error) { return b.unaryFloat(ir.OpFAbs, val) }

// FCmp compares two floating-point operands, yielding a boolean
// result identical in shape to the integer comparisons.
func (b *Builder) FCmp(lhs, rhs *ir.Value) (*ir.Value, error) {
	if _, ok := asFloat(lhs.Type); !ok {
		return nil, invalid("fcmp: operands must be a floating-point type, got %s", lhs.Type)
	}
	if lhs.Type != rhs.Type {
		return nil, invalid("fcmp: operand types must match, got %s and %s", lhs.Type, rhs.Type)
	}

	bb, err := b.block()
	if err != nil {
		return nil, err
	}
	resultType, err := b.ctx.IntType(8, false)
	if err != nil {
		return nil, err
	}
	ins, err := bb.NewInstruction(ir.OpFCmp, resultType, lhs, rhs)
	if err != nil {
		return nil, err
	}
	ins.Result.IsBoolean = true
	return ins.Result, nil
}

// convert builds a conversion instruction from val to resultType. It
// does no validation of its own: each caller checks the
// opcode-specific source/destination shape first.
func (b *Builder) convert(op ir.Opcode, val *ir.Value, resultType ir.Type) (*ir.Value, error) {
	bb, err := b.block()
	if err != nil {
		return nil, err
	}
	ins, err := bb.NewInstruction(op, resultType, val)
	if err != nil {
		return nil, err
	}
	return ins.Result, nil
}

// Trunc narrows an integer to a smaller integer width.
func (b *Builder) Trunc(val *ir.Value, to ir.Type) (*ir.Value, error) {
	src, ok := asInt(val.Type)
	dst, ok2 := asInt(to)
	if !ok || !ok2 || dst.Width >= src.Width {
		return nil, invalid("trunc: %s must be a narrower integer type than %s", to, val.Type)
	}
	return b.convert(ir.OpTrunc, val, to)
}

// ZExt widens an integer with zero-extension.
func (b *Builder) ZExt(val *ir.Value, to ir.Type) (*ir.Value, error) {
	src, ok := asInt(val.Type)
	dst, ok2 := asInt(to)
	if !ok || !ok2 || dst.Width <= src.Width {
		return nil, invalid("zext: %s must be a wider integer type than %s", to, val.Type)
	}
	return b.convert(ir.OpZExt, val, to)
}

// SExt widens an integer with sign-extension.
func (b *Builder) SExt(val *ir.Value, to ir.Type) (*ir.Value, error) {
	src, ok := asInt(val.Type)
	dst, ok2 := asInt(to)
	if !ok || !ok2 || dst.Width <= src.Width {
		return nil, invalid("sext: %s must be a wider integer type than %s", to, val.Type)
	}
	return b.convert(ir.OpSExt, val, to)
}

// Bitcast reinterprets val's bit pattern as to, which must be the
// same size.
func (b *Builder) Bitcast(val *ir.Value, to ir.Type) (*ir.Value, error) {
	if val.Type.Size() != to.Size() {
		return nil, invalid("bitcast: %s and %s are not the same size", val.Type, to)
	}
	return b.convert(ir.OpBitcast, val, to)
}

// PtrToInt converts a pointer operand to an integer type.
func (b *Builder) PtrToInt(val *ir.Value, to ir.Type) (*ir.Value, error) {
	if _, ok := asPointer(val.Type); !ok {
		return nil, invalid("ptrtoint: operand must be a pointer type, got %s", val.Type)
	}
	if _, ok := asInt(to); !ok {
		return nil, invalid("ptrtoint: result type must be an integer type, got %s", to)
	}
	return b.convert(ir.OpPtrToInt, val, to)
}

// IntToPtr converts an integer operand to a pointer type.
func (b *Builder) IntToPtr(val *ir.Value, to ir.Type) (*ir.Value, error) {
	if _, ok := asInt(val.Type); !ok {
		return nil, invalid("inttoptr: operand must be an integer type, got %s", val.Type)
	}
	if _, ok := asPointer(to); !ok {
		return nil, invalid("inttoptr: result type must be a pointer type, got %s", to)
	}
	return b.convert(ir.OpIntToPtr, val, to)
}

// FPExt widens a floating-point operand.
func (b *Builder) FPExt(val *ir.Value, to ir.Type) (*ir.Value, error) {
	src, ok := asFloat(val.Type)
	dst, ok2 := asFloat(to)
	if !ok || !ok2 || dst.Width <= src.Width {
		return nil, invalid("fpext: %s must be a wider floating-point type than %s", to, val.Type)
	}
	return b.convert(ir.OpFPExt, val, to)
}

// FPTrunc narrows a floating-point operand.
func (b *Builder) FPTrunc(val *ir.Value, to ir.Type) (*ir.Value, error) {
	src, ok := asFloat(val.Type)
	dst, ok2 := asFloat(to)
	if !ok || !ok2 || dst.Width >= src.Width {
		return nil, invalid("fptrunc: %s must be a narrower floating-point type than %s", to, val.Type)
	}
	return b.convert(ir.OpFPTrunc, val, to)
}

// SIToFP converts a signed integer to a floating-point type.
func (b *Builder) SIToFP(val *ir.Value, to ir.Type) (*ir.Value, error) {
	if _, ok := asInt(val.Type); !ok {
		return nil, invalid("sitofp: operand must be an integer type, got %s", val.Type)
	}
	if _, ok := asFloat(to); !ok {
		return nil, invalid("sitofp: result type must be a floating-point type, got %s", to)
	}
	return b.convert(ir.OpSIToFP, val, to)
}

// UIToFP converts an unsigned integer to a floating-point type.
func (b *Builder) UIToFP(val *ir.Value, to ir.Type) (*ir.Value, error) {
	if _, ok := asInt(val.Type); !ok {
		return nil, invalid("uitofp: operand must be an integer type, got %s", val.Type)
	}
	if _, ok := asFloat(to); !ok {
		return nil, invalid("uitofp: result type must be a floating-point type, got %s", to)
	}
	return b.convert(ir.OpUIToFP, val, to)
}

// FPToSI converts a floating-point operand to a signed integer type.
func (b *Builder) FPToSI(val *ir.Value, to ir.Type) (*ir.Value, error) {
	if _, ok := asFloat(val.Type); !ok {
		return nil, invalid("fptosi: operand must be a floating-point type, got %s", val.Type)
	}
	if _, ok := asInt(to); !ok {
		return nil, invalid("fptosi: result type must be an integer type, got %s", to)
	}
	return b.convert(ir.OpFPToSI, val, to)
}

// FPToUI converts a floating-point operand to an unsigned integer
// type.
func (b *Builder) FPToUI(val *ir.Value, to ir.Type) (*ir.Value, error) {
	if _, ok := asFloat(val.Type); !ok {
		return nil, invalid("fptoui: operand must be a floating-point type, got %s", val.Type)
	}
	if _, ok := asInt(to); !ok {
		return nil, invalid("fptoui: result type must be an integer type, got %s", to)
	}
	return b.convert(ir.OpFPToUI, val, to)
}

// Alloca reserves stack space for one value of type t and returns a
// pointer to it, valid for the lifetime of the enclosing function.
func (b *Builder) Alloca(t ir.Type) (*ir.Value, error) {
	bb, err := b.block()
	if err != nil {
		return nil, err
	}
	resultType, err := b.ctx.PointerType(t)
	if err != nil {
		return nil, err
	}
	ins, err := bb.NewInstruction(ir.OpAlloca, resultType)
	if err != nil {
		return nil, err
	}
	ins.AllocType = t
	return ins.Result, nil
}

// Load reads the value pointed to by ptr.
func (b *Builder) Load(ptr *ir.Value) (*ir.Value, error) {
	pt, ok := asPointer(ptr.Type)
	if !ok {
		return nil, invalid("load: operand must be a pointer type, got %s", ptr.Type)
	}

	bb, err := b.block()
	if err != nil {
		return nil, err
	}
	ins, err := bb.NewInstruction(ir.OpLoad, pt.Elem, ptr)
	if err != nil {
		return nil, err
	}
	return ins.Result, nil
}

// Store writes val to the location pointed to by ptr.
func (b *Builder) Store(ptr, val *ir.Value) error {
	pt, ok := asPointer(ptr.Type)
	if !ok {
		return invalid("store: first operand must be a pointer type, got %s", ptr.Type)
	}
	if pt.Elem != val.Type {
		return invalid("store: cannot store a %s through a pointer to %s", val.Type, pt.Elem)
	}

	bb, err := b.block()
	if err != nil {
		return err
	}
	_, err = bb.NewInstruction(ir.OpStore, nil, ptr, val)
	return err
}

// GEP computes the address reached from ptr by descending one index
// per nesting level of the aggregate ptr points into: an array level
// consumes an integer-typed index Value naming the element, and a
// struct level consumes a constant integer Value naming the field.
// Each level lowers to its own OpGEP or OpStructGEP instruction, the
// result of one feeding the pointer operand of the next, so a single
// GEP call can address into a struct nested inside an array, an array
// nested inside a struct, or any other mix of the two, the same way a
// single gep instruction in the source spec can. GEPFold still folds
// whichever of these instructions directly precedes the load/store
// that consumes the final result; the intermediate levels fold the
// same way a hand-written chain of single-level geps would.
func (b *Builder) GEP(ptr *ir.Value, indices ...*ir.Value) (*ir.Value, error) {
	if len(indices) == 0 {
		return nil, invalid("gep: at least one index is required")
	}
	if _, ok := asPointer(ptr.Type); !ok {
		return nil, invalid("gep: first operand must be a pointer type, got %s", ptr.Type)
	}
	cur := ptr

	for level, index := range indices {
		pt, ok := asPointer(cur.Type)
		if !ok {
			return nil, invalid("gep: index %d has nothing left to index into (got %s)", level, cur.Type)
		}

		switch elem := pt.Elem.(type) {
		case *ir.ArrayType:
			if _, ok := asInt(index.Type); !ok {
				return nil, invalid("gep: index %d must be an integer type, got %s", level, index.Type)
			}

			bb, err := b.block()
			if err != nil {
				return nil, err
			}
			resultType, err := b.ctx.PointerType(elem.Elem)
			if err != nil {
				return nil, err
			}
			ins, err := bb.NewInstruction(ir.OpGEP, resultType, cur, index)
			if err != nil {
				return nil, err
			}
			ins.FieldType = elem.Elem
			cur = ins.Result

		case *ir.StructType:
			if index.Kind != ir.ConstInt {
				return nil, invalid("gep: index %d into a struct must be a constant integer", level)
			}
			field := int(index.IntVal)
			if field < 0 || field >= len(elem.Fields) {
				return nil, invalid("gep: index %d out of range for %s", field, elem)
			}

			bb, err := b.block()
			if err != nil {
				return nil, err
			}
			fieldType := elem.Fields[field].Type
			resultType, err := b.ctx.PointerType(fieldType)
			if err != nil {
				return nil, err
			}
			ins, err := bb.NewInstruction(ir.OpStructGEP, resultType, cur)
			if err != nil {
				return nil, err
			}
			ins.Index = field
			ins.FieldType = fieldType
			cur = ins.Result

		default:
			return nil, invalid("gep: index %d: pointer points to %s, not an array or struct", level, pt.Elem)
		}
	}

	return cur, nil
}

// StructGEP computes the address of field i of the struct ptr points
// to.
func (b *Builder) StructGEP(ptr *ir.Value, field int) (*ir.Value, error) {
	pt, ok := asPointer(ptr.Type)
	if !ok {
		return nil, invalid("struct_gep: operand must be a pointer type, got %s", ptr.Type)
	}
	st, ok := asStruct(pt.Elem)
	if !ok {
		return nil, invalid("struct_gep: pointer must point to a struct type, got pointer to %s", pt.Elem)
	}
	if field < 0 || field >= len(st.Fields) {
		return nil, invalid("struct_gep: field index %d out of range for %s", field, st)
	}

	bb, err := b.block()
	if err != nil {
		return nil, err
	}
	fieldType := st.Fields[field].Type
	resultType, err := b.ctx.PointerType(fieldType)
	if err != nil {
		return nil, err
	}
	ins, err := bb.NewInstruction(ir.OpStructGEP, resultType, ptr)
	if err != nil {
		return nil, err
	}
	ins.Index = field
	ins.FieldType = fieldType
	return ins.Result, nil
}

// Call invokes callee (a FunctionValue or a pointer-to-function
// Value) with args, returning the callee's result Value, or nil if
// the callee returns void.
func (b *Builder) Call(callee *ir.Value, args ...*ir.Value) (*ir.Value, error) {
	var sig *ir.FuncType
	switch callee.Kind {
	case ir.FunctionValue:
		sig = callee.Func.Type
	default:
		pt, ok := asPointer(callee.Type)
		if !ok {
			return nil, invalid("call: callee must be a function or a pointer to one, got %s", callee.Type)
		}
		ft, ok := asFunc(pt.Elem)
		if !ok {
			return nil, invalid("call: callee pointer must point to a function type, got pointer to %s", pt.Elem)
		}
		sig = ft
	}

	if sig.Variadic {
		if len(args) < len(sig.Params) {
			return nil, invalid("call: expected at least %d arguments, got %d", len(sig.Params), len(args))
		}
	} else if len(args) != len(sig.Params) {
		return nil, invalid("call: expected %d arguments, got %d", len(sig.Params), len(args))
	}
	for i, p := range sig.Params {
		if args[i].Type != p {
			return nil, invalid("call: argument %d must be %s, got %s", i, p, args[i].Type)
		}
	}

	bb, err := b.block()
	if err != nil {
		return nil, err
	}

	var resultType ir.Type
	if _, void := sig.Result.(*ir.VoidType); !void {
		resultType = sig.Result
	}

	operands := append([]*ir.Value{callee}, args...)
	ins, err := bb.NewInstruction(ir.OpCall, resultType, operands...)
	if err != nil {
		return nil, err
	}
	ins.CalleeType = sig
	return ins.Result, nil
}

// Br unconditionally transfers control to target, terminating the
// current block.
func (b *Builder) Br(target *ir.Block) error {
	bb, err := b.block()
	if err != nil {
		return err
	}
	ins, err := bb.NewInstruction(ir.OpBr, nil)
	if err != nil {
		return err
	}
	ins.Targets = []*ir.Block{target}
	bb.LinkSuccessor(target)
	return nil
}

// BrCond transfers control to ifTrue when cond is non-zero, or
// ifFalse otherwise, terminating the current block.
func (b *Builder) BrCond(cond *ir.Value, ifTrue, ifFalse *ir.Block) error {
	if _, ok := asInt(cond.Type); !ok {
		return invalid("br_cond: condition must be an integer type, got %s", cond.Type)
	}

	bb, err := b.block()
	if err != nil {
		return err
	}
	ins, err := bb.NewInstruction(ir.OpBrCond, nil, cond)
	if err != nil {
		return err
	}
	ins.Targets = []*ir.Block{ifTrue, ifFalse}
	bb.LinkSuccessor(ifTrue)
	bb.LinkSuccessor(ifFalse)
	return nil
}

// Ret returns from the enclosing function. val must be omitted for a
// void-returning function and supplied exactly once otherwise.
func (b *Builder) Ret(val *ir.Value) error {
	bb, err := b.block()
	if err != nil {
		return err
	}

	var operands []*ir.Value
	if val != nil {
		operands = []*ir.Value{val}
	}

	_, err = bb.NewInstruction(ir.OpRet, nil, operands...)
	return err
}

// Phi creates a phi node of type t with no incoming edges; call
// AddIncoming to register each predecessor's value before the
// function is considered complete.
func (b *Builder) Phi(t ir.Type) (*ir.Value, error) {
	bb, err := b.block()
	if err != nil {
		return nil, err
	}
	ins, err := bb.NewInstruction(ir.OpPhi, t)
	if err != nil {
		return nil, err
	}
	return ins.Result, nil
}

// AddIncoming registers that control reaching phi from pred carries
// val, which must have the phi's result type.
func (b *Builder) AddIncoming(phi *ir.Value, pred *ir.Block, val *ir.Value) error {
	ins := phi.Producer
	if ins == nil || ins.Opcode != ir.OpPhi {
		return invalid("add_incoming: value is not a phi result")
	}
	if val.Type != phi.Type {
		return invalid("add_incoming: incoming value must be %s, got %s", phi.Type, val.Type)
	}

	ins.Operands = append(ins.Operands, val)
	ins.Incoming = append(ins.Incoming, pred)
	return nil
}

// Select yields ifTrue when cond is non-zero, or ifFalse otherwise,
// without branching.
func (b *Builder) Select(cond, ifTrue, ifFalse *ir.Value) (*ir.Value, error) {
	if _, ok := asInt(cond.Type); !ok {
		return nil, invalid("select: condition must be an integer type, got %s", cond.Type)
	}
	if ifTrue.Type != ifFalse.Type {
		return nil, invalid("select: both results must share a type, got %s and %s", ifTrue.Type, ifFalse.Type)
	}

	bb, err := b.block()
	if err != nil {
		return nil, err
	}
	ins, err := bb.NewInstruction(ir.OpSelect, ifTrue.Type, cond, ifTrue, ifFalse)
	if err != nil {
		return nil, err
	}
	return ins.Result, nil
}
