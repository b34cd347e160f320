// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package build

import (
	"testing"

	"github.com/bencz/anvil/ir"
	"github.com/bencz/anvil/target"
)

// testFunc bundles the Context, Module, Function, and Builder a test
// needs, since the Builder alone has no way back to the Module that
// mints constant Values.
type testFunc struct {
	ctx *ir.Context
	mod *ir.Module
	fn  *ir.Function
	b   *Builder
}

// newTestFunction returns a Builder positioned at the entry block of
// a freshly declared function (void return, params as its parameter
// types), ready
// for a test to append instructions to.
func newTestFunction(t *testing.T, params []ir.Type) *testFunc {
	t.Helper()

	ctx := ir.NewContext()
	if err := ctx.SetArchitecture(target.X86_64); err != nil {
		t.Fatalf("SetArchitecture: %v", err)
	}
	mod, err := ctx.NewModule("m")
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	sig, err := ctx.FunctionType(ctx.VoidType(), params, false)
	if err != nil {
		t.Fatalf("FunctionType: %v", err)
	}
	fn, err := mod.NewFunction("f", sig.(*ir.FuncType), ir.External)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	entry := fn.NewBlock("entry")
	ctx.SetInsertPoint(entry)

	return &testFunc{ctx: ctx, mod: mod, fn: fn, b: New(ctx)}
}

func TestAddRequiresMatchingIntegerTypes(t *testing.T) {
	tf := newTestFunction(t, nil)
	i32 := tf.ctx.I32()
	i64 := tf.ctx.I64()
	lhs := tf.mod.ConstInt(i32, 1)
	rhs := tf.mod.ConstInt(i64, 2)

	if _, err := tf.b.Add(lhs, rhs); err == nil {
		t.Fatalf("Add with mismatched operand types should have been rejected")
	}

	f32 := tf.ctx.F32()
	fv := tf.mod.ConstFloat(f32, 1)
	if _, err := tf.b.Add(fv, fv); err == nil {
		t.Fatalf("Add on floating-point operands should have been rejected")
	}
}

func TestAddProducesCorrectlyTypedResult(t *testing.T) {
	tf := newTestFunction(t, nil)
	i32 := tf.ctx.I32()
	lhs := tf.mod.ConstInt(i32, 1)
	rhs := tf.mod.ConstInt(i32, 2)

	sum, err := tf.b.Add(lhs, rhs)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sum.Type != i32 {
		t.Errorf("Add result type = %s, want %s", sum.Type, i32)
	}
	if sum.Producer == nil || sum.Producer.Opcode != ir.OpAdd {
		t.Errorf("Add result must be produced by an OpAdd instruction")
	}
}

func TestICmpYieldsBooleanU8(t *testing.T) {
	tf := newTestFunction(t, nil)
	i32 := tf.ctx.I32()
	lhs := tf.mod.ConstInt(i32, 1)
	rhs := tf.mod.ConstInt(i32, 2)

	cond, err := tf.b.ICmpSLT(lhs, rhs)
	if err != nil {
		t.Fatalf("ICmpSLT: %v", err)
	}
	if !cond.IsBoolean {
		t.Errorf("icmp result must be marked IsBoolean")
	}
	it, ok := cond.Type.(*ir.IntType)
	if !ok || it.Width != 8 || it.Signed {
		t.Errorf("icmp result type = %s, want u8", cond.Type)
	}
}

func TestTruncAndZExtRejectWrongWidthDirection(t *testing.T) {
	tf := newTestFunction(t, nil)
	i32 := tf.ctx.I32()
	i64 := tf.ctx.I64()
	val := tf.mod.ConstInt(i64, 1)

	if _, err := tf.b.Trunc(val, i64); err == nil {
		t.Fatalf("Trunc to the same width should have been rejected")
	}
	if _, err := tf.b.ZExt(val, i32); err == nil {
		t.Fatalf("ZExt to a narrower width should have been rejected")
	}

	narrow, err := tf.b.Trunc(val, i32)
	if err != nil {
		t.Fatalf("Trunc: %v", err)
	}
	if narrow.Type != i32 {
		t.Errorf("Trunc result type = %s, want %s", narrow.Type, i32)
	}
}

func TestAllocaLoadStoreRoundTrip(t *testing.T) {
	tf := newTestFunction(t, nil)
	i32 := tf.ctx.I32()

	ptr, err := tf.b.Alloca(i32)
	if err != nil {
		t.Fatalf("Alloca: %v", err)
	}
	pt, ok := ptr.Type.(*ir.PointerType)
	if !ok || pt.Elem != i32 {
		t.Fatalf("Alloca result type = %s, want *i32", ptr.Type)
	}

	val := tf.mod.ConstInt(i32, 42)
	if err := tf.b.Store(ptr, val); err != nil {
		t.Fatalf("Store: %v", err)
	}

	loaded, err := tf.b.Load(ptr)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Type != i32 {
		t.Errorf("Load result type = %s, want %s", loaded.Type, i32)
	}

	wrongType := tf.mod.ConstInt(tf.ctx.I64(), 1)
	if err := tf.b.Store(ptr, wrongType); err == nil {
		t.Fatalf("storing a mismatched type should have been rejected")
	}
}

func TestGEPRequiresArrayPointer(t *testing.T) {
	tf := newTestFunction(t, nil)
	i32 := tf.ctx.I32()

	scalarPtr, err := tf.b.Alloca(i32)
	if err != nil {
		t.Fatalf("Alloca: %v", err)
	}
	idx := tf.mod.ConstInt(i32, 0)
	if _, err := tf.b.GEP(scalarPtr, idx); err == nil {
		t.Fatalf("gep on a pointer-to-scalar should have been rejected")
	}

	arrType, err := tf.ctx.ArrayType(i32, 4)
	if err != nil {
		t.Fatalf("ArrayType: %v", err)
	}
	arrPtr, err := tf.b.Alloca(arrType)
	if err != nil {
		t.Fatalf("Alloca: %v", err)
	}
	elemPtr, err := tf.b.GEP(arrPtr, idx)
	if err != nil {
		t.Fatalf("GEP: %v", err)
	}
	pt, ok := elemPtr.Type.(*ir.PointerType)
	if !ok || pt.Elem != i32 {
		t.Errorf("GEP result type = %s, want *i32", elemPtr.Type)
	}
}

// TestGEPWalksNestedAggregates addresses a field of a struct held in
// an array element with a single GEP call carrying one index per
// nesting level, the way spec's variadic gep(T, base, indices...)
// addresses a multi-level aggregate in one instruction.
func TestGEPWalksNestedAggregates(t *testing.T) {
	tf := newTestFunction(t, nil)
	i32, i8 := tf.ctx.I32(), tf.ctx.I8()

	st, err := tf.ctx.StructType([]ir.Type{i8, i32})
	if err != nil {
		t.Fatalf("StructType: %v", err)
	}
	arrType, err := tf.ctx.ArrayType(st, 4)
	if err != nil {
		t.Fatalf("ArrayType: %v", err)
	}
	arrPtr, err := tf.b.Alloca(arrType)
	if err != nil {
		t.Fatalf("Alloca: %v", err)
	}

	elemIdx := tf.mod.ConstInt(i32, 2)
	fieldIdx := tf.mod.ConstInt(i32, 1)
	fieldPtr, err := tf.b.GEP(arrPtr, elemIdx, fieldIdx)
	if err != nil {
		t.Fatalf("GEP: %v", err)
	}

	pt, ok := fieldPtr.Type.(*ir.PointerType)
	if !ok || pt.Elem != i32 {
		t.Errorf("GEP result type = %s, want *i32", fieldPtr.Type)
	}

	if _, err := tf.b.GEP(arrPtr, elemIdx, tf.mod.ConstInt(i32, 9)); err == nil {
		t.Fatalf("gep with an out-of-range struct field index should have been rejected")
	}
}

func TestStructGEPFieldBounds(t *testing.T) {
	tf := newTestFunction(t, nil)
	i8, i32 := tf.ctx.I8(), tf.ctx.I32()

	st, err := tf.ctx.StructType([]ir.Type{i8, i32})
	if err != nil {
		t.Fatalf("StructType: %v", err)
	}
	ptr, err := tf.b.Alloca(st)
	if err != nil {
		t.Fatalf("Alloca: %v", err)
	}

	if _, err := tf.b.StructGEP(ptr, 2); err == nil {
		t.Fatalf("struct_gep with an out-of-range field index should have been rejected")
	}

	field, err := tf.b.StructGEP(ptr, 1)
	if err != nil {
		t.Fatalf("StructGEP: %v", err)
	}
	pt, ok := field.Type.(*ir.PointerType)
	if !ok || pt.Elem != i32 {
		t.Errorf("StructGEP(1) result type = %s, want *i32", field.Type)
	}
}

func TestCallValidatesArity(t *testing.T) {
	tf := newTestFunction(t, nil)
	i32 := tf.ctx.I32()

	calleeSig, err := tf.ctx.FunctionType(i32, []ir.Type{i32, i32}, false)
	if err != nil {
		t.Fatalf("FunctionType: %v", err)
	}
	callee, err := tf.mod.NewFunction("callee", calleeSig.(*ir.FuncType), ir.External)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	calleeVal := &ir.Value{Kind: ir.FunctionValue, Type: i32, Func: callee}

	a := tf.mod.ConstInt(i32, 1)
	if _, err := tf.b.Call(calleeVal, a); err == nil {
		t.Fatalf("calling a 2-arg function with 1 argument should have been rejected")
	}

	result, err := tf.b.Call(calleeVal, a, a)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Type != i32 {
		t.Errorf("Call result type = %s, want %s", result.Type, i32)
	}
}

func TestBrLinksSuccessor(t *testing.T) {
	tf := newTestFunction(t, nil)
	target := tf.fn.NewBlock("target")

	if err := tf.b.Br(target); err != nil {
		t.Fatalf("Br: %v", err)
	}
	if len(target.Predecessors()) != 1 || target.Predecessors()[0] != tf.fn.Entry {
		t.Errorf("Br must link entry as target's predecessor")
	}
}

func TestBrCondRequiresIntegerCondition(t *testing.T) {
	tf := newTestFunction(t, nil)
	ifTrue := tf.fn.NewBlock("true")
	ifFalse := tf.fn.NewBlock("false")

	fv := tf.mod.ConstFloat(tf.ctx.F32(), 0)
	if err := tf.b.BrCond(fv, ifTrue, ifFalse); err == nil {
		t.Fatalf("br_cond with a floating-point condition should have been rejected")
	}

	cond := tf.mod.ConstInt(tf.ctx.I32(), 1)
	if err := tf.b.BrCond(cond, ifTrue, ifFalse); err != nil {
		t.Fatalf("BrCond: %v", err)
	}
	if len(ifTrue.Predecessors()) != 1 || len(ifFalse.Predecessors()) != 1 {
		t.Errorf("BrCond must link both targets as predecessors")
	}
}

func TestPhiAddIncoming(t *testing.T) {
	tf := newTestFunction(t, nil)
	i32 := tf.ctx.I32()

	left := tf.fn.NewBlock("left")
	right := tf.fn.NewBlock("right")
	join := tf.fn.NewBlock("join")

	tf.ctx.SetInsertPoint(left)
	lv := tf.mod.ConstInt(i32, 1)
	if err := tf.b.Br(join); err != nil {
		t.Fatalf("Br: %v", err)
	}

	tf.ctx.SetInsertPoint(right)
	rv := tf.mod.ConstInt(i32, 2)
	if err := tf.b.Br(join); err != nil {
		t.Fatalf("Br: %v", err)
	}

	tf.ctx.SetInsertPoint(join)
	phi, err := tf.b.Phi(i32)
	if err != nil {
		t.Fatalf("Phi: %v", err)
	}
	if err := tf.b.AddIncoming(phi, left, lv); err != nil {
		t.Fatalf("AddIncoming: %v", err)
	}
	if err := tf.b.AddIncoming(phi, right, rv); err != nil {
		t.Fatalf("AddIncoming: %v", err)
	}

	mismatched := tf.mod.ConstInt(tf.ctx.I64(), 3)
	if err := tf.b.AddIncoming(phi, right, mismatched); err == nil {
		t.Fatalf("AddIncoming with a mismatched value type should have been rejected")
	}

	ins := phi.Producer
	if len(ins.Operands) != 2 || len(ins.Incoming) != 2 {
		t.Errorf("phi has %d operands / %d incoming blocks, want 2/2", len(ins.Operands), len(ins.Incoming))
	}
}

func TestSelectRequiresMatchingResultTypes(t *testing.T) {
	tf := newTestFunction(t, nil)
	i32, i64 := tf.ctx.I32(), tf.ctx.I64()

	cond := tf.mod.ConstInt(tf.ctx.I32(), 1)
	a := tf.mod.ConstInt(i32, 1)
	c := tf.mod.ConstInt(i64, 1)

	if _, err := tf.b.Select(cond, a, c); err == nil {
		t.Fatalf("select with mismatched result types should have been rejected")
	}

	a2 := tf.mod.ConstInt(i32, 2)
	result, err := tf.b.Select(cond, a, a2)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if result.Type != i32 {
		t.Errorf("Select result type = %s, want %s", result.Type, i32)
	}
}

func TestBuilderRejectsAppendPastTerminator(t *testing.T) {
	tf := newTestFunction(t, nil)
	if err := tf.b.Ret(nil); err != nil {
		t.Fatalf("Ret: %v", err)
	}

	a := tf.mod.ConstInt(tf.ctx.I32(), 1)
	if _, err := tf.b.Add(a, a); err == nil {
		t.Fatalf("appending after Ret should have been rejected")
	}
}

