// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

import (
	"strings"
	"testing"

	"github.com/bencz/anvil/backend"
	"github.com/bencz/anvil/build"
	"github.com/bencz/anvil/ir"
	"github.com/bencz/anvil/optimize"
	"github.com/bencz/anvil/target"
)

// TestLowerFunctionSurvivesGEPFold builds a gep immediately followed
// by its consuming load, the same shape optimize.GEPFold folds into
// the load's AddrMode, and renders it end to end. A fold that leaves
// the folded value without a frame slot would make this fail with a
// diag.Internal "no frame slot" error instead of assembly text.
func TestLowerFunctionSurvivesGEPFold(t *testing.T) {
	ctx := ir.NewContext()
	if err := ctx.SetArchitecture(target.X86_64); err != nil {
		t.Fatalf("SetArchitecture: %v", err)
	}
	mod, err := ctx.NewModule("m")
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	i32 := ctx.I32()
	sig, err := ctx.FunctionType(i32, nil, false)
	if err != nil {
		t.Fatalf("FunctionType: %v", err)
	}
	fn, err := mod.NewFunction("f", sig.(*ir.FuncType), ir.External)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	entry := fn.NewBlock("entry")
	ctx.SetInsertPoint(entry)

	b := build.New(ctx)
	arrType, err := ctx.ArrayType(i32, 4)
	if err != nil {
		t.Fatalf("ArrayType: %v", err)
	}
	arrPtr, err := b.Alloca(arrType)
	if err != nil {
		t.Fatalf("Alloca: %v", err)
	}
	idx := mod.ConstInt(i32, 2)
	elemPtr, err := b.GEP(arrPtr, idx)
	if err != nil {
		t.Fatalf("GEP: %v", err)
	}
	loaded, err := b.Load(elemPtr)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := b.Ret(loaded); err != nil {
		t.Fatalf("Ret: %v", err)
	}

	if _, err := (&optimize.GEPFold{}).Run(ctx, fn); err != nil {
		t.Fatalf("GEPFold: %v", err)
	}

	text, err := backend.RenderText(ctx, mod, target.X86_64)
	if err != nil {
		t.Fatalf("RenderText after GEPFold: %v", err)
	}
	if !strings.Contains(text, "f:") {
		t.Errorf("rendered text missing function label:\n%s", text)
	}
}

// TestLowerFunctionEmitsDivAndRem builds one function per integer
// div/mod opcode and checks that each lowers to a real idiv/div
// sequence instead of an "unsupported" marker comment.
func TestLowerFunctionEmitsDivAndRem(t *testing.T) {
	cases := []struct {
		op   ir.Opcode
		want string
	}{
		{ir.OpSDiv, "idivl"},
		{ir.OpUDiv, "divl"},
		{ir.OpSRem, "idivl"},
		{ir.OpURem, "divl"},
	}

	for _, c := range cases {
		ctx := ir.NewContext()
		if err := ctx.SetArchitecture(target.X86); err != nil {
			t.Fatalf("SetArchitecture: %v", err)
		}
		mod, err := ctx.NewModule("m")
		if err != nil {
			t.Fatalf("NewModule: %v", err)
		}
		i32 := ctx.I32()
		sig, err := ctx.FunctionType(i32, []ir.Type{i32, i32}, false)
		if err != nil {
			t.Fatalf("FunctionType: %v", err)
		}
		fn, err := mod.NewFunction("f", sig.(*ir.FuncType), ir.External)
		if err != nil {
			t.Fatalf("NewFunction: %v", err)
		}
		entry := fn.NewBlock("entry")
		ctx.SetInsertPoint(entry)

		b := build.New(ctx)
		lhs, rhs := fn.Param(0), fn.Param(1)
		var result *ir.Value
		switch c.op {
		case ir.OpSDiv:
			result, err = b.SDiv(lhs, rhs)
		case ir.OpUDiv:
			result, err = b.UDiv(lhs, rhs)
		case ir.OpSRem:
			result, err = b.SRem(lhs, rhs)
		case ir.OpURem:
			result, err = b.URem(lhs, rhs)
		}
		if err != nil {
			t.Fatalf("%s: %v", c.op, err)
		}
		if err := b.Ret(result); err != nil {
			t.Fatalf("Ret: %v", err)
		}

		text, err := backend.RenderText(ctx, mod, target.X86)
		if err != nil {
			t.Fatalf("RenderText: %v", err)
		}
		if strings.Contains(text, "unsupported") {
			t.Errorf("%s: rendered an unsupported marker:\n%s", c.op, text)
		}
		if !strings.Contains(text, c.want) {
			t.Errorf("%s: rendered text missing %q:\n%s", c.op, c.want, text)
		}
	}
}
