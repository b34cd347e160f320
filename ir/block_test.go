// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package ir

import "testing"

func newTestFunction(t *testing.T) (*Context, *Module, *Function) {
	t.Helper()
	ctx := newTestContext(t)
	mod, err := ctx.NewModule("m")
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	sig, err := ctx.FunctionType(ctx.VoidType(), nil, false)
	if err != nil {
		t.Fatalf("FunctionType: %v", err)
	}
	fn, err := mod.NewFunction("f", sig.(*FuncType), Internal)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	return ctx, mod, fn
}

func TestBlockTerminationInvariant(t *testing.T) {
	_, _, fn := newTestFunction(t)
	bb := fn.NewBlock("entry")

	if bb.IsTerminated() {
		t.Fatalf("a fresh block must not report itself terminated")
	}

	if _, err := bb.NewInstruction(OpRet, nil); err != nil {
		t.Fatalf("NewInstruction(OpRet): %v", err)
	}
	if !bb.IsTerminated() {
		t.Fatalf("a block ending in ret must report itself terminated")
	}

	if _, err := bb.NewInstruction(OpRet, nil); err == nil {
		t.Fatalf("appending past a terminator should have been rejected")
	}
}

func TestSingleAssignment(t *testing.T) {
	_, _, fn := newTestFunction(t)
	bb := fn.NewBlock("entry")

	ins, err := bb.NewInstruction(OpAdd, fn.module.ctx.I32())
	if err != nil {
		t.Fatalf("NewInstruction: %v", err)
	}

	// Every result Value carries a producer back-link to the exact
	// instruction that created it, and no two instructions share a
	// result.
	if ins.Result.Producer != ins {
		t.Errorf("result's producer back-link does not point at its own instruction")
	}

	ins2, err := bb.NewInstruction(OpAdd, fn.module.ctx.I32())
	if err != nil {
		t.Fatalf("NewInstruction: %v", err)
	}
	if ins.Result == ins2.Result {
		t.Errorf("two distinct instructions must not share a result Value")
	}
	if ins.Result.ID == ins2.Result.ID {
		t.Errorf("two distinct result Values must not share an ID")
	}
}

func TestBlockPredecessorsFollowBranches(t *testing.T) {
	_, _, fn := newTestFunction(t)
	entry := fn.NewBlock("entry")
	target := fn.NewBlock("target")

	ins, err := entry.NewInstruction(OpBr, nil)
	if err != nil {
		t.Fatalf("NewInstruction(OpBr): %v", err)
	}
	ins.Targets = []*Block{target}
	entry.LinkSuccessor(target)

	preds := target.Predecessors()
	if len(preds) != 1 || preds[0] != entry {
		t.Errorf("target.Predecessors() = %v, want [entry]", preds)
	}

	succs := entry.Successors()
	if len(succs) != 1 || succs[0] != target {
		t.Errorf("entry.Successors() = %v, want [target]", succs)
	}

	entry.UnlinkSuccessor(target)
	if len(target.Predecessors()) != 0 {
		t.Errorf("UnlinkSuccessor did not remove the predecessor edge")
	}
}

func TestFunctionEntryIsFirstBlock(t *testing.T) {
	_, _, fn := newTestFunction(t)
	if fn.Entry != nil {
		t.Fatalf("a function with no blocks must have a nil Entry")
	}

	first := fn.NewBlock("")
	if fn.Entry != first {
		t.Errorf("the first block created must become the function's Entry")
	}

	second := fn.NewBlock("")
	if fn.Entry != first {
		t.Errorf("creating a second block must not change Entry")
	}
	if first.Label == second.Label {
		t.Errorf("automatic block labels must be distinct: both %q", first.Label)
	}
}

func TestIsDeclaration(t *testing.T) {
	_, _, fn := newTestFunction(t)
	if !fn.IsDeclaration() {
		t.Errorf("a function with no blocks must report IsDeclaration() == true")
	}

	fn.NewBlock("entry")
	if fn.IsDeclaration() {
		t.Errorf("a function with a block must report IsDeclaration() == false")
	}
}
