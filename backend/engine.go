// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package backend

import (
	"fmt"
	"strings"

	"github.com/bencz/anvil/diag"
	"github.com/bencz/anvil/ir"
	"github.com/bencz/anvil/target"
)

// Syntax is the set of per-opcode text-emission recipes a GNU-
// assembler-style family (x86, power, arm64) supplies to Engine. Each
// recipe returns the assembly line's instruction text, mnemonic and
// operands (no leading indentation, no trailing newline); ok is false when the
// family has no mapping for that opcode/type combination, which
// Engine reports by writing a comment marker in place of the
// instruction and continuing (see unsupportedMarker) rather than
// aborting the render.
//
// Engine holds every value in its own frame slot (see Layout) and
// round-trips through the family's two or three scratch registers for
// every instruction; this never wins a register allocation contest,
// but it is uniform across wildly different ABIs and keeps the three
// families that use Engine expressible as data (mnemonic tables)
// rather than three independent control-flow implementations; the
// mainframe family has its own lowering driver.
type Syntax struct {
	Comment    string
	GlobalDir  string
	TextDir    string
	DataDir    string
	LabelColon bool // true: "label:"; false handled by mainframe's own package, unused here

	Move       func(dst, src target.Register) string
	LoadImm    func(dst target.Register, bits uint64) string
	FrameAddr  func(dst target.Register, base target.Register, offset int) string
	Load       func(dst target.Register, base target.Register, offset, size int) string
	Store      func(base target.Register, offset int, src target.Register, size int) string
	BinOp      func(op ir.Opcode, dst, lhs, rhs target.Register) (string, bool)
	UnOp       func(op ir.Opcode, dst, src target.Register) (string, bool)
	Cmp        func(op ir.Opcode, dst, lhs, rhs target.Register) (string, bool)
	Jump       func(label string) string
	JumpIfZero func(cond target.Register, label string) string
	Call       func(label string) string
	Prologue   func(frameSize int) []string
	Epilogue   func(frameSize int) []string
	MoveResultFromABI func(dst target.Register, abi *target.ABI) string
	MoveResultToABI   func(abi *target.ABI, src target.Register) string
	MoveArgToABI      func(abi *target.ABI, index int, src target.Register) string

	// CondSelect emits the family's hardware conditional-select
	// sequence (cond, dst, whenTrue, whenFalse) for OpSelect, used in
	// place of the branch-on-compare fallback when the Context's CPU
	// model reports target.FeatureCondSelect. ok is false for families
	// with no such instruction, in which case Engine always falls back
	// regardless of the feature bit.
	CondSelect func(cond, dst, whenTrue, whenFalse target.Register) ([]string, bool)
}

// Engine drives the common per-function lowering algorithm for a
// single GNU-assembler-syntax family, parameterized by arch, the
// active ABI, and the family's Syntax table.
type Engine struct {
	Arch   *target.Arch
	Syntax Syntax
}

func (e *Engine) scratch(abi *target.ABI, i int) target.Register {
	return abi.ScratchRegisters[i%len(abi.ScratchRegisters)].(target.Register)
}

// LowerModule renders every non-declaration function in mod.
func (e *Engine) LowerModule(ctx *ir.Context, mod *ir.Module) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s generated by anvil for %s\n", e.Syntax.Comment, e.Arch.Name)

	for _, g := range mod.Globals {
		e.emitGlobal(&b, g)
	}

	for _, fn := range mod.Functions {
		if fn.IsDeclaration() {
			continue
		}
		text, err := e.LowerFunction(ctx, fn)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}

	return b.String(), nil
}

func (e *Engine) emitGlobal(b *strings.Builder, g *ir.Value) {
	if g.GlobalLink == ir.External {
		fmt.Fprintf(b, "%s %s\n", e.Syntax.GlobalDir, g.Name)
	}
	fmt.Fprintf(b, "%s:\n", g.Name)
	if g.Initializer != nil && g.Initializer.Kind == ir.ConstString {
		fmt.Fprintf(b, "\t.ascii %q\n", g.Initializer.StrVal)
	}
}

// LowerFunction renders a single function's prologue, body, and
// epilogue-on-fallthrough.
func (e *Engine) LowerFunction(ctx *ir.Context, fn *ir.Function) (string, error) {
	abi := fn.CC.ABI
	if abi == nil {
		abi = ctx.ABI()
	}

	layout := ComputeLayout(e.Arch, abi, fn)

	var b strings.Builder
	if fn.Linkage == ir.External {
		fmt.Fprintf(&b, "%s %s\n", e.Syntax.GlobalDir, fn.Name)
	}
	fmt.Fprintf(&b, "%s:\n", fn.Name)
	for _, line := range e.Syntax.Prologue(layout.FrameSize) {
		fmt.Fprintf(&b, "\t%s\n", line)
	}

	for i, p := range fn.Params {
		off, _ := layout.ValueOffset(p)
		if i < len(abi.ParamRegisters) {
			reg := abi.ParamRegisters[i].(target.Register)
			fmt.Fprintf(&b, "\t%s\n", e.Syntax.Store(e.Arch.FramePointer.(target.Register), off, reg, e.Arch.LocationSize))
		}
	}

	for _, block := range fn.Blocks {
		fmt.Fprintf(&b, "%s:\n", blockLabel(fn.Name, block.Label))
		for _, ins := range block.Instructions {
			if err := e.emitInstruction(ctx, &b, fn, abi, layout, block, ins); err != nil {
				return "", err
			}
		}
		if block.Terminator() == nil {
			e.emitFallthroughReturn(&b, fn, abi, layout)
		}
	}

	return b.String(), nil
}

func blockLabel(fn, label string) string { return fn + "." + label }

func (e *Engine) load(b *strings.Builder, fn *ir.Function, layout *Layout, reg target.Register, v *ir.Value) error {
	switch v.Kind {
	case ir.ConstInt:
		fmt.Fprintf(b, "\t%s\n", e.Syntax.LoadImm(reg, v.IntVal))
	case ir.ConstNull:
		fmt.Fprintf(b, "\t%s\n", e.Syntax.LoadImm(reg, 0))
	case ir.ConstFloat:
		fmt.Fprintf(b, "\t%s\n", e.Syntax.LoadImm(reg, uint64(v.FloatVal)))
	case ir.GlobalValue, ir.FunctionValue:
		fmt.Fprintf(b, "\t%s\n", e.Syntax.LoadImm(reg, 0)) // symbolic address, resolved at link time
	default:
		if off, ok := layout.AllocaOffset(v); ok && v.Producer != nil && v.Producer.Opcode == ir.OpAlloca {
			fmt.Fprintf(b, "\t%s\n", e.Syntax.FrameAddr(reg, e.Arch.FramePointer.(target.Register), off))
			return nil
		}
		off, ok := layout.ValueOffset(v)
		if !ok {
			return diag.New(diag.Internal, "value %s has no frame slot", v)
		}
		fmt.Fprintf(b, "\t%s\n", e.Syntax.Load(reg, e.Arch.FramePointer.(target.Register), off, e.Arch.LocationSize))
	}
	return nil
}

func (e *Engine) store(b *strings.Builder, layout *Layout, v *ir.Value, reg target.Register) error {
	off, ok := layout.ValueOffset(v)
	if !ok {
		return diag.New(diag.Internal, "value %s has no frame slot", v)
	}
	fmt.Fprintf(b, "\t%s\n", e.Syntax.Store(e.Arch.FramePointer.(target.Register), off, reg, e.Arch.LocationSize))
	return nil
}

// loadAddress materializes the address a load/store instruction reads
// or writes through into reg. When addrMode is nil, v already owns a
// frame slot and is loaded normally. When addrMode is set (by the
// gep-fold pass), the gep/struct_gep it records was removed from its
// block and never received a frame slot, so its address computation
// is replayed here directly from its original operands instead,
// using scratch as a second register for OpGEP's index term.
func (e *Engine) loadAddress(b *strings.Builder, fn *ir.Function, layout *Layout, reg, scratch target.Register, v *ir.Value, addrMode *ir.Instruction) error {
	if addrMode == nil {
		return e.load(b, fn, layout, reg, v)
	}

	switch addrMode.Opcode {
	case ir.OpGEP:
		if err := e.load(b, fn, layout, reg, addrMode.Operands[0]); err != nil {
			return err
		}
		if err := e.load(b, fn, layout, scratch, addrMode.Operands[1]); err != nil {
			return err
		}
		elemSize := addrMode.FieldType.Size()
		scaled := e.scaleIndex(b, scratch, elemSize)
		line, _ := e.Syntax.BinOp(ir.OpAdd, reg, reg, scaled)
		fmt.Fprintf(b, "\t%s\n", line)
		return nil

	case ir.OpStructGEP:
		if err := e.load(b, fn, layout, reg, addrMode.Operands[0]); err != nil {
			return err
		}
		st := addrMode.Operands[0].Type.(*ir.PointerType).Elem.(*ir.StructType)
		fmt.Fprintf(b, "\t%s\n", e.Syntax.FrameAddr(reg, reg, st.FieldOffset(addrMode.Index)))
		return nil

	default:
		return diag.New(diag.Internal, "%s: unexpected AddrMode opcode %s", fn.Name, addrMode.Opcode)
	}
}

// unsupportedMarker writes a recognizable comment line into the
// output in place of an instruction this family has no lowering for,
// per the common algorithm's rule that an unsupported opcode never
// silently aborts a render: it is reported, and lowering continues
// with the rest of the function. Structural errors (a value with no
// frame slot, an unexpected address-mode opcode) are not routed
// through this path and still fail LowerFunction/LowerModule outright.
// A block with no terminator is not an error: it gets an implicit
// return.
func (e *Engine) unsupportedMarker(b *strings.Builder, fn *ir.Function, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(b, "\t%s anvil: unsupported %s\n", e.Syntax.Comment, msg)
}

func (e *Engine) emitInstruction(ctx *ir.Context, b *strings.Builder, fn *ir.Function, abi *target.ABI, layout *Layout, block *ir.Block, ins *ir.Instruction) error {
	r0, r1 := e.scratch(abi, 0), e.scratch(abi, 1)

	switch ins.Opcode {
	case ir.OpAlloca:
		return nil // the slot itself carries the address; materialized lazily on load

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem,
		ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpLShr, ir.OpAShr:
		if err := e.load(b, fn, layout, r0, ins.Operands[0]); err != nil {
			return err
		}
		if err := e.load(b, fn, layout, r1, ins.Operands[1]); err != nil {
			return err
		}
		line, ok := e.Syntax.BinOp(ins.Opcode, r0, r0, r1)
		if !ok {
			e.unsupportedMarker(b, fn, "opcode %s on %s", ins.Opcode, e.Arch.Name)
			return nil
		}
		fmt.Fprintf(b, "\t%s\n", line)
		return e.store(b, layout, ins.Result, r0)

	case ir.OpNeg, ir.OpNot:
		if err := e.load(b, fn, layout, r0, ins.Operands[0]); err != nil {
			return err
		}
		line, ok := e.Syntax.UnOp(ins.Opcode, r0, r0)
		if !ok {
			e.unsupportedMarker(b, fn, "opcode %s on %s", ins.Opcode, e.Arch.Name)
			return nil
		}
		fmt.Fprintf(b, "\t%s\n", line)
		return e.store(b, layout, ins.Result, r0)

	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		if err := e.load(b, fn, layout, r0, ins.Operands[0]); err != nil {
			return err
		}
		if err := e.load(b, fn, layout, r1, ins.Operands[1]); err != nil {
			return err
		}
		line, ok := e.Syntax.BinOp(ins.Opcode, r0, r0, r1)
		if !ok {
			e.unsupportedMarker(b, fn, "opcode %s on %s", ins.Opcode, e.Arch.Name)
			return nil
		}
		fmt.Fprintf(b, "\t%s\n", line)
		return e.store(b, layout, ins.Result, r0)

	case ir.OpFNeg, ir.OpFAbs:
		if err := e.load(b, fn, layout, r0, ins.Operands[0]); err != nil {
			return err
		}
		line, ok := e.Syntax.UnOp(ins.Opcode, r0, r0)
		if !ok {
			e.unsupportedMarker(b, fn, "opcode %s on %s", ins.Opcode, e.Arch.Name)
			return nil
		}
		fmt.Fprintf(b, "\t%s\n", line)
		return e.store(b, layout, ins.Result, r0)

	case ir.OpICmpEQ, ir.OpICmpNE, ir.OpICmpSLT, ir.OpICmpSLE, ir.OpICmpSGT, ir.OpICmpSGE,
		ir.OpICmpULT, ir.OpICmpULE, ir.OpICmpUGT, ir.OpICmpUGE, ir.OpFCmp:
		if err := e.load(b, fn, layout, r0, ins.Operands[0]); err != nil {
			return err
		}
		if err := e.load(b, fn, layout, r1, ins.Operands[1]); err != nil {
			return err
		}
		line, ok := e.Syntax.Cmp(ins.Opcode, r0, r0, r1)
		if !ok {
			e.unsupportedMarker(b, fn, "comparison %s on %s", ins.Opcode, e.Arch.Name)
			return nil
		}
		fmt.Fprintf(b, "\t%s\n", line)
		return e.store(b, layout, ins.Result, r0)

	case ir.OpTrunc, ir.OpZExt, ir.OpSExt, ir.OpBitcast, ir.OpPtrToInt, ir.OpIntToPtr,
		ir.OpFPExt, ir.OpFPTrunc, ir.OpSIToFP, ir.OpUIToFP, ir.OpFPToSI, ir.OpFPToUI:
		if err := e.load(b, fn, layout, r0, ins.Operands[0]); err != nil {
			return err
		}
		return e.store(b, layout, ins.Result, r0)

	case ir.OpLoad:
		if err := e.loadAddress(b, fn, layout, r0, r1, ins.Operands[0], ins.AddrMode); err != nil {
			return err
		}
		fmt.Fprintf(b, "\t%s\n", e.Syntax.Load(r0, r0, 0, ins.Result.Type.Size()))
		return e.store(b, layout, ins.Result, r0)

	case ir.OpStore:
		if err := e.loadAddress(b, fn, layout, r0, r1, ins.Operands[0], ins.AddrMode); err != nil {
			return err
		}
		if err := e.load(b, fn, layout, r1, ins.Operands[1]); err != nil {
			return err
		}
		fmt.Fprintf(b, "\t%s\n", e.Syntax.Store(r0, 0, r1, ins.Operands[1].Type.Size()))
		return nil

	case ir.OpGEP:
		if err := e.load(b, fn, layout, r0, ins.Operands[0]); err != nil {
			return err
		}
		if err := e.load(b, fn, layout, r1, ins.Operands[1]); err != nil {
			return err
		}
		elemSize := ins.FieldType.Size()
		scaled := e.scaleIndex(b, r1, elemSize)
		line, _ := e.Syntax.BinOp(ir.OpAdd, r0, r0, scaled)
		fmt.Fprintf(b, "\t%s\n", line)
		return e.store(b, layout, ins.Result, r0)

	case ir.OpStructGEP:
		if err := e.load(b, fn, layout, r0, ins.Operands[0]); err != nil {
			return err
		}
		st := ins.Operands[0].Type.(*ir.PointerType).Elem.(*ir.StructType)
		fmt.Fprintf(b, "\t%s\n", e.Syntax.FrameAddr(r0, r0, st.FieldOffset(ins.Index)))
		return e.store(b, layout, ins.Result, r0)

	case ir.OpCall:
		return e.emitCall(b, fn, abi, layout, ins)

	case ir.OpBr:
		e.emitPhiMoves(b, fn, layout, block, ins.Targets[0])
		fmt.Fprintf(b, "\t%s\n", e.Syntax.Jump(blockLabel(fn.Name, ins.Targets[0].Label)))
		return nil

	case ir.OpBrCond:
		if err := e.load(b, fn, layout, r0, ins.Operands[0]); err != nil {
			return err
		}
		e.emitPhiMoves(b, fn, layout, block, ins.Targets[0])
		elseLabel := blockLabel(fn.Name, ins.Targets[1].Label) + ".else"
		fmt.Fprintf(b, "\t%s\n", e.Syntax.JumpIfZero(r0, elseLabel))
		fmt.Fprintf(b, "\t%s\n", e.Syntax.Jump(blockLabel(fn.Name, ins.Targets[0].Label)))
		fmt.Fprintf(b, "%s:\n", elseLabel)
		e.emitPhiMoves(b, fn, layout, block, ins.Targets[1])
		fmt.Fprintf(b, "\t%s\n", e.Syntax.Jump(blockLabel(fn.Name, ins.Targets[1].Label)))
		return nil

	case ir.OpRet:
		if len(ins.Operands) == 1 {
			if err := e.load(b, fn, layout, r0, ins.Operands[0]); err != nil {
				return err
			}
			fmt.Fprintf(b, "\t%s\n", e.Syntax.MoveResultToABI(abi, r0))
		}
		for _, line := range e.Syntax.Epilogue(layout.FrameSize) {
			fmt.Fprintf(b, "\t%s\n", line)
		}
		return nil

	case ir.OpPhi:
		return nil // populated by the predecessors' emitPhiMoves

	case ir.OpSelect:
		if ctx.HasFeature(target.FeatureCondSelect) && e.Syntax.CondSelect != nil {
			r2 := e.scratch(abi, 2)
			if err := e.load(b, fn, layout, r0, ins.Operands[0]); err != nil {
				return err
			}
			if err := e.load(b, fn, layout, r1, ins.Operands[1]); err != nil {
				return err
			}
			if err := e.load(b, fn, layout, r2, ins.Operands[2]); err != nil {
				return err
			}
			if lines, ok := e.Syntax.CondSelect(r0, r1, r1, r2); ok {
				for _, line := range lines {
					fmt.Fprintf(b, "\t%s\n", line)
				}
				return e.store(b, layout, ins.Result, r1)
			}
		}

		if err := e.load(b, fn, layout, r0, ins.Operands[0]); err != nil {
			return err
		}
		trueLabel := fmt.Sprintf("%s.select%d.true", fn.Name, ins.ID)
		doneLabel := fmt.Sprintf("%s.select%d.done", fn.Name, ins.ID)
		fmt.Fprintf(b, "\t%s\n", e.Syntax.JumpIfZero(r0, trueLabel+".false"))
		if err := e.load(b, fn, layout, r0, ins.Operands[1]); err != nil {
			return err
		}
		if err := e.store(b, layout, ins.Result, r0); err != nil {
			return err
		}
		fmt.Fprintf(b, "\t%s\n", e.Syntax.Jump(doneLabel))
		fmt.Fprintf(b, "%s:\n", trueLabel+".false")
		if err := e.load(b, fn, layout, r0, ins.Operands[2]); err != nil {
			return err
		}
		if err := e.store(b, layout, ins.Result, r0); err != nil {
			return err
		}
		fmt.Fprintf(b, "%s:\n", doneLabel)
		return nil

	default:
		e.unsupportedMarker(b, fn, "opcode %s on %s", ins.Opcode, e.Arch.Name)
		return nil
	}
}

// scaleIndex multiplies the index in reg by elemSize, choosing a
// shift for power-of-two sizes and leaving reg untouched for a
// unit-size element.
func (e *Engine) scaleIndex(b *strings.Builder, reg target.Register, elemSize int) target.Register {
	if elemSize == 1 {
		return reg
	}
	if elemSize > 0 && elemSize&(elemSize-1) == 0 {
		shift := 0
		for n := elemSize; n > 1; n >>= 1 {
			shift++
		}
		shiftAmt := target.Register{Name: fmt.Sprintf("$%d", shift), Width: reg.Width, Kind: target.GeneralRegister}
		line, ok := e.Syntax.BinOp(ir.OpShl, reg, reg, shiftAmt)
		if ok {
			fmt.Fprintf(b, "\t%s\n", line)
		}
		return reg
	}
	// Non-power-of-two: the Syntax's BinOp multiply recipe consumes
	// an immediate-valued "register" the same way shift does above.
	factor := target.Register{Name: fmt.Sprintf("$%d", elemSize), Width: reg.Width, Kind: target.GeneralRegister}
	line, ok := e.Syntax.BinOp(ir.OpMul, reg, reg, factor)
	if ok {
		fmt.Fprintf(b, "\t%s\n", line)
	}
	return reg
}

func (e *Engine) emitPhiMoves(b *strings.Builder, fn *ir.Function, layout *Layout, pred, succ *ir.Block) {
	for _, mv := range PhiMoves(pred, succ) {
		r := e.scratch(fn.CC.ABI, 2)
		if e.load(b, fn, layout, r, mv.Value) == nil {
			e.store(b, layout, mv.Phi, r)
		}
	}
}

func (e *Engine) emitCall(b *strings.Builder, fn *ir.Function, abi *target.ABI, layout *Layout, ins *ir.Instruction) error {
	callee := ins.Operands[0]
	args := ins.Operands[1:]

	for i, arg := range args {
		r := e.scratch(abi, i%2)
		if err := e.load(b, fn, layout, r, arg); err != nil {
			return err
		}
		fmt.Fprintf(b, "\t%s\n", e.Syntax.MoveArgToABI(abi, i, r))
	}

	name := callee.Name
	if callee.Kind != ir.FunctionValue && callee.Kind != ir.GlobalValue {
		name = "*" // indirect call through a computed address is not modeled textually
	}
	fmt.Fprintf(b, "\t%s\n", e.Syntax.Call(name))

	if ins.Result != nil {
		r := e.scratch(abi, 0)
		fmt.Fprintf(b, "\t%s\n", e.Syntax.MoveResultFromABI(r, abi))
		return e.store(b, layout, ins.Result, r)
	}
	return nil
}

func (e *Engine) emitFallthroughReturn(b *strings.Builder, fn *ir.Function, abi *target.ABI, layout *Layout) {
	if _, void := fn.Type.Result.(*ir.VoidType); !void {
		r0 := e.scratch(abi, 0)
		fmt.Fprintf(b, "\t%s\n", e.Syntax.LoadImm(r0, 0))
		fmt.Fprintf(b, "\t%s\n", e.Syntax.MoveResultToABI(abi, r0))
	}
	for _, line := range e.Syntax.Epilogue(layout.FrameSize) {
		fmt.Fprintf(b, "\t%s\n", line)
	}
}
