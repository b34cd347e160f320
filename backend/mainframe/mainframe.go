// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package mainframe lowers ANVIL IR to HLASM assembly text for the
// four System/360-descended architectures (S360_24, S370_31, S390_31,
// Z_64). Unlike the x86/power/arm64 families this package does not
// share backend.Engine's GNU-assembler-syntax driver: HLASM's
// column-based statement format and the parameter-address-list
// calling convention (an indirect list of argument addresses pointed
// to by R1, its final entry's high bit set as an end-of-list marker)
// are different enough from the other three families' "label, tab,
// mnemonic, tab, operands" shape and register-window calling
// convention that forcing them through the same table would obscure
// more than it would share. It still reuses backend.ComputeLayout and
// backend.PhiMoves, since the stack-slot-per-value layout strategy
// and phi resolution by move-insertion apply unchanged.
package mainframe

import (
	"fmt"
	"strings"

	"github.com/bencz/anvil/backend"
	"github.com/bencz/anvil/diag"
	"github.com/bencz/anvil/ir"
	"github.com/bencz/anvil/target"
)

func init() {
	backend.Register(target.S360_24, newLowerer)
	backend.Register(target.S370_31, newLowerer)
	backend.Register(target.S390_31, newLowerer)
	backend.Register(target.Z_64, newLowerer)
}

type lowerer struct {
	arch *target.Arch
}

func newLowerer(arch *target.Arch) backend.Lowerer {
	return &lowerer{arch: arch}
}

func (l *lowerer) Init(ctx *ir.Context) error { return nil }
func (l *lowerer) Cleanup()                   {}
func (l *lowerer) Reset()                     {}
func (l *lowerer) Info() *target.Arch         { return l.arch }

// statement renders one HLASM card: an 8-column label field, a
// mnemonic, and an operand field, matching fixed-format HLASM column
// conventions (label starts at column 1; operands are free-form past
// the mnemonic since this package targets the free/extended format
// assemblers accept, not strict 80-column fixed format).
func statement(label, op, operands string) string {
	if label == "" {
		label = " "
	}
	if operands == "" {
		return fmt.Sprintf("%-8s %s", label, op)
	}
	return fmt.Sprintf("%-8s %-5s %s", label, op, operands)
}

// unsupportedMarker writes an HLASM comment card in place of an
// instruction this family has no lowering for, so that an opcode gap
// reports itself in the rendered output and lowering continues with
// the rest of the function instead of aborting the whole render.
// Structural errors (a value with no frame slot, an unexpected
// address-mode opcode) still return a diag.Internal error and are not
// routed through this path. A block with no terminator is not an
// error: it gets an implicit return.
func (l *lowerer) unsupportedMarker(b *strings.Builder, fn *ir.Function, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(b, "* anvil: unsupported %s\n", msg)
}

func (l *lowerer) LowerModule(ctx *ir.Context, mod *ir.Module) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "* generated by anvil for %s\n", l.arch.Name)

	for _, g := range mod.Globals {
		l.emitGlobal(&b, g)
	}

	for _, fn := range mod.Functions {
		if fn.IsDeclaration() {
			continue
		}
		text, err := l.LowerFunction(ctx, fn)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}

	b.WriteString(statement("", "END", ""))
	b.WriteString("\n")
	return b.String(), nil
}

func (l *lowerer) emitGlobal(b *strings.Builder, g *ir.Value) {
	size := g.Type.Size()
	if size < 1 {
		size = 1
	}
	if g.Initializer != nil && g.Initializer.Kind == ir.ConstString {
		b.WriteString(statement(g.Name, "DC", fmt.Sprintf("C'%s'", g.Initializer.StrVal)))
	} else {
		b.WriteString(statement(g.Name, "DS", fmt.Sprintf("%dX", size)))
	}
	b.WriteString("\n")
}

// These register names mirror the fixed R0-R15/F0-F15 register file
// target/mainframe.go declares; this package addresses them purely
// by name since backend.Syntax's function-table approach isn't used
// here.
const (
	rBase   = "R15" // entry-point base register
	rLink   = "R14" // return address
	rFrame  = "R13" // frame pointer / save-area anchor
	rArgs   = "R1"  // points at the outgoing parameter address list
	rScratch0 = "R0"
	rScratch1 = "R1"
)

func (l *lowerer) LowerFunction(ctx *ir.Context, fn *ir.Function) (string, error) {
	abi := fn.CC.ABI
	if abi == nil {
		abi = ctx.ABI()
	}
	layout := backend.ComputeLayout(l.arch, abi, fn)

	var b strings.Builder
	b.WriteString(statement(fn.Name, "CSECT", ""))
	b.WriteString("\n")
	b.WriteString(statement("", "USING", "*,"+rBase))
	b.WriteString("\n")
	b.WriteString(statement("", "STM", fmt.Sprintf("R14,R12,12(%s)", rFrame)))
	b.WriteString("\n")
	b.WriteString(statement("", "LR", rFrame+",R1")) // caller's arg-list pointer becomes our working base until reset below
	b.WriteString("\n")
	b.WriteString(statement("", "AHI", fmt.Sprintf("%s,%d", rFrame, layout.FrameSize)))
	b.WriteString("\n")

	for i, p := range fn.Params {
		if off, ok := layout.ValueOffset(p); ok {
			l.emitLoadParam(&b, layout, off, i)
		}
	}

	for _, block := range fn.Blocks {
		b.WriteString(statement(blockLabel(fn.Name, block.Label), "DS", "0H"))
		b.WriteString("\n")
		for _, ins := range block.Instructions {
			if err := l.emitInstruction(&b, fn, abi, layout, block, ins); err != nil {
				return "", err
			}
		}
		if block.Terminator() == nil {
			l.emitReturn(&b, fn, abi, layout, nil)
		}
	}

	return b.String(), nil
}

func blockLabel(fn, label string) string {
	name := fn + "_" + label
	if len(name) > 8 {
		name = name[len(name)-8:]
	}
	return name
}

// emitLoadParam loads the i'th incoming parameter by dereferencing
// the address the caller stored in the i'th entry of the
// parameter-address list R1 pointed at, then stores the value into
// this function's own spill slot for that parameter.
func (l *lowerer) emitLoadParam(b *strings.Builder, layout *backend.Layout, slotOffset, index int) {
	entry := index * l.arch.LocationSize
	b.WriteString(statement("", l.loadOp(), fmt.Sprintf("%s,%d(%s)", rScratch0, entry, rArgs)))
	b.WriteString("\n")
	b.WriteString(statement("", l.loadOp(), fmt.Sprintf("%s,0(%s)", rScratch0, rScratch0)))
	b.WriteString("\n")
	b.WriteString(statement("", l.storeOp(), fmt.Sprintf("%s,%d(%s)", rScratch0, slotOffset, rFrame)))
	b.WriteString("\n")
}

func (l *lowerer) loadOp() string {
	if l.arch.LocationSize == 8 {
		return "LG"
	}
	return "L"
}

func (l *lowerer) storeOp() string {
	if l.arch.LocationSize == 8 {
		return "STG"
	}
	return "ST"
}

func (l *lowerer) load(b *strings.Builder, layout *backend.Layout, reg string, v *ir.Value) error {
	switch v.Kind {
	case ir.ConstInt:
		b.WriteString(statement("", "LHI", fmt.Sprintf("%s,%d", reg, int64(v.IntVal))))
		b.WriteString("\n")
	case ir.ConstNull:
		b.WriteString(statement("", "LHI", fmt.Sprintf("%s,0", reg)))
		b.WriteString("\n")
	case ir.GlobalValue, ir.FunctionValue:
		b.WriteString(statement("", "LA", fmt.Sprintf("%s,%s", reg, v.Name)))
		b.WriteString("\n")
	default:
		if off, ok := layout.AllocaOffset(v); ok && v.Producer != nil && v.Producer.Opcode == ir.OpAlloca {
			b.WriteString(statement("", "LA", fmt.Sprintf("%s,%d(%s)", reg, off, rFrame)))
			b.WriteString("\n")
			return nil
		}
		off, ok := layout.ValueOffset(v)
		if !ok {
			return diag.New(diag.Internal, "value %s has no frame slot", v)
		}
		b.WriteString(statement("", l.loadOp(), fmt.Sprintf("%s,%d(%s)", reg, off, rFrame)))
		b.WriteString("\n")
	}
	return nil
}

func (l *lowerer) store(b *strings.Builder, layout *backend.Layout, v *ir.Value, reg string) error {
	off, ok := layout.ValueOffset(v)
	if !ok {
		return diag.New(diag.Internal, "value %s has no frame slot", v)
	}
	b.WriteString(statement("", l.storeOp(), fmt.Sprintf("%s,%d(%s)", reg, off, rFrame)))
	b.WriteString("\n")
	return nil
}

// loadAddress materializes the address a load/store instruction reads
// or writes through into reg, replaying a gep-fold-recorded address
// computation from its original operands when addrMode is set (the
// folded gep/struct_gep never received a frame slot of its own), and
// falling back to an ordinary load otherwise.
func (l *lowerer) loadAddress(b *strings.Builder, layout *backend.Layout, reg, scratch string, v *ir.Value, addrMode *ir.Instruction) error {
	if addrMode == nil {
		return l.load(b, layout, reg, v)
	}

	switch addrMode.Opcode {
	case ir.OpGEP:
		if err := l.load(b, layout, reg, addrMode.Operands[0]); err != nil {
			return err
		}
		if err := l.load(b, layout, scratch, addrMode.Operands[1]); err != nil {
			return err
		}
		elemSize := addrMode.FieldType.Size()
		if elemSize > 1 {
			b.WriteString(statement("", "MHI", fmt.Sprintf("%s,%d", scratch, elemSize)))
			b.WriteString("\n")
		}
		b.WriteString(statement("", "AR", fmt.Sprintf("%s,%s", reg, scratch)))
		b.WriteString("\n")
		return nil

	case ir.OpStructGEP:
		if err := l.load(b, layout, reg, addrMode.Operands[0]); err != nil {
			return err
		}
		st := addrMode.Operands[0].Type.(*ir.PointerType).Elem.(*ir.StructType)
		b.WriteString(statement("", "LA", fmt.Sprintf("%s,%d(%s)", reg, st.FieldOffset(addrMode.Index), reg)))
		b.WriteString("\n")
		return nil

	default:
		return diag.New(diag.Internal, "%s: unexpected AddrMode opcode %s", l.arch.Name, addrMode.Opcode)
	}
}

var intMnemonic = map[ir.Opcode]string{
	ir.OpAdd: "AR",
	ir.OpSub: "SR",
	ir.OpMul: "MR",
	ir.OpAnd: "NR",
	ir.OpOr:  "OR",
	ir.OpXor: "XR",
}

var floatMnemonic = map[ir.Opcode]string{
	ir.OpFAdd: "ADR",
	ir.OpFSub: "SDR",
	ir.OpFMul: "MDR",
	ir.OpFDiv: "DDR",
}

func (l *lowerer) emitInstruction(b *strings.Builder, fn *ir.Function, abi *target.ABI, layout *backend.Layout, block *ir.Block, ins *ir.Instruction) error {
	switch ins.Opcode {
	case ir.OpAlloca:
		return nil

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr, ir.OpXor:
		if err := l.load(b, layout, rScratch0, ins.Operands[0]); err != nil {
			return err
		}
		if err := l.load(b, layout, rScratch1, ins.Operands[1]); err != nil {
			return err
		}
		mnem, ok := intMnemonic[ins.Opcode]
		if !ok {
			l.unsupportedMarker(b, fn, "opcode %s on %s", ins.Opcode, l.arch.Name)
			return nil
		}
		b.WriteString(statement("", mnem, fmt.Sprintf("%s,%s", rScratch0, rScratch1)))
		b.WriteString("\n")
		return l.store(b, layout, ins.Result, rScratch0)

	case ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem:
		if err := l.load(b, layout, rScratch0, ins.Operands[0]); err != nil {
			return err
		}
		if err := l.load(b, layout, rScratch1, ins.Operands[1]); err != nil {
			return err
		}
		b.WriteString(statement("", "DR", fmt.Sprintf("%s,%s", rScratch0, rScratch1)))
		b.WriteString("\n")
		result := rScratch0
		if ins.Opcode == ir.OpSRem || ins.Opcode == ir.OpURem {
			// DR leaves the remainder in the even register of the pair.
			result = rScratch0
		}
		return l.store(b, layout, ins.Result, result)

	case ir.OpShl, ir.OpLShr, ir.OpAShr:
		if err := l.load(b, layout, rScratch0, ins.Operands[0]); err != nil {
			return err
		}
		if err := l.load(b, layout, rScratch1, ins.Operands[1]); err != nil {
			return err
		}
		mnem := map[ir.Opcode]string{ir.OpShl: "SLA", ir.OpLShr: "SRL", ir.OpAShr: "SRA"}[ins.Opcode]
		b.WriteString(statement("", mnem, fmt.Sprintf("%s,0(%s)", rScratch0, rScratch1)))
		b.WriteString("\n")
		return l.store(b, layout, ins.Result, rScratch0)

	case ir.OpNeg:
		if err := l.load(b, layout, rScratch0, ins.Operands[0]); err != nil {
			return err
		}
		b.WriteString(statement("", "LCR", fmt.Sprintf("%s,%s", rScratch0, rScratch0)))
		b.WriteString("\n")
		return l.store(b, layout, ins.Result, rScratch0)

	case ir.OpNot:
		if err := l.load(b, layout, rScratch0, ins.Operands[0]); err != nil {
			return err
		}
		b.WriteString(statement("", "LHI", fmt.Sprintf("%s,-1", rScratch1)))
		b.WriteString("\n")
		b.WriteString(statement("", "XR", fmt.Sprintf("%s,%s", rScratch0, rScratch1)))
		b.WriteString("\n")
		return l.store(b, layout, ins.Result, rScratch0)

	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		if err := l.load(b, layout, "F0", ins.Operands[0]); err != nil {
			return err
		}
		if err := l.load(b, layout, "F2", ins.Operands[1]); err != nil {
			return err
		}
		mnem, ok := floatMnemonic[ins.Opcode]
		if !ok {
			l.unsupportedMarker(b, fn, "opcode %s on %s", ins.Opcode, l.arch.Name)
			return nil
		}
		b.WriteString(statement("", mnem, "F0,F2"))
		b.WriteString("\n")
		return l.store(b, layout, ins.Result, "F0")

	case ir.OpFNeg:
		if err := l.load(b, layout, "F0", ins.Operands[0]); err != nil {
			return err
		}
		b.WriteString(statement("", "LCDR", "F0,F0"))
		b.WriteString("\n")
		return l.store(b, layout, ins.Result, "F0")

	case ir.OpFAbs:
		if err := l.load(b, layout, "F0", ins.Operands[0]); err != nil {
			return err
		}
		b.WriteString(statement("", "LPDR", "F0,F0"))
		b.WriteString("\n")
		return l.store(b, layout, ins.Result, "F0")

	case ir.OpICmpEQ, ir.OpICmpNE, ir.OpICmpSLT, ir.OpICmpSLE, ir.OpICmpSGT, ir.OpICmpSGE,
		ir.OpICmpULT, ir.OpICmpULE, ir.OpICmpUGT, ir.OpICmpUGE:
		if err := l.load(b, layout, rScratch0, ins.Operands[0]); err != nil {
			return err
		}
		if err := l.load(b, layout, rScratch1, ins.Operands[1]); err != nil {
			return err
		}
		compare := "CR"
		if isUnsignedCompare(ins.Opcode) {
			compare = "CLR"
		}
		b.WriteString(statement("", compare, fmt.Sprintf("%s,%s", rScratch0, rScratch1)))
		b.WriteString("\n")
		b.WriteString(statement("", "LHI", fmt.Sprintf("%s,1", rScratch0)))
		b.WriteString("\n")
		label := fmt.Sprintf("L%dF", ins.ID)
		b.WriteString(statement("", branchOnCond(ins.Opcode), label))
		b.WriteString("\n")
		b.WriteString(statement("", "LHI", fmt.Sprintf("%s,0", rScratch0)))
		b.WriteString("\n")
		b.WriteString(statement(label, "DS", "0H"))
		b.WriteString("\n")
		return l.store(b, layout, ins.Result, rScratch0)

	case ir.OpFCmp:
		if err := l.load(b, layout, "F0", ins.Operands[0]); err != nil {
			return err
		}
		if err := l.load(b, layout, "F2", ins.Operands[1]); err != nil {
			return err
		}
		b.WriteString(statement("", "CDR", "F0,F2"))
		b.WriteString("\n")
		label := fmt.Sprintf("L%dF", ins.ID)
		b.WriteString(statement("", "LHI", fmt.Sprintf("%s,0", rScratch0)))
		b.WriteString("\n")
		b.WriteString(statement("", "BNE", label))
		b.WriteString("\n")
		b.WriteString(statement("", "LHI", fmt.Sprintf("%s,1", rScratch0)))
		b.WriteString("\n")
		b.WriteString(statement(label, "DS", "0H"))
		b.WriteString("\n")
		return l.store(b, layout, ins.Result, rScratch0)

	case ir.OpTrunc, ir.OpZExt, ir.OpSExt, ir.OpBitcast, ir.OpPtrToInt, ir.OpIntToPtr,
		ir.OpFPExt, ir.OpFPTrunc, ir.OpSIToFP, ir.OpUIToFP, ir.OpFPToSI, ir.OpFPToUI:
		if err := l.load(b, layout, rScratch0, ins.Operands[0]); err != nil {
			return err
		}
		return l.store(b, layout, ins.Result, rScratch0)

	case ir.OpLoad:
		if err := l.loadAddress(b, layout, rScratch0, rScratch1, ins.Operands[0], ins.AddrMode); err != nil {
			return err
		}
		b.WriteString(statement("", l.loadOp(), fmt.Sprintf("%s,0(%s)", rScratch0, rScratch0)))
		b.WriteString("\n")
		return l.store(b, layout, ins.Result, rScratch0)

	case ir.OpStore:
		if err := l.loadAddress(b, layout, rScratch0, rScratch1, ins.Operands[0], ins.AddrMode); err != nil {
			return err
		}
		if err := l.load(b, layout, rScratch1, ins.Operands[1]); err != nil {
			return err
		}
		b.WriteString(statement("", l.storeOp(), fmt.Sprintf("%s,0(%s)", rScratch1, rScratch0)))
		b.WriteString("\n")
		return nil

	case ir.OpGEP:
		if err := l.load(b, layout, rScratch0, ins.Operands[0]); err != nil {
			return err
		}
		if err := l.load(b, layout, rScratch1, ins.Operands[1]); err != nil {
			return err
		}
		elemSize := ins.FieldType.Size()
		if elemSize > 1 {
			b.WriteString(statement("", "MHI", fmt.Sprintf("%s,%d", rScratch1, elemSize)))
			b.WriteString("\n")
		}
		b.WriteString(statement("", "AR", fmt.Sprintf("%s,%s", rScratch0, rScratch1)))
		b.WriteString("\n")
		return l.store(b, layout, ins.Result, rScratch0)

	case ir.OpStructGEP:
		if err := l.load(b, layout, rScratch0, ins.Operands[0]); err != nil {
			return err
		}
		st := ins.Operands[0].Type.(*ir.PointerType).Elem.(*ir.StructType)
		b.WriteString(statement("", "LA", fmt.Sprintf("%s,%d(%s)", rScratch0, st.FieldOffset(ins.Index), rScratch0)))
		b.WriteString("\n")
		return l.store(b, layout, ins.Result, rScratch0)

	case ir.OpCall:
		return l.emitCall(b, fn, abi, layout, ins)

	case ir.OpBr:
		l.emitPhiMoves(b, layout, block, ins.Targets[0])
		b.WriteString(statement("", "B", blockLabel(fn.Name, ins.Targets[0].Label)))
		b.WriteString("\n")
		return nil

	case ir.OpBrCond:
		if err := l.load(b, layout, rScratch0, ins.Operands[0]); err != nil {
			return err
		}
		b.WriteString(statement("", "LTR", fmt.Sprintf("%s,%s", rScratch0, rScratch0)))
		b.WriteString("\n")
		elseLabel := blockLabel(fn.Name, ins.Targets[1].Label) + "E"
		b.WriteString(statement("", "BZ", elseLabel))
		b.WriteString("\n")
		l.emitPhiMoves(b, layout, block, ins.Targets[0])
		b.WriteString(statement("", "B", blockLabel(fn.Name, ins.Targets[0].Label)))
		b.WriteString("\n")
		b.WriteString(statement(elseLabel, "DS", "0H"))
		b.WriteString("\n")
		l.emitPhiMoves(b, layout, block, ins.Targets[1])
		b.WriteString(statement("", "B", blockLabel(fn.Name, ins.Targets[1].Label)))
		b.WriteString("\n")
		return nil

	case ir.OpRet:
		var result *ir.Value
		if len(ins.Operands) == 1 {
			result = ins.Operands[0]
		}
		return l.emitReturnValue(b, fn, abi, layout, result)

	case ir.OpPhi:
		return nil

	case ir.OpSelect:
		if err := l.load(b, layout, rScratch0, ins.Operands[0]); err != nil {
			return err
		}
		b.WriteString(statement("", "LTR", fmt.Sprintf("%s,%s", rScratch0, rScratch0)))
		b.WriteString("\n")
		falseLabel := fmt.Sprintf("L%dF", ins.ID)
		doneLabel := fmt.Sprintf("L%dD", ins.ID)
		b.WriteString(statement("", "BZ", falseLabel))
		b.WriteString("\n")
		if err := l.load(b, layout, rScratch0, ins.Operands[1]); err != nil {
			return err
		}
		if err := l.store(b, layout, ins.Result, rScratch0); err != nil {
			return err
		}
		b.WriteString(statement("", "B", doneLabel))
		b.WriteString("\n")
		b.WriteString(statement(falseLabel, "DS", "0H"))
		b.WriteString("\n")
		if err := l.load(b, layout, rScratch0, ins.Operands[2]); err != nil {
			return err
		}
		if err := l.store(b, layout, ins.Result, rScratch0); err != nil {
			return err
		}
		b.WriteString(statement(doneLabel, "DS", "0H"))
		b.WriteString("\n")
		return nil

	default:
		l.unsupportedMarker(b, fn, "opcode %s has no lowering on %s", ins.Opcode, l.arch.Name)
		return nil
	}
}

func isUnsignedCompare(op ir.Opcode) bool {
	switch op {
	case ir.OpICmpULT, ir.OpICmpULE, ir.OpICmpUGT, ir.OpICmpUGE:
		return true
	}
	return false
}

func branchOnCond(op ir.Opcode) string {
	switch op {
	case ir.OpICmpEQ:
		return "BE"
	case ir.OpICmpNE:
		return "BNE"
	case ir.OpICmpSLT, ir.OpICmpULT:
		return "BL"
	case ir.OpICmpSLE, ir.OpICmpULE:
		return "BLE" // approximates "branch low or equal" via condition-code mask
	case ir.OpICmpSGT, ir.OpICmpUGT:
		return "BH"
	case ir.OpICmpSGE, ir.OpICmpUGE:
		return "BHE"
	}
	return "B"
}

func (l *lowerer) emitPhiMoves(b *strings.Builder, layout *backend.Layout, pred, succ *ir.Block) {
	for _, mv := range backend.PhiMoves(pred, succ) {
		if l.load(b, layout, rScratch0, mv.Value) == nil {
			l.store(b, layout, mv.Phi, rScratch0)
		}
	}
}

// emitCall builds the outgoing parameter-address list in this
// function's own frame (one slot holding each argument's address per
// entry, sized LocationSize), points R1 at its first entry, and sets
// the high bit of the final entry's stored address as the
// convention's end-of-list marker before branching and linking.
func (l *lowerer) emitCall(b *strings.Builder, fn *ir.Function, abi *target.ABI, layout *backend.Layout, ins *ir.Instruction) error {
	callee := ins.Operands[0]
	args := ins.Operands[1:]

	listBase := layout.FrameSize - l.arch.SaveAreaSize - len(args)*l.arch.LocationSize
	for i, arg := range args {
		if err := l.load(b, layout, rScratch0, arg); err != nil {
			return err
		}
		// Materialize the argument's own spill slot address, store
		// that address into the i'th parameter-list entry.
		off, ok := layout.ValueOffset(arg)
		if ok {
			b.WriteString(statement("", "LA", fmt.Sprintf("%s,%d(%s)", rScratch0, off, rFrame)))
		}
		b.WriteString("\n")
		entryOff := listBase + i*l.arch.LocationSize
		b.WriteString(statement("", l.storeOp(), fmt.Sprintf("%s,%d(%s)", rScratch0, entryOff, rFrame)))
		b.WriteString("\n")
	}

	if len(args) > 0 {
		lastOff := listBase + (len(args)-1)*l.arch.LocationSize
		b.WriteString(statement("", "L", fmt.Sprintf("%s,%d(%s)", rScratch1, lastOff, rFrame)))
		b.WriteString("\n")
		b.WriteString(statement("", "O", fmt.Sprintf("%s,=X'80000000'", rScratch1)))
		b.WriteString("\n")
		b.WriteString(statement("", "ST", fmt.Sprintf("%s,%d(%s)", rScratch1, lastOff, rFrame)))
		b.WriteString("\n")
	}

	b.WriteString(statement("", "LA", fmt.Sprintf("%s,%d(%s)", rArgs, listBase, rFrame)))
	b.WriteString("\n")

	name := callee.Name
	if callee.Kind != ir.FunctionValue && callee.Kind != ir.GlobalValue {
		name = "0(" + rScratch0 + ")"
	}
	b.WriteString(statement("", "BALR", fmt.Sprintf("%s,%s", rLink, name)))
	b.WriteString("\n")

	if ins.Result != nil {
		return l.store(b, layout, ins.Result, rScratch0)
	}
	return nil
}

func (l *lowerer) emitReturn(b *strings.Builder, fn *ir.Function, abi *target.ABI, layout *backend.Layout, result *ir.Value) {
	l.emitReturnValue(b, fn, abi, layout, result)
}

func (l *lowerer) emitReturnValue(b *strings.Builder, fn *ir.Function, abi *target.ABI, layout *backend.Layout, result *ir.Value) error {
	if result != nil {
		if err := l.load(b, layout, rScratch0, result); err != nil {
			return err
		}
	}
	b.WriteString(statement("", "LM", fmt.Sprintf("R14,R12,12(%s)", rFrame)))
	b.WriteString("\n")
	b.WriteString(statement("", "BR", rLink))
	b.WriteString("\n")
	return nil
}
