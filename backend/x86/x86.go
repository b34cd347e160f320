// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package x86 lowers ANVIL IR to GNU-assembler-syntax text for the
// x86 and x86-64 architectures, descended from the teacher's own
// x86-specific lowering and assembler-emission passes, generalized
// here into data (backend.Syntax) driving backend.Engine's shared
// per-function algorithm instead of a bespoke walk.
package x86

import (
	"fmt"

	"github.com/bencz/anvil/backend"
	"github.com/bencz/anvil/ir"
	"github.com/bencz/anvil/target"
)

func init() {
	backend.Register(target.X86, newLowerer)
	backend.Register(target.X86_64, newLowerer)
}

type lowerer struct {
	arch   *target.Arch
	engine *backend.Engine
}

func newLowerer(arch *target.Arch) backend.Lowerer {
	l := &lowerer{arch: arch}
	l.engine = &backend.Engine{Arch: arch, Syntax: syntaxFor(arch)}
	return l
}

func (l *lowerer) Init(ctx *ir.Context) error { return nil }
func (l *lowerer) Cleanup()                   {}
func (l *lowerer) Reset()                     {}
func (l *lowerer) Info() *target.Arch         { return l.arch }

func (l *lowerer) LowerModule(ctx *ir.Context, mod *ir.Module) (string, error) {
	return l.engine.LowerModule(ctx, mod)
}

func (l *lowerer) LowerFunction(ctx *ir.Context, fn *ir.Function) (string, error) {
	return l.engine.LowerFunction(ctx, fn)
}

func syntaxFor(arch *target.Arch) backend.Syntax {
	w := regWidthSuffix(arch)

	return backend.Syntax{
		Comment:   "#",
		GlobalDir: ".globl",
		TextDir:   ".text",
		DataDir:   ".data",

		Move: func(dst, src target.Register) string {
			return fmt.Sprintf("mov%s %s, %s", w, src.Name, dst.Name)
		},
		LoadImm: func(dst target.Register, bits uint64) string {
			return fmt.Sprintf("mov%s $%d, %s", w, int64(bits), dst.Name)
		},
		FrameAddr: func(dst, base target.Register, offset int) string {
			return fmt.Sprintf("lea%s %d(%s), %s", w, offset, base.Name, dst.Name)
		},
		Load: func(dst, base target.Register, offset, size int) string {
			return fmt.Sprintf("mov%s %d(%s), %s", sizeSuffix(size), offset, base.Name, dst.Name)
		},
		Store: func(base target.Register, offset int, src target.Register, size int) string {
			return fmt.Sprintf("mov%s %s, %d(%s)", sizeSuffix(size), src.Name, offset, base.Name)
		},
		BinOp:  binOp(w),
		UnOp:   unOp(w),
		Cmp:    cmp(w),
		Jump:   func(label string) string { return "jmp " + label },
		JumpIfZero: func(cond target.Register, label string) string {
			return fmt.Sprintf("test%s %s, %s\n\tjz %s", w, cond.Name, cond.Name, label)
		},
		Call: func(label string) string { return "call " + label },
		Prologue: func(frameSize int) []string {
			return []string{
				fmt.Sprintf("push%s %s", w, arch.FramePointer.(target.Register).Name),
				fmt.Sprintf("mov%s %s, %s", w, arch.StackPointer.(target.Register).Name, arch.FramePointer.(target.Register).Name),
				fmt.Sprintf("sub%s $%d, %s", w, frameSize, arch.StackPointer.(target.Register).Name),
			}
		},
		Epilogue: func(frameSize int) []string {
			return []string{
				fmt.Sprintf("mov%s %s, %s", w, arch.FramePointer.(target.Register).Name, arch.StackPointer.(target.Register).Name),
				fmt.Sprintf("pop%s %s", w, arch.FramePointer.(target.Register).Name),
				"ret",
			}
		},
		MoveResultFromABI: func(dst target.Register, abi *target.ABI) string {
			return fmt.Sprintf("mov%s %s, %s", w, abi.ResultRegisters[0].(target.Register).Name, dst.Name)
		},
		MoveResultToABI: func(abi *target.ABI, src target.Register) string {
			return fmt.Sprintf("mov%s %s, %s", w, src.Name, abi.ResultRegisters[0].(target.Register).Name)
		},
		MoveArgToABI: func(abi *target.ABI, index int, src target.Register) string {
			if index < len(abi.ParamRegisters) {
				return fmt.Sprintf("mov%s %s, %s", w, src.Name, abi.ParamRegisters[index].(target.Register).Name)
			}
			return fmt.Sprintf("push%s %s", w, src.Name)
		},
		CondSelect: func(cond, dst, whenTrue, whenFalse target.Register) ([]string, bool) {
			if dst.Name == whenTrue.Name {
				return []string{
					fmt.Sprintf("test%s %s, %s", w, cond.Name, cond.Name),
					fmt.Sprintf("cmovz%s %s, %s", w, whenFalse.Name, dst.Name),
				}, true
			}
			return []string{
				fmt.Sprintf("test%s %s, %s", w, cond.Name, cond.Name),
				fmt.Sprintf("mov%s %s, %s", w, whenFalse.Name, dst.Name),
				fmt.Sprintf("cmovnz%s %s, %s", w, whenTrue.Name, dst.Name),
			}, true
		},
	}
}

func regWidthSuffix(arch *target.Arch) string {
	if arch.ID == target.X86_64 {
		return "q"
	}
	return "l"
}

func sizeSuffix(size int) string {
	switch size {
	case 1:
		return "b"
	case 2:
		return "w"
	case 4:
		return "l"
	default:
		return "q"
	}
}

// immediate recognizes the fake "$N"-named scratch register
// backend.Engine synthesizes for a shift/multiply-by-constant index
// scale; every other operand is a real machine register.
func immediate(r target.Register) (int64, bool) {
	if len(r.Name) == 0 || r.Name[0] != '$' {
		return 0, false
	}
	var n int64
	_, err := fmt.Sscanf(r.Name, "$%d", &n)
	return n, err == nil
}

func binOp(w string) func(ir.Opcode, target.Register, target.Register, target.Register) (string, bool) {
	return func(op ir.Opcode, dst, lhs, rhs target.Register) (string, bool) {
		if n, ok := immediate(rhs); ok {
			switch op {
			case ir.OpShl:
				return fmt.Sprintf("shl%s $%d, %s", w, n, dst.Name), true
			case ir.OpLShr:
				return fmt.Sprintf("shr%s $%d, %s", w, n, dst.Name), true
			case ir.OpAShr:
				return fmt.Sprintf("sar%s $%d, %s", w, n, dst.Name), true
			case ir.OpMul:
				return fmt.Sprintf("imul%s $%d, %s, %s", w, n, lhs.Name, dst.Name), true
			case ir.OpAdd:
				return fmt.Sprintf("add%s $%d, %s", w, n, dst.Name), true
			}
		}

		// idiv/div take only the divisor as an explicit operand: the
		// dividend is the implicit edx:eax (rdx:rax) pair, and Engine
		// always loads operand 0 into scratch register 0 (eax/rax) and
		// operand 1 into scratch register 1 (ecx/rcx) before calling
		// BinOp, so dst/lhs here is already eax/rax and rhs is the
		// divisor. Quotient lands in eax/rax, remainder in edx/rdx; the
		// rem forms copy the remainder into dst so the caller's single
		// store from dst picks up the right half of the pair either way.
		switch op {
		case ir.OpSDiv, ir.OpSRem:
			sext := "cltd"
			if w == "q" {
				sext = "cqto"
			}
			line := fmt.Sprintf("%s\n\tidiv%s %s", sext, w, rhs.Name)
			if op == ir.OpSRem {
				line += fmt.Sprintf("\n\tmov%s %s, %s", w, edxName(w), dst.Name)
			}
			return line, true
		case ir.OpUDiv, ir.OpURem:
			line := fmt.Sprintf("xor%s %s, %s\n\tdiv%s %s", w, edxName(w), edxName(w), w, rhs.Name)
			if op == ir.OpURem {
				line += fmt.Sprintf("\n\tmov%s %s, %s", w, edxName(w), dst.Name)
			}
			return line, true
		}

		mnem, ok := map[ir.Opcode]string{
			ir.OpAdd:  "add" + w,
			ir.OpSub:  "sub" + w,
			ir.OpMul:  "imul" + w,
			ir.OpAnd:  "and" + w,
			ir.OpOr:   "or" + w,
			ir.OpXor:  "xor" + w,
			ir.OpShl:  "shl" + w,
			ir.OpLShr: "shr" + w,
			ir.OpAShr: "sar" + w,
			ir.OpFAdd: "adds" + floatSuffix(w),
			ir.OpFSub: "subs" + floatSuffix(w),
			ir.OpFMul: "muls" + floatSuffix(w),
			ir.OpFDiv: "divs" + floatSuffix(w),
		}[op]
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s %s, %s", mnem, rhs.Name, dst.Name), true
	}
}

// edxName returns the name of the register holding the high half of
// the dividend/remainder pair for idiv/div at width w: edx for 32-bit
// operands, rdx for 64-bit.
func edxName(w string) string {
	if w == "q" {
		return "rdx"
	}
	return "edx"
}

func floatSuffix(w string) string {
	if w == "q" {
		return "d" // scalar double
	}
	return "s" // scalar single
}

func unOp(w string) func(ir.Opcode, target.Register, target.Register) (string, bool) {
	return func(op ir.Opcode, dst, src target.Register) (string, bool) {
		switch op {
		case ir.OpNeg:
			return fmt.Sprintf("neg%s %s", w, dst.Name), true
		case ir.OpNot:
			return fmt.Sprintf("not%s %s", w, dst.Name), true
		case ir.OpFNeg:
			return fmt.Sprintf("xorps %s, %s", dst.Name, dst.Name), true
		case ir.OpFAbs:
			return fmt.Sprintf("andps %s, %s", dst.Name, dst.Name), true
		}
		return "", false
	}
}

func cmp(w string) func(ir.Opcode, target.Register, target.Register, target.Register) (string, bool) {
	setters := map[ir.Opcode]string{
		ir.OpICmpEQ:  "sete",
		ir.OpICmpNE:  "setne",
		ir.OpICmpSLT: "setl",
		ir.OpICmpSLE: "setle",
		ir.OpICmpSGT: "setg",
		ir.OpICmpSGE: "setge",
		ir.OpICmpULT: "setb",
		ir.OpICmpULE: "setbe",
		ir.OpICmpUGT: "seta",
		ir.OpICmpUGE: "setae",
		ir.OpFCmp:    "sete",
	}
	return func(op ir.Opcode, dst, lhs, rhs target.Register) (string, bool) {
		set, ok := setters[op]
		if !ok {
			return "", false
		}
		return fmt.Sprintf("cmp%s %s, %s\n\t%s %s", w, rhs.Name, lhs.Name, set, dst.Name), true
	}
}
