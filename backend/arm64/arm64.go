// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package arm64 lowers ANVIL IR to GNU-assembler-syntax text for the
// AArch64/AAPCS64 architecture, sharing backend.Engine's driver with
// the x86 and power families.
package arm64

import (
	"fmt"

	"github.com/bencz/anvil/backend"
	"github.com/bencz/anvil/ir"
	"github.com/bencz/anvil/target"
)

func init() {
	backend.Register(target.ARM64, newLowerer)
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
	sp := arch.StackPointer.(target.Register)
	fp := arch.FramePointer.(target.Register)
	lr := arch.LinkRegister.(target.Register)

	return backend.Syntax{
		Comment:   "//",
		GlobalDir: ".globl",
		TextDir:   ".text",
		DataDir:   ".data",

		Move: func(dst, src target.Register) string {
			return fmt.Sprintf("mov %s, %s", dst.Name, src.Name)
		},
		LoadImm: func(dst target.Register, bits uint64) string {
			return fmt.Sprintf("mov %s, #%d", dst.Name, int64(bits))
		},
		FrameAddr: func(dst, base target.Register, offset int) string {
			return fmt.Sprintf("add %s, %s, #%d", dst.Name, base.Name, offset)
		},
		Load: func(dst, base target.Register, offset, size int) string {
			return fmt.Sprintf("%s %s, [%s, #%d]", loadMnemonic(size), dst.Name, base.Name, offset)
		},
		Store: func(base target.Register, offset int, src target.Register, size int) string {
			return fmt.Sprintf("%s %s, [%s, #%d]", storeMnemonic(size), src.Name, base.Name, offset)
		},
		BinOp: binOp,
		UnOp:  unOp,
		Cmp:   cmp,
		Jump:  func(label string) string { return "b " + label },
		JumpIfZero: func(cond target.Register, label string) string {
			return fmt.Sprintf("cbz %s, %s", cond.Name, label)
		},
		Call: func(label string) string { return "bl " + label },
		Prologue: func(frameSize int) []string {
			return []string{
				fmt.Sprintf("stp %s, %s, [%s, #-%d]!", fp.Name, lr.Name, sp.Name, frameSize),
				fmt.Sprintf("mov %s, %s", fp.Name, sp.Name),
			}
		},
		Epilogue: func(frameSize int) []string {
			return []string{
				fmt.Sprintf("ldp %s, %s, [%s], #%d", fp.Name, lr.Name, sp.Name, frameSize),
				"ret",
			}
		},
		MoveResultFromABI: func(dst target.Register, abi *target.ABI) string {
			return fmt.Sprintf("mov %s, %s", dst.Name, abi.ResultRegisters[0].(target.Register).Name)
		},
		MoveResultToABI: func(abi *target.ABI, src target.Register) string {
			return fmt.Sprintf("mov %s, %s", abi.ResultRegisters[0].(target.Register).Name, src.Name)
		},
		MoveArgToABI: func(abi *target.ABI, index int, src target.Register) string {
			if index < len(abi.ParamRegisters) {
				return fmt.Sprintf("mov %s, %s", abi.ParamRegisters[index].(target.Register).Name, src.Name)
			}
			return fmt.Sprintf("str %s, [%s, #%d]", src.Name, sp.Name, index*8)
		},
		CondSelect: func(cond, dst, whenTrue, whenFalse target.Register) ([]string, bool) {
			return []string{
				fmt.Sprintf("cmp %s, #0", cond.Name),
				fmt.Sprintf("csel %s, %s, %s, ne", dst.Name, whenTrue.Name, whenFalse.Name),
			}, true
		},
	}
}

func loadMnemonic(size int) string {
	switch size {
	case 1:
		return "ldrb"
	case 2:
		return "ldrh"
	case 4:
		return "ldr"
	default:
		return "ldr"
	}
}

func storeMnemonic(size int) string {
	switch size {
	case 1:
		return "strb"
	case 2:
		return "strh"
	default:
		return "str"
	}
}

func immediate(r target.Register) (int64, bool) {
	if len(r.Name) == 0 || r.Name[0] != '$' {
		return 0, false
	}
	var n int64
	_, err := fmt.Sscanf(r.Name, "$%d", &n)
	return n, err == nil
}

func binOp(op ir.Opcode, dst, lhs, rhs target.Register) (string, bool) {
	if n, ok := immediate(rhs); ok {
		switch op {
		case ir.OpShl:
			return fmt.Sprintf("lsl %s, %s, #%d", dst.Name, lhs.Name, n), true
		case ir.OpLShr:
			return fmt.Sprintf("lsr %s, %s, #%d", dst.Name, lhs.Name, n), true
		case ir.OpAShr:
			return fmt.Sprintf("asr %s, %s, #%d", dst.Name, lhs.Name, n), true
		case ir.OpMul:
			return fmt.Sprintf("mov x9, #%d\n\tmul %s, %s, x9", n, dst.Name, lhs.Name), true
		case ir.OpAdd:
			return fmt.Sprintf("add %s, %s, #%d", dst.Name, lhs.Name, n), true
		}
	}

	mnem, ok := map[ir.Opcode]string{
		ir.OpAdd:  "add",
		ir.OpSub:  "sub",
		ir.OpMul:  "mul",
		ir.OpSDiv: "sdiv",
		ir.OpUDiv: "udiv",
		ir.OpAnd:  "and",
		ir.OpOr:   "orr",
		ir.OpXor:  "eor",
		ir.OpShl:  "lsl",
		ir.OpLShr: "lsr",
		ir.OpAShr: "asr",
		ir.OpFAdd: "fadd",
		ir.OpFSub: "fsub",
		ir.OpFMul: "fmul",
		ir.OpFDiv: "fdiv",
	}[op]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s %s, %s, %s", mnem, dst.Name, lhs.Name, rhs.Name), true
}

func unOp(op ir.Opcode, dst, src target.Register) (string, bool) {
	switch op {
	case ir.OpNeg:
		return fmt.Sprintf("neg %s, %s", dst.Name, src.Name), true
	case ir.OpNot:
		return fmt.Sprintf("mvn %s, %s", dst.Name, src.Name), true
	case ir.OpFNeg:
		return fmt.Sprintf("fneg %s, %s", dst.Name, src.Name), true
	case ir.OpFAbs:
		return fmt.Sprintf("fabs %s, %s", dst.Name, src.Name), true
	}
	return "", false
}

func cmp(op ir.Opcode, dst, lhs, rhs target.Register) (string, bool) {
	conds := map[ir.Opcode]string{
		ir.OpICmpEQ:  "eq",
		ir.OpICmpNE:  "ne",
		ir.OpICmpSLT: "lt",
		ir.OpICmpSLE: "le",
		ir.OpICmpSGT: "gt",
		ir.OpICmpSGE: "ge",
		ir.OpICmpULT: "lo",
		ir.OpICmpULE: "ls",
		ir.OpICmpUGT: "hi",
		ir.OpICmpUGE: "hs",
		ir.OpFCmp:    "eq",
	}
	cond, ok := conds[op]
	if !ok {
		return "", false
	}
	compare := "cmp"
	if op == ir.OpFCmp {
		compare = "fcmp"
	}
	return fmt.Sprintf("%s %s, %s\n\tcset %s, %s", compare, lhs.Name, rhs.Name, dst.Name, cond), true
}
