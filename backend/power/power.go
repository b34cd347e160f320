// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package power lowers ANVIL IR to GNU-assembler-syntax text for the
// 32- and 64-bit PowerPC architectures, covering both the big-endian
// ELFv1 (TOC-bearing) and little-endian ELFv2 ABI variants through the
// same backend.Engine shared driver the x86 and arm64 families use.
package power

import (
	"fmt"

	"github.com/bencz/anvil/backend"
	"github.com/bencz/anvil/ir"
	"github.com/bencz/anvil/target"
)

func init() {
	backend.Register(target.PPC32, newLowerer)
	backend.Register(target.PPC64_BE, newLowerer)
	backend.Register(target.PPC64_LE, newLowerer)
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

// hasTOC reports whether arch uses the ELFv1 big-endian ABI, the only
// variant in this family that carries a TOC pointer in r2.
func hasTOC(arch *target.Arch) bool {
	return arch.ID == target.PPC64_BE
}

func syntaxFor(arch *target.Arch) backend.Syntax {
	sp := arch.StackPointer.(target.Register)
	fp := arch.FramePointer.(target.Register)
	lr := arch.LinkRegister.(target.Register)

	return backend.Syntax{
		Comment:   "#",
		GlobalDir: ".globl",
		TextDir:   ".text",
		DataDir:   ".data",

		Move: func(dst, src target.Register) string {
			return fmt.Sprintf("mr %s, %s", dst.Name, src.Name)
		},
		LoadImm: func(dst target.Register, bits uint64) string {
			return fmt.Sprintf("li %s, %d", dst.Name, int64(bits))
		},
		FrameAddr: func(dst, base target.Register, offset int) string {
			return fmt.Sprintf("addi %s, %s, %d", dst.Name, base.Name, offset)
		},
		Load: func(dst, base target.Register, offset, size int) string {
			return fmt.Sprintf("%s %s, %d(%s)", loadMnemonic(size), dst.Name, offset, base.Name)
		},
		Store: func(base target.Register, offset int, src target.Register, size int) string {
			return fmt.Sprintf("%s %s, %d(%s)", storeMnemonic(size), src.Name, offset, base.Name)
		},
		BinOp: binOp,
		UnOp:  unOp,
		Cmp:   cmp,
		Jump:  func(label string) string { return "b " + label },
		JumpIfZero: func(cond target.Register, label string) string {
			return fmt.Sprintf("cmpwi %s, 0\n\tbeq %s", cond.Name, label)
		},
		Call: func(label string) string { return "bl " + label },
		Prologue: func(frameSize int) []string {
			lines := []string{
				fmt.Sprintf("mflr %s", lr.Name),
				fmt.Sprintf("stwu %s, -%d(%s)", sp.Name, frameSize, sp.Name),
				fmt.Sprintf("stw %s, %d(%s)", fp.Name, frameSize-4, sp.Name),
				fmt.Sprintf("addi %s, %s, %d", fp.Name, sp.Name, frameSize),
			}
			if hasTOC(arch) {
				lines = append(lines, "std 2, 24(1)")
			}
			return lines
		},
		Epilogue: func(frameSize int) []string {
			return []string{
				fmt.Sprintf("lwz %s, %d(%s)", fp.Name, frameSize-4, sp.Name),
				fmt.Sprintf("addi %s, %s, %d", sp.Name, sp.Name, frameSize),
				fmt.Sprintf("mtlr %s", lr.Name),
				"blr",
			}
		},
		MoveResultFromABI: func(dst target.Register, abi *target.ABI) string {
			return fmt.Sprintf("mr %s, %s", dst.Name, abi.ResultRegisters[0].(target.Register).Name)
		},
		MoveResultToABI: func(abi *target.ABI, src target.Register) string {
			return fmt.Sprintf("mr %s, %s", abi.ResultRegisters[0].(target.Register).Name, src.Name)
		},
		MoveArgToABI: func(abi *target.ABI, index int, src target.Register) string {
			if index < len(abi.ParamRegisters) {
				return fmt.Sprintf("mr %s, %s", abi.ParamRegisters[index].(target.Register).Name, src.Name)
			}
			return fmt.Sprintf("stw %s, %d(%s)", src.Name, index*4, sp.Name)
		},
		CondSelect: func(cond, dst, whenTrue, whenFalse target.Register) ([]string, bool) {
			return []string{
				fmt.Sprintf("cmpwi %s, 0", cond.Name),
				fmt.Sprintf("isel %s, %s, %s, 2", dst.Name, whenFalse.Name, whenTrue.Name),
			}, true
		},
	}
}

func loadMnemonic(size int) string {
	switch size {
	case 1:
		return "lbz"
	case 2:
		return "lhz"
	case 4:
		return "lwz"
	default:
		return "ld"
	}
}

func storeMnemonic(size int) string {
	switch size {
	case 1:
		return "stb"
	case 2:
		return "sth"
	case 4:
		return "stw"
	default:
		return "std"
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
			return fmt.Sprintf("slwi %s, %s, %d", dst.Name, lhs.Name, n), true
		case ir.OpLShr:
			return fmt.Sprintf("srwi %s, %s, %d", dst.Name, lhs.Name, n), true
		case ir.OpAShr:
			return fmt.Sprintf("srawi %s, %s, %d", dst.Name, lhs.Name, n), true
		case ir.OpMul:
			return fmt.Sprintf("mulli %s, %s, %d", dst.Name, lhs.Name, n), true
		case ir.OpAdd:
			return fmt.Sprintf("addi %s, %s, %d", dst.Name, lhs.Name, n), true
		}
	}

	mnem, ok := map[ir.Opcode]string{
		ir.OpAdd:  "add",
		ir.OpSub:  "subf", // subf computes rhs - lhs; operand order handled by caller convention below
		ir.OpMul:  "mullw",
		ir.OpSDiv: "divw",
		ir.OpUDiv: "divwu",
		ir.OpSRem: "modsw", // POWER ISA 3.0 (Power9 and later)
		ir.OpURem: "moduw", // POWER ISA 3.0 (Power9 and later)
		ir.OpAnd:  "and",
		ir.OpOr:   "or",
		ir.OpXor:  "xor",
		ir.OpShl:  "slw",
		ir.OpLShr: "srw",
		ir.OpAShr: "sraw",
		ir.OpFAdd: "fadd",
		ir.OpFSub: "fsub",
		ir.OpFMul: "fmul",
		ir.OpFDiv: "fdiv",
	}[op]
	if !ok {
		return "", false
	}
	if op == ir.OpSub {
		return fmt.Sprintf("subf %s, %s, %s", dst.Name, rhs.Name, lhs.Name), true
	}
	return fmt.Sprintf("%s %s, %s, %s", mnem, dst.Name, lhs.Name, rhs.Name), true
}

func unOp(op ir.Opcode, dst, src target.Register) (string, bool) {
	switch op {
	case ir.OpNeg:
		return fmt.Sprintf("neg %s, %s", dst.Name, src.Name), true
	case ir.OpNot:
		return fmt.Sprintf("nor %s, %s, %s", dst.Name, src.Name, src.Name), true
	case ir.OpFNeg:
		return fmt.Sprintf("fneg %s, %s", dst.Name, src.Name), true
	case ir.OpFAbs:
		return fmt.Sprintf("fabs %s, %s", dst.Name, src.Name), true
	}
	return "", false
}

func cmp(op ir.Opcode, dst, lhs, rhs target.Register) (string, bool) {
	branches := map[ir.Opcode]string{
		ir.OpICmpEQ:  "beq",
		ir.OpICmpNE:  "bne",
		ir.OpICmpSLT: "blt",
		ir.OpICmpSLE: "ble",
		ir.OpICmpSGT: "bgt",
		ir.OpICmpSGE: "bge",
		ir.OpICmpULT: "blt",
		ir.OpICmpULE: "ble",
		ir.OpICmpUGT: "bgt",
		ir.OpICmpUGE: "bge",
		ir.OpFCmp:    "beq",
	}
	br, ok := branches[op]
	if !ok {
		return "", false
	}
	compare := "cmpw"
	switch op {
	case ir.OpICmpULT, ir.OpICmpULE, ir.OpICmpUGT, ir.OpICmpUGE:
		compare = "cmplw"
	case ir.OpFCmp:
		compare = "fcmpu"
	}
	return fmt.Sprintf("%s %s, %s\n\tli %s, 1\n\t%s 1f\n\tli %s, 0\n1:", compare, lhs.Name, rhs.Name, dst.Name, br, dst.Name), true
}
