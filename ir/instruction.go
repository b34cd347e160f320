// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package ir

import "fmt"

// Opcode identifies the operation an Instruction performs. The set
// mirrors the operations described for the builder: integer and
// floating-point arithmetic, bitwise and shift operators, integer and
// floating-point comparisons, the conversion family, memory
// operations, control flow, and the phi/select pair.
type Opcode int

const (
	OpInvalid Opcode = iota

	// Integer arithmetic.
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpNeg

	// Bitwise.
	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpLShr
	OpAShr

	// Integer comparisons.
	OpICmpEQ
	OpICmpNE
	OpICmpSLT
	OpICmpSLE
	OpICmpSGT
	OpICmpSGE
	OpICmpULT
	OpICmpULE
	OpICmpUGT
	OpICmpUGE

	// Floating-point arithmetic.
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFNeg
	OpFAbs
	OpFCmp

	// Conversions.
	OpTrunc
	OpZExt
	OpSExt
	OpBitcast
	OpPtrToInt
	OpIntToPtr
	OpFPExt
	OpFPTrunc
	OpSIToFP
	OpUIToFP
	OpFPToSI
	OpFPToUI

	// Memory.
	OpAlloca
	OpLoad
	OpStore
	OpGEP
	OpStructGEP

	// Control flow.
	OpBr
	OpBrCond
	OpRet
	OpCall

	// Miscellaneous.
	OpPhi
	OpSelect

	numOpcodes
)

var opcodeNames = [...]string{
	OpInvalid:   "invalid",
	OpAdd:       "add",
	OpSub:       "sub",
	OpMul:       "mul",
	OpSDiv:      "sdiv",
	OpUDiv:      "udiv",
	OpSRem:      "srem",
	OpURem:      "urem",
	OpNeg:       "neg",
	OpAnd:       "and",
	OpOr:        "or",
	OpXor:       "xor",
	OpNot:       "not",
	OpShl:       "shl",
	OpLShr:      "lshr",
	OpAShr:      "ashr",
	OpICmpEQ:    "icmp.eq",
	OpICmpNE:    "icmp.ne",
	OpICmpSLT:   "icmp.slt",
	OpICmpSLE:   "icmp.sle",
	OpICmpSGT:   "icmp.sgt",
	OpICmpSGE:   "icmp.sge",
	OpICmpULT:   "icmp.ult",
	OpICmpULE:   "icmp.ule",
	OpICmpUGT:   "icmp.ugt",
	OpICmpUGE:   "icmp.uge",
	OpFAdd:      "fadd",
	OpFSub:      "fsub",
	OpFMul:      "fmul",
	OpFDiv:      "fdiv",
	OpFNeg:      "fneg",
	OpFAbs:      "fabs",
	OpFCmp:      "fcmp",
	OpTrunc:     "trunc",
	OpZExt:      "zext",
	OpSExt:      "sext",
	OpBitcast:   "bitcast",
	OpPtrToInt:  "ptrtoint",
	OpIntToPtr:  "inttoptr",
	OpFPExt:     "fpext",
	OpFPTrunc:   "fptrunc",
	OpSIToFP:    "sitofp",
	OpUIToFP:    "uitofp",
	OpFPToSI:    "fptosi",
	OpFPToUI:    "fptoui",
	OpAlloca:    "alloca",
	OpLoad:      "load",
	OpStore:     "store",
	OpGEP:       "gep",
	OpStructGEP: "struct_gep",
	OpBr:        "br",
	OpBrCond:    "br_cond",
	OpRet:       "ret",
	OpCall:      "call",
	OpPhi:       "phi",
	OpSelect:    "select",
}

func (op Opcode) String() string {
	if int(op) < 0 || int(op) >= len(opcodeNames) || opcodeNames[op] == "" {
		return fmt.Sprintf("Opcode(%d)", int(op))
	}
	return opcodeNames[op]
}

// OpInfo records the static metadata the optimizer and builder need
// about an opcode, independent of any particular instance of it.
type OpInfo struct {
	Name         string
	NumOperands  int // -1 means variable (call, phi, ret)
	HasResult    bool
	Terminator   bool
	SideEffect   bool // true for store, call, alloca, load and the terminators: never removed by DCE on its own
	Commutative  bool
}

var opInfo = buildOpInfo()

func buildOpInfo() [numOpcodes]OpInfo {
	var t [numOpcodes]OpInfo

	set := func(op Opcode, info OpInfo) {
		info.Name = op.String()
		t[op] = info
	}

	binary := func(op Opcode, commutative bool) {
		set(op, OpInfo{NumOperands: 2, HasResult: true, Commutative: commutative})
	}

	binary(OpAdd, true)
	binary(OpSub, false)
	binary(OpMul, true)
	binary(OpSDiv, false)
	binary(OpUDiv, false)
	binary(OpSRem, false)
	binary(OpURem, false)
	set(OpNeg, OpInfo{NumOperands: 1, HasResult: true})

	binary(OpAnd, true)
	binary(OpOr, true)
	binary(OpXor, true)
	set(OpNot, OpInfo{NumOperands: 1, HasResult: true})
	binary(OpShl, false)
	binary(OpLShr, false)
	binary(OpAShr, false)

	for _, op := range []Opcode{OpICmpEQ, OpICmpNE, OpICmpSLT, OpICmpSLE, OpICmpSGT, OpICmpSGE, OpICmpULT, OpICmpULE, OpICmpUGT, OpICmpUGE} {
		commutative := op == OpICmpEQ || op == OpICmpNE
		binary(op, commutative)
	}

	binary(OpFAdd, true)
	binary(OpFSub, false)
	binary(OpFMul, true)
	binary(OpFDiv, false)
	set(OpFNeg, OpInfo{NumOperands: 1, HasResult: true})
	set(OpFAbs, OpInfo{NumOperands: 1, HasResult: true})
	binary(OpFCmp, false)

	for _, op := range []Opcode{OpTrunc, OpZExt, OpSExt, OpBitcast, OpPtrToInt, OpIntToPtr, OpFPExt, OpFPTrunc, OpSIToFP, OpUIToFP, OpFPToSI, OpFPToUI} {
		set(op, OpInfo{NumOperands: 1, HasResult: true})
	}

	set(OpAlloca, OpInfo{NumOperands: 0, HasResult: true, SideEffect: true})
	set(OpLoad, OpInfo{NumOperands: 1, HasResult: true, SideEffect: true})
	set(OpStore, OpInfo{NumOperands: 2, HasResult: false, SideEffect: true})
	set(OpGEP, OpInfo{NumOperands: 2, HasResult: true})
	set(OpStructGEP, OpInfo{NumOperands: 1, HasResult: true})

	set(OpBr, OpInfo{NumOperands: 0, Terminator: true, SideEffect: true})
	set(OpBrCond, OpInfo{NumOperands: 1, Terminator: true, SideEffect: true})
	set(OpRet, OpInfo{NumOperands: -1, Terminator: true, SideEffect: true})
	set(OpCall, OpInfo{NumOperands: -1, HasResult: true, SideEffect: true})

	set(OpPhi, OpInfo{NumOperands: -1, HasResult: true})
	set(OpSelect, OpInfo{NumOperands: 3, HasResult: true})

	return t
}

// Info returns the static metadata for op.
func (op Opcode) Info() OpInfo {
	if int(op) < 0 || int(op) >= len(opInfo) {
		return OpInfo{Name: op.String()}
	}
	return opInfo[op]
}

// IsTerminator reports whether op ends a Block.
func (op Opcode) IsTerminator() bool { return op.Info().Terminator }

// HasSideEffect reports whether an Instruction with this opcode must
// never be removed purely because its result is unused.
func (op Opcode) HasSideEffect() bool { return op.Info().SideEffect }

// IsCommutative reports whether swapping op's two operands yields an
// equivalent result, consulted by CSE when it canonicalizes operand
// order before matching.
func (op Opcode) IsCommutative() bool { return op.Info().Commutative }

// Instruction is one operation within a Block: an opcode, its operand
// Values, an optional result Value, and (for br/br_cond) the target
// Blocks. Phi incoming edges are recorded in parallel slices keyed by
// predecessor Block.
type Instruction struct {
	ID     int64
	Opcode Opcode
	Block  *Block

	Operands []*Value
	Result   *Value

	// Control-flow targets: OpBr uses Targets[0]; OpBrCond uses
	// Targets[0] (true) and Targets[1] (false).
	Targets []*Block

	// OpPhi incoming values, one per predecessor listed in
	// Incoming, aligned by index with Operands.
	Incoming []*Block

	// OpStructGEP: the field index (backends take its byte offset
	// from the struct type's FieldOffset). OpGEP / OpStructGEP: the
	// pointee type the result points into.
	Index     int
	FieldType Type

	// OpCall: the callee, either a direct FunctionValue Value or an
	// indirect pointer-to-function Value, kept in Operands[0].
	CalleeType *FuncType

	// OpAlloca: the type of the object being allocated (Result's
	// type is always a pointer to it).
	AllocType Type

	// AddrMode is set by the gep-fold peephole on an OpLoad/OpStore
	// whose address operand's producing gep/struct_gep was folded
	// into it: the referenced instruction is no longer present in
	// its block, but its Operands/Index/FieldType still describe the
	// address computation backends may fuse into their own
	// addressing mode.
	AddrMode *Instruction

	// JumpTableCandidate marks the first br_cond of an
	// equality-compare chain the jump-table detection pass found;
	// set only at OptAggressive and never changes the chain's
	// lowering unless a backend chooses to consult it.
	JumpTableCandidate bool
}

// newResult allocates a fresh result Value of type t for this
// instruction and records the producer back-link.
func (ins *Instruction) newResult(f *Function, t Type) *Value {
	v := &Value{
		ID:       ValueID(f.module.nextValueID()),
		Kind:     InstructionResult,
		Type:     t,
		Producer: ins,
	}
	ins.Result = v
	return v
}

func (ins *Instruction) String() string {
	if ins.Result != nil {
		return fmt.Sprintf("%s = %s", ins.Result, ins.describe())
	}
	return ins.describe()
}

func (ins *Instruction) describe() string {
	var b []byte
	b = append(b, ins.Opcode.String()...)
	for _, op := range ins.Operands {
		b = append(b, ' ')
		b = append(b, op.String()...)
	}
	for _, tgt := range ins.Targets {
		b = append(b, ' ')
		b = append(b, tgt.Label...)
	}
	return string(b)
}
