// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package ir

import (
	"fmt"
	"math"
)

// ValueID uniquely identifies a Value within its owning Module.
type ValueID int64

// idAllocator returns monotonically increasing, strictly positive
// identifiers, panicking if the supply is ever exhausted.
type idAllocator struct{ last int64 }

func (a *idAllocator) next() int64 {
	if a.last == math.MaxInt64 {
		panic("ir: identifier supply exhausted")
	}
	a.last++
	return a.last
}

// ValueKind discriminates the variant of a Value.
type ValueKind int

const (
	ConstInt ValueKind = iota
	ConstFloat
	ConstNull
	ConstString
	ConstArray
	GlobalValue
	FunctionValue
	ParameterValue
	InstructionResult
)

var valueKindNames = [...]string{
	ConstInt:           "const-int",
	ConstFloat:         "const-float",
	ConstNull:          "const-null",
	ConstString:        "const-string",
	ConstArray:         "const-array",
	GlobalValue:        "global",
	FunctionValue:      "function",
	ParameterValue:     "parameter",
	InstructionResult:  "instruction-result",
}

func (k ValueKind) String() string {
	if int(k) < 0 || int(k) >= len(valueKindNames) {
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
	return valueKindNames[k]
}

// Linkage describes the external visibility of a Function or Global.
type Linkage int

const (
	Internal Linkage = iota
	External
)

func (l Linkage) String() string {
	if l == External {
		return "external"
	}
	return "internal"
}

// Value is the uniform handle passed between builder operations: a
// kind, a type, an optional name, and a unique id, plus whichever of
// the kind-specific fields below apply. A Value's Type and ID, once
// assigned, never change.
type Value struct {
	ID   ValueID
	Kind ValueKind
	Type Type
	Name string

	// ConstInt: the bit pattern, reinterpreted per Type.Signed.
	IntVal uint64

	// ConstFloat.
	FloatVal float64

	// ConstString.
	StrVal string

	// ConstArray.
	Elems []*Value

	// GlobalValue.
	Initializer *Value
	GlobalLink  Linkage

	// FunctionValue: the Function this handle stands in for when
	// used as a call target operand.
	Func *Function

	// ParameterValue.
	ParamIndex int
	ParamOf    *Function

	// InstructionResult: the producing Instruction, kept in sync
	// by the ir package so it always matches the invariant that a
	// result Value's producer back-link names the Instruction
	// that created it.
	Producer *Instruction

	// IsBoolean marks a comparison result so downstream lowering
	// can skip a redundant zero-compare.
	IsBoolean bool
}

func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}

	switch v.Kind {
	case ConstInt:
		return fmt.Sprintf("%d", int64(v.IntVal))
	case ConstFloat:
		return fmt.Sprintf("%g", v.FloatVal)
	case ConstNull:
		return "null"
	case ConstString:
		return fmt.Sprintf("%q", v.StrVal)
	case ConstArray:
		return fmt.Sprintf("[%d x %s]", len(v.Elems), v.Type)
	case GlobalValue, FunctionValue:
		return "@" + v.Name
	case ParameterValue:
		if v.Name != "" {
			return "%" + v.Name
		}
		return fmt.Sprintf("%%arg%d", v.ParamIndex)
	default:
		if v.Name != "" {
			return "%" + v.Name
		}
		return fmt.Sprintf("%%v%d", v.ID)
	}
}

// IsConstant reports whether v is one of the Const* kinds.
func (v *Value) IsConstant() bool {
	switch v.Kind {
	case ConstInt, ConstFloat, ConstNull, ConstString, ConstArray:
		return true
	default:
		return false
	}
}
