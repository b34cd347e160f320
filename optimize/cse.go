// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package optimize

import (
	"fmt"
	"strings"

	"github.com/bencz/anvil/ir"
)

// CSE detects structurally identical pure subexpressions within a
// straight-line sequence and replaces the later occurrence's uses
// with the earlier one's result. The table is invalidated at calls,
// branches, and stores, matching the conservative aliasing rule the
// memory passes use.
type CSE struct{}

func (*CSE) Name() string          { return "cse" }
func (*CSE) MinLevel() ir.OptLevel { return ir.OptStandard }

func (p *CSE) Run(ctx *ir.Context, fn *ir.Function) (bool, error) {
	changed := false

	for _, b := range fn.Blocks {
		seen := map[string]*ir.Value{}
		var redundant []*ir.Instruction

		for _, ins := range b.Instructions {
			if ins.Opcode.IsTerminator() || ins.Opcode == ir.OpCall || ins.Opcode == ir.OpStore || ins.Opcode == ir.OpLoad || ins.Opcode == ir.OpAlloca {
				seen = map[string]*ir.Value{}
				continue
			}
			if ins.Result == nil {
				continue
			}

			key := cseKey(ins)
			if prior, ok := seen[key]; ok {
				replaceUses(fn, ins.Result, prior)
				redundant = append(redundant, ins)
				continue
			}
			seen[key] = ins.Result
		}

		for _, ins := range redundant {
			removeInstruction(b, ins)
			changed = true
		}
	}

	return changed, nil
}

func cseKey(ins *ir.Instruction) string {
	operands := make([]string, len(ins.Operands))
	for i, op := range ins.Operands {
		operands[i] = valueKey(op)
	}
	if ins.Opcode.IsCommutative() && len(operands) == 2 && operands[0] > operands[1] {
		operands[0], operands[1] = operands[1], operands[0]
	}

	var b strings.Builder
	b.WriteString(ins.Opcode.String())
	b.WriteString(ins.Result.Type.String())
	for _, o := range operands {
		b.WriteByte('|')
		b.WriteString(o)
	}
	return b.String()
}

// valueKey returns a string identifying v for CSE key purposes:
// constants compare by value, everything else by identity.
func valueKey(v *ir.Value) string {
	switch v.Kind {
	case ir.ConstInt:
		return fmt.Sprintf("ci:%s:%d", v.Type, v.IntVal)
	case ir.ConstFloat:
		return fmt.Sprintf("cf:%s:%g", v.Type, v.FloatVal)
	case ir.ConstNull:
		return fmt.Sprintf("cn:%s", v.Type)
	default:
		return fmt.Sprintf("id:%p", v)
	}
}
