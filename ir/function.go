// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package ir

import (
	"fmt"

	"github.com/bencz/anvil/target"
)

// CallingConvention tags a Function with the ABI variant its call
// sequence and prologue/epilogue must follow. Most functions simply
// inherit the Context's active ABI; this tag lets a Module mix
// conventions, for example when binding to a system call gate that
// uses a narrower register set than the platform's ordinary ABI.
type CallingConvention struct {
	Name string
	ABI  *target.ABI
}

// Function is a named sequence of Blocks beginning at Entry, plus its
// signature, parameter Values, linkage, and calling convention. A
// Function with no Blocks and Declaration set true is an external
// declaration: callable, but with no body to lower.
type Function struct {
	ID     int64
	Name   string
	Type   *FuncType
	Linkage
	CC CallingConvention

	Params []*Value
	Blocks []*Block
	Entry  *Block

	Declaration bool

	module *Module

	nextBlockID int64
}

// NewBlock creates and appends a new Block to f, named label (or an
// automatic name if label is empty). The first Block created becomes
// f.Entry.
func (f *Function) NewBlock(label string) *Block {
	f.nextBlockID++
	if label == "" {
		label = fmt.Sprintf("bb%d", f.nextBlockID)
	}

	b := &Block{ID: f.nextBlockID, Label: label, Func: f}
	f.Blocks = append(f.Blocks, b)
	if f.Entry == nil {
		f.Entry = b
	}
	return b
}

// Param returns the Value standing for the i'th parameter.
func (f *Function) Param(i int) *Value { return f.Params[i] }

// IsDeclaration reports whether f has no body.
func (f *Function) IsDeclaration() bool { return f.Declaration || len(f.Blocks) == 0 }

func (f *Function) release() {
	for _, b := range f.Blocks {
		b.release()
	}
	f.Blocks = nil
	f.Entry = nil
	f.Params = nil
}
