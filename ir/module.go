// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package ir

import (
	"github.com/bencz/anvil/diag"
	"github.com/bencz/anvil/target"
)

// Module is a self-contained translation unit: a set of Functions and
// Globals sharing one Context, one target architecture snapshot (the
// architecture bound on the Context at the time the Module was
// created), and the interned string/constant pool their
// initializers draw from.
type Module struct {
	Name string

	ctx  *Context
	arch *target.ID

	Functions []*Function
	Globals   []*Value

	funcByName   map[string]*Function
	globalByName map[string]*Value
	strings      map[string]*Value

	values idAllocator
}

// NewModule creates an empty Module bound to c's currently selected
// architecture. An architecture must already be selected.
func (c *Context) NewModule(name string) (*Module, error) {
	if c.arch == nil {
		return nil, c.fail(diag.New(diag.NoBackend, "cannot create a module before an architecture is selected"))
	}

	id := c.arch.ID
	m := &Module{
		Name:         name,
		ctx:          c,
		arch:         &id,
		funcByName:   make(map[string]*Function),
		globalByName: make(map[string]*Value),
		strings:      make(map[string]*Value),
	}
	c.modules = append(c.modules, m)
	return m, nil
}

// Context returns the Module's owning Context.
func (m *Module) Context() *Context { return m.ctx }

// Architecture returns the target architecture the Module was created
// against.
func (m *Module) Architecture() target.ID { return *m.arch }

func (m *Module) nextValueID() int64 { return m.values.next() }

// NewFunction declares a Function named name with signature sig and
// appends it to the Module. Returns diag.InvalidArgument if the name
// is already taken.
func (m *Module) NewFunction(name string, sig *FuncType, linkage Linkage) (*Function, error) {
	if _, exists := m.funcByName[name]; exists {
		return nil, m.ctx.fail(diag.New(diag.InvalidArgument, "function %q already declared in this module", name))
	}

	f := &Function{
		Name:    name,
		Type:    sig,
		Linkage: linkage,
		module:  m,
		CC:      CallingConvention{Name: "default", ABI: m.ctx.abi},
	}

	f.Params = make([]*Value, len(sig.Params))
	for i, pt := range sig.Params {
		f.Params[i] = &Value{
			ID:         ValueID(m.nextValueID()),
			Kind:       ParameterValue,
			Type:       pt,
			ParamIndex: i,
			ParamOf:    f,
		}
	}

	m.Functions = append(m.Functions, f)
	m.funcByName[name] = f
	return f, nil
}

// Function looks up a previously declared Function by name.
func (m *Module) Function(name string) *Function { return m.funcByName[name] }

// NewGlobal declares a global variable of type t, optionally with an
// initializer constant Value (nil for a zero-initialized or external
// global).
func (m *Module) NewGlobal(name string, t Type, linkage Linkage, init *Value) (*Value, error) {
	if _, exists := m.globalByName[name]; exists {
		return nil, m.ctx.fail(diag.New(diag.InvalidArgument, "global %q already declared in this module", name))
	}
	if init != nil && !init.IsConstant() {
		return nil, m.ctx.fail(diag.New(diag.InvalidArgument, "global %q initializer must be a constant value", name))
	}

	pt, err := m.ctx.PointerType(t)
	if err != nil {
		return nil, err
	}

	g := &Value{
		ID:          ValueID(m.nextValueID()),
		Kind:        GlobalValue,
		Type:        pt,
		Name:        name,
		Initializer: init,
		GlobalLink:  linkage,
	}
	m.Globals = append(m.Globals, g)
	m.globalByName[name] = g
	return g, nil
}

// Global looks up a previously declared global by name.
func (m *Module) Global(name string) *Value { return m.globalByName[name] }

// ConstString interns a string literal constant. Equal byte contents
// always return the same Value, so repeated literals share a single
// backing global once lowered.
func (m *Module) ConstString(s string) *Value {
	if v, ok := m.strings[s]; ok {
		return v
	}
	t, _ := m.ctx.IntType(8, false)
	arr, _ := m.ctx.ArrayType(t, len(s))
	v := &Value{
		ID:     ValueID(m.nextValueID()),
		Kind:   ConstString,
		Type:   arr,
		StrVal: s,
	}
	m.strings[s] = v
	return v
}

// ConstInt returns a constant integer Value of type t holding val,
// truncated to t's width.
func (m *Module) ConstInt(t Type, val uint64) *Value {
	it, ok := t.(*IntType)
	width := uint(64)
	if ok {
		width = uint(it.Width)
	}
	if width < 64 {
		val &= (uint64(1) << width) - 1
	}
	return &Value{ID: ValueID(m.nextValueID()), Kind: ConstInt, Type: t, IntVal: val}
}

// ConstFloat returns a constant floating-point Value of type t.
func (m *Module) ConstFloat(t Type, val float64) *Value {
	return &Value{ID: ValueID(m.nextValueID()), Kind: ConstFloat, Type: t, FloatVal: val}
}

// ConstNull returns the null pointer constant of pointer type t.
func (m *Module) ConstNull(t Type) *Value {
	return &Value{ID: ValueID(m.nextValueID()), Kind: ConstNull, Type: t}
}

// ConstArray returns a constant array Value of type t with the given
// element constants.
func (m *Module) ConstArray(t Type, elems []*Value) *Value {
	return &Value{ID: ValueID(m.nextValueID()), Kind: ConstArray, Type: t, Elems: append([]*Value(nil), elems...)}
}

func (m *Module) release() {
	for _, f := range m.Functions {
		f.release()
	}
	m.Functions = nil
	m.Globals = nil
	m.funcByName = nil
	m.globalByName = nil
	m.strings = nil
}
