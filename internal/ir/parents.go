package ir

import "sync"

// ParentIndex maps each declaration to its lexical parent. It is built once
// per unit and read during extraction.
type ParentIndex struct {
	mu      sync.RWMutex
	parents map[Declaration]DeclarationParent
}

// NewParentIndex returns an empty index.
func NewParentIndex() *ParentIndex {
	return &ParentIndex{parents: make(map[Declaration]DeclarationParent)}
}

// Set records p as the parent of d.
func (x *ParentIndex) Set(d Declaration, p DeclarationParent) {
	x.mu.Lock()
	x.parents[d] = p
	x.mu.Unlock()
}

// Parent returns the parent of d, or nil when d is unknown.
func (x *ParentIndex) Parent(d Declaration) DeclarationParent {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.parents[d]
}

// Len returns the number of indexed declarations.
func (x *ParentIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.parents)
}

// IndexFile records the parents of every declaration reachable from f,
// including local classes, local functions and lambda bodies.
func (x *ParentIndex) IndexFile(f *File) {
	for _, d := range f.Declarations {
		x.indexDecl(d, f)
	}
}

// IndexPackage records the parents of an external package's declarations.
func (x *ParentIndex) IndexPackage(p *Package) {
	for _, d := range p.Declarations {
		x.indexDecl(d, p)
	}
}

func (x *ParentIndex) indexDecl(d Declaration, parent DeclarationParent) {
	x.Set(d, parent)
	switch d := d.(type) {
	case *Class:
		if d.ThisReceiver != nil {
			x.Set(d.ThisReceiver, d)
		}
		for _, tp := range d.TypeParameters {
			x.Set(tp, d)
		}
		for _, m := range d.Declarations {
			x.indexDecl(m, d)
		}
	case *Function:
		x.indexFunction(d)
	case *Property:
		for _, acc := range []*Function{d.Getter, d.Setter} {
			if acc != nil {
				x.indexDecl(acc, parent)
			}
		}
		if d.BackingField != nil {
			x.indexDecl(d.BackingField, parent)
		}
	case *Field:
		x.indexExpr(d.Initializer, parent)
	case *EnumEntry:
		x.indexExpr(d.Initializer, parent)
	case *AnonymousInitializer:
		if d.Body != nil {
			x.indexExpr(d.Body, parent)
		}
	case *TypeAlias:
		for _, tp := range d.TypeParameters {
			x.Set(tp, parent)
		}
	}
}

func (x *ParentIndex) indexFunction(f *Function) {
	for _, tp := range f.TypeParameters {
		x.Set(tp, f)
	}
	for _, p := range f.receiversAndParams() {
		x.Set(p, f)
	}
	switch b := f.Body.(type) {
	case *BlockBody:
		for _, s := range b.Statements {
			x.indexStmt(s, f)
		}
	case *ExpressionBody:
		x.indexExpr(b.Expression, f)
	}
}

func (f *Function) receiversAndParams() []*ValueParameter {
	var out []*ValueParameter
	if f.DispatchReceiver != nil {
		out = append(out, f.DispatchReceiver)
	}
	if f.ExtensionReceiver != nil {
		out = append(out, f.ExtensionReceiver)
	}
	return append(out, f.ValueParameters...)
}

func (x *ParentIndex) indexStmt(s Statement, parent DeclarationParent) {
	switch s := s.(type) {
	case *Class:
		x.indexDecl(s, parent)
	case *Function:
		x.indexDecl(s, parent)
	case *Variable:
		x.Set(s, parent)
		x.indexExpr(s.Initializer, parent)
	case *LocalDelegatedProperty:
		x.Set(s, parent)
	case Expression:
		x.indexExpr(s, parent)
	}
}

func (x *ParentIndex) indexExpr(e Expression, parent DeclarationParent) {
	if e == nil {
		return
	}
	if fe, ok := e.(*FunctionExpression); ok && fe.Function != nil {
		x.indexDecl(fe.Function, parent)
		return
	}
	for _, c := range Children(e) {
		x.indexStmt(c, parent)
	}
}

// Children returns the direct sub-statements of e in evaluation order. Nil
// slots such as absent receivers are omitted. A FunctionExpression has no
// children here; its body belongs to the literal's function.
func Children(e Expression) []Statement {
	var out []Statement
	add := func(es ...Expression) {
		for _, c := range es {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	switch e := e.(type) {
	case *Block:
		out = append(out, e.Statements...)
	case *Call:
		add(e.DispatchReceiver, e.ExtensionReceiver)
		add(e.Args...)
	case *ConstructorCall:
		add(e.DispatchReceiver)
		add(e.Args...)
	case *DelegatingConstructorCall:
		add(e.DispatchReceiver)
		add(e.Args...)
	case *SetValue:
		add(e.Value)
	case *GetField:
		add(e.Receiver)
	case *SetField:
		add(e.Receiver, e.Value)
	case *Return:
		add(e.Value)
	case *Throw:
		add(e.Value)
	case *StringConcatenation:
		add(e.Args...)
	case *WhileLoop:
		add(e.Condition, e.Body)
	case *DoWhileLoop:
		add(e.Body, e.Condition)
	case *Try:
		add(e.TryResult)
		for _, c := range e.Catches {
			if c.Parameter != nil {
				out = append(out, c.Parameter)
			}
			add(c.Result)
		}
		add(e.Finally)
	case *When:
		for _, b := range e.Branches {
			add(b.Condition, b.Result)
		}
	case *TypeOperatorCall:
		add(e.Argument)
	case *GetClass:
		add(e.Argument)
	case *FunctionReference:
		add(e.DispatchReceiver, e.ExtensionReceiver)
	case *Vararg:
		add(e.Elements...)
	case *Spread:
		add(e.Expression)
	}
	return out
}
