package ir

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Unit is one decoded front-end output: the files to extract, the external
// packages they reference, and the builtins both resolve against.
type Unit struct {
	Files     []*File
	Externals []*Package
	Builtins  *Builtins
	Parents   *ParentIndex
}

// NewUnit returns an empty unit with fresh builtins.
func NewUnit() *Unit {
	idx := NewParentIndex()
	return &Unit{Builtins: NewBuiltins(idx), Parents: idx}
}

// AddFile appends f and indexes its declarations.
func (u *Unit) AddFile(f *File) {
	u.Files = append(u.Files, f)
	u.Parents.IndexFile(f)
}

// AddExternal appends an external package and indexes its declarations.
func (u *Unit) AddExternal(p *Package) {
	u.Externals = append(u.Externals, p)
	u.Parents.IndexPackage(p)
}

// BuiltinRefPrefix marks a reference to a builtin declaration, as in
// "builtin:kotlin.Int.plus".
const BuiltinRefPrefix = "builtin:"

type rawUnit struct {
	Files     []*rawFile    `json:"files"`
	Externals []*rawPackage `json:"externals"`
}

type rawFile struct {
	Path         string     `json:"path"`
	Package      string     `json:"package"`
	Loc          []int      `json:"loc"`
	Declarations []*rawNode `json:"declarations"`
}

type rawPackage struct {
	Name         string     `json:"name"`
	Facade       string     `json:"facade"`
	Declarations []*rawNode `json:"declarations"`
}

type rawType struct {
	Class    string    `json:"class"`
	Param    string    `json:"param"`
	Args     []*rawArg `json:"args"`
	Nullable bool      `json:"nullable"`
}

type rawArg struct {
	Star     bool     `json:"star"`
	Variance string   `json:"variance"`
	Type     *rawType `json:"type"`
}

// rawNode is the union of every node shape in the input format.
type rawNode struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
	Loc  []int  `json:"loc"`

	// classes
	ClassKind    string     `json:"classKind"`
	Modality     string     `json:"modality"`
	Visibility   string     `json:"visibility"`
	Companion    bool       `json:"companion"`
	Anonymous    bool       `json:"anonymous"`
	Inner        bool       `json:"inner"`
	TypeParams   []*rawNode `json:"typeParameters"`
	SuperTypes   []*rawType `json:"superTypes"`
	Declarations []*rawNode `json:"declarations"`
	ThisReceiver *rawNode   `json:"thisReceiver"`

	// functions and parameters
	Constructor       bool       `json:"constructor"`
	Primary           bool       `json:"primary"`
	Static            bool       `json:"static"`
	Origin            string     `json:"origin"`
	DispatchParam     *rawNode   `json:"dispatchReceiverParameter"`
	ExtensionParam    *rawNode   `json:"extensionReceiverParameter"`
	ValueParams       []*rawNode `json:"valueParameters"`
	ReturnType        *rawType   `json:"returnType"`
	Body              *rawNode   `json:"body"`
	Index             int        `json:"index"`
	VarargElementType *rawType   `json:"varargElementType"`
	Synthetic         string     `json:"synthetic"`

	// properties, fields, variables
	Var          bool     `json:"var"`
	Extension    bool     `json:"extension"`
	Final        bool     `json:"final"`
	Getter       *rawNode `json:"getter"`
	Setter       *rawNode `json:"setter"`
	BackingField *rawNode `json:"backingField"`
	Initializer  *rawNode `json:"initializer"`
	Expanded     *rawType `json:"expanded"`

	// expressions
	Type              *rawType   `json:"type"`
	Statements        []*rawNode `json:"statements"`
	Expression        *rawNode   `json:"expression"`
	Callee            string     `json:"callee"`
	Symbol            string     `json:"symbol"`
	Target            string     `json:"target"`
	DispatchReceiver  *rawNode   `json:"dispatchReceiver"`
	ExtensionReceiver *rawNode   `json:"extensionReceiver"`
	Receiver          *rawNode   `json:"receiver"`
	Args              []*rawNode `json:"args"`
	TypeArgs          []*rawType `json:"typeArgs"`
	Value             *rawNode   `json:"value"`
	ConstKind         string     `json:"constKind"`
	Text              string     `json:"text"`
	Label             string     `json:"label"`
	Loop              string     `json:"loop"`
	Condition         *rawNode   `json:"condition"`
	TryResult         *rawNode   `json:"tryResult"`
	Catches           []*rawNode `json:"catches"`
	Finally           *rawNode   `json:"finally"`
	Parameter         *rawNode   `json:"parameter"`
	Result            *rawNode   `json:"result"`
	Branches          []*rawNode `json:"branches"`
	Else              bool       `json:"else"`
	Operator          string     `json:"operator"`
	Argument          *rawNode   `json:"argument"`
	TypeOperand       *rawType   `json:"typeOperand"`
	ClassType         *rawType   `json:"classType"`
	Function          *rawNode   `json:"function"`
	ElementType       *rawType   `json:"elementType"`
	Elements          []*rawNode `json:"elements"`
}

type decoder struct {
	unit   *Unit
	file   string
	ids    map[string]any
	fixups []func() error
}

// Decode reads a unit in the front-end's JSON format.
func Decode(r io.Reader) (*Unit, error) {
	var raw rawUnit
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding declaration tree: %w", err)
	}
	d := &decoder{unit: NewUnit(), ids: make(map[string]any)}

	var files []*File
	var externals []*Package
	for _, rp := range raw.Externals {
		p := &Package{Name: rp.Name, FacadeName: rp.Facade}
		d.file = ""
		for _, n := range rp.Declarations {
			decl, err := d.decl(n)
			if err != nil {
				return nil, err
			}
			p.Declarations = append(p.Declarations, decl)
		}
		externals = append(externals, p)
	}
	for _, rf := range raw.Files {
		d.file = rf.Path
		f := &File{Path: rf.Path, Package: rf.Package, Location: d.loc(rf.Loc)}
		for _, n := range rf.Declarations {
			decl, err := d.decl(n)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", rf.Path, err)
			}
			f.Declarations = append(f.Declarations, decl)
		}
		files = append(files, f)
	}
	for _, fix := range d.fixups {
		if err := fix(); err != nil {
			return nil, err
		}
	}
	for _, p := range externals {
		d.unit.AddExternal(p)
	}
	for _, f := range files {
		d.unit.AddFile(f)
	}
	return d.unit, nil
}

// DecodeFile reads a unit from path.
func DecodeFile(path string) (*Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	u, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

func (d *decoder) loc(l []int) Location {
	loc := Location{File: d.file}
	if len(l) == 4 {
		loc.StartLine, loc.StartCol, loc.EndLine, loc.EndCol = l[0], l[1], l[2], l[3]
	}
	return loc
}

func (d *decoder) register(id string, v any) error {
	if id == "" {
		return nil
	}
	if _, dup := d.ids[id]; dup {
		return fmt.Errorf("duplicate id %q", id)
	}
	d.ids[id] = v
	return nil
}

func (d *decoder) resolve(ref string) (any, error) {
	if name, ok := strings.CutPrefix(ref, BuiltinRefPrefix); ok {
		return d.unit.Builtins.Lookup(name)
	}
	v, ok := d.ids[ref]
	if !ok {
		return nil, fmt.Errorf("unresolved reference %q", ref)
	}
	return v, nil
}

// later resolves ref once every id is known and passes it to set.
func later[T any](d *decoder, ref string, set func(T)) {
	if ref == "" {
		return
	}
	d.fixups = append(d.fixups, func() error {
		v, err := d.resolve(ref)
		if err != nil {
			return err
		}
		t, ok := v.(T)
		if !ok {
			return fmt.Errorf("reference %q has type %T", ref, v)
		}
		set(t)
		return nil
	})
}

func (d *decoder) typ(r *rawType) *Type {
	if r == nil {
		return nil
	}
	t := &Type{Nullable: r.Nullable}
	switch {
	case r.Class != "":
		later(d, r.Class, func(c *Class) { t.Classifier = c })
	case r.Param != "":
		later(d, r.Param, func(p *TypeParameter) { t.Classifier = p })
	}
	for _, a := range r.Args {
		if a == nil || a.Star {
			t.Args = append(t.Args, &StarProjection{})
			continue
		}
		t.Args = append(t.Args, &TypeProjection{Variance: variance(a.Variance), Type: d.typ(a.Type)})
	}
	return t
}

func (d *decoder) types(rs []*rawType) []*Type {
	var out []*Type
	for _, r := range rs {
		out = append(out, d.typ(r))
	}
	return out
}

func variance(s string) Variance {
	switch s {
	case "in":
		return In
	case "out":
		return Out
	}
	return Invariant
}

func visibility(s string) Visibility {
	switch s {
	case "private":
		return VisibilityPrivate
	case "protected":
		return VisibilityProtected
	case "internal":
		return VisibilityInternal
	case "local":
		return VisibilityLocal
	}
	return VisibilityPublic
}

func modality(s string) Modality {
	switch s {
	case "open":
		return ModalityOpen
	case "abstract":
		return ModalityAbstract
	case "sealed":
		return ModalitySealed
	}
	return ModalityFinal
}

func classKind(s string) ClassKind {
	switch s {
	case "interface":
		return KindInterface
	case "enum":
		return KindEnumClass
	case "enum_entry":
		return KindEnumEntry
	case "object":
		return KindObject
	case "annotation":
		return KindAnnotationClass
	}
	return KindClass
}

func (d *decoder) decl(n *rawNode) (Declaration, error) {
	switch n.Kind {
	case "class":
		return d.class(n)
	case "function":
		return d.function(n)
	case "property":
		return d.property(n)
	case "field":
		return d.field(n)
	case "enum_entry":
		e := &EnumEntry{Name: n.Name, Location: d.loc(n.Loc)}
		if err := d.register(n.ID, e); err != nil {
			return nil, err
		}
		init, err := d.expr(n.Initializer)
		if err != nil {
			return nil, err
		}
		e.Initializer = init
		return e, nil
	case "anonymous_initializer":
		a := &AnonymousInitializer{IsStatic: n.Static, Location: d.loc(n.Loc)}
		if n.Body != nil {
			b, err := d.expr(n.Body)
			if err != nil {
				return nil, err
			}
			blk, ok := b.(*Block)
			if !ok {
				return nil, fmt.Errorf("initializer body is %q, not a block", n.Body.Kind)
			}
			a.Body = blk
		}
		return a, nil
	case "type_alias":
		ta := &TypeAlias{Name: n.Name, Visibility: visibility(n.Visibility), Location: d.loc(n.Loc)}
		if err := d.register(n.ID, ta); err != nil {
			return nil, err
		}
		tps, err := d.typeParams(n.TypeParams)
		if err != nil {
			return nil, err
		}
		ta.TypeParameters = tps
		ta.Expanded = d.typ(n.Expanded)
		return ta, nil
	}
	return nil, fmt.Errorf("unknown declaration kind %q", n.Kind)
}

func (d *decoder) typeParams(ns []*rawNode) ([]*TypeParameter, error) {
	var out []*TypeParameter
	for i, n := range ns {
		tp := &TypeParameter{Name: n.Name, Index: i, Location: d.loc(n.Loc)}
		if err := d.register(n.ID, tp); err != nil {
			return nil, err
		}
		tp.SuperTypes = d.types(n.SuperTypes)
		out = append(out, tp)
	}
	return out, nil
}

func (d *decoder) class(n *rawNode) (*Class, error) {
	c := &Class{
		Name:        n.Name,
		Kind:        classKind(n.ClassKind),
		Modality:    modality(n.Modality),
		Visibility:  visibility(n.Visibility),
		IsCompanion: n.Companion,
		IsAnonymous: n.Anonymous,
		IsInner:     n.Inner,
		Location:    d.loc(n.Loc),
	}
	if err := d.register(n.ID, c); err != nil {
		return nil, err
	}
	tps, err := d.typeParams(n.TypeParams)
	if err != nil {
		return nil, err
	}
	c.TypeParameters = tps
	c.SuperTypes = d.types(n.SuperTypes)
	if n.ThisReceiver != nil {
		if c.ThisReceiver, err = d.param(n.ThisReceiver); err != nil {
			return nil, err
		}
	} else {
		c.ThisReceiver = &ValueParameter{Name: "<this>", Type: thisType(c), Index: -1, Location: c.Location}
	}
	for _, m := range n.Declarations {
		decl, err := d.decl(m)
		if err != nil {
			return nil, err
		}
		c.Declarations = append(c.Declarations, decl)
	}
	return c, nil
}

func (d *decoder) param(n *rawNode) (*ValueParameter, error) {
	p := &ValueParameter{
		Name:              n.Name,
		Type:              d.typ(n.Type),
		Index:             n.Index,
		VarargElementType: d.typ(n.VarargElementType),
		Location:          d.loc(n.Loc),
	}
	return p, d.register(n.ID, p)
}

func (d *decoder) function(n *rawNode) (*Function, error) {
	f := &Function{
		Name:          n.Name,
		IsConstructor: n.Constructor,
		IsPrimary:     n.Primary,
		IsStatic:      n.Static,
		Visibility:    visibility(n.Visibility),
		Modality:      modality(n.Modality),
		Origin:        DeclOrigin(n.Origin),
		Location:      d.loc(n.Loc),
	}
	if err := d.register(n.ID, f); err != nil {
		return nil, err
	}
	var err error
	if f.TypeParameters, err = d.typeParams(n.TypeParams); err != nil {
		return nil, err
	}
	if n.DispatchParam != nil {
		if f.DispatchReceiver, err = d.param(n.DispatchParam); err != nil {
			return nil, err
		}
		f.DispatchReceiver.Index = -1
	}
	if n.ExtensionParam != nil {
		if f.ExtensionReceiver, err = d.param(n.ExtensionParam); err != nil {
			return nil, err
		}
		f.ExtensionReceiver.Index = -1
	}
	for i, pn := range n.ValueParams {
		p, err := d.param(pn)
		if err != nil {
			return nil, err
		}
		p.Index = i
		f.ValueParameters = append(f.ValueParameters, p)
	}
	f.ReturnType = d.typ(n.ReturnType)
	if n.Body != nil {
		if f.Body, err = d.body(n.Body); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (d *decoder) body(n *rawNode) (Body, error) {
	switch n.Kind {
	case "block_body":
		b := &BlockBody{Location: d.loc(n.Loc)}
		for _, s := range n.Statements {
			st, err := d.stmt(s)
			if err != nil {
				return nil, err
			}
			b.Statements = append(b.Statements, st)
		}
		return b, nil
	case "expression_body":
		e, err := d.expr(n.Expression)
		if err != nil {
			return nil, err
		}
		return &ExpressionBody{Expression: e, Location: d.loc(n.Loc)}, nil
	case "synthetic_body":
		kind := SyntheticEnumValues
		if n.Synthetic == "valueOf" {
			kind = SyntheticEnumValueOf
		}
		return &SyntheticBody{Kind: kind, Location: d.loc(n.Loc)}, nil
	}
	return nil, fmt.Errorf("unknown body kind %q", n.Kind)
}

func (d *decoder) property(n *rawNode) (*Property, error) {
	p := &Property{
		Name:        n.Name,
		IsVar:       n.Var,
		IsExtension: n.Extension,
		Visibility:  visibility(n.Visibility),
		Modality:    modality(n.Modality),
		Origin:      DeclOrigin(n.Origin),
		Location:    d.loc(n.Loc),
	}
	if err := d.register(n.ID, p); err != nil {
		return nil, err
	}
	var err error
	if n.Getter != nil {
		if p.Getter, err = d.function(n.Getter); err != nil {
			return nil, err
		}
	}
	if n.Setter != nil {
		if p.Setter, err = d.function(n.Setter); err != nil {
			return nil, err
		}
	}
	if n.BackingField != nil {
		if p.BackingField, err = d.field(n.BackingField); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (d *decoder) field(n *rawNode) (*Field, error) {
	f := &Field{
		Name:       n.Name,
		Type:       d.typ(n.Type),
		IsStatic:   n.Static,
		IsFinal:    n.Final,
		Visibility: visibility(n.Visibility),
		Location:   d.loc(n.Loc),
	}
	if err := d.register(n.ID, f); err != nil {
		return nil, err
	}
	init, err := d.expr(n.Initializer)
	if err != nil {
		return nil, err
	}
	f.Initializer = init
	return f, nil
}

func (d *decoder) stmt(n *rawNode) (Statement, error) {
	switch n.Kind {
	case "class":
		return d.class(n)
	case "function":
		return d.function(n)
	case "variable":
		return d.variable(n)
	case "local_delegated_property":
		p := &LocalDelegatedProperty{Name: n.Name, Location: d.loc(n.Loc)}
		return p, d.register(n.ID, p)
	}
	return d.expr(n)
}

func (d *decoder) variable(n *rawNode) (*Variable, error) {
	v := &Variable{Name: n.Name, Type: d.typ(n.Type), IsVar: n.Var, Location: d.loc(n.Loc)}
	if err := d.register(n.ID, v); err != nil {
		return nil, err
	}
	init, err := d.expr(n.Initializer)
	if err != nil {
		return nil, err
	}
	v.Initializer = init
	return v, nil
}

func (d *decoder) exprs(ns []*rawNode) ([]Expression, error) {
	var out []Expression
	for _, n := range ns {
		e, err := d.expr(n)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// expr decodes an expression. A nil node decodes to a nil Expression.
func (d *decoder) expr(n *rawNode) (Expression, error) {
	if n == nil {
		return nil, nil
	}
	base := ExprBase{Typ: d.typ(n.Type), Location: d.loc(n.Loc)}
	var err error
	// sub decodes a child, keeping the first error.
	sub := func(c *rawNode) Expression {
		if err != nil {
			return nil
		}
		var e Expression
		e, err = d.expr(c)
		return e
	}
	subs := func(cs []*rawNode) []Expression {
		if err != nil {
			return nil
		}
		var es []Expression
		es, err = d.exprs(cs)
		return es
	}

	var out Expression
	switch n.Kind {
	case "block":
		b := &Block{ExprBase: base, Origin: Origin(n.Origin)}
		for _, s := range n.Statements {
			st, serr := d.stmt(s)
			if serr != nil {
				return nil, serr
			}
			b.Statements = append(b.Statements, st)
		}
		out = b
	case "call":
		c := &Call{ExprBase: base, Origin: Origin(n.Origin), TypeArgs: d.types(n.TypeArgs)}
		c.DispatchReceiver = sub(n.DispatchReceiver)
		c.ExtensionReceiver = sub(n.ExtensionReceiver)
		c.Args = subs(n.Args)
		later(d, n.Callee, func(f *Function) { c.Callee = f })
		out = c
	case "constructor_call":
		c := &ConstructorCall{ExprBase: base, TypeArgs: d.types(n.TypeArgs)}
		c.DispatchReceiver = sub(n.DispatchReceiver)
		c.Args = subs(n.Args)
		later(d, n.Callee, func(f *Function) { c.Callee = f })
		out = c
	case "delegating_constructor_call":
		c := &DelegatingConstructorCall{ExprBase: base, TypeArgs: d.types(n.TypeArgs)}
		c.DispatchReceiver = sub(n.DispatchReceiver)
		c.Args = subs(n.Args)
		later(d, n.Callee, func(f *Function) { c.Callee = f })
		out = c
	case "instance_initializer_call":
		c := &InstanceInitializerCall{ExprBase: base}
		later(d, n.Target, func(cl *Class) { c.Class = cl })
		out = c
	case "const":
		out = &Const{ExprBase: base, Kind: constKind(n.ConstKind), Value: n.Text}
	case "get_value":
		g := &GetValue{ExprBase: base, Origin: Origin(n.Origin)}
		later(d, n.Symbol, func(v ValueDeclaration) { g.Symbol = v })
		out = g
	case "set_value":
		s := &SetValue{ExprBase: base, Origin: Origin(n.Origin)}
		s.Value = sub(n.Value)
		later(d, n.Symbol, func(v ValueDeclaration) { s.Symbol = v })
		out = s
	case "get_field":
		g := &GetField{ExprBase: base}
		g.Receiver = sub(n.Receiver)
		later(d, n.Symbol, func(f *Field) { g.Field = f })
		out = g
	case "set_field":
		s := &SetField{ExprBase: base}
		s.Receiver = sub(n.Receiver)
		s.Value = sub(n.Value)
		later(d, n.Symbol, func(f *Field) { s.Field = f })
		out = s
	case "get_enum_value":
		g := &GetEnumValue{ExprBase: base}
		later(d, n.Symbol, func(e *EnumEntry) { g.Entry = e })
		out = g
	case "get_object_value":
		g := &GetObjectValue{ExprBase: base}
		later(d, n.Symbol, func(c *Class) { g.Class = c })
		out = g
	case "return":
		r := &Return{ExprBase: base}
		r.Value = sub(n.Value)
		later(d, n.Target, func(f *Function) { r.Target = f })
		out = r
	case "throw":
		t := &Throw{ExprBase: base}
		t.Value = sub(n.Value)
		out = t
	case "string_concatenation":
		s := &StringConcatenation{ExprBase: base}
		s.Args = subs(n.Args)
		out = s
	case "while", "do_while":
		cond := sub(n.Condition)
		body := sub(n.Body)
		var l Expression
		if n.Kind == "while" {
			l = &WhileLoop{ExprBase: base, Label: n.Label, Condition: cond, Body: body}
		} else {
			l = &DoWhileLoop{ExprBase: base, Label: n.Label, Condition: cond, Body: body}
		}
		if rerr := d.register(n.ID, l); rerr != nil {
			return nil, rerr
		}
		out = l
	case "break":
		b := &Break{ExprBase: base, Label: n.Label}
		later(d, n.Loop, func(l Loop) { b.Loop = l })
		out = b
	case "continue":
		c := &Continue{ExprBase: base, Label: n.Label}
		later(d, n.Loop, func(l Loop) { c.Loop = l })
		out = c
	case "try":
		t := &Try{ExprBase: base}
		t.TryResult = sub(n.TryResult)
		for _, cn := range n.Catches {
			c := &Catch{Location: d.loc(cn.Loc)}
			if cn.Parameter != nil {
				v, verr := d.variable(cn.Parameter)
				if verr != nil {
					return nil, verr
				}
				c.Parameter = v
			}
			c.Result = sub(cn.Result)
			t.Catches = append(t.Catches, c)
		}
		t.Finally = sub(n.Finally)
		out = t
	case "when":
		w := &When{ExprBase: base, Origin: Origin(n.Origin)}
		for _, bn := range n.Branches {
			w.Branches = append(w.Branches, &Branch{
				Condition: sub(bn.Condition),
				Result:    sub(bn.Result),
				IsElse:    bn.Else,
				Location:  d.loc(bn.Loc),
			})
		}
		out = w
	case "type_operator":
		out = &TypeOperatorCall{
			ExprBase:    base,
			Operator:    TypeOperator(n.Operator),
			Argument:    sub(n.Argument),
			TypeOperand: d.typ(n.TypeOperand),
		}
	case "get_class":
		out = &GetClass{ExprBase: base, Argument: sub(n.Argument)}
	case "class_reference":
		out = &ClassReference{ExprBase: base, ClassType: d.typ(n.ClassType)}
	case "function_expression":
		fe := &FunctionExpression{ExprBase: base, Origin: Origin(n.Origin)}
		if n.Function != nil {
			f, ferr := d.function(n.Function)
			if ferr != nil {
				return nil, ferr
			}
			fe.Function = f
		}
		out = fe
	case "function_reference":
		r := &FunctionReference{ExprBase: base, TypeArgs: d.types(n.TypeArgs)}
		r.DispatchReceiver = sub(n.DispatchReceiver)
		r.ExtensionReceiver = sub(n.ExtensionReceiver)
		later(d, n.Symbol, func(f *Function) { r.Target = f })
		out = r
	case "property_reference":
		r := &PropertyReference{ExprBase: base}
		later(d, n.Symbol, func(p *Property) { r.Property = p })
		out = r
	case "vararg":
		out = &Vararg{ExprBase: base, ElementType: d.typ(n.ElementType), Elements: subs(n.Elements)}
	case "spread":
		out = &Spread{ExprBase: base, Expression: sub(n.Expression)}
	default:
		out = &Unsupported{ExprBase: base, Kind: n.Kind}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func constKind(s string) ConstKind {
	switch s {
	case "short":
		return ConstShort
	case "byte":
		return ConstByte
	case "long":
		return ConstLong
	case "float":
		return ConstFloat
	case "double":
		return ConstDouble
	case "boolean":
		return ConstBoolean
	case "char":
		return ConstChar
	case "string":
		return ConstString
	case "null":
		return ConstNull
	}
	return ConstInt
}
