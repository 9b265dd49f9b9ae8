package extractor

import (
	"strconv"
	"strings"

	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/ir"
)

// typeResult is a resolved type entity.
type typeResult struct {
	// id is the label of the JVM-level type: erased, raw or parameterized.
	id facts.Label

	// name is the display name, e.g. "java.lang.String" or "Box<T>".
	name string

	// kotlin is the label of the Kotlin type, which adds nullability.
	kotlin facts.Label

	// elem and dims describe array types.
	elem facts.Label
	dims int
}

// typeMode selects how a type use maps to a JVM type.
type typeMode struct {
	// ret maps Unit to void.
	ret bool

	// boxed maps primitives to their wrapper classes, as in type arguments.
	boxed bool

	// erased drops type arguments and erases type parameters to their
	// first bound.
	erased bool
}

var (
	modeValue        = typeMode{}
	modeReturn       = typeMode{ret: true}
	modeArg          = typeMode{boxed: true}
	modeErased       = typeMode{erased: true}
	modeReturnErased = typeMode{ret: true, erased: true}
)

// substitution maps the type parameters of a class instantiation to the
// supplied arguments. A raw substitution erases every type parameter.
type substitution struct {
	args map[*ir.TypeParameter]ir.TypeArgument
	raw  bool
}

var boxedNames = map[string]string{
	"boolean": "Boolean",
	"byte":    "Byte",
	"char":    "Character",
	"short":   "Short",
	"int":     "Integer",
	"long":    "Long",
	"float":   "Float",
	"double":  "Double",
}

// useType resolves t under sub. Equal types in equal contexts always
// resolve to the same labels.
func (s *Session) useType(t *ir.Type, sub *substitution, mode typeMode) typeResult {
	r := s.javaType(t, sub, mode)
	r.kotlin = s.kotlinType(r.id, t != nil && t.Nullable)
	return r
}

func (s *Session) kotlinType(java facts.Label, nullable bool) facts.Label {
	if nullable {
		id := s.w.Label("kt_type;1;" + java.String())
		s.emit(facts.KindKtNullableTypes, facts.L(id), facts.L(java))
		return id
	}
	id := s.w.Label("kt_type;0;" + java.String())
	s.emit(facts.KindKtNotNullTypes, facts.L(id), facts.L(java))
	return id
}

func (s *Session) javaType(t *ir.Type, sub *substitution, mode typeMode) typeResult {
	if t == nil {
		t = ir.ClassType(s.b.Unit)
	}
	if tp := t.TypeParameter(); tp != nil {
		return s.typeParamType(tp, t.Nullable, sub, mode)
	}
	c := t.Class()
	if c == nil {
		return s.classResult(s.b.JavaObject)
	}

	switch {
	case c == s.b.Unit && mode.ret:
		return s.primitive("void")
	case c.JvmPrimitive != "" && !t.Nullable && !mode.boxed:
		return s.primitive(c.JvmPrimitive)
	case c.JvmPrimitive != "":
		name := boxedNames[c.JvmPrimitive]
		return typeResult{id: s.namedClass("java.lang", name), name: "java.lang." + name}
	case c == s.b.Any:
		return s.classResult(s.b.JavaObject)
	case c == s.b.String:
		return s.classResult(s.b.JavaString)
	case c == s.b.Nothing:
		return typeResult{id: s.namedClass("java.lang", "Void"), name: "java.lang.Void"}
	case c.IsArray:
		compMode := typeMode{boxed: true, erased: mode.erased}
		var comp typeResult
		if args := t.ArgTypes(); len(args) > 0 && args[0] != nil {
			comp = s.javaType(args[0], sub, compMode)
		} else {
			comp = s.classResult(s.b.JavaObject)
		}
		return s.arrayType(comp)
	case c.PrimitiveArrayOf != "":
		return s.arrayType(s.primitive(c.PrimitiveArrayOf))
	}

	erased := s.classResult(c)
	if mode.erased || len(c.TypeParameters) == 0 {
		return erased
	}
	if len(t.Args) < len(c.TypeParameters) || (sub != nil && sub.raw) {
		return s.rawType(c, erased)
	}
	return s.parameterized(c, erased, t.Args, sub)
}

func (s *Session) classResult(c *ir.Class) typeResult {
	id := s.useClass(c)
	name, ok := s.qualifiedName(c)
	if !ok {
		name = c.Name
	}
	return typeResult{id: id, name: name}
}

func (s *Session) primitive(name string) typeResult {
	id := s.w.Label("type;" + name)
	s.emit(facts.KindPrimitives, facts.L(id), facts.S(name))
	return typeResult{id: id, name: name}
}

func (s *Session) arrayType(comp typeResult) typeResult {
	elem, dims := comp.id, 1
	if comp.dims > 0 {
		elem, dims = comp.elem, comp.dims+1
	}
	name := comp.name + "[]"
	id := s.w.Label("array;" + strconv.Itoa(dims) + ";" + elem.String())
	s.emit(facts.KindArrays, facts.L(id), facts.S(name), facts.L(elem), facts.I(dims), facts.L(comp.id))
	return typeResult{id: id, name: name, elem: elem, dims: dims}
}

func (s *Session) rawType(c *ir.Class, erased typeResult) typeResult {
	id := s.w.Label("class;" + erased.id.String() + ";raw")
	s.emitTypeStub(c, id, c.Name, erased.id)
	s.emit(facts.KindIsRaw, facts.L(id))
	s.emit(facts.KindErasure, facts.L(id), facts.L(erased.id))
	return typeResult{id: id, name: erased.name}
}

func (s *Session) parameterized(c *ir.Class, erased typeResult, args []ir.TypeArgument, sub *substitution) typeResult {
	results := make([]typeResult, len(args))
	ids := make([]string, len(args))
	names := make([]string, len(args))
	for i, a := range args {
		results[i] = s.typeArgument(a, sub)
		ids[i] = results[i].id.String()
		names[i] = results[i].name
	}
	id := s.w.Label("class;" + erased.id.String() + "<" + strings.Join(ids, ",") + ">")
	name := c.Name + "<" + strings.Join(names, ",") + ">"
	s.emitTypeStub(c, id, name, erased.id)
	s.emit(facts.KindIsParameterized, facts.L(id))
	for i, r := range results {
		s.emit(facts.KindTypeArgs, facts.L(r.id), facts.I(i), facts.L(id))
	}
	s.emit(facts.KindErasure, facts.L(id), facts.L(erased.id))
	return typeResult{id: id, name: name}
}

func (s *Session) emitTypeStub(c *ir.Class, id facts.Label, name string, source facts.Label) {
	kind := facts.KindClasses
	if c.IsInterface() {
		kind = facts.KindInterfaces
	}
	pkg := s.usePackage(packageName(s.root(c)))
	s.emit(kind, facts.L(id), facts.S(name), facts.L(pkg), facts.L(source))
}

// typeArgument resolves one argument of a parameterized type.
func (s *Session) typeArgument(a ir.TypeArgument, sub *substitution) typeResult {
	p, ok := a.(*ir.TypeProjection)
	if !ok {
		return s.wildcard(0, typeResult{})
	}
	if tp := p.Type.TypeParameter(); tp != nil && sub != nil && !sub.raw {
		if outer, ok := sub.args[tp]; ok && p.Variance == ir.Invariant {
			return s.typeArgument(outer, nil)
		}
	}
	inner := s.javaType(p.Type, sub, modeArg)
	if p.Variance == ir.Invariant {
		return inner
	}
	if s.isTop(p.Type) {
		return s.wildcard(0, typeResult{})
	}
	if p.Variance == ir.Out {
		return s.wildcard(1, inner)
	}
	return s.wildcard(2, inner)
}

// wildcard returns "?" for kind 0, "? extends B" for 1 and "? super B" for
// 2. The unbounded wildcard has no bound fact.
func (s *Session) wildcard(kind int, bound typeResult) typeResult {
	name := "?"
	switch kind {
	case 1:
		name = "? extends " + bound.name
	case 2:
		name = "? super " + bound.name
	}
	key := "wildcard;?"
	switch kind {
	case 1:
		key = "wildcard;? extends " + bound.id.String()
	case 2:
		key = "wildcard;? super " + bound.id.String()
	}
	id := s.w.Label(key)
	wkind := kind
	if wkind == 0 {
		wkind = 1
	}
	s.emit(facts.KindWildcards, facts.L(id), facts.S(name), facts.I(wkind))
	if kind != 0 {
		b := s.w.Label("bound;0;" + id.String())
		s.emit(facts.KindTypeBounds, facts.L(b), facts.L(bound.id), facts.I(0), facts.L(id))
	}
	return typeResult{id: id, name: name}
}

// isTop reports whether t is Any or Any?.
func (s *Session) isTop(t *ir.Type) bool {
	return t != nil && t.Class() == s.b.Any
}

func (s *Session) typeParamType(tp *ir.TypeParameter, nullable bool, sub *substitution, mode typeMode) typeResult {
	if sub != nil {
		if sub.raw {
			return s.eraseTypeParam(tp)
		}
		if a, ok := sub.args[tp]; ok {
			p, ok := a.(*ir.TypeProjection)
			if !ok {
				return s.eraseTypeParam(tp)
			}
			t := p.Type.WithNullability(p.Type.Nullable || nullable)
			if mode.erased {
				return s.javaType(t, nil, mode)
			}
			return s.javaType(t, nil, typeMode{ret: mode.ret, boxed: true})
		}
	}
	if mode.erased {
		return s.eraseTypeParam(tp)
	}
	return typeResult{id: s.useTypeParameter(tp), name: tp.Name}
}

// eraseTypeParam erases tp to the erasure of its first bound.
func (s *Session) eraseTypeParam(tp *ir.TypeParameter) typeResult {
	if len(tp.SuperTypes) > 0 {
		return s.javaType(tp.SuperTypes[0], nil, typeMode{boxed: true, erased: true})
	}
	return s.classResult(s.b.JavaObject)
}

// useTypeParameter returns the label of a type variable. Its key is scoped
// by the declaring class or function.
func (s *Session) useTypeParameter(tp *ir.TypeParameter) facts.Label {
	var parent facts.Label
	switch p := s.parents.Parent(tp).(type) {
	case *ir.Class:
		parent = s.useClass(p)
	case *ir.Function:
		l, err := s.useFunction(p)
		if err != nil {
			// Without a declaring function there is no stable key, and a
			// shared placeholder would merge unrelated type variables.
			s.warn(tp, "type parameter %s has no declaring function: %v", tp.Name, err)
			return s.w.Fresh()
		}
		parent = l
	}
	id := s.w.Label("typevar;" + parent.String() + ";" + tp.Name)
	s.emit(facts.KindTypeVars, facts.L(id), facts.S(tp.Name), facts.I(tp.Index), facts.L(parent))
	return id
}

// substitutionFor maps the type parameters of t's class, and of the outer
// classes an inner class captures, to t's arguments. Under-supplied
// argument lists give a raw substitution.
func (s *Session) substitutionFor(t *ir.Type) *substitution {
	c := t.Class()
	if c == nil {
		return nil
	}
	var params []*ir.TypeParameter
	for outer := c; outer != nil; {
		params = append(params, outer.TypeParameters...)
		if !outer.IsInner {
			break
		}
		outer, _ = s.parents.Parent(outer).(*ir.Class)
	}
	if len(params) == 0 {
		return nil
	}
	if len(t.Args) < len(c.TypeParameters) {
		return &substitution{raw: true}
	}
	// Outer parameters without arguments stay unsubstituted.
	sub := &substitution{args: make(map[*ir.TypeParameter]ir.TypeArgument, len(params))}
	for i, a := range t.Args[:min(len(t.Args), len(params))] {
		sub.args[params[i]] = a
	}
	return sub
}

// typeAccess lowers a use of t in code, with its type arguments as child
// accesses.
func (s *Session) typeAccess(t *ir.Type, sub *substitution, p exprParent, callable facts.Label, loc ir.Location) facts.Label {
	r := s.useType(t, sub, modeValue)
	kind := "typeaccess"
	if r.dims > 0 {
		kind = "arraytypeaccess"
	}
	id := s.w.Fresh()
	s.emitExpr(id, kind, r, p, callable, loc)
	if t == nil {
		return id
	}
	if c := t.Class(); c != nil && (c.IsArray || (len(c.TypeParameters) > 0 && len(t.Args) == len(c.TypeParameters))) {
		for i, a := range t.Args {
			s.typeArgumentAccess(a, sub, exprParent{parent: id, idx: i, stmt: p.stmt}, callable, loc)
		}
	}
	return id
}

func (s *Session) typeArgumentAccess(a ir.TypeArgument, sub *substitution, p exprParent, callable facts.Label, loc ir.Location) {
	proj, ok := a.(*ir.TypeProjection)
	if !ok || proj.Variance != ir.Invariant {
		r := s.typeArgument(a, sub)
		id := s.w.Fresh()
		s.emitExpr(id, "wildcardtypeaccess", r, p, callable, loc)
		if ok && !s.isTop(proj.Type) {
			s.typeAccess(proj.Type, sub, exprParent{parent: id, idx: 0, stmt: p.stmt}, callable, loc)
		}
		return
	}
	s.typeAccess(proj.Type, sub, p, callable, loc)
}

// typeAccessOf lowers a use of an already resolved type with no arguments,
// such as a generated class or a file class.
func (s *Session) typeAccessOf(r typeResult, p exprParent, callable facts.Label, loc ir.Location) facts.Label {
	id := s.w.Fresh()
	s.emitExpr(id, "typeaccess", r, p, callable, loc)
	return id
}

// classType resolves a label-only type such as a generated class.
func (s *Session) classType(id facts.Label) typeResult {
	return typeResult{id: id, kotlin: s.kotlinType(id, false)}
}
