package extractor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/ir"
)

// generated is a class synthesized for a lambda, a callable reference, an
// interface conversion or a local function.
type generated struct {
	id  facts.Label
	typ typeResult

	ctor  facts.Label
	block facts.Label

	// fields are the capture fields, in constructor parameter order.
	fields []facts.Label
}

type capture struct {
	name string
	typ  *ir.Type
}

const (
	dispatchReceiverField  = "<dispatchReceiver>"
	extensionReceiverField = "<extensionReceiver>"
	samFunctionField       = "<fn>"
)

// generateClass emits an anonymous final class with the given supertypes.
// Each capture becomes a private field assigned from the matching
// constructor parameter.
func (s *Session) generateClass(supers []*ir.Type, captures []capture, loc ir.Location) (*generated, error) {
	if len(supers) == 0 || supers[0].Class() == nil {
		return nil, fmt.Errorf("generated class needs a class supertype")
	}
	id := s.w.Fresh()
	g := &generated{id: id, typ: s.classType(id)}

	pkg := ""
	if s.file != nil {
		pkg = s.file.Package
	}
	s.emit(facts.KindClasses, facts.L(id), facts.S(""), facts.L(s.usePackage(pkg)), facts.L(id))
	s.emitLocation(id, loc)
	s.modifier(id, "final")
	s.modifier(id, "private")
	if encl := s.generatedEnclosing(); encl != 0 {
		s.emit(facts.KindEnclInReftype, facts.L(id), facts.L(encl))
	}
	for _, st := range supers {
		s.supertype(id, st)
	}

	var paramTypes []typeResult
	for _, c := range captures {
		t := s.useType(c.typ, nil, modeValue)
		fid := s.w.Label(fieldKey(id, c.name))
		s.emit(facts.KindFields, facts.L(fid), facts.S(c.name), facts.L(t.id), facts.L(id), facts.L(fid))
		s.emit(facts.KindFieldsKotlinType, facts.L(fid), facts.L(t.kotlin))
		s.modifier(fid, "private")
		s.modifier(fid, "final")
		g.fields = append(g.fields, fid)
		paramTypes = append(paramTypes, t)
	}

	void := s.useType(nil, nil, modeReturn)
	ids := make([]facts.Label, len(paramTypes))
	names := make([]string, len(paramTypes))
	for i, c := range captures {
		r := s.useType(c.typ, nil, modeErased)
		ids[i], names[i] = r.id, r.name
	}
	g.ctor = s.w.Label(callableKey(id, "", ids, void.id))
	s.emit(facts.KindConstrs, facts.L(g.ctor), facts.S(""), facts.S("("+strings.Join(names, ",")+")"),
		facts.L(void.id), facts.L(id), facts.L(g.ctor))
	s.emit(facts.KindConstrsKotlinType, facts.L(g.ctor), facts.L(void.kotlin))
	s.emitLocation(g.ctor, loc)
	s.modifier(g.ctor, "public")

	params := make([]facts.Label, len(paramTypes))
	for i, t := range paramTypes {
		params[i] = s.w.Label(paramKey(g.ctor, i))
		s.emit(facts.KindParams, facts.L(params[i]), facts.L(t.id), facts.I(i), facts.L(g.ctor), facts.L(params[i]))
		s.emit(facts.KindParamsKotlinType, facts.L(params[i]), facts.L(t.kotlin))
		s.emit(facts.KindParamName, facts.L(params[i]), facts.S(captures[i].name))
	}

	g.block = s.w.Fresh()
	s.emitStmt(g.block, "block", stmtParent{parent: g.ctor, idx: 0}, g.ctor, loc)
	super := s.w.Fresh()
	s.emitStmt(super, "superconstructorinvocationstmt", stmtParent{parent: g.block, idx: 0}, g.ctor, loc)
	if sc := supers[0].Class().PrimaryConstructor(); sc != nil {
		target, err := s.useFunction(sc)
		if err != nil {
			return nil, err
		}
		s.emit(facts.KindCallableBinding, facts.L(super), facts.L(target))
	}

	for i, fid := range g.fields {
		stmt := s.w.Fresh()
		s.emitStmt(stmt, "exprstmt", stmtParent{parent: g.block, idx: i + 1}, g.ctor, loc)
		top := exprParent{parent: stmt, idx: 0, stmt: stmt}
		assign := s.w.Fresh()
		s.emitExpr(assign, "assignexpr", paramTypes[i], top, g.ctor, loc)
		s.fieldOfThis(g, fid, paramTypes[i], top.under(assign, 0), g.ctor, loc)
		rhs := s.w.Fresh()
		s.emitExpr(rhs, "varaccess", paramTypes[i], top.under(assign, 1), g.ctor, loc)
		s.emit(facts.KindVariableBinding, facts.L(rhs), facts.L(params[i]))
	}
	return g, nil
}

// supertype emits the supertype edge from id to t.
func (s *Session) supertype(id facts.Label, t *ir.Type) {
	r := s.useType(t, nil, modeArg)
	if c := t.Class(); c != nil && c.IsInterface() {
		s.emit(facts.KindImplInterface, facts.L(id), facts.L(r.id))
		return
	}
	s.emit(facts.KindExtendsReftype, facts.L(id), facts.L(r.id))
}

// fieldOfThis emits this.<field> inside a generated class.
func (s *Session) fieldOfThis(g *generated, fid facts.Label, t typeResult, p exprParent, callable facts.Label, loc ir.Location) facts.Label {
	id := s.w.Fresh()
	s.emitExpr(id, "varaccess", t, p, callable, loc)
	s.emit(facts.KindVariableBinding, facts.L(id), facts.L(fid))
	this := s.w.Fresh()
	s.emitExpr(this, "thisaccess", g.typ, p.under(id, -1), callable, loc)
	return id
}

// functionSupertype returns FunctionK<P1..Pk, R>, or FunctionN<R> when the
// arity is above the big-arity threshold.
func (s *Session) functionSupertype(params []*ir.Type, ret *ir.Type) (*ir.Type, bool) {
	if ret == nil {
		ret = ir.ClassType(s.b.Unit)
	}
	if len(params)+1 > s.opts.BigArity {
		return ir.ClassType(s.b.FunctionN, ret), true
	}
	return ir.ClassType(s.b.FunctionK(len(params)), append(append([]*ir.Type(nil), params...), ret)...), false
}

// extractLambda turns a function literal into a generated class whose
// invoke method is the literal's body.
func (s *Session) extractLambda(e *ir.FunctionExpression, p exprParent, callable facts.Label) error {
	f := e.Function
	if f == nil {
		return errorAt(e, "function literal has no function")
	}
	var paramTypes []*ir.Type
	for _, vp := range signatureParams(f) {
		paramTypes = append(paramTypes, vp.Type)
	}
	fnType, big := s.functionSupertype(paramTypes, f.ReturnType)

	g, err := s.generateClass([]*ir.Type{ir.ClassType(s.b.Any), fnType}, nil, e.Location)
	if err != nil {
		return err
	}
	s.genClassOf[f] = g
	invoke := s.w.Label(s.functionKey(g.id, "invoke", f, nil))
	s.functionLabels[f] = invoke
	s.remember(func() {
		delete(s.genClassOf, f)
		delete(s.functionLabels, f)
	})
	if err := s.extractFunctionAs(f, invoke, "invoke", g.id); err != nil {
		return err
	}
	s.modifier(invoke, "override")
	if big {
		s.bigArityInvoke(g, f, invoke, e.Location)
	}

	id := s.w.Fresh()
	s.emitExpr(id, "lambdaexpr", s.exprType(e), p, callable, e.Location)
	s.emit(facts.KindCallableBinding, facts.L(id), facts.L(g.ctor))
	s.emit(facts.KindIsAnonymClass, facts.L(g.id), facts.L(id))
	s.emit(facts.KindLambdaKind, facts.L(id), facts.I(1))
	s.typeAccessOf(g.typ, p.under(id, -3), callable, e.Location)
	return nil
}

// objectArray returns the type Array<Any?>, which erases to Object[].
func (s *Session) objectArray() *ir.Type {
	return ir.ClassType(s.b.Array, ir.ClassType(s.b.Any).WithNullability(true))
}

// bigArityInvoke adds invoke(Object[] args) to g, which unpacks args into a
// call of the fixed-arity invoke.
func (s *Session) bigArityInvoke(g *generated, f *ir.Function, invoke facts.Label, loc ir.Location) {
	arr := s.useType(s.objectArray(), nil, modeValue)
	obj := s.classResult(s.b.JavaObject)
	obj.kotlin = s.kotlinType(obj.id, true)

	id := s.w.Label(callableKey(g.id, "invoke", []facts.Label{arr.id}, obj.id))
	s.emit(facts.KindMethods, facts.L(id), facts.S("invoke"), facts.S("invoke("+arr.name+")"),
		facts.L(obj.id), facts.L(g.id), facts.L(id))
	s.emit(facts.KindMethodsKotlinType, facts.L(id), facts.L(obj.kotlin))
	s.emitLocation(id, loc)
	s.modifier(id, "public")
	s.modifier(id, "override")

	args := s.w.Label(paramKey(id, 0))
	s.emit(facts.KindParams, facts.L(args), facts.L(arr.id), facts.I(0), facts.L(id), facts.L(args))
	s.emit(facts.KindParamsKotlinType, facts.L(args), facts.L(arr.kotlin))
	s.emit(facts.KindParamName, facts.L(args), facts.S("args"))

	block := s.w.Fresh()
	s.emitStmt(block, "block", stmtParent{parent: id, idx: 0}, id, loc)
	ret := s.w.Fresh()
	s.emitStmt(ret, "returnstmt", stmtParent{parent: block, idx: 0}, id, loc)
	top := exprParent{parent: ret, idx: 0, stmt: ret}

	call := s.w.Fresh()
	s.emitExpr(call, "methodaccess", s.useType(f.ReturnType, nil, modeValue), top, id, loc)
	s.emit(facts.KindCallableBinding, facts.L(call), facts.L(invoke))
	s.emitExpr(s.w.Fresh(), "thisaccess", g.typ, top.under(call, -1), id, loc)

	for i, vp := range signatureParams(f) {
		s.arrayElement(id, args, arr, vp.Type, i, top.under(call, i), loc)
	}
}

// arrayElement emits (t) args[i] at p inside method m, where args is m's
// Object[] parameter.
func (s *Session) arrayElement(m, args facts.Label, arr typeResult, t *ir.Type, i int, p exprParent, loc ir.Location) {
	cast := s.w.Fresh()
	s.emitExpr(cast, "castexpr", s.useType(t, nil, modeValue), p, m, loc)
	s.typeAccess(t, nil, p.under(cast, 0), m, loc)
	acc := s.w.Fresh()
	s.emitExpr(acc, "arrayaccess", s.useType(ir.ClassType(s.b.Any).WithNullability(true), nil, modeValue), p.under(cast, 1), m, loc)
	ref := s.w.Fresh()
	s.emitExpr(ref, "varaccess", arr, p.under(acc, 0), m, loc)
	s.emit(facts.KindVariableBinding, facts.L(ref), facts.L(args))
	s.intLiteral(i, p.under(acc, 1), m, loc)
}

// forwarder is a synthesized method whose body returns one expression.
type forwarder struct {
	id     facts.Label
	params []facts.Label
	types  []typeResult
	top    exprParent
}

// forwardingMethod emits a public method name(paramTypes) returning ret on
// g, with a block body holding a single return statement.
func (s *Session) forwardingMethod(g *generated, name string, paramNames []string, paramTypes []*ir.Type, ret *ir.Type, sub *substitution, loc ir.Location) *forwarder {
	fw := &forwarder{}
	erased := make([]facts.Label, len(paramTypes))
	names := make([]string, len(paramTypes))
	for i, t := range paramTypes {
		r := s.useType(t, sub, modeErased)
		erased[i], names[i] = r.id, r.name
		fw.types = append(fw.types, s.useType(t, sub, modeValue))
	}
	rt := s.useType(ret, sub, modeReturn)
	fw.id = s.w.Label(callableKey(g.id, name, erased, s.useType(ret, sub, modeReturnErased).id))
	s.emit(facts.KindMethods, facts.L(fw.id), facts.S(name), facts.S(name+"("+strings.Join(names, ",")+")"),
		facts.L(rt.id), facts.L(g.id), facts.L(fw.id))
	s.emit(facts.KindMethodsKotlinType, facts.L(fw.id), facts.L(rt.kotlin))
	s.emitLocation(fw.id, loc)
	s.modifier(fw.id, "public")
	s.modifier(fw.id, "override")

	for i, t := range fw.types {
		pid := s.w.Label(paramKey(fw.id, i))
		s.emit(facts.KindParams, facts.L(pid), facts.L(t.id), facts.I(i), facts.L(fw.id), facts.L(pid))
		s.emit(facts.KindParamsKotlinType, facts.L(pid), facts.L(t.kotlin))
		s.emit(facts.KindParamName, facts.L(pid), facts.S(paramNames[i]))
		fw.params = append(fw.params, pid)
	}

	block := s.w.Fresh()
	s.emitStmt(block, "block", stmtParent{parent: fw.id, idx: 0}, fw.id, loc)
	ret0 := s.w.Fresh()
	s.emitStmt(ret0, "returnstmt", stmtParent{parent: block, idx: 0}, fw.id, loc)
	fw.top = exprParent{parent: ret0, idx: 0, stmt: ret0}
	return fw
}

// paramAccess reads parameter i of the forwarder at p.
func (s *Session) paramAccess(fw *forwarder, i int, p exprParent, loc ir.Location) {
	id := s.w.Fresh()
	s.emitExpr(id, "varaccess", fw.types[i], p, fw.id, loc)
	s.emit(facts.KindVariableBinding, facts.L(id), facts.L(fw.params[i]))
}

// extractFunctionReference turns `recv::f` into a generated class that
// captures the bound receivers and whose invoke forwards to f.
func (s *Session) extractFunctionReference(e *ir.FunctionReference, p exprParent, callable facts.Label) error {
	target := e.Target
	if target == nil {
		return errorAt(e, "function reference has no target")
	}
	fnArgs := e.Type().ArgTypes()
	if len(fnArgs) == 0 || fnArgs[len(fnArgs)-1] == nil {
		return errorAt(e, "function reference type %s is not a function type", s.exprType(e).name)
	}
	invokeParams, ret := fnArgs[:len(fnArgs)-1], fnArgs[len(fnArgs)-1]
	fnType, big := s.functionSupertype(invokeParams, ret)

	var captures []capture
	if e.DispatchReceiver != nil {
		captures = append(captures, capture{dispatchReceiverField, e.DispatchReceiver.Type()})
	}
	if e.ExtensionReceiver != nil {
		captures = append(captures, capture{extensionReceiverField, e.ExtensionReceiver.Type()})
	}
	g, err := s.generateClass([]*ir.Type{ir.ClassType(s.b.FunctionReference), fnType}, captures, e.Location)
	if err != nil {
		return err
	}

	// Above the big-arity threshold invoke takes one Object[] and each
	// argument is cast out of it.
	var fw *forwarder
	var arg func(i int, p exprParent)
	if big {
		arr := s.objectArray()
		fw = s.forwardingMethod(g, "invoke", []string{"a0"}, []*ir.Type{arr}, ret, nil, e.Location)
		arrType := s.useType(arr, nil, modeValue)
		arg = func(i int, p exprParent) {
			s.arrayElement(fw.id, fw.params[0], arrType, invokeParams[i], i, p, e.Location)
		}
	} else {
		names := make([]string, len(invokeParams))
		for i := range names {
			names[i] = "a" + strconv.Itoa(i)
		}
		fw = s.forwardingMethod(g, "invoke", names, invokeParams, ret, nil, e.Location)
		arg = func(i int, p exprParent) { s.paramAccess(fw, i, p, e.Location) }
	}
	if err := s.forwardCall(e, g, fw, len(invokeParams), arg); err != nil {
		return err
	}

	id := s.w.Fresh()
	s.emitExpr(id, "memberref", s.exprType(e), p, callable, e.Location)
	s.emit(facts.KindCallableBinding, facts.L(id), facts.L(g.ctor))
	targetLabel, err := s.useFunction(target)
	if err != nil {
		return errorAt(e, "%w", err)
	}
	s.emit(facts.KindMemberRefBinding, facts.L(id), facts.L(targetLabel))
	s.emit(facts.KindIsAnonymClass, facts.L(g.id), facts.L(id))
	s.typeAccessOf(g.typ, p.under(id, -3), callable, e.Location)
	idx := 0
	for _, recv := range []ir.Expression{e.DispatchReceiver, e.ExtensionReceiver} {
		if recv == nil {
			continue
		}
		if err := s.extractExpr(recv, p.under(id, idx), callable); err != nil {
			return err
		}
		idx++
	}
	return nil
}

// forwardCall emits the body of a reference's invoke: a new expression for
// constructor targets and a call otherwise. Receivers come from the capture
// fields when bound and from the leading invoke arguments when not. arg
// emits invoke argument i of n at p.
func (s *Session) forwardCall(e *ir.FunctionReference, g *generated, fw *forwarder, n int, arg func(i int, p exprParent)) error {
	target, loc := e.Target, e.Location
	rt := s.useType(target.ReturnType, nil, modeValue)
	call := s.w.Fresh()
	next, field := 0, 0
	captured := func(p exprParent, t *ir.Type) {
		s.fieldOfThis(g, g.fields[field], s.useType(t, nil, modeValue), p, fw.id, loc)
		field++
	}

	// The receiver slot is -2 on a new expression (the outer instance of an
	// inner class) and -1 on a call.
	recvIdx := -1
	if target.IsConstructor {
		recvIdx = -2
		s.emitExpr(call, "newexpr", rt, fw.top, fw.id, loc)
		s.typeAccess(target.ReturnType, nil, fw.top.under(call, -3), fw.id, loc)
	} else {
		s.emitExpr(call, "methodaccess", rt, fw.top, fw.id, loc)
	}
	switch {
	case e.DispatchReceiver != nil:
		captured(fw.top.under(call, recvIdx), e.DispatchReceiver.Type())
	case target.DispatchReceiver != nil:
		if next >= n {
			return errorAt(e, "unbound receiver of %s has no invoke parameter", target.Name)
		}
		arg(next, fw.top.under(call, recvIdx))
		next++
	case !target.IsConstructor:
		owner, err := s.functionParent(target)
		if err != nil {
			return errorAt(e, "%w", err)
		}
		s.typeAccessOf(s.classType(owner), fw.top.under(call, -1), fw.id, loc)
	}

	idx := 0
	if target.ExtensionReceiver != nil {
		if e.ExtensionReceiver != nil {
			captured(fw.top.under(call, 0), e.ExtensionReceiver.Type())
		} else {
			if next >= n {
				return errorAt(e, "unbound extension receiver of %s has no invoke parameter", target.Name)
			}
			arg(next, fw.top.under(call, 0))
			next++
		}
		idx = 1
	}
	for ; next < n; next++ {
		arg(next, fw.top.under(call, idx))
		idx++
	}

	targetLabel, err := s.useFunction(target)
	if err != nil {
		return errorAt(e, "%w", err)
	}
	s.emit(facts.KindCallableBinding, facts.L(call), facts.L(targetLabel))
	return nil
}

// samMember returns the single abstract function of interface c.
func samMember(c *ir.Class) (*ir.Function, bool) {
	var found *ir.Function
	for _, d := range c.Declarations {
		f, ok := d.(*ir.Function)
		if !ok || f.Modality != ir.ModalityAbstract {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = f
	}
	return found, found != nil
}

// extractSamConversion turns a function value converted to a functional
// interface into a generated class that holds the function and forwards
// the interface's abstract method to its invoke.
func (s *Session) extractSamConversion(e *ir.TypeOperatorCall, p exprParent, callable facts.Label) error {
	iface := e.TypeOperand
	ic := iface.Class()
	if ic == nil || !ic.IsInterface() {
		return errorAt(e, "conversion target is not an interface")
	}
	member, ok := samMember(ic)
	if !ok {
		return errorAt(e, "interface %s does not have exactly one abstract member", ic.Name)
	}
	fnValue := e.Argument.Type()

	g, err := s.generateClass([]*ir.Type{ir.ClassType(s.b.Any), iface},
		[]capture{{samFunctionField, fnValue}}, e.Location)
	if err != nil {
		return err
	}

	sub := s.substitutionFor(iface)
	params := signatureParams(member)
	names := make([]string, len(params))
	types := make([]*ir.Type, len(params))
	for i, vp := range params {
		names[i], types[i] = vp.Name, vp.Type
	}
	fw := s.forwardingMethod(g, member.Name, names, types, member.ReturnType, sub, e.Location)

	loc := e.Location
	call := s.w.Fresh()
	s.emitExpr(call, "methodaccess", s.useType(member.ReturnType, sub, modeValue), fw.top, fw.id, loc)
	s.fieldOfThis(g, g.fields[0], s.useType(fnValue, nil, modeValue), fw.top.under(call, -1), fw.id, loc)

	var invoke *ir.Function
	var recv *ir.Type
	if len(params)+1 > s.opts.BigArity {
		invoke = s.b.FunctionN.Member("invoke")
		recv = ir.ClassType(s.b.FunctionN, member.ReturnType)
		arr := s.w.Fresh()
		arrType := s.useType(s.objectArray(), nil, modeValue)
		s.emitExpr(arr, "arraycreationexpr", arrType, fw.top.under(call, 0), fw.id, loc)
		s.typeAccess(ir.ClassType(s.b.Any).WithNullability(true), nil, fw.top.under(arr, -1), fw.id, loc)
		s.intLiteral(len(params), fw.top.under(arr, 0), fw.id, loc)
		init := s.w.Fresh()
		s.emitExpr(init, "arrayinit", arrType, fw.top.under(arr, -2), fw.id, loc)
		for i := range params {
			s.paramAccess(fw, i, fw.top.under(init, i), loc)
		}
	} else {
		invoke = s.b.FunctionK(len(params)).Member("invoke")
		recv = fnValue
		for i := range params {
			s.paramAccess(fw, i, fw.top.under(call, i), loc)
		}
	}
	target, err := s.useCallee(invoke, recv)
	if err != nil {
		return errorAt(e, "%w", err)
	}
	s.emit(facts.KindCallableBinding, facts.L(call), facts.L(target))

	id := s.w.Fresh()
	s.emitExpr(id, "castexpr", s.exprType(e), p, callable, loc)
	s.typeAccess(iface, nil, p.under(id, 0), callable, loc)
	ne := s.w.Fresh()
	s.emitExpr(ne, "newexpr", g.typ, p.under(id, 1), callable, loc)
	s.emit(facts.KindCallableBinding, facts.L(ne), facts.L(g.ctor))
	s.emit(facts.KindIsAnonymClass, facts.L(g.id), facts.L(ne))
	s.typeAccessOf(g.typ, p.under(ne, -3), callable, loc)
	return s.extractExpr(e.Argument, p.under(ne, 0), callable)
}
