package extractor

import (
	"fmt"
	"strings"

	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/ir"
)

// arithmetic maps an operator origin to the operand function it must call
// and the binary node it resugars to.
var arithmetic = map[ir.Origin]struct{ name, kind string }{
	ir.OriginPlus:  {"plus", "addexpr"},
	ir.OriginMinus: {"minus", "subexpr"},
	ir.OriginMul:   {"times", "mulexpr"},
	ir.OriginDiv:   {"div", "divexpr"},
	ir.OriginPerc:  {"rem", "remexpr"},
}

type builtinOp struct {
	origin ir.Origin
	kind   string
	arity  int
}

// intrinsicOps are the kotlin.internal.ir builtins with a dedicated node.
var intrinsicOps = map[string]builtinOp{
	"less":           {ir.OriginLt, "ltexpr", 2},
	"lessOrEqual":    {ir.OriginLtEq, "leexpr", 2},
	"greater":        {ir.OriginGt, "gtexpr", 2},
	"greaterOrEqual": {ir.OriginGtEq, "geexpr", 2},
	"EQEQ":           {ir.OriginEqEq, "valueeqexpr", 2},
	"EQEQEQ":         {ir.OriginEqEqEq, "eqexpr", 2},
	"ieee754equals":  {ir.OriginEqEq, "eqexpr", 2},
	"CHECK_NOT_NULL": {ir.OriginExclExcl, "notnullexpr", 1},
}

// unhandledIntrinsics have no lowering.
var unhandledIntrinsics = map[string]bool{
	"THROW_CCE":                    true,
	"ANDAND":                       true,
	"OROR":                         true,
	"noWhenBranchMatchedException": true,
	"illegalArgumentException":     true,
}

// extractCall lowers a call. Operator calls are resugared into dedicated
// nodes first; whatever is left becomes a methodaccess.
func (s *Session) extractCall(e *ir.Call, p exprParent, callable facts.Label) error {
	f := e.Callee
	if f == nil {
		return errorAt(e, "call has no callee")
	}

	if done, err := s.arithmeticCall(e, p, callable); done {
		return err
	}
	if done, err := s.negatedEquality(e, p, callable); done {
		return err
	}
	if done, err := s.builtinCall(e, p, callable); done {
		return err
	}
	if done, err := s.arrayCall(e, p, callable); done {
		return err
	}
	return s.methodAccess(e, p, callable)
}

func (s *Session) parentClass(f *ir.Function) *ir.Class {
	c, _ := s.parents.Parent(f).(*ir.Class)
	return c
}

func (s *Session) parentPackage(f *ir.Function) *ir.Package {
	pkg, _ := s.parents.Parent(f).(*ir.Package)
	return pkg
}

// binaryOperands returns the two operands of a receiver-plus-one-argument
// call, using the extension receiver when there is no dispatch receiver.
func binaryOperands(e *ir.Call) (ir.Expression, ir.Expression, bool) {
	if len(e.Args) != 1 || e.Args[0] == nil {
		return nil, nil, false
	}
	switch {
	case e.DispatchReceiver != nil && e.ExtensionReceiver == nil:
		return e.DispatchReceiver, e.Args[0], true
	case e.ExtensionReceiver != nil && e.DispatchReceiver == nil:
		return e.ExtensionReceiver, e.Args[0], true
	}
	return nil, nil, false
}

func (s *Session) binary(e ir.Expression, kind string, lhs, rhs ir.Expression, p exprParent, callable facts.Label) error {
	id := s.w.Fresh()
	s.emitExpr(id, kind, s.exprType(e), p, callable, e.Loc())
	if err := s.extractExpr(lhs, p.under(id, 0), callable); err != nil {
		return err
	}
	return s.extractExpr(rhs, p.under(id, 1), callable)
}

func (s *Session) unary(e ir.Expression, kind string, operand ir.Expression, p exprParent, callable facts.Label) error {
	id := s.w.Fresh()
	s.emitExpr(id, kind, s.exprType(e), p, callable, e.Loc())
	return s.extractExpr(operand, p.under(id, 0), callable)
}

// isArithmeticCallee reports whether f is a builtin numeric operator or one
// of the String concatenation functions.
func (s *Session) isArithmeticCallee(f *ir.Function) bool {
	if c := s.parentClass(f); c != nil {
		return s.b.IsNumeric(c) || (c == s.b.String && f.Name == "plus")
	}
	return s.parentPackage(f) == s.b.Kotlin && f.Name == "plus" && f.ExtensionReceiver != nil
}

func (s *Session) arithmeticCall(e *ir.Call, p exprParent, callable facts.Label) (bool, error) {
	f := e.Callee
	if c := s.parentClass(f); c == s.b.Intrinsics && f.Name == "stringPlus" {
		if len(e.Args) != 2 {
			return true, errorAt(e, "stringPlus expects 2 arguments, got %d", len(e.Args))
		}
		return true, s.binary(e, "addexpr", e.Args[0], e.Args[1], p, callable)
	}
	op, ok := arithmetic[e.Origin]
	if !ok || f.Name != op.name || !s.isArithmeticCallee(f) {
		return false, nil
	}
	lhs, rhs, ok := binaryOperands(e)
	if !ok {
		return true, errorAt(e, "%s operator call does not have two operands", f.Name)
	}
	return true, s.binary(e, op.kind, lhs, rhs, p, callable)
}

func (s *Session) isBooleanNot(f *ir.Function) bool {
	return f.Name == "not" && s.parentClass(f) == s.b.Boolean
}

// negatedEquality folds `!(a == b)` written as `a != b` into a single node.
func (s *Session) negatedEquality(e *ir.Call, p exprParent, callable facts.Label) (bool, error) {
	if e.Origin != ir.OriginExclEq && e.Origin != ir.OriginExclEqEq {
		return false, nil
	}
	if !s.isBooleanNot(e.Callee) {
		return false, nil
	}
	inner, ok := e.DispatchReceiver.(*ir.Call)
	if !ok || inner.Callee == nil || s.parentPackage(inner.Callee) != s.b.InternalIR {
		return false, nil
	}
	var kind string
	switch name := inner.Callee.Name; {
	case e.Origin == ir.OriginExclEq && name == "EQEQ":
		kind = "valueneexpr"
	case e.Origin == ir.OriginExclEq && name == "ieee754equals":
		kind = "neexpr"
	case e.Origin == ir.OriginExclEqEq && name == "EQEQEQ":
		kind = "neexpr"
	default:
		return false, nil
	}
	if len(inner.Args) != 2 {
		return true, errorAt(e, "%s expects 2 arguments, got %d", inner.Callee.Name, len(inner.Args))
	}
	return true, s.binary(e, kind, inner.Args[0], inner.Args[1], p, callable)
}

// builtinCall lowers the comparison, equality and null-check intrinsics,
// logical not and the library functions with a Java counterpart.
func (s *Session) builtinCall(e *ir.Call, p exprParent, callable facts.Label) (bool, error) {
	f := e.Callee
	if s.isBooleanNot(f) {
		if e.Origin != ir.OriginExcl {
			return false, nil
		}
		if e.DispatchReceiver == nil || len(e.Args) != 0 {
			return true, errorAt(e, "logical not does not have one operand")
		}
		return true, s.unary(e, "lognotexpr", e.DispatchReceiver, p, callable)
	}

	switch s.parentPackage(f) {
	case s.b.InternalIR:
		return s.intrinsicCall(e, p, callable)
	case s.b.Kotlin:
		switch {
		case f.Name == "toString" && f.ExtensionReceiver != nil:
			return true, s.stringValueOf(e, p, callable)
		case f.Name == "enumValues" || f.Name == "enumValueOf":
			return true, s.enumIntrinsic(e, p, callable)
		}
	}
	return false, nil
}

func (s *Session) intrinsicCall(e *ir.Call, p exprParent, callable facts.Label) (bool, error) {
	f := e.Callee
	if unhandledIntrinsics[f.Name] {
		return true, errorAt(e, "unhandled builtin %s", f.Name)
	}
	op, ok := intrinsicOps[f.Name]
	if !ok {
		return false, nil
	}
	if e.Origin != op.origin {
		s.warn(e, "builtin %s called with origin %q instead of %q", f.Name, e.Origin, op.origin)
		return false, nil
	}
	if len(e.Args) != op.arity {
		return true, errorAt(e, "builtin %s expects %d arguments, got %d", f.Name, op.arity, len(e.Args))
	}
	if op.arity == 1 {
		return true, s.unary(e, op.kind, e.Args[0], p, callable)
	}
	return true, s.binary(e, op.kind, e.Args[0], e.Args[1], p, callable)
}

// stringValueOf lowers the toString extension to String.valueOf(x).
func (s *Session) stringValueOf(e *ir.Call, p exprParent, callable facts.Label) error {
	valueOf := s.b.JavaString.Member("valueOf")
	if valueOf == nil {
		return errorAt(e, "java.lang.String has no valueOf")
	}
	id := s.w.Fresh()
	s.emitExpr(id, "methodaccess", s.exprType(e), p, callable, e.Location)
	s.typeAccessOf(s.classResult(s.b.JavaString), p.under(id, -1), callable, e.Location)
	if err := s.extractExpr(e.ExtensionReceiver, p.under(id, 0), callable); err != nil {
		return err
	}
	target, err := s.useFunction(valueOf)
	if err != nil {
		return errorAt(e, "%w", err)
	}
	s.emit(facts.KindCallableBinding, facts.L(id), facts.L(target))
	return nil
}

// enumIntrinsic lowers enumValues<T>() and enumValueOf<T>(name) to the
// static values and valueOf functions of T.
func (s *Session) enumIntrinsic(e *ir.Call, p exprParent, callable facts.Label) error {
	if len(e.TypeArgs) != 1 || e.TypeArgs[0].Class() == nil || !e.TypeArgs[0].Class().IsEnum() {
		return errorAt(e, "%s needs an enum class type argument", e.Callee.Name)
	}
	enum := e.TypeArgs[0].Class()
	name := "values"
	if e.Callee.Name == "enumValueOf" {
		name = "valueOf"
	}
	target := enum.Member(name)
	if target == nil {
		return errorAt(e, "enum %s has no %s function", enum.Name, name)
	}
	id := s.w.Fresh()
	s.emitExpr(id, "methodaccess", s.exprType(e), p, callable, e.Location)
	s.typeAccess(ir.ClassType(enum), nil, p.under(id, -1), callable, e.Location)
	if _, err := s.extractArgs(e.Args, p.under(id, 0), 0, callable); err != nil {
		return err
	}
	l, err := s.useFunction(target)
	if err != nil {
		return errorAt(e, "%w", err)
	}
	s.emit(facts.KindCallableBinding, facts.L(id), facts.L(l))
	return nil
}

func isArrayClass(c *ir.Class) bool {
	return c != nil && (c.IsArray || c.PrimitiveArrayOf != "")
}

// arrayCall lowers array element access and the array constructor
// functions.
func (s *Session) arrayCall(e *ir.Call, p exprParent, callable facts.Label) (bool, error) {
	f := e.Callee
	if c := s.parentClass(f); isArrayClass(c) && e.DispatchReceiver != nil {
		switch {
		case f.Name == "get" && len(e.Args) == 1:
			return true, s.binary(e, "arrayaccess", e.DispatchReceiver, e.Args[0], p, callable)
		case f.Name == "set" && len(e.Args) == 2:
			id := s.w.Fresh()
			s.emitExpr(id, "assignexpr", s.useType(e.Args[1].Type(), nil, modeValue), p, callable, e.Location)
			acc := s.w.Fresh()
			s.emitExpr(acc, "arrayaccess", s.useType(e.Args[1].Type(), nil, modeValue), p.under(id, 0), callable, e.Location)
			if err := s.extractExpr(e.DispatchReceiver, p.under(acc, 0), callable); err != nil {
				return true, err
			}
			if err := s.extractExpr(e.Args[0], p.under(acc, 1), callable); err != nil {
				return true, err
			}
			return true, s.extractExpr(e.Args[1], p.under(id, 1), callable)
		}
		return false, nil
	}
	if s.parentPackage(f) != s.b.Kotlin {
		return false, nil
	}
	switch {
	case f.Name == "arrayOfNulls":
		if len(e.Args) != 1 || len(e.TypeArgs) != 1 {
			return true, errorAt(e, "arrayOfNulls expects one size argument and one type argument")
		}
		id := s.w.Fresh()
		s.emitExpr(id, "arraycreationexpr", s.exprType(e), p, callable, e.Location)
		s.typeAccess(e.TypeArgs[0].WithNullability(true), nil, p.under(id, -1), callable, e.Location)
		return true, s.extractExpr(e.Args[0], p.under(id, 0), callable)
	case f.Name == "arrayOf" || strings.HasSuffix(f.Name, "ArrayOf"):
		return true, s.arrayOf(e, p, callable)
	}
	return false, nil
}

// arrayOf lowers arrayOf(a, b) to an array creation with an initializer,
// and arrayOf(*xs) to xs.clone().
func (s *Session) arrayOf(e *ir.Call, p exprParent, callable facts.Label) error {
	f := e.Callee
	if len(e.Args) != 1 || len(f.ValueParameters) != 1 {
		return errorAt(e, "%s expects one vararg argument", f.Name)
	}
	var elems []ir.Expression
	switch a := e.Args[0].(type) {
	case *ir.Vararg:
		if len(a.Elements) == 1 {
			if sp, ok := a.Elements[0].(*ir.Spread); ok {
				return s.cloneArray(e, sp.Expression, p, callable)
			}
		}
		elems = a.Elements
	case nil:
	default:
		return errorAt(e, "%s argument is not a vararg", f.Name)
	}

	elemType := f.ValueParameters[0].VarargElementType
	if len(e.TypeArgs) == 1 {
		elemType = e.TypeArgs[0]
	}
	id := s.w.Fresh()
	s.emitExpr(id, "arraycreationexpr", s.exprType(e), p, callable, e.Location)
	s.typeAccess(elemType, nil, p.under(id, -1), callable, e.Location)
	s.intLiteral(len(elems), p.under(id, 0), callable, e.Location)
	init := s.w.Fresh()
	s.emitExpr(init, "arrayinit", s.exprType(e), p.under(id, -2), callable, e.Location)
	for i, el := range elems {
		if _, ok := el.(*ir.Spread); ok {
			return errorAt(el, "spread mixed with other elements")
		}
		if err := s.extractExpr(el, p.under(init, i), callable); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) cloneArray(e *ir.Call, arr ir.Expression, p exprParent, callable facts.Label) error {
	c := e.Type().Class()
	if !isArrayClass(c) {
		return errorAt(e, "%s does not return an array", e.Callee.Name)
	}
	clone := c.Member("clone")
	if clone == nil {
		return errorAt(e, "%s has no clone function", c.Name)
	}
	id := s.w.Fresh()
	s.emitExpr(id, "methodaccess", s.exprType(e), p, callable, e.Location)
	if err := s.extractExpr(arr, p.under(id, -1), callable); err != nil {
		return err
	}
	target, err := s.useCallee(clone, arr.Type())
	if err != nil {
		return errorAt(e, "%w", err)
	}
	s.emit(facts.KindCallableBinding, facts.L(id), facts.L(target))
	return nil
}

// methodAccess is the default call lowering.
func (s *Session) methodAccess(e *ir.Call, p exprParent, callable facts.Label) error {
	f := e.Callee
	id := s.w.Fresh()
	s.emitExpr(id, "methodaccess", s.exprType(e), p, callable, e.Location)

	for i, ta := range e.TypeArgs {
		s.typeAccess(ta, nil, p.under(id, -2-i), callable, e.Location)
	}

	var recvType *ir.Type
	switch g, local := s.genClassOf[f]; {
	case local && f.IsLocal():
		s.newGenerated(g, p.under(id, -1), callable, e.Location)
	case e.DispatchReceiver != nil:
		recvType = e.DispatchReceiver.Type()
		if err := s.extractExpr(e.DispatchReceiver, p.under(id, -1), callable); err != nil {
			return err
		}
	case f.DispatchReceiver == nil:
		owner, err := s.functionParent(f)
		if err != nil {
			return errorAt(e, "%w", err)
		}
		s.typeAccessOf(s.classType(owner), p.under(id, -1), callable, e.Location)
	}

	idx := 0
	if e.ExtensionReceiver != nil {
		if err := s.extractExpr(e.ExtensionReceiver, p.under(id, 0), callable); err != nil {
			return err
		}
		idx = 1
	}
	if _, err := s.extractArgs(e.Args, p.under(id, 0), idx, callable); err != nil {
		return err
	}

	target, err := s.useCallee(f, recvType)
	if err != nil {
		return errorAt(e, "%w", err)
	}
	s.emit(facts.KindCallableBinding, facts.L(id), facts.L(target))
	return nil
}

// newGenerated emits an instantiation of a generated class with no
// captures, as used for calls to local functions.
func (s *Session) newGenerated(g *generated, p exprParent, callable facts.Label, loc ir.Location) facts.Label {
	id := s.w.Fresh()
	s.emitExpr(id, "newexpr", g.typ, p, callable, loc)
	s.emit(facts.KindCallableBinding, facts.L(id), facts.L(g.ctor))
	s.typeAccessOf(g.typ, p.under(id, -3), callable, loc)
	return id
}

// extractArgs lowers call arguments from index start under p.parent.
// Vararg arguments are flattened into the list, spreads contribute their
// operand, and omitted arguments take no index. It returns the next free
// index.
func (s *Session) extractArgs(args []ir.Expression, p exprParent, start int, callable facts.Label) (int, error) {
	idx := start
	lower := func(a ir.Expression) error {
		if sp, ok := a.(*ir.Spread); ok {
			a = sp.Expression
		}
		err := s.extractExpr(a, p.under(p.parent, idx), callable)
		idx++
		return err
	}
	for _, a := range args {
		switch a := a.(type) {
		case nil:
		case *ir.Vararg:
			for _, el := range a.Elements {
				if err := lower(el); err != nil {
					return idx, err
				}
			}
		default:
			if err := lower(a); err != nil {
				return idx, err
			}
		}
	}
	return idx, nil
}

// useCallee returns the label of f as seen through a receiver of type
// recv. A member of a parameterized instantiation gets its own specialised
// stub whose source is the generic declaration.
func (s *Session) useCallee(f *ir.Function, recv *ir.Type) (facts.Label, error) {
	generic, err := s.useFunction(f)
	if err != nil {
		return 0, err
	}
	owner := s.parentClass(f)
	if recv == nil || owner == nil || recv.Class() != owner || len(owner.TypeParameters) == 0 || recv.IsUnspecialised() {
		return generic, nil
	}
	sub := s.substitutionFor(recv)
	ownerType := s.useType(recv, nil, modeValue)
	id := s.w.Label(s.functionKey(ownerType.id, f.Name, f, sub))

	ret := s.useType(f.ReturnType, sub, modeReturn)
	kind, kotlinKind, name := facts.KindMethods, facts.KindMethodsKotlinType, f.Name
	if f.IsConstructor {
		kind, kotlinKind, name = facts.KindConstrs, facts.KindConstrsKotlinType, owner.Name
		ret = s.useType(nil, nil, modeReturn)
	}
	s.emit(kind, facts.L(id), facts.S(name), facts.S(s.signature(name, f, sub)),
		facts.L(ret.id), facts.L(ownerType.id), facts.L(generic))
	s.emit(kotlinKind, facts.L(id), facts.L(ret.kotlin))
	for i, p := range signatureParams(f) {
		t := s.useType(p.Type, sub, modeValue)
		pid := s.w.Label(paramKey(id, i))
		s.emit(facts.KindParams, facts.L(pid), facts.L(t.id), facts.I(i), facts.L(id),
			facts.L(s.w.Label(paramKey(generic, i))))
		s.emit(facts.KindParamsKotlinType, facts.L(pid), facts.L(t.kotlin))
	}
	return id, nil
}

// signature renders name(T1,T2) over the erased parameter types.
func (s *Session) signature(name string, f *ir.Function, sub *substitution) string {
	var params []string
	for _, p := range signatureParams(f) {
		params = append(params, s.useType(p.Type, sub, modeErased).name)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(params, ","))
}
