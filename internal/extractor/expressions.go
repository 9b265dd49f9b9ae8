package extractor

import (
	"fmt"
	"strconv"

	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/ir"
)

var literalKinds = map[ir.ConstKind]string{
	ir.ConstInt:     "integerliteral",
	ir.ConstShort:   "integerliteral",
	ir.ConstByte:    "integerliteral",
	ir.ConstLong:    "longliteral",
	ir.ConstFloat:   "floatingpointliteral",
	ir.ConstDouble:  "doubleliteral",
	ir.ConstBoolean: "booleanliteral",
	ir.ConstChar:    "characterliteral",
	ir.ConstString:  "stringliteral",
	ir.ConstNull:    "nullliteral",
}

var compoundAssignments = map[ir.Origin]struct{ op, kind string }{
	ir.OriginPlusEq:  {"plus", "assignaddexpr"},
	ir.OriginMinusEq: {"minus", "assignsubexpr"},
	ir.OriginMultEq:  {"times", "assignmulexpr"},
	ir.OriginDivEq:   {"div", "assigndivexpr"},
	ir.OriginPercEq:  {"rem", "assignremexpr"},
}

var typeOperatorKinds = map[ir.TypeOperator]string{
	ir.OpCast:            "castexpr",
	ir.OpImplicitCast:    "implicitcastexpr",
	ir.OpImplicitNotNull: "implicitnotnullexpr",
	ir.OpCoercionToUnit:  "implicitcoerciontounitexpr",
	ir.OpSafeCast:        "safecastexpr",
	ir.OpInstanceOf:      "instanceofexpr",
	ir.OpNotInstanceOf:   "notinstanceofexpr",
}

// extractExpr lowers e into slot p.
func (s *Session) extractExpr(e ir.Expression, p slot, callable facts.Label) error {
	if e == nil {
		return nil
	}
	if ok, err := s.extractStatementExpr(e, p, callable); ok {
		return err
	}
	ep := p.asExpr(s, e.Loc(), callable)

	switch e := e.(type) {
	case *ir.Const:
		s.literal(e, ep, callable)
		return nil
	case *ir.Call:
		return s.extractCall(e, ep, callable)
	case *ir.ConstructorCall:
		return s.extractConstructorCall(e, ep, callable)
	case *ir.InstanceInitializerCall:
		return s.extractInstanceInitializerCall(e, ep, callable)
	case *ir.GetValue:
		return s.valueAccess(e.Symbol, e.Type(), ep, callable, e.Location)
	case *ir.SetValue:
		return s.extractSetValue(e, ep, callable)
	case *ir.GetField:
		return s.fieldAccess(e.Field, e.Receiver, e.Type(), ep, callable, e.Location)
	case *ir.SetField:
		if e.Field == nil {
			return errorAt(e, "field write has no field")
		}
		id := s.w.Fresh()
		s.emitExpr(id, "assignexpr", s.exprType(e), ep, callable, e.Location)
		if err := s.fieldAccess(e.Field, e.Receiver, e.Field.Type, ep.under(id, 0), callable, e.Location); err != nil {
			return err
		}
		return s.extractExpr(e.Value, ep.under(id, 1), callable)
	case *ir.GetEnumValue:
		return s.extractEnumValue(e, ep, callable)
	case *ir.GetObjectValue:
		return s.extractObjectValue(e, ep, callable)
	case *ir.StringConcatenation:
		id := s.w.Fresh()
		s.emitExpr(id, "stringtemplateexpr", s.exprType(e), ep, callable, e.Location)
		for i, a := range e.Args {
			if err := s.extractExpr(a, ep.under(id, i), callable); err != nil {
				return err
			}
		}
		return nil
	case *ir.When:
		return s.extractWhen(e, ep, callable)
	case *ir.TypeOperatorCall:
		return s.extractTypeOperator(e, ep, callable)
	case *ir.GetClass:
		id := s.w.Fresh()
		s.emitExpr(id, "getclassexpr", s.exprType(e), ep, callable, e.Location)
		return s.extractExpr(e.Argument, ep.under(id, 0), callable)
	case *ir.ClassReference:
		id := s.w.Fresh()
		s.emitExpr(id, "typeliteral", s.exprType(e), ep, callable, e.Location)
		s.typeAccess(e.ClassType, nil, ep.under(id, 0), callable, e.Location)
		return nil
	case *ir.FunctionExpression:
		return s.extractLambda(e, ep, callable)
	case *ir.FunctionReference:
		return s.extractFunctionReference(e, ep, callable)
	case *ir.PropertyReference:
		return errorAt(e, "property references are not supported")
	case *ir.Vararg:
		return errorAt(e, "vararg outside of a call argument list")
	case *ir.Spread:
		return errorAt(e, "spread outside of a vararg")
	case *ir.Unsupported:
		return errorAt(e, "unsupported expression kind %s", e.Kind)
	}
	return errorAt(e, "unsupported expression %T", e)
}

func (s *Session) exprType(e ir.Expression) typeResult {
	return s.useType(e.Type(), nil, modeValue)
}

func (s *Session) literal(c *ir.Const, p exprParent, callable facts.Label) facts.Label {
	id := s.w.Fresh()
	s.emitExpr(id, literalKinds[c.Kind], s.exprType(c), p, callable, c.Location)
	if c.Kind != ir.ConstNull {
		s.emit(facts.KindNamestrings, facts.S(c.Value), facts.S(c.Value), facts.L(id))
	}
	return id
}

// intLiteral emits a synthesized integer constant.
func (s *Session) intLiteral(v int, p exprParent, callable facts.Label, loc ir.Location) facts.Label {
	text := strconv.Itoa(v)
	id := s.w.Fresh()
	s.emitExpr(id, "integerliteral", s.useType(ir.ClassType(s.b.Int), nil, modeValue), p, callable, loc)
	s.emit(facts.KindNamestrings, facts.S(text), facts.S(text), facts.L(id))
	return id
}

// receiverClass returns the class a receiver parameter denotes, or nil when
// sym is an ordinary value.
func (s *Session) receiverClass(sym ir.ValueDeclaration) *ir.Class {
	p, ok := sym.(*ir.ValueParameter)
	if !ok {
		return nil
	}
	switch owner := s.parents.Parent(p).(type) {
	case *ir.Class:
		if owner.ThisReceiver == p {
			return owner
		}
	case *ir.Function:
		if owner.DispatchReceiver == p {
			return p.Type.Class()
		}
	}
	return nil
}

// valueAccess reads a variable, a parameter or a receiver.
func (s *Session) valueAccess(sym ir.ValueDeclaration, t *ir.Type, p exprParent, callable facts.Label, loc ir.Location) error {
	if c := s.receiverClass(sym); c != nil {
		s.thisAccess(c, t, p, callable, loc)
		return nil
	}
	target, err := s.valueLabel(sym)
	if err != nil {
		return err
	}
	id := s.w.Fresh()
	s.emitExpr(id, "varaccess", s.useType(t, nil, modeValue), p, callable, loc)
	s.emit(facts.KindVariableBinding, facts.L(id), facts.L(target))
	return nil
}

// thisAccess emits a `this` of class c. A receiver that is not the
// innermost class gets a qualifying type access.
func (s *Session) thisAccess(c *ir.Class, t *ir.Type, p exprParent, callable facts.Label, loc ir.Location) facts.Label {
	id := s.w.Fresh()
	s.emitExpr(id, "thisaccess", s.useType(t, nil, modeValue), p, callable, loc)
	if cl := s.useClass(c); cl != s.currentThisClass() {
		s.typeAccessOf(s.classType(cl), p.under(id, 0), callable, loc)
	}
	return id
}

// valueLabel returns the declaration a varaccess binds to.
func (s *Session) valueLabel(sym ir.ValueDeclaration) (facts.Label, error) {
	switch sym := sym.(type) {
	case *ir.Variable:
		return s.useVariable(sym), nil
	case *ir.ValueParameter:
		fn, ok := s.parents.Parent(sym).(*ir.Function)
		if !ok {
			return 0, errorAt(sym, "parameter %s has no enclosing function", sym.Name)
		}
		return s.useParam(fn, sym)
	case nil:
		return 0, fmt.Errorf("value access has no symbol")
	}
	return 0, fmt.Errorf("unsupported value %T", sym)
}

// extractSetValue lowers an assignment, resugaring `v = v.op(x)` written
// as `v op= x` into a compound assignment.
func (s *Session) extractSetValue(e *ir.SetValue, p exprParent, callable facts.Label) error {
	kind, rhs := "assignexpr", e.Value
	if ca, ok := compoundAssignments[e.Origin]; ok {
		if call, ok := e.Value.(*ir.Call); ok && s.isNumericOperator(call, ca.op) {
			if gv, ok := call.DispatchReceiver.(*ir.GetValue); ok && gv.Symbol == e.Symbol {
				kind, rhs = ca.kind, call.Args[0]
			}
		}
	}
	id := s.w.Fresh()
	lhsType := e.Type()
	if v, ok := e.Symbol.(*ir.Variable); ok {
		lhsType = v.Type
	}
	s.emitExpr(id, kind, s.useType(lhsType, nil, modeValue), p, callable, e.Location)
	if err := s.valueAccess(e.Symbol, lhsType, p.under(id, 0), callable, e.Location); err != nil {
		return err
	}
	return s.extractExpr(rhs, p.under(id, 1), callable)
}

// isNumericOperator reports whether call is the builtin operator op of a
// numeric class. User-defined operators stay calls.
func (s *Session) isNumericOperator(call *ir.Call, op string) bool {
	f := call.Callee
	return f != nil && f.Name == op && len(call.Args) == 1 && s.b.IsNumeric(s.parentClass(f))
}

// fieldAccess emits a read of fld. Static fields are qualified by their
// owner type.
func (s *Session) fieldAccess(fld *ir.Field, recv ir.Expression, t *ir.Type, p exprParent, callable facts.Label, loc ir.Location) error {
	if fld == nil {
		return fmt.Errorf("field access has no field")
	}
	target, err := s.useField(fld)
	if err != nil {
		return err
	}
	id := s.w.Fresh()
	s.emitExpr(id, "varaccess", s.useType(t, nil, modeValue), p, callable, loc)
	s.emit(facts.KindVariableBinding, facts.L(id), facts.L(target))
	if recv != nil {
		return s.extractExpr(recv, p.under(id, -1), callable)
	}
	owner, err := s.ownerLabel(s.parents.Parent(fld))
	if err != nil {
		return err
	}
	s.typeAccessOf(s.classType(owner), p.under(id, -1), callable, loc)
	return nil
}

func (s *Session) extractEnumValue(e *ir.GetEnumValue, p exprParent, callable facts.Label) error {
	c, ok := s.parents.Parent(e.Entry).(*ir.Class)
	if !ok {
		return errorAt(e, "enum entry %s has no enum class", e.Entry.Name)
	}
	cl := s.useClass(c)
	id := s.w.Fresh()
	s.emitExpr(id, "varaccess", s.exprType(e), p, callable, e.Location)
	s.emit(facts.KindVariableBinding, facts.L(id), facts.L(s.w.Label(fieldKey(cl, e.Entry.Name))))
	s.typeAccess(ir.ClassType(c), nil, p.under(id, -1), callable, e.Location)
	return nil
}

// extractObjectValue reads an object through its INSTANCE field, and a
// companion through the field named after it on the outer class.
func (s *Session) extractObjectValue(e *ir.GetObjectValue, p exprParent, callable facts.Label) error {
	c := e.Class
	if c == nil {
		return errorAt(e, "object access has no class")
	}
	holder, name := c, "INSTANCE"
	if c.IsCompanion {
		outer, ok := s.parents.Parent(c).(*ir.Class)
		if !ok {
			return errorAt(e, "companion %s has no outer class", c.Name)
		}
		holder, name = outer, c.Name
	}
	id := s.w.Fresh()
	s.emitExpr(id, "varaccess", s.exprType(e), p, callable, e.Location)
	s.emit(facts.KindVariableBinding, facts.L(id), facts.L(s.w.Label(fieldKey(s.useClass(holder), name))))
	s.typeAccessOf(s.classType(s.useClass(holder)), p.under(id, -1), callable, e.Location)
	return nil
}

func (s *Session) extractWhen(e *ir.When, p exprParent, callable facts.Label) error {
	id := s.w.Fresh()
	s.emitExpr(id, "whenexpr", s.exprType(e), p, callable, e.Location)
	if e.Origin == ir.OriginIf {
		s.emit(facts.KindWhenIf, facts.L(id))
	}
	for i, b := range e.Branches {
		br := s.w.Fresh()
		s.emitStmt(br, "whenbranch", stmtParent{parent: id, idx: i}, callable, b.Location)
		if b.IsElse {
			s.emit(facts.KindWhenBranchElse, facts.L(br))
		}
		if err := s.extractExpr(b.Condition, exprParent{parent: br, idx: 0, stmt: br}, callable); err != nil {
			return err
		}
		if err := s.extractExpr(b.Result, stmtParent{parent: br, idx: 1}, callable); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) extractTypeOperator(e *ir.TypeOperatorCall, p exprParent, callable facts.Label) error {
	if e.Operator == ir.OpSamConversion {
		return s.extractSamConversion(e, p, callable)
	}
	kind, ok := typeOperatorKinds[e.Operator]
	if !ok {
		return errorAt(e, "unsupported type operator %s", e.Operator)
	}
	id := s.w.Fresh()
	s.emitExpr(id, kind, s.exprType(e), p, callable, e.Location)
	typeIdx, argIdx := 0, 1
	if e.Operator == ir.OpInstanceOf || e.Operator == ir.OpNotInstanceOf {
		typeIdx, argIdx = 1, 0
	}
	s.typeAccess(e.TypeOperand, nil, p.under(id, typeIdx), callable, e.Location)
	return s.extractExpr(e.Argument, p.under(id, argIdx), callable)
}

func (s *Session) extractConstructorCall(e *ir.ConstructorCall, p exprParent, callable facts.Label) error {
	if e.Callee == nil {
		return errorAt(e, "constructor call has no callee")
	}
	c, ok := s.parents.Parent(e.Callee).(*ir.Class)
	if !ok {
		return errorAt(e, "constructor %s has no class", e.Callee.Name)
	}
	id := s.w.Fresh()
	s.emitExpr(id, "newexpr", s.exprType(e), p, callable, e.Location)
	if _, err := s.extractArgs(e.Args, p.under(id, 0), 0, callable); err != nil {
		return err
	}
	if e.DispatchReceiver != nil {
		if err := s.extractExpr(e.DispatchReceiver, p.under(id, -2), callable); err != nil {
			return err
		}
	}
	s.typeAccess(e.Type(), nil, p.under(id, -3), callable, e.Location)
	callee, err := s.useCallee(e.Callee, e.Type())
	if err != nil {
		return errorAt(e, "%w", err)
	}
	s.emit(facts.KindCallableBinding, facts.L(id), facts.L(callee))
	if c.IsAnonymous {
		s.emit(facts.KindIsAnonymClass, facts.L(s.useClass(c)), facts.L(id))
	}
	return nil
}

// extractInstanceInitializerCall runs the class's field initializers and
// init blocks through a call to its object-init method.
func (s *Session) extractInstanceInitializerCall(e *ir.InstanceInitializerCall, p exprParent, callable facts.Label) error {
	if e.Class == nil {
		return errorAt(e, "instance initializer call has no class")
	}
	id := s.w.Fresh()
	s.emitExpr(id, "methodaccess", s.useType(nil, nil, modeReturn), p, callable, e.Location)
	s.emit(facts.KindCallableBinding, facts.L(id), facts.L(s.initLabel(s.useClass(e.Class), obinitName)))
	return nil
}
