package extractor

import (
	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/ir"
)

// extractBody lowers a function body under callable.
func (s *Session) extractBody(b ir.Body, callable facts.Label) error {
	root := stmtParent{parent: callable, idx: 0}
	switch b := b.(type) {
	case *ir.BlockBody:
		return s.extractStatements(b.Statements, b.Location, root, callable)
	case *ir.ExpressionBody:
		block := s.w.Fresh()
		s.emitStmt(block, "block", root, callable, b.Location)
		ret := s.w.Fresh()
		s.emitStmt(ret, "returnstmt", stmtParent{parent: block, idx: 0}, callable, b.Location)
		return s.extractExpr(b.Expression, exprParent{parent: ret, idx: 0, stmt: ret}, callable)
	case *ir.SyntheticBody:
		s.emit(facts.KindKtSyntheticBody, facts.L(callable), facts.I(int(b.Kind)))
		return nil
	case nil:
		return nil
	}
	return errorAt(b, "unsupported body %T", b)
}

// extractStatements lowers stmts as a block at p. Each statement is guarded
// on its own, so one malformed statement drops only itself.
func (s *Session) extractStatements(stmts []ir.Statement, loc ir.Location, p stmtParent, callable facts.Label) error {
	block := s.w.Fresh()
	s.emitStmt(block, "block", p, callable, loc)
	for i, st := range stmts {
		child := stmtParent{parent: block, idx: i}
		if err := s.guard(st, func() error { return s.extractStatement(st, child, callable) }); err != nil {
			return err
		}
	}
	return nil
}

// extractStatement lowers one member of a block.
func (s *Session) extractStatement(st ir.Statement, p slot, callable facts.Label) error {
	switch st := st.(type) {
	case *ir.Variable:
		return s.extractVariable(st, p.asStmt(s, st.Location, callable), callable)
	case *ir.Class:
		return s.extractLocalClass(st, p.asStmt(s, st.Location, callable), callable)
	case *ir.Function:
		return s.extractLocalFunction(st, p.asStmt(s, st.Location, callable), callable)
	case *ir.LocalDelegatedProperty:
		return errorAt(st, "local delegated property %s is not supported", st.Name)
	case ir.Expression:
		return s.extractExpr(st, p, callable)
	}
	return errorAt(st, "unsupported statement %T", st)
}

func (s *Session) extractVariable(v *ir.Variable, p stmtParent, callable facts.Label) error {
	stmt := s.w.Fresh()
	s.emitStmt(stmt, "localvariabledeclstmt", p, callable, v.Location)
	_, err := s.variableDecl(v, exprParent{parent: stmt, idx: 1, stmt: stmt}, callable)
	return err
}

// variableDecl emits the declaration expression of v at p, with the
// initializer below it.
func (s *Session) variableDecl(v *ir.Variable, p exprParent, callable facts.Label) (facts.Label, error) {
	t := s.useType(v.Type, nil, modeValue)
	decl := s.w.Fresh()
	s.emitExpr(decl, "localvariabledeclexpr", t, p, callable, v.Location)

	id := s.useVariable(v)
	s.emit(facts.KindLocalVars, facts.L(id), facts.S(v.Name), facts.L(t.id), facts.L(decl))
	s.emit(facts.KindLocalVarsKotlinType, facts.L(id), facts.L(t.kotlin))
	s.emitLocation(id, v.Location)

	if v.Initializer != nil {
		if err := s.extractExpr(v.Initializer, p.under(decl, 0), callable); err != nil {
			return 0, err
		}
	}
	return decl, nil
}

func (s *Session) extractLocalClass(c *ir.Class, p stmtParent, callable facts.Label) error {
	stmt := s.w.Fresh()
	s.emitStmt(stmt, "localtypedeclstmt", p, callable, c.Location)
	s.emit(facts.KindIsLocalClass, facts.L(s.useClass(c)), facts.L(stmt))
	return s.extractClass(c)
}

// extractLocalFunction wraps a local function in a generated class so that
// it becomes an ordinary method. Calls to it instantiate that class.
func (s *Session) extractLocalFunction(f *ir.Function, p stmtParent, callable facts.Label) error {
	g, err := s.generateClass([]*ir.Type{ir.ClassType(s.b.Any)}, nil, f.Location)
	if err != nil {
		return err
	}
	s.genClassOf[f] = g
	s.remember(func() { delete(s.genClassOf, f) })

	stmt := s.w.Fresh()
	s.emitStmt(stmt, "localtypedeclstmt", p, callable, f.Location)
	s.emit(facts.KindIsLocalClass, facts.L(g.id), facts.L(stmt))

	id, err := s.useFunction(f)
	if err != nil {
		return err
	}
	s.emit(facts.KindKtLocalFunction, facts.L(id))
	return s.extractFunctionAs(f, id, f.Name, g.id)
}

// extractStatementExpr lowers the expressions that are statements in the
// output: blocks, loops, jumps, try and delegating constructor calls.
func (s *Session) extractStatementExpr(e ir.Expression, p slot, callable facts.Label) (bool, error) {
	switch e := e.(type) {
	case *ir.Block:
		sp := p.asStmt(s, e.Location, callable)
		return true, s.extractStatements(e.Statements, e.Location, sp, callable)
	case *ir.WhileLoop:
		return true, s.extractLoop(e, "whilestmt", p.asStmt(s, e.Location, callable), callable)
	case *ir.DoWhileLoop:
		return true, s.extractLoop(e, "dostmt", p.asStmt(s, e.Location, callable), callable)
	case *ir.Break:
		return true, s.extractJump(e, e.Loop, "breakstmt", p.asStmt(s, e.Location, callable), callable)
	case *ir.Continue:
		return true, s.extractJump(e, e.Loop, "continuestmt", p.asStmt(s, e.Location, callable), callable)
	case *ir.Return:
		sp := p.asStmt(s, e.Location, callable)
		id := s.w.Fresh()
		s.emitStmt(id, "returnstmt", sp, callable, e.Location)
		if e.Value == nil {
			return true, nil
		}
		return true, s.extractExpr(e.Value, exprParent{parent: id, idx: 0, stmt: id}, callable)
	case *ir.Throw:
		sp := p.asStmt(s, e.Location, callable)
		id := s.w.Fresh()
		s.emitStmt(id, "throwstmt", sp, callable, e.Location)
		return true, s.extractExpr(e.Value, exprParent{parent: id, idx: 0, stmt: id}, callable)
	case *ir.Try:
		return true, s.extractTry(e, p.asStmt(s, e.Location, callable), callable)
	case *ir.DelegatingConstructorCall:
		return true, s.extractDelegatingCall(e, p.asStmt(s, e.Location, callable), callable)
	}
	return false, nil
}

func (s *Session) extractLoop(l ir.Loop, kind string, p stmtParent, callable facts.Label) error {
	id := s.w.Fresh()
	s.emitStmt(id, kind, p, callable, l.Loc())
	s.loops[l] = id
	if err := s.extractExpr(l.LoopCondition(), exprParent{parent: id, idx: 0, stmt: id}, callable); err != nil {
		return err
	}
	if l.LoopBody() == nil {
		return nil
	}
	return s.extractExpr(l.LoopBody(), stmtParent{parent: id, idx: 1}, callable)
}

func (s *Session) extractJump(n ir.Node, target ir.Loop, kind string, p stmtParent, callable facts.Label) error {
	loop, ok := s.loops[target]
	if !ok {
		return errorAt(n, "%s has no enclosing loop", kind)
	}
	id := s.w.Fresh()
	s.emitStmt(id, kind, p, callable, n.Loc())
	s.emit(facts.KindBreakContinueTargets, facts.L(id), facts.L(loop))
	return nil
}

func (s *Session) extractTry(t *ir.Try, p stmtParent, callable facts.Label) error {
	id := s.w.Fresh()
	s.emitStmt(id, "trystmt", p, callable, t.Location)
	if err := s.extractExpr(t.TryResult, stmtParent{parent: id, idx: -1}, callable); err != nil {
		return err
	}
	for i, c := range t.Catches {
		cc := s.w.Fresh()
		s.emitStmt(cc, "catchclause", stmtParent{parent: id, idx: i}, callable, c.Location)
		if c.Parameter != nil {
			s.typeAccess(c.Parameter.Type, nil, exprParent{parent: cc, idx: -1, stmt: cc}, callable, c.Location)
			if _, err := s.variableDecl(c.Parameter, exprParent{parent: cc, idx: 0, stmt: cc}, callable); err != nil {
				return err
			}
		}
		if c.Result != nil {
			if err := s.extractExpr(c.Result, stmtParent{parent: cc, idx: 1}, callable); err != nil {
				return err
			}
		}
	}
	if t.Finally != nil {
		return s.extractExpr(t.Finally, stmtParent{parent: id, idx: -2}, callable)
	}
	return nil
}

// extractDelegatingCall lowers this(...) and super(...). The call targets
// a superclass constructor exactly when the callee's class is not the class
// being extracted.
func (s *Session) extractDelegatingCall(e *ir.DelegatingConstructorCall, p stmtParent, callable facts.Label) error {
	if e.Callee == nil {
		return errorAt(e, "delegating constructor call has no callee")
	}
	target, _ := s.parents.Parent(e.Callee).(*ir.Class)
	kind := "constructorinvocationstmt"
	if target != s.currentClass() {
		kind = "superconstructorinvocationstmt"
	}
	id := s.w.Fresh()
	s.emitStmt(id, kind, p, callable, e.Location)

	if e.DispatchReceiver != nil {
		if err := s.extractExpr(e.DispatchReceiver, exprParent{parent: id, idx: -1, stmt: id}, callable); err != nil {
			return err
		}
	}
	if _, err := s.extractArgs(e.Args, exprParent{parent: id, stmt: id}, 0, callable); err != nil {
		return err
	}
	callee, err := s.useCallee(e.Callee, s.delegationType(target))
	if err != nil {
		return errorAt(e, "%w", err)
	}
	s.emit(facts.KindCallableBinding, facts.L(id), facts.L(callee))
	return nil
}

// delegationType returns the type the current class uses target at: one of
// its supertypes, or its own type.
func (s *Session) delegationType(target *ir.Class) *ir.Type {
	cur := s.currentClass()
	if cur == nil || target == nil {
		return nil
	}
	if target == cur {
		if cur.ThisReceiver == nil {
			return nil
		}
		return cur.ThisReceiver.Type
	}
	for _, st := range cur.SuperTypes {
		if st.Class() == target {
			return st
		}
	}
	return nil
}
