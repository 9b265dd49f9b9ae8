package extractor

import (
	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/ir"
)

// stmtParent is a slot that takes a statement.
type stmtParent struct {
	parent facts.Label
	idx    int
}

// exprParent is a slot that takes an expression. stmt is the statement the
// slot is ultimately nested in.
type exprParent struct {
	parent facts.Label
	idx    int
	stmt   facts.Label
}

// slot is either kind of parent. Lowering asks it for the kind of slot the
// node being lowered needs, and it wraps itself when the kinds differ.
type slot interface {
	asStmt(s *Session, loc ir.Location, callable facts.Label) stmtParent
	asExpr(s *Session, loc ir.Location, callable facts.Label) exprParent
}

func (p stmtParent) asStmt(*Session, ir.Location, facts.Label) stmtParent { return p }

// asExpr places an expression in statement position behind an exprstmt.
func (p stmtParent) asExpr(s *Session, loc ir.Location, callable facts.Label) exprParent {
	id := s.w.Fresh()
	s.emitStmt(id, "exprstmt", p, callable, loc)
	return exprParent{parent: id, idx: 0, stmt: id}
}

// asStmt places a statement in expression position behind a stmtexpr.
func (p exprParent) asStmt(s *Session, loc ir.Location, callable facts.Label) stmtParent {
	id := s.w.Fresh()
	s.emitExpr(id, "stmtexpr", s.useType(nil, nil, modeValue), p, callable, loc)
	return stmtParent{parent: id, idx: 0}
}

func (p exprParent) asExpr(*Session, ir.Location, facts.Label) exprParent { return p }

// under returns the slot at idx below the expression id.
func (p exprParent) under(id facts.Label, idx int) exprParent {
	return exprParent{parent: id, idx: idx, stmt: p.stmt}
}

func (s *Session) emitStmt(id facts.Label, kind string, p stmtParent, callable facts.Label, loc ir.Location) {
	s.emit(facts.KindStmts, facts.L(id), facts.S(kind), facts.L(p.parent), facts.I(p.idx), facts.L(callable))
	s.emitLocation(id, loc)
}

func (s *Session) emitExpr(id facts.Label, kind string, t typeResult, p exprParent, callable facts.Label, loc ir.Location) {
	if t.kotlin == 0 {
		t.kotlin = s.kotlinType(t.id, false)
	}
	s.emit(facts.KindExprs, facts.L(id), facts.S(kind), facts.L(t.id), facts.L(p.parent), facts.I(p.idx))
	s.emit(facts.KindExprsKotlinType, facts.L(id), facts.L(t.kotlin))
	s.emitLocation(id, loc)
	s.emit(facts.KindCallableEnclosingExpr, facts.L(id), facts.L(callable))
	if p.stmt != 0 {
		s.emit(facts.KindStatementEnclosingExpr, facts.L(id), facts.L(p.stmt))
	}
}
