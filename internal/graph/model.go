// Package graph provides an in-memory, indexed view of extracted facts.
//
// The fact database is a flat set of relations. FactGraph rebuilds the
// structure those relations encode: the statement and expression tree
// addressed by (parent, index), the binding edges from expressions to
// declarations, and the names of declarations. The CLI, the MCP server and
// the extractor tests all read facts through it.
package graph

import "github.com/Benny93/irfacts/internal/facts"

// NodeRelation tells whether a Node came from a stmts or an exprs fact.
type NodeRelation string

const (
	RelationStmt NodeRelation = facts.KindStmts
	RelationExpr NodeRelation = facts.KindExprs
)

// Node is one lowered statement or expression.
type Node struct {
	// ID is the node's label.
	ID facts.Label

	// Relation is stmts or exprs.
	Relation NodeRelation

	// Kind is the lowered node kind, e.g. "varaccess" or "whilestmt".
	Kind string

	// Parent is the label of the structural parent.
	Parent facts.Label

	// Index is the child index under Parent. Negative indices hold
	// receivers, type accesses and metadata.
	Index int

	// Type is the expression's type label. Zero for statements.
	Type facts.Label

	// Callable is the enclosing callable of a statement, or of an expression
	// via callableEnclosingExpr.
	Callable facts.Label
}

// BindingKinds are the relations that bind an expression to a declaration.
var BindingKinds = []string{
	facts.KindCallableBinding,
	facts.KindVariableBinding,
	facts.KindMemberRefBinding,
}

// nameColumns maps declaration relations to the column holding the name.
var nameColumns = map[string]int{
	facts.KindClasses:      1,
	facts.KindInterfaces:   1,
	facts.KindMethods:      1,
	facts.KindConstrs:      1,
	facts.KindFields:       1,
	facts.KindLocalVars:    1,
	facts.KindTypeVars:     1,
	facts.KindKtProperties: 1,
	facts.KindFiles:        1,
	facts.KindPackages:     1,
	facts.KindPrimitives:   1,
	facts.KindArrays:       1,
	facts.KindWildcards:    1,
	facts.KindParamName:    1,
	facts.KindKtTypeAlias:  1,
}
