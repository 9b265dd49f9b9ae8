package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/irfacts/internal/facts"
)

func setupTestGraph(t *testing.T) *FactGraph {
	t.Helper()

	// fun f() { return g(x) }
	return FromFacts([]facts.Fact{
		facts.New(facts.KindMethods, facts.L(1), facts.S("f"), facts.S("f()"), facts.L(9), facts.L(8), facts.L(1)),
		facts.New(facts.KindMethods, facts.L(2), facts.S("g"), facts.S("g(int)"), facts.L(9), facts.L(8), facts.L(2)),
		facts.New(facts.KindLocalVars, facts.L(3), facts.S("x"), facts.L(9), facts.L(20)),
		facts.New(facts.KindStmts, facts.L(10), facts.S("block"), facts.L(1), facts.I(0), facts.L(1)),
		facts.New(facts.KindStmts, facts.L(11), facts.S("returnstmt"), facts.L(10), facts.I(0), facts.L(1)),
		facts.New(facts.KindExprs, facts.L(12), facts.S("methodaccess"), facts.L(9), facts.L(11), facts.I(0)),
		facts.New(facts.KindExprs, facts.L(14), facts.S("varaccess"), facts.L(9), facts.L(12), facts.I(0)),
		facts.New(facts.KindExprs, facts.L(13), facts.S("thisaccess"), facts.L(8), facts.L(12), facts.I(-1)),
		facts.New(facts.KindCallableBinding, facts.L(12), facts.L(2)),
		facts.New(facts.KindVariableBinding, facts.L(14), facts.L(3)),
		facts.New(facts.KindCallableEnclosingExpr, facts.L(12), facts.L(1)),
	})
}

func TestFactGraph_Counts(t *testing.T) {
	t.Parallel()

	g := setupTestGraph(t)
	assert.Equal(t, 11, g.FactCount())
	assert.Equal(t, 2, g.Count(facts.KindMethods))
	assert.Equal(t, 0, g.Count(facts.KindClasses))
	assert.Len(t, g.Facts(facts.KindExprs), 3)
}

func TestFactGraph_Nodes(t *testing.T) {
	t.Parallel()

	g := setupTestGraph(t)

	t.Run("Stmt", func(t *testing.T) {
		t.Parallel()
		n := g.Node(11)
		require.NotNil(t, n)
		assert.Equal(t, RelationStmt, n.Relation)
		assert.Equal(t, "returnstmt", n.Kind)
		assert.Equal(t, facts.Label(10), n.Parent)
		assert.Equal(t, facts.Label(1), n.Callable)
	})

	t.Run("Expr", func(t *testing.T) {
		t.Parallel()
		n := g.Node(12)
		require.NotNil(t, n)
		assert.Equal(t, RelationExpr, n.Relation)
		assert.Equal(t, facts.Label(9), n.Type)
		assert.Equal(t, facts.Label(1), n.Callable)
	})

	t.Run("Unknown", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, g.Node(99))
	})

	t.Run("ChildrenSortedByIndex", func(t *testing.T) {
		t.Parallel()
		kids := g.Children(12)
		require.Len(t, kids, 2)
		assert.Equal(t, -1, kids[0].Index)
		assert.Equal(t, "thisaccess", kids[0].Kind)
		assert.Equal(t, 0, kids[1].Index)
		assert.Equal(t, facts.Label(14), g.Child(12, 0).ID)
		assert.Nil(t, g.Child(12, 5))
	})

	t.Run("NodesOfKind", func(t *testing.T) {
		t.Parallel()
		assert.Len(t, g.NodesOfKind("varaccess"), 1)
		assert.Len(t, g.NodesOfKind("block"), 1)
		assert.Empty(t, g.NodesOfKind("whilestmt"))
	})
}

func TestFactGraph_Bindings(t *testing.T) {
	t.Parallel()

	g := setupTestGraph(t)

	callee, ok := g.Binding(facts.KindCallableBinding, 12)
	require.True(t, ok)
	assert.Equal(t, "g", g.Name(callee))

	v, ok := g.Binding(facts.KindVariableBinding, 14)
	require.True(t, ok)
	assert.Equal(t, "x", g.Name(v))

	_, ok = g.Binding(facts.KindMemberRefBinding, 12)
	assert.False(t, ok)
}

func TestFactGraph_Lookup(t *testing.T) {
	t.Parallel()

	g := setupTestGraph(t)
	assert.True(t, g.Has(facts.KindCallableBinding, facts.L(12), facts.L(2)))
	assert.False(t, g.Has(facts.KindCallableBinding, facts.L(12), facts.L(1)))
	assert.Len(t, g.With(facts.KindExprs, 3, 12), 2)
}

func TestFactGraph_Validate(t *testing.T) {
	t.Parallel()

	t.Run("Clean", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, setupTestGraph(t).Validate())
	})

	t.Run("SharedIndex", func(t *testing.T) {
		t.Parallel()
		g := setupTestGraph(t)
		g.Add(facts.New(facts.KindExprs, facts.L(15), facts.S("varaccess"), facts.L(9), facts.L(12), facts.I(0)))
		problems := g.Validate()
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0], "share index 0 under #12")
	})

	t.Run("TwoParents", func(t *testing.T) {
		t.Parallel()
		g := setupTestGraph(t)
		g.Add(facts.New(facts.KindExprs, facts.L(14), facts.S("varaccess"), facts.L(9), facts.L(11), facts.I(1)))
		assert.Contains(t, g.Validate(), "#14 has 2 parent slots")
	})
}

func TestFactGraph_Tree(t *testing.T) {
	t.Parallel()

	g := setupTestGraph(t)
	want := "" +
		"[0] block #10\n" +
		"  [0] returnstmt #11\n" +
		"    [0] methodaccess #12 -> #2 g\n" +
		"      [-1] thisaccess #13\n" +
		"      [0] varaccess #14 -> #3 x\n"
	assert.Equal(t, want, g.Tree(1))
}
