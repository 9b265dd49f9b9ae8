package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/graph"
	"github.com/Benny93/irfacts/internal/ir"
	"github.com/Benny93/irfacts/internal/logging"
	"github.com/Benny93/irfacts/internal/storage"
	"github.com/Benny93/irfacts/internal/testutil"
)

const testPath = "src/main.kt"

// fixture is a unit under construction plus the store it is extracted to.
type fixture struct {
	t     *testing.T
	unit  *ir.Unit
	b     *ir.Builtins
	store *storage.MemoryBackend
	log   *logging.DiagnosticLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	u := ir.NewUnit()
	return &fixture{
		t:     t,
		unit:  u,
		b:     u.Builtins,
		store: storage.NewMemoryBackend(),
		log:   logging.NewDiagnosticLogger(testutil.NewTestLogger(t)),
	}
}

func at(line, col int) ir.Location {
	return ir.Location{File: testPath, StartLine: line, StartCol: col, EndLine: line, EndCol: col + 1}
}

// addFile adds a file of package app holding decls.
func (fx *fixture) addFile(decls ...ir.Declaration) *ir.File {
	f := &ir.File{Path: testPath, Package: "app", Declarations: decls, Location: at(1, 1)}
	fx.unit.AddFile(f)
	return f
}

func (fx *fixture) session(opts Options) *Session {
	return NewSession(fx.t.Context(), fx.store, fx.unit, fx.log, opts)
}

// extract runs one session over the unit and returns the resulting graph,
// checking the tree invariants on the way.
func (fx *fixture) extract() *graph.FactGraph {
	fx.t.Helper()
	require.NoError(fx.t, fx.session(Options{}).ExtractUnit())
	return fx.graph()
}

func (fx *fixture) graph() *graph.FactGraph {
	fx.t.Helper()
	all, err := fx.store.AllFacts(fx.t.Context())
	require.NoError(fx.t, err)
	g := graph.FromFacts(all)
	require.Empty(fx.t, g.Validate())
	return g
}

func (fx *fixture) label(key string) facts.Label {
	fx.t.Helper()
	l, ok, err := fx.store.LookupLabel(fx.t.Context(), key)
	require.NoError(fx.t, err)
	require.True(fx.t, ok, key)
	return l
}

func (fx *fixture) builtin(fq string) *ir.Function {
	fx.t.Helper()
	d, err := fx.b.Lookup(fq)
	require.NoError(fx.t, err)
	f, ok := d.(*ir.Function)
	require.True(fx.t, ok, fq)
	return f
}

func (fx *fixture) intType() *ir.Type    { return ir.ClassType(fx.b.Int) }
func (fx *fixture) boolType() *ir.Type   { return ir.ClassType(fx.b.Boolean) }
func (fx *fixture) stringType() *ir.Type { return ir.ClassType(fx.b.String) }
func (fx *fixture) unitType() *ir.Type   { return ir.ClassType(fx.b.Unit) }

func param(name string, t *ir.Type, idx int) *ir.ValueParameter {
	return &ir.ValueParameter{Name: name, Type: t, Index: idx, Location: at(2, 7)}
}

// function builds a top-level function with a block body.
func function(name string, ret *ir.Type, params []*ir.ValueParameter, stmts ...ir.Statement) *ir.Function {
	return &ir.Function{
		Name:            name,
		Visibility:      ir.VisibilityPublic,
		ValueParameters: params,
		ReturnType:      ret,
		Body:            &ir.BlockBody{Statements: stmts, Location: at(2, 20)},
		Location:        at(2, 1),
	}
}

// class builds a final class with an implicit receiver.
func class(name string, decls ...ir.Declaration) *ir.Class {
	c := &ir.Class{Name: name, Kind: ir.KindClass, Declarations: decls, Location: at(10, 1)}
	c.ThisReceiver = &ir.ValueParameter{Name: "<this>", Type: &ir.Type{Classifier: c}, Index: -1}
	return c
}

func (fx *fixture) intConst(v string) *ir.Const {
	return &ir.Const{ExprBase: ir.ExprBase{Typ: fx.intType(), Location: at(3, 5)}, Kind: ir.ConstInt, Value: v}
}

func get(v ir.ValueDeclaration, t *ir.Type) *ir.GetValue {
	return &ir.GetValue{ExprBase: ir.ExprBase{Typ: t, Location: at(3, 9)}, Symbol: v}
}

func ret(target *ir.Function, v ir.Expression) *ir.Return {
	return &ir.Return{ExprBase: ir.ExprBase{Location: at(4, 3)}, Target: target, Value: v}
}

// nodes returns the lowered nodes of kind.
func nodes(g *graph.FactGraph, kind string) []*graph.Node {
	return g.NodesOfKind(kind)
}

// methodsNamed returns the methods facts with the given name.
func methodsNamed(g *graph.FactGraph, name string) []facts.Fact {
	return g.Where(facts.KindMethods, func(f facts.Fact) bool { return f.StrAt(1) == name })
}

// generatedClasses returns the anonymous classes.
func generatedClasses(g *graph.FactGraph) []facts.Fact {
	return g.Where(facts.KindClasses, func(f facts.Fact) bool { return f.StrAt(1) == "" })
}

func (fx *fixture) errors() []logging.Diagnostic {
	var out []logging.Diagnostic
	for _, d := range fx.log.Diagnostics() {
		if d.Severity == logging.SeverityError {
			out = append(out, d)
		}
	}
	return out
}

func (fx *fixture) warnings() []logging.Diagnostic {
	var out []logging.Diagnostic
	for _, d := range fx.log.Diagnostics() {
		if d.Severity == logging.SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// member adds f to c with c's receiver as its dispatch receiver.
func member(c *ir.Class, f *ir.Function) *ir.Function {
	f.DispatchReceiver = &ir.ValueParameter{Name: "<this>", Type: ir.ClassType(c), Index: -1}
	c.Declarations = append(c.Declarations, f)
	return f
}

// paramNames returns the parameter names of callable in index order.
func paramNames(g *graph.FactGraph, callable facts.Label) []string {
	params := g.With(facts.KindParams, 3, callable)
	out := make([]string, len(params))
	for _, p := range params {
		i, _ := p.IntAt(2)
		if name := g.With(facts.KindParamName, 0, label(p, 0)); len(name) == 1 && int(i) < len(out) {
			out[i] = name[0].StrAt(1)
		}
	}
	return out
}

// returned returns the expression returned by the single-statement body of
// method m.
func returned(t *testing.T, g *graph.FactGraph, m facts.Label) *graph.Node {
	t.Helper()
	block := g.Child(m, 0)
	require.NotNil(t, block)
	r := g.Child(block.ID, 0)
	require.NotNil(t, r)
	require.Equal(t, "returnstmt", r.Kind)
	e := g.Child(r.ID, 0)
	require.NotNil(t, e)
	return e
}

// boundTo reports whether expression n is a varaccess bound to v.
func boundTo(g *graph.FactGraph, n *graph.Node, v facts.Label) bool {
	if n == nil || n.Kind != "varaccess" {
		return false
	}
	l, ok := g.Binding(facts.KindVariableBinding, n.ID)
	return ok && l == v
}
