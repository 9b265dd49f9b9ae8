package extractor

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/graph"
	"github.com/Benny93/irfacts/internal/ir"
	"github.com/Benny93/irfacts/internal/storage"
)

// bodyOf returns the top-level block of the method named name.
func bodyOf(t *testing.T, g *graph.FactGraph, name string) *graph.Node {
	t.Helper()
	ms := methodsNamed(g, name)
	require.Len(t, ms, 1, name)
	id, _ := ms[0].LabelAt(0)
	block := g.Child(id, 0)
	require.NotNil(t, block)
	require.Equal(t, "block", block.Kind)
	return block
}

func label(f facts.Fact, col int) facts.Label {
	l, _ := f.LabelAt(col)
	return l
}

func TestExtractFunction(t *testing.T) {
	fx := newFixture(t)
	x := param("x", fx.intType(), 0)
	f := function("f", fx.intType(), []*ir.ValueParameter{x})
	f.Body.(*ir.BlockBody).Statements = []ir.Statement{ret(f, get(x, fx.intType()))}
	fx.addFile(f)

	g := fx.extract()

	t.Run("method on file class", func(t *testing.T) {
		ms := methodsNamed(g, "f")
		require.Len(t, ms, 1)
		assert.Equal(t, "f(int)", ms[0].StrAt(2))
		assert.Equal(t, fx.label("class;app.MainKt"), label(ms[0], 4))
		assert.True(t, g.Has(facts.KindFileClass, facts.L(label(ms[0], 4))))
	})

	t.Run("return reads parameter", func(t *testing.T) {
		block := bodyOf(t, g, "f")
		r := g.Child(block.ID, 0)
		require.NotNil(t, r)
		assert.Equal(t, "returnstmt", r.Kind)

		v := g.Child(r.ID, 0)
		require.NotNil(t, v)
		assert.Equal(t, "varaccess", v.Kind)
		bound, ok := g.Binding(facts.KindVariableBinding, v.ID)
		require.True(t, ok)
		params := g.Where(facts.KindParams, func(p facts.Fact) bool { return label(p, 0) == bound })
		require.Len(t, params, 1)
		assert.True(t, g.Has(facts.KindParamName, facts.L(bound), facts.S("x")))
	})

	t.Run("no diagnostics", func(t *testing.T) {
		assert.Empty(t, fx.log.Diagnostics())
		assert.Zero(t, g.Count(facts.KindDiagnostics))
	})
}

func TestLabelsAreStableAcrossRuns(t *testing.T) {
	fx := newFixture(t)
	fx.addFile(function("f", fx.unitType(), nil))

	first := fx.extract()
	methods := len(methodsNamed(first, "f"))
	fileClass := fx.label("class;app.MainKt")

	// A second run adds fresh statement nodes under the same method, so the
	// combined tree is not validated here.
	require.NoError(t, fx.session(Options{}).ExtractUnit())
	all, err := fx.store.AllFacts(t.Context())
	require.NoError(t, err)
	second := graph.FromFacts(all)
	assert.Len(t, methodsNamed(second, "f"), methods)
	assert.Equal(t, fileClass, fx.label("class;app.MainKt"))

	s := fx.session(Options{})
	assert.Equal(t, s.w.Label("class;app.MainKt"), s.w.Label("class;app.MainKt"))
	assert.Equal(t, fileClass, s.w.Label("class;app.MainKt"))
}

func TestParameterizedTypeLabels(t *testing.T) {
	fx := newFixture(t)
	box := class("Box")
	tp := &ir.TypeParameter{Name: "T", Index: 0, Location: at(10, 11)}
	box.TypeParameters = []*ir.TypeParameter{tp}
	fx.addFile(box)

	s := fx.session(Options{})
	a := s.useType(ir.ClassType(box, fx.intType()), nil, modeValue)
	b := s.useType(ir.ClassType(box, fx.intType()), nil, modeValue)
	c := s.useType(ir.ClassType(box, fx.stringType()), nil, modeValue)
	raw := s.useType(ir.ClassType(box, fx.intType()), nil, modeErased)

	assert.Equal(t, a.id, b.id)
	assert.NotEqual(t, a.id, c.id)
	assert.NotEqual(t, a.id, raw.id)
	assert.Equal(t, s.w.Label("class;app.Box"), raw.id)
	assert.Contains(t, a.name, "Box<")
}

func TestCompoundAssignment(t *testing.T) {
	fx := newFixture(t)
	plus := fx.b.Int.Member("plus")
	require.NotNil(t, plus)

	x := param("x", fx.intType(), 0)
	y := &ir.Variable{Name: "y", Type: fx.intType(), IsVar: true, Initializer: fx.intConst("1"), Location: at(3, 3)}
	z := &ir.Variable{Name: "z", Type: fx.intType(), IsVar: true, Initializer: fx.intConst("2"), Location: at(4, 3)}
	update := func(target, recv *ir.Variable) *ir.SetValue {
		return &ir.SetValue{
			ExprBase: ir.ExprBase{Typ: fx.unitType(), Location: at(5, 3)},
			Symbol:   target,
			Origin:   ir.OriginPlusEq,
			Value: &ir.Call{
				ExprBase:         ir.ExprBase{Typ: fx.intType(), Location: at(5, 3)},
				Callee:           plus,
				DispatchReceiver: get(recv, fx.intType()),
				Args:             []ir.Expression{get(x, fx.intType())},
				Origin:           ir.OriginPlusEq,
			},
		}
	}
	f := function("f", fx.unitType(), []*ir.ValueParameter{x}, y, z, update(y, y), update(y, z))
	fx.addFile(f)

	g := fx.extract()

	t.Run("same variable resugars", func(t *testing.T) {
		adds := nodes(g, "assignaddexpr")
		require.Len(t, adds, 1)
		rhs := g.Child(adds[0].ID, 1)
		require.NotNil(t, rhs)
		assert.Equal(t, "varaccess", rhs.Kind)
		lhs := g.Child(adds[0].ID, 0)
		require.NotNil(t, lhs)
		assert.Equal(t, "varaccess", lhs.Kind)
	})

	t.Run("different receiver stays an assignment", func(t *testing.T) {
		assigns := nodes(g, "assignexpr")
		require.Len(t, assigns, 1)
		rhs := g.Child(assigns[0].ID, 1)
		require.NotNil(t, rhs)
		assert.Equal(t, "methodaccess", rhs.Kind)
	})
}

func TestArithmeticResugaring(t *testing.T) {
	fx := newFixture(t)
	a := param("a", fx.intType(), 0)
	b := param("b", fx.intType(), 1)
	sum := &ir.Call{
		ExprBase:         ir.ExprBase{Typ: fx.intType(), Location: at(3, 10)},
		Callee:           fx.b.Int.Member("plus"),
		DispatchReceiver: get(a, fx.intType()),
		Args:             []ir.Expression{get(b, fx.intType())},
		Origin:           ir.OriginPlus,
	}
	f := function("f", fx.intType(), []*ir.ValueParameter{a, b})
	f.Body.(*ir.BlockBody).Statements = []ir.Statement{ret(f, sum)}
	fx.addFile(f)

	g := fx.extract()
	adds := nodes(g, "addexpr")
	require.Len(t, adds, 1)
	assert.Len(t, g.Children(adds[0].ID), 2)
	assert.Empty(t, nodes(g, "methodaccess"))
}

// comparison builds f(a: Int, b: Int): Boolean = callee(args) with origin.
func (fx *fixture) comparison(callee string, origin ir.Origin, nargs int) {
	a := param("a", fx.intType(), 0)
	b := param("b", fx.intType(), 1)
	args := []ir.Expression{get(a, fx.intType()), get(b, fx.intType())}[:nargs]
	call := &ir.Call{
		ExprBase: ir.ExprBase{Typ: fx.boolType(), Location: at(3, 10)},
		Callee:   fx.builtin(callee),
		Args:     args,
		Origin:   origin,
	}
	f := function("f", fx.boolType(), []*ir.ValueParameter{a, b})
	f.Body.(*ir.BlockBody).Statements = []ir.Statement{ret(f, call)}
	fx.addFile(f)
}

func TestBuiltinIntrinsics(t *testing.T) {
	tests := []struct {
		name     string
		callee   string
		origin   ir.Origin
		nargs    int
		kind     string
		warnings int
		errors   int
	}{
		{name: "matching origin", callee: "kotlin.internal.ir.less", origin: ir.OriginLt, nargs: 2, kind: "ltexpr"},
		{name: "origin mismatch falls back to a call", callee: "kotlin.internal.ir.less", origin: ir.OriginNone, nargs: 2, kind: "methodaccess", warnings: 1},
		{name: "wrong arity", callee: "kotlin.internal.ir.greater", origin: ir.OriginGt, nargs: 1, errors: 1},
		{name: "identity equality", callee: "kotlin.internal.ir.EQEQEQ", origin: ir.OriginEqEqEq, nargs: 2, kind: "eqexpr"},
		{name: "unhandled", callee: "kotlin.internal.ir.ANDAND", origin: ir.OriginNone, nargs: 2, errors: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.comparison(tt.callee, tt.origin, tt.nargs)
			g := fx.extract()

			assert.Len(t, fx.warnings(), tt.warnings)
			assert.Len(t, fx.errors(), tt.errors)
			if tt.kind != "" {
				assert.Len(t, nodes(g, tt.kind), 1)
			}
			if tt.errors > 0 {
				block := bodyOf(t, g, "f")
				assert.Empty(t, g.Children(block.ID), "failed statement must be rolled back")
				assert.Equal(t, tt.errors, g.Count(facts.KindDiagnostics))
			}
		})
	}
}

func TestNegatedEquality(t *testing.T) {
	fx := newFixture(t)
	a := param("a", fx.intType(), 0)
	b := param("b", fx.intType(), 1)
	eq := &ir.Call{
		ExprBase: ir.ExprBase{Typ: fx.boolType(), Location: at(3, 10)},
		Callee:   fx.builtin("kotlin.internal.ir.EQEQ"),
		Args:     []ir.Expression{get(a, fx.intType()), get(b, fx.intType())},
		Origin:   ir.OriginExclEq,
	}
	not := &ir.Call{
		ExprBase:         ir.ExprBase{Typ: fx.boolType(), Location: at(3, 10)},
		Callee:           fx.b.Boolean.Member("not"),
		DispatchReceiver: eq,
		Origin:           ir.OriginExclEq,
	}
	f := function("f", fx.boolType(), []*ir.ValueParameter{a, b})
	f.Body.(*ir.BlockBody).Statements = []ir.Statement{ret(f, not)}
	fx.addFile(f)

	g := fx.extract()
	ne := nodes(g, "valueneexpr")
	require.Len(t, ne, 1)
	assert.Len(t, g.Children(ne[0].ID), 2)
	assert.Empty(t, nodes(g, "lognotexpr"))
	assert.Empty(t, nodes(g, "valueeqexpr"))
}

func TestUnsupportedStatementIsSkipped(t *testing.T) {
	fx := newFixture(t)
	v := &ir.Variable{Name: "v", Type: fx.intType(), Initializer: fx.intConst("1"), Location: at(3, 3)}
	bad := &ir.Unsupported{ExprBase: ir.ExprBase{Typ: fx.unitType(), Location: at(6, 3)}, Kind: "mystery"}
	f := function("f", fx.intType(), nil, v)
	f.Body.(*ir.BlockBody).Statements = append(f.Body.(*ir.BlockBody).Statements, bad, ret(f, get(v, fx.intType())))
	fx.addFile(f)

	g := fx.extract()

	errs := fx.errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "while extracting a mystery at src/main.kt:6:3: unsupported expression kind mystery", errs[0].Message)

	block := bodyOf(t, g, "f")
	kids := g.Children(block.ID)
	require.Len(t, kids, 2)
	assert.Equal(t, 0, kids[0].Index)
	assert.Equal(t, "localvariabledeclstmt", kids[0].Kind)
	assert.Equal(t, 2, kids[1].Index)
	assert.Equal(t, "returnstmt", kids[1].Kind)

	diags := g.Facts(facts.KindDiagnostics)
	require.Len(t, diags, 1)
	assert.Equal(t, "error", diags[0].StrAt(2))
	assert.Equal(t, fx.label("file;"+testPath), label(diags[0], 1))
}

func TestErrorMessage(t *testing.T) {
	err := errorAt(&ir.Call{ExprBase: ir.ExprBase{Location: at(4, 2)}}, "call has no callee")
	assert.Equal(t, "while extracting a call at src/main.kt:4:2: call has no callee", err.Error())

	var xerr *Error
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "call", xerr.Kind)
}

func TestLoops(t *testing.T) {
	fx := newFixture(t)
	loop := &ir.WhileLoop{ExprBase: ir.ExprBase{Typ: fx.unitType(), Location: at(3, 3)}}
	loop.Condition = &ir.Const{ExprBase: ir.ExprBase{Typ: fx.boolType(), Location: at(3, 10)}, Kind: ir.ConstBoolean, Value: "true"}
	loop.Body = &ir.Block{
		ExprBase:   ir.ExprBase{Typ: fx.unitType(), Location: at(3, 16)},
		Statements: []ir.Statement{&ir.Break{ExprBase: ir.ExprBase{Typ: fx.unitType(), Location: at(4, 5)}, Loop: loop}},
	}
	other := &ir.WhileLoop{ExprBase: ir.ExprBase{Typ: fx.unitType(), Location: at(9, 3)}}
	stray := &ir.Continue{ExprBase: ir.ExprBase{Typ: fx.unitType(), Location: at(7, 3)}, Loop: other}
	fx.addFile(function("f", fx.unitType(), nil, loop, stray))

	g := fx.extract()

	whiles := nodes(g, "whilestmt")
	require.Len(t, whiles, 1)
	breaks := nodes(g, "breakstmt")
	require.Len(t, breaks, 1)
	assert.True(t, g.Has(facts.KindBreakContinueTargets, facts.L(breaks[0].ID), facts.L(whiles[0].ID)))

	assert.Empty(t, nodes(g, "continuestmt"))
	require.Len(t, fx.errors(), 1)
	assert.Contains(t, fx.errors()[0].Message, "continuestmt has no enclosing loop")
}

func TestLambda(t *testing.T) {
	lambda := func(fx *fixture, arity int) *ir.FunctionExpression {
		var params []*ir.ValueParameter
		var types []*ir.Type
		for i := range arity {
			params = append(params, param("p"+strconv.Itoa(i), fx.intType(), i))
			types = append(types, fx.intType())
		}
		fn := &ir.Function{
			Name:            "<anonymous>",
			Origin:          ir.OriginLambdaFunction,
			Visibility:      ir.VisibilityLocal,
			ValueParameters: params,
			ReturnType:      fx.intType(),
			Body:            &ir.ExpressionBody{Expression: fx.intConst("42"), Location: at(3, 11)},
			Location:        at(3, 9),
		}
		var fnType *ir.Type
		if arity+1 > DefaultBigArity {
			fnType = ir.ClassType(fx.b.FunctionN, fx.intType())
		} else {
			fnType = ir.ClassType(fx.b.FunctionK(arity), append(types, fx.intType())...)
		}
		return &ir.FunctionExpression{
			ExprBase: ir.ExprBase{Typ: fnType, Location: at(3, 9)},
			Function: fn,
			Origin:   ir.OriginLambda,
		}
	}
	extract := func(t *testing.T, arity int) (*fixture, *graph.FactGraph, facts.Label) {
		fx := newFixture(t)
		e := lambda(fx, arity)
		v := &ir.Variable{Name: "fn", Type: e.Typ, Initializer: e, Location: at(3, 3)}
		fx.addFile(function("f", fx.unitType(), nil, v))
		g := fx.extract()

		gen := generatedClasses(g)
		require.Len(t, gen, 1)
		return fx, g, label(gen[0], 0)
	}
	invokes := func(g *graph.FactGraph, cls facts.Label) []facts.Fact {
		return g.Where(facts.KindMethods, func(f facts.Fact) bool {
			return f.StrAt(1) == "invoke" && label(f, 4) == cls
		})
	}

	t.Run("zero arguments", func(t *testing.T) {
		fx, g, cls := extract(t, 0)
		assert.Len(t, invokes(g, cls), 1)
		assert.Empty(t, fx.errors())

		lambdas := nodes(g, "lambdaexpr")
		require.Len(t, lambdas, 1)
		assert.True(t, g.Has(facts.KindIsAnonymClass, facts.L(cls), facts.L(lambdas[0].ID)))
		assert.True(t, g.Has(facts.KindLambdaKind, facts.L(lambdas[0].ID), facts.I(1)))

		assert.NotEmpty(t, g.With(facts.KindImplInterface, 0, cls))
	})

	t.Run("big arity adds an array invoke", func(t *testing.T) {
		fx, g, cls := extract(t, 30)
		inv := invokes(g, cls)
		require.Len(t, inv, 2)
		var sigs []string
		for _, m := range inv {
			sigs = append(sigs, m.StrAt(2))
		}
		assert.True(t, strings.Contains(sigs[0], "[]") != strings.Contains(sigs[1], "[]"), sigs)
		assert.Empty(t, fx.errors())
	})
}

func TestFunctionReference(t *testing.T) {
	fx := newFixture(t)
	x := param("x", fx.intType(), 0)
	target := function("g", fx.intType(), []*ir.ValueParameter{x})
	target.Body.(*ir.BlockBody).Statements = []ir.Statement{ret(target, get(x, fx.intType()))}

	ref := &ir.FunctionReference{
		ExprBase: ir.ExprBase{Typ: ir.ClassType(fx.b.FunctionK(1), fx.intType(), fx.intType()), Location: at(3, 12)},
		Target:   target,
	}
	v := &ir.Variable{Name: "r", Type: ref.Typ, Initializer: ref, Location: at(3, 3)}
	fx.addFile(target, function("f", fx.unitType(), nil, v))

	g := fx.extract()
	require.Empty(t, fx.errors())

	refs := nodes(g, "memberref")
	require.Len(t, refs, 1)
	bound, ok := g.Binding(facts.KindMemberRefBinding, refs[0].ID)
	require.True(t, ok)
	gm := methodsNamed(g, "g")
	require.Len(t, gm, 1)
	assert.Equal(t, label(gm[0], 0), bound)

	gen := generatedClasses(g)
	require.Len(t, gen, 1)
	assert.True(t, g.Has(facts.KindExtendsReftype, facts.L(label(gen[0], 0)), facts.L(fx.label("class;kotlin.jvm.internal.FunctionReference"))))
}

func TestObjectDeclaration(t *testing.T) {
	fx := newFixture(t)
	obj := class("Registry")
	obj.Kind = ir.KindObject
	fx.addFile(obj)

	g := fx.extract()
	require.Empty(t, fx.errors())

	objs := g.Facts(facts.KindClassObject)
	require.Len(t, objs, 1)
	assert.Equal(t, fx.label("class;app.Registry"), label(objs[0], 0))
	instance := g.Where(facts.KindFields, func(f facts.Fact) bool { return f.StrAt(1) == "INSTANCE" })
	require.Len(t, instance, 1)
	assert.Equal(t, label(instance[0], 0), label(objs[0], 1))
}

func TestPropertyDiagnostics(t *testing.T) {
	getter := func(fx *fixture, name string) *ir.Function {
		return &ir.Function{Name: "get" + name, ReturnType: fx.intType(), Location: at(5, 3),
			Body: &ir.ExpressionBody{Expression: fx.intConst("0"), Location: at(5, 10)}}
	}

	t.Run("missing getter is an error", func(t *testing.T) {
		fx := newFixture(t)
		fx.addFile(&ir.Property{Name: "p", Location: at(5, 1)})
		g := fx.extract()
		require.Len(t, fx.errors(), 1)
		assert.Contains(t, fx.errors()[0].Message, "property p has no getter")
		assert.Zero(t, g.Count(facts.KindKtProperties))
	})

	t.Run("mutable property without setter warns", func(t *testing.T) {
		fx := newFixture(t)
		fx.addFile(&ir.Property{Name: "q", IsVar: true, Getter: getter(fx, "Q"), Location: at(5, 1)})
		g := fx.extract()
		assert.Empty(t, fx.errors())
		require.Len(t, fx.warnings(), 1)
		assert.True(t, g.Has(facts.KindKtProperties, facts.L(fx.label(propertyKey(fx.label("class;app.MainKt"), "q"))), facts.S("q")))
	})
}

func TestFaultInjection(t *testing.T) {
	t.Run("option", func(t *testing.T) {
		fx := newFixture(t)
		fx.addFile(function("f", fx.unitType(), nil))
		err := fx.session(Options{FaultFile: testPath}).ExtractUnit()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFaultInjected))
		assert.Zero(t, fx.store.FactCount())
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(FaultEnv, testPath)
		fx := newFixture(t)
		fx.addFile(function("f", fx.unitType(), nil))
		err := fx.session(Options{}).ExtractUnit()
		assert.ErrorIs(t, err, ErrFaultInjected)
	})

	t.Run("other file unaffected", func(t *testing.T) {
		fx := newFixture(t)
		fx.addFile(function("f", fx.unitType(), nil))
		require.NoError(t, fx.session(Options{FaultFile: "src/other.kt"}).ExtractUnit())
		assert.NotZero(t, fx.store.FactCount())
	})
}

func externalFixture(t *testing.T, store *storage.MemoryBackend) *fixture {
	fx := newFixture(t)
	if store != nil {
		fx.store = store
	}
	open := &ir.Function{Name: "open", Visibility: ir.VisibilityPublic, ReturnType: fx.intType(), Location: at(20, 3)}
	box := class("Box", open)
	open.DispatchReceiver = &ir.ValueParameter{Name: "<this>", Type: ir.ClassType(box), Index: -1}
	fx.unit.AddExternal(&ir.Package{Name: "lib", FacadeName: "lib.LibKt", Declarations: []ir.Declaration{box}})

	// Bodiless so that repeated runs add no statement nodes.
	use := function("use", fx.unitType(), []*ir.ValueParameter{param("b", ir.ClassType(box), 0)})
	use.Body = nil
	fx.addFile(use)
	return fx
}

func TestExternalsPopulatedOnce(t *testing.T) {
	t.Run("sequential runs", func(t *testing.T) {
		fx := externalFixture(t, nil)

		first := fx.session(Options{})
		require.NoError(t, first.ExtractFile(fx.unit.Files[0]))
		n, err := first.ExtractExternals()
		require.NoError(t, err)
		assert.Positive(t, n)

		second := fx.session(Options{})
		require.NoError(t, second.ExtractFile(fx.unit.Files[0]))
		m, err := second.ExtractExternals()
		require.NoError(t, err)
		assert.Zero(t, m)
		assert.Len(t, second.Externals(), n)

		fx.label(ClaimKey("class;lib.Box"))
		g := fx.graph()
		assert.Len(t, methodsNamed(g, "open"), 1)
	})

	t.Run("concurrent runs share the work", func(t *testing.T) {
		ref := externalFixture(t, nil)
		s := ref.session(Options{})
		require.NoError(t, s.ExtractFile(ref.unit.Files[0]))
		want, err := s.ExtractExternals()
		require.NoError(t, err)

		store := storage.NewMemoryBackend()
		var wg sync.WaitGroup
		counts := make([]int, 2)
		errs := make([]error, 2)
		for i := range counts {
			fx := externalFixture(t, store)
			wg.Add(1)
			go func() {
				defer wg.Done()
				s := fx.session(Options{})
				if errs[i] = s.ExtractFile(fx.unit.Files[0]); errs[i] != nil {
					return
				}
				counts[i], errs[i] = s.ExtractExternals()
			}()
		}
		wg.Wait()
		require.NoError(t, errors.Join(errs...))
		assert.Equal(t, want, counts[0]+counts[1])
	})
}

func TestCompoundAssignmentOfUserOperator(t *testing.T) {
	fx := newFixture(t)
	money := class("Money")
	mt := ir.ClassType(money)
	plus := member(money, function("plus", mt, []*ir.ValueParameter{param("other", mt, 0)}))
	plus.Body = nil

	b := param("b", mt, 0)
	m := &ir.Variable{Name: "m", Type: mt, IsVar: true, Initializer: get(b, mt), Location: at(3, 3)}
	update := &ir.SetValue{
		ExprBase: ir.ExprBase{Typ: fx.unitType(), Location: at(5, 3)},
		Symbol:   m,
		Origin:   ir.OriginPlusEq,
		Value: &ir.Call{
			ExprBase:         ir.ExprBase{Typ: mt, Location: at(5, 3)},
			Callee:           plus,
			DispatchReceiver: get(m, mt),
			Args:             []ir.Expression{get(b, mt)},
			Origin:           ir.OriginPlusEq,
		},
	}
	fx.addFile(money, function("f", fx.unitType(), []*ir.ValueParameter{b}, m, update))

	g := fx.extract()
	require.Empty(t, fx.errors())

	assert.Empty(t, nodes(g, "assignaddexpr"))
	assigns := nodes(g, "assignexpr")
	require.Len(t, assigns, 1)
	rhs := g.Child(assigns[0].ID, 1)
	require.NotNil(t, rhs)
	require.Equal(t, "methodaccess", rhs.Kind)
	bound, ok := g.Binding(facts.KindCallableBinding, rhs.ID)
	require.True(t, ok)
	ms := methodsNamed(g, "plus")
	require.Len(t, ms, 1)
	assert.Equal(t, label(ms[0], 0), bound)
}

func TestObjectInitializerOrder(t *testing.T) {
	fx := newFixture(t)
	a := &ir.Field{Name: "a", Type: fx.intType(), Visibility: ir.VisibilityPrivate, Initializer: fx.intConst("1"), Location: at(11, 3)}
	initBlock := &ir.AnonymousInitializer{
		Body:     &ir.Block{ExprBase: ir.ExprBase{Typ: fx.unitType(), Location: at(12, 8)}},
		Location: at(12, 3),
	}
	b := &ir.Field{Name: "b", Type: fx.intType(), Visibility: ir.VisibilityPrivate, Initializer: fx.intConst("2"), Location: at(13, 3)}
	fx.addFile(class("Point", a, initBlock, b))

	g := fx.extract()
	require.Empty(t, fx.errors())

	field := func(name string) facts.Label {
		fs := g.Where(facts.KindFields, func(f facts.Fact) bool { return f.StrAt(1) == name })
		require.Len(t, fs, 1, name)
		return label(fs[0], 0)
	}
	assigned := func(n *graph.Node) facts.Label {
		require.NotNil(t, n)
		require.Equal(t, "exprstmt", n.Kind)
		assign := g.Child(n.ID, 0)
		require.NotNil(t, assign)
		require.Equal(t, "assignexpr", assign.Kind)
		lhs := g.Child(assign.ID, 0)
		require.NotNil(t, lhs)
		this := g.Child(lhs.ID, -1)
		require.NotNil(t, this)
		assert.Equal(t, "thisaccess", this.Kind)
		l, _ := g.Binding(facts.KindVariableBinding, lhs.ID)
		return l
	}

	block := bodyOf(t, g, obinitName)
	kids := g.Children(block.ID)
	require.Len(t, kids, 3)
	assert.Equal(t, field("a"), assigned(kids[0]))
	assert.Equal(t, "block", kids[1].Kind)
	assert.Equal(t, 1, kids[1].Index)
	assert.Equal(t, field("b"), assigned(kids[2]))
	assert.Empty(t, methodsNamed(g, clinitName))
}

func TestFailedLocalFunctionIsForgotten(t *testing.T) {
	fx := newFixture(t)
	local := &ir.Function{
		Name:       "helper",
		Origin:     ir.OriginLocalFunction,
		Visibility: ir.VisibilityLocal,
		ReturnType: fx.intType(),
		Body: &ir.ExpressionBody{
			Expression: &ir.Unsupported{ExprBase: ir.ExprBase{Typ: fx.intType(), Location: at(3, 20)}, Kind: "mystery"},
			Location:   at(3, 18),
		},
		Location: at(3, 3),
	}
	call := &ir.Call{ExprBase: ir.ExprBase{Typ: fx.intType(), Location: at(4, 3)}, Callee: local}
	fx.addFile(function("f", fx.unitType(), nil, local, call))

	g := fx.extract()

	errs := fx.errors()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Message, "unsupported expression kind mystery")
	assert.Contains(t, errs[1].Message, "local function helper used before its declaration")

	assert.Empty(t, g.Children(bodyOf(t, g, "f").ID))
	assert.Empty(t, nodes(g, "newexpr"))
	assert.Empty(t, generatedClasses(g))
	assert.Empty(t, methodsNamed(g, "helper"))
}

func TestGuardForgetsRolledBackState(t *testing.T) {
	fx := newFixture(t)
	v := &ir.Variable{Name: "v", Type: fx.intType(), Location: at(3, 3)}
	fx.addFile(function("f", fx.unitType(), nil, v))

	s := fx.session(Options{})
	kept := s.useVariable(v)
	require.Contains(t, s.vars, v)

	other := &ir.Variable{Name: "w", Type: fx.intType(), Location: at(4, 3)}
	err := s.guard(other, func() error {
		s.useVariable(other)
		require.Contains(t, s.vars, other)
		return errorAt(other, "boom")
	})
	require.NoError(t, err)
	assert.NotContains(t, s.vars, other)
	assert.Equal(t, kept, s.vars[v])
	assert.Len(t, s.undo, 1)
	require.Len(t, fx.errors(), 1)
}
