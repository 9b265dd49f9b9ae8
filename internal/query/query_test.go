package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/storage"
	"github.com/Benny93/irfacts/internal/testutil"
)

// setupTestStore returns a store holding a method with a block whose
// statement wraps an assignaddexpr over two variable reads.
func setupTestStore(t *testing.T) *storage.MemoryBackend {
	t.Helper()
	store := storage.NewMemoryBackend()
	ctx := t.Context()

	label := func(key string) facts.Label {
		l, _, err := store.GetLabelFor(ctx, key)
		require.NoError(t, err)
		return l
	}
	m := label("callable;app.MainKt.f")
	block := label("block")
	stmt := label("stmt")
	assign := label("assign")
	lhs := label("lhs")
	rhs := label("rhs")
	intType := label("type;int")

	require.NoError(t, store.Append(ctx,
		facts.New(facts.KindMethods, facts.L(m), facts.S("f"), facts.S("f(int)"), facts.L(intType), facts.L(label("class;app.MainKt")), facts.L(m)),
		facts.New(facts.KindStmts, facts.L(block), facts.S("block"), facts.L(m), facts.I(0), facts.L(m)),
		facts.New(facts.KindStmts, facts.L(stmt), facts.S("exprstmt"), facts.L(block), facts.I(0), facts.L(m)),
		facts.New(facts.KindExprs, facts.L(assign), facts.S("assignaddexpr"), facts.L(intType), facts.L(stmt), facts.I(0)),
		facts.New(facts.KindExprs, facts.L(lhs), facts.S("varaccess"), facts.L(intType), facts.L(assign), facts.I(0)),
		facts.New(facts.KindExprs, facts.L(rhs), facts.S("varaccess"), facts.L(intType), facts.L(assign), facts.I(1)),
	))
	return store
}

func TestEval(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	assign, ok, err := store.LookupLabel(t.Context(), "assign")
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("SelectsByKind", func(t *testing.T) {
		res, err := Eval(t.Context(), store, `compound(E) :- exprs(E, "assignaddexpr", _, _, _).`, "", Options{})
		require.NoError(t, err)
		assert.Equal(t, "compound", res.Predicate)
		assert.Equal(t, 1, res.Arity)
		assert.Equal(t, [][]string{{assign.String()[1:]}}, res.Rows)
	})

	t.Run("Recursive", func(t *testing.T) {
		program := `
parent(C, P) :- exprs(C, _, _, P, _).
parent(C, P) :- stmts(C, _, P, _, _).
under(C, P) :- parent(C, P).
under(C, P) :- parent(C, M), under(M, P).
inMethod(C) :- under(C, P), methods(P, "f", _, _, _, _).
`
		res, err := Eval(t.Context(), store, program, "inMethod", Options{Logger: testutil.NewTestLogger(t)})
		require.NoError(t, err)
		// block, stmt, assign and the two reads.
		assert.Len(t, res.Rows, 5)
	})

	t.Run("NamedPredicate", func(t *testing.T) {
		program := `
read(E) :- exprs(E, "varaccess", _, _, _).
assignment(E) :- exprs(E, "assignaddexpr", _, _, _).
`
		res, err := Eval(t.Context(), store, program, "read", Options{})
		require.NoError(t, err)
		assert.Len(t, res.Rows, 2)
	})

	t.Run("StoredRelation", func(t *testing.T) {
		res, err := Eval(t.Context(), store, "", facts.KindMethods, Options{})
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, 6, res.Arity)
		assert.Equal(t, `"f(int)"`, res.Rows[0][2])
	})
}

func TestEval_Errors(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)

	tests := []struct {
		name      string
		program   string
		predicate string
		want      string
	}{
		{"Syntax", `broken(X :- exprs(X`, "", "parsing program"},
		{"NoRules", ``, "", "no rules"},
		{"UnknownPredicate", `a(E) :- exprs(E, _, _, _, _).`, "b", `unknown predicate "b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Eval(t.Context(), store, tt.program, tt.predicate, Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
