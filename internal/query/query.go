// Package query evaluates Datalog programs over a fact store.
//
// Every relation of the fact schema is available to a program as an
// extensional predicate of the same name and arity. Labels and integers are
// number constants, strings are string constants. A program defines further
// predicates through rules; Eval returns the facts of one of them.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/storage"
)

// DefaultFactLimit caps the facts a single evaluation may derive.
const DefaultFactLimit = 500000

// Options configure an evaluation.
type Options struct {
	// FactLimit caps derived facts. Zero means DefaultFactLimit.
	FactLimit int

	Logger *slog.Logger
}

// Result holds the facts of one predicate after evaluation.
type Result struct {
	Predicate string
	Arity     int

	// Rows are the facts' arguments rendered as constants, sorted.
	Rows [][]string
}

// Eval evaluates program over store and returns the facts of predicate.
// An empty predicate selects the head of the program's last rule.
func Eval(ctx context.Context, store storage.FactStore, program, predicate string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := opts.FactLimit
	if limit <= 0 {
		limit = DefaultFactLimit
	}

	unit, err := parse.Unit(strings.NewReader(program))
	if err != nil {
		return nil, fmt.Errorf("parsing program: %w", err)
	}
	if predicate == "" {
		if len(unit.Clauses) == 0 {
			return nil, errors.New("program has no rules and no predicate was named")
		}
		predicate = unit.Clauses[len(unit.Clauses)-1].Head.Predicate.Symbol
	}

	info, err := analysis.AnalyzeOneUnit(unit, schemaDecls())
	if err != nil {
		return nil, fmt.Errorf("analyzing program: %w", err)
	}
	sym, ok := lookupPredicate(info, predicate)
	if !ok {
		return nil, fmt.Errorf("unknown predicate %q", predicate)
	}

	edb := factstore.NewSimpleInMemoryStore()
	loaded := 0
	for _, kind := range usedRelations(unit, predicate) {
		fs, err := store.Facts(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", kind, err)
		}
		for _, f := range fs {
			edb.Add(toAtom(f))
		}
		loaded += len(fs)
	}
	logger.Debug("loaded facts", "count", loaded)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stats, err := engine.EvalProgramWithStats(info, edb, engine.WithCreatedFactLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("evaluating program: %w", err)
	}
	logger.Debug("evaluated program", "strata", len(stats.Strata))

	res := &Result{Predicate: sym.Symbol, Arity: sym.Arity}
	err = edb.GetFacts(ast.NewQuery(sym), func(a ast.Atom) error {
		row := make([]string, len(a.Args))
		for i, arg := range a.Args {
			row[i] = arg.String()
		}
		res.Rows = append(res.Rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(res.Rows, func(i, j int) bool {
		return strings.Join(res.Rows[i], "\x00") < strings.Join(res.Rows[j], "\x00")
	})
	return res, nil
}

// schemaDecls declares every stored relation to the analyzer.
func schemaDecls() map[ast.PredicateSym]ast.Decl {
	decls := make(map[ast.PredicateSym]ast.Decl, len(facts.Schema))
	for _, kind := range facts.Kinds() {
		sym := ast.PredicateSym{Symbol: kind, Arity: facts.Arity(kind)}
		decls[sym] = ast.NewSyntheticDeclFromSym(sym)
	}
	return decls
}

// usedRelations returns the stored relations the program's rules read, plus
// the queried predicate when it is one.
func usedRelations(unit parse.SourceUnit, predicate string) []string {
	seen := make(map[string]bool)
	if facts.Arity(predicate) >= 0 {
		seen[predicate] = true
	}
	for _, c := range unit.Clauses {
		for _, p := range c.Premises {
			var sym ast.PredicateSym
			switch p := p.(type) {
			case ast.Atom:
				sym = p.Predicate
			case ast.NegAtom:
				sym = p.Atom.Predicate
			default:
				continue
			}
			if facts.Arity(sym.Symbol) == sym.Arity {
				seen[sym.Symbol] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for kind := range seen {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}

func lookupPredicate(info *analysis.ProgramInfo, name string) (ast.PredicateSym, bool) {
	for sym := range info.Decls {
		if sym.Symbol == name {
			return sym, true
		}
	}
	if arity := facts.Arity(name); arity >= 0 {
		return ast.PredicateSym{Symbol: name, Arity: arity}, true
	}
	return ast.PredicateSym{}, false
}

// toAtom converts a stored fact to an extensional atom.
func toAtom(f facts.Fact) ast.Atom {
	args := make([]ast.BaseTerm, len(f.Args))
	for i, a := range f.Args {
		switch a.Kind {
		case facts.ArgLabel:
			args[i] = ast.Number(int64(a.Label))
		case facts.ArgString:
			args[i] = ast.String(a.Str)
		default:
			args[i] = ast.Number(a.Int)
		}
	}
	return ast.Atom{Predicate: ast.PredicateSym{Symbol: f.Kind, Arity: len(args)}, Args: args}
}
