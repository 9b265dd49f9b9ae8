package graph

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/Benny93/irfacts/internal/facts"
)

// FactGraph is an in-memory index over a set of facts.
//
// Facts are kept per relation in insertion order. Secondary indexes on node
// id, parent and binding make tree walks and binding lookups O(result)
// rather than O(facts).
type FactGraph struct {
	mu     sync.RWMutex
	byKind map[string][]facts.Fact
	count  int

	// Secondary indexes, kept in sync by Add.
	nodes    map[facts.Label]*Node
	children map[facts.Label][]*Node
	bindings map[string]map[facts.Label]facts.Label
	names    map[facts.Label]string
}

// NewFactGraph creates an empty graph.
func NewFactGraph() *FactGraph {
	return &FactGraph{
		byKind:   make(map[string][]facts.Fact),
		nodes:    make(map[facts.Label]*Node),
		children: make(map[facts.Label][]*Node),
		bindings: make(map[string]map[facts.Label]facts.Label),
		names:    make(map[facts.Label]string),
	}
}

// FromFacts builds a graph holding fs.
func FromFacts(fs []facts.Fact) *FactGraph {
	g := NewFactGraph()
	g.Add(fs...)
	return g
}

// Add indexes facts.
func (g *FactGraph) Add(fs ...facts.Fact) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, f := range fs {
		g.byKind[f.Kind] = append(g.byKind[f.Kind], f)
		g.count++
		g.index(f)
	}
}

func (g *FactGraph) index(f facts.Fact) {
	switch f.Kind {
	case facts.KindStmts:
		// stmts(id, kind, parent, idx, callable)
		id, _ := f.LabelAt(0)
		n := g.nodeFor(id)
		n.Relation = RelationStmt
		n.Kind = f.StrAt(1)
		n.Parent, _ = f.LabelAt(2)
		idx, _ := f.IntAt(3)
		n.Index = int(idx)
		n.Callable, _ = f.LabelAt(4)
		g.insertChild(n)
	case facts.KindExprs:
		// exprs(id, kind, type, parent, idx)
		id, _ := f.LabelAt(0)
		n := g.nodeFor(id)
		n.Relation = RelationExpr
		n.Kind = f.StrAt(1)
		n.Type, _ = f.LabelAt(2)
		n.Parent, _ = f.LabelAt(3)
		idx, _ := f.IntAt(4)
		n.Index = int(idx)
		g.insertChild(n)
	case facts.KindCallableEnclosingExpr:
		id, _ := f.LabelAt(0)
		c, _ := f.LabelAt(1)
		g.nodeFor(id).Callable = c
	case facts.KindCallableBinding, facts.KindVariableBinding, facts.KindMemberRefBinding:
		from, _ := f.LabelAt(0)
		to, _ := f.LabelAt(1)
		if g.bindings[f.Kind] == nil {
			g.bindings[f.Kind] = make(map[facts.Label]facts.Label)
		}
		g.bindings[f.Kind][from] = to
	default:
		if col, ok := nameColumns[f.Kind]; ok {
			id, _ := f.LabelAt(0)
			if _, seen := g.names[id]; !seen {
				g.names[id] = f.StrAt(col)
			}
		}
	}
}

func (g *FactGraph) nodeFor(id facts.Label) *Node {
	n, ok := g.nodes[id]
	if !ok {
		n = &Node{ID: id}
		g.nodes[id] = n
	}
	return n
}

// insertChild keeps children sorted by index, stable for equal indices.
func (g *FactGraph) insertChild(n *Node) {
	kids := g.children[n.Parent]
	i := sort.Search(len(kids), func(i int) bool { return kids[i].Index > n.Index })
	kids = append(kids, nil)
	copy(kids[i+1:], kids[i:])
	kids[i] = n
	g.children[n.Parent] = kids
}

// FactCount returns the number of indexed facts.
func (g *FactGraph) FactCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.count
}

// Count returns the number of facts of kind.
func (g *FactGraph) Count(kind string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byKind[kind])
}

// Facts returns the facts of kind in insertion order.
func (g *FactGraph) Facts(kind string) []facts.Fact {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]facts.Fact(nil), g.byKind[kind]...)
}

// Where returns the facts of kind that satisfy keep.
func (g *FactGraph) Where(kind string, keep func(facts.Fact) bool) []facts.Fact {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []facts.Fact
	for _, f := range g.byKind[kind] {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// With returns the facts of kind whose column col holds label l.
func (g *FactGraph) With(kind string, col int, l facts.Label) []facts.Fact {
	return g.Where(kind, func(f facts.Fact) bool {
		v, ok := f.LabelAt(col)
		return ok && v == l
	})
}

// Has reports whether a fact equal to kind(args...) is present.
func (g *FactGraph) Has(kind string, args ...facts.Arg) bool {
	want := facts.New(kind, args...).Hash()
	return len(g.Where(kind, func(f facts.Fact) bool { return f.Hash() == want })) > 0
}

// Node returns the statement or expression with label id, or nil.
func (g *FactGraph) Node(id facts.Label) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := g.nodes[id]
	if n == nil || n.Relation == "" {
		return nil
	}
	return n
}

// Children returns the nodes under parent ordered by index.
func (g *FactGraph) Children(parent facts.Label) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Node(nil), g.children[parent]...)
}

// Child returns the node at index idx under parent, or nil.
func (g *FactGraph) Child(parent facts.Label, idx int) *Node {
	for _, n := range g.Children(parent) {
		if n.Index == idx {
			return n
		}
	}
	return nil
}

// NodesOfKind returns every statement or expression of the lowered kind.
func (g *FactGraph) NodesOfKind(kind string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*Node
	for _, rel := range []string{facts.KindStmts, facts.KindExprs} {
		for _, f := range g.byKind[rel] {
			if f.StrAt(1) == kind {
				id, _ := f.LabelAt(0)
				out = append(out, g.nodes[id])
			}
		}
	}
	return out
}

// Binding returns the declaration an expression is bound to through the
// binding relation kind.
func (g *FactGraph) Binding(kind string, expr facts.Label) (facts.Label, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.bindings[kind][expr]
	return l, ok
}

// Name returns the declared name of l, if a declaration fact names it.
func (g *FactGraph) Name(l facts.Label) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.names[l]
}

// Validate checks the structural invariants of the statement and expression
// tree: every node has exactly one parent slot, and no two nodes share an
// index under one parent. It returns one message per violation.
func (g *FactGraph) Validate() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var problems []string
	seenParent := make(map[facts.Label]int)
	for _, rel := range []string{facts.KindStmts, facts.KindExprs} {
		for _, f := range g.byKind[rel] {
			id, _ := f.LabelAt(0)
			seenParent[id]++
		}
	}
	for id, n := range seenParent {
		if n > 1 {
			problems = append(problems, fmt.Sprintf("%s has %d parent slots", id, n))
		}
	}
	for parent, kids := range g.children {
		for i := 1; i < len(kids); i++ {
			if kids[i].Index == kids[i-1].Index {
				problems = append(problems, fmt.Sprintf("%s and %s share index %d under %s",
					kids[i-1].ID, kids[i].ID, kids[i].Index, parent))
			}
		}
	}
	sort.Strings(problems)
	return problems
}

// WriteTree renders the lowered tree under root, one node per line:
//
//	[idx] kind #id -> binding name
func (g *FactGraph) WriteTree(w io.Writer, root facts.Label) error {
	return g.writeTree(w, root, 0, make(map[facts.Label]bool))
}

func (g *FactGraph) writeTree(w io.Writer, parent facts.Label, depth int, visited map[facts.Label]bool) error {
	if visited[parent] {
		return nil
	}
	visited[parent] = true
	for _, n := range g.Children(parent) {
		line := fmt.Sprintf("%s[%d] %s %s", strings.Repeat("  ", depth), n.Index, n.Kind, n.ID)
		for _, kind := range BindingKinds {
			if to, ok := g.Binding(kind, n.ID); ok {
				line += " -> " + to.String()
				if name := g.Name(to); name != "" {
					line += " " + name
				}
			}
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if err := g.writeTree(w, n.ID, depth+1, visited); err != nil {
			return err
		}
	}
	return nil
}

// Tree returns WriteTree's output as a string.
func (g *FactGraph) Tree(root facts.Label) string {
	var sb strings.Builder
	_ = g.WriteTree(&sb, root)
	return sb.String()
}
