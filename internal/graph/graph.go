// Package graph orders definition types so that every definition is created
// after the definitions its fields validate against.
//
// Nodes are definition types. An edge A→B means a field of A carries a
// metaobject_definition_id validation naming B: A depends on B and B must
// exist in the destination first. Cycles are allowed; Sort breaks them
// deterministically and reports which nodes need a second pass.
package graph

import (
	"fmt"
	"sort"

	"github.com/juju/collections/set"
)

// Edge is a dependency of From on To.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s", e.From, e.To)
}

// Graph is a directed dependency graph over definition types.
//
// Thread-safety: not safe for concurrent mutation.
type Graph struct {
	nodes set.Strings
	deps  map[string]set.Strings
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: set.NewStrings(),
		deps:  make(map[string]set.Strings),
	}
}

// AddNode adds typ. Adding an existing node is a no-op.
func (g *Graph) AddNode(typ string) {
	g.nodes.Add(typ)
}

// AddEdge records that from depends on to, adding both nodes.
// Parallel edges collapse into one.
func (g *Graph) AddEdge(from, to string) {
	g.nodes.Add(from)
	g.nodes.Add(to)
	deps, ok := g.deps[from]
	if !ok {
		deps = set.NewStrings()
		g.deps[from] = deps
	}
	deps.Add(to)
}

// HasNode reports whether typ is a node.
func (g *Graph) HasNode(typ string) bool {
	return g.nodes.Contains(typ)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return g.nodes.Size()
}

// Nodes returns every node in ascending order.
func (g *Graph) Nodes() []string {
	return g.nodes.SortedValues()
}

// Dependencies returns the nodes typ depends on, in ascending order.
func (g *Graph) Dependencies(typ string) []string {
	deps, ok := g.deps[typ]
	if !ok {
		return nil
	}
	return deps.SortedValues()
}

// Edges returns every edge ordered by From, then To.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, from := range g.Nodes() {
		for _, to := range g.Dependencies(from) {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// Dependents returns the nodes that depend on typ, in ascending order.
func (g *Graph) Dependents(typ string) []string {
	var out []string
	for from, deps := range g.deps {
		if deps.Contains(typ) {
			out = append(out, from)
		}
	}
	sort.Strings(out)
	return out
}
