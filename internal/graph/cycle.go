package graph

import (
	"sort"
	"strings"

	"github.com/juju/collections/set"
)

// Cycle is a strongly connected group of definition types. Path walks the
// group and returns to its first element, e.g. [a b a].
type Cycle struct {
	Types []string `json:"types"`
	Path  []string `json:"path"`
}

func (c Cycle) String() string {
	return strings.Join(c.Path, " -> ")
}

// Cycles returns every strongly connected component with more than one node,
// plus self-referencing nodes. Types are sorted within a cycle and cycles are
// ordered by their first type. An acyclic graph returns an empty slice.
func (g *Graph) Cycles() []Cycle {
	cycles := []Cycle{}
	for _, scc := range g.tarjanSCC() {
		if len(scc) == 1 && !g.hasSelfLoop(scc[0]) {
			continue
		}
		sort.Strings(scc)
		cycles = append(cycles, Cycle{Types: scc, Path: g.cyclePath(scc)})
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Types[0] < cycles[j].Types[0] })
	return cycles
}

func (g *Graph) hasSelfLoop(n string) bool {
	deps, ok := g.deps[n]
	return ok && deps.Contains(n)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func (g *Graph) tarjanSCC() [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = set.NewStrings()
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack.Add(v)

		for _, w := range g.Dependencies(v) {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack.Contains(w) {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack.Remove(w)
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, n := range g.Nodes() {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

// cyclePath walks from the first member along edges inside the component
// until it returns to the start or runs out of unvisited members.
func (g *Graph) cyclePath(scc []string) []string {
	members := set.NewStrings(scc...)
	start := scc[0]
	current := start
	path := []string{current}
	visited := set.NewStrings()

	for {
		visited.Add(current)
		next := ""
		for _, dep := range g.Dependencies(current) {
			if members.Contains(dep) && (dep == start || !visited.Contains(dep)) {
				next = dep
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		current = next
	}
}
