package graph

import (
	"github.com/juju/collections/set"
)

// Order is the result of Sort.
type Order struct {
	// Sorted holds nodes whose dependencies all come earlier in Sorted.
	Sorted []string `json:"sorted"`
	// Deferred holds nodes that sit on a cycle or depend on one. Their
	// creation may need a second pass for the fields that close the cycle.
	Deferred []string `json:"deferred"`
	// Dropped holds the back edges removed to break cycles.
	Dropped []Edge `json:"dropped"`
}

// Sequence returns Sorted followed by Deferred: the creation order.
func (o Order) Sequence() []string {
	seq := make([]string, 0, len(o.Sorted)+len(o.Deferred))
	seq = append(seq, o.Sorted...)
	return append(seq, o.Deferred...)
}

// IsDeferred reports whether typ is in Deferred.
func (o Order) IsDeferred(typ string) bool {
	for _, d := range o.Deferred {
		if d == typ {
			return true
		}
	}
	return false
}

type visitState int

const (
	unvisited visitState = iota
	onStack
	done
)

// Sort orders the graph with a depth-first post-order walk. Roots and
// dependencies are visited in ascending name order, so the result depends
// only on the graph.
//
// An edge to a node still on the walk stack closes a cycle. It is dropped
// and its target deferred. A node with a remaining edge to a deferred node
// is deferred too. Sequence() satisfies every edge that was not dropped.
func (g *Graph) Sort() Order {
	state := make(map[string]visitState, g.Len())
	post := make([]string, 0, g.Len())
	deferred := set.NewStrings()
	dropped := make(map[Edge]bool)
	var droppedOrder []Edge

	var visit func(n string)
	visit = func(n string) {
		state[n] = onStack
		for _, dep := range g.Dependencies(n) {
			switch state[dep] {
			case onStack:
				e := Edge{From: n, To: dep}
				dropped[e] = true
				droppedOrder = append(droppedOrder, e)
				deferred.Add(dep)
			case unvisited:
				visit(dep)
			}
		}
		state[n] = done
		post = append(post, n)
	}

	for _, n := range g.Nodes() {
		if state[n] == unvisited {
			visit(n)
		}
	}

	// Kept edges always point earlier in post-order, so one pass settles
	// propagation.
	for _, n := range post {
		if deferred.Contains(n) {
			continue
		}
		for _, dep := range g.Dependencies(n) {
			if !dropped[Edge{From: n, To: dep}] && deferred.Contains(dep) {
				deferred.Add(n)
				break
			}
		}
	}

	order := Order{
		Sorted:   []string{},
		Deferred: []string{},
		Dropped:  []Edge{},
	}
	for _, n := range post {
		if deferred.Contains(n) {
			order.Deferred = append(order.Deferred, n)
		} else {
			order.Sorted = append(order.Sorted, n)
		}
	}
	order.Dropped = append(order.Dropped, droppedOrder...)
	return order
}
