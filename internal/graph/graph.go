// Package graph provides the dependency graph used to validate and order plans.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/mdsa/pkg/domain"
)

// Graph is a directed graph where an edge from -> to means "from depends on to".
// Node order is the insertion order, which keeps sorting deterministic.
type Graph struct {
	order []string
	nodes map[string]bool
	deps  map[string][]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		deps:  make(map[string][]string),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	if g.nodes[id] {
		return
	}
	g.nodes[id] = true
	g.order = append(g.order, id)
}

// HasNode reports whether id was added.
func (g *Graph) HasNode(id string) bool {
	return g.nodes[id]
}

// AddEdge records that from depends on to. The edge is rejected with a
// *CycleError if it would close a cycle.
func (g *Graph) AddEdge(from, to string) error {
	g.AddNode(from)
	g.AddNode(to)

	if path, ok := g.path(to, from); ok {
		return &CycleError{Path: append(path, to)}
	}
	for _, d := range g.deps[from] {
		if d == to {
			return nil
		}
	}
	g.deps[from] = append(g.deps[from], to)
	return nil
}

// path returns a dependency path from src to dst (BFS), if one exists.
func (g *Graph) path(src, dst string) ([]string, bool) {
	if src == dst {
		return []string{src}, true
	}
	parent := map[string]string{src: ""}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.deps[cur] {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = cur
			if next == dst {
				var p []string
				for n := dst; n != ""; n = parent[n] {
					p = append([]string{n}, p...)
				}
				return p, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// Dependencies returns the direct dependencies of id.
func (g *Graph) Dependencies(id string) []string {
	return append([]string(nil), g.deps[id]...)
}

// Dependents returns the nodes that directly depend on id, in insertion order.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, n := range g.order {
		for _, d := range g.deps[n] {
			if d == id {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// TopologicalSort returns the nodes dependencies-first (Kahn's algorithm).
// Among ready nodes the insertion order is kept.
func (g *Graph) TopologicalSort() ([]string, error) {
	pending := make(map[string]int, len(g.order))
	for _, n := range g.order {
		pending[n] = len(g.deps[n])
	}

	result := make([]string, 0, len(g.order))
	done := make(map[string]bool, len(g.order))
	for len(result) < len(g.order) {
		progressed := false
		for _, n := range g.order {
			if done[n] || pending[n] > 0 {
				continue
			}
			done[n] = true
			result = append(result, n)
			progressed = true
			for _, dependent := range g.Dependents(n) {
				pending[dependent]--
			}
			break
		}
		if !progressed {
			return nil, &CycleError{Path: g.remaining(done)}
		}
	}
	return result, nil
}

func (g *Graph) remaining(done map[string]bool) []string {
	var out []string
	for _, n := range g.order {
		if !done[n] {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// CycleError represents a circular dependency.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "circular dependency detected"
	}
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
}

// Unwrap lets callers match domain.ErrCyclicPlan.
func (e *CycleError) Unwrap() error {
	return domain.ErrCyclicPlan
}
