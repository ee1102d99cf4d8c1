// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dag builds and queries the model dependency graph: a dense
// integer node-id arena with parallel upstream/downstream adjacency lists,
// as recommended for a build-once, read-many graph.
package dag

import (
	"fmt"
	"sort"
)

// ErrCycle is returned when the input dependency set contains a cycle.
type ErrCycle struct {
	Cycle []string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("dag: dependency cycle detected: %v", e.Cycle)
}

// Graph is a directed acyclic graph over model names. An edge u -> v means
// "v depends on u" (u must run before v).
type Graph struct {
	nameToID map[string]int
	idToName []string
	upstream [][]int // upstream[v] = nodes v depends on
	downstream [][]int // downstream[u] = nodes that depend on u
	depth    []int
	order    []int // topological order, as node ids
}

// Build constructs a Graph from a map of model name -> its declared
// dependency names. Every dependency name must itself be a key in deps.
func Build(deps map[string][]string) (*Graph, error) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	g := &Graph{nameToID: make(map[string]int, len(names)), idToName: names}
	for i, name := range names {
		g.nameToID[name] = i
	}

	g.upstream = make([][]int, len(names))
	g.downstream = make([][]int, len(names))
	for name, ups := range deps {
		v := g.nameToID[name]
		sortedUps := append([]string(nil), ups...)
		sort.Strings(sortedUps)
		for _, up := range sortedUps {
			u, ok := g.nameToID[up]
			if !ok {
				return nil, fmt.Errorf("dag: model %q declares dependency on unknown model %q", name, up)
			}
			g.upstream[v] = append(g.upstream[v], u)
			g.downstream[u] = append(g.downstream[u], v)
		}
	}

	order, err := topoSort(g)
	if err != nil {
		return nil, err
	}
	g.order = order
	g.depth = computeDepth(g, order)

	return g, nil
}

// NodeName returns the model name for a node id.
func (g *Graph) NodeName(id int) string { return g.idToName[id] }

// NodeID returns the node id for a model name, or false if unknown.
func (g *Graph) NodeID(name string) (int, bool) {
	id, ok := g.nameToID[name]
	return id, ok
}

// TopologicalOrder returns model names in a deterministic topological
// order, ties broken lexicographically by name.
func (g *Graph) TopologicalOrder() []string {
	out := make([]string, len(g.order))
	for i, id := range g.order {
		out[i] = g.idToName[id]
	}
	return out
}

// Depth returns the longest-path depth of a model from any source node
// (a node with no upstream dependencies), used as the planner's
// parallel_group.
func (g *Graph) Depth(name string) (int, bool) {
	id, ok := g.nameToID[name]
	if !ok {
		return 0, false
	}
	return g.depth[id], true
}

// Upstream returns the transitive closure of models that name depends on,
// sorted.
func (g *Graph) Upstream(name string) []string {
	return g.transitiveClosure(name, g.upstream)
}

// Downstream returns the transitive closure of models that depend on name,
// sorted.
func (g *Graph) Downstream(name string) []string {
	return g.transitiveClosure(name, g.downstream)
}

func (g *Graph) transitiveClosure(name string, adj [][]int) []string {
	id, ok := g.nameToID[name]
	if !ok {
		return nil
	}
	visited := make(map[int]struct{})
	queue := append([]int(nil), adj[id]...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if _, seen := visited[n]; seen {
			continue
		}
		visited[n] = struct{}{}
		queue = append(queue, adj[n]...)
	}
	out := make([]string, 0, len(visited))
	for n := range visited {
		out = append(out, g.idToName[n])
	}
	sort.Strings(out)
	return out
}

// topoSort runs Kahn's algorithm with a min-heap-by-name tie-break
// (simulated via re-sorting the ready set each iteration, which is fine at
// the node counts this graph deals with) so that the resulting order is a
// pure function of the input, never of map iteration order.
func topoSort(g *Graph) ([]int, error) {
	n := len(g.idToName)
	inDegree := make([]int, n)
	for v := 0; v < n; v++ {
		inDegree[v] = len(g.upstream[v])
	}

	var ready []int
	for v := 0; v < n; v++ {
		if inDegree[v] == 0 {
			ready = append(ready, v)
		}
	}

	var order []int
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return g.idToName[ready[i]] < g.idToName[ready[j]] })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, v := range g.downstream[next] {
			inDegree[v]--
			if inDegree[v] == 0 {
				ready = append(ready, v)
			}
		}
	}

	if len(order) != n {
		return nil, &ErrCycle{Cycle: findCycle(g)}
	}
	return order, nil
}

// findCycle locates one cycle for the error message via DFS coloring.
func findCycle(g *Graph) []string {
	n := len(g.idToName)
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, n)
	var path []int
	var cycle []int

	var visit func(u int) bool
	visit = func(u int) bool {
		color[u] = gray
		path = append(path, u)
		for _, v := range g.upstream[u] {
			if color[v] == gray {
				// found the back-edge; extract the cycle portion of path
				for i := len(path) - 1; i >= 0; i-- {
					cycle = append(cycle, path[i])
					if path[i] == v {
						break
					}
				}
				return true
			}
			if color[v] == white {
				if visit(v) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[u] = black
		return false
	}

	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		names = append(names, g.idToName[i])
	}
	sort.Strings(names)
	for _, name := range names {
		u := g.nameToID[name]
		if color[u] == white {
			if visit(u) {
				break
			}
		}
	}

	out := make([]string, len(cycle))
	for i, id := range cycle {
		out[i] = g.idToName[id]
	}
	return out
}

func computeDepth(g *Graph, order []int) []int {
	depth := make([]int, len(g.idToName))
	for _, v := range order {
		max := -1
		for _, u := range g.upstream[v] {
			if depth[u] > max {
				max = depth[u]
			}
		}
		depth[v] = max + 1
	}
	return depth
}
