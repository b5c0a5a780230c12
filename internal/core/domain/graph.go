// Package domain contains the core value types of the compilation pipeline.
package domain

import (
	"slices"
	"sync"
)

// DependencyGraph tracks which files import which. dependencies and dependents
// are kept as exact inverses: b ∈ dependents[a] iff a ∈ dependencies[b].
type DependencyGraph struct {
	mu           sync.RWMutex
	dependencies map[InternedString]map[InternedString]struct{}
	dependents   map[InternedString]map[InternedString]struct{}
}

// GraphStats describes the size of the graph.
type GraphStats struct {
	Files         int `json:"files"`
	Relationships int `json:"relationships"`
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		dependencies: make(map[InternedString]map[InternedString]struct{}),
		dependents:   make(map[InternedString]map[InternedString]struct{}),
	}
}

// AddEdge records that file depends on dependency. Both endpoints are created if absent.
func (g *DependencyGraph) AddEdge(file, dependency string) {
	f, d := NewInternedString(file), NewInternedString(dependency)

	g.mu.Lock()
	defer g.mu.Unlock()

	link(g.dependencies, f, d)
	link(g.dependents, d, f)
	ensure(g.dependencies, d)
	ensure(g.dependents, f)
}

// RemoveEdges drops every outgoing edge of file, keeping the node and its dependents.
func (g *DependencyGraph) RemoveEdges(file string) {
	f := NewInternedString(file)

	g.mu.Lock()
	defer g.mu.Unlock()

	for d := range g.dependencies[f] {
		delete(g.dependents[d], f)
	}
	if _, ok := g.dependencies[f]; ok {
		g.dependencies[f] = make(map[InternedString]struct{})
	}
}

// DependenciesOf returns the files file depends on, sorted.
func (g *DependencyGraph) DependenciesOf(file string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.dependencies[NewInternedString(file)])
}

// DependentsOf returns the files that depend on file, sorted.
func (g *DependencyGraph) DependentsOf(file string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.dependents[NewInternedString(file)])
}

// Has reports whether file is a node of the graph.
func (g *DependencyGraph) Has(file string) bool {
	f := NewInternedString(file)

	g.mu.RLock()
	defer g.mu.RUnlock()

	_, a := g.dependencies[f]
	_, b := g.dependents[f]
	return a || b
}

// RemoveFile deletes file from both mappings and from every set referencing it.
func (g *DependencyGraph) RemoveFile(file string) {
	f := NewInternedString(file)

	g.mu.Lock()
	defer g.mu.Unlock()

	for d := range g.dependencies[f] {
		delete(g.dependents[d], f)
	}
	for d := range g.dependents[f] {
		delete(g.dependencies[d], f)
	}
	delete(g.dependencies, f)
	delete(g.dependents, f)
}

// AffectedBy returns every file transitively depending on changed, sorted.
// changed itself is included only when it lies on a cycle.
func (g *DependencyGraph) AffectedBy(changed string) []string {
	start := NewInternedString(changed)

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[InternedString]struct{})
	queue := []InternedString{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for dep := range g.dependents[current] {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}

	return sortedKeys(visited)
}

// Clear removes every node and edge.
func (g *DependencyGraph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dependencies = make(map[InternedString]map[InternedString]struct{})
	g.dependents = make(map[InternedString]map[InternedString]struct{})
}

// Stats returns the number of files and edges.
func (g *DependencyGraph) Stats() GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	files := make(map[InternedString]struct{}, len(g.dependencies))
	edges := 0
	for f, deps := range g.dependencies {
		files[f] = struct{}{}
		edges += len(deps)
	}
	for f := range g.dependents {
		files[f] = struct{}{}
	}
	return GraphStats{Files: len(files), Relationships: edges}
}

func link(m map[InternedString]map[InternedString]struct{}, from, to InternedString) {
	set, ok := m[from]
	if !ok {
		set = make(map[InternedString]struct{})
		m[from] = set
	}
	set[to] = struct{}{}
}

func ensure(m map[InternedString]map[InternedString]struct{}, node InternedString) {
	if _, ok := m[node]; !ok {
		m[node] = make(map[InternedString]struct{})
	}
}

func sortedKeys(set map[InternedString]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k.String())
	}
	slices.Sort(out)
	return out
}
