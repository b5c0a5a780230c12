package domain_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/tsl/internal/core/domain"
)

func TestDependencyGraph_AddEdge(t *testing.T) {
	g := domain.NewDependencyGraph()
	g.AddEdge("b.ts", "a.ts")
	g.AddEdge("c.ts", "a.ts")

	assert.Equal(t, []string{"a.ts"}, g.DependenciesOf("b.ts"))
	assert.Equal(t, []string{"b.ts", "c.ts"}, g.DependentsOf("a.ts"))
	assert.Empty(t, g.DependenciesOf("a.ts"))
	assert.True(t, g.Has("a.ts"))
	assert.False(t, g.Has("d.ts"))
	assert.Equal(t, domain.GraphStats{Files: 3, Relationships: 2}, g.Stats())
}

func TestDependencyGraph_AffectedBy(t *testing.T) {
	g := domain.NewDependencyGraph()
	g.AddEdge("B", "A")
	g.AddEdge("C", "B")

	assert.Equal(t, []string{"B", "C"}, g.AffectedBy("A"))
	assert.Equal(t, []string{"C"}, g.AffectedBy("B"))
	assert.Empty(t, g.AffectedBy("C"))

	g.RemoveFile("B")

	assert.Empty(t, g.AffectedBy("A"))
	assert.Empty(t, g.DependenciesOf("C"))
	assert.Empty(t, g.DependentsOf("A"))
}

func TestDependencyGraph_AffectedBy_Cycle(t *testing.T) {
	g := domain.NewDependencyGraph()
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")
	g.AddEdge("C", "A")

	assert.Equal(t, []string{"A", "B", "C"}, g.AffectedBy("A"))
}

func TestDependencyGraph_AffectedBy_Diamond(t *testing.T) {
	g := domain.NewDependencyGraph()
	g.AddEdge("left", "base")
	g.AddEdge("right", "base")
	g.AddEdge("top", "left")
	g.AddEdge("top", "right")

	assert.Equal(t, []string{"left", "right", "top"}, g.AffectedBy("base"))
}

func TestDependencyGraph_AffectedBy_Unknown(t *testing.T) {
	g := domain.NewDependencyGraph()
	assert.Empty(t, g.AffectedBy("missing"))
}

func TestDependencyGraph_RemoveEdges(t *testing.T) {
	g := domain.NewDependencyGraph()
	g.AddEdge("b", "a")
	g.AddEdge("b", "x")
	g.AddEdge("c", "b")

	g.RemoveEdges("b")

	assert.Empty(t, g.DependenciesOf("b"))
	assert.Empty(t, g.DependentsOf("a"))
	assert.Equal(t, []string{"c"}, g.DependentsOf("b"))
	assert.True(t, g.Has("b"))
}

func TestDependencyGraph_Clear(t *testing.T) {
	g := domain.NewDependencyGraph()
	g.AddEdge("b", "a")
	g.Clear()

	assert.False(t, g.Has("a"))
	assert.Equal(t, domain.GraphStats{}, g.Stats())
}

func TestDependencyGraph_InverseMappings(t *testing.T) {
	g := domain.NewDependencyGraph()
	edges := [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}, {"d", "a"}, {"c", "d"}}
	for _, e := range edges {
		g.AddEdge(e[0], e[1])
	}
	g.RemoveFile("c")

	for _, f := range []string{"a", "b", "c", "d"} {
		for _, dep := range g.DependenciesOf(f) {
			assert.Contains(t, g.DependentsOf(dep), f)
		}
		for _, dependent := range g.DependentsOf(f) {
			assert.Contains(t, g.DependenciesOf(dependent), f)
		}
	}
	assert.False(t, g.Has("c"))
}

func TestDependencyGraph_Concurrent(t *testing.T) {
	g := domain.NewDependencyGraph()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			file := string(rune('a' + i))
			g.AddEdge(file, "root")
			_ = g.AffectedBy("root")
		}()
	}
	wg.Wait()

	assert.Len(t, g.AffectedBy("root"), 8)
}
