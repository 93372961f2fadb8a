package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build wires a graph from "dep->op" pairs over the given operation ids.
func build(t *testing.T, ids []string, edges ...[2]string) *Graph {
	t.Helper()
	g := New()
	for _, id := range ids {
		g.AddNode(id)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestAddNode_Idempotent(t *testing.T) {
	g := New()
	assert.Zero(t, g.Len())

	g.AddNode("load#1")
	g.AddNode("load#1")
	g.AddNode("train#2")

	require.Equal(t, 2, g.Len())
	n := g.nodes["load#1"]
	assert.Equal(t, 0, n.seq)
	assert.Empty(t, n.deps)
	assert.Empty(t, n.dependents)
	assert.Equal(t, 1, g.nodes["train#2"].seq)
}

func TestAddEdge_LinksBothDirections(t *testing.T) {
	g := build(t, []string{"load#1", "train#2"}, [2]string{"load#1", "train#2"})

	load, train := g.nodes["load#1"], g.nodes["train#2"]
	assert.Same(t, train, load.dependents["train#2"])
	assert.Same(t, load, train.deps["load#1"])
	assert.Empty(t, load.deps)
}

func TestAddEdge_Rejects(t *testing.T) {
	g := build(t, []string{"load#1", "train#2"})

	testCases := []struct {
		name     string
		from, to string
		want     string
	}{
		{"unknown source", "missing#9", "train#2", "source node not found"},
		{"unknown destination", "load#1", "missing#9", "destination node not found"},
		{"self edge", "load#1", "load#1", "self-referential edge"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorContains(t, g.AddEdge(tc.from, tc.to), tc.want)
		})
	}
}

func TestDetectCycles(t *testing.T) {
	testCases := []struct {
		name    string
		ids     []string
		edges   [][2]string
		wantErr bool
	}{
		{name: "empty"},
		{name: "isolated operations", ids: []string{"a", "b", "c"}},
		{
			name:  "diamond with shortcut",
			ids:   []string{"a", "b", "c", "d"},
			edges: [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}, {"c", "d"}},
		},
		{
			name:    "two-node cycle",
			ids:     []string{"a", "b"},
			edges:   [][2]string{{"a", "b"}, {"b", "a"}},
			wantErr: true,
		},
		{
			name:    "cycle back to the root",
			ids:     []string{"a", "b", "c", "d"},
			edges:   [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "a"}},
			wantErr: true,
		},
		{
			name:    "cycle in a separate component",
			ids:     []string{"a", "b", "x", "y", "z"},
			edges:   [][2]string{{"a", "b"}, {"x", "y"}, {"y", "z"}, {"z", "y"}},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := build(t, tc.ids, tc.edges...)
			err := g.DetectCycles()
			if tc.wantErr {
				assert.ErrorContains(t, err, "cycle detected")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNodes_InsertionOrder(t *testing.T) {
	g := New()
	for _, id := range []string{"square#1", "add#2", "print#3"} {
		g.AddNode(id)
	}
	g.AddNode("add#2")

	assert.Equal(t, []string{"square#1", "add#2", "print#3"}, g.Nodes())
	assert.Equal(t, 3, g.Len())
	assert.True(t, g.Has("print#3"))
	assert.False(t, g.Has("missing"))
}

func TestDependencies_Ordered(t *testing.T) {
	g := New()
	for _, id := range []string{"c", "a", "b", "sum"} {
		g.AddNode(id)
	}
	require.NoError(t, g.AddEdge("b", "sum"))
	require.NoError(t, g.AddEdge("c", "sum"))
	require.NoError(t, g.AddEdge("a", "sum"))

	deps, err := g.Dependencies("sum")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, deps)

	dependents, err := g.Dependents("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"sum"}, dependents)

	_, err = g.Dependencies("nope")
	assert.ErrorContains(t, err, "node not found")
}

func TestLayers(t *testing.T) {
	t.Run("diamond", func(t *testing.T) {
		g := New()
		for _, id := range []string{"root", "left", "right", "join", "lone"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("root", "left"))
		require.NoError(t, g.AddEdge("root", "right"))
		require.NoError(t, g.AddEdge("left", "join"))
		require.NoError(t, g.AddEdge("right", "join"))

		layers, err := g.Layers()
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"root", "lone"}, {"left", "right"}, {"join"}}, layers)
	})

	t.Run("cycle", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a"))

		_, err := g.Layers()
		assert.ErrorContains(t, err, "cycle detected")
	})

	t.Run("empty", func(t *testing.T) {
		layers, err := New().Layers()
		require.NoError(t, err)
		assert.Empty(t, layers)
	})
}
