package groups

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/smart-trapper/internal/artwork"
)

func newDoc(names ...string) *artwork.Document {
	doc := artwork.NewDocument("groups.psd", 10, 10, 72)
	for _, n := range names {
		doc.Layers = append(doc.Layers, artwork.NewPixelLayer(n, image.Rect(0, 0, 10, 10)))
	}
	return doc
}

func names(layers []*artwork.Layer) []string {
	out := make([]string, 0, len(layers))
	for _, l := range layers {
		out = append(out, l.Name)
	}
	return out
}

func TestNames(t *testing.T) {
	assert.Equal(t, "COLOR__Red", GroupName("Red"))
	assert.Equal(t, "COLOR__Spot_1", GroupName(" Spot/1 "))
	assert.Equal(t, "TRAP__Red_over_KEY", TrapLayerName("Red", "KEY"))
	assert.Equal(t, "TRAP__a_b_over_c_d", TrapLayerName("a:b", "c|d"))
}

func TestEnsureGroupWrapsInPlace(t *testing.T) {
	doc := newDoc("KEY", "Red", "Blue", "PAPER")
	red, blue := doc.Layers[1], doc.Layers[2]
	m := NewManager(nil)

	m.EnsurePlateGroups(doc, []*artwork.Layer{blue, red})
	assert.Equal(t, []string{"KEY", "COLOR__Red", "COLOR__Blue", "PAPER"}, names(doc.Layers))
	assert.Same(t, doc.Layers[1], red.Parent)

	// A second pass finds the existing containers.
	m.EnsurePlateGroups(doc, []*artwork.Layer{blue, red})
	assert.Equal(t, []string{"KEY", "COLOR__Red", "COLOR__Blue", "PAPER"}, names(doc.Layers))
	assert.Len(t, doc.Layers[1].Children, 1)
}

func TestFindGroupAndBase(t *testing.T) {
	doc := newDoc("KEY", "Red", "PAPER")
	red := doc.Layers[1]
	m := NewManager(nil)
	g, err := m.EnsureGroup(doc, red)
	require.NoError(t, err)

	trap := artwork.NewPixelLayer("Red", doc.Canvas())
	trap.Name = TrapLayerName("Red", "KEY")
	require.NoError(t, doc.InsertAbove(red, trap))

	found, err := m.FindGroup(doc, "Red")
	require.NoError(t, err)
	assert.Same(t, g, found)

	base, err := m.FindBase(g, "Red")
	require.NoError(t, err)
	assert.Same(t, red, base)

	_, err = m.FindGroup(doc, "Green")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.FindBase(g, "Green")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupsRequireUniqueness(t *testing.T) {
	doc := newDoc("KEY", "Red", "PAPER")
	m := NewManager(nil)
	g, err := m.EnsureGroup(doc, doc.Layers[1])
	require.NoError(t, err)

	dup := artwork.NewPixelLayer("Red", doc.Canvas())
	require.NoError(t, doc.Insert(g, 0, dup))
	_, err = m.FindBase(g, "Red")
	assert.ErrorIs(t, err, ErrAmbiguous)

	nested := artwork.NewGroup("inner")
	require.NoError(t, doc.Insert(g, 0, nested))
	require.NoError(t, doc.Insert(nested, 0, artwork.NewGroup("COLOR__Red")))
	_, err = m.FindGroup(doc, "Red")
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestRemoveTrapsAtAnyDepth(t *testing.T) {
	doc := newDoc("KEY", "Red", "Blue", "PAPER")
	m := NewManager(nil)
	red, blue := doc.Layers[1], doc.Layers[2]
	gRed, err := m.EnsureGroup(doc, red)
	require.NoError(t, err)
	_, err = m.EnsureGroup(doc, blue)
	require.NoError(t, err)

	for _, add := range []struct {
		ref  *artwork.Layer
		name string
	}{
		{red, TrapLayerName("Red", "KEY")},
		{red, TrapLayerName("Red", "Blue")},
		{blue, TrapLayerName("Blue", "KEY")},
	} {
		require.NoError(t, doc.InsertAbove(add.ref, artwork.NewPixelLayer(add.name, doc.Canvas())))
	}
	deep := artwork.NewGroup("nested")
	require.NoError(t, doc.Insert(gRed, 0, deep))
	require.NoError(t, doc.Insert(deep, 0, artwork.NewPixelLayer("TRAP__old", doc.Canvas())))
	require.NoError(t, doc.Insert(nil, 0, artwork.NewPixelLayer("TRAP__stray", doc.Canvas())))

	assert.Equal(t, 5, m.RemoveTraps(doc))

	var left []string
	doc.Walk(func(l *artwork.Layer) bool {
		left = append(left, l.Path())
		return true
	})
	assert.Equal(t, []string{
		"KEY",
		"COLOR__Red", "COLOR__Red/nested", "COLOR__Red/Red",
		"COLOR__Blue", "COLOR__Blue/Blue",
		"PAPER",
	}, left)
	assert.Zero(t, m.RemoveTraps(doc))
}
