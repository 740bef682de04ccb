package showcase

import (
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bottleModel(t *testing.T) *Model {
	t.Helper()
	m, err := DecoderFactory("glb").Decode("bottle.glb", testGLB(t, bottleParts...))
	require.NoError(t, err)
	return m
}

func TestDecodeBottle(t *testing.T) {
	m := bottleModel(t)
	require.Len(t, m.Parts, len(bottleParts))
	assert.Equal(t, bottleParts, m.Names())
	for i, p := range m.Parts {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, 1, p.Triangles())
		assert.NotNil(t, p.Material)
		assert.InDelta(t, float64(i), p.Bounds.Min[0], 1e-6)
	}
	assert.Equal(t, len(bottleParts), m.Triangles())

	_, err := m.PartAt(7)
	assert.ErrorIs(t, err, ErrNoPart)
}

func TestAssignSlotsByIndex(t *testing.T) {
	m := bottleModel(t)
	before := make([]*Material, len(m.Parts))
	for i, p := range m.Parts {
		before[i] = p.Material
	}

	glass := NewMaterial()
	glass.Transmission = 1
	glass.Roughness = 0.01
	slots, err := AssignSlots(m, []SlotSpec{{Name: "glass", Index: idx(4), Material: glass}})
	require.NoError(t, err)
	require.Contains(t, slots, "glass")
	assert.Equal(t, "Glass", slots["glass"].Name)

	for i, p := range m.Parts {
		if i == 4 {
			assert.Equal(t, float32(1), p.Material.Transmission)
			assert.NotSame(t, glass, p.Material)
			assert.Equal(t, before[i].Version+1, p.Material.Version)
			continue
		}
		assert.Same(t, before[i], p.Material, p.Name)
	}
}

func TestAssignSlotsByMeshName(t *testing.T) {
	m := bottleModel(t)
	red := NewMaterial()
	red.Color = color.RGBA{255, 0, 0, 255}
	specs := []SlotSpec{
		{Name: "cap", Mesh: "Cap", Material: red},
		{Name: "capTop", Mesh: "CapTop", Material: red},
	}
	slots, err := AssignSlots(m, specs)
	require.NoError(t, err)
	assert.Equal(t, 0, slots["cap"].Index)
	assert.Equal(t, 1, slots["capTop"].Index)
	// Each slot gets its own copy.
	assert.NotSame(t, slots["cap"].Material, slots["capTop"].Material)
	assert.Equal(t, red.Color, slots["capTop"].Material.Color)
}

func TestResolveSlotsReportsEveryProblem(t *testing.T) {
	m := bottleModel(t)
	specs := []SlotSpec{
		{Name: "cap", Index: idx(0)},
		{Name: "cap", Index: idx(1)},
		{Name: "label", Mesh: "Label"},
		{Name: "far", Index: idx(12)},
		{Name: "again", Mesh: "Cap"},
		{Name: "nothing"},
		{Mesh: "Foil"},
	}
	slots, err := ResolveSlots(m, specs)
	assert.Nil(t, slots)

	var se *SlotError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "bottle.glb", se.Model)
	assert.Len(t, se.Problems, 6)
	assert.Contains(t, err.Error(), `"cap" declared twice`)
	assert.Contains(t, err.Error(), `no part named "Label"`)
	assert.Contains(t, err.Error(), "index 12 out of range")
	assert.Contains(t, err.Error(), `part "Cap" claimed by both`)

	// A failed resolve leaves materials untouched.
	_, err = AssignSlots(m, specs)
	assert.Error(t, err)
	for _, p := range m.Parts {
		assert.Zero(t, p.Material.Version)
	}
}

func TestTextureBindingApply(t *testing.T) {
	m := bottleModel(t)
	slots, err := ResolveSlots(m, []SlotSpec{
		{Name: "labelFront", Index: idx(2)},
		{Name: "logo", Index: idx(3)},
	})
	require.NoError(t, err)

	tex := &Texture{Name: "noise"}
	b := TextureBinding{URL: "/textures/Noise_Normal_Map.jpg", Bind: []MapBinding{
		{Slot: "labelFront", Map: MapNormal},
		{Slot: "logo", Map: MapNormal},
	}}
	require.NoError(t, b.Apply(slots, tex))
	assert.Same(t, tex, slots["labelFront"].Material.NormalMap)
	assert.Same(t, tex, slots["logo"].Material.NormalMap)

	mra := TextureBinding{URL: "mra.png", Bind: []MapBinding{{Slot: "labelFront", Map: MapMRA}, {Slot: "missing", Map: MapColor}}}
	err = mra.Apply(slots, tex)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no slot named "missing"`)
	// Known slots are still bound.
	assert.Same(t, tex, slots["labelFront"].Material.RoughnessMap)
	assert.Same(t, tex, slots["labelFront"].Material.MetalnessMap)
}

func TestTextureBindingValidate(t *testing.T) {
	names := map[string]bool{"foil": true}
	ok := TextureBinding{URL: "a.png", Bind: []MapBinding{{Slot: "foil", Map: MapNormal}}}
	assert.NoError(t, ok.Validate(names))

	bad := TextureBinding{Bind: []MapBinding{{Slot: "glass", Map: "sheen"}}}
	err := bad.Validate(names)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without url")
	assert.Contains(t, err.Error(), `"sheen"`)
	assert.Contains(t, err.Error(), "glass")
}
