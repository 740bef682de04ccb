package showcase

import (
	"image/color"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDae = `<?xml version="1.0" encoding="utf-8"?>
<COLLADA xmlns="http://www.collada.org/2005/11/COLLADASchema" version="1.4.1">
  <asset><up_axis>Y_UP</up_axis></asset>
  <library_images>
    <image id="label-img"><init_from><ref>label.png</ref></init_from></image>
  </library_images>
  <library_effects>
    <effect id="cap-fx">
      <profile_COMMON>
        <technique sid="common">
          <phong>
            <diffuse><color>1 0 0 1</color></diffuse>
            <shininess><float>98</float></shininess>
          </phong>
        </technique>
      </profile_COMMON>
    </effect>
    <effect id="label-fx">
      <profile_COMMON>
        <newparam sid="label-sampler">
          <sampler2D><instance_image url="#label-img"/></sampler2D>
        </newparam>
        <technique sid="common">
          <phong>
            <diffuse><texture texture="label-sampler" texcoord="UV0"/></diffuse>
            <transparency><float>0.5</float></transparency>
          </phong>
        </technique>
      </profile_COMMON>
    </effect>
  </library_effects>
  <library_materials>
    <material id="CapMat"><instance_effect url="#cap-fx"/></material>
    <material id="LabelMat"><instance_effect url="#label-fx"/></material>
  </library_materials>
  <library_geometries>
    <geometry id="quad" name="quad">
      <mesh>
        <source id="quad-pos">
          <float_array id="quad-pos-array" count="12">0 0 0 1 0 0 1 1 0 0 1 0</float_array>
          <technique_common><accessor source="#quad-pos-array" count="4" stride="3"/></technique_common>
        </source>
        <source id="quad-uv">
          <float_array id="quad-uv-array" count="8">0 0 1 0 1 1 0 1</float_array>
          <technique_common><accessor source="#quad-uv-array" count="4" stride="2"/></technique_common>
        </source>
        <vertices id="quad-vtx"><input semantic="POSITION" source="#quad-pos"/></vertices>
        <polylist material="LabelMat" count="1">
          <input semantic="VERTEX" source="#quad-vtx" offset="0"/>
          <input semantic="TEXCOORD" source="#quad-uv" offset="1"/>
          <vcount>4</vcount>
          <p>0 0 1 1 2 2 3 3</p>
        </polylist>
        <triangles material="CapMat" count="1">
          <input semantic="VERTEX" source="#quad-vtx" offset="0"/>
          <p>0 1 2</p>
        </triangles>
      </mesh>
    </geometry>
    <geometry id="tri" name="tri">
      <mesh>
        <source id="tri-pos">
          <float_array id="tri-pos-array" count="9">0 0 0 1 0 0 0 1 0</float_array>
          <technique_common><accessor source="#tri-pos-array" count="3" stride="3"/></technique_common>
        </source>
        <vertices id="tri-vtx"><input semantic="POSITION" source="#tri-pos"/></vertices>
        <triangles material="CapMat" count="1">
          <input semantic="VERTEX" source="#tri-vtx" offset="0"/>
          <p>0 1 2</p>
        </triangles>
      </mesh>
    </geometry>
  </library_geometries>
  <library_visual_scenes>
    <visual_scene id="scene">
      <node id="bottle" name="Bottle">
        <translate>0 0 2</translate>
        <instance_geometry url="#quad"/>
        <node id="cap" name="Cap">
          <translate>0 3 0</translate>
          <instance_geometry url="#tri"/>
        </node>
      </node>
    </visual_scene>
  </library_visual_scenes>
  <scene><instance_visual_scene url="#scene"/></scene>
</COLLADA>`

func TestDaeDecoderNodesAndMaterials(t *testing.T) {
	label := testPNG(t, 2, 2, color.RGBA{0, 0, 255, 255})
	dec := &DaeDecoder{}
	dec.SetResources(func(uri string) ([]byte, error) {
		if uri == "label.png" {
			return label, nil
		}
		return nil, os.ErrNotExist
	})
	m, err := dec.Decode("bottle.dae", []byte(testDae))
	require.NoError(t, err)
	assert.Equal(t, []string{"Bottle.0", "Bottle.1", "Cap"}, m.Names())

	body := m.Parts[0]
	assert.Equal(t, 2, body.Triangles())
	assert.InDelta(t, 2, body.Bounds.Min[2], 1e-9)
	assert.InDelta(t, 1, body.Bounds.Max[0], 1e-9)
	require.NotNil(t, body.Material.Map)
	w, _ := body.Material.Map.Size()
	assert.Equal(t, 2, w)
	assert.Equal(t, uint8(128), body.Material.Color.A)

	assert.Equal(t, 1, m.Parts[1].Triangles())
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, m.Parts[1].Material.Color)
	assert.InDelta(t, 0.1414, m.Parts[1].Material.Roughness, 1e-3)

	// child transforms compose with the parent's
	cap := m.Parts[2]
	assert.Equal(t, 1, cap.Triangles())
	assert.InDelta(t, 3, cap.Bounds.Min[1], 1e-9)
	assert.InDelta(t, 2, cap.Bounds.Min[2], 1e-9)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, cap.Material.Color)
	assert.NotSame(t, m.Parts[1].Material, cap.Material)
}

func TestDaeDecoderWithoutResources(t *testing.T) {
	m, err := DecoderFactory("dae").Decode("bottle.dae", []byte(testDae))
	require.NoError(t, err)
	require.Len(t, m.Parts, 3)
	assert.Nil(t, m.Parts[0].Material.Map)
}

func TestDaeDecoderZUp(t *testing.T) {
	doc := `<COLLADA version="1.4.1">
  <asset><up_axis>Z_UP</up_axis></asset>
  <library_geometries>
    <geometry id="tri">
      <mesh>
        <source id="p">
          <float_array id="pa" count="9">0 0 0 1 0 0 0 0 1</float_array>
          <technique_common><accessor source="#pa" count="3" stride="3"/></technique_common>
        </source>
        <vertices id="v"><input semantic="POSITION" source="#p"/></vertices>
        <triangles count="1"><input semantic="VERTEX" source="#v" offset="0"/><p>0 1 2</p></triangles>
      </mesh>
    </geometry>
  </library_geometries>
  <library_visual_scenes>
    <visual_scene id="s"><node id="n"><instance_geometry url="#tri"/></node></visual_scene>
  </library_visual_scenes>
</COLLADA>`
	m, err := DecoderFactory("dae").Decode("up.dae", []byte(doc))
	require.NoError(t, err)
	require.Len(t, m.Parts, 1)
	assert.Equal(t, "n", m.Parts[0].Name)
	// +Z becomes +Y
	assert.InDelta(t, 1, m.Parts[0].Bounds.Max[1], 1e-6)
	assert.InDelta(t, 0, m.Parts[0].Bounds.Max[2], 1e-6)
}

func TestDaeDecoderRejectsGarbage(t *testing.T) {
	_, err := DecoderFactory("dae").Decode("broken.dae", []byte("<not-collada/>"))
	assert.Error(t, err)

	_, err = DecoderFactory("dae").Decode("empty.dae", []byte(`<COLLADA version="1.4.1"></COLLADA>`))
	assert.Error(t, err)

	bad := `<COLLADA version="1.4.1">
  <library_geometries><geometry id="g"><mesh>
    <source id="p"><float_array id="pa" count="3">0 0 0</float_array>
      <technique_common><accessor source="#pa" count="1" stride="3"/></technique_common></source>
    <vertices id="v"><input semantic="POSITION" source="#p"/></vertices>
    <triangles count="1"><input semantic="VERTEX" source="#v" offset="0"/><p>0 1 7</p></triangles>
  </mesh></geometry></library_geometries>
  <library_visual_scenes><visual_scene id="s"><node id="n"><instance_geometry url="#g"/></node></visual_scene></library_visual_scenes>
</COLLADA>`
	_, err = DecoderFactory("dae").Decode("bad.dae", []byte(bad))
	assert.ErrorContains(t, err, "out of range")
}
