package geo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countiesGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "37183", "properties": {"STATE": "37", "NAME": "Wake"},
     "geometry": {"type": "Polygon", "coordinates": [[[-79,35],[-78,35],[-78,36],[-79,36],[-79,35]]]}},
    {"type": "Feature", "id": "37063", "properties": {"STATE": "37", "NAME": "Durham"},
     "geometry": {"type": "Polygon", "coordinates": [[[-79,36],[-78,36],[-78,37],[-79,37],[-79,36]]]}},
    {"type": "Feature", "id": "51001", "properties": {"STATE": "51", "NAME": "Accomack"},
     "geometry": {"type": "Polygon", "coordinates": [[[-76,37],[-75,37],[-75,38],[-76,38],[-76,37]]]}}
  ]
}`

func TestDecode_FeatureCollectionStateFilter(t *testing.T) {
	t.Parallel()

	c, err := Decode([]byte(countiesGeoJSON), DecodeOptions{Layer: LayerCounties, StateFIPS: "37"})
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "Wake", c.Features[0].Name)
	assert.Equal(t, "37183", c.Features[0].ID)

	name, ok := c.Locate(-78.6, 35.8)
	assert.True(t, ok)
	assert.Equal(t, "Wake", name)
}

func TestDecode_StateFilterFallsBackToAll(t *testing.T) {
	t.Parallel()

	c, err := Decode([]byte(countiesGeoJSON), DecodeOptions{Layer: LayerCounties, StateFIPS: "06"})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	c, err = Decode([]byte(countiesGeoJSON), DecodeOptions{Layer: LayerCounties})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
}

func TestDecode_IDPrefixFilter(t *testing.T) {
	t.Parallel()

	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":37001,"properties":{"name":"Alamance"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
	  {"type":"Feature","id":"12001","properties":{"name":"Alachua"},"geometry":{"type":"Polygon","coordinates":[[[2,2],[3,2],[3,3],[2,3],[2,2]]]}}
	]}`
	c, err := Decode([]byte(doc), DecodeOptions{Layer: LayerCounties, StateFIPS: "37"})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "Alamance", c.Features[0].Name)
}

func TestDecode_ZipLayerNames(t *testing.T) {
	t.Parallel()

	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"ZCTA5CE10":"27601","STATEFP10":"37"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
	  {"type":"Feature","properties":{"zip":"27603"},"geometry":{"type":"Polygon","coordinates":[[[2,2],[3,2],[3,3],[2,3],[2,2]]]}},
	  {"type":"Feature","properties":{"zip":"27604"},"geometry":null}
	]}`
	c, err := Decode([]byte(doc), DecodeOptions{Layer: LayerZips, StateFIPS: "37"})
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "27601", c.Features[0].Name)
	assert.Equal(t, "27603", c.Features[1].Name)
}

func TestDecode_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"type":"Feature"}`), DecodeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")

	_, err = Decode([]byte(`not json`), DecodeOptions{})
	assert.Error(t, err)
}

// Two unit squares side by side sharing the arc x=1. Arcs are quantized and
// delta-encoded with scale 1 and translate (-80, 35).
const countiesTopoJSON = `{
  "type": "Topology",
  "transform": {"scale": [1, 1], "translate": [-80, 35]},
  "objects": {
    "counties": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "id": "37001", "properties": {"NAME": "West", "STATE": "37"}, "arcs": [[0, 1]]},
        {"type": "MultiPolygon", "id": "37002", "properties": {"NAME": "East", "STATE": "37"}, "arcs": [[[-1, 2]]]},
        {"type": "Point", "id": "x", "coordinates": [0, 0]}
      ]
    },
    "other": {"type": "GeometryCollection", "geometries": []}
  },
  "arcs": [
    [[1, 0], [0, 1]],
    [[1, 1], [-1, 0], [0, -1], [1, 0]],
    [[1, 0], [1, 0], [0, 1], [-1, 0]]
  ]
}`

func TestDecode_Topology(t *testing.T) {
	t.Parallel()

	c, err := Decode([]byte(countiesTopoJSON), DecodeOptions{Layer: LayerCounties, StateFIPS: "37"})
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "West", c.Features[0].Name)
	assert.Equal(t, "37001", c.Features[0].ID)

	// West covers x in [-80,-79], East covers x in [-79,-78], y in [35,36].
	name, ok := c.Locate(-79.5, 35.5)
	assert.True(t, ok)
	assert.Equal(t, "West", name)

	name, ok = c.Locate(-78.5, 35.5)
	assert.True(t, ok)
	assert.Equal(t, "East", name)

	_, ok = c.Locate(-77.5, 35.5)
	assert.False(t, ok)
}

func TestDecode_TopologyStateFilter(t *testing.T) {
	t.Parallel()

	doc := strings.Replace(countiesTopoJSON,
		`"id": "37002", "properties": {"NAME": "East", "STATE": "37"}`,
		`"id": "45002", "properties": {"NAME": "East", "STATE": "45"}`, 1)

	c, err := Decode([]byte(doc), DecodeOptions{Layer: LayerCounties, StateFIPS: "37"})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "West", c.Features[0].Name)

	_, ok := c.Locate(-78.5, 35.5)
	assert.False(t, ok)

	all, err := Decode([]byte(doc), DecodeOptions{Layer: LayerCounties})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Len())
}

func TestDecode_TopologyArcOutOfRange(t *testing.T) {
	t.Parallel()

	doc := `{"type":"Topology","objects":{"o":{"type":"Polygon","arcs":[[5]]}},"arcs":[]}`
	_, err := Decode([]byte(doc), DecodeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestDecode_TopologyNoObjects(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"type":"Topology","objects":{},"arcs":[]}`), DecodeOptions{})
	assert.Error(t, err)
}

func TestTopologyRing_Untransformed(t *testing.T) {
	t.Parallel()

	topo := &topology{Arcs: [][][]float64{{{0, 0}, {2, 0}}, {{2, 0}, {2, 2}, {0, 0}}}}
	topo.decodeArcs()

	flat, err := topo.ring([]int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 2, 0, 2, 2, 0, 0}, flat)

	flat, err = topo.ring([]int{^0})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0, 0, 0, 2, 0}, flat)
}
