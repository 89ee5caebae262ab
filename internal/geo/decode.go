package geo

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// DecodeOptions controls how a boundary document becomes a Collection.
type DecodeOptions struct {
	Layer string
	// StateFIPS keeps only features whose STATE/STATEFP property equals it
	// or whose id starts with it. When nothing matches, all features are
	// kept. Empty disables the filter.
	StateFIPS string
	// NameKeys lists the properties tried, in order, for the feature name.
	NameKeys []string
}

// NameKeysFor returns the default name properties for a layer.
func NameKeysFor(layer string) []string {
	if layer == LayerZips {
		return []string{"ZCTA5CE10", "zip"}
	}
	return []string{"NAME", "name"}
}

func (o DecodeOptions) nameKeys() []string {
	if len(o.NameKeys) > 0 {
		return o.NameKeys
	}
	return NameKeysFor(o.Layer)
}

// Decode parses a GeoJSON FeatureCollection or a TopoJSON Topology. For a
// topology only the first object is converted.
func Decode(data []byte, opts DecodeOptions) (*Collection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrap(err, "geo: decode boundary document")
	}

	var (
		features []*Feature
		err      error
	)
	switch head.Type {
	case "FeatureCollection":
		features, err = decodeFeatureCollection(data, opts.nameKeys())
	case "Topology":
		features, err = decodeTopology(data, opts.nameKeys())
	default:
		return nil, eris.Errorf("geo: unsupported boundary document type %q", head.Type)
	}
	if err != nil {
		return nil, err
	}

	// Topologies are filtered too, so a national county topology narrows to
	// the configured state like its GeoJSON equivalent.
	return &Collection{
		Layer:    opts.Layer,
		Features: filterState(features, opts.StateFIPS),
	}, nil
}

func decodeFeatureCollection(data []byte, nameKeys []string) ([]*Feature, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "geo: decode feature collection")
	}

	out := make([]*Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		out = append(out, &Feature{
			ID:         f.ID,
			Name:       firstProp(f.Properties, nameKeys),
			Properties: f.Properties,
			Geometry:   f.Geometry,
		})
	}
	return out, nil
}

func filterState(features []*Feature, fips string) []*Feature {
	if fips == "" {
		return features
	}
	var kept []*Feature
	for _, f := range features {
		if propString(f.Properties["STATE"]) == fips ||
			propString(f.Properties["STATEFP"]) == fips ||
			strings.HasPrefix(f.ID, fips) {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return features
	}
	return kept
}

type topology struct {
	Transform *struct {
		Scale     [2]float64 `json:"scale"`
		Translate [2]float64 `json:"translate"`
	} `json:"transform"`
	Arcs    [][][]float64   `json:"arcs"`
	Objects json.RawMessage `json:"objects"`

	decoded [][][2]float64
}

type topoGeometry struct {
	Type       string          `json:"type"`
	ID         any             `json:"id"`
	Properties map[string]any  `json:"properties"`
	Arcs       json.RawMessage `json:"arcs"`
	Geometries []topoGeometry  `json:"geometries"`
}

func decodeTopology(data []byte, nameKeys []string) ([]*Feature, error) {
	var topo topology
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, eris.Wrap(err, "geo: decode topology")
	}

	raw, err := firstObject(topo.Objects)
	if err != nil {
		return nil, err
	}
	var obj topoGeometry
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, eris.Wrap(err, "geo: decode topology object")
	}

	topo.decodeArcs()

	members := []topoGeometry{obj}
	if obj.Type == "GeometryCollection" {
		members = obj.Geometries
	}

	out := make([]*Feature, 0, len(members))
	for _, m := range members {
		g, err := topo.geometry(m)
		if err != nil {
			return nil, err
		}
		if g == nil {
			zap.L().Debug("geo: skipping non-areal topology geometry", zap.String("type", m.Type))
			continue
		}
		out = append(out, &Feature{
			ID:         propString(m.ID),
			Name:       firstProp(m.Properties, nameKeys),
			Properties: m.Properties,
			Geometry:   g,
		})
	}
	return out, nil
}

// firstObject returns the first member of the objects map in document order.
func firstObject(objects json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(objects))
	tok, err := dec.Token()
	if err != nil {
		return nil, eris.Wrap(err, "geo: read topology objects")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, eris.New("geo: topology objects must be an object")
	}
	if !dec.More() {
		return nil, eris.New("geo: topology has no objects")
	}
	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "geo: read topology object name")
	}
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "geo: read topology object")
	}
	return raw, nil
}

// decodeArcs resolves delta-encoded, quantized arcs into absolute positions.
func (t *topology) decodeArcs() {
	t.decoded = make([][][2]float64, len(t.Arcs))
	for i, arc := range t.Arcs {
		pts := make([][2]float64, 0, len(arc))
		var x, y float64
		for _, p := range arc {
			if len(p) < 2 {
				continue
			}
			if t.Transform == nil {
				pts = append(pts, [2]float64{p[0], p[1]})
				continue
			}
			x += p[0]
			y += p[1]
			pts = append(pts, [2]float64{
				x*t.Transform.Scale[0] + t.Transform.Translate[0],
				y*t.Transform.Scale[1] + t.Transform.Translate[1],
			})
		}
		t.decoded[i] = pts
	}
}

// ring stitches arcs into one closed ring. A negative index ~i walks arc i
// backwards. Shared endpoints between consecutive arcs are emitted once.
func (t *topology) ring(indices []int) ([]float64, error) {
	var pts [][2]float64
	for _, idx := range indices {
		reverse := idx < 0
		if reverse {
			idx = ^idx
		}
		if idx >= len(t.decoded) {
			return nil, eris.Errorf("geo: arc index %d out of range", idx)
		}
		arc := t.decoded[idx]
		if len(pts) > 0 {
			pts = pts[:len(pts)-1]
		}
		if reverse {
			for k := len(arc) - 1; k >= 0; k-- {
				pts = append(pts, arc[k])
			}
		} else {
			pts = append(pts, arc...)
		}
	}
	if len(pts) > 0 && len(pts) < 4 {
		pts = append(pts, pts[0])
	}

	flat := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		flat = append(flat, p[0], p[1])
	}
	return flat, nil
}

func (t *topology) polygon(rings [][]int) ([]float64, []int, error) {
	var (
		flat []float64
		ends []int
	)
	for _, r := range rings {
		coords, err := t.ring(r)
		if err != nil {
			return nil, nil, err
		}
		flat = append(flat, coords...)
		ends = append(ends, len(flat))
	}
	return flat, ends, nil
}

// geometry converts Polygon and MultiPolygon members. Other types return nil.
func (t *topology) geometry(g topoGeometry) (geom.T, error) {
	switch g.Type {
	case "Polygon":
		var rings [][]int
		if err := json.Unmarshal(g.Arcs, &rings); err != nil {
			return nil, eris.Wrap(err, "geo: decode polygon arcs")
		}
		flat, ends, err := t.polygon(rings)
		if err != nil {
			return nil, err
		}
		return geom.NewPolygonFlat(geom.XY, flat, ends), nil

	case "MultiPolygon":
		var polys [][][]int
		if err := json.Unmarshal(g.Arcs, &polys); err != nil {
			return nil, eris.Wrap(err, "geo: decode multipolygon arcs")
		}
		var (
			flat  []float64
			endss [][]int
		)
		for _, rings := range polys {
			pf, pe, err := t.polygon(rings)
			if err != nil {
				return nil, err
			}
			offset := len(flat)
			flat = append(flat, pf...)
			shifted := make([]int, len(pe))
			for i, e := range pe {
				shifted[i] = e + offset
			}
			endss = append(endss, shifted)
		}
		return geom.NewMultiPolygonFlat(geom.XY, flat, endss), nil
	}
	return nil, nil
}
