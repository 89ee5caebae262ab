// Package geo holds region boundary layers (counties, zip areas) and answers
// point-in-region questions used for reverse geocoding.
package geo

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
)

// Layer names.
const (
	LayerCounties = "counties"
	LayerZips     = "zips"
)

// Feature is one named region.
type Feature struct {
	ID         string
	Name       string
	Properties map[string]any
	Geometry   geom.T
}

// Locator resolves a point to the name of the region containing it.
type Locator interface {
	Locate(lng, lat float64) (name string, ok bool)
}

// Containment decides whether a point lies inside a feature.
type Containment interface {
	Contains(f *Feature, lng, lat float64) bool
}

// Planar tests containment in lon/lat space with go-geom ring algorithms.
// Points on a boundary count as inside.
type Planar struct{}

// Contains implements Containment.
func (Planar) Contains(f *Feature, lng, lat float64) bool {
	return Contains(f, lng, lat)
}

// Contains reports whether (lng, lat) lies in f's Polygon or MultiPolygon
// geometry: inside an outer ring and not strictly inside any of its holes.
// Other geometry types never contain a point.
func Contains(f *Feature, lng, lat float64) bool {
	if f == nil || f.Geometry == nil {
		return false
	}
	pt := geom.Coord{lng, lat}
	if b := f.Geometry.Bounds(); b == nil || b.IsEmpty() || !b.OverlapsPoint(geom.XY, pt) {
		return false
	}

	switch g := f.Geometry.(type) {
	case *geom.Polygon:
		return polygonContains(g, pt)
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			if polygonContains(g.Polygon(i), pt) {
				return true
			}
		}
	}
	return false
}

func polygonContains(p *geom.Polygon, pt geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	layout := p.Layout()
	if !xy.IsPointInRing(layout, pt, p.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.LocatePointInRing(layout, pt, p.LinearRing(i).FlatCoords()) == location.Interior {
			return false
		}
	}
	return true
}

// Collection is a decoded boundary layer.
type Collection struct {
	Layer    string
	Features []*Feature

	// Containment overrides the planar test when set.
	Containment Containment
}

// Find returns the first feature containing (lng, lat). Boundaries are
// assumed not to overlap, so no tie-break is applied.
func (c *Collection) Find(lng, lat float64) *Feature {
	if c == nil {
		return nil
	}
	var test Containment = Planar{}
	if c.Containment != nil {
		test = c.Containment
	}
	for _, f := range c.Features {
		if test.Contains(f, lng, lat) {
			return f
		}
	}
	return nil
}

// Locate implements Locator using the feature's display name.
func (c *Collection) Locate(lng, lat float64) (string, bool) {
	f := c.Find(lng, lat)
	if f == nil || f.Name == "" {
		return "", false
	}
	return f.Name, true
}

// Len returns the number of features; a nil collection has none.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Features)
}

// MarshalJSON renders the layer as a GeoJSON FeatureCollection.
func (c *Collection) MarshalJSON() ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(c.Features))}
	for _, f := range c.Features {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.ID,
			Geometry:   f.Geometry,
			Properties: f.Properties,
		})
	}
	return json.Marshal(&fc)
}

// propString renders a property value as text. JSON numbers are formatted
// without exponent so FIPS and zip codes survive.
func propString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// firstProp returns the first non-empty property among keys.
func firstProp(props map[string]any, keys []string) string {
	for _, k := range keys {
		if s := propString(props[k]); s != "" {
			return s
		}
	}
	return ""
}
