package geo

import (
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/bizmap/internal/fetcher"
)

// idFields are tried in order for a shapefile feature's id.
var idFields = []string{"GEOID", "GEOID20", "GEOID10", "ZCTA5CE20", "ZCTA5CE10"}

// ReadShapefile loads polygon features from a .shp file and its .dbf
// attributes. Non-polygon shapes are skipped.
func ReadShapefile(path string, opts DecodeOptions) (*Collection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "geo: open shapefile")
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var features []*Feature
	for reader.Next() {
		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		g := shapeToMultiPolygon(poly)
		if g == nil {
			continue
		}

		props := make(map[string]any, len(names))
		for i, name := range names {
			props[name] = strings.Trim(reader.Attribute(i), " \x00")
		}
		id := firstProp(props, idFields)
		if id == "" {
			id = strconv.Itoa(n)
		}

		features = append(features, &Feature{
			ID:         id,
			Name:       firstProp(props, opts.nameKeys()),
			Properties: props,
			Geometry:   g,
		})
	}

	return &Collection{
		Layer:    opts.Layer,
		Features: filterState(features, opts.StateFIPS),
	}, nil
}

// ReadShapefileZIP extracts the first shapefile set of a zipped archive
// into a scratch directory and reads it.
func ReadShapefileZIP(zipPath string, opts DecodeOptions) (*Collection, error) {
	dir, err := os.MkdirTemp("", "bizmap-shp-*")
	if err != nil {
		return nil, eris.Wrap(err, "geo: create scratch dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	shpPath, err := fetcher.ExtractShapefile(zipPath, dir)
	if err != nil {
		return nil, eris.Wrap(err, "geo: extract shapefile archive")
	}
	return ReadShapefile(shpPath, opts)
}

// shapeToMultiPolygon groups shapefile parts into polygons. A clockwise part
// starts a new polygon; a counter-clockwise part is a hole in the current
// one.
func shapeToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || len(p.Parts) == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var cur *geom.Polygon
	flush := func() {
		if cur == nil || cur.NumLinearRings() == 0 {
			return
		}
		if err := mp.Push(cur); err != nil {
			zap.L().Debug("geo: skipping malformed polygon", zap.Error(err))
		}
	}

	for i, start := range p.Parts {
		end := int32(len(p.Points))
		if i+1 < len(p.Parts) {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		if cur == nil || !xy.IsRingCounterClockwise(geom.XY, flat) {
			flush()
			cur = geom.NewPolygon(geom.XY)
		}
		if err := cur.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("geo: skipping malformed ring", zap.Int("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
