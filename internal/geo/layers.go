package geo

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bizmap/internal/fetcher"
)

// Source locates one boundary layer: an http(s) URL or a local path to a
// GeoJSON/TopoJSON document, a .shp file, or a zipped shapefile.
type Source struct {
	Layer    string
	Location string
}

// Layers holds the loaded boundary layers. A layer that failed to load is
// nil.
type Layers struct {
	Counties *Collection
	Zips     *Collection
}

// Layer returns the named layer or nil.
func (l Layers) Layer(name string) *Collection {
	switch name {
	case LayerCounties:
		return l.Counties
	case LayerZips:
		return l.Zips
	}
	return nil
}

// Boundaries holds layers that finish loading after startup. The zero
// value has no layers and is ready to use.
type Boundaries struct {
	mu     sync.RWMutex
	layers Layers
	loaded bool
}

// Set replaces the held layers.
func (b *Boundaries) Set(l Layers) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.layers = l
	b.loaded = true
}

// Loaded reports whether Set has been called.
func (b *Boundaries) Loaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loaded
}

// Layer returns the named layer, or nil when it is not loaded.
func (b *Boundaries) Layer(name string) *Collection {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.layers.Layer(name)
}

// LoadLayers fetches the county and zip layers concurrently. A failed layer
// is logged and left nil; it is not retried.
func LoadLayers(ctx context.Context, f fetcher.Fetcher, counties, zips Source, stateFIPS string) Layers {
	var (
		out Layers
		g   errgroup.Group
	)

	load := func(src Source, dst **Collection) {
		g.Go(func() error {
			if src.Location == "" {
				return nil
			}
			c, err := LoadSource(ctx, f, src, stateFIPS)
			if err != nil {
				zap.L().Warn("boundary layer unavailable",
					zap.String("layer", src.Layer),
					zap.String("location", src.Location),
					zap.Error(err),
				)
				return nil
			}
			zap.L().Info("boundary layer loaded",
				zap.String("layer", src.Layer),
				zap.Int("features", c.Len()),
			)
			*dst = c
			return nil
		})
	}
	load(counties, &out.Counties)
	load(zips, &out.Zips)

	_ = g.Wait()
	return out
}

// LoadSource loads a single layer.
func LoadSource(ctx context.Context, f fetcher.Fetcher, src Source, stateFIPS string) (*Collection, error) {
	opts := DecodeOptions{
		Layer:     src.Layer,
		StateFIPS: stateFIPS,
		NameKeys:  NameKeysFor(src.Layer),
	}

	remote := isRemote(src.Location)
	ext := strings.ToLower(path.Ext(locationPath(src.Location)))

	switch ext {
	case ".shp":
		if remote {
			return nil, eris.New("geo: remote shapefiles must be zipped with their .dbf")
		}
		return ReadShapefile(src.Location, opts)

	case ".zip":
		if !remote {
			return ReadShapefileZIP(src.Location, opts)
		}
		dir, err := os.MkdirTemp("", "bizmap-dl-*")
		if err != nil {
			return nil, eris.Wrap(err, "geo: create download dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		zipPath := filepath.Join(dir, "layer.zip")
		if _, err := f.DownloadToFile(ctx, src.Location, zipPath); err != nil {
			return nil, eris.Wrapf(err, "geo: download %s layer", src.Layer)
		}
		return ReadShapefileZIP(zipPath, opts)
	}

	var data []byte
	if remote {
		body, err := f.Download(ctx, src.Location)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: download %s layer", src.Layer)
		}
		defer body.Close() //nolint:errcheck
		if data, err = io.ReadAll(body); err != nil {
			return nil, eris.Wrapf(err, "geo: read %s layer", src.Layer)
		}
	} else {
		var err error
		if data, err = os.ReadFile(src.Location); err != nil {
			return nil, eris.Wrapf(err, "geo: read %s layer", src.Layer)
		}
	}

	return Decode(data, opts)
}

func isRemote(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}

func locationPath(loc string) string {
	if !isRemote(loc) {
		return loc
	}
	u, err := url.Parse(loc)
	if err != nil {
		return loc
	}
	return u.Path
}
