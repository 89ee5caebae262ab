package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoShapefile is returned when an archive holds no .shp member.
var ErrNoShapefile = eris.New("zip: no .shp file in archive")

// shapefileParts are the sidecar extensions read alongside a .shp.
var shapefileParts = map[string]bool{".shp": true, ".shx": true, ".dbf": true, ".prj": true, ".cpg": true}

// ExtractShapefile finds the first .shp member of a zipped shapefile set
// (by name, at any depth) and writes it together with its sidecar files
// (same directory and stem) into destDir. It returns the path of the
// extracted .shp. Other members are skipped.
func ExtractShapefile(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var shps []string
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && strings.EqualFold(path.Ext(f.Name), ".shp") {
			shps = append(shps, f.Name)
		}
	}
	if len(shps) == 0 {
		return "", eris.Wrapf(ErrNoShapefile, "zip: %s", filepath.Base(zipPath))
	}
	sort.Strings(shps)
	stem := strings.TrimSuffix(shps[0], path.Ext(shps[0]))

	var shpPath string
	for _, f := range r.File {
		ext := path.Ext(f.Name)
		if strings.TrimSuffix(f.Name, ext) != stem || !shapefileParts[strings.ToLower(ext)] {
			continue
		}
		dest, err := extractMember(f, destDir)
		if err != nil {
			return "", err
		}
		if f.Name == shps[0] {
			shpPath = dest
		}
	}
	return shpPath, nil
}

// extractMember writes f into destDir under its base name. Names that
// climb out of the archive root are rejected.
func extractMember(f *zip.File, destDir string) (string, error) {
	if strings.Contains(f.Name, "..") || path.IsAbs(f.Name) {
		return "", eris.Errorf("zip: illegal path %q", f.Name)
	}
	dest := filepath.Join(destDir, path.Base(f.Name))

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "zip: create %s", dest)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return "", eris.Wrapf(err, "zip: write %s", dest)
	}
	if err := out.Close(); err != nil {
		return "", eris.Wrapf(err, "zip: close %s", dest)
	}
	return dest, nil
}
