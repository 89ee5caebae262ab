package explorer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bizmap/internal/model"
)

// LoadSeed reads the default dataset from a YAML or JSON file. An empty path
// yields an empty seed. Field names are the snapshot's camelCase names in
// both formats.
func LoadSeed(path string) ([]model.Business, error) {
	if path == "" {
		return []model.Business{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "explorer: read seed %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// Round-trip through JSON so the yaml keys follow the json tags.
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrapf(err, "explorer: parse seed %s", path)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, eris.Wrapf(err, "explorer: convert seed %s", path)
		}
	}

	var seed []model.Business
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, eris.Wrapf(err, "explorer: decode seed %s", path)
	}

	for i := range seed {
		if seed[i].ID == "" {
			seed[i].ID = "seed-" + strconv.Itoa(i+1)
		}
		if seed[i].County == "" {
			seed[i].County = "Unknown"
		}
		if seed[i].Tags == nil {
			seed[i].Tags = []string{}
		}
	}
	return seed, nil
}
