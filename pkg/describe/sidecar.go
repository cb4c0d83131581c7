package describe

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// SidecarDir is the directory beside an artifact holding versioned describe
// files.
const SidecarDir = "describe"

var sidecarNameRe = regexp.MustCompile(`^describe\.v(\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.-]+)?)\.json$`)

// fromSidecar scans <artifactDir>/describe/ for describe.v<semver>.json
// files and parses the highest version.
func fromSidecar(artifactDir string) (*Description, error) {
	dir := filepath.Join(artifactDir, SidecarDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("describe: no sidecar directory at %s", dir)
		}
		return nil, fmt.Errorf("describe: read sidecar directory: %w", err)
	}

	var bestName string
	var bestVersion *semver.Version
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := sidecarNameRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		v, err := semver.NewVersion(m[1])
		if err != nil {
			continue
		}
		if bestVersion == nil || v.GreaterThan(bestVersion) {
			bestVersion = v
			bestName = entry.Name()
		}
	}
	if bestName == "" {
		return nil, fmt.Errorf("describe: no describe.v<semver>.json files in %s", dir)
	}

	raw, err := os.ReadFile(filepath.Join(dir, bestName))
	if err != nil {
		return nil, fmt.Errorf("describe: read sidecar %s: %w", bestName, err)
	}
	desc, err := ParseDescription(raw)
	if err != nil {
		return nil, err
	}
	desc.Provenance = ProvenanceSidecar
	return desc, nil
}
