package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gantrylabs/gantry/pkg/capability"
	"github.com/gantrylabs/gantry/pkg/compat"
	"github.com/gantrylabs/gantry/pkg/store"
)

// DeploymentProfile is one environment's full policy set: what it grants at
// runtime, what it demands of artifacts, and which components it admits.
type DeploymentProfile struct {
	Name          string                   `yaml:"name" json:"name"`
	Grants        capability.Profile       `yaml:"grants" json:"grants"`
	Verification  store.VerificationPolicy `yaml:"verification" json:"verification"`
	Compatibility compat.Policy            `yaml:"compatibility" json:"compatibility"`
}

// LoadProfile loads a deployment profile YAML by name from the profiles
// directory (profile_<name>.yaml).
func LoadProfile(profilesDir, name string) (*DeploymentProfile, error) {
	name = strings.ToLower(name)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name))
	return loadProfileFile(path, name)
}

// LoadProfileFile loads a deployment profile from an explicit path.
func LoadProfileFile(path string) (*DeploymentProfile, error) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
	return loadProfileFile(path, name)
}

func loadProfileFile(path, name string) (*DeploymentProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", name, err)
	}

	var profile DeploymentProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}

	if profile.Name == "" {
		profile.Name = name
	}
	return &profile, nil
}

// LoadAllProfiles loads every profile_*.yaml in the profiles directory.
func LoadAllProfiles(profilesDir string) (map[string]*DeploymentProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*DeploymentProfile, len(matches))
	for _, path := range matches {
		profile, err := LoadProfileFile(path)
		if err != nil {
			return nil, err
		}
		profiles[profile.Name] = profile
	}
	return profiles, nil
}
