// Package profile locates and loads the per-directory policy profile the
// dispatcher consults for its world_fs_mode decision. The profile's rule
// content — what a profile actually allows or denies — is an explicit
// Non-goal (spec.md §1: "TOML config loader and profile parser (policy rules
// themselves)"); this package only resolves *which* profile file governs a
// given cwd and decodes its narrow, ambient fields. Grounded on
// internal/egg/config.go's YAML-unmarshal-with-custom-field pattern, adapted
// from egg's sandbox-capability schema to Substrate's world_fs_mode field.
package profile

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WorldFSMode is the effective filesystem-access mode a profile assigns to
// commands run under its directory, per spec.md §4.F/§4.H/§8's WorldRequired
// and WorldTransportError rules.
type WorldFSMode string

const (
	// Writable means the world backend owns every write; a transport failure
	// here is recoverable by falling back to the host shell.
	Writable WorldFSMode = "writable"
	// ReadOnly means commands may read through the world but writes are
	// rejected; still requires world to be reachable for reads it issues.
	ReadOnly WorldFSMode = "read_only"
	// Isolated means every command must run inside world; host fallback is
	// never acceptable, so world being disabled or unreachable is fatal.
	Isolated WorldFSMode = "isolated"
)

// Requires reports whether mode demands a reachable world backend — every
// mode except Writable (spec.md §4.H step 3: "if world_fs_mode ≠ Writable AND
// world is disabled ... fail fast").
func (m WorldFSMode) Requires() bool {
	return m != Writable
}

const fileName = ".substrate-profile.yaml"

// Profile is the ambient, non-rule-engine subset of a loaded profile file.
type Profile struct {
	Name        string      `yaml:"name,omitempty"`
	WorldFSMode WorldFSMode `yaml:"world_fs_mode,omitempty"`
	AgentID     string      `yaml:"agent_id,omitempty"`
}

func defaultProfile() Profile {
	return Profile{Name: "default", WorldFSMode: Writable}
}

// LoadForCwd walks upward from cwd looking for fileName, the way most
// project-local config loaders resolve an enclosing directory's config, and
// decodes it. A missing file at every level yields the Writable default
// rather than an error, matching internal/egg/config.go's loadConfig
// treating os.IsNotExist as "use defaults".
func LoadForCwd(cwd string) (Profile, error) {
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return defaultProfile(), err
	}

	for {
		candidate := filepath.Join(dir, fileName)
		data, err := os.ReadFile(candidate)
		if err == nil {
			p := defaultProfile()
			if err := yaml.Unmarshal(data, &p); err != nil {
				return defaultProfile(), err
			}
			if p.WorldFSMode == "" {
				p.WorldFSMode = Writable
			}
			return p, nil
		}
		if !os.IsNotExist(err) {
			return defaultProfile(), err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return defaultProfile(), nil
}
