// Package manifest loads and merges the versioned YAML manifest of environment
// managers (nvm, pyenv, asdf, ...): base + optional overlay, per-manager merge,
// regex compilation, and per-platform projection.
package manifest

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/atomize-hq/substrate/internal/substraterr"
	"gopkg.in/yaml.v3"
)

// Platform is the target OS a manifest is projected for.
type Platform int

const (
	PlatformLinux Platform = iota
	PlatformMacOS
	PlatformWindows
)

// DefaultPriority is used when a manager entry omits priority.
const DefaultPriority = 50

// InitSpec holds the shell snippet(s) sourced to activate a manager.
type InitSpec struct {
	Shell      string `yaml:"shell,omitempty"`
	PowerShell string `yaml:"powershell,omitempty"`
}

// keepOnly nulls the field irrelevant to platform, matching resolve_for_platform.
func (i InitSpec) keepOnly(p Platform) InitSpec {
	switch p {
	case PlatformWindows:
		i.Shell = ""
	default:
		i.PowerShell = ""
	}
	return i
}

// DetectSpec describes how to detect whether a manager is present.
type DetectSpec struct {
	Files    []string          `yaml:"files,omitempty"`
	Commands []string          `yaml:"commands,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Script   string            `yaml:"script,omitempty"`
}

// GuestDetect is the in-world (guest) detection command, distinct from host detect.
type GuestDetect struct {
	Command string `yaml:"command,omitempty"`
}

// InstallSpec names the install recipes available for a manager (out of scope: the
// installer itself, only the recipe strings are modeled here).
type InstallSpec struct {
	Apt    string `yaml:"apt,omitempty"`
	Custom string `yaml:"custom,omitempty"`
}

// ManagerSpec is one fully-merged, regex-compiled, path-expanded manager entry.
type ManagerSpec struct {
	Name         string
	Priority     int
	Detect       DetectSpec
	Init         InitSpec
	Errors       []*regexp.Regexp
	ErrorsSource []string
	RepairHint   string
	GuestDetect  GuestDetect
	GuestInstall InstallSpec
}

// Manifest is the loaded, merged, sorted manager manifest.
type Manifest struct {
	Version  uint32
	Managers []ManagerSpec
}

// rawManagerSpec is the YAML wire shape for one manager entry before merge/compile.
type rawManagerSpec struct {
	Name         string            `yaml:"name,omitempty"`
	Priority     *int              `yaml:"priority,omitempty"`
	Detect       rawDetectSpec     `yaml:"detect,omitempty"`
	Init         rawInitSpec       `yaml:"init,omitempty"`
	Errors       []string          `yaml:"errors,omitempty"`
	RepairHint   *string           `yaml:"repair_hint,omitempty"`
	GuestDetect  *rawGuestDetect   `yaml:"guest_detect,omitempty"`
	GuestInstall *rawInstallSpec   `yaml:"guest_install,omitempty"`
}

type rawDetectSpec struct {
	Files    []string          `yaml:"files,omitempty"`
	Commands []string          `yaml:"commands,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Script   *string           `yaml:"script,omitempty"`
}

type rawInitSpec struct {
	Shell      *string `yaml:"shell,omitempty"`
	PowerShell *string `yaml:"powershell,omitempty"`
}

type rawGuestDetect struct {
	Command *string `yaml:"command,omitempty"`
}

type rawInstallSpec struct {
	Apt    *string `yaml:"apt,omitempty"`
	Custom *string `yaml:"custom,omitempty"`
}

// rawManifest is the top-level manifest YAML document.
type rawManifest struct {
	Version  uint32    `yaml:"version"`
	Managers yaml.Node `yaml:"managers"`
}

// Load reads basePath (required) and overlayPath (optional — a missing overlay file
// is not an error), merges per manager name, compiles regexes, and sorts the result.
func Load(basePath, overlayPath string) (*Manifest, error) {
	baseRaw, err := readManifestFile(basePath)
	if err != nil {
		return nil, err
	}

	overlayRaw, err := readManifestFileOptional(overlayPath)
	if err != nil {
		return nil, err
	}

	if overlayRaw != nil && overlayRaw.Version != baseRaw.Version {
		return nil, &substraterr.ManifestVersionMismatch{Base: baseRaw.Version, Overlay: overlayRaw.Version}
	}

	merged := make(map[string]rawManagerSpec)
	order := make([]string, 0)

	baseEntries, err := parseManagerEntries(&baseRaw.Managers)
	if err != nil {
		return nil, &substraterr.ManifestParseError{Path: basePath, Err: err}
	}
	if err := insertEntries(merged, &order, baseEntries, basePath); err != nil {
		return nil, err
	}

	if overlayRaw != nil {
		overlayEntries, err := parseManagerEntries(&overlayRaw.Managers)
		if err != nil {
			return nil, &substraterr.ManifestParseError{Path: overlayPath, Err: err}
		}
		if err := insertEntries(merged, &order, overlayEntries, overlayPath); err != nil {
			return nil, err
		}
	}

	specs := make([]ManagerSpec, 0, len(order))
	for _, name := range order {
		spec, err := compileManagerSpec(name, merged[name])
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	sort.SliceStable(specs, func(i, j int) bool {
		if specs[i].Priority != specs[j].Priority {
			return specs[i].Priority < specs[j].Priority
		}
		return specs[i].Name < specs[j].Name
	})

	return &Manifest{Version: baseRaw.Version, Managers: specs}, nil
}

// ResolveForPlatform clones the manager list and nulls the init field irrelevant to p.
func (m *Manifest) ResolveForPlatform(p Platform) []ManagerSpec {
	out := make([]ManagerSpec, len(m.Managers))
	for i, spec := range m.Managers {
		spec.Init = spec.Init.keepOnly(p)
		out[i] = spec
	}
	return out
}

func readManifestFile(path string) (*rawManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &substraterr.ManifestParseError{Path: path, Err: err}
	}
	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &substraterr.ManifestParseError{Path: path, Err: err}
	}
	return &raw, nil
}

// readManifestFileOptional returns (nil, nil) when path is empty or the file is
// absent — a missing overlay is not an error (spec.md §4.A).
func readManifestFileOptional(path string) (*rawManifest, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return readManifestFile(path)
}

// managerEntry is one (name, spec) pair parsed from either manifest wire form.
type managerEntry struct {
	name string
	spec rawManagerSpec
}

// parseManagerEntries accepts both list form (sequence of {name, ...}) and map form
// (mapping of name -> spec), matching the manifest's dual wire shape.
func parseManagerEntries(node *yaml.Node) ([]managerEntry, error) {
	var entries []managerEntry

	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.SequenceNode:
		for _, item := range node.Content {
			var spec rawManagerSpec
			if err := item.Decode(&spec); err != nil {
				return nil, err
			}
			if spec.Name == "" {
				return nil, fmt.Errorf("manager entry missing required 'name' field")
			}
			entries = append(entries, managerEntry{name: spec.Name, spec: spec})
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			name := node.Content[i].Value
			var spec rawManagerSpec
			if err := node.Content[i+1].Decode(&spec); err != nil {
				return nil, err
			}
			spec.Name = name
			entries = append(entries, managerEntry{name: name, spec: spec})
		}
	default:
		return nil, fmt.Errorf("managers must be a list or a map")
	}

	return entries, nil
}

// insertEntries merges one file's entries into target, detecting duplicates within
// THAT file (not across base/overlay — a repeated name across files merges via
// mergeManagerSpec instead) and appending newly-seen names to order.
func insertEntries(target map[string]rawManagerSpec, order *[]string, entries []managerEntry, origin string) error {
	seenThisFile := make(map[string]bool)
	for _, e := range entries {
		if seenThisFile[e.name] {
			return &substraterr.DuplicateManager{Name: e.name, Origin: origin}
		}
		seenThisFile[e.name] = true

		if existing, ok := target[e.name]; ok {
			target[e.name] = mergeManagerSpec(existing, e.spec)
		} else {
			target[e.name] = e.spec
			*order = append(*order, e.name)
		}
	}
	return nil
}

func compileManagerSpec(name string, raw rawManagerSpec) (ManagerSpec, error) {
	priority := DefaultPriority
	if raw.Priority != nil {
		priority = *raw.Priority
	}

	expandedFiles := make([]string, len(raw.Detect.Files))
	for i, f := range raw.Detect.Files {
		expandedFiles[i] = ExpandPath(f)
	}
	expandedEnv := make(map[string]string, len(raw.Detect.Env))
	for k, v := range raw.Detect.Env {
		expandedEnv[k] = ExpandPath(v)
	}

	script := ""
	if raw.Detect.Script != nil {
		script = *raw.Detect.Script
	}

	compiled := make([]*regexp.Regexp, 0, len(raw.Errors))
	for _, pattern := range raw.Errors {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return ManagerSpec{}, &substraterr.InvalidRegex{Manager: name, Pattern: pattern, Err: err}
		}
		compiled = append(compiled, re)
	}

	repairHint := ""
	if raw.RepairHint != nil {
		repairHint = *raw.RepairHint
	}

	var guestDetect GuestDetect
	if raw.GuestDetect != nil && raw.GuestDetect.Command != nil {
		guestDetect.Command = *raw.GuestDetect.Command
	}

	var guestInstall InstallSpec
	if raw.GuestInstall != nil {
		if raw.GuestInstall.Apt != nil {
			guestInstall.Apt = *raw.GuestInstall.Apt
		}
		if raw.GuestInstall.Custom != nil {
			guestInstall.Custom = *raw.GuestInstall.Custom
		}
	}

	init := InitSpec{}
	if raw.Init.Shell != nil {
		init.Shell = *raw.Init.Shell
	}
	if raw.Init.PowerShell != nil {
		init.PowerShell = *raw.Init.PowerShell
	}

	return ManagerSpec{
		Name:         name,
		Priority:     priority,
		Detect:       DetectSpec{Files: expandedFiles, Commands: raw.Detect.Commands, Env: expandedEnv, Script: script},
		Init:         init,
		Errors:       compiled,
		ErrorsSource: raw.Errors,
		RepairHint:   repairHint,
		GuestDetect:  guestDetect,
		GuestInstall: guestInstall,
	}, nil
}
