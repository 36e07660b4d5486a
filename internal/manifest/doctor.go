package manifest

import (
	"os"
	"os/exec"
	"strings"
)

// DoctorState reports whether a manager was detected and, if so, whether its init
// snippet was sourced. CLI rendering of this state is out of scope (spec.md §1
// excludes "health/doctor subcommands"); this is the state computation only.
type DoctorState struct {
	Name           string
	Detected       bool
	Reason         string
	InitSourced    bool
	Snippet        string
	RepairAvailable bool
	LastHint       string
}

// Doctor runs detection for every resolved manager spec and reports its state.
func Doctor(specs []ManagerSpec) []DoctorState {
	states := make([]DoctorState, 0, len(specs))
	for _, spec := range specs {
		states = append(states, doctorOne(spec))
	}
	return states
}

func doctorOne(spec ManagerSpec) DoctorState {
	detected, reason := detect(spec.Detect)

	snippet := spec.Init.Shell
	initSourced := detected && snippet != ""

	return DoctorState{
		Name:            spec.Name,
		Detected:        detected,
		Reason:          reason,
		InitSourced:     initSourced,
		Snippet:         snippet,
		RepairAvailable: spec.RepairHint != "",
		LastHint:        spec.RepairHint,
	}
}

func detect(d DetectSpec) (bool, string) {
	for _, f := range d.Files {
		if _, err := os.Stat(f); err == nil {
			return true, "found file " + f
		}
	}
	for name, want := range d.Env {
		if got := os.Getenv(name); got != "" && (want == "" || got == want || strings.Contains(got, want)) {
			return true, "env " + name + " set"
		}
	}
	for _, cmdline := range d.Commands {
		fields := strings.Fields(cmdline)
		if len(fields) == 0 {
			continue
		}
		if _, err := exec.LookPath(fields[0]); err == nil {
			return true, "found command " + fields[0]
		}
	}
	return false, "not detected"
}
