package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// buildReplayContext snapshots the environmental inputs attached to a
// command_complete record.
func buildReplayContext(policyID, cwd string) (*ReplayContext, error) {
	home, _ := os.UserHomeDir()
	return &ReplayContext{
		EnvHash:           hashEnvVars(),
		Umask:             getUmask(),
		Locale:            firstNonEmpty(os.Getenv("LC_ALL"), os.Getenv("LANG")),
		Cwd:               cwd,
		PolicyID:          policyID,
		PolicyCommit:      getPolicyGitHash(home),
		WorldImageVersion: os.Getenv("SUBSTRATE_WORLD_IMAGE_VERSION"),
	}, nil
}

// hashEnvVars computes SHA-256 over sorted "K=V\n" entries for every environment
// variable not prefixed with SHIM_ or SUBSTRATE_ (those are volatile control
// knobs — spec.md §3).
//
// Deliberate deviation from the original implementation: the Rust reference
// (hash_env_vars in original_source/crates/trace/src/lib.rs) hashes env::vars() in
// unsorted OS enumeration order. spec.md §3 explicitly requires sorted order so
// the hash is stable across runs of the same process on the same environment
// regardless of enumeration order; this implementation follows spec.md.
func hashEnvVars() string {
	environ := os.Environ()
	keys := make([]string, 0, len(environ))
	values := make(map[string]string, len(environ))

	for _, kv := range environ {
		idx := strings.IndexByte(kv, '=')
		if idx < 0 {
			continue
		}
		key, val := kv[:idx], kv[idx+1:]
		if strings.HasPrefix(key, "SHIM_") || strings.HasPrefix(key, "SUBSTRATE_") {
			continue
		}
		keys = append(keys, key)
		values[key] = val
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(values[k]))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// getUmask determines the process umask without mutating it destructively on
// platforms where umask(2) is the only way to read it: create a probe directory
// with mode 0777 and derive the effective mask from its resulting permission bits.
func getUmask() uint32 {
	if runtime.GOOS == "windows" {
		return 0o022
	}

	dir, err := os.MkdirTemp("", "substrate-umask-*")
	if err != nil {
		return 0o022
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "probe")
	if err := os.Mkdir(path, 0o777); err != nil {
		return 0o022
	}

	st, err := os.Stat(path)
	if err != nil {
		return 0o022
	}
	mode := uint32(st.Mode().Perm())
	return 0o777 &^ mode
}

// getPolicyGitHash returns the current commit of the policy repo at
// ~/.substrate, if it is a git checkout; empty string otherwise.
func getPolicyGitHash(home string) string {
	if home == "" {
		return ""
	}
	dir := filepath.Join(home, ".substrate")
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
