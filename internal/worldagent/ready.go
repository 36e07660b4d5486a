package worldagent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/atomize-hq/substrate/internal/substratelog"
	"golang.org/x/time/rate"
)

// Capabilities is the response to GET /v1/capabilities.
type Capabilities struct {
	Version           string   `json:"version"`
	SupportsPTY       bool     `json:"supports_pty"`
	SupportsStream    bool     `json:"supports_stream"`
	SocketActivated   bool     `json:"socket_activated"`
}

const probeWindow = time.Second

// probeLimiter caps how often EnsureReady retries the capabilities probe
// while waiting for an auto-spawned agent to come up — at most 20/sec, well
// inside the 1-second retry budget spec.md §4.F allows.
var probeLimiter = rate.NewLimiter(rate.Limit(20), 1)

// EnsureReady probes /v1/capabilities; on failure it removes the socket file
// if one exists (there is no check for socket activation) and, unless
// SUBSTRATE_WORLD_SOCKET pins a fixed path, auto-spawns the agent binary and
// retries for up to one second.
func EnsureReady(ctx context.Context, c *Client, env func(string) string) (Capabilities, error) {
	if env == nil {
		env = noEnv
	}

	caps, err := c.probeCapabilities(ctx)
	if err == nil {
		return caps, nil
	}

	if env("SUBSTRATE_WORLD_SOCKET") != "" {
		return Capabilities{}, fmt.Errorf("world agent not reachable at pinned socket %s: %w", c.Address, err)
	}

	if c.Kind == KindUnixSocket {
		removeStaleSocket(c.Address)
	}

	if spawnErr := spawnAgent(env); spawnErr != nil {
		return Capabilities{}, fmt.Errorf("world agent unreachable and auto-spawn failed: %w", spawnErr)
	}

	deadline := time.Now().Add(probeWindow)
	for time.Now().Before(deadline) {
		if err := probeLimiter.Wait(ctx); err != nil {
			return Capabilities{}, err
		}
		caps, err = c.probeCapabilities(ctx)
		if err == nil {
			return caps, nil
		}
	}
	return Capabilities{}, fmt.Errorf("world agent did not become ready within %s: %w", probeWindow, err)
}

func (c *Client) probeCapabilities(ctx context.Context) (Capabilities, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL("/v1/capabilities"), nil)
	if err != nil {
		return Capabilities{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Capabilities{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Capabilities{}, fmt.Errorf("capabilities probe: HTTP %d", resp.StatusCode)
	}
	var caps Capabilities
	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return Capabilities{}, err
	}
	return caps, nil
}

func removeStaleSocket(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err == nil {
		if rmErr := os.Remove(path); rmErr != nil {
			substratelog.Warn("could not remove stale world agent socket", "path", path, "error", rmErr)
		}
	}
}

// spawnAgent resolves the agent binary (env override, PATH, known build
// locations) and starts it detached, mirroring cmd/wt/egg.go's
// exec.LookPath-then-spawn idiom for locating a sibling binary.
func spawnAgent(env func(string) string) error {
	binName := "substrate-worldagent"
	binPath := env("SUBSTRATE_WORLD_AGENT_BIN")

	if binPath == "" {
		if found, err := exec.LookPath(binName); err == nil {
			binPath = found
		}
	}
	if binPath == "" {
		for _, candidate := range knownBuildLocations(binName) {
			if _, err := os.Stat(candidate); err == nil {
				binPath = candidate
				break
			}
		}
	}
	if binPath == "" {
		return fmt.Errorf("%s not found via env, PATH, or known build locations", binName)
	}

	cmd := exec.Command(binPath)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %s: %w", binPath, err)
	}
	substratelog.Info("auto-spawned world agent", "path", binPath, "pid", cmd.Process.Pid)
	return cmd.Process.Release()
}

func knownBuildLocations(binName string) []string {
	home, _ := os.UserHomeDir()
	locs := []string{
		"/usr/local/bin/" + binName,
		"/usr/bin/" + binName,
	}
	if home != "" {
		locs = append(locs, home+"/.substrate/bin/"+binName)
	}
	return locs
}
