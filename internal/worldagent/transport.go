// Package worldagent is the client side of the world-agent protocol: dialing
// the agent over whichever transport the platform offers, the NDJSON streaming
// exec channel, and the WebSocket PTY channel (spec.md §4.F). Grounded on
// internal/transport/client.go's dummy-host HTTP-over-Unix-socket pattern and
// internal/ws/client.go's WebSocket read/write loop.
package worldagent

import (
	"context"
	"net"
	"net/http"
	"runtime"
)

// Kind identifies which concrete transport a Client is using.
type Kind string

const (
	KindUnixSocket Kind = "unix"
	KindTCP        Kind = "tcp"
	KindVsock      Kind = "vsock" // Linux vsock, dialed as loopback TCP to a fixed port
)

// Client talks to a world-agent process over one transport.
type Client struct {
	Kind    Kind
	Address string // socket path, or host:port for tcp/vsock
	http    *http.Client
	wsURL   string
}

// NewClient selects a transport the way the caller's platform detection
// dictates and builds the HTTP client used for the non-PTY streaming channel.
// addr is a socket path for KindUnixSocket, or a host:port for KindTCP/KindVsock.
func NewClient(kind Kind, addr string) *Client {
	c := &Client{Kind: kind, Address: addr}

	switch kind {
	case KindUnixSocket:
		c.http = &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", addr)
				},
			},
		}
		c.wsURL = "ws+unix://" + addr
	default: // TCP and vsock-as-loopback-TCP both speak plain net/http over TCP.
		c.http = &http.Client{Timeout: 0}
		c.wsURL = "ws://" + addr
	}
	return c
}

func (c *Client) baseURL(path string) string {
	if c.Kind == KindUnixSocket {
		return "http://world" + path
	}
	return "http://" + c.Address + path
}

// DefaultSocketPath returns the platform-conventional world-agent socket
// location, honoring the SUBSTRATE_WORLD_SOCKET override.
func DefaultSocketPath(env func(string) string) string {
	if env == nil {
		env = noEnv
	}
	if v := env("SUBSTRATE_WORLD_SOCKET"); v != "" {
		return v
	}
	if runtime.GOOS == "windows" {
		return `\\.\pipe\substrate-world`
	}
	return "/run/substrate/world.sock"
}

func noEnv(string) string { return "" }
