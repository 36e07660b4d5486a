package worldagent

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const bearerPrefix = "Bearer "

// DeriveSessionToken derives a per-session bearer token from a long-lived
// shared secret (SUBSTRATE_WORLD_TOKEN) via HKDF-SHA256, using the session id
// as the info parameter. The shared secret itself is never put on the wire;
// only this derived value is, and a world agent that knows the same secret
// can recompute it to verify CheckBearerToken without the client handing over
// anything reusable outside that one session.
func DeriveSessionToken(secret, sessionID string) string {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(sessionID))
	out := make([]byte, 32)
	io.ReadFull(r, out)
	return hex.EncodeToString(out)
}

// SetBearerToken attaches an Authorization header to every request issued by
// the client's underlying transport, for deployments that front the world
// agent with a shared token.
func (c *Client) SetBearerToken(token string) {
	base := c.http.Transport
	c.http.Transport = &bearerRoundTripper{base: base, token: token}
}

type bearerRoundTripper struct {
	base  http.RoundTripper
	token string
}

func (rt *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", bearerPrefix+rt.token)
	base := rt.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// CheckBearerToken is the server-side half: parses an incoming Authorization
// header the way internal/relay/pty_relay.go and internal/direct/server.go do
// (strip the "Bearer " prefix) and compares it against want in constant time
// so timing cannot leak how many leading bytes matched.
func CheckBearerToken(header, want string) bool {
	if !strings.HasPrefix(header, bearerPrefix) {
		return false
	}
	got := strings.TrimPrefix(header, bearerPrefix)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
