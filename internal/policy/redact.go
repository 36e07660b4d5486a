// Package policy implements command redaction (masking secrets before anything
// touches the trace log) and the narrow interface the dispatcher uses to evaluate
// policy decisions. Policy rule evaluation itself — the TOML profile format — is an
// explicit Non-goal (spec.md §1); Engine below is the boundary the dispatcher calls
// across.
package policy

import (
	"regexp"
	"strings"
)

const redactedValue = "***"

var flagTokens = map[string]bool{
	"-u": true, "--user": true,
	"-p": true, "--password": true,
	"--token": true,
}

var headerTokens = map[string]bool{
	"-h": true, "--header": true,
}

var sensitiveHeaderPrefixes = []string{
	"authorization:", "x-api-key:", "x-auth-token:", "cookie:",
}

var sensitiveKeyFragments = []string{
	"token", "password", "secret", "apikey", "api_key",
}

// Generic fallback patterns: bearer tokens, long hex strings (API keys), and URL
// userinfo. The original Rust redact_sensitive() lives in a crate not included in
// the retrieval pack, so these are authored directly from spec.md §4.C's prose
// rather than transliterated.
var (
	reBearer    = regexp.MustCompile(`(?i)\bbearer\s+[a-z0-9._\-]+`)
	reHexKey    = regexp.MustCompile(`\b[a-f0-9]{20,}\b`)
	reURLUserInfo = regexp.MustCompile(`://([^:/@\s]+):([^@/\s]+)@`)
)

// Redact tokenizes cmd shell-style and returns the redacted, whitespace-joined
// string every span records. The original command string never reaches the trace
// log. If env SHIM_LOG_OPTS=raw, cmd is returned unmodified.
func Redact(cmd string, env func(string) string) string {
	if env == nil {
		env = func(string) string { return "" }
	}
	if env("SHIM_LOG_OPTS") == "raw" {
		return cmd
	}

	tokens := tokenize(cmd)
	out := make([]string, 0, len(tokens))

	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		lower := strings.ToLower(tok)

		switch {
		case flagTokens[lower]:
			// Both the flag token and its value are masked (spec: "replace both
			// flag token and next token with ***").
			out = append(out, redactedValue)
			i++
			if i < len(tokens) {
				out = append(out, redactedValue)
				i++
			}
			continue

		case headerTokens[lower]:
			out = append(out, tok)
			i++
			if i < len(tokens) {
				out = append(out, redactHeaderValue(tokens[i]))
				i++
			}
			continue

		case strings.Contains(tok, "="):
			out = append(out, redactKeyValueToken(tok))
			i++
			continue

		default:
			out = append(out, redactGeneric(tok))
			i++
		}
	}

	return strings.Join(out, " ")
}

func redactHeaderValue(value string) string {
	lower := strings.ToLower(value)
	for _, prefix := range sensitiveHeaderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			if strings.TrimSpace(value[len(prefix):]) == "" {
				// Bare header name with no value (e.g. the output of an
				// earlier redaction pass): nothing to mask.
				return value
			}
			name := value[:len(prefix)-1] // drop trailing ':'
			return name + ": " + redactedValue
		}
	}
	return value
}

func redactKeyValueToken(tok string) string {
	idx := strings.IndexByte(tok, '=')
	key := strings.ToLower(tok[:idx])
	for _, frag := range sensitiveKeyFragments {
		if strings.Contains(key, frag) {
			return tok[:idx+1] + redactedValue
		}
	}
	return redactGeneric(tok)
}

func redactGeneric(tok string) string {
	tok = reBearer.ReplaceAllString(tok, "bearer "+redactedValue)
	tok = reURLUserInfo.ReplaceAllStringFunc(tok, func(m string) string {
		sub := reURLUserInfo.FindStringSubmatch(m)
		return strings.Replace(m, sub[1]+":"+sub[2], sub[1]+":"+redactedValue, 1)
	})
	tok = reHexKey.ReplaceAllString(tok, redactedValue)
	return tok
}

// tokenize performs shell-style word splitting: whitespace-separated, honoring
// single quotes, double quotes, and backslash escapes. This is scoped exactly to
// what redaction and the PTY classifier need — word splitting, not execution — so
// it does not implement full shell grammar (spec.md's Non-goal of "parsing or
// executing shell grammar itself" is preserved).
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	haveToken := false

	inSingle, inDouble, escape := false, false, false

	flush := func() {
		if haveToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			haveToken = false
		}
	}

	for _, r := range s {
		if escape {
			cur.WriteRune(r)
			haveToken = true
			escape = false
			continue
		}
		switch {
		case r == '\\' && !inSingle:
			escape = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			haveToken = true
		case r == '"' && !inSingle:
			inDouble = !inDouble
			haveToken = true
		case (r == ' ' || r == '\t') && !inSingle && !inDouble:
			flush()
		default:
			cur.WriteRune(r)
			haveToken = true
		}
	}
	flush()
	return tokens
}
