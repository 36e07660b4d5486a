package classify

import (
	"strings"
)

// knownTUIs are commands assumed interactive by name alone once nothing else in
// the pipeline has classified them — full-screen or REPL-style tools that don't
// fit a narrower family rule.
var knownTUIs = map[string]bool{
	"vim": true, "vi": true, "nvim": true, "emacs": true, "nano": true,
	"htop": true, "top": true, "less": true, "more": true, "man": true,
	"tmux": true, "screen": true, "watch": true, "fzf": true,
}

var wrapperCommands = map[string]bool{
	"sudo": true, "doas": true, "env": true, "nice": true, "ionice": true,
	"nohup": true, "time": true, "xargs": true, "stdbuf": true,
}

var replNames = map[string]bool{
	"python": true, "python3": true, "python2": true, "node": true,
	"irb": true, "pry": true, "ghci": true, "sqlite3": true, "psql": true,
	"mysql": true, "redis-cli": true, "ipython": true, "bc": true,
}

var interactiveShells = map[string]bool{
	"bash": true, "zsh": true, "sh": true, "fish": true, "ksh": true,
	"tcsh": true, "csh": true, "dash": true,
}

var debuggerNames = map[string]bool{
	"gdb": true, "lldb": true, "pdb": true, "dlv": true,
}

// NeedsPTY decides whether cmd requires a pseudo-terminal to run correctly. This
// is a pure decision over the command text and environment lookups — it never
// inspects live stdio, and force/disable overrides (SUBSTRATE_FORCE_PTY,
// SUBSTRATE_DISABLE_PTY, the ":pty " prefix) are applied by the caller around
// this function, not inside it (spec.md §4.D).
func NeedsPTY(cmd string, env func(string) string) bool {
	if env == nil {
		env = func(string) string { return "" }
	}

	trimmed := strings.TrimSpace(cmd)
	if trimmed == "" {
		return false
	}

	if hasTopLevelShellMeta(trimmed) {
		// A top-level pipe/redirect/&/; means no single command owns stdio, so
		// the default is false — unless the caller has opted into pipeline-last
		// recursion, in which case a trailing "| last" with no redirections of
		// its own decides the answer instead.
		if env("SUBSTRATE_PTY_PIPELINE_LAST") == "1" {
			if last := lastPipelineSegment(trimmed); last != "" && last != trimmed && !hasTopLevelShellMeta(last) {
				return NeedsPTY(last, env)
			}
		}
		return false
	}

	tokens, ok := tokenize(trimmed)
	if !ok || len(tokens) == 0 {
		return false
	}

	tokens = peelWrappers(tokens)
	if len(tokens) == 0 {
		return false
	}

	head := baseName(tokens[0])
	args := tokens[1:]

	switch {
	case head == "ssh":
		return sshWantsPTY(args)
	case head == "sudo" || head == "doas":
		return sudoWantsPTY(args)
	case head == "git":
		return gitWantsPTY(args)
	case head == "docker" || head == "podman" || head == "nerdctl":
		return containerWantsPTY(head, args)
	case interactiveShells[head]:
		return isInteractiveShell(head, args)
	case replNames[head]:
		return looksLikeREPL(head, args)
	case debuggerNames[head]:
		return wantsDebuggerPTY(head, args)
	case knownTUIs[head]:
		return true
	}

	return false
}

// peelWrappers strips leading environment/niceness/timing wrappers
// (env FOO=bar cmd, nice -n10 cmd, ...) to find the real target command, the
// way a shell would resolve what's actually being invoked. Peeling stops at
// sudo/doas, which stay at the head of the result.
func peelWrappers(tokens []string) []string {
	for len(tokens) > 0 {
		head := baseName(tokens[0])
		if !wrapperCommands[head] {
			break
		}
		// sudo/doas are handled as first-class families, not peeled further —
		// their own PTY need depends on their own flags.
		if head == "sudo" || head == "doas" {
			break
		}
		tokens = tokens[1:]
		for len(tokens) > 0 && (strings.HasPrefix(tokens[0], "-") || isEnvAssignment(tokens[0])) {
			tokens = tokens[1:]
		}
	}
	return tokens
}

func isEnvAssignment(tok string) bool {
	idx := strings.IndexByte(tok, '=')
	if idx <= 0 {
		return false
	}
	for _, r := range tok[:idx] {
		if !isNameRune(r) {
			return false
		}
	}
	return true
}

func isNameRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func baseName(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// lastPipelineSegment returns the text after the final top-level pipe, or "" if
// there is no top-level pipe to split on.
func lastPipelineSegment(cmd string) string {
	depth := 0
	inSingle, inDouble := false, false
	lastPipe := -1
	runes := []rune(cmd)
	for i, ch := range runes {
		switch {
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
		case ch == '"' && !inSingle:
			inDouble = !inDouble
		case ch == '(' && !inSingle && !inDouble:
			depth++
		case ch == ')' && !inSingle && !inDouble:
			depth--
		case ch == '|' && !inSingle && !inDouble && depth == 0:
			if i+1 >= len(runes) || runes[i+1] != '|' {
				lastPipe = i
			}
		}
	}
	if lastPipe < 0 {
		return ""
	}
	return strings.TrimSpace(string(runes[lastPipe+1:]))
}

func sudoWantsPTY(args []string) bool {
	for _, a := range args {
		if a == "-S" || a == "--stdin" {
			return false
		}
	}
	rest := peelWrappers(args)
	if len(rest) == 0 {
		return true
	}
	return NeedsPTY(strings.Join(rest, " "), func(string) string { return "" })
}

func isInteractiveShell(head string, args []string) bool {
	for _, a := range args {
		switch a {
		case "-c", "--command":
			return false
		}
	}
	if len(args) == 0 {
		return true
	}
	// A bare shell invoked with only option flags (e.g. "bash -i", "bash -l")
	// is still interactive; anything with a trailing script/command argument
	// that isn't -c is a script run, not a login shell.
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return false
		}
	}
	return true
}

func looksLikeREPL(head string, args []string) bool {
	for _, a := range args {
		if a == "-c" || strings.HasPrefix(a, "-c=") {
			return false
		}
		if !strings.HasPrefix(a, "-") {
			// A positional arg (a script file) means non-interactive execution.
			return false
		}
	}
	return true
}

func wantsDebuggerPTY(head string, args []string) bool {
	return true
}

func containerWantsPTY(head string, args []string) bool {
	hasInteractive, hasTTY := false, false
	for _, a := range args {
		switch a {
		case "-i", "--interactive":
			hasInteractive = true
		case "-t", "--tty":
			hasTTY = true
		case "-it", "-ti":
			hasInteractive, hasTTY = true, true
		}
		if strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") && strings.Contains(a, "i") && strings.Contains(a, "t") {
			hasInteractive, hasTTY = true, true
		}
	}
	return hasInteractive && hasTTY
}

// gitGlobalValueOpts are git's own options that precede the subcommand and
// consume the following token as a value.
var gitGlobalValueOpts = map[string]bool{
	"-C": true, "-c": true, "--git-dir": true, "--work-tree": true, "--namespace": true,
}

// gitWantsPTY implements the per-subcommand flag tables: add only with
// -p/-i (patch/interactive staging), rebase only with -i (interactive
// rebase opens an editor/TODO list), commit unless a message is supplied
// on the command line (and not overridden back on by -e/--edit). Every
// other subcommand, including log/diff/show/blame, is not part of this
// rule and returns false here.
func gitWantsPTY(args []string) bool {
	i := 0
	for i < len(args) {
		a := args[i]
		switch {
		case gitGlobalValueOpts[a]:
			i += 2
			continue
		case strings.HasPrefix(a, "--git-dir=") || strings.HasPrefix(a, "--work-tree=") || strings.HasPrefix(a, "--namespace="):
			i++
			continue
		case strings.HasPrefix(a, "-"):
			i++
			continue
		}
		break
	}
	if i >= len(args) {
		return false
	}

	sub := args[i]
	rest := args[i+1:]

	switch sub {
	case "add":
		for _, a := range rest {
			if a == "-p" || a == "--patch" || a == "-i" || a == "--interactive" {
				return true
			}
		}
		return false
	case "rebase":
		for _, a := range rest {
			if a == "-i" || a == "--interactive" {
				return true
			}
		}
		return false
	case "commit":
		suppressed := false
		editOverride := false
		for _, a := range rest {
			switch {
			case a == "-m" || a == "--message" || strings.HasPrefix(a, "--message=") ||
				a == "-F" || a == "--file" || strings.HasPrefix(a, "--file=") || a == "--no-edit":
				suppressed = true
			case a == "-e" || a == "--edit":
				editOverride = true
			}
		}
		return !suppressed || editOverride
	default:
		return false
	}
}

// sshTwoArgFlags are ssh(1) options that consume the following token as a
// value rather than being a boolean switch.
var sshTwoArgFlags = map[string]bool{
	"-p": true, "-l": true, "-i": true, "-F": true, "-J": true, "-b": true,
	"-c": true, "-D": true, "-L": true, "-R": true, "-S": true, "-E": true,
	"-B": true, "-o": true,
}

// sshWantsPTY mirrors ssh(1)'s own pty-allocation rules: -t/-tt always force
// one; -T/-N/-O/-W (without -t) always refuse one; BatchMode=yes refuses one;
// RequestTTY=yes|force forces one, RequestTTY=no refuses one; otherwise a
// bare "ssh host" with no trailing remote command opens an interactive
// remote shell.
func sshWantsPTY(args []string) bool {
	forceOn := false
	forceOff := false
	batchMode := false
	requestTTY := ""
	sawHost := false
	hasCommand := false

	i := 0
	for i < len(args) {
		a := args[i]
		switch {
		case a == "-t" || a == "-tt":
			forceOn = true
		case a == "-T" || a == "-N" || a == "-O" || a == "-W":
			forceOff = true
		case a == "-o":
			if i+1 < len(args) {
				parseSSHOption(args[i+1], &batchMode, &requestTTY)
				i++
			}
		case strings.HasPrefix(a, "-o") && len(a) > 2:
			parseSSHOption(a[2:], &batchMode, &requestTTY)
		case sshTwoArgFlags[a]:
			i++ // consume the value token
		case strings.HasPrefix(a, "-"):
			// other boolean flags; ignore
		case !sawHost:
			sawHost = true
		default:
			hasCommand = true
		}
		i++
	}

	if forceOn {
		return true
	}
	if forceOff {
		return false
	}
	if batchMode {
		return false
	}
	switch requestTTY {
	case "yes", "force":
		return true
	case "no":
		return false
	}
	if !sawHost {
		return false
	}
	return !hasCommand
}

// parseSSHOption inspects a single "-o" argument's Key=Value body for the
// two settings that override pty allocation (BatchMode, RequestTTY).
func parseSSHOption(kv string, batchMode *bool, requestTTY *string) {
	parts := strings.SplitN(kv, "=", 2)
	if len(parts) != 2 {
		return
	}
	key, val := parts[0], strings.ToLower(parts[1])
	switch strings.ToLower(key) {
	case "batchmode":
		if val == "yes" {
			*batchMode = true
		}
	case "requesttty":
		*requestTTY = val
	}
}
