// Package registry answers "is ocp_vscode installed, and at which version"
// for the interpreter driving the CAD session, and can trigger an install
// when the versions drift.
package registry

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Package is the Python-side counterpart this bridge talks to.
const Package = "ocp_vscode"

// ExpectedVersion is the protocol version this bridge was built against.
const ExpectedVersion = "2.1.0"

// Outcome classifies an installed version against the expected one.
type Outcome int

const (
	Match Outcome = iota
	// Older is a soft mismatch: warn and offer an install.
	Older
	// Newer is a hard mismatch: the bridge itself must be upgraded.
	Newer
	Missing
)

var outcomeNames = map[Outcome]string{
	Match:   "match",
	Older:   "older",
	Newer:   "newer",
	Missing: "missing",
}

func (o Outcome) String() string {
	if n, ok := outcomeNames[o]; ok {
		return n
	}
	return "unknown"
}

// Check classifies installed against expected. An empty installed version
// means the package is absent.
func Check(installed, expected string) Outcome {
	if installed == "" {
		return Missing
	}
	switch compareVersions(installed, expected) {
	case -1:
		return Older
	case 1:
		return Newer
	default:
		return Match
	}
}

// compareVersions orders two dotted version strings numerically, segment by
// segment. Missing segments count as zero; non-numeric suffixes are
// truncated ("2.1.0rc1" compares as 2.1.0).
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av = leadingInt(as[i])
		}
		if i < len(bs) {
			bv = leadingInt(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return v
}

// PipRegistry resolves package versions by shelling into the interpreter's
// pip. It caches the last discovery; Resolve re-runs it against a new
// interpreter.
type PipRegistry struct {
	mu          sync.RWMutex
	interpreter string
	installed   string
}

func NewPipRegistry(interpreter string) *PipRegistry {
	return &PipRegistry{interpreter: interpreter}
}

func (r *PipRegistry) Interpreter() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.interpreter
}

// Installed returns the version found by the last discovery, or an empty
// string when the package was absent or discovery has not run.
func (r *PipRegistry) Installed() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.installed
}

// Resolve points the registry at a new interpreter and re-runs discovery.
// Called by the environment reactor on interpreter changes.
func (r *PipRegistry) Resolve(interpreter string) {
	r.mu.Lock()
	r.interpreter = interpreter
	r.installed = ""
	r.mu.Unlock()

	if _, err := r.InstalledVersion(context.Background()); err != nil {
		log.Printf("registry: resolve against %s: %v", interpreter, err)
	}
}

// InstalledVersion asks pip for the installed package version. Returns an
// empty string (and no error) when the package is absent.
func (r *PipRegistry) InstalledVersion(ctx context.Context) (string, error) {
	r.mu.RLock()
	interpreter := r.interpreter
	r.mu.RUnlock()

	out, err := exec.CommandContext(ctx, interpreter, "-m", "pip", "show", Package).Output()
	if err != nil {
		// pip show exits 1 for unknown packages.
		if _, ok := err.(*exec.ExitError); ok {
			return "", nil
		}
		return "", fmt.Errorf("pip show %s: %w", Package, err)
	}

	version := parsePipShow(string(out))
	r.mu.Lock()
	r.installed = version
	r.mu.Unlock()
	return version, nil
}

// Verify runs discovery and classifies the result.
func (r *PipRegistry) Verify(ctx context.Context) (Outcome, string, error) {
	installed, err := r.InstalledVersion(ctx)
	if err != nil {
		return Missing, "", err
	}
	return Check(installed, ExpectedVersion), installed, nil
}

// Install pins the package to the expected version via pip.
func (r *PipRegistry) Install(ctx context.Context) error {
	r.mu.RLock()
	interpreter := r.interpreter
	r.mu.RUnlock()

	spec := fmt.Sprintf("%s==%s", Package, ExpectedVersion)
	log.Printf("installing %s with %s", spec, interpreter)
	out, err := exec.CommandContext(ctx, interpreter, "-m", "pip", "install", spec).CombinedOutput()
	if err != nil {
		return fmt.Errorf("pip install %s: %w: %s", spec, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// parsePipShow extracts the Version: line from pip show output.
func parsePipShow(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "Version:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
