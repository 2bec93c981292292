// Package pyenv locates the Python interpreter driving the CAD session and
// the process running the user's script.
package pyenv

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Resolve picks the effective interpreter: explicit configuration wins,
// then an active virtualenv, then python3 on PATH.
func Resolve(configured string) string {
	if configured != "" {
		return configured
	}
	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		candidate := filepath.Join(venv, "bin", "python")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if path, err := exec.LookPath("python3"); err == nil {
		return path
	}
	return "python3"
}

// FindSessionProcess scans running processes for a Python interpreter whose
// command line mentions the CAD script. Returns the PID, or 0 when no such
// process is running.
func FindSessionProcess(script string) int32 {
	if script == "" {
		return 0
	}

	procs, err := process.Processes()
	if err != nil {
		return 0
	}

	base := filepath.Base(script)
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || !strings.HasPrefix(name, "python") {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil {
			continue
		}
		if strings.Contains(cmdline, script) || strings.Contains(cmdline, base) {
			return p.Pid
		}
	}
	return 0
}
