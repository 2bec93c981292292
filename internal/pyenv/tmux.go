package pyenv

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// tmuxPane is a single tmux pane and the PID of its shell.
type tmuxPane struct {
	panePID int
	target  string // pre-formatted "session:window.pane"
}

// TmuxResolver maps process PIDs to their containing tmux pane, so the
// bridge can bring the CAD session's terminal into focus after a bind.
type TmuxResolver struct {
	targetByPID map[int]string
}

// NewTmuxResolver queries tmux for all panes. Returns a nil resolver (not
// an error) when tmux is not running or not installed.
func NewTmuxResolver() *TmuxResolver {
	panes, err := listTmuxPanes()
	if err != nil || len(panes) == 0 {
		return nil
	}
	targetByPID := make(map[int]string, len(panes))
	for _, p := range panes {
		targetByPID[p.panePID] = p.target
	}
	return &TmuxResolver{targetByPID: targetByPID}
}

// Resolve walks the process tree from pid upward until an ancestor matches
// a pane's shell PID. Stops after 10 ancestors to avoid runaway loops.
func (r *TmuxResolver) Resolve(pid int) (string, bool) {
	if r == nil {
		return "", false
	}

	current := pid
	for i := 0; i < 10; i++ {
		if target, ok := r.targetByPID[current]; ok {
			return target, true
		}
		parent := getParentPID(current)
		if parent <= 1 || parent == current {
			break
		}
		current = parent
	}

	return "", false
}

// FocusPane switches to the tmux pane identified by target.
func FocusPane(target string) error {
	tmuxPath, err := exec.LookPath("tmux")
	if err != nil {
		return fmt.Errorf("tmux not found: %w", err)
	}
	if err := exec.Command(tmuxPath, "select-window", "-t", target).Run(); err != nil {
		return fmt.Errorf("select-window: %w", err)
	}
	if err := exec.Command(tmuxPath, "select-pane", "-t", target).Run(); err != nil {
		return fmt.Errorf("select-pane: %w", err)
	}
	return nil
}

// FocusSession brings the terminal running the CAD script into view.
// Best effort: silently does nothing when the process or its pane cannot
// be found.
func FocusSession(script string) {
	pid := FindSessionProcess(script)
	if pid == 0 {
		return
	}
	target, ok := NewTmuxResolver().Resolve(int(pid))
	if !ok {
		return
	}
	FocusPane(target)
}

func listTmuxPanes() ([]tmuxPane, error) {
	path, err := exec.LookPath("tmux")
	if err != nil {
		return nil, err
	}

	out, err := exec.Command(path, "list-panes", "-a", "-F",
		"#{pane_pid}\t#{session_name}\t#{window_index}\t#{pane_index}").Output()
	if err != nil {
		return nil, err
	}

	return parseTmuxPanes(string(out)), nil
}

// parseTmuxPanes parses the tab-separated output of tmux list-panes.
func parseTmuxPanes(output string) []tmuxPane {
	var panes []tmuxPane
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			continue
		}

		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		winIdx, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		paneIdx, err := strconv.Atoi(fields[3])
		if err != nil {
			continue
		}

		panes = append(panes, tmuxPane{
			panePID: pid,
			target:  fmt.Sprintf("%s:%d.%d", fields[1], winIdx, paneIdx),
		})
	}
	return panes
}
