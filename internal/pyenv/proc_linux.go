//go:build linux

package pyenv

import (
	"os"
	"strconv"
	"strings"
)

// getParentPID reads the ppid from /proc/<pid>/stat.
func getParentPID(pid int) int {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0
	}
	return parseParentPID(string(data))
}

// parseParentPID extracts the ppid from /proc/<pid>/stat content.
// Format: "pid (comm) state ppid ..." where comm may contain spaces or
// parens, so we find the last closing paren first.
func parseParentPID(stat string) int {
	idx := strings.LastIndex(stat, ")")
	if idx < 0 || idx+2 >= len(stat) {
		return 0
	}
	rest := strings.TrimSpace(stat[idx+1:])
	fields := strings.Fields(rest)
	// rest starts at the state field, so ppid is index 1.
	if len(fields) < 2 {
		return 0
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return ppid
}
