package localapp

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// niceLevels maps the named priorities to nice values.
var niceLevels = map[string]int{
	"idle":   19,
	"low":    10,
	"medium": 0,
	"high":   -10,
}

// applyPriority applies a validated priority string to a running process.
// Named priorities map to nice levels; rt1..rt32 select SCHED_RR with the
// matching real-time priority.
func applyPriority(pid int, priority string) error {
	if nice, ok := niceLevels[priority]; ok {
		return unix.Setpriority(unix.PRIO_PROCESS, pid, nice)
	}

	if strings.HasPrefix(priority, "rt") {
		n, err := strconv.Atoi(priority[2:])
		if err != nil {
			return fmt.Errorf("bad realtime priority %q", priority)
		}
		attr := &unix.SchedAttr{
			Size:     unix.SizeofSchedAttr,
			Policy:   unix.SCHED_RR,
			Priority: uint32(n),
		}
		return unix.SchedSetAttr(pid, attr, 0)
	}

	return fmt.Errorf("unknown priority %q", priority)
}
