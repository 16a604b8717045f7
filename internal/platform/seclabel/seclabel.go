// Package seclabel resolves a process's owning application from its
// security label. App processes run with a label of the form
// <prefix><appName>; stripping the fixed prefix yields the app name.
package seclabel

import (
	"fmt"
	"os"
	"strings"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
)

// DefaultPrefix is the label prefix applied to all app processes.
const DefaultPrefix = "app."

// Reader resolves app names from per-process security labels.
type Reader struct {
	prefix   string
	procRoot string
}

// New creates a reader for the given label prefix.
func New(prefix string) *Reader {
	return &Reader{prefix: prefix, procRoot: "/proc"}
}

// NewWithProcRoot creates a reader rooted at an alternate proc filesystem.
// Useful for testing.
func NewWithProcRoot(prefix, procRoot string) *Reader {
	return &Reader{prefix: prefix, procRoot: procRoot}
}

// AppName returns the name of the app that owns pid.
//
// Returns NotFound if the process carries no app label, Overflow if the
// derived name exceeds the framework's name limit, and Fault if the label
// could not be read at all. The label must be read before the process is
// reaped; it is scrubbed at reap.
func (r *Reader) AppName(pid int) (string, types.Result) {
	label, err := os.ReadFile(fmt.Sprintf("%s/%d/attr/current", r.procRoot, pid))
	if err != nil {
		return "", types.Fault
	}

	// The attr file is NUL or newline terminated depending on the LSM.
	name := strings.TrimRight(string(label), "\x00\n")

	if len(name) >= types.MaxLabelBytes {
		return "", types.Fault
	}

	if !strings.HasPrefix(name, r.prefix) {
		return "", types.NotFound
	}

	name = name[len(r.prefix):]
	if len(name) >= types.MaxAppNameBytes {
		return name[:types.MaxAppNameBytes-1], types.Overflow
	}

	return name, types.OK
}
