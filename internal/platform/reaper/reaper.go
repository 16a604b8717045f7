// Package reaper retrieves exit statuses of terminated children.
//
// The supervisor must learn which child died before deciding whether to
// reap it: a child that belongs to no app must be left unreaped for its
// real owner. Peek uses waitid with WNOWAIT so the zombie stays in place
// until Reap collects it.
package reaper

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Reaper collects terminated children.
type Reaper struct{}

// New creates a reaper.
func New() *Reaper {
	return &Reaper{}
}

// Peek returns the PID of a terminated child without reaping it. ok is
// false when no child is currently waitable.
func (r *Reaper) Peek() (pid int, ok bool, err error) {
	var info unix.Siginfo

	for {
		err = unix.Waitid(unix.P_ALL, 0, &info, unix.WEXITED|unix.WNOWAIT|unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.ECHILD) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		break
	}

	if info.Pid == 0 {
		return 0, false, nil
	}
	return int(info.Pid), true, nil
}

// Reap collects the exit status of the terminated child pid. The returned
// status is the raw wait status as delivered by wait4.
func (r *Reaper) Reap(pid int) (int, error) {
	var ws unix.WaitStatus

	for {
		wpid, err := unix.Wait4(pid, &ws, 0, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if wpid == pid {
			return int(ws), nil
		}
	}
}
