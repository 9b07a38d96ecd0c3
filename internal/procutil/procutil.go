// Package procutil wraps the OS-specific process handling used to run
// pipeline stages: each stage is placed in its own process group so a whole
// stage (including anything it forks) can be signalled at once.
package procutil

import (
	"os"
	"os/exec"
)

// ConfigureProcessGroup places the command in a new process group led by
// the child itself.
func ConfigureProcessGroup(cmd *exec.Cmd) {
	configureProcessGroup(cmd)
}

// TerminateGroup asks the process group led by pid to exit.
// A group that no longer exists is not an error.
func TerminateGroup(pid int) error {
	return terminateGroup(pid)
}

// KillGroup forcibly kills the process group led by pid.
func KillGroup(pid int) error {
	return killGroup(pid)
}

// IsProcessAlive reports whether a process with the given PID appears alive.
func IsProcessAlive(pid int) bool {
	return isProcessAlive(pid)
}

// ExitStatus extracts the exit code from a finished process. Processes that
// died from a signal report 128+signal and signaled=true.
func ExitStatus(state *os.ProcessState) (code int, signaled bool, brokenPipe bool) {
	if state == nil {
		return -1, false, false
	}
	return exitStatus(state)
}
