// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"os/exec"
	"runtime"
	"testing"
)

// SkipIfNoCommand skips the test unless every named command is on PATH.
// Process tests use real binaries (yes, head, sh, ...) which may be missing
// in minimal build containers.
func SkipIfNoCommand(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("skipping: %s not installed", name)
		}
	}
}

// SkipIfNoProcesses skips tests that spawn real process chains when
// PIPELAB_TEST_SKIP_PROCESSES is set or the platform lacks process groups.
func SkipIfNoProcesses(t *testing.T) {
	t.Helper()
	if os.Getenv("PIPELAB_TEST_SKIP_PROCESSES") != "" {
		t.Skip("skipping process test: PIPELAB_TEST_SKIP_PROCESSES is set")
	}
	if runtime.GOOS == "windows" {
		t.Skip("skipping process test: no POSIX process groups")
	}
}
