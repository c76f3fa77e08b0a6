package browser

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.name }

// TestRunningInstances matches by executable base name and skips this process.
func TestRunningInstances(t *testing.T) {
	t.Parallel()

	list := func() ([]ps.Process, error) {
		return []ps.Process{
			fakeProcess{pid: 10, name: "chromium"},
			fakeProcess{pid: 11, name: "bash"},
			fakeProcess{pid: os.Getpid(), name: "chromium"},
			fakeProcess{pid: 12, name: "chromium"},
		}, nil
	}

	pids, err := RunningInstances("/usr/bin/chromium", list)
	require.NoError(t, err)
	require.Equal(t, []int{10, 12}, pids)

	pids, err = RunningInstances("google-chrome", list)
	require.NoError(t, err)
	require.Empty(t, pids)
}

// TestRunningInstances_ListError propagates listing failures.
func TestRunningInstances_ListError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	_, err := RunningInstances("chromium", func() ([]ps.Process, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
}

// TestExecutableName_Linux truncates long names the way /proc/<pid>/stat does.
func TestExecutableName_Linux(t *testing.T) {
	t.Parallel()

	require.Equal(t, "chromium-browse", executableName("/usr/bin/chromium-browser", "linux"))
	require.Equal(t, "google-chrome-s", executableName("google-chrome-stable", "linux"))
	require.Equal(t, "chromium", executableName("/usr/bin/chromium", "linux"))
	require.Equal(t, "chromium-browser", executableName("/usr/bin/chromium-browser", "darwin"))
	require.Equal(t, "chrome", executableName(`Chrome.EXE`, "windows"))
}

// TestRunningInstances_LongNames matches browsers whose names exceed the kernel limit.
func TestRunningInstances_LongNames(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("process names are only truncated on Linux")
	}

	list := func() ([]ps.Process, error) {
		return []ps.Process{
			fakeProcess{pid: 20, name: "chromium-browse"},
			fakeProcess{pid: 21, name: "google-chrome-s"},
		}, nil
	}

	pids, err := RunningInstances("/usr/bin/chromium-browser", list)
	require.NoError(t, err)
	require.Equal(t, []int{20}, pids)

	pids, err = RunningInstances("/usr/bin/google-chrome-stable", list)
	require.NoError(t, err)
	require.Equal(t, []int{21}, pids)
}

// TestRunningInstances_SymlinkTarget matches the process named after a wrapper's target.
func TestRunningInstances_SymlinkTarget(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need extra privileges on Windows")
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "chrome")
	link := filepath.Join(dir, "google-chrome")

	require.NoError(t, os.WriteFile(target, []byte("#!/bin/sh\n"), 0o755)) //nolint:gosec // Test executable.
	require.NoError(t, os.Symlink(target, link))

	list := func() ([]ps.Process, error) {
		return []ps.Process{
			fakeProcess{pid: 30, name: "chrome"},
			fakeProcess{pid: 31, name: "google-chrome"},
			fakeProcess{pid: 32, name: "chromium"},
		}, nil
	}

	pids, err := RunningInstances(link, list)
	require.NoError(t, err)
	require.Equal(t, []int{30, 31}, pids)
}
