package browser

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"
)

// linuxCommLength is the longest process name the Linux kernel reports in
// /proc/<pid>/stat, which is where go-ps reads Executable from.
const linuxCommLength = 15

// ProcessListFunc lists running processes, like ps.Processes.
type ProcessListFunc func() ([]ps.Process, error)

// RunningInstances returns the PIDs of processes whose executable name matches
// the executable at bin or the file it links to, excluding the current process.
// A running browser can take over a pack request and leave no archive behind.
func RunningInstances(bin string, list ProcessListFunc) ([]int, error) {
	if list == nil {
		list = ps.Processes
	}

	processes, err := list()
	if err != nil {
		return nil, err
	}

	want := processNames(bin, runtime.GOOS)
	self := os.Getpid()

	var pids []int

	for _, process := range processes {
		if process.Pid() == self {
			continue
		}

		if _, ok := want[executableName(process.Executable(), runtime.GOOS)]; !ok {
			continue
		}

		pids = append(pids, process.Pid())
	}

	return pids, nil
}

// processNames returns the names a process started from bin may be listed
// under: its own name and, for wrappers such as google-chrome, the name of
// the symlink target.
func processNames(bin, goos string) map[string]struct{} {
	names := map[string]struct{}{
		executableName(bin, goos): {},
	}

	if target, err := filepath.EvalSymlinks(bin); err == nil {
		names[executableName(target, goos)] = struct{}{}
	}

	return names
}

// executableName reduces name to the form the process table uses on goos.
func executableName(name, goos string) string {
	name = filepath.Base(name)

	switch goos {
	case "windows":
		name = strings.TrimSuffix(strings.ToLower(name), ".exe")
	case "linux":
		if len(name) > linuxCommLength {
			name = name[:linuxCommLength]
		}
	}

	return name
}
