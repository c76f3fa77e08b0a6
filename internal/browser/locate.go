package browser

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotFound is returned when none of the candidate executables is on the search path.
var ErrNotFound = errors.New("no supported browser executable found")

// LookupFunc resolves an executable name to a path, like exec.LookPath.
type LookupFunc func(name string) (string, error)

// Executable is a resolved candidate.
type Executable struct {
	// Name is the candidate as listed in the configuration.
	Name string
	// Path is where the lookup found it.
	Path string
}

// InstallHint tells the user how to get a supported browser on one platform.
type InstallHint struct {
	Platform string
	Command  string
}

// SearchPath resolves names against the host PATH.
func SearchPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Locate returns the first candidate that lookup resolves. The order of
// candidates is the only priority; later names are not tried once one matches.
func Locate(candidates []string, lookup LookupFunc) (*Executable, error) {
	if lookup == nil {
		lookup = SearchPath
	}

	for _, name := range candidates {
		if name == "" {
			continue
		}

		path, err := lookup(name)
		if err != nil || path == "" {
			continue
		}

		return &Executable{Name: name, Path: path}, nil
	}

	return nil, fmt.Errorf("tried %s: %w", strings.Join(candidates, ", "), ErrNotFound)
}

// InstallHints lists the supported ways to install a browser that can pack extensions.
func InstallHints() []InstallHint {
	return []InstallHint{
		{Platform: "Ubuntu/Debian", Command: "sudo apt-get install chromium-browser"},
		{Platform: "macOS", Command: "brew install --cask google-chrome"},
	}
}
