package browser

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

var errNotOnPath = errors.New("not on path")

// fakeLookup resolves only the listed names and records every probe.
func fakeLookup(available map[string]string, probed *[]string) LookupFunc {
	return func(name string) (string, error) {
		*probed = append(*probed, name)

		if path, ok := available[name]; ok {
			return path, nil
		}

		return "", errNotOnPath
	}
}

// TestLocate_FirstMatchWins ensures probing stops at the first resolvable candidate.
func TestLocate_FirstMatchWins(t *testing.T) {
	t.Parallel()

	var probed []string

	lookup := fakeLookup(map[string]string{
		"chromium":             "/usr/bin/chromium",
		"google-chrome-stable": "/usr/bin/google-chrome-stable",
	}, &probed)

	exe, err := Locate([]string{"google-chrome", "chromium-browser", "chromium", "google-chrome-stable"}, lookup)
	require.NoError(t, err)
	require.Equal(t, &Executable{Name: "chromium", Path: "/usr/bin/chromium"}, exe)
	require.Equal(t, []string{"google-chrome", "chromium-browser", "chromium"}, probed)
}

// TestLocate_ListOrderIsPriority checks that order, not name, decides.
func TestLocate_ListOrderIsPriority(t *testing.T) {
	t.Parallel()

	var probed []string

	lookup := fakeLookup(map[string]string{
		"google-chrome":        "/opt/google/chrome",
		"google-chrome-stable": "/usr/bin/google-chrome-stable",
	}, &probed)

	exe, err := Locate([]string{"google-chrome-stable", "google-chrome"}, lookup)
	require.NoError(t, err)
	require.Equal(t, "google-chrome-stable", exe.Name)
	require.Len(t, probed, 1)
}

// TestLocate_NoneFound returns ErrNotFound after trying every candidate.
func TestLocate_NoneFound(t *testing.T) {
	t.Parallel()

	var probed []string

	exe, err := Locate([]string{"a", "", "b"}, fakeLookup(nil, &probed))
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, exe)
	require.Equal(t, []string{"a", "b"}, probed)

	_, err = Locate(nil, fakeLookup(nil, &probed))
	require.ErrorIs(t, err, ErrNotFound)
}

// TestLocate_SearchPath uses the real PATH lookup against a temporary directory.
func TestLocate_SearchPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script executables are not supported on Windows")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-chromium")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0o755)) //nolint:gosec // Test executable.

	t.Setenv("PATH", dir)

	exe, err := Locate([]string{"google-chrome", "fake-chromium"}, nil)
	require.NoError(t, err)
	require.Equal(t, "fake-chromium", exe.Name)
	require.Equal(t, bin, exe.Path)
}

// TestInstallHints names one hint per supported package manager.
func TestInstallHints(t *testing.T) {
	t.Parallel()

	hints := InstallHints()
	require.Len(t, hints, 2)
	require.Contains(t, hints[0].Command, "apt-get")
	require.Contains(t, hints[1].Command, "brew")
}
