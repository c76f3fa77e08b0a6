package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes where the packer reads and writes and which browsers it tries.
type Config struct {
	// BuildDir is the unpacked extension directory produced by the build step.
	BuildDir string `yaml:"build_dir"`
	// DistDir receives the packaged archive.
	DistDir string `yaml:"dist_dir"`
	// KeyFile is the private key reused across runs to keep the extension ID stable.
	KeyFile string `yaml:"key_file"`
	// ArchiveName is the file name of the archive inside DistDir.
	ArchiveName string `yaml:"archive_name"`
	// Browsers lists candidate executables in probe order; the first one found wins.
	Browsers []string `yaml:"browsers"`
	// ExtraArgs are appended to the browser invocation after the pack directives.
	ExtraArgs []string `yaml:"extra_args,omitempty"`
	// Timeout bounds the runtime of the browser process. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`
	// SkipChecksumFile disables the YAML checksum file written next to the archive.
	SkipChecksumFile bool `yaml:"skip_checksum_file"`
}

const (
	// DefaultConfigFilename is looked up in the working directory when --config is not given.
	DefaultConfigFilename = "crx-packer.yaml"

	// DefaultBuildDir is the extension build output directory.
	DefaultBuildDir = "build"

	// DefaultDistDir is the distribution directory.
	DefaultDistDir = "dist"

	// DefaultKeyFile is the signing key location.
	DefaultKeyFile = "key.pem"

	// DefaultArchiveName is the archive file name inside the distribution directory.
	DefaultArchiveName = "sync-my-cookie.crx"

	// DefaultTimeout bounds a single browser invocation.
	DefaultTimeout = 2 * time.Minute

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoBrowsers is returned when every candidate name is blank.
	errNoBrowsers = errors.New("at least one browser executable must be listed")
	// errBadArchiveName is returned when the archive name is not a plain file name.
	errBadArchiveName = errors.New("archive name must be a plain file name")
	// errNegativeTimeout is returned for a timeout below zero.
	errNegativeTimeout = errors.New("timeout must not be negative")
)

// DefaultBrowsers returns the candidate executables in probe order.
func DefaultBrowsers() []string {
	return []string{
		"google-chrome",
		"chromium-browser",
		"chromium",
		"google-chrome-stable",
	}
}

// Default returns a configuration that packs build/ into dist/sync-my-cookie.crx.
func Default() *Config {
	return &Config{
		BuildDir:    DefaultBuildDir,
		DistDir:     DefaultDistDir,
		KeyFile:     DefaultKeyFile,
		ArchiveName: DefaultArchiveName,
		Browsers:    DefaultBrowsers(),
		Timeout:     DefaultTimeout,
	}
}

// Load reads configuration from path and validates it.
// A missing file at the default location yields Default(); a missing file
// that was asked for explicitly is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path. It refuses to replace an existing file.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("create settings file: %w", err)
	}

	if _, err = file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("write settings: %w", err)
	}

	return file.Close()
}

// Validate fills blank paths and names with defaults and rejects unusable values.
// The timeout is kept as given, so an explicit zero disables it; Default and
// Load supply DefaultTimeout when the setting is absent.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.BuildDir == "" {
		cfg.BuildDir = DefaultBuildDir
	}

	if cfg.DistDir == "" {
		cfg.DistDir = DefaultDistDir
	}

	if cfg.KeyFile == "" {
		cfg.KeyFile = DefaultKeyFile
	}

	if cfg.ArchiveName == "" {
		cfg.ArchiveName = DefaultArchiveName
	}

	if cfg.ArchiveName != filepath.Base(cfg.ArchiveName) || strings.ContainsAny(cfg.ArchiveName, `/\`) ||
		cfg.ArchiveName == "." || cfg.ArchiveName == ".." {
		return fmt.Errorf("%q: %w", cfg.ArchiveName, errBadArchiveName)
	}

	if cfg.Timeout < 0 {
		return fmt.Errorf("%s: %w", cfg.Timeout, errNegativeTimeout)
	}

	if cfg.Browsers == nil {
		cfg.Browsers = DefaultBrowsers()
	}

	browsers := make([]string, 0, len(cfg.Browsers))

	for _, name := range cfg.Browsers {
		if name = strings.TrimSpace(name); name != "" {
			browsers = append(browsers, name)
		}
	}

	if len(browsers) == 0 {
		return errNoBrowsers
	}

	cfg.Browsers = browsers

	return nil
}

// Resolve returns a copy of cfg whose paths are absolute, with relative
// paths taken from root. An empty root means the working directory.
func Resolve(cfg *Config, root string) (*Config, error) {
	if cfg == nil {
		return nil, errConfigIsNotSet
	}

	if root == "" {
		root = "."
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	resolved := *cfg
	resolved.Browsers = append([]string(nil), cfg.Browsers...)
	resolved.ExtraArgs = append([]string(nil), cfg.ExtraArgs...)
	resolved.BuildDir = join(absRoot, cfg.BuildDir)
	resolved.DistDir = join(absRoot, cfg.DistDir)
	resolved.KeyFile = join(absRoot, cfg.KeyFile)

	return &resolved, nil
}

func join(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(root, path)
}
