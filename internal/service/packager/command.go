package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/oshokin/crx-packer/internal/browser"
	"github.com/oshokin/crx-packer/internal/config"
	"github.com/oshokin/crx-packer/internal/logger"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional YAML settings file; empty means crx-packer.yaml if present.
	ConfigPath string
	// ProjectRoot anchors relative paths from the configuration; empty means the working directory.
	ProjectRoot string
	// Config, when set, is used instead of loading ConfigPath.
	Config *config.Config
	// Lookup resolves candidate executable names; nil means the host PATH.
	Lookup browser.LookupFunc
	// NewPacker builds the packer for the resolved executable; nil means NewChromiumPacker.
	NewPacker PackerFactory
	// Processes lists running processes; nil means the operating system's process table.
	Processes browser.ProcessListFunc
}

// PackerFactory builds a packer for a resolved executable.
type PackerFactory func(exe *browser.Executable, cfg *config.Config) browser.Packer

// Step names reported in StepError.
const (
	StepLoadConfig     = "load configuration"
	StepEnsureDistDir  = "ensure distribution directory"
	StepCheckKey       = "check key file"
	StepCheckBuildDir  = "check build directory"
	StepPack           = "pack extension"
	StepInstallArchive = "install archive"
	StepAdoptKey       = "adopt generated key"
	StepChecksumFile   = "write checksum file"
)

const (
	// distDirPermissions is used when creating the distribution directory.
	distDirPermissions os.FileMode = 0o755
	// keyFilePermissions restricts the adopted private key to its owner.
	keyFilePermissions os.FileMode = 0o600
)

var (
	// ErrMissingExecutable is returned when no candidate browser is on the search path.
	ErrMissingExecutable = errors.New("no supported browser found")

	// errNotADirectory is returned when the build path is a file.
	errNotADirectory = errors.New("not a directory")
	// errKeyExists is returned instead of replacing a key file.
	errKeyExists = errors.New("key file already exists")
)

// StepError reports which step of a run failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// packager runs one packaging pass with resolved, absolute paths.
type packager struct {
	cfg       *config.Config
	lookup    browser.LookupFunc
	newPacker PackerFactory
	processes browser.ProcessListFunc
}

// NewChromiumPacker runs the resolved executable with the configured extra
// arguments and timeout.
//
//nolint:ireturn // Factories return the capability interface.
func NewChromiumPacker(exe *browser.Executable, cfg *config.Config) browser.Packer {
	return browser.NewChromium(exe.Path,
		browser.WithExtraArgs(cfg.ExtraArgs...),
		browser.WithTimeout(cfg.Timeout))
}

// Run executes the packaging workflow and logs its outcome.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "crx-packer")

	if opts == nil {
		opts = new(Options)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		err = &StepError{Step: StepLoadConfig, Err: err}
		logger.ErrorKV(ctx, "Failed to create CRX package", "error", err)

		return err
	}

	p := newPackager(cfg, opts)

	if err = p.Run(ctx); err != nil {
		if errors.Is(err, ErrMissingExecutable) {
			reportMissingExecutable(ctx, cfg.Browsers)
		} else {
			logger.ErrorKV(ctx, "Failed to create CRX package", "error", err)
		}

		return err
	}

	logger.Info(ctx, "CRX package created successfully")

	return nil
}

func loadConfig(opts *Options) (*config.Config, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	} else if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return config.Resolve(cfg, opts.ProjectRoot)
}

func newPackager(cfg *config.Config, opts *Options) *packager {
	p := &packager{
		cfg:       cfg,
		lookup:    opts.Lookup,
		newPacker: opts.NewPacker,
		processes: opts.Processes,
	}

	if p.lookup == nil {
		p.lookup = browser.SearchPath
	}

	if p.newPacker == nil {
		p.newPacker = NewChromiumPacker
	}

	return p
}

// Run packs the build directory and moves the results into place.
func (p *packager) Run(ctx context.Context) error {
	logger.Info(ctx, "Creating CRX package")

	if err := os.MkdirAll(p.cfg.DistDir, distDirPermissions); err != nil {
		return &StepError{Step: StepEnsureDistDir, Err: err}
	}

	hasKey, err := fileExists(p.cfg.KeyFile)
	if err != nil {
		return &StepError{Step: StepCheckKey, Err: err}
	}

	exe, err := browser.Locate(p.cfg.Browsers, p.lookup)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMissingExecutable, err)
	}

	ctx = logger.WithKV(ctx, "browser", exe.Name)

	if err = p.checkBuildDir(); err != nil {
		return &StepError{Step: StepCheckBuildDir, Err: err}
	}

	p.warnIfRunning(ctx, exe)

	keyPath := ""
	if hasKey {
		keyPath = p.cfg.KeyFile
	} else {
		logger.Warn(ctx, "No key file found, a new key will be generated")
	}

	logger.InfoKV(ctx, "Packing extension", "executable", exe.Path, "build_dir", p.cfg.BuildDir)

	result, err := p.newPacker(exe, p.cfg).PackExtension(ctx, p.cfg.BuildDir, keyPath)
	if err != nil {
		return &StepError{Step: StepPack, Err: err}
	}

	reportStderr(ctx, result.Stderr)

	checksum, err := p.installArchive(ctx, result.ArchivePath)
	if err != nil {
		return &StepError{Step: StepInstallArchive, Err: err}
	}

	generatedKey := false
	if !hasKey {
		if generatedKey, err = p.adoptKey(ctx, result.KeyPath); err != nil {
			return &StepError{Step: StepAdoptKey, Err: err}
		}
	}

	if checksum == nil || p.cfg.SkipChecksumFile {
		return nil
	}

	if err = p.writeChecksumFile(ctx, exe, checksum, generatedKey); err != nil {
		return &StepError{Step: StepChecksumFile, Err: err}
	}

	return nil
}

func (p *packager) checkBuildDir() error {
	info, err := os.Stat(p.cfg.BuildDir)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("%s: %w", p.cfg.BuildDir, errNotADirectory)
	}

	return nil
}

// warnIfRunning logs running instances of the browser. Listing failures are not fatal.
func (p *packager) warnIfRunning(ctx context.Context, exe *browser.Executable) {
	pids, err := browser.RunningInstances(exe.Path, p.processes)
	if err != nil {
		logger.DebugKV(ctx, "Unable to list running processes", "error", err)
		return
	}

	if len(pids) > 0 {
		logger.WarnKV(ctx, "The browser is already running and may take over the pack request", "pids", pids)
	}
}

// reportStderr surfaces unexpected browser diagnostics without failing the run.
func reportStderr(ctx context.Context, stderr string) {
	text := strings.TrimSpace(stderr)
	if text == "" {
		return
	}

	if strings.Contains(text, browser.NewKeyNotice) {
		logger.DebugKV(ctx, "Browser output", "stderr", text)
		return
	}

	logger.WarnKV(ctx, "Browser reported an error", "stderr", text)
}

func reportMissingExecutable(ctx context.Context, tried []string) {
	logger.ErrorKV(ctx, "Chrome/Chromium not found. Please install Chrome or Chromium.",
		"tried", strings.Join(tried, ", "))

	for _, hint := range browser.InstallHints() {
		logger.Infof(ctx, "On %s: %s", hint.Platform, hint.Command)
	}
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, err
}
