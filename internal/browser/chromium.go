package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// packExtensionFlag asks the browser to pack the given directory.
	packExtensionFlag = "--pack-extension="
	// packExtensionKeyFlag points the browser at an existing private key.
	packExtensionKeyFlag = "--pack-extension-key="

	// ArchiveExtension is appended to the build directory name for the packed archive.
	ArchiveExtension = ".crx"
	// KeyExtension is appended to the build directory name for a generated key.
	KeyExtension = ".pem"

	// NewKeyNotice is what the browser prints on stderr after generating a key.
	NewKeyNotice = "Created new extension"

	// waitDelay bounds how long output pipes held open by browser helper
	// processes may delay Wait after the browser itself exits or is killed.
	waitDelay = 5 * time.Second
)

// ErrPackFailed wraps a non-zero exit of the browser process.
var ErrPackFailed = errors.New("browser failed to pack the extension")

// Packer turns an extension directory into a signed archive.
type Packer interface {
	// PackExtension packs buildDir. An empty keyPath lets the packer generate a new key.
	PackExtension(ctx context.Context, buildDir, keyPath string) (*PackResult, error)
}

// PackResult describes one packing invocation.
type PackResult struct {
	// Args is the argument list passed to the executable.
	Args []string
	// ArchivePath is where the archive is expected to appear.
	ArchivePath string
	// KeyPath is where a generated key is expected to appear.
	KeyPath string
	// Stdout is the captured standard output.
	Stdout string
	// Stderr is the captured standard error.
	Stderr string
}

// Chromium packs extensions by running a Chromium-family browser.
type Chromium struct {
	bin       string
	extraArgs []string
	timeout   time.Duration
}

// ChromiumOption configures a Chromium packer.
type ChromiumOption func(*Chromium)

// WithExtraArgs appends args after the pack directives.
func WithExtraArgs(args ...string) ChromiumOption {
	return func(c *Chromium) {
		c.extraArgs = append(c.extraArgs, args...)
	}
}

// WithTimeout kills the browser if it runs longer than d. Zero means no limit.
func WithTimeout(d time.Duration) ChromiumOption {
	return func(c *Chromium) {
		c.timeout = d
	}
}

// NewChromium returns a packer running the executable at bin.
func NewChromium(bin string, opts ...ChromiumOption) *Chromium {
	c := &Chromium{bin: bin}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// PackArgs builds the argument list for packing buildDir, reusing keyPath when set.
func PackArgs(buildDir, keyPath string, extra ...string) []string {
	args := make([]string, 0, 2+len(extra))
	args = append(args, packExtensionFlag+buildDir)

	if keyPath != "" {
		args = append(args, packExtensionKeyFlag+keyPath)
	}

	return append(args, extra...)
}

// OutputPaths returns where the browser writes the archive and the generated
// key: next to buildDir, named after it.
func OutputPaths(buildDir string) (archivePath, keyPath string) {
	base := filepath.Clean(buildDir)

	return base + ArchiveExtension, base + KeyExtension
}

// PackExtension runs the browser and waits for it to exit.
func (c *Chromium) PackExtension(ctx context.Context, buildDir, keyPath string) (*PackResult, error) {
	buildDir = filepath.Clean(buildDir)

	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	archivePath, generatedKeyPath := OutputPaths(buildDir)
	result := &PackResult{
		Args:        PackArgs(buildDir, keyPath, c.extraArgs...),
		ArchivePath: archivePath,
		KeyPath:     generatedKeyPath,
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, c.bin, result.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("run %s: %w", filepath.Base(c.bin), ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, fmt.Errorf("%s exited with %d: %s: %w",
			filepath.Base(c.bin), exitErr.ExitCode(), strings.TrimSpace(result.Stderr), ErrPackFailed)
	}

	return result, fmt.Errorf("run %s: %w", filepath.Base(c.bin), err)
}
