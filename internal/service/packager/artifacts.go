package packager

import (
	"bytes"
	"context"
	"crypto"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/crx-packer/internal/browser"
	"github.com/oshokin/crx-packer/internal/logger"
	"github.com/oshokin/crx-packer/internal/version"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// ChecksumFunction hashes installed archives.
	ChecksumFunction crypto.Hash = crypto.SHA512

	// ChecksumFileSuffix is appended to the archive name for the checksum file.
	ChecksumFileSuffix = ".yaml"

	// manifestFilename is the extension manifest inside the build directory.
	manifestFilename = "manifest.json"

	// archivePermissions is the mode of the installed archive.
	archivePermissions os.FileMode = 0o644
)

var errHashUnavailable = errors.New("hash function unavailable")

// ChecksumFile describes the installed archive.
type ChecksumFile struct {
	// ExtensionVersion is the version field of manifest.json, if readable.
	ExtensionVersion string `yaml:"extension_version"`
	// Archive is the archive file name inside the distribution directory.
	Archive string `yaml:"archive"`
	// Algorithm names the checksum function.
	Algorithm string `yaml:"algorithm"`
	// Checksum is the base64-encoded archive checksum.
	Checksum string `yaml:"checksum"`
	// Browser is the executable that packed the archive.
	Browser string `yaml:"browser"`
	// NewKey is true when this run generated the signing key.
	NewKey bool `yaml:"new_key"`
	// PackerVersion is the crx-packer version.
	PackerVersion string `yaml:"packer_version"`
}

// Checksum returns the ChecksumFunction digest of data.
func Checksum(data []byte) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := ChecksumFunction.New()
	if _, err := hasher.Write(data); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// GetFileChecksum returns the ChecksumFunction digest of the file at path.
func GetFileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	return Checksum(contents)
}

// archivePath returns where the archive is installed.
func (p *packager) archivePath() string {
	return filepath.Join(p.cfg.DistDir, p.cfg.ArchiveName)
}

// installArchive replaces the distribution archive with the file at src and
// removes src. It returns the archive checksum, or nil if src does not exist.
func (p *packager) installArchive(ctx context.Context, src string) ([]byte, error) {
	found, err := fileExists(src)
	if err != nil {
		return nil, err
	}

	if !found {
		logger.WarnKV(ctx, "The browser produced no archive", "expected", src)
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return nil, err
	}

	checksum, err := Checksum(data)
	if err != nil {
		return nil, err
	}

	target := p.archivePath()

	// Apply swaps the target out, so it has to exist first.
	created := false

	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File

		if placeholder, err = os.Create(target); err != nil {
			return nil, err
		}

		_ = placeholder.Close()
		created = true
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: archivePermissions,
		Checksum:   checksum,
		Hash:       ChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if created {
			_ = os.Remove(target)
		}

		return nil, fmt.Errorf("replace %s: %w", target, err)
	}

	if err = os.Remove(src); err != nil {
		return nil, fmt.Errorf("remove %s: %w", src, err)
	}

	logger.InfoKV(ctx, "Created archive", "path", target)

	return checksum, nil
}

// adoptKey moves a freshly generated key to the configured key path without
// ever replacing an existing file. It reports whether a key was moved.
func (p *packager) adoptKey(ctx context.Context, src string) (bool, error) {
	found, err := fileExists(src)
	if err != nil {
		return false, err
	}

	if !found {
		logger.WarnKV(ctx, "No key file was generated", "expected", src)
		return false, nil
	}

	if err = moveNoReplace(src, p.cfg.KeyFile); err != nil {
		return false, err
	}

	if err = os.Chmod(p.cfg.KeyFile, keyFilePermissions); err != nil {
		return false, err
	}

	logger.InfoKV(ctx, "Generated new key file", "path", p.cfg.KeyFile)
	logger.Warn(ctx, "Keep this key file safe! You need it to update the extension.")

	return true, nil
}

// moveNoReplace renames src to dst, failing if dst exists. A hard link makes
// the check atomic; filesystems without hard links fall back to stat and rename.
func moveNoReplace(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil {
		return os.Remove(src)
	}

	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s: %w", dst, errKeyExists)
	}

	if _, statErr := os.Lstat(dst); statErr == nil {
		return fmt.Errorf("%s: %w", dst, errKeyExists)
	}

	return os.Rename(src, dst)
}

// writeChecksumFile records the archive checksum next to the archive.
func (p *packager) writeChecksumFile(
	ctx context.Context,
	exe *browser.Executable,
	checksum []byte,
	newKey bool,
) error {
	desc := &ChecksumFile{
		ExtensionVersion: p.extensionVersion(ctx),
		Archive:          p.cfg.ArchiveName,
		Algorithm:        "sha512",
		Checksum:         base64.StdEncoding.EncodeToString(checksum),
		Browser:          exe.Name,
		NewKey:           newKey,
		PackerVersion:    version.Short(),
	}

	contents, err := yaml.Marshal(desc)
	if err != nil {
		return err
	}

	path := p.archivePath() + ChecksumFileSuffix
	if err = os.WriteFile(path, contents, archivePermissions); err != nil {
		return err
	}

	logger.DebugKV(ctx, "Wrote checksum file", "path", path)

	return nil
}

// extensionVersion reads the version from manifest.json. Failures yield "".
func (p *packager) extensionVersion(ctx context.Context) string {
	contents, err := os.ReadFile(filepath.Join(p.cfg.BuildDir, manifestFilename))
	if err != nil {
		logger.DebugKV(ctx, "Unable to read extension manifest", "error", err)
		return ""
	}

	var manifest struct {
		Version string `json:"version"`
	}

	if err = json.Unmarshal(contents, &manifest); err != nil {
		logger.DebugKV(ctx, "Unable to parse extension manifest", "error", err)
		return ""
	}

	return manifest.Version
}
