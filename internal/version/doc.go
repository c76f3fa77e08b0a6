// Package version exposes build metadata for crx-packer.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags.
package version
