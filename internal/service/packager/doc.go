// Package packager turns the extension build directory into a signed CRX
// archive in the distribution directory.
//
// It probes the configured browsers in order, runs the first one found in
// --pack-extension mode, installs the resulting archive (replacing any
// previous one), keeps the signing key stable across runs and records the
// archive checksum in a YAML file beside it.
package packager
