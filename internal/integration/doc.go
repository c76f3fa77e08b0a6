// Package integration runs the packager end to end against a stand-in
// browser executable placed on PATH.
package integration
