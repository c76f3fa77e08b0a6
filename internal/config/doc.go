// Package config defines the packer settings and helpers to load, validate,
// resolve and save them in YAML format.
//
// Every field has a default matching the conventional project layout
// (build/, dist/, key.pem), so a missing default config file is not an error.
package config
