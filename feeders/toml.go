// Package feeders adapts golobby/config/v3's Feeder contract to the one
// file format config.Load accepts. The teacher wires half a dozen of
// these (env, yaml, json, toml...) behind a shared KeyFeeder interface
// for per-module partial feeds; aml's config only ever feeds one [loop]
// struct from one file, so only the base TOML round trip survives here.
package feeders

import "github.com/golobby/config/v3/pkg/feeder"

// TomlFeeder reads a whole TOML file into the struct passed to Feed.
type TomlFeeder struct {
	feeder.Toml
}

// NewTomlFeeder returns a feeder reading filePath.
func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{feeder.Toml{Path: filePath}}
}
