// Package config loads aml.Options declaratively from a TOML file, via
// the same golobby/config/v3 builder the teacher's application config
// layer was built on (config.New().AddFeeder(...).AddStruct(...).Feed()),
// fed by the kept feeders.TomlFeeder (itself a BurntSushi/toml round trip
// wrapped around golobby/config/v3/pkg/feeder.Toml). Numeric fields that
// arrive from TOML as one concrete type but are needed as another are
// coerced with github.com/golobby/cast, the same library the teacher's
// env feeders use for that purpose.
package config

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/golobby/cast"
	"github.com/golobby/config/v3"

	"github.com/aml-go/aml"
	"github.com/aml-go/aml/feeders"
)

// File is the on-disk shape this package understands.
//
//	[loop]
//	backend = "epoll"
//	workers = 4
//	poll_timeout = "250ms"
type File struct {
	Loop struct {
		Backend     string `toml:"backend"`
		Workers     any    `toml:"workers"`
		PollTimeout string `toml:"poll_timeout"`
	} `toml:"loop"`
}

// Loaded is the result of Load: the resolved Options plus the poll
// timeout a Run-like caller loop passes to Loop.Poll, since that value has
// no place on aml.Options itself — it's a per-call argument, not a
// construction-time setting.
type Loaded struct {
	Options     []aml.Option
	BackendName string
	PollTimeout time.Duration
}

var intType = reflect.TypeOf(0)

// Load reads path as TOML and produces the Options a caller passes to
// aml.NewWithBackend. ctx is accepted for symmetry with the rest of the
// module's I/O-facing surface (and to leave room for a future remote
// config source) but is not currently consulted by the local-file feeder.
func Load(ctx context.Context, path string) (*Loaded, error) {
	var f File
	builder := config.New()
	builder.AddFeeder(feeders.NewTomlFeeder(path))
	builder.AddStruct(&f)
	if err := builder.Feed(); err != nil {
		return nil, fmt.Errorf("config: feed %s: %w", path, err)
	}

	out := &Loaded{BackendName: f.Loop.Backend}

	if f.Loop.Workers != nil {
		n, err := cast.FromType(f.Loop.Workers, intType)
		if err != nil {
			return nil, fmt.Errorf("config: loop.workers: %w", err)
		}
		workers, ok := n.(int)
		if !ok {
			return nil, fmt.Errorf("config: loop.workers: expected int, got %T", n)
		}
		out.Options = append(out.Options, aml.WithWorkers(workers))
	}

	if f.Loop.PollTimeout != "" {
		d, err := time.ParseDuration(f.Loop.PollTimeout)
		if err != nil {
			return nil, fmt.Errorf("config: loop.poll_timeout: %w", err)
		}
		out.PollTimeout = d
	}

	return out, nil
}
