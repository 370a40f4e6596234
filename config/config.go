// Licensed to LinDB under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. LinDB licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package config holds taskloopd's tunable settings: the library's own
// publicly mutable retry/default timeouts plus the demo daemon's pool
// sizing and HTTP port. Each settings struct carries both toml tags (for
// the on-disk config file) and env tags (for environment overrides), and
// a TOML() method that doubles as the generated default config file's doc
// comments.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v7"
	"github.com/lindb/common/pkg/ltoml"
)

// Pool configures the internal/concurrent worker pool backing
// executor.PoolBound and executor.Async.
type Pool struct {
	Concurrency int            `env:"CONCURRENCY" toml:"concurrency"`
	IdleTimeout ltoml.Duration `env:"IDLE_TIMEOUT" toml:"idle-timeout"`
}

// TOML returns Pool's toml config fragment.
func (p *Pool) TOML() string {
	return fmt.Sprintf(`
## maximum number of worker goroutines the pool runs concurrently
## Default: %d
## Env: TASKLOOP_POOL_CONCURRENCY
concurrency = %d
## how long an idle worker goroutine waits for new work before exiting
## Default: %s
## Env: TASKLOOP_POOL_IDLE_TIMEOUT
idle-timeout = "%s"`,
		p.Concurrency, p.Concurrency,
		p.IdleTimeout.String(), p.IdleTimeout.String(),
	)
}

// Tunables is the full set of taskloopd settings: the library's own
// publicly-mutable timeouts plus the demo daemon's pool sizing and HTTP
// port.
type Tunables struct {
	RetryTimeout   ltoml.Duration `env:"RETRY_TIMEOUT" toml:"retry-timeout"`
	DefaultTimeout ltoml.Duration `env:"DEFAULT_TIMEOUT" toml:"default-timeout"`
	HTTPPort       int            `env:"HTTP_PORT" toml:"http-port"`
	Pool           Pool           `envPrefix:"POOL_" toml:"pool"`
}

// TOML returns Tunables' full toml config document.
func (t *Tunables) TOML() string {
	return fmt.Sprintf(`## taskloopd configuration

## upper bound on how long Handler.Next waits before re-polling after a
## Request refused readiness.
## Default: %s
## Env: TASKLOOP_RETRY_TIMEOUT
retry-timeout = "%s"
## default poll timeout a Looper uses when none is supplied explicitly.
## Default: %s
## Env: TASKLOOP_DEFAULT_TIMEOUT
default-timeout = "%s"
## port the demo HTTP API listens on.
## Default: %d
## Env: TASKLOOP_HTTP_PORT
http-port = %d

## Worker pool related configuration.
[pool]%s`,
		t.RetryTimeout.String(), t.RetryTimeout.String(),
		t.DefaultTimeout.String(), t.DefaultTimeout.String(),
		t.HTTPPort, t.HTTPPort,
		t.Pool.TOML(),
	)
}

// NewDefaultTunables returns Tunables populated with the library's
// defaults (20ms retry, 700ms default timeout) and a reasonable demo pool.
func NewDefaultTunables() *Tunables {
	return &Tunables{
		RetryTimeout:   ltoml.Duration(20 * time.Millisecond),
		DefaultTimeout: ltoml.Duration(700 * time.Millisecond),
		HTTPPort:       8080,
		Pool: Pool{
			Concurrency: 8,
			IdleTimeout: ltoml.Duration(30 * time.Second),
		},
	}
}

// Load reads Tunables from path (if non-empty and the file exists),
// starting from the built-in defaults, then applies TASKLOOP_*-prefixed
// environment overrides on top of whatever the file set.
func Load(path string) (*Tunables, error) {
	cfg := NewDefaultTunables()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("decode config file %s: %w", path, err)
			}
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "TASKLOOP_"}); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	return cfg, nil
}

// WriteDefault writes a freshly generated default config document to path.
func WriteDefault(path string) error {
	return os.WriteFile(path, []byte(NewDefaultTunables().TOML()), 0o644)
}
