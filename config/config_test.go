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

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultTunables_MatchesSpecDefaults(t *testing.T) {
	cfg := NewDefaultTunables()
	assert.Equal(t, 20*time.Millisecond, time.Duration(cfg.RetryTimeout))
	assert.Equal(t, 700*time.Millisecond, time.Duration(cfg.DefaultTimeout))
}

func TestWriteDefaultThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskloopd.toml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, NewDefaultTunables().RetryTimeout, cfg.RetryTimeout)
	assert.Equal(t, 8, cfg.Pool.Concurrency)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, NewDefaultTunables().HTTPPort, cfg.HTTPPort)
}

func TestLoad_EnvOverridesDefaultValue(t *testing.T) {
	t.Setenv("TASKLOOP_HTTP_PORT", "9999")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.HTTPPort)
}
