/*
 * Copyright 2024 ScopeDB, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package quarry

import (
	"os"
	"strconv"
	"time"

	"github.com/scopedb/quarry-go/internal/pool"
	"github.com/scopedb/quarry-go/internal/session"
)

// TLSMode selects how the RPC channel is secured.
type TLSMode = session.TLSMode

const (
	TLSModeNone      = session.TLSModeNone
	TLSModeSystemCA  = session.TLSModeSystemCA
	TLSModeCustomPEM = session.TLSModeCustomPEM
)

// TLSConfig configures channel security. CAPEM takes precedence; CAPath is
// read only when CAPEM is empty. When both are empty under
// TLSModeCustomPEM, Open returns a ConfigError.
type TLSConfig = session.TLSConfig

// ChannelConfig is the fixed menu of gRPC channel options this client
// recognizes.
type ChannelConfig = session.ChannelConfig

// PoolConfig configures the connection pool. See internal/pool for the
// operational semantics of each field.
type PoolConfig = pool.Config

// Config defines a connection to the engine.
type Config struct {
	// Endpoint is host:port of the engine's session endpoint.
	Endpoint string

	// ClusterUUID, when non-empty, selects a cluster in a multi-cluster
	// deployment and is sent as the cluster-uuid metadata header.
	ClusterUUID string

	User     string
	Password string

	Channel ChannelConfig
	Pool    PoolConfig

	// MaxRetryAttempts and RetryBackoff configure the invoker's bounded
	// retry loop for auth-denied and wrong-tag errors.
	MaxRetryAttempts int
	RetryBackoff     time.Duration

	// StrategyCacheTimeout bounds how long a discovered deployment tag is
	// trusted before the coordinator rediscovers it from scratch, even
	// absent a wrong-tag error. Zero (the default set by Open) resolves to
	// DefaultStrategyCacheTimeout; an explicit negative value disables
	// time-based invalidation entirely, so only wrong-tag errors trigger
	// rediscovery.
	StrategyCacheTimeout time.Duration
}

// DefaultStrategyCacheTimeout is the rediscovery TTL applied when
// StrategyCacheTimeout is left at its zero value.
const DefaultStrategyCacheTimeout = 300 * time.Second

// Validate checks the fixed invariants Config must satisfy before Open can
// use it: a non-empty endpoint and sane pool bounds.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return &ConfigError{Message: "endpoint must not be empty"}
	}
	if c.Pool.Max < 0 || c.Pool.Min < 0 || c.Pool.Overflow < 0 {
		return &ConfigError{Message: "pool bounds must not be negative"}
	}
	if c.Pool.Max > 0 && c.Pool.Min > c.Pool.Max {
		return &ConfigError{Message: "pool min must not exceed pool max"}
	}
	if c.Channel.TLS.Mode == TLSModeCustomPEM && len(c.Channel.TLS.CAPEM) == 0 && c.Channel.TLS.CAPath == "" {
		return &ConfigError{Message: "custom TLS mode requires CAPEM or CAPath"}
	}
	return nil
}

func (c *Config) normalized() *Config {
	cp := *c
	cp.Pool = cp.Pool.Normalized()
	if cp.MaxRetryAttempts <= 0 {
		cp.MaxRetryAttempts = 5
	}
	if cp.RetryBackoff <= 0 {
		cp.RetryBackoff = 200 * time.Millisecond
	}
	if cp.StrategyCacheTimeout == 0 {
		cp.StrategyCacheTimeout = DefaultStrategyCacheTimeout
	} else if cp.StrategyCacheTimeout < 0 {
		cp.StrategyCacheTimeout = 0
	}
	return &cp
}

// LoadConfigFromEnv builds a Config from the QUARRY_* environment variables
// documented for this client, returning nil if QUARRY_ENDPOINT is unset.
// Applications that need more than the endpoint should build a Config
// directly; this helper mirrors the minimal environment-driven config the
// test suite uses to skip integration tests when no live engine is
// configured.
func LoadConfigFromEnv() *Config {
	endpoint := os.Getenv("QUARRY_ENDPOINT")
	if endpoint == "" {
		return nil
	}

	cfg := &Config{
		Endpoint: endpoint,
		User:     os.Getenv("QUARRY_USER"),
		Password: os.Getenv("QUARRY_PASSWORD"),
	}
	if v := os.Getenv("QUARRY_MAX_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetryAttempts = n
		}
	}
	if v := os.Getenv("QUARRY_RETRY_BACKOFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RetryBackoff = time.Duration(f * float64(time.Second))
		}
	}
	if v := os.Getenv("QUARRY_STRATEGY_CACHE_TIMEOUT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.StrategyCacheTimeout = time.Duration(f * float64(time.Second))
			if cfg.StrategyCacheTimeout == 0 {
				// 0 in the environment disables the TTL; Config spells that
				// as a negative value, since its zero value means the default.
				cfg.StrategyCacheTimeout = -1
			}
		}
	}
	if v := os.Getenv("QUARRY_POOL_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.Min = n
		}
	}
	if v := os.Getenv("QUARRY_POOL_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.Max = n
		}
	}
	if v := os.Getenv("QUARRY_POOL_OVERFLOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.Overflow = n
		}
	}
	if v := os.Getenv("QUARRY_POOL_RECYCLE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pool.RecycleAge = time.Duration(f * float64(time.Second))
		}
	}
	return cfg
}
