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
	"fmt"

	"github.com/scopedb/quarry-go/internal/pool"
)

// ConfigError reports an invalid Config: a bad endpoint, inverted pool
// bounds, or unusable TLS material. It is only ever returned from
// construction, never from a running Connection.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return "quarry: config: " + e.Message }

// TransportError wraps a channel-level failure (closed transport, deadline
// exceeded) that the invoker does not retry.
type TransportError struct {
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("quarry: transport: %s: %v", e.Message, e.Cause)
	}
	return "quarry: transport: " + e.Message
}

func (e *TransportError) Unwrap() error { return e.Cause }

// AuthDeniedError is the distinguished "Access denied" condition the
// invoker retries after re-authenticating.
type AuthDeniedError struct {
	Message string
}

func (e *AuthDeniedError) Error() string { return "quarry: auth denied: " + e.Message }

// WrongTagError is the distinguished "status: 456" condition the invoker
// retries after invalidating the coordinator and rediscovering the tag.
type WrongTagError struct {
	Message string
}

func (e *WrongTagError) Error() string { return "quarry: wrong deployment tag: " + e.Message }

// DecodeError reports that a query's result-metadata header could not be
// parsed. QueryHandle.Columns returns it, and so does Fetch, which stops
// there. Per-cell decode failures inside a chunk never produce a
// DecodeError: the affected cell holds a sentinel value and decoding
// continues.
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string { return "quarry: decode: " + e.Message }

// PoolExhaustedError is returned by Pool.Acquire when no channel becomes
// available before the caller's acquire timeout.
type PoolExhaustedError = pool.PoolExhaustedError

// PoolClosedError is returned to any acquirer, waiting or not, after the
// pool has been closed.
type PoolClosedError = pool.PoolClosedError

// ProtocolError wraps a structured error the engine returned inside an
// otherwise successful response (e.g. a partially failed catalog refresh).
// It is not an RPC failure, so the invoker does not retry it.
type ProtocolError struct {
	Message string
	Details []string
}

func (e *ProtocolError) Error() string {
	if len(e.Details) == 0 {
		return "quarry: protocol: " + e.Message
	}
	return fmt.Sprintf("quarry: protocol: %s: %v", e.Message, e.Details)
}
