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
	"context"
	"time"

	"github.com/scopedb/quarry-go/internal/decoder"
	"github.com/scopedb/quarry-go/internal/engine"
	"github.com/scopedb/quarry-go/internal/rpc"
)

// boundedByPrepareTimeout wraps ctx with the configured prepare timeout, if
// any. The returned cancel must always be called; it is a no-op when no
// timeout applies.
func boundedByPrepareTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Statement is a query to be prepared and executed on the engine.
type Statement struct {
	conn *Connection

	query string

	// Catalog and Schema scope the statement when the engine hosts more
	// than one catalog; both are optional.
	Catalog string
	Schema  string
	// Parameters binds positional parameter values for a parameterized
	// query.
	Parameters []string
}

// Submit prepares and executes the statement, returning a handle without
// waiting for results. Call Fetch on the handle to materialize rows.
func (s *Statement) Submit(ctx context.Context) (*QueryHandle, error) {
	var prep *engine.PrepareStatementResponse
	err := s.conn.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.PrepareStatementV2Request{
			SessionID: sessionID,
			Query:     s.query,
			Catalog:   s.Catalog,
			Schema:    s.Schema,
		}
		resp, tag, err := rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.PrepareStatementResponse, error) {
			cctx, cancel := boundedByPrepareTimeout(cctx, s.conn.cfg.Channel.PrepareTimeout)
			defer cancel()
			return inv.Session.Client().PrepareStatementV2(cctx, req)
		})
		if err != nil {
			return err
		}
		s.conn.coord.RegisterQuery(resp.QueryID, tag)
		prep = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	handle := &QueryHandle{
		conn:     s.conn,
		QueryID:  prep.QueryID,
		EngineIP: prep.EngineIP,
	}

	if err := s.conn.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.ExecuteStatementV2Request{
			SessionID:  sessionID,
			EngineIP:   prep.EngineIP,
			QueryID:    prep.QueryID,
			Parameters: s.Parameters,
		}
		_, _, err = rpc.Invoke(inv, ctx, prep.QueryID, prep.EngineIP, func(cctx context.Context) (*engine.ExecuteStatementResponse, error) {
			return inv.Session.Client().ExecuteStatementV2(cctx, req)
		})
		return err
	}); err != nil {
		return nil, err
	}

	return handle, nil
}

// Execute submits the statement and fetches the full result set.
func (s *Statement) Execute(ctx context.Context) (*ResultSet, error) {
	handle, err := s.Submit(ctx)
	if err != nil {
		return nil, err
	}
	return handle.Fetch(ctx)
}

// QueryHandle is a handle to a query that has been prepared and executed on
// the engine. Its QueryID carries a fixed deployment tag for its whole
// lifetime, per spec §5's ordering guarantee.
type QueryHandle struct {
	conn *Connection

	QueryID  string
	EngineIP string
}

// Columns fetches the result schema without fetching any rows.
func (h *QueryHandle) Columns(ctx context.Context) ([]FieldInfo, error) {
	var fields []FieldInfo
	err := h.conn.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.GetResultMetadataRequest{SessionID: sessionID, EngineIP: h.EngineIP, QueryID: h.QueryID}
		resp, _, err := rpc.Invoke(inv, ctx, h.QueryID, h.EngineIP, func(cctx context.Context) (*engine.GetResultMetadataResponse, error) {
			return inv.Session.Client().GetResultMetadata(cctx, req)
		})
		if err != nil {
			return err
		}
		_, fs, decErr := decoder.DecodeMetadata(resp.Buffer)
		if decErr != nil {
			return &DecodeError{Message: decErr.Error()}
		}
		fields = fs
		return nil
	})
	return fields, err
}

// Fetch pulls every result chunk and decodes it, accumulating the full
// result set. It stops when a batch response carries no chunk.
func (h *QueryHandle) Fetch(ctx context.Context) (*ResultSet, error) {
	fields, err := h.Columns(ctx)
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Columns: fields}
	for {
		var chunk *engine.ChunkPayload
		err := h.conn.withInvoker(ctx, func(inv *rpc.Invoker) error {
			sessionID, err := inv.EnsureSessionID(ctx)
			if err != nil {
				return err
			}
			req := &engine.GetNextResultBatchRequest{SessionID: sessionID, EngineIP: h.EngineIP, QueryID: h.QueryID}
			resp, _, err := rpc.Invoke(inv, ctx, h.QueryID, h.EngineIP, func(cctx context.Context) (*engine.GetNextResultBatchResponse, error) {
				return inv.Session.Client().GetNextResultBatch(cctx, req)
			})
			if err != nil {
				return err
			}
			chunk = resp.Chunk
			return nil
		})
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			break
		}
		rows, wire := decodeChunk(chunk)
		rs.Rows = append(rs.Rows, rows...)
		rs.chunks = append(rs.chunks, wire)
	}
	return rs, nil
}

// Cancel cancels the query if still running. Best-effort and idempotent.
func (h *QueryHandle) Cancel(ctx context.Context) error {
	return h.conn.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.CancelQueryRequest{SessionID: sessionID, EngineIP: h.EngineIP, QueryID: h.QueryID}
		_, _, err = rpc.Invoke(inv, ctx, h.QueryID, h.EngineIP, func(cctx context.Context) (*engine.CancelQueryResponse, error) {
			return inv.Session.Client().CancelQuery(cctx, req)
		})
		h.conn.coord.ForgetQuery(h.QueryID)
		h.conn.coord.ApplyPendingAtSafePoint()
		return err
	})
}

// Clear releases server-side resources for a finished query. Must be
// called (or Cancel) to bound the coordinator's per-query tag map and to
// let any pending strategy hint become active.
func (h *QueryHandle) Clear(ctx context.Context) error {
	return h.conn.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.ClearRequest{SessionID: sessionID, EngineIP: h.EngineIP, QueryID: h.QueryID}
		_, _, err = rpc.Invoke(inv, ctx, h.QueryID, h.EngineIP, func(cctx context.Context) (*engine.ClearResponse, error) {
			return inv.Session.Client().Clear(cctx, req)
		})
		h.conn.coord.ForgetQuery(h.QueryID)
		h.conn.coord.ApplyPendingAtSafePoint()
		return err
	})
}

// Explain returns the query plan without executing it.
func (h *QueryHandle) Explain(ctx context.Context) (string, error) {
	var plan string
	err := h.conn.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.ExplainRequest{SessionID: sessionID, EngineIP: h.EngineIP, QueryID: h.QueryID}
		resp, _, err := rpc.Invoke(inv, ctx, h.QueryID, h.EngineIP, func(cctx context.Context) (*engine.ExplainResponse, error) {
			return inv.Session.Client().Explain(cctx, req)
		})
		if err != nil {
			return err
		}
		plan = resp.Plan
		return nil
	})
	return plan, err
}
