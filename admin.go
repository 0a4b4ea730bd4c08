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

	"github.com/scopedb/quarry-go/internal/engine"
	"github.com/scopedb/quarry-go/internal/rpc"
)

// ColumnInfo describes one table column as reported by the catalog.
type ColumnInfo struct {
	Name      string
	Type      string
	Precision int32
	Scale     int32
}

// FailedSchema names a schema that AddCatalogs or a background refresh
// could not bring in, and why.
type FailedSchema struct {
	Schema string
	Reason string
}

// PlannerInfo identifies the planner endpoint this session was routed to
// and the queue it was assigned.
type PlannerInfo struct {
	PlannerIP string
	Queue     string
}

// IdentifyPlanner reports which planner endpoint the engine assigned this
// session to.
func (c *Connection) IdentifyPlanner(ctx context.Context) (PlannerInfo, error) {
	var info PlannerInfo
	err := c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.IdentifyPlannerRequest{SessionID: sessionID, ClusterUUID: c.cfg.ClusterUUID}
		resp, _, err := rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.IdentifyPlannerResponse, error) {
			return inv.Session.Client().IdentifyPlanner(cctx, req)
		})
		if err != nil {
			return err
		}
		info = PlannerInfo{PlannerIP: resp.PlannerIP, Queue: resp.Queue}
		return nil
	})
	return info, err
}

// Status reports the engine's liveness for this session.
func (c *Connection) Status(ctx context.Context) (string, error) {
	var status string
	err := c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		resp, _, err := rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.StatusResponse, error) {
			return inv.Session.Client().Status(cctx, &engine.StatusRequest{SessionID: sessionID})
		})
		if err != nil {
			return err
		}
		status = resp.Status
		return nil
	})
	return status, err
}

// DryRun validates query against the engine without preparing or executing
// it, returning a diagnostic message when the query is invalid.
func (c *Connection) DryRun(ctx context.Context, query, catalog, schema string) (valid bool, message string, err error) {
	err = c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.DryRunV2Request{SessionID: sessionID, Query: query, Catalog: catalog, Schema: schema}
		resp, _, err := rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.DryRunResponse, error) {
			return inv.Session.Client().DryRunV2(cctx, req)
		})
		if err != nil {
			return err
		}
		valid, message = resp.Valid, resp.Message
		return nil
	})
	return valid, message, err
}

// SchemaNames lists the schemas visible in catalog. An empty catalog uses
// the engine's default catalog.
func (c *Connection) SchemaNames(ctx context.Context, catalog string) ([]string, error) {
	var schemas []string
	err := c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.GetSchemaNamesV2Request{GetSchemaNamesRequest: engine.GetSchemaNamesRequest{SessionID: sessionID, Catalog: catalog}}
		resp, _, err := rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.GetSchemaNamesResponse, error) {
			return inv.Session.Client().GetSchemaNamesV2(cctx, req)
		})
		if err != nil {
			return err
		}
		schemas = resp.Schemas
		return nil
	})
	return schemas, err
}

// Tables lists the tables visible in catalog.schema.
func (c *Connection) Tables(ctx context.Context, catalog, schema string) ([]string, error) {
	var tables []string
	err := c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.GetTablesV2Request{GetTablesRequest: engine.GetTablesRequest{SessionID: sessionID, Catalog: catalog, Schema: schema}}
		resp, _, err := rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.GetTablesResponse, error) {
			return inv.Session.Client().GetTablesV2(cctx, req)
		})
		if err != nil {
			return err
		}
		tables = resp.Tables
		return nil
	})
	return tables, err
}

// Columns lists the columns of catalog.schema.table.
func (c *Connection) Columns(ctx context.Context, catalog, schema, table string) ([]ColumnInfo, error) {
	var cols []ColumnInfo
	err := c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.GetColumnsV2Request{GetColumnsRequest: engine.GetColumnsRequest{
			SessionID: sessionID, Catalog: catalog, Schema: schema, Table: table,
		}}
		resp, _, err := rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.GetColumnsResponse, error) {
			return inv.Session.Client().GetColumnsV2(cctx, req)
		})
		if err != nil {
			return err
		}
		cols = make([]ColumnInfo, len(resp.Columns))
		for i, f := range resp.Columns {
			cols[i] = ColumnInfo{Name: f.Name, Type: f.Type, Precision: f.Precision, Scale: f.Scale}
		}
		return nil
	})
	return cols, err
}

// AddCatalogs registers new catalogs with the engine.
func (c *Connection) AddCatalogs(ctx context.Context, catalogs []string) error {
	return c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.AddCatalogsRequest{SessionID: sessionID, Catalogs: catalogs}
		_, _, err = rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.AddCatalogsResponse, error) {
			return inv.Session.Client().AddCatalogs(cctx, req)
		})
		return err
	})
}

// PendingCatalogFailures reports schemas an AddCatalogs call could not
// bring in.
func (c *Connection) PendingCatalogFailures(ctx context.Context) ([]FailedSchema, error) {
	var failed []FailedSchema
	err := c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		resp, _, err := rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.GetAddCatalogsResponse, error) {
			return inv.Session.Client().GetAddCatalogs(cctx, &engine.GetAddCatalogsRequest{SessionID: sessionID})
		})
		if err != nil {
			return err
		}
		failed = make([]FailedSchema, len(resp.Failed))
		for i, f := range resp.Failed {
			failed[i] = FailedSchema{Schema: f.Schema, Reason: f.Reason}
		}
		return nil
	})
	return failed, err
}

// Catalogs lists the catalogs registered with the engine.
func (c *Connection) Catalogs(ctx context.Context) ([]string, error) {
	var names []string
	err := c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		resp, _, err := rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.GetCatalogesResponse, error) {
			return inv.Session.Client().GetCataloges(cctx, &engine.GetCatalogesRequest{SessionID: sessionID})
		})
		if err != nil {
			return err
		}
		names = make([]string, len(resp.Catalogs))
		for i, cat := range resp.Catalogs {
			names[i] = cat.Name
		}
		return nil
	})
	return names, err
}

// RefreshCatalogs asks the engine to re-scan its registered catalogs for
// schema changes.
func (c *Connection) RefreshCatalogs(ctx context.Context) error {
	return c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		_, _, err = rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.RefreshCatalogsResponse, error) {
			return inv.Session.Client().RefreshCatalogs(cctx, &engine.RefreshCatalogsRequest{SessionID: sessionID})
		})
		return err
	})
}

// SetProps sets one or more session-scoped engine properties.
func (c *Connection) SetProps(ctx context.Context, props map[string]string) error {
	return c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.SetPropsRequest{SessionID: sessionID, Props: props}
		_, _, err = rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.SetPropsResponse, error) {
			return inv.Session.Client().SetProps(cctx, req)
		})
		return err
	})
}

// UpdateUsers pushes a fresh user list to the engine.
func (c *Connection) UpdateUsers(ctx context.Context, users []string) error {
	return c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.UpdateUsersRequest{SessionID: sessionID, Users: users}
		_, _, err = rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.UpdateUsersResponse, error) {
			return inv.Session.Client().UpdateUsers(cctx, req)
		})
		return err
	})
}

// SyncSchemas forces an immediate schema sync for catalog (or every
// catalog, when catalog is empty).
func (c *Connection) SyncSchemas(ctx context.Context, catalog string) error {
	return c.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.SyncSchemasRequest{SessionID: sessionID, Catalog: catalog}
		_, _, err = rpc.Invoke(inv, ctx, "", "", func(cctx context.Context) (*engine.SyncSchemasResponse, error) {
			return inv.Session.Client().SyncSchemas(cctx, req)
		})
		return err
	})
}

// DynamicParam is one named parameter value the engine resolved while
// planning a query (e.g. a session variable substituted into the plan).
type DynamicParam struct {
	Name  string
	Value string
}

// DynamicParams returns the parameter values the engine resolved for
// queryID.
func (h *QueryHandle) DynamicParams(ctx context.Context) ([]DynamicParam, error) {
	var params []DynamicParam
	err := h.conn.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.GetDynamicParamsRequest{SessionID: sessionID, QueryID: h.QueryID}
		resp, _, err := rpc.Invoke(inv, ctx, h.QueryID, h.EngineIP, func(cctx context.Context) (*engine.GetDynamicParamsResponse, error) {
			return inv.Session.Client().GetDynamicParams(cctx, req)
		})
		if err != nil {
			return err
		}
		params = make([]DynamicParam, len(resp.Params))
		for i, p := range resp.Params {
			params[i] = DynamicParam{Name: p.Name, Value: p.Value}
		}
		return nil
	})
	return params, err
}

// ExplainAnalyze returns the query plan annotated with runtime statistics.
// Unlike Explain, it requires the query to have executed.
func (h *QueryHandle) ExplainAnalyze(ctx context.Context) (string, error) {
	var plan string
	err := h.conn.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.ExplainAnalyzeRequest{SessionID: sessionID, EngineIP: h.EngineIP, QueryID: h.QueryID}
		resp, _, err := rpc.Invoke(inv, ctx, h.QueryID, h.EngineIP, func(cctx context.Context) (*engine.ExplainAnalyzeResponse, error) {
			return inv.Session.Client().ExplainAnalyze(cctx, req)
		})
		if err != nil {
			return err
		}
		plan = resp.Plan
		return nil
	})
	return plan, err
}

// ClearOrCancel releases queryID's resources whether it is still running
// (cancel) or already finished (clear); the engine decides which applies.
// Use this instead of Cancel/Clear when the caller doesn't track the
// query's state.
func (h *QueryHandle) ClearOrCancel(ctx context.Context) error {
	return h.conn.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, err := inv.EnsureSessionID(ctx)
		if err != nil {
			return err
		}
		req := &engine.ClearOrCancelQueryRequest{SessionID: sessionID, EngineIP: h.EngineIP, QueryID: h.QueryID}
		_, _, err = rpc.Invoke(inv, ctx, h.QueryID, h.EngineIP, func(cctx context.Context) (*engine.ClearOrCancelQueryResponse, error) {
			return inv.Session.Client().ClearOrCancelQuery(cctx, req)
		})
		h.conn.coord.ForgetQuery(h.QueryID)
		h.conn.coord.ApplyPendingAtSafePoint()
		return err
	})
}

// RemoteCachedChunk fetches one page of a remotely cached result by cursor,
// for engines that offload large result sets to a side cache instead of
// streaming them through GetNextResultBatch.
func (h *QueryHandle) RemoteCachedChunk(ctx context.Context, cursor string) (rows []Row, nextCursor string, err error) {
	err = h.conn.withInvoker(ctx, func(inv *rpc.Invoker) error {
		sessionID, sidErr := inv.EnsureSessionID(ctx)
		if sidErr != nil {
			return sidErr
		}
		req := &engine.GetNextRemoteCachedChunkRequest{SessionID: sessionID, EngineIP: h.EngineIP, QueryID: h.QueryID, Cursor: cursor}
		resp, _, invErr := rpc.Invoke(inv, ctx, h.QueryID, h.EngineIP, func(cctx context.Context) (*engine.GetNextRemoteCachedChunkResponse, error) {
			return inv.Session.Client().GetNextRemoteCachedChunk(cctx, req)
		})
		if invErr != nil {
			return invErr
		}
		rows, _ = decodeChunk(resp.Chunk)
		nextCursor = resp.NextCursor
		return nil
	})
	return rows, nextCursor, err
}
