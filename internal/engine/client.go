package engine

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

const serviceName = "queryengine.QueryEngineService"

func fullMethod(name string) string {
	return fmt.Sprintf("/%s/%s", serviceName, name)
}

// Client is the hand-written stand-in for a generated QueryEngineService
// client: one method per RPC named in spec §6, transported over a caller-
// supplied *grpc.ClientConn.
type Client struct {
	cc *grpc.ClientConn
}

// NewClient wraps an already-dialed channel. Dialing itself, including
// TLS and keepalive configuration, is the session manager's job.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	resp := new(Resp)
	opts := []grpc.CallOption{grpc.CallContentSubtype(codecName)}
	if err := c.cc.Invoke(ctx, fullMethod(method), req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthenticateResponse, error) {
	return invoke[AuthenticateResponse](ctx, c, "authenticate", req)
}

func (c *Client) IdentifyPlanner(ctx context.Context, req *IdentifyPlannerRequest) (*IdentifyPlannerResponse, error) {
	return invoke[IdentifyPlannerResponse](ctx, c, "identifyPlanner", req)
}

func (c *Client) PrepareStatement(ctx context.Context, req *PrepareStatementRequest) (*PrepareStatementResponse, error) {
	return invoke[PrepareStatementResponse](ctx, c, "prepareStatement", req)
}

func (c *Client) PrepareStatementV2(ctx context.Context, req *PrepareStatementV2Request) (*PrepareStatementResponse, error) {
	return invoke[PrepareStatementResponse](ctx, c, "prepareStatementV2", req)
}

func (c *Client) ExecuteStatement(ctx context.Context, req *ExecuteStatementRequest) (*ExecuteStatementResponse, error) {
	return invoke[ExecuteStatementResponse](ctx, c, "executeStatement", req)
}

func (c *Client) ExecuteStatementV2(ctx context.Context, req *ExecuteStatementV2Request) (*ExecuteStatementResponse, error) {
	return invoke[ExecuteStatementResponse](ctx, c, "executeStatementV2", req)
}

func (c *Client) GetResultMetadata(ctx context.Context, req *GetResultMetadataRequest) (*GetResultMetadataResponse, error) {
	return invoke[GetResultMetadataResponse](ctx, c, "getResultMetadata", req)
}

func (c *Client) GetNextResultBatch(ctx context.Context, req *GetNextResultBatchRequest) (*GetNextResultBatchResponse, error) {
	return invoke[GetNextResultBatchResponse](ctx, c, "getNextResultBatch", req)
}

func (c *Client) GetNextRemoteCachedChunk(ctx context.Context, req *GetNextRemoteCachedChunkRequest) (*GetNextRemoteCachedChunkResponse, error) {
	return invoke[GetNextRemoteCachedChunkResponse](ctx, c, "getNextRemoteCachedChunk", req)
}

func (c *Client) Explain(ctx context.Context, req *ExplainRequest) (*ExplainResponse, error) {
	return invoke[ExplainResponse](ctx, c, "explain", req)
}

func (c *Client) ExplainAnalyze(ctx context.Context, req *ExplainAnalyzeRequest) (*ExplainAnalyzeResponse, error) {
	return invoke[ExplainAnalyzeResponse](ctx, c, "explainAnalyze", req)
}

func (c *Client) Clear(ctx context.Context, req *ClearRequest) (*ClearResponse, error) {
	return invoke[ClearResponse](ctx, c, "clear", req)
}

func (c *Client) CancelQuery(ctx context.Context, req *CancelQueryRequest) (*CancelQueryResponse, error) {
	return invoke[CancelQueryResponse](ctx, c, "cancelQuery", req)
}

func (c *Client) ClearOrCancelQuery(ctx context.Context, req *ClearOrCancelQueryRequest) (*ClearOrCancelQueryResponse, error) {
	return invoke[ClearOrCancelQueryResponse](ctx, c, "clearOrCancelQuery", req)
}

func (c *Client) Status(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c, "status", req)
}

func (c *Client) DryRun(ctx context.Context, req *DryRunRequest) (*DryRunResponse, error) {
	return invoke[DryRunResponse](ctx, c, "dryRun", req)
}

func (c *Client) DryRunV2(ctx context.Context, req *DryRunV2Request) (*DryRunResponse, error) {
	return invoke[DryRunResponse](ctx, c, "dryRunV2", req)
}

func (c *Client) GetSchemaNames(ctx context.Context, req *GetSchemaNamesRequest) (*GetSchemaNamesResponse, error) {
	return invoke[GetSchemaNamesResponse](ctx, c, "getSchemaNames", req)
}

func (c *Client) GetSchemaNamesV2(ctx context.Context, req *GetSchemaNamesV2Request) (*GetSchemaNamesResponse, error) {
	return invoke[GetSchemaNamesResponse](ctx, c, "getSchemaNamesV2", req)
}

func (c *Client) GetTables(ctx context.Context, req *GetTablesRequest) (*GetTablesResponse, error) {
	return invoke[GetTablesResponse](ctx, c, "getTables", req)
}

func (c *Client) GetTablesV2(ctx context.Context, req *GetTablesV2Request) (*GetTablesResponse, error) {
	return invoke[GetTablesResponse](ctx, c, "getTablesV2", req)
}

func (c *Client) GetColumns(ctx context.Context, req *GetColumnsRequest) (*GetColumnsResponse, error) {
	return invoke[GetColumnsResponse](ctx, c, "getColumns", req)
}

func (c *Client) GetColumnsV2(ctx context.Context, req *GetColumnsV2Request) (*GetColumnsResponse, error) {
	return invoke[GetColumnsResponse](ctx, c, "getColumnsV2", req)
}

func (c *Client) AddCatalogs(ctx context.Context, req *AddCatalogsRequest) (*AddCatalogsResponse, error) {
	return invoke[AddCatalogsResponse](ctx, c, "addCatalogs", req)
}

func (c *Client) GetAddCatalogs(ctx context.Context, req *GetAddCatalogsRequest) (*GetAddCatalogsResponse, error) {
	return invoke[GetAddCatalogsResponse](ctx, c, "getAddCatalogsResponse", req)
}

func (c *Client) GetCataloges(ctx context.Context, req *GetCatalogesRequest) (*GetCatalogesResponse, error) {
	return invoke[GetCatalogesResponse](ctx, c, "getCataloges", req)
}

func (c *Client) RefreshCatalogs(ctx context.Context, req *RefreshCatalogsRequest) (*RefreshCatalogsResponse, error) {
	return invoke[RefreshCatalogsResponse](ctx, c, "refreshCatalogs", req)
}

func (c *Client) SetProps(ctx context.Context, req *SetPropsRequest) (*SetPropsResponse, error) {
	return invoke[SetPropsResponse](ctx, c, "setProps", req)
}

func (c *Client) UpdateUsers(ctx context.Context, req *UpdateUsersRequest) (*UpdateUsersResponse, error) {
	return invoke[UpdateUsersResponse](ctx, c, "updateUsers", req)
}

func (c *Client) SyncSchemas(ctx context.Context, req *SyncSchemasRequest) (*SyncSchemasResponse, error) {
	return invoke[SyncSchemasResponse](ctx, c, "syncSchemas", req)
}

func (c *Client) GetDynamicParams(ctx context.Context, req *GetDynamicParamsRequest) (*GetDynamicParamsResponse, error) {
	return invoke[GetDynamicParamsResponse](ctx, c, "getDynamicParams", req)
}
