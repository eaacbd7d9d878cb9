package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yami-59/network-ops-demo/internal/config"
	"github.com/yami-59/network-ops-demo/internal/model"
	"github.com/yami-59/network-ops-demo/internal/service/assistant"
	"github.com/yami-59/network-ops-demo/internal/service/operations"
	"github.com/yami-59/network-ops-demo/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := testutil.TestLogger()
	clock := func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	ops := operations.New(testutil.NewSQLiteStore(t), config.DefaultCatalog(), logger, operations.Options{Now: clock})
	return New(ops, assistant.New(ops, nil, logger, assistant.Options{Now: clock}), logger, "test")
}

func call(t *testing.T, h toolHandler, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	res, err := h(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err, "tool errors must be results, not protocol errors")
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcplib.TextContent)
	require.True(t, ok)
	return tc.Text
}

func decodeResult[T any](t *testing.T, res *mcplib.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var v T
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &v))
	return v
}

func createArgs() map[string]any {
	return map[string]any{
		"feature":         "5G – Power Optimization",
		"parameter":       "TX_POWER",
		"value":           "240W",
		"zone":            "Dense",
		"sites":           "SITE_PARIS_001,SITE_PARIS_002",
		"priority":        "High",
		"created_by_name": "Alice Martin",
	}
}

func TestCreateGetAndTransitionTools(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	op := decodeResult[model.Operation](t, call(t, s.handleCreateOperation, "netops_create_operation", createArgs()))
	assert.Equal(t, "OP-2026-0001", op.OpID)
	assert.Equal(t, []string{"SITE_PARIS_001", "SITE_PARIS_002"}, op.Sites)

	moved := decodeResult[model.Operation](t, call(t, s.handleTransitionOperation, "netops_transition_operation", map[string]any{
		"op_id":        op.OpID,
		"to_status":    "PLANNED",
		"department":   "Pilotage",
		"comment":      "Fenêtre du 12",
		"actor_name":   "Jean Dupont",
		"planned_date": "2026-03-12",
	}))
	assert.Equal(t, model.StatusPlanned, moved.Status)

	detail := decodeResult[model.OperationDetail](t, call(t, s.handleGetOperation, "netops_get_operation", map[string]any{"op_id": op.OpID}))
	require.Len(t, detail.History, 2)
	assert.Equal(t, "Fenêtre du 12", detail.History[1].Comment)

	plan := decodeResult[listResult](t, call(t, s.handlePlanning, "netops_planning", nil))
	assert.Equal(t, 1, plan.Count)
}

func TestToolErrorsAreResults(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	args := createArgs()
	args["parameter"] = "BEAM_COUNT"
	args["sites"] = ""
	res := call(t, s.handleCreateOperation, "netops_create_operation", args)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), `"field":"parameter"`)
	assert.Contains(t, text(t, res), `"field":"sites"`)

	res = call(t, s.handleGetOperation, "netops_get_operation", map[string]any{"op_id": "OP-2026-0042"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "OP-2026-0042")

	res = call(t, s.handleGetOperation, "netops_get_operation", map[string]any{})
	assert.True(t, res.IsError)

	res = call(t, s.handleTransitionOperation, "netops_transition_operation", map[string]any{
		"op_id": "OP-2026-0042", "to_status": "FAILED", "department": "Operations", "comment": "x", "actor_name": "Ops",
	})
	assert.True(t, res.IsError)
}

func TestListTool(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	call(t, s.handleCreateOperation, "netops_create_operation", createArgs())
	args := createArgs()
	args["priority"] = "Low"
	call(t, s.handleCreateOperation, "netops_create_operation", args)

	all := decodeResult[listResult](t, call(t, s.handleListOperations, "netops_list_operations", nil))
	assert.Equal(t, 2, all.Count)

	low := decodeResult[listResult](t, call(t, s.handleListOperations, "netops_list_operations", map[string]any{"priority": "Low"}))
	require.Equal(t, 1, low.Count)
	assert.Equal(t, "OP-2026-0002", low.Operations[0].OpID)

	none := decodeResult[listResult](t, call(t, s.handleListOperations, "netops_list_operations", map[string]any{"status": "FAILED"}))
	assert.Equal(t, 0, none.Count)
	assert.NotNil(t, none.Operations)

	res := call(t, s.handleListOperations, "netops_list_operations", map[string]any{"status": "BROKEN"})
	assert.True(t, res.IsError)
}

func TestAskTool(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	ans := decodeResult[model.Answer](t, call(t, s.handleAsk, "netops_ask", map[string]any{"question": "opérations en échec ?"}))
	assert.Equal(t, "Information non disponible dans la base.", ans.Answer)
	assert.Empty(t, ans.References)

	op := decodeResult[model.Operation](t, call(t, s.handleCreateOperation, "netops_create_operation", createArgs()))
	ans = decodeResult[model.Answer](t, call(t, s.handleAsk, "netops_ask", map[string]any{"question": "statut de " + op.OpID}))
	assert.Equal(t, []string{op.OpID}, ans.References)
	assert.Contains(t, ans.Answer, "PENDING")
}

func TestResources(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	op := decodeResult[model.Operation](t, call(t, s.handleCreateOperation, "netops_create_operation", createArgs()))

	contents, err := s.handleCatalog(context.Background(), mcplib.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	var cat model.CatalogResponse
	require.NoError(t, json.Unmarshal([]byte(contents[0].(mcplib.TextResourceContents).Text), &cat))
	assert.Contains(t, cat.Features, "5G – Beam Configuration")
	assert.Equal(t, "permissive", cat.TransitionPolicy)
	assert.Len(t, cat.Transitions, len(model.Statuses))

	req := mcplib.ReadResourceRequest{}
	req.Params.URI = "netops://operations/" + op.OpID + "/history"
	contents, err = s.handleHistory(context.Background(), req)
	require.NoError(t, err)
	var hist struct {
		OpID    string               `json:"op_id"`
		History []model.HistoryEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal([]byte(contents[0].(mcplib.TextResourceContents).Text), &hist))
	assert.Equal(t, op.OpID, hist.OpID)
	assert.Len(t, hist.History, 1)

	req.Params.URI = "netops://operations/OP-2026-0404/history"
	_, err = s.handleHistory(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestHistoryOpID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		uri  string
		want string
		ok   bool
	}{
		{"netops://operations/OP-2026-0001/history", "OP-2026-0001", true},
		{"netops://operations//history", "", false},
		{"netops://operations/a/b/history", "", false},
		{"netops://catalog", "", false},
		{"netops://operations/OP-2026-0001", "", false},
	}
	for _, tt := range tests {
		got, ok := historyOpID(tt.uri)
		assert.Equal(t, tt.ok, ok, tt.uri)
		assert.Equal(t, tt.want, got, tt.uri)
	}
}

func TestToolsAreRegistered(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	tools := s.MCPServer().ListTools()
	for _, name := range []string{
		"netops_list_operations", "netops_get_operation", "netops_create_operation",
		"netops_transition_operation", "netops_ask", "netops_planning",
	} {
		assert.Contains(t, tools, name)
	}
}
