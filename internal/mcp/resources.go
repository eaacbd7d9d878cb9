package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/yami-59/network-ops-demo/internal/ctxutil"
	"github.com/yami-59/network-ops-demo/internal/model"
	"github.com/yami-59/network-ops-demo/internal/service/operations"
)

const (
	catalogURI    = "netops://catalog"
	historyPrefix = "netops://operations/"
	historySuffix = "/history"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			catalogURI,
			"Feature Catalog",
			mcplib.WithResourceDescription("Features with their allowed parameters, zones, statuses, priorities and departments"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCatalog,
	)

	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			historyPrefix+"{op_id}"+historySuffix,
			"Operation History",
			mcplib.WithTemplateDescription("Append-only status ledger of one operation"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleHistory,
	)
}

func (s *Server) handleCatalog(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	cat := s.ops.Catalog()
	policy := s.ops.Policy()
	return jsonResource(catalogURI, model.CatalogResponse{
		Features:         cat.FeatureMap(),
		Zones:            cat.Zones,
		Statuses:         model.Statuses,
		Priorities:       model.Priorities,
		Departments:      model.Departments,
		TransitionPolicy: policy.Name(),
		Transitions:      operations.Rules(policy),
	})
}

func (s *Server) handleHistory(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	ctx = ctxutil.WithTransport(ctx, "mcp")
	uri := request.Params.URI
	opID, ok := historyOpID(uri)
	if !ok {
		return nil, fmt.Errorf("mcp: invalid history URI: %s", uri)
	}
	history, err := s.ops.History(ctx, opID)
	if err != nil {
		return nil, fmt.Errorf("mcp: history %s: %w", opID, err)
	}
	return jsonResource(uri, map[string]any{
		"op_id":   opID,
		"history": history,
	})
}

// historyOpID extracts the op_id from netops://operations/{op_id}/history.
func historyOpID(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, historyPrefix)
	if !ok {
		return "", false
	}
	opID, ok := strings.CutSuffix(rest, historySuffix)
	if !ok || opID == "" || strings.Contains(opID, "/") {
		return "", false
	}
	return opID, true
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
