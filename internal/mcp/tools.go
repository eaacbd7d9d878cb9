package mcp

import (
	"context"
	"unicode/utf8"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/yami-59/network-ops-demo/internal/model"
	"github.com/yami-59/network-ops-demo/internal/service/operations"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("netops_list_operations",
			mcplib.WithDescription(`List operations matching every given filter, oldest first.

All filters are optional and combined with AND. "ALL" for status or priority
matches everything. q is a case-insensitive substring over op_id, feature,
parameter, zone and value.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("feature", mcplib.Description("Exact feature name")),
			mcplib.WithString("parameter", mcplib.Description("Exact parameter name")),
			mcplib.WithString("priority", mcplib.Description("High, Medium, Low or ALL"), mcplib.Enum("High", "Medium", "Low", "ALL")),
			mcplib.WithString("status", mcplib.Description("PENDING, PLANNED, EXECUTED, FAILED or ALL"), mcplib.Enum("PENDING", "PLANNED", "EXECUTED", "FAILED", "ALL")),
			mcplib.WithString("q", mcplib.Description("Free-text substring")),
		),
		s.tool(s.handleListOperations),
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("netops_get_operation",
			mcplib.WithDescription("Get one operation with its full status history, oldest entry first."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("op_id", mcplib.Description("Operation id, e.g. OP-2026-0001"), mcplib.Required()),
		),
		s.tool(s.handleGetOperation),
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("netops_create_operation",
			mcplib.WithDescription(`Create a PENDING operation. The parameter must belong to the feature
(see the netops://catalog resource). Every invalid field is reported at once.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("feature", mcplib.Description("Feature name from the catalog"), mcplib.Required()),
			mcplib.WithString("parameter", mcplib.Description("Parameter allowed for the feature"), mcplib.Required()),
			mcplib.WithString("value", mcplib.Description("Target value, free text"), mcplib.Required()),
			mcplib.WithString("zone", mcplib.Description("Zone from the catalog"), mcplib.Required()),
			mcplib.WithString("sites", mcplib.Description("Comma-separated site ids"), mcplib.Required()),
			mcplib.WithString("priority", mcplib.Description("High, Medium or Low"), mcplib.Required(), mcplib.Enum("High", "Medium", "Low")),
			mcplib.WithString("desired_date", mcplib.Description("YYYY-MM-DD")),
			mcplib.WithString("initial_comment", mcplib.Description("Why the change is requested")),
			mcplib.WithString("created_by_name", mcplib.Description("Requester name"), mcplib.Required()),
			mcplib.WithString("created_by_email", mcplib.Description("Requester email")),
		),
		s.tool(s.handleCreateOperation),
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("netops_transition_operation",
			mcplib.WithDescription(`Move an operation to a new status and append the ledger entry.
A non-blank comment is required. planned_date is only used with PLANNED.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("op_id", mcplib.Description("Operation id"), mcplib.Required()),
			mcplib.WithString("to_status", mcplib.Description("Target status"), mcplib.Required(), mcplib.Enum("PENDING", "PLANNED", "EXECUTED", "FAILED")),
			mcplib.WithString("department", mcplib.Description("Engineering, Pilotage or Operations"), mcplib.Required()),
			mcplib.WithString("comment", mcplib.Description("Reason for the change"), mcplib.Required()),
			mcplib.WithString("actor_name", mcplib.Description("Who is making the change"), mcplib.Required()),
			mcplib.WithString("actor_email", mcplib.Description("Actor email")),
			mcplib.WithString("planned_date", mcplib.Description("YYYY-MM-DD, with PLANNED")),
		),
		s.tool(s.handleTransitionOperation),
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("netops_ask",
			mcplib.WithDescription(`Ask a question about operations in French or English, e.g. "Y a-t-il des
opérations en échec ?" or "status of OP-2026-0003". The answer only uses
stored records and lists the op_ids it cites in references.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("question", mcplib.Description("Free-text question"), mcplib.Required()),
		),
		s.tool(s.handleAsk),
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("netops_planning",
			mcplib.WithDescription("List PLANNED operations by planned date, undated ones last."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.tool(s.handlePlanning),
	)
}

type listResult struct {
	Operations []model.Operation `json:"operations"`
	Count      int               `json:"count"`
}

func newListResult(ops []model.Operation) listResult {
	if ops == nil {
		ops = []model.Operation{}
	}
	return listResult{Operations: ops, Count: len(ops)}
}

func (s *Server) handleListOperations(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	ops, err := s.ops.List(ctx, operations.ListInput{
		Feature:   request.GetString("feature", ""),
		Parameter: request.GetString("parameter", ""),
		Priority:  request.GetString("priority", ""),
		Status:    request.GetString("status", ""),
		Query:     request.GetString("q", ""),
	})
	if err != nil {
		return s.serviceErrorResult(ctx, "netops_list_operations", err), nil
	}
	return jsonResult(newListResult(ops))
}

func (s *Server) handleGetOperation(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	opID := request.GetString("op_id", "")
	if opID == "" {
		return errorResult("op_id is required"), nil
	}
	detail, err := s.ops.Get(ctx, opID)
	if err != nil {
		return s.serviceErrorResult(ctx, "netops_get_operation", err), nil
	}
	return jsonResult(detail)
}

func (s *Server) handleCreateOperation(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	op, err := s.ops.Create(ctx, operations.CreateInput{
		Feature:        request.GetString("feature", ""),
		Parameter:      request.GetString("parameter", ""),
		Value:          request.GetString("value", ""),
		Zone:           request.GetString("zone", ""),
		Sites:          model.SplitSites(request.GetString("sites", "")),
		DesiredDate:    request.GetString("desired_date", ""),
		Priority:       request.GetString("priority", ""),
		InitialComment: request.GetString("initial_comment", ""),
		CreatedByName:  request.GetString("created_by_name", ""),
		CreatedByEmail: request.GetString("created_by_email", ""),
	})
	if err != nil {
		return s.serviceErrorResult(ctx, "netops_create_operation", err), nil
	}
	return jsonResult(op)
}

func (s *Server) handleTransitionOperation(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	opID := request.GetString("op_id", "")
	if opID == "" {
		return errorResult("op_id is required"), nil
	}
	op, err := s.ops.Transition(ctx, opID, operations.TransitionInput{
		Department:  request.GetString("department", ""),
		ToStatus:    request.GetString("to_status", ""),
		Comment:     request.GetString("comment", ""),
		ActorName:   request.GetString("actor_name", ""),
		ActorEmail:  request.GetString("actor_email", ""),
		PlannedDate: request.GetString("planned_date", ""),
	})
	if err != nil {
		return s.serviceErrorResult(ctx, "netops_transition_operation", err), nil
	}
	return jsonResult(op)
}

func (s *Server) handleAsk(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	question := request.GetString("question", "")
	if utf8.RuneCountInString(question) > model.MaxQuestionLen {
		return errorResult("question is too long"), nil
	}
	return jsonResult(s.assistant.Ask(ctx, question))
}

func (s *Server) handlePlanning(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	ops, err := s.ops.Planning(ctx)
	if err != nil {
		return s.serviceErrorResult(ctx, "netops_planning", err), nil
	}
	return jsonResult(newListResult(ops))
}
