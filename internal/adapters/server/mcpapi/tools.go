package mcpapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/tavla/internal/adapters/server/common"
)

// defaultEventLimit bounds `tavla.list_events` when no limit is supplied.
const defaultEventLimit = 25

// actorOption describes the optional acting member shared by every tool.
func actorOption() mcp.ToolOption {
	return mcp.WithString("actor_id", mcp.Description("Team member the call acts as; omit for the local user"))
}

// registerBoardTools registers board view, vocabulary, and event-log tools.
func registerBoardTools(srv *mcpserver.MCPServer, service common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"tavla.board_view",
			mcp.WithDescription("Return the board grouped into status columns, optionally filtered by search text and status."),
			mcp.WithString("query", mcp.Description("Case-insensitive substring matched against title and description")),
			mcp.WithString("status", mcp.Description(`"All", a column label, or a canonical status key`)),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ctx, failed := actorContext(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			board, err := service.BoardView(ctx, common.BoardRequest{
				Query:  req.GetString("query", ""),
				Status: req.GetString("status", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("board_view", board)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.status_vocabulary",
			mcp.WithDescription("List the column labels this board uses for each canonical status."),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return jsonResult("status_vocabulary", service.StatusVocabulary())
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.list_events",
			mcp.WithDescription("List recent activity-ledger events, newest first."),
			mcp.WithString("task_id", mcp.Description("Only events for this task")),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ctx, failed := actorContext(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			limit := req.GetInt("limit", defaultEventLimit)
			if limit <= 0 {
				return mcp.NewToolResultError("invalid_request: limit must be positive"), nil
			}
			events, err := service.ListEvents(ctx, req.GetString("task_id", ""), limit)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_events", map[string]any{
				"events": events,
			})
		},
	)
}

// registerTaskTools registers task read and mutation tools.
func registerTaskTools(srv *mcpserver.MCPServer, service common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"tavla.list_tasks",
			mcp.WithDescription("List tasks in board order, optionally filtered by search text and status."),
			mcp.WithString("query", mcp.Description("Case-insensitive substring matched against title and description")),
			mcp.WithString("status", mcp.Description(`"All", a column label, or a canonical status key`)),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ctx, failed := actorContext(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			tasks, err := service.ListTasks(ctx, common.BoardRequest{
				Query:  req.GetString("query", ""),
				Status: req.GetString("status", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_tasks", map[string]any{
				"tasks": tasks,
			})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.get_task",
			mcp.WithDescription("Return one task by id."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			ctx, failed := actorContext(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			task, err := service.GetTask(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.create_task",
			mcp.WithDescription("Create one task."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithString("description", mcp.Description("Task description")),
			mcp.WithString("priority", mcp.Description("low|medium|high"), mcp.Enum("low", "medium", "high")),
			mcp.WithString("project_tag", mcp.Description("Project tag")),
			mcp.WithString("column", mcp.Description("Initial column label or status key; defaults to not started")),
			mcp.WithString("due_at", mcp.Description("RFC3339 due timestamp")),
			mcp.WithString("assignee_id", mcp.Description("Assignee member id")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Title       string `json:"title"`
				Description string `json:"description"`
				Priority    string `json:"priority"`
				ProjectTag  string `json:"project_tag"`
				Column      string `json:"column"`
				DueAt       string `json:"due_at"`
				AssigneeID  string `json:"assignee_id"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.Title) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "title" not found`), nil
			}
			dueAt, err := parseDueAt(args.DueAt)
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			ctx, failed := actorContext(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			task, err := service.CreateTask(ctx, common.CreateTaskRequest{
				Title:       args.Title,
				Description: args.Description,
				Priority:    args.Priority,
				ProjectTag:  args.ProjectTag,
				Column:      args.Column,
				DueAt:       dueAt,
				AssigneeID:  args.AssigneeID,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.update_task",
			mcp.WithDescription("Update task fields; omitted fields are left unchanged."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("priority", mcp.Description("low|medium|high"), mcp.Enum("low", "medium", "high")),
			mcp.WithString("project_tag", mcp.Description("New project tag")),
			mcp.WithString("due_at", mcp.Description("RFC3339 due timestamp")),
			mcp.WithBoolean("clear_due_at", mcp.Description("Remove the due date")),
			mcp.WithString("assignee_id", mcp.Description("New assignee member id; empty clears the assignee")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				TaskID      string  `json:"task_id"`
				Title       *string `json:"title"`
				Description *string `json:"description"`
				Priority    *string `json:"priority"`
				ProjectTag  *string `json:"project_tag"`
				DueAt       *string `json:"due_at"`
				ClearDueAt  bool    `json:"clear_due_at"`
				AssigneeID  *string `json:"assignee_id"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.TaskID) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "task_id" not found`), nil
			}
			update := common.UpdateTaskRequest{
				Title:       args.Title,
				Description: args.Description,
				Priority:    args.Priority,
				ProjectTag:  args.ProjectTag,
				ClearDueAt:  args.ClearDueAt,
				AssigneeID:  args.AssigneeID,
			}
			if args.DueAt != nil {
				dueAt, err := parseDueAt(*args.DueAt)
				if err != nil {
					return invalidRequestToolResult(err), nil
				}
				update.DueAt = dueAt
			}
			ctx, failed := actorContext(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			task, err := service.UpdateTask(ctx, args.TaskID, update)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.move_task",
			mcp.WithDescription("Drop one task onto a column. Dropping onto the current column changes nothing."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("column", mcp.Required(), mcp.Description("Column label or canonical status key")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			column, err := req.RequireString("column")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			ctx, failed := actorContext(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			result, err := service.MoveTask(ctx, taskID, common.MoveTaskRequest{Column: column})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("move_task", result)
		},
	)
}

// registerMemberTools registers team member tools.
func registerMemberTools(srv *mcpserver.MCPServer, service common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"tavla.list_members",
			mcp.WithDescription("List team members."),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ctx, failed := actorContext(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			members, err := service.ListMembers(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_members", map[string]any{
				"members": members,
			})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.create_member",
			mcp.WithDescription("Create one team member."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
			mcp.WithString("id", mcp.Description("Member id; generated when omitted")),
			mcp.WithString("email", mcp.Description("Email address")),
			mcp.WithString("avatar", mcp.Description("Avatar text or URL")),
			mcp.WithString("role", mcp.Description("admin|lead|member|viewer"), mcp.Enum("admin", "lead", "member", "viewer")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := req.RequireString("name")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			ctx, failed := actorContext(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			member, err := service.CreateMember(ctx, common.CreateMemberRequest{
				ID:     req.GetString("id", ""),
				Name:   name,
				Avatar: req.GetString("avatar", ""),
				Email:  req.GetString("email", ""),
				Role:   req.GetString("role", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_member", member)
		},
	)
}

// parseDueAt parses an optional RFC3339 timestamp.
func parseDueAt(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("due_at must be RFC3339: %w", err)
	}
	ts = ts.UTC()
	return &ts, nil
}
