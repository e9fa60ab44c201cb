package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hylla/tavla/internal/adapters/server/common"
)

// stubBoardService provides deterministic board responses for MCP tool tests.
type stubBoardService struct {
	board      common.Board
	task       common.Task
	move       common.MoveResult
	err        error
	actorErr   error
	lastBoard  common.BoardRequest
	lastCreate common.CreateTaskRequest
	lastUpdate common.UpdateTaskRequest
	lastMove   common.MoveTaskRequest
	lastTaskID string
	lastLimit  int
	lastActor  string
	lastMember common.CreateMemberRequest
}

func (s *stubBoardService) BoardView(_ context.Context, req common.BoardRequest) (common.Board, error) {
	s.lastBoard = req
	return s.board, s.err
}

func (s *stubBoardService) ListTasks(_ context.Context, req common.BoardRequest) ([]common.Task, error) {
	s.lastBoard = req
	if s.err != nil {
		return nil, s.err
	}
	return []common.Task{s.task}, nil
}

func (s *stubBoardService) GetTask(_ context.Context, taskID string) (common.Task, error) {
	s.lastTaskID = taskID
	return s.task, s.err
}

func (s *stubBoardService) CreateTask(_ context.Context, req common.CreateTaskRequest) (common.Task, error) {
	s.lastCreate = req
	return s.task, s.err
}

func (s *stubBoardService) UpdateTask(_ context.Context, taskID string, req common.UpdateTaskRequest) (common.Task, error) {
	s.lastTaskID = taskID
	s.lastUpdate = req
	return s.task, s.err
}

func (s *stubBoardService) MoveTask(_ context.Context, taskID string, req common.MoveTaskRequest) (common.MoveResult, error) {
	s.lastTaskID = taskID
	s.lastMove = req
	return s.move, s.err
}

func (s *stubBoardService) ListMembers(context.Context) ([]common.Member, error) {
	return []common.Member{{ID: "m1", Name: "Ada", Role: "lead"}}, s.err
}

func (s *stubBoardService) CreateMember(_ context.Context, req common.CreateMemberRequest) (common.Member, error) {
	s.lastMember = req
	return common.Member{ID: "m2", Name: req.Name, Role: "member"}, s.err
}

func (s *stubBoardService) ListEvents(_ context.Context, taskID string, limit int) ([]common.Event, error) {
	s.lastTaskID = taskID
	s.lastLimit = limit
	return []common.Event{{ID: 1, TaskID: "t1", Operation: "create"}}, s.err
}

func (s *stubBoardService) StatusVocabulary() common.Vocabulary {
	return common.Vocabulary{Name: "display", Statuses: []common.StatusLabel{{Status: "complete", Label: "Completed"}}}
}

func (s *stubBoardService) WithActor(ctx context.Context, memberID string) (context.Context, error) {
	s.lastActor = memberID
	return ctx, s.actorErr
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "tavla-test",
				"version": "1.0.0",
			},
		},
	}
}

// newTestServer starts one MCP test server over svc and runs initialize.
func newTestServer(t *testing.T, svc common.BoardService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, svc)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// TestNewHandlerRequiresService verifies nil services are rejected.
func TestNewHandlerRequiresService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("NewHandler(nil) error = nil, want error")
	}
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubBoardService{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersBoardTools verifies tool discovery lists the board surface.
func TestHandlerRegistersBoardTools(t *testing.T) {
	server := newTestServer(t, &stubBoardService{})
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, required := range []string{
		"tavla.board_view",
		"tavla.list_tasks",
		"tavla.get_task",
		"tavla.create_task",
		"tavla.update_task",
		"tavla.move_task",
		"tavla.list_members",
		"tavla.create_member",
		"tavla.status_vocabulary",
		"tavla.list_events",
	} {
		if !slices.Contains(toolNames, required) {
			t.Fatalf("tool list missing %q: %#v", required, toolNames)
		}
	}
}

// TestHandlerBoardViewToolCall verifies filter arguments and actor attribution reach the service.
func TestHandlerBoardViewToolCall(t *testing.T) {
	svc := &stubBoardService{board: common.Board{Vocabulary: "display", Total: 2, ComputedAt: time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)}}
	server := newTestServer(t, svc)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tavla.board_view", map[string]any{
		"query":    "docs",
		"status":   "Overdue",
		"actor_id": "m1",
	}))
	structured := toolResultStructured(t, callResp.Result)
	if total, _ := structured["total"].(float64); total != 2 {
		t.Fatalf("total = %v, want 2", structured["total"])
	}
	if svc.lastBoard.Query != "docs" || svc.lastBoard.Status != "Overdue" || svc.lastActor != "m1" {
		t.Fatalf("unexpected request %#v actor=%q", svc.lastBoard, svc.lastActor)
	}
}

// TestHandlerTaskToolCalls verifies create, update, and move argument mapping.
func TestHandlerTaskToolCalls(t *testing.T) {
	svc := &stubBoardService{
		task: common.Task{ID: "t1", Title: "Docs"},
		move: common.MoveResult{Task: common.Task{ID: "t1"}, Changed: true, Notification: `"Docs" moved to Completed`},
	}
	server := newTestServer(t, svc)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tavla.create_task", map[string]any{
		"title":    "Docs",
		"column":   "In Progress",
		"priority": "high",
		"due_at":   "2026-03-01T09:00:00Z",
	}))
	if structured := toolResultStructured(t, callResp.Result); structured["id"] != "t1" {
		t.Fatalf("unexpected create result %#v", structured)
	}
	if svc.lastCreate.Column != "In Progress" || svc.lastCreate.DueAt == nil || svc.lastCreate.DueAt.Day() != 1 {
		t.Fatalf("unexpected create request %#v", svc.lastCreate)
	}

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "tavla.update_task", map[string]any{
		"task_id":     "t1",
		"title":       "Docs v2",
		"assignee_id": "",
	}))
	if svc.lastTaskID != "t1" || svc.lastUpdate.Title == nil || *svc.lastUpdate.Title != "Docs v2" {
		t.Fatalf("unexpected update request %#v", svc.lastUpdate)
	}
	if svc.lastUpdate.Description != nil || svc.lastUpdate.AssigneeID == nil || *svc.lastUpdate.AssigneeID != "" {
		t.Fatalf("expected omitted fields nil and explicit blank assignee, got %#v", svc.lastUpdate)
	}

	_, callResp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(5, "tavla.move_task", map[string]any{
		"task_id": "t1",
		"column":  "Completed",
	}))
	structured := toolResultStructured(t, callResp.Result)
	if structured["changed"] != true || svc.lastMove.Column != "Completed" {
		t.Fatalf("unexpected move result %#v", structured)
	}
}

// TestHandlerToolArgumentErrors verifies invalid arguments surface as invalid_request tool errors.
func TestHandlerToolArgumentErrors(t *testing.T) {
	server := newTestServer(t, &stubBoardService{})

	cases := []struct {
		tool string
		args map[string]any
	}{
		{tool: "tavla.create_task", args: map[string]any{"title": "  "}},
		{tool: "tavla.create_task", args: map[string]any{"title": "x", "due_at": "tomorrow"}},
		{tool: "tavla.move_task", args: map[string]any{"task_id": "t1"}},
		{tool: "tavla.list_events", args: map[string]any{"limit": -3}},
	}
	for idx, tc := range cases {
		_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(10+idx, tc.tool, tc.args))
		if isErr, _ := callResp.Result["isError"].(bool); !isErr {
			t.Fatalf("%s: expected tool error, got %#v", tc.tool, callResp.Result)
		}
		if text := toolResultText(t, callResp.Result); !strings.HasPrefix(text, "invalid_request:") {
			t.Fatalf("%s: text = %q, want invalid_request prefix", tc.tool, text)
		}
	}
}

// TestHandlerToolServiceErrors verifies service errors carry stable code prefixes.
func TestHandlerToolServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		prefix string
	}{
		{err: fmt.Errorf("get: %w", common.ErrNotFound), prefix: "not_found:"},
		{err: fmt.Errorf("move: %w", common.ErrForbidden), prefix: "forbidden:"},
		{err: fmt.Errorf("filter: %w", common.ErrInvariantViolation), prefix: "invariant_violation:"},
		{err: fmt.Errorf("boom"), prefix: "internal_error:"},
	}
	for idx, tc := range cases {
		server := newTestServer(t, &stubBoardService{err: tc.err})
		_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(20+idx, "tavla.get_task", map[string]any{"task_id": "t1"}))
		if text := toolResultText(t, callResp.Result); !strings.HasPrefix(text, tc.prefix) {
			t.Fatalf("text = %q, want prefix %q", text, tc.prefix)
		}
	}

	server := newTestServer(t, &stubBoardService{actorErr: fmt.Errorf("actor: %w", common.ErrForbidden)})
	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(30, "tavla.list_members", map[string]any{"actor_id": "ghost"}))
	if text := toolResultText(t, callResp.Result); !strings.HasPrefix(text, "forbidden:") {
		t.Fatalf("text = %q, want forbidden prefix", text)
	}
}

// TestHandlerListEventsAndVocabulary verifies defaults for list tools.
func TestHandlerListEventsAndVocabulary(t *testing.T) {
	svc := &stubBoardService{}
	server := newTestServer(t, svc)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tavla.list_events", map[string]any{}))
	structured := toolResultStructured(t, callResp.Result)
	if events, ok := structured["events"].([]any); !ok || len(events) != 1 {
		t.Fatalf("unexpected events %#v", structured)
	}
	if svc.lastLimit != defaultEventLimit || svc.lastTaskID != "" {
		t.Fatalf("limit=%d task=%q, want default limit and no task", svc.lastLimit, svc.lastTaskID)
	}

	_, callResp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "tavla.status_vocabulary", map[string]any{}))
	if structured := toolResultStructured(t, callResp.Result); structured["name"] != "display" {
		t.Fatalf("unexpected vocabulary %#v", structured)
	}

	_, callResp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(5, "tavla.create_member", map[string]any{"name": "Bo", "role": "viewer"}))
	if structured := toolResultStructured(t, callResp.Result); structured["name"] != "Bo" || svc.lastMember.Role != "viewer" {
		t.Fatalf("unexpected member result %#v", structured)
	}
}
