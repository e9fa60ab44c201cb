// Package httpapi provides the REST HTTP adapter for the board server.
package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/hylla/tavla/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// ActorHeader names the team member a request acts as.
const ActorHeader = "X-Tavla-Actor"

// defaultEventLimit bounds event listings when no limit is supplied.
const defaultEventLimit = 50

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service common.BoardService
	events  common.EventSource
	logger  *charmLog.Logger
	router  *mux.Router
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter. events and logger are optional.
func NewHandler(service common.BoardService, events common.EventSource, logger *charmLog.Logger) *Handler {
	h := &Handler{
		service: service,
		events:  events,
		logger:  logger,
	}
	h.router = h.routes()
	return h
}

// routes registers every API route on one gorilla router.
func (h *Handler) routes() *mux.Router {
	r := mux.NewRouter()
	r.StrictSlash(true)
	r.Use(h.logRequests)

	r.HandleFunc("/board", h.handleBoard).Methods(http.MethodGet)
	r.HandleFunc("/vocabulary", h.handleVocabulary).Methods(http.MethodGet)
	r.HandleFunc("/tasks", h.handleListTasks).Methods(http.MethodGet)
	r.HandleFunc("/tasks", h.handleCreateTask).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}", h.handleGetTask).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}", h.handleUpdateTask).Methods(http.MethodPatch)
	r.HandleFunc("/tasks/{id}/move", h.handleMoveTask).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}/events", h.handleTaskEvents).Methods(http.MethodGet)
	r.HandleFunc("/members", h.handleListMembers).Methods(http.MethodGet)
	r.HandleFunc("/members", h.handleCreateMember).Methods(http.MethodPost)
	r.HandleFunc("/events/log", h.handleEventLog).Methods(http.MethodGet)
	r.HandleFunc("/events", h.handleEventStream).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w)
	})
	return r
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "" {
		r.URL.Path = "/"
	}
	h.router.ServeHTTP(w, r)
}

// handleBoard serves GET `/board`.
func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	board, err := h.service.BoardView(ctx, boardRequestFrom(r))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleVocabulary serves GET `/vocabulary`.
func (h *Handler) handleVocabulary(w http.ResponseWriter, _ *http.Request) {
	if !h.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.service.StatusVocabulary())
}

// handleListTasks serves GET `/tasks`.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	tasks, err := h.service.ListTasks(ctx, boardRequestFrom(r))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
	})
}

// handleCreateTask serves POST `/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	var req common.CreateTaskRequest
	if err := decodeJSONBody(ctx, w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.service.CreateTask(ctx, req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleGetTask serves GET `/tasks/{id}`.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	task, err := h.service.GetTask(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleUpdateTask serves PATCH `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	var req common.UpdateTaskRequest
	if err := decodeJSONBody(ctx, w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.service.UpdateTask(ctx, mux.Vars(r)["id"], req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleMoveTask serves POST `/tasks/{id}/move`.
func (h *Handler) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	var req common.MoveTaskRequest
	if err := decodeJSONBody(ctx, w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	result, err := h.service.MoveTask(ctx, mux.Vars(r)["id"], req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleTaskEvents serves GET `/tasks/{id}/events`.
func (h *Handler) handleTaskEvents(w http.ResponseWriter, r *http.Request) {
	h.listEvents(w, r, mux.Vars(r)["id"])
}

// handleEventLog serves GET `/events/log`.
func (h *Handler) handleEventLog(w http.ResponseWriter, r *http.Request) {
	h.listEvents(w, r, r.URL.Query().Get("task_id"))
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request, taskID string) {
	ctx, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	events, err := h.service.ListEvents(ctx, strings.TrimSpace(taskID), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

// handleListMembers serves GET `/members`.
func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	members, err := h.service.ListMembers(ctx)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"members": members,
	})
}

// handleCreateMember serves POST `/members`.
func (h *Handler) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	var req common.CreateMemberRequest
	if err := decodeJSONBody(ctx, w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	member, err := h.service.CreateMember(ctx, req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// requestContext resolves the acting member from ActorHeader.
func (h *Handler) requestContext(w http.ResponseWriter, r *http.Request) (context.Context, bool) {
	if !h.ready(w) {
		return nil, false
	}
	ctx, err := h.service.WithActor(r.Context(), r.Header.Get(ActorHeader))
	if err != nil {
		writeErrorFrom(w, err)
		return nil, false
	}
	return ctx, true
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.service == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "board service is not configured",
		})
		return false
	}
	return true
}

// logRequests logs one line per request once the handler returns.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.logger == nil {
			next.ServeHTTP(w, r)
			return
		}
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug("api request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(started))
	})
}

// statusRecorder captures the response status for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack hands the connection to the event stream upgrader.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func boardRequestFrom(r *http.Request) common.BoardRequest {
	query := r.URL.Query()
	return common.BoardRequest{
		Query:  query.Get("q"),
		Status: strings.TrimSpace(query.Get("status")),
	}
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultEventLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer: %w", common.ErrInvalidRequest)
	}
	return limit, nil
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, APIError{
			Code:    "forbidden",
			Message: err.Error(),
			Hint:    "Set " + ActorHeader + " to a member whose role allows this action.",
		})
	case errors.Is(err, common.ErrInvariantViolation):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "invariant_violation",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
