// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrForbidden reports a request the acting member may not perform.
var ErrForbidden = errors.New("forbidden")

// ErrInvariantViolation reports input outside a closed enumeration, such as an unknown status label.
var ErrInvariantViolation = errors.New("invariant violation")

// ErrUnavailable reports a transport dependency that is not configured.
var ErrUnavailable = errors.New("service unavailable")

// Member is one team member as seen by transport callers.
type Member struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// Task is one task with its stored and derived status labelled through the configured vocabulary.
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Priority      string     `json:"priority"`
	ProjectTag    string     `json:"project_tag,omitempty"`
	Status        string     `json:"status"`
	StatusLabel   string     `json:"status_label"`
	DisplayStatus string     `json:"display_status"`
	DisplayLabel  string     `json:"display_label"`
	Overdue       bool       `json:"overdue"`
	DueAt         *time.Time `json:"due_at,omitempty"`
	Assignee      *Member    `json:"assignee,omitempty"`
	CreatedBy     string     `json:"created_by"`
	UpdatedBy     string     `json:"updated_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Column is one board column in canonical order.
type Column struct {
	Status string `json:"status"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
	Tasks  []Task `json:"tasks"`
}

// Board is the filtered, grouped board view.
type Board struct {
	Vocabulary   string    `json:"vocabulary"`
	SearchQuery  string    `json:"search_query,omitempty"`
	StatusFilter string    `json:"status_filter"`
	Total        int       `json:"total"`
	Columns      []Column  `json:"columns"`
	ComputedAt   time.Time `json:"computed_at"`
}

// StatusLabel pairs one canonical status with its vocabulary label.
type StatusLabel struct {
	Status string `json:"status"`
	Label  string `json:"label"`
}

// Vocabulary lists the configured column labels in board order.
type Vocabulary struct {
	Name     string        `json:"name"`
	Statuses []StatusLabel `json:"statuses"`
}

// Event is one activity-ledger entry.
type Event struct {
	ID         int64             `json:"id"`
	TaskID     string            `json:"task_id"`
	Operation  string            `json:"operation"`
	ActorID    string            `json:"actor_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// MoveResult reports the outcome of one non-interactive drop.
type MoveResult struct {
	Task         Task   `json:"task"`
	Changed      bool   `json:"changed"`
	Notification string `json:"notification,omitempty"`
}

// BoardRequest captures board filters. Status accepts "All", a vocabulary label or a canonical key.
type BoardRequest struct {
	Query  string
	Status string
}

// CreateTaskRequest captures input for new tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	ProjectTag  string     `json:"project_tag,omitempty"`
	Column      string     `json:"column,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
}

// UpdateTaskRequest captures a partial task update. Nil fields are left alone.
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	ProjectTag  *string    `json:"project_tag,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	ClearDueAt  bool       `json:"clear_due_at,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
}

// MoveTaskRequest captures the target column of a drop.
type MoveTaskRequest struct {
	Column string `json:"column"`
}

// CreateMemberRequest captures input for new team members.
type CreateMemberRequest struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}

// BoardService is the board surface shared by the HTTP and MCP adapters.
type BoardService interface {
	BoardView(context.Context, BoardRequest) (Board, error)
	ListTasks(context.Context, BoardRequest) ([]Task, error)
	GetTask(context.Context, string) (Task, error)
	CreateTask(context.Context, CreateTaskRequest) (Task, error)
	UpdateTask(context.Context, string, UpdateTaskRequest) (Task, error)
	MoveTask(context.Context, string, MoveTaskRequest) (MoveResult, error)
	ListMembers(context.Context) ([]Member, error)
	CreateMember(context.Context, CreateMemberRequest) (Member, error)
	ListEvents(context.Context, string, int) ([]Event, error)
	StatusVocabulary() Vocabulary
	// WithActor resolves memberID and returns a context attributed to that member.
	WithActor(context.Context, string) (context.Context, error)
}

// EventSource streams committed activity events until the context is done.
type EventSource interface {
	Subscribe(context.Context) <-chan Event
}
