package domain

import (
	"slices"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority normalizes user-entered priority text.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return PriorityMedium, nil
	}
	if !slices.Contains(validPriorities, p) {
		return "", ErrInvalidPriority
	}
	return p, nil
}

type Task struct {
	ID          string
	Title       string
	Description string
	Priority    Priority
	ProjectTag  string
	Status      Status
	DueAt       *time.Time
	Assignee    TeamMember
	CreatedBy   string
	UpdatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskInput struct {
	ID          string
	Title       string
	Description string
	Priority    Priority
	ProjectTag  string
	Status      Status
	DueAt       *time.Time
	Assignee    TeamMember
	CreatedBy   string
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ProjectTag = strings.TrimSpace(in.ProjectTag)
	in.CreatedBy = strings.TrimSpace(in.CreatedBy)
	if in.CreatedBy == "" {
		in.CreatedBy = LocalActorID
	}

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}

	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(validPriorities, in.Priority) {
		return Task{}, ErrInvalidPriority
	}
	if in.Status == "" {
		in.Status = StatusNotStarted
	}
	if !in.Status.Valid() {
		return Task{}, ErrInvalidStatus
	}

	return Task{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		ProjectTag:  in.ProjectTag,
		Status:      in.Status,
		DueAt:       normalizeDueAt(in.DueAt),
		Assignee:    in.Assignee,
		CreatedBy:   in.CreatedBy,
		UpdatedBy:   in.CreatedBy,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

func (t *Task) UpdateDetails(title, description string, priority Priority, projectTag string, dueAt *time.Time, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	if !slices.Contains(validPriorities, priority) {
		return ErrInvalidPriority
	}
	t.Title = title
	t.Description = strings.TrimSpace(description)
	t.Priority = priority
	t.ProjectTag = strings.TrimSpace(projectTag)
	t.DueAt = normalizeDueAt(dueAt)
	t.touch(now)
	return nil
}

// SetStatus stores a new canonical status.
func (t *Task) SetStatus(status Status, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	t.Status = status
	t.touch(now)
	return nil
}

func (t *Task) Assign(member TeamMember, now time.Time) error {
	if strings.TrimSpace(member.ID) == "" {
		return ErrInvalidID
	}
	t.Assignee = member
	t.touch(now)
	return nil
}

// ClearAssignee removes the assignee.
func (t *Task) ClearAssignee(now time.Time) {
	t.Assignee = TeamMember{}
	t.touch(now)
}

// IsOverdue reports whether the task is past due and not complete at now.
func (t Task) IsOverdue(now time.Time) bool {
	if t.DueAt == nil || t.Status.Terminal() {
		return false
	}
	return now.After(*t.DueAt)
}

// DisplayStatus derives the status a board shows; the stored Status is left alone.
func (t Task) DisplayStatus(now time.Time) Status {
	if t.IsOverdue(now) {
		return StatusOverdue
	}
	return t.Status
}

// touch keeps UpdatedAt >= CreatedAt.
func (t *Task) touch(now time.Time) {
	ts := now.UTC()
	if ts.Before(t.CreatedAt) {
		ts = t.CreatedAt
	}
	t.UpdatedAt = ts
}

func normalizeDueAt(dueAt *time.Time) *time.Time {
	if dueAt == nil {
		return nil
	}
	ts := dueAt.UTC().Truncate(time.Second)
	return &ts
}
