package domain

import "strings"

// Status is the canonical task status stored for every task.
type Status string

// Canonical statuses in board order.
const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusOverdue    Status = "overdue"
)

var canonicalStatuses = []Status{StatusNotStarted, StatusInProgress, StatusComplete, StatusOverdue}

// Statuses returns all canonical statuses in board order.
func Statuses() []Status {
	return append([]Status(nil), canonicalStatuses...)
}

// Valid reports whether the status is one of the canonical values.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusComplete, StatusOverdue:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends the task lifecycle.
func (s Status) Terminal() bool {
	return s == StatusComplete
}

// ParseStatus normalizes canonical keys and common aliases into a Status.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "not_started", "not-started", "not started", "todo", "to-do", "to do", "to_do":
		return StatusNotStarted, nil
	case "in_progress", "in-progress", "in progress", "progress", "doing":
		return StatusInProgress, nil
	case "complete", "completed", "done":
		return StatusComplete, nil
	case "overdue":
		return StatusOverdue, nil
	default:
		return "", ErrInvalidStatus
	}
}
