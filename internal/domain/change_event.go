package domain

import (
	"strings"
	"time"
)

// Actor ids recorded when no team member is attributed.
const (
	LocalActorID = "tavla-user"
	SweepActorID = "tavla-sweep"
)

// ChangeOperation describes a persisted activity operation for a task.
type ChangeOperation string

// ChangeOperation values used by the local activity ledger.
const (
	ChangeOperationCreate ChangeOperation = "create"
	ChangeOperationUpdate ChangeOperation = "update"
	ChangeOperationMove   ChangeOperation = "move"
	ChangeOperationAssign ChangeOperation = "assign"
	ChangeOperationSweep  ChangeOperation = "sweep"
)

// ChangeEvent represents a single activity-log entry for a task.
type ChangeEvent struct {
	ID         int64
	TaskID     string
	Operation  ChangeOperation
	ActorID    string
	Metadata   map[string]string
	OccurredAt time.Time
}

// ClassifyTaskChange derives the ledger operation and metadata for an update from prev to next.
func ClassifyTaskChange(prev, next Task) (ChangeOperation, map[string]string) {
	if prev.Status != next.Status {
		op := ChangeOperationMove
		if next.UpdatedBy == SweepActorID {
			op = ChangeOperationSweep
		}
		return op, map[string]string{
			"from_status": string(prev.Status),
			"to_status":   string(next.Status),
		}
	}
	if prev.Assignee.ID != next.Assignee.ID {
		return ChangeOperationAssign, map[string]string{
			"from_assignee": prev.Assignee.ID,
			"to_assignee":   next.Assignee.ID,
		}
	}
	metadata := map[string]string{}
	if fields := changedTaskFields(prev, next); len(fields) > 0 {
		metadata["changed_fields"] = strings.Join(fields, ",")
	}
	return ChangeOperationUpdate, metadata
}

func changedTaskFields(prev, next Task) []string {
	changed := make([]string, 0)
	if prev.Title != next.Title {
		changed = append(changed, "title")
	}
	if prev.Description != next.Description {
		changed = append(changed, "description")
	}
	if prev.Priority != next.Priority {
		changed = append(changed, "priority")
	}
	if prev.ProjectTag != next.ProjectTag {
		changed = append(changed, "project_tag")
	}
	if !equalNullableTimes(prev.DueAt, next.DueAt) {
		changed = append(changed, "due_at")
	}
	if prev.Assignee != next.Assignee {
		changed = append(changed, "assignee")
	}
	return changed
}

func equalNullableTimes(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UTC().Equal(b.UTC())
}

// ParseChangeOperation canonicalizes persisted operation values; unknown values read as update.
func ParseChangeOperation(raw string) ChangeOperation {
	switch op := ChangeOperation(strings.ToLower(strings.TrimSpace(raw))); op {
	case ChangeOperationCreate, ChangeOperationUpdate, ChangeOperationMove, ChangeOperationAssign, ChangeOperationSweep:
		return op
	default:
		return ChangeOperationUpdate
	}
}
