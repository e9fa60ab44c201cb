// Package board derives filtered, status-grouped board views and resolves drag-and-drop status transitions.
package board

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/hylla/tavla/internal/domain"
)

// StatusFilterAll disables the status predicate of a FilterState.
const StatusFilterAll domain.Status = "all"

// FilterState is the ephemeral search and status filter of one board.
type FilterState struct {
	SearchQuery  string
	StatusFilter domain.Status
}

// AllStatuses reports whether the status predicate is disabled.
func (f FilterState) AllStatuses() bool {
	return f.StatusFilter == "" || f.StatusFilter == StatusFilterAll
}

// ParseStatusFilter resolves "All", a vocabulary label, or a canonical key into a status filter.
func ParseStatusFilter(raw string, vocab domain.Vocabulary) (domain.Status, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, string(StatusFilterAll)) {
		return StatusFilterAll, nil
	}
	if vocab != nil {
		if status, err := vocab.Status(trimmed); err == nil {
			return status, nil
		}
	}
	return domain.ParseStatus(trimmed)
}

// Stats counts the filtered tasks per display status.
type Stats struct {
	Total  int
	Counts map[domain.Status]int
}

// Column is one status group in board order.
type Column struct {
	Status domain.Status
	Tasks  []domain.Task
}

// View is the derived, read-only board state.
type View struct {
	Groups map[domain.Status][]domain.Task
	Stats  Stats
}

// Columns returns the groups in canonical board order.
func (v View) Columns() []Column {
	statuses := domain.Statuses()
	out := make([]Column, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, Column{Status: status, Tasks: v.Groups[status]})
	}
	return out
}

// ComputeView filters tasks by status then search, groups them by display status at now, and counts the filtered set.
func ComputeView(tasks []domain.Task, filter FilterState, now time.Time) View {
	statuses := domain.Statuses()
	view := View{
		Groups: make(map[domain.Status][]domain.Task, len(statuses)),
		Stats:  Stats{Counts: make(map[domain.Status]int, len(statuses))},
	}
	for _, status := range statuses {
		view.Groups[status] = []domain.Task{}
		view.Stats.Counts[status] = 0
	}

	search := newMatcher(filter.SearchQuery)
	for _, task := range tasks {
		status := task.DisplayStatus(now)
		if !filter.AllStatuses() && status != filter.StatusFilter {
			continue
		}
		if !search.match(task) {
			continue
		}
		if _, ok := view.Groups[status]; !ok {
			// Stored statuses are validated on write; an unknown one is not rendered.
			continue
		}
		view.Groups[status] = append(view.Groups[status], task)
		view.Stats.Counts[status]++
		view.Stats.Total++
	}
	return view
}

// Matches reports whether task passes the search predicate of query.
func Matches(task domain.Task, query string) bool {
	return newMatcher(query).match(task)
}

// matcher folds case once per query. cases.Caser is stateful, so one is built per call.
type matcher struct {
	caser cases.Caser
	query string
}

func newMatcher(query string) matcher {
	m := matcher{caser: cases.Fold()}
	if q := strings.TrimSpace(query); q != "" {
		m.query = m.caser.String(q)
	}
	return m
}

// match checks title and description, the searchable fields of a task.
func (m matcher) match(task domain.Task) bool {
	if m.query == "" {
		return true
	}
	return strings.Contains(m.caser.String(task.Title), m.query) ||
		strings.Contains(m.caser.String(task.Description), m.query)
}
