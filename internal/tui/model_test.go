package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/domain"
)

var testNow = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

type fakeService struct {
	mu        sync.Mutex
	tasks     []domain.Task
	events    []domain.ChangeEvent
	mutations []board.Mutation
	actors    []string
	block     chan struct{}
	err       error
	nextID    int
}

func newFakeService(tasks ...domain.Task) *fakeService {
	return &fakeService{tasks: tasks}
}

func (f *fakeService) ListTasks(ctx context.Context) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordActor(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Task(nil), f.tasks...), nil
}

func (f *fakeService) CreateTask(ctx context.Context, in app.CreateTaskInput) (domain.Task, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordActor(ctx)
	f.nextID++
	task, err := domain.NewTask(domain.TaskInput{
		ID:     "new-" + string(rune('0'+f.nextID)),
		Title:  in.Title,
		Status: in.Status,
	}, testNow)
	if err != nil {
		return domain.Task{}, err
	}
	f.tasks = append(f.tasks, task)
	return task, nil
}

func (f *fakeService) UpdateTask(ctx context.Context, in app.UpdateTaskInput) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordActor(ctx)
	for idx := range f.tasks {
		if f.tasks[idx].ID != in.TaskID {
			continue
		}
		if in.Title != nil {
			f.tasks[idx].Title = strings.TrimSpace(*in.Title)
		}
		return f.tasks[idx], nil
	}
	return domain.Task{}, app.ErrNotFound
}

func (f *fakeService) ApplyStatusMutation(ctx context.Context, mutation board.Mutation) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordActor(ctx)
	f.mutations = append(f.mutations, mutation)
	for idx := range f.tasks {
		if f.tasks[idx].ID == mutation.TaskID {
			f.tasks[idx].Status = mutation.NewStatus
			return f.tasks[idx], nil
		}
	}
	return domain.Task{}, app.ErrNotFound
}

func (f *fakeService) ListChangeEvents(_ context.Context, taskID string, limit int) ([]domain.ChangeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ChangeEvent, 0, limit)
	for _, event := range f.events {
		if event.TaskID == taskID && len(out) < limit {
			out = append(out, event)
		}
	}
	return out, nil
}

func (f *fakeService) Now() time.Time {
	return testNow
}

func (f *fakeService) recordActor(ctx context.Context) {
	if actor, ok := app.ActorFromContext(ctx); ok {
		f.actors = append(f.actors, actor.ID)
	}
}

func newTask(t *testing.T, id, title string, status domain.Status) domain.Task {
	t.Helper()
	task, err := domain.NewTask(domain.TaskInput{ID: id, Title: title, Status: status}, testNow.Add(-time.Hour))
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	return task
}

func sampleTasks(t *testing.T) []domain.Task {
	t.Helper()
	return []domain.Task{
		newTask(t, "t1", "Write docs", domain.StatusNotStarted),
		newTask(t, "t2", "Fix login", domain.StatusNotStarted),
		newTask(t, "t3", "Deploy", domain.StatusInProgress),
	}
}

// TestModelLoadAndNavigation verifies load, column labels, and cursor movement.
func TestModelLoadAndNavigation(t *testing.T) {
	m := loadReadyModel(t, NewModel(newFakeService(sampleTasks(t)...)))
	if m.status != "ready" {
		t.Fatalf("expected ready status, got %q", m.status)
	}

	view := viewContent(m)
	for _, want := range []string{"tavla", "To Do (2)", "In Progress (1)", "Completed (0)", "Overdue (0)", "filtered stats: total 3", "filter: All"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view\n%s", want, view)
		}
	}

	m = applyMsg(t, m, keyRune('j'))
	if task, ok := m.selectedCard(); !ok || task.ID != "t2" {
		t.Fatalf("expected t2 selected, got %#v", task)
	}
	m = applyMsg(t, m, keyRune('j'))
	if m.selectedTask != 1 {
		t.Fatalf("expected selection clamped at 1, got %d", m.selectedTask)
	}
	m = applyMsg(t, m, keyRune('l'))
	if task, ok := m.selectedCard(); !ok || task.ID != "t3" {
		t.Fatalf("expected t3 selected after moving right, got %#v", task)
	}
	m = applyMsg(t, m, keyRune('l'))
	if _, ok := m.selectedCard(); ok || m.selectedColumn != 2 {
		t.Fatalf("expected empty Completed column selected, got column %d", m.selectedColumn)
	}
}

// TestModelVocabularyAndOverdue verifies native labels and derived overdue placement.
func TestModelVocabularyAndOverdue(t *testing.T) {
	late := newTask(t, "t4", "Renew cert", domain.StatusInProgress)
	due := testNow.Add(-2 * time.Hour)
	late.DueAt = &due
	m := loadReadyModel(t, NewModel(newFakeService(append(sampleTasks(t), late)...), WithVocabulary(domain.NativeVocabulary)))

	view := viewContent(m)
	for _, want := range []string{"Not Started (2)", "In Progress (1)", "Complete (0)", "Overdue (1)", "Renew cert"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view\n%s", want, view)
		}
	}
	if got := m.view.Groups[domain.StatusOverdue]; len(got) != 1 || got[0].ID != "t4" {
		t.Fatalf("expected t4 in overdue group, got %#v", got)
	}
}

// TestModelSearchIsLive verifies each keystroke refilters the board.
func TestModelSearchIsLive(t *testing.T) {
	m := loadReadyModel(t, NewModel(newFakeService(sampleTasks(t)...)))

	m = applyMsg(t, m, keyRune('/'))
	if m.mode != modeSearch {
		t.Fatalf("expected search mode, got %d", m.mode)
	}
	for _, r := range "DOC" {
		m = applyMsg(t, m, keyRune(r))
	}
	if m.filter.SearchQuery != "DOC" || m.view.Stats.Total != 1 {
		t.Fatalf("expected one live match for DOC, got query=%q total=%d", m.filter.SearchQuery, m.view.Stats.Total)
	}
	if !strings.Contains(viewContent(m), "filtered stats: total 1") {
		t.Fatal("expected filtered stats in header")
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeNone || m.filter.SearchQuery != "DOC" || m.status != "1 matches" {
		t.Fatalf("expected search applied on enter, got mode=%d query=%q status=%q", m.mode, m.filter.SearchQuery, m.status)
	}

	m = applyMsg(t, m, keyRune('/'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.filter.SearchQuery != "" || m.view.Stats.Total != 3 {
		t.Fatalf("expected esc to clear search, got query=%q total=%d", m.filter.SearchQuery, m.view.Stats.Total)
	}
}

// TestModelCycleFilter verifies f steps through every status and back to All.
func TestModelCycleFilter(t *testing.T) {
	m := loadReadyModel(t, NewModel(newFakeService(sampleTasks(t)...)))

	m = applyMsg(t, m, keyRune('f'))
	if m.filter.StatusFilter != domain.StatusNotStarted || m.view.Stats.Total != 2 {
		t.Fatalf("expected not_started filter with 2 tasks, got %q total=%d", m.filter.StatusFilter, m.view.Stats.Total)
	}
	if !strings.Contains(viewContent(m), "filter: To Do") {
		t.Fatal("expected filter label in header")
	}
	for range 4 {
		m = applyMsg(t, m, keyRune('f'))
	}
	if !m.filter.AllStatuses() || m.view.Stats.Total != 3 {
		t.Fatalf("expected filter to wrap to All, got %q", m.filter.StatusFilter)
	}
}

// TestModelKeyboardDrag verifies space/l/enter moves a card and reports the notification.
func TestModelKeyboardDrag(t *testing.T) {
	svc := newFakeService(sampleTasks(t)...)
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	if !m.keyboardDrag || m.drag.Phase() != board.PhaseDragging {
		t.Fatalf("expected keyboard drag active, phase=%s", m.drag.Phase())
	}
	if !strings.Contains(viewContent(m), "» Write docs") {
		t.Fatal("expected dragged card marker in view")
	}
	m = applyMsg(t, m, keyRune('l'))
	if m.dropColumn != 1 || m.dragTarget() != 1 {
		t.Fatalf("expected drop column 1, got %d", m.dropColumn)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})

	if len(svc.mutations) != 1 || svc.mutations[0].TaskID != "t1" || svc.mutations[0].NewStatus != domain.StatusInProgress {
		t.Fatalf("unexpected mutations %#v", svc.mutations)
	}
	if m.status != `"Write docs" moved to In Progress` {
		t.Fatalf("unexpected status %q", m.status)
	}
	if m.keyboardDrag || m.drag.Phase() != board.PhaseIdle {
		t.Fatal("expected drag to end after drop")
	}
	if got := m.view.Stats.Counts[domain.StatusInProgress]; got != 2 {
		t.Fatalf("expected reload to show 2 in progress, got %d", got)
	}
}

// TestModelKeyboardDragCancelAndUnchanged verifies esc and same-column drops apply nothing.
func TestModelKeyboardDragCancelAndUnchanged(t *testing.T) {
	svc := newFakeService(sampleTasks(t)...)
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.status != "move cancelled" || m.drag.Phase() != board.PhaseIdle {
		t.Fatalf("expected cancelled drag, status=%q", m.status)
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.status != `"Write docs" already in To Do` {
		t.Fatalf("unexpected status %q", m.status)
	}
	if len(svc.mutations) != 0 {
		t.Fatalf("expected no mutations, got %#v", svc.mutations)
	}
}

// TestModelMouseDragMovesTask verifies press, motion past the activation distance, and release over a column.
func TestModelMouseDragMovesTask(t *testing.T) {
	svc := newFakeService(sampleTasks(t)...)
	m := loadReadyModel(t, NewModel(svc))

	start := cardPoint(m, 0, 1)
	m = applyMsg(t, m, tea.MouseClickMsg{X: start.X, Y: start.Y, Button: tea.MouseLeft})
	if m.drag.Phase() != board.PhasePressed || m.drag.ActiveTaskID() != "t2" {
		t.Fatalf("expected t2 pressed, phase=%s id=%q", m.drag.Phase(), m.drag.ActiveTaskID())
	}

	target := cardPoint(m, 2, 0)
	m = applyMsg(t, m, tea.MouseMotionMsg{X: target.X, Y: target.Y, Button: tea.MouseLeft})
	if m.drag.Phase() != board.PhaseDragging || m.dragTarget() != 2 {
		t.Fatalf("expected dragging over column 2, phase=%s target=%d", m.drag.Phase(), m.dragTarget())
	}
	if m.status != `dragging "Fix login"` {
		t.Fatalf("unexpected status %q", m.status)
	}

	m = applyMsg(t, m, tea.MouseReleaseMsg{X: target.X, Y: target.Y, Button: tea.MouseLeft})
	if len(svc.mutations) != 1 || svc.mutations[0].NewStatus != domain.StatusComplete {
		t.Fatalf("unexpected mutations %#v", svc.mutations)
	}
	if m.status != `"Fix login" moved to Completed` {
		t.Fatalf("unexpected status %q", m.status)
	}
}

// TestModelMouseReleaseOffBoardCancels verifies a drop outside every column moves nothing.
func TestModelMouseReleaseOffBoardCancels(t *testing.T) {
	svc := newFakeService(sampleTasks(t)...)
	m := loadReadyModel(t, NewModel(svc))

	start := cardPoint(m, 0, 0)
	m = applyMsg(t, m, tea.MouseClickMsg{X: start.X, Y: start.Y, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseMotionMsg{X: start.X + 10, Y: start.Y, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: start.X, Y: 0, Button: tea.MouseLeft})
	if m.status != "drop cancelled" || len(svc.mutations) != 0 {
		t.Fatalf("expected cancelled drop, status=%q mutations=%#v", m.status, svc.mutations)
	}
}

// TestModelMouseClickOpensDetail verifies a press released inside the activation distance opens the card.
func TestModelMouseClickOpensDetail(t *testing.T) {
	svc := newFakeService(sampleTasks(t)...)
	svc.tasks[0].Description = "Cover the **drag** flow."
	svc.events = []domain.ChangeEvent{{ID: 1, TaskID: "t1", Operation: domain.ChangeOperationCreate, ActorID: "tavla-user", OccurredAt: testNow}}
	m := loadReadyModel(t, NewModel(svc))

	p := cardPoint(m, 0, 0)
	m = applyMsg(t, m, tea.MouseClickMsg{X: p.X, Y: p.Y, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseMotionMsg{X: p.X + 1, Y: p.Y, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: p.X + 1, Y: p.Y, Button: tea.MouseLeft})

	if m.mode != modeTaskInfo || m.infoTaskID != "t1" {
		t.Fatalf("expected task info for t1, mode=%d id=%q", m.mode, m.infoTaskID)
	}
	if len(m.infoEvents) != 1 {
		t.Fatalf("expected recent activity loaded, got %#v", m.infoEvents)
	}
	view := viewContent(m)
	for _, want := range []string{"id: t1", "status: To Do", "recent activity", "drag"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in detail view\n%s", want, view)
		}
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.mode != modeNone {
		t.Fatalf("expected detail closed, mode=%d", m.mode)
	}
}

// TestModelCreateTaskShowsSaving verifies create runs asynchronously and the header reports it.
func TestModelCreateTaskShowsSaving(t *testing.T) {
	svc := newFakeService(sampleTasks(t)...)
	svc.block = make(chan struct{})
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('n'))
	if m.mode != modeAddTask {
		t.Fatalf("expected add-task mode, got %d", m.mode)
	}
	if !strings.Contains(viewContent(m), "New Task in In Progress") {
		t.Fatal("expected add-task overlay")
	}
	for _, r := range "Ship" {
		m = applyMsg(t, m, keyRune(r))
	}

	updated, cmd := m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	m = updated.(Model)
	if cmd == nil || !m.saving() {
		t.Fatal("expected pending create operation")
	}
	if !strings.Contains(viewContent(m), "saving...") {
		t.Fatal("expected saving indicator in header")
	}

	close(svc.block)
	m = applyCmd(t, m, cmd)
	if m.saving() || m.status != `created "Ship"` {
		t.Fatalf("expected create settled, status=%q", m.status)
	}
	if got := m.view.Stats.Counts[domain.StatusInProgress]; got != 2 {
		t.Fatalf("expected new task in the selected column, got %d in progress", got)
	}
}

// TestModelEditTitle verifies e prefills the title and saves through UpdateTask.
func TestModelEditTitle(t *testing.T) {
	svc := newFakeService(sampleTasks(t)...)
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, keyRune('e'))
	if m.mode != modeEditTask || m.input.Value() != "Write docs" {
		t.Fatalf("expected prefilled edit input, got mode=%d value=%q", m.mode, m.input.Value())
	}
	m.input.SetValue("Write better docs")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.status != `updated "Write better docs"` {
		t.Fatalf("unexpected status %q", m.status)
	}
	if task, _ := m.tasks.lookup("t1"); task.Title != "Write better docs" {
		t.Fatalf("expected reloaded title, got %q", task.Title)
	}

	m = applyMsg(t, m, keyRune('e'))
	m.input.SetValue("   ")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.status != "title required" || m.mode != modeEditTask {
		t.Fatalf("expected blank title refused, status=%q", m.status)
	}
}

// TestModelPermissionRefusal verifies denied actions never reach the service.
func TestModelPermissionRefusal(t *testing.T) {
	svc := newFakeService(sampleTasks(t)...)
	viewer, _ := domain.NewTeamMember("m-viewer", "Vic", "", "", domain.RoleViewer)
	m := loadReadyModel(t, NewModel(svc, WithActor(viewer)))

	m = applyMsg(t, m, keyRune('n'))
	if m.mode != modeNone || !strings.Contains(m.status, "not permitted") {
		t.Fatalf("expected create refused, mode=%d status=%q", m.mode, m.status)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	if m.keyboardDrag || !strings.Contains(m.status, "move task") {
		t.Fatalf("expected pick-up refused, status=%q", m.status)
	}
	if len(svc.actors) == 0 || svc.actors[0] != "m-viewer" {
		t.Fatalf("expected loads attributed to the actor, got %#v", svc.actors)
	}

	member, _ := domain.NewTeamMember("m-1", "Mo", "", "", domain.RoleMember)
	m = loadReadyModel(t, NewModel(svc, WithActor(member)))
	p, target := cardPoint(m, 0, 0), cardPoint(m, 1, 0)
	m = applyMsg(t, m, tea.MouseClickMsg{X: p.X, Y: p.Y, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseMotionMsg{X: target.X, Y: target.Y, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: target.X, Y: target.Y, Button: tea.MouseLeft})
	if len(svc.mutations) != 0 || !strings.Contains(m.status, "not permitted") {
		t.Fatalf("expected mouse move of unassigned task refused, status=%q", m.status)
	}
}

// TestModelCopyID verifies y writes the selected id to the clipboard.
func TestModelCopyID(t *testing.T) {
	var copied string
	m := loadReadyModel(t, NewModel(newFakeService(sampleTasks(t)...), WithClipboard(func(text string) error {
		copied = text
		return nil
	})))
	m = applyMsg(t, m, keyRune('y'))
	if copied != "t1" || m.status != "copied t1" {
		t.Fatalf("expected t1 copied, got %q status=%q", copied, m.status)
	}

	m = loadReadyModel(t, NewModel(newFakeService(sampleTasks(t)...), WithClipboard(func(string) error {
		return errors.New("no display")
	})))
	m = applyMsg(t, m, keyRune('y'))
	if m.status != "copy failed: no display" {
		t.Fatalf("unexpected status %q", m.status)
	}
}

// TestModelChangeFeed verifies pushed events reload the board and a closed feed stops listening.
func TestModelChangeFeed(t *testing.T) {
	feed := make(chan domain.ChangeEvent, 1)
	svc := newFakeService(sampleTasks(t)...)
	m := NewModel(svc, WithChangeFeed(feed))
	if m.Init() == nil {
		t.Fatal("expected init command")
	}
	m = applyMsg(t, applyMsg(t, m, m.loadData()), tea.WindowSizeMsg{Width: 120, Height: 40})

	feed <- domain.ChangeEvent{TaskID: "t9"}
	msg := waitForChange(feed)()
	change, ok := msg.(changeMsg)
	if !ok || change.closed || change.event.TaskID != "t9" {
		t.Fatalf("unexpected change message %#v", msg)
	}

	svc.tasks = append(svc.tasks, newTask(t, "t9", "Pushed", domain.StatusComplete))
	updated, cmd := m.Update(change)
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("expected reload command after change")
	}
	m = applyMsg(t, m, m.loadData())
	if got := m.view.Stats.Counts[domain.StatusComplete]; got != 1 {
		t.Fatalf("expected pushed task visible, got %d complete", got)
	}

	close(feed)
	m = applyMsg(t, m, waitForChange(feed)())
	if m.feed != nil || m.status != "change feed closed" {
		t.Fatalf("expected closed feed handled, status=%q", m.status)
	}
}

// TestModelQuitHelpAndErrors verifies quit, the help overlay, and the load error view.
func TestModelQuitHelpAndErrors(t *testing.T) {
	svc := newFakeService(sampleTasks(t)...)
	m := loadReadyModel(t, NewModel(svc))

	_, cmd := m.Update(keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}

	m = applyMsg(t, m, keyRune('?'))
	if !m.help.ShowAll || !strings.Contains(viewContent(m), "tavla help") {
		t.Fatal("expected help overlay")
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.help.ShowAll {
		t.Fatal("expected esc to close help")
	}

	svc.err = errors.New("disk gone")
	m = applyMsg(t, m, keyRune('r'))
	if !strings.Contains(viewContent(m), "error: disk gone") {
		t.Fatalf("expected error view, got %q", viewContent(m))
	}
	svc.err = nil
	m = applyMsg(t, m, keyRune('r'))
	if m.err != nil || m.status != "ready" {
		t.Fatalf("expected recovery on reload, err=%v status=%q", m.err, m.status)
	}
}

// TestHelpers verifies layout helpers.
func TestHelpers(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("ab", 4); got != "ab" {
		t.Fatalf("truncate() = %q", got)
	}
	if clamp(5, 0, 3) != 3 || clamp(-1, 0, 3) != 0 || clamp(2, 0, -1) != 0 {
		t.Fatal("unexpected clamp results")
	}
	if got := fitLines("a\nb\nc", 2); got != "a\n…" {
		t.Fatalf("fitLines() = %q", got)
	}
	if got := strings.Count(fitLines("a", 3), "\n"); got != 2 {
		t.Fatalf("expected padded lines, got %d newlines", got)
	}

	task := newTask(t, "t1", "Write docs", domain.StatusNotStarted)
	due := testNow.Add(-time.Hour)
	task.DueAt = &due
	task.Assignee, _ = domain.NewTeamMember("m-1", "Ada", "", "", domain.RoleMember)
	meta := cardMeta(task, testNow)
	if !strings.Contains(meta, "medium") || !strings.Contains(meta, "!") || !strings.Contains(meta, "@Ada") {
		t.Fatalf("unexpected card meta %q", meta)
	}
}

// TestMarkdownRenderer verifies rendering, caching, and blank input.
func TestMarkdownRenderer(t *testing.T) {
	r := &markdownRenderer{}
	if got := r.render("   ", 40); got != "" {
		t.Fatalf("expected empty render, got %q", got)
	}
	out := r.render("# Title\n\nSome **bold** text", 40)
	if !strings.Contains(out, "Title") || !strings.Contains(out, "bold") {
		t.Fatalf("unexpected render %q", out)
	}
	if again := r.render("# Title\n\nSome **bold** text", 40); again != out {
		t.Fatal("expected cached render")
	}
}

// cardPoint is the pointer position of card idx in column col.
func cardPoint(m Model, col, idx int) board.Point {
	return board.Point{
		X: col*m.columnStride() + 2,
		Y: boardTopRow + 1 + cardsTopRow + idx*cardRows,
	}
}

func viewContent(m Model) string {
	return fmt.Sprint(m.View().Content)
}

func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	return applyMsg(t, applyCmd(t, m, m.Init()), tea.WindowSizeMsg{Width: 120, Height: 40})
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	currentCmd := cmd
	for i := 0; i < 6 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		casted, ok := updated.(Model)
		if !ok {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		currentCmd = nextCmd
	}
	return out
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}
