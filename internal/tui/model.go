package tui

import (
	"context"
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/domain"
)

// Service is the slice of app.Service the board screen uses.
type Service interface {
	ListTasks(context.Context) ([]domain.Task, error)
	CreateTask(context.Context, app.CreateTaskInput) (domain.Task, error)
	UpdateTask(context.Context, app.UpdateTaskInput) (domain.Task, error)
	ApplyStatusMutation(context.Context, board.Mutation) (domain.Task, error)
	ListChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)
	Now() time.Time
}

// inputMode selects which modal, if any, receives key presses.
type inputMode int

const (
	modeNone inputMode = iota
	modeSearch
	modeAddTask
	modeEditTask
	modeTaskInfo
)

// Board layout, in terminal rows. Hit testing and rendering both read these.
const (
	boardTopRow     = 3
	footerRows      = 2
	minColumnHeight = 10
	// cardRows is the title line, the meta line, and one separator.
	cardRows = 3
	// cardsTopRow is the first card row inside a column, below the title and a spacer.
	cardsTopRow = 2
)

const infoEventLimit = 5

// taskIndex is the loaded task set shared between Model copies and the drag controller lookup.
type taskIndex struct {
	tasks []domain.Task
	byID  map[string]domain.Task
}

func (i *taskIndex) replace(tasks []domain.Task) {
	i.tasks = append([]domain.Task(nil), tasks...)
	i.byID = make(map[string]domain.Task, len(tasks))
	for _, task := range tasks {
		i.byID[task.ID] = task
	}
}

func (i *taskIndex) lookup(id string) (domain.Task, bool) {
	task, ok := i.byID[id]
	return task, ok
}

// Model is the bubbletea board screen.
type Model struct {
	svc Service

	ready  bool
	width  int
	height int
	err    error

	status string

	help help.Model
	keys keyMap

	vocab           domain.Vocabulary
	actor           domain.TeamMember
	activation      float64
	showDescription bool
	copy            func(string) error
	feed            <-chan domain.ChangeEvent

	tasks  *taskIndex
	filter board.FilterState
	view   board.View

	selectedColumn int
	selectedTask   int

	drag         *board.DragController
	keyboardDrag bool
	dropColumn   int

	mode       inputMode
	input      textinput.Model
	editTaskID string
	infoTaskID string
	infoEvents []domain.ChangeEvent

	pending  *app.Operation[domain.Task]
	markdown *markdownRenderer
}

// loadedMsg carries the task set read by loadData.
type loadedMsg struct {
	tasks []domain.Task
	err   error
}

// savedMsg carries the settled result of a create or update operation.
type savedMsg struct {
	task domain.Task
	verb string
	err  error
}

// movedMsg carries the result of one applied drop.
type movedMsg struct {
	task domain.Task
	note board.Notification
	err  error
}

// eventsLoadedMsg carries recent activity for the open detail panel.
type eventsLoadedMsg struct {
	taskID string
	events []domain.ChangeEvent
	err    error
}

// changeMsg carries one pushed change event, or closed when the feed ended.
type changeMsg struct {
	event  domain.ChangeEvent
	closed bool
}

type copiedMsg struct {
	taskID string
	err    error
}

// NewModel constructs the board screen over svc.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:             svc,
		status:          "loading...",
		help:            h,
		keys:            newKeyMap(),
		vocab:           domain.DisplayVocabulary,
		activation:      board.DefaultActivationDistance,
		showDescription: true,
		copy:            systemClipboard,
		tasks:           &taskIndex{byID: map[string]domain.Task{}},
		filter:          board.FilterState{StatusFilter: board.StatusFilterAll},
		input:           newModalInput("", "", "", 200),
		markdown:        &markdownRenderer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	m.drag = board.NewDragController(
		m.tasks.lookup,
		board.WithVocabulary(m.vocab),
		board.WithActivationDistance(m.activation),
		board.WithClock(svc.Now),
	)
	m.recompute()
	return m
}

// Init loads the board and starts listening on the change feed when one is set.
func (m Model) Init() tea.Cmd {
	if m.feed == nil {
		return m.loadData
	}
	return tea.Batch(m.loadData, waitForChange(m.feed))
}

// Update routes one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.tasks.replace(msg.tasks)
		m.recompute()
		m.clampSelections()
		if m.status == "" || m.status == "loading..." || m.status == "reloading..." {
			m.status = "ready"
		}
		if m.mode == modeTaskInfo {
			if _, ok := m.tasks.lookup(m.infoTaskID); !ok {
				m.mode = modeNone
				m.status = "task no longer exists"
			}
		}
		return m, nil

	case savedMsg:
		m.pending = nil
		if msg.err != nil {
			m.status = msg.verb + " failed: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("%s %q", msg.verb, msg.task.Title)
		return m, m.loadData

	case movedMsg:
		if msg.err != nil {
			m.status = "move failed: " + msg.err.Error()
			return m, m.loadData
		}
		m.status = msg.note.Description
		return m, m.loadData

	case eventsLoadedMsg:
		if msg.taskID != m.infoTaskID {
			return m, nil
		}
		if msg.err != nil {
			m.infoEvents = nil
			m.status = "activity unavailable: " + msg.err.Error()
			return m, nil
		}
		m.infoEvents = msg.events
		return m, nil

	case changeMsg:
		if msg.closed {
			m.feed = nil
			m.status = "change feed closed"
			return m, nil
		}
		return m, tea.Batch(m.loadData, waitForChange(m.feed))

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "copied " + msg.taskID
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		if m.keyboardDrag {
			return m.handleDragKey(msg)
		}
		return m.handleNormalModeKey(msg)

	case tea.MouseClickMsg:
		return m.handleMousePress(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	default:
		return m, nil
	}
}

// loadData reads every task; filtering happens locally so search stays live.
func (m Model) loadData() tea.Msg {
	tasks, err := m.svc.ListTasks(m.actorContext())
	return loadedMsg{tasks: tasks, err: err}
}

func waitForChange(feed <-chan domain.ChangeEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-feed
		return changeMsg{event: event, closed: !ok}
	}
}

func waitForOperation(op *app.Operation[domain.Task], verb string) tea.Cmd {
	return func() tea.Msg {
		task, err := op.Wait(context.Background())
		return savedMsg{task: task, verb: verb, err: err}
	}
}

// actorContext attributes service calls to the configured identity.
func (m Model) actorContext() context.Context {
	ctx := context.Background()
	if strings.TrimSpace(m.actor.ID) == "" {
		return ctx
	}
	return app.WithActor(ctx, m.actor)
}

// allowed mirrors the service policy so denied actions are refused before any call is made.
func (m *Model) allowed(action domain.Action, task *domain.Task) bool {
	if strings.TrimSpace(m.actor.ID) == "" {
		return true
	}
	if domain.CanPerform(m.actor, action, domain.PolicyContext{Task: task}) {
		return true
	}
	m.status = fmt.Sprintf("not permitted: %s cannot %s", m.actor.Role, strings.ReplaceAll(string(action), "_", " "))
	return false
}

func (m *Model) recompute() {
	now := time.Now()
	if m.svc != nil {
		now = m.svc.Now()
	}
	m.view = board.ComputeView(m.tasks.tasks, m.filter, now)
}

func (m Model) columns() []board.Column {
	return m.view.Columns()
}

// columnKey is the drop key for column idx, or "" outside the board.
func (m Model) columnKey(idx int) string {
	cols := m.columns()
	if idx < 0 || idx >= len(cols) {
		return ""
	}
	return m.statusLabel(cols[idx].Status)
}

func (m Model) statusLabel(status domain.Status) string {
	label, err := m.vocab.Label(status)
	if err != nil {
		return string(status)
	}
	return label
}

func (m Model) filterLabel() string {
	if m.filter.AllStatuses() {
		return "All"
	}
	return m.statusLabel(m.filter.StatusFilter)
}

func (m Model) selectedCard() (domain.Task, bool) {
	cols := m.columns()
	if m.selectedColumn < 0 || m.selectedColumn >= len(cols) {
		return domain.Task{}, false
	}
	tasks := cols[m.selectedColumn].Tasks
	if m.selectedTask < 0 || m.selectedTask >= len(tasks) {
		return domain.Task{}, false
	}
	return tasks[m.selectedTask], true
}

func (m *Model) clampSelections() {
	cols := m.columns()
	m.selectedColumn = clamp(m.selectedColumn, 0, len(cols)-1)
	if len(cols) == 0 {
		m.selectedTask = 0
		return
	}
	m.selectedTask = clamp(m.selectedTask, 0, len(cols[m.selectedColumn].Tasks)-1)
}

// focusTask selects taskID when it is visible under the current filter.
func (m *Model) focusTask(taskID string) bool {
	for colIdx, col := range m.columns() {
		for taskIdx, task := range col.Tasks {
			if task.ID == taskID {
				m.selectedColumn = colIdx
				m.selectedTask = taskIdx
				return true
			}
		}
	}
	return false
}

// cycleStatusFilter steps All -> each status in board order -> All.
func (m *Model) cycleStatusFilter() {
	order := append([]domain.Status{board.StatusFilterAll}, domain.Statuses()...)
	current := m.filter.StatusFilter
	if m.filter.AllStatuses() {
		current = board.StatusFilterAll
	}
	next := order[0]
	for idx, status := range order {
		if status == current {
			next = order[(idx+1)%len(order)]
			break
		}
	}
	m.filter.StatusFilter = next
	m.recompute()
	m.clampSelections()
	m.status = "filter: " + m.filterLabel()
}

func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.SetValue(value)
	return in
}

func (m *Model) startSearch() tea.Cmd {
	m.mode = modeSearch
	m.input = newModalInput("/ ", "title or description", m.filter.SearchQuery, 120)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) startTaskInput(mode inputMode, taskID, value string) tea.Cmd {
	m.mode = mode
	m.editTaskID = taskID
	m.input = newModalInput("title: ", "what needs doing", value, 200)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m Model) openTaskInfo(taskID string) (tea.Model, tea.Cmd) {
	if _, ok := m.tasks.lookup(taskID); !ok {
		m.status = "task no longer exists"
		return m, nil
	}
	m.focusTask(taskID)
	m.mode = modeTaskInfo
	m.infoTaskID = taskID
	m.infoEvents = nil
	svc, ctx := m.svc, m.actorContext()
	return m, func() tea.Msg {
		events, err := svc.ListChangeEvents(ctx, taskID, infoEventLimit)
		return eventsLoadedMsg{taskID: taskID, events: events, err: err}
	}
}

func (m Model) copyTaskID(taskID string) tea.Cmd {
	write := m.copy
	return func() tea.Msg {
		return copiedMsg{taskID: taskID, err: write(taskID)}
	}
}

// saving reports whether a create or update is still in flight.
func (m Model) saving() bool {
	return m.pending != nil && m.pending.Pending()
}

func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case m.help.ShowAll && key.Matches(msg, m.keys.dismissModal):
		m.help.ShowAll = false
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadData
	case key.Matches(msg, m.keys.moveLeft):
		m.selectedColumn--
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		m.selectedColumn++
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.selectedTask--
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selectedTask++
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.search):
		return m, m.startSearch()
	case key.Matches(msg, m.keys.cycleFilter):
		m.cycleStatusFilter()
		return m, nil
	case key.Matches(msg, m.keys.addTask):
		if !m.allowed(domain.ActionCreateTask, nil) {
			return m, nil
		}
		return m, m.startTaskInput(modeAddTask, "", "")
	}

	task, ok := m.selectedCard()
	switch {
	case key.Matches(msg, m.keys.editTask):
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		if !m.allowed(domain.ActionEditTask, &task) {
			return m, nil
		}
		return m, m.startTaskInput(modeEditTask, task.ID, task.Title)
	case key.Matches(msg, m.keys.taskInfo):
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m.openTaskInfo(task.ID)
	case key.Matches(msg, m.keys.pickUp):
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		if !m.allowed(domain.ActionMoveTask, &task) {
			return m, nil
		}
		if !m.drag.PickUp(task.ID) {
			m.status = "cannot pick up task"
			return m, nil
		}
		m.keyboardDrag = true
		m.dropColumn = m.selectedColumn
		m.status = fmt.Sprintf("moving %q: h/l choose column, enter drop, esc cancel", task.Title)
		return m, nil
	case key.Matches(msg, m.keys.copyID):
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m, m.copyTaskID(task.ID)
	}
	return m, nil
}

// handleDragKey drives an active keyboard pick-up.
func (m Model) handleDragKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.moveLeft):
		m.dropColumn = clamp(m.dropColumn-1, 0, len(m.columns())-1)
	case key.Matches(msg, m.keys.moveRight):
		m.dropColumn = clamp(m.dropColumn+1, 0, len(m.columns())-1)
	case key.Matches(msg, m.keys.drop):
		m.keyboardDrag = false
		return m.finishDrop(m.drag.Drop(m.columnKey(m.dropColumn)))
	case key.Matches(msg, m.keys.cancel):
		m.keyboardDrag = false
		m.drag.Cancel()
		m.status = "move cancelled"
	case key.Matches(msg, m.keys.quit):
		m.drag.Cancel()
		return m, tea.Quit
	}
	return m, nil
}

// finishDrop turns one drop result into a status line and, for real moves, a mutation command.
func (m Model) finishDrop(result board.DropResult) (tea.Model, tea.Cmd) {
	task, _ := m.tasks.lookup(result.TaskID)
	switch result.Outcome {
	case board.OutcomeClick:
		return m.openTaskInfo(result.TaskID)
	case board.OutcomeMoved:
		if !m.allowed(domain.ActionMoveTask, &task) {
			return m, nil
		}
		m.status = "moving..."
		svc, ctx := m.svc, m.actorContext()
		mutation, note := result.Mutation, result.Notification
		return m, func() tea.Msg {
			moved, err := svc.ApplyStatusMutation(ctx, mutation)
			return movedMsg{task: moved, note: note, err: err}
		}
	case board.OutcomeUnchanged:
		m.status = fmt.Sprintf("%q already in %s", task.Title, m.statusLabel(task.Status))
	case board.OutcomeStale:
		m.status = "task no longer exists"
		return m, m.loadData
	case board.OutcomeCancelled:
		m.status = "drop cancelled"
	}
	return m, nil
}

func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeTaskInfo:
		switch {
		case key.Matches(msg, m.keys.dismissModal), key.Matches(msg, m.keys.taskInfo), key.Matches(msg, m.keys.quit):
			m.mode = modeNone
			m.infoTaskID = ""
			m.infoEvents = nil
		case key.Matches(msg, m.keys.copyID):
			return m, m.copyTaskID(m.infoTaskID)
		case key.Matches(msg, m.keys.editTask):
			task, ok := m.tasks.lookup(m.infoTaskID)
			if !ok || !m.allowed(domain.ActionEditTask, &task) {
				return m, nil
			}
			return m, m.startTaskInput(modeEditTask, task.ID, task.Title)
		}
		return m, nil

	case modeSearch:
		switch {
		case key.Matches(msg, m.keys.dismissModal):
			m.mode = modeNone
			m.input.Blur()
			m.filter.SearchQuery = ""
			m.recompute()
			m.clampSelections()
			m.status = "search cleared"
			return m, nil
		case key.Matches(msg, m.keys.submitInput):
			m.mode = modeNone
			m.input.Blur()
			if m.filter.SearchQuery == "" {
				m.status = "ready"
			} else {
				m.status = fmt.Sprintf("%d matches", m.view.Stats.Total)
			}
			return m, nil
		case key.Matches(msg, m.keys.clearSearch):
			m.input.SetValue("")
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			m.filter.SearchQuery = m.input.Value()
			m.recompute()
			m.clampSelections()
			return m, cmd
		}
		m.filter.SearchQuery = m.input.Value()
		m.recompute()
		m.clampSelections()
		return m, nil

	case modeAddTask, modeEditTask:
		switch {
		case key.Matches(msg, m.keys.dismissModal):
			m.mode = modeNone
			m.editTaskID = ""
			m.input.Blur()
			m.status = "cancelled"
			return m, nil
		case key.Matches(msg, m.keys.submitInput):
			return m.submitTaskInput()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// submitTaskInput starts the create or update operation for the modal title.
func (m Model) submitTaskInput() (tea.Model, tea.Cmd) {
	title := strings.TrimSpace(m.input.Value())
	if title == "" {
		m.status = "title required"
		return m, nil
	}
	if m.saving() {
		m.status = "saving..."
		return m, nil
	}

	svc, ctx := m.svc, m.actorContext()
	var op *app.Operation[domain.Task]
	verb := "created"
	switch m.mode {
	case modeAddTask:
		in := app.CreateTaskInput{Title: title}
		if cols := m.columns(); m.selectedColumn < len(cols) && cols[m.selectedColumn].Status != domain.StatusOverdue {
			in.Status = cols[m.selectedColumn].Status
		}
		op = app.Go(ctx, func(ctx context.Context) (domain.Task, error) {
			return svc.CreateTask(ctx, in)
		})
	case modeEditTask:
		verb = "updated"
		in := app.UpdateTaskInput{TaskID: m.editTaskID, Title: &title}
		op = app.Go(ctx, func(ctx context.Context) (domain.Task, error) {
			return svc.UpdateTask(ctx, in)
		})
	default:
		return m, nil
	}

	m.mode = modeNone
	m.editTaskID = ""
	m.input.Blur()
	m.pending = op
	m.status = "saving..."
	return m, waitForOperation(op, verb)
}

func (m Model) handleMousePress(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll || m.mode != modeNone || m.keyboardDrag || msg.Button != tea.MouseLeft {
		return m, nil
	}
	col, ok := m.columnAt(msg.X, msg.Y)
	if !ok {
		return m, nil
	}
	m.selectedColumn = col
	idx, ok := m.cardAt(col, msg.Y)
	if !ok {
		m.clampSelections()
		return m, nil
	}
	m.selectedTask = idx
	task := m.columns()[col].Tasks[idx]
	m.drag.Press(task.ID, board.Point{X: msg.X, Y: msg.Y})
	return m, nil
}

func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if m.keyboardDrag || m.drag.Phase() == board.PhaseIdle {
		return m, nil
	}
	if m.drag.Move(board.Point{X: msg.X, Y: msg.Y}) {
		if task, ok := m.drag.ActiveTask(); ok {
			m.status = fmt.Sprintf("dragging %q", task.Title)
		}
	}
	return m, nil
}

func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	if m.keyboardDrag || m.drag.Phase() == board.PhaseIdle {
		return m, nil
	}
	columnKey := ""
	if col, ok := m.columnAt(msg.X, msg.Y); ok {
		columnKey = m.columnKey(col)
	}
	return m.finishDrop(m.drag.Drop(columnKey))
}

func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll || m.mode != modeNone {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		m.selectedTask--
	case tea.MouseWheelDown:
		m.selectedTask++
	}
	m.clampSelections()
	return m, nil
}

// dragTarget returns the column under an active drag, or -1.
func (m Model) dragTarget() int {
	if m.drag.Phase() != board.PhaseDragging {
		return -1
	}
	if m.keyboardDrag {
		return m.dropColumn
	}
	p := m.drag.Pointer()
	col, ok := m.columnAt(p.X, p.Y)
	if !ok {
		return -1
	}
	return col
}

// columnWidth splits the terminal width across the board columns.
func (m Model) columnWidth() int {
	cols := len(domain.Statuses())
	w := 28
	if m.width > 0 {
		// border (2), horizontal padding (2), margin-right (1)
		const colOverhead = 5
		if candidate := m.width/cols - colOverhead; candidate > 0 {
			w = candidate
		}
	}
	return clamp(w, 18, 40)
}

func (m Model) columnHeight() int {
	return max(minColumnHeight, m.height-boardTopRow-footerRows)
}

func (m Model) columnStyle(border color.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		MarginRight(1).
		Width(m.columnWidth())
}

// columnStride is the rendered width of one column including its margin.
func (m Model) columnStride() int {
	return max(1, lipgloss.Width(m.columnStyle(lipgloss.Color("239")).Render("")))
}

// visibleCards is how many cards fit inside a column body.
func (m Model) visibleCards() int {
	inner := m.columnHeight() - 2
	return max(1, (inner-cardsTopRow+1)/cardRows)
}

// scrollTop keeps the selected card of the selected column in view.
func (m Model) scrollTop(col int) int {
	if col != m.selectedColumn {
		return 0
	}
	return max(0, m.selectedTask-m.visibleCards()+1)
}

// columnAt maps a pointer position to a board column.
func (m Model) columnAt(x, y int) (int, bool) {
	if y < boardTopRow || y >= boardTopRow+m.columnHeight() || x < 0 {
		return -1, false
	}
	col := x / m.columnStride()
	if col >= len(m.columns()) {
		return -1, false
	}
	return col, true
}

// cardAt maps a row inside column col to a card index.
func (m Model) cardAt(col, y int) (int, bool) {
	row := y - boardTopRow - 1 - cardsTopRow
	if row < 0 || row%cardRows == cardRows-1 {
		return -1, false
	}
	slot := row / cardRows
	if slot >= m.visibleCards() {
		return -1, false
	}
	idx := m.scrollTop(col) + slot
	if idx >= len(m.columns()[col].Tasks) {
		return -1, false
	}
	return idx, true
}

// View renders the board.
func (m Model) View() tea.View {
	if m.err != nil {
		return boardView("error: " + m.err.Error() + "\n\npress r to retry • q quit\n")
	}
	if !m.ready {
		return boardView("loading...")
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)
	savingStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))

	header := titleStyle.Render("tavla")
	header += statusStyle.Render("  filter: " + m.filterLabel())
	if q := strings.TrimSpace(m.filter.SearchQuery); q != "" {
		header += statusStyle.Render("  search: " + q)
	}
	header += statusStyle.Render(fmt.Sprintf("  filtered stats: total %d", m.view.Stats.Total))
	if m.saving() {
		header += savingStyle.Render("  saving...")
	}

	infoLine := statusStyle.Render(m.status)
	if m.mode == modeSearch {
		infoLine = m.input.View()
	}

	body := m.renderBoard(accent, muted, dim)

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpText := helpBubble.View(m.keys)
	if m.keyboardDrag {
		helpText = helpBubble.ShortHelpView(m.keys.dragHelp())
	}
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpText)

	content := strings.Join([]string{header, infoLine, "", body}, "\n")
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	fullContent := content + "\n" + helpLine

	overlay := m.renderModeOverlay(accent, muted, dim)
	if m.help.ShowAll {
		overlay = m.renderHelpOverlay(accent, muted, dim)
	}
	if overlay != "" {
		height := lipgloss.Height(fullContent)
		if m.height > 0 {
			height = m.height
		}
		fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, height))
	}
	return boardView(fullContent)
}

func boardView(content string) tea.View {
	v := tea.NewView(content)
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

func (m Model) renderBoard(accent, muted, dim color.Color) string {
	now := m.svc.Now()
	colWidth := m.columnWidth()
	innerHeight := m.columnHeight() - 2
	visible := m.visibleCards()
	target := m.dragTarget()
	activeID := m.drag.ActiveTaskID()
	dragging := m.drag.Phase() == board.PhaseDragging

	colTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	draggingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	overdueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	metaStyle := lipgloss.NewStyle().Foreground(muted)

	cols := m.columns()
	views := make([]string, 0, len(cols))
	for colIdx, col := range cols {
		label := m.statusLabel(col.Status)
		lines := []string{colTitle.Render(fmt.Sprintf("%s (%d)", label, m.view.Stats.Counts[col.Status])), ""}
		if len(col.Tasks) == 0 {
			lines = append(lines, emptyStyle.Render("(empty)"))
		}
		start := m.scrollTop(colIdx)
		end := min(len(col.Tasks), start+visible)
		for taskIdx := start; taskIdx < end; taskIdx++ {
			task := col.Tasks[taskIdx]
			selected := colIdx == m.selectedColumn && taskIdx == m.selectedTask
			prefix := "  "
			if selected {
				prefix = "│ "
			}
			title := prefix + truncate(task.Title, max(1, colWidth-4))
			switch {
			case dragging && task.ID == activeID:
				title = draggingStyle.Render("» " + truncate(task.Title, max(1, colWidth-4)))
			case selected:
				title = selectedStyle.Render(title)
			case task.IsOverdue(now):
				title = overdueStyle.Render(title)
			}
			lines = append(lines, title, "  "+metaStyle.Render(truncate(cardMeta(task, now), max(1, colWidth-4))))
			if taskIdx < end-1 {
				lines = append(lines, "")
			}
		}

		border := dim
		switch {
		case colIdx == target:
			border = lipgloss.Color("214")
		case colIdx == m.selectedColumn && target < 0:
			border = accent
		}
		views = append(views, m.columnStyle(border).Render(fitLines(strings.Join(lines, "\n"), innerHeight)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// cardMeta is the second card line: priority, due date, and assignee.
func cardMeta(task domain.Task, now time.Time) string {
	parts := []string{string(task.Priority)}
	if task.DueAt != nil {
		due := "due " + task.DueAt.Local().Format("Jan 2")
		if task.IsOverdue(now) {
			due += " !"
		}
		parts = append(parts, due)
	}
	if !task.Assignee.Unassigned() {
		parts = append(parts, "@"+task.Assignee.Name)
	}
	return strings.Join(parts, " · ")
}

func (m Model) renderModeOverlay(accent, muted, dim color.Color) string {
	boxWidth := clamp(m.width-8, 40, 90)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Width(boxWidth)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)

	switch m.mode {
	case modeAddTask, modeEditTask:
		title := "New Task"
		if m.mode == modeEditTask {
			title = "Edit Title"
		}
		if m.mode == modeAddTask {
			if cols := m.columns(); m.selectedColumn < len(cols) && cols[m.selectedColumn].Status != domain.StatusOverdue {
				title += " in " + m.statusLabel(cols[m.selectedColumn].Status)
			}
		}
		return box.Render(strings.Join([]string{
			titleStyle.Render(title),
			m.input.View(),
			hintStyle.Render("enter save • esc cancel"),
		}, "\n"))
	case modeTaskInfo:
		return box.Render(m.renderTaskDetails(boxWidth-4, accent, muted, dim))
	}
	return ""
}

func (m Model) renderTaskDetails(width int, accent, muted, dim color.Color) string {
	task, ok := m.tasks.lookup(m.infoTaskID)
	if !ok {
		return "task not found"
	}
	now := m.svc.Now()
	metaStyle := lipgloss.NewStyle().Foreground(muted)

	meta := []string{
		"status: " + m.statusLabel(task.DisplayStatus(now)),
		"priority: " + string(task.Priority),
	}
	if task.DueAt != nil {
		meta = append(meta, "due: "+task.DueAt.Local().Format("2006-01-02 15:04"))
	}
	if !task.Assignee.Unassigned() {
		meta = append(meta, "assignee: "+task.Assignee.Name)
	}
	if task.ProjectTag != "" {
		meta = append(meta, "tag: "+task.ProjectTag)
	}

	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(accent).Render(task.Title),
		metaStyle.Render(strings.Join(meta, "  ")),
		metaStyle.Render("id: " + task.ID),
	}
	if m.showDescription {
		lines = append(lines, "")
		if desc := m.markdown.render(task.Description, width); desc != "" {
			lines = append(lines, desc)
		} else {
			lines = append(lines, metaStyle.Render("no description"))
		}
	}
	if len(m.infoEvents) > 0 {
		lines = append(lines, "", lipgloss.NewStyle().Bold(true).Foreground(dim).Render("recent activity"))
		for _, event := range m.infoEvents {
			lines = append(lines, metaStyle.Render(fmt.Sprintf("%s  %s by %s",
				event.OccurredAt.Local().Format("Jan 2 15:04"), event.Operation, event.ActorID)))
		}
	}
	lines = append(lines, "", metaStyle.Render("esc close • e edit • y copy id"))
	return strings.Join(lines, "\n")
}

func (m Model) renderHelpOverlay(accent, muted, dim color.Color) string {
	width := clamp(m.width-8, 56, 100)
	hb := m.help
	hb.ShowAll = true
	hb.SetWidth(width - 4)

	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(accent).Render("tavla help"),
		lipgloss.NewStyle().Foreground(muted).Render("drag a card with the mouse, or space to pick it up and h/l + enter to drop"),
		"",
		hb.View(m.keys),
		"",
		lipgloss.NewStyle().Foreground(dim).Render("? or esc to close"),
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines pads or truncates content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay above base on a width x height canvas.
func overlayOnContent(base, overlay string, width, height int) string {
	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	canvas.Compose(lipgloss.NewLayer(base).X(0).Y(0).Z(0))
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	canvas.Compose(lipgloss.NewLayer(centered).X(0).Y(0).Z(10))
	return canvas.Render()
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
