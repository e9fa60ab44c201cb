package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the board bindings shown in the help bar.
type keyMap struct {
	quit         key.Binding
	reload       key.Binding
	toggleHelp   key.Binding
	moveLeft     key.Binding
	moveRight    key.Binding
	moveUp       key.Binding
	moveDown     key.Binding
	addTask      key.Binding
	taskInfo     key.Binding
	editTask     key.Binding
	search       key.Binding
	cycleFilter  key.Binding
	pickUp       key.Binding
	drop         key.Binding
	cancel       key.Binding
	copyID       key.Binding
	clearSearch  key.Binding
	submitInput  key.Binding
	dismissModal key.Binding
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		addTask:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		taskInfo:     key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "task info")),
		editTask:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit title")),
		search:       key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		cycleFilter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "cycle status filter")),
		pickUp:       key.NewBinding(key.WithKeys("space", " "), key.WithHelp("space", "pick up task")),
		drop:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop task")),
		cancel:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
		copyID:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy task id")),
		clearSearch:  key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("ctrl+u", "clear search")),
		submitInput:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		dismissModal: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	}
}

// ShortHelp returns the bindings shown in the collapsed help bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.addTask, k.taskInfo, k.editTask, k.pickUp, k.search, k.cycleFilter, k.toggleHelp, k.quit,
	}
}

// FullHelp returns the grouped bindings shown in the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.addTask, k.taskInfo, k.editTask, k.copyID, k.search, k.clearSearch, k.cycleFilter, k.reload, k.toggleHelp, k.quit},
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.pickUp, k.drop, k.cancel},
	}
}

// dragHelp returns the bindings that apply while a keyboard drag is active.
func (k keyMap) dragHelp() []key.Binding {
	return []key.Binding{k.moveLeft, k.moveRight, k.drop, k.cancel}
}
