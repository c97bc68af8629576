package tui

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"focus-flow/app"
	"focus-flow/datekey"
	"focus-flow/focus"
	"focus-flow/model"
)

type focusPane int

const (
	paneTasks focusPane = iota
	paneDump
)

func (f focusPane) String() string {
	if f == paneDump {
		return "brain dump"
	}
	return "tasks"
}

type uiMode int

const (
	modeNormal uiMode = iota
	modeAddTask
	modeAddSubtask
	modeEditNotes
	modeSetDue
	modeAddDump
	modeConfirmDelete
	modeConfirmOverload
)

type deleteKind int

const (
	deleteNone deleteKind = iota
	deleteTask
	deleteSubtask
	deleteDump
)

type tickMsg time.Time

type encouragementMsg app.Encouragement

type focusMsg model.FocusSession

// FocusFeed carries timer snapshots from the engine observer to the model.
// Snapshots are dropped while the feed is full.
type FocusFeed chan model.FocusSession

func NewFocusFeed() FocusFeed { return make(FocusFeed, 4) }

// Observe is meant for focus.WithObserver.
func (f FocusFeed) Observe(snap model.FocusSession) {
	select {
	case f <- snap:
	default:
	}
}

type suggestionsMsg struct {
	taskText string
	added    int
	err      error
}

type Model struct {
	session *app.Session

	pane       focusPane
	mode       uiMode
	taskCursor int
	dumpCursor int
	input      string
	category   string

	confirmKind  deleteKind
	confirmID    string
	confirmSubID string
	confirmName  string

	// pending add waiting for the overload confirmation
	pendingText   string
	pendingDumpID string

	feed      FocusFeed
	lastPhase model.Phase

	encouragement string
	awaitingCheer bool
	suggesting    bool
	showHelp      bool
	nextRollover  time.Time
	status        string
	statusErr     bool
	width         int
	height        int
}

func NewModel(session *app.Session, startupStatus string) *Model {
	status := strings.TrimSpace(startupStatus)
	if status == "" {
		status = "Ready"
	}
	m := &Model{
		session: session,
		pane:    paneTasks,
		mode:    modeNormal,
		status:  status,
	}
	m.nextRollover = session.NextRollover(time.Now())
	m.lastPhase = session.Focus().Phase
	if startupStatus == "" {
		if msg := session.CarryOverMessage(); msg != "" {
			m.setStatus(msg+" (m move • M dismiss)", false)
		}
	}
	return m
}

// WithFocusFeed makes the model announce phase switches as they happen.
func (m *Model) WithFocusFeed(f FocusFeed) *Model {
	m.feed = f
	return m
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tick(), waitForEncouragement(m.session)}
	if m.feed != nil {
		cmds = append(cmds, waitForFocus(m.feed))
	}
	return tea.Batch(cmds...)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForEncouragement(s *app.Session) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-s.Encouragements()
		if !ok {
			return nil
		}
		return encouragementMsg(e)
	}
}

func waitForFocus(f FocusFeed) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-f
		if !ok {
			return nil
		}
		return focusMsg(snap)
	}
}

func suggestSubtasks(s *app.Session, taskID, taskText string) tea.Cmd {
	return func() tea.Msg {
		added, err := s.SuggestSubtasks(context.Background(), taskID)
		return suggestionsMsg{taskText: taskText, added: added, err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.checkRollover(time.Time(msg))
		return m, tick()
	case focusMsg:
		m.observeFocus(model.FocusSession(msg))
		if m.feed != nil {
			return m, waitForFocus(m.feed)
		}
	case encouragementMsg:
		m.awaitingCheer = false
		m.encouragement = msg.Message
		return m, waitForEncouragement(m.session)
	case suggestionsMsg:
		m.suggesting = false
		switch {
		case msg.err != nil:
			m.setStatus("Subtasks added, but saving failed: "+msg.err.Error(), true)
		case msg.added == 0:
			m.setStatus("No subtask suggestions right now", false)
		default:
			m.setStatus(fmt.Sprintf("Added %d suggested subtasks to %q", msg.added, msg.taskText), false)
		}
		m.ensureSelection()
	case tea.KeyMsg:
		switch m.mode {
		case modeAddTask, modeAddSubtask, modeEditNotes, modeSetDue, modeAddDump:
			m.updateInputMode(msg)
		case modeConfirmDelete, modeConfirmOverload:
			m.updateConfirmMode(msg)
		default:
			cmd, quit := m.updateNormalMode(msg)
			if quit {
				return m, tea.Quit
			}
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) observeFocus(snap model.FocusSession) {
	prev := m.lastPhase
	m.lastPhase = snap.Phase
	if !snap.Active || snap.Phase == prev {
		return
	}
	if snap.Phase == model.PhaseBreak {
		m.setStatus("Break time. Step away for a few minutes", false)
		return
	}
	label := "Back to work"
	if snap.BoundTaskLabel != "" {
		label += ": " + snap.BoundTaskLabel
	}
	m.setStatus(label, false)
}

func (m *Model) checkRollover(now time.Time) {
	if now.Before(m.nextRollover) {
		return
	}
	m.nextRollover = m.session.NextRollover(now)
	if m.session.HandleRollover() {
		m.taskCursor = 0
		m.setStatus("A new day: "+datekey.Long(m.session.ViewDate()), false)
		if msg := m.session.CarryOverMessage(); msg != "" {
			m.setStatus(msg+" (m move • M dismiss)", false)
		}
	}
}

func (m *Model) updateNormalMode(msg tea.KeyMsg) (tea.Cmd, bool) {
	var cmd tea.Cmd
	switch msg.String() {
	case "ctrl+c", "q":
		return nil, true
	case "tab":
		if m.pane == paneTasks {
			m.pane = paneDump
		} else {
			m.pane = paneTasks
		}
		m.setStatus(fmt.Sprintf("Focus on %s", m.pane.String()), false)
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "[", "h":
		m.session.PrevDay()
		m.dayChanged()
	case "]", "l":
		m.session.NextDay()
		m.dayChanged()
	case "t":
		m.session.GoToday()
		m.dayChanged()
	case "a":
		m.startAdd()
	case "s":
		m.startAddSubtask()
	case "n":
		m.startEditNotes()
	case "u":
		m.startSetDue()
	case "x":
		m.toggleSelected()
	case "enter":
		m.handleEnter()
	case "d":
		m.startDeleteConfirm()
	case "J":
		m.moveSelectedTask(1)
	case "K":
		m.moveSelectedTask(-1)
	case "T":
		m.continueTomorrow()
	case "g":
		cmd = m.startSuggestions()
	case "f":
		m.startFocus()
	case " ":
		m.session.PauseOrResumeFocus()
		m.setStatus("Timer "+m.session.FocusState().String(), false)
	case "R":
		m.session.ResetFocus()
		m.setStatus("Timer reset", false)
	case "+", "=":
		m.adjustTimer(5)
	case "-":
		m.adjustTimer(-5)
	case "m":
		m.carryOver()
	case "M":
		m.session.DismissCarryOver()
		m.setStatus("Carry-over hidden for this session", false)
	case "c":
		m.cycleCategory()
	case "y":
		m.copyShareText()
	case "?":
		m.showHelp = !m.showHelp
		if m.showHelp {
			m.setStatus("Shortcuts open (press ? or Esc to close)", false)
		} else {
			m.setStatus("Shortcuts hidden", false)
		}
	case "esc":
		if m.showHelp {
			m.showHelp = false
			m.setStatus("Shortcuts hidden", false)
			break
		}
		if m.encouragement != "" {
			m.encouragement = ""
			break
		}
		if m.category != "" {
			m.category = ""
			m.setStatus("Category filter cleared", false)
		}
	}

	m.ensureSelection()
	return cmd, false
}

func (m *Model) updateInputMode(msg tea.KeyMsg) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.mode = modeNormal
		m.input = ""
		m.setStatus("Cancelled", false)
		return
	case "enter":
		m.applyInput()
		return
	}

	switch msg.Type {
	case tea.KeyBackspace, tea.KeyCtrlH:
		m.input = trimLastRune(m.input)
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
}

func (m *Model) updateConfirmMode(msg tea.KeyMsg) {
	switch strings.ToLower(msg.String()) {
	case "y":
		if m.mode == modeConfirmOverload {
			m.confirmOverload()
			return
		}
		m.confirmDelete()
	case "n", "esc", "enter":
		m.confirmKind = deleteNone
		m.confirmID = ""
		m.confirmSubID = ""
		m.confirmName = ""
		m.pendingText = ""
		m.pendingDumpID = ""
		m.mode = modeNormal
		m.setStatus("Action cancelled", false)
	}
}

func (m *Model) applyInput() {
	text := strings.TrimSpace(m.input)
	mode := m.mode
	m.mode = modeNormal
	m.input = ""

	switch mode {
	case modeAddTask:
		if text == "" {
			m.setStatus("Task text must not be empty", true)
			return
		}
		if m.session.NeedsOverloadConfirm() {
			m.pendingText = text
			m.mode = modeConfirmOverload
			return
		}
		m.addTask(text)
	case modeAddSubtask:
		r, ok := m.selectedRow()
		if !ok {
			return
		}
		if text == "" {
			m.setStatus("Subtask text must not be empty", true)
			return
		}
		m.report(m.session.AddSubtask(r.task.ID, text), "Subtask added")
	case modeEditNotes:
		r, ok := m.selectedRow()
		if !ok {
			return
		}
		m.report(m.session.SetNotes(r.task.ID, text), "Notes saved")
	case modeSetDue:
		r, ok := m.selectedRow()
		if !ok {
			return
		}
		if text == "" {
			m.report(m.session.SetDueDate(r.task.ID, nil), "Due date cleared")
			return
		}
		m.report(m.session.SetDueDate(r.task.ID, &text), "Due date set to "+text)
	case modeAddDump:
		if text == "" {
			m.setStatus("Thought must not be empty", true)
			return
		}
		_, err := m.session.AddBrainDump(text)
		m.report(err, "Captured in brain dump")
	}
	m.ensureSelection()
}

func (m *Model) addTask(input string) {
	text, category, due := parseTaskInput(input)
	task, err := m.session.AddTask(text, category, due)
	if err != nil && task.ID == "" {
		m.setStatus("Could not add task: "+err.Error(), true)
		return
	}
	m.report(err, fmt.Sprintf("Task %q added", task.Text))
	m.taskCursor = m.indexOfTask(task.ID)
}

func (m *Model) confirmOverload() {
	text, dumpID := m.pendingText, m.pendingDumpID
	m.pendingText, m.pendingDumpID = "", ""
	m.mode = modeNormal
	if dumpID != "" {
		m.moveDumpToToday(dumpID)
		return
	}
	m.addTask(text)
}

func (m *Model) moveCursor(delta int) {
	if m.pane == paneDump {
		items := m.session.BrainDump()
		if len(items) == 0 {
			m.dumpCursor = 0
			return
		}
		m.dumpCursor = clamp(m.dumpCursor+delta, 0, len(items)-1)
		return
	}
	rows := m.visibleRows()
	if len(rows) == 0 {
		m.taskCursor = 0
		return
	}
	m.taskCursor = clamp(m.taskCursor+delta, 0, len(rows)-1)
}

func (m *Model) handleEnter() {
	if m.pane == paneDump {
		items := m.session.BrainDump()
		if len(items) == 0 {
			return
		}
		item := items[clamp(m.dumpCursor, 0, len(items)-1)]
		if m.session.NeedsOverloadConfirm() {
			m.pendingDumpID = item.ID
			m.mode = modeConfirmOverload
			return
		}
		m.moveDumpToToday(item.ID)
		return
	}
	m.toggleSelected()
}

func (m *Model) moveDumpToToday(id string) {
	task, err := m.session.MoveBrainDumpToToday(id)
	if err != nil && task.ID == "" {
		m.setStatus("Could not move thought: "+err.Error(), true)
		return
	}
	m.report(err, fmt.Sprintf("%q moved to %s", task.Text, datekey.Human(m.session.ViewDate(), m.session.Today())))
	m.ensureSelection()
}

func (m *Model) startAdd() {
	m.input = ""
	if m.pane == paneDump {
		m.mode = modeAddDump
		m.setStatus("Capture a thought; Enter saves", false)
		return
	}
	m.mode = modeAddTask
	m.setStatus("New task (#category and @YYYY-MM-DD optional)", false)
}

func (m *Model) startAddSubtask() {
	if m.pane != paneTasks {
		return
	}
	if _, ok := m.selectedRow(); !ok {
		m.setStatus("Select a task first", true)
		return
	}
	m.input = ""
	m.mode = modeAddSubtask
}

func (m *Model) startEditNotes() {
	r, ok := m.selectedRow()
	if m.pane != paneTasks || !ok {
		return
	}
	m.input = r.task.Notes
	m.mode = modeEditNotes
}

func (m *Model) startSetDue() {
	r, ok := m.selectedRow()
	if m.pane != paneTasks || !ok {
		return
	}
	m.input = r.task.DueDate
	m.mode = modeSetDue
	m.setStatus("Due date as YYYY-MM-DD; empty clears", false)
}

func (m *Model) toggleSelected() {
	if m.pane != paneTasks {
		return
	}
	r, ok := m.selectedRow()
	if !ok {
		return
	}
	if r.sub != nil {
		completes := !r.sub.Completed && !r.task.Completed && openSubtasks(r.task) == 1
		err := m.session.ToggleSubtask(r.task.ID, r.sub.ID)
		if completes {
			m.awaitingCheer = true
		}
		m.report(err, "Subtask updated")
		return
	}
	if !r.task.Completed {
		m.awaitingCheer = true
	}
	err := m.session.ToggleTask(r.task.ID)
	if r.task.Completed {
		m.report(err, fmt.Sprintf("Task %q reopened", r.task.Text))
		return
	}
	m.report(err, fmt.Sprintf("Task %q done", r.task.Text))
}

func (m *Model) moveSelectedTask(delta int) {
	if m.pane != paneTasks {
		return
	}
	r, ok := m.selectedRow()
	if !ok || r.sub != nil {
		return
	}
	list := m.session.Tasks(m.category)
	idx := -1
	for i, t := range list {
		if t.ID == r.task.ID {
			idx = i
			break
		}
	}
	target := idx + delta
	if idx == -1 || target < 0 || target >= len(list) {
		return
	}
	if err := m.session.Reorder(r.task.ID, list[target].ID); err != nil {
		m.report(err, "")
		return
	}
	m.taskCursor = m.indexOfTask(r.task.ID)
	m.setStatus("Task moved", false)
}

func (m *Model) continueTomorrow() {
	r, ok := m.selectedRow()
	if m.pane != paneTasks || !ok {
		return
	}
	if r.task.Completed {
		m.setStatus("Task is already done", false)
		return
	}
	split := hasPartialProgress(r.task)
	if split {
		m.awaitingCheer = true
	}
	err := m.session.ContinueTomorrow(r.task.ID)
	if split {
		m.report(err, "Progress kept today; the rest continues tomorrow")
		return
	}
	m.report(err, fmt.Sprintf("Task %q moved to tomorrow", r.task.Text))
}

func (m *Model) startSuggestions() tea.Cmd {
	r, ok := m.selectedRow()
	if m.pane != paneTasks || !ok || m.suggesting {
		return nil
	}
	m.suggesting = true
	m.setStatus(fmt.Sprintf("Asking for subtasks for %q...", r.task.Text), false)
	return suggestSubtasks(m.session, r.task.ID, r.task.Text)
}

func (m *Model) startFocus() {
	r, ok := m.selectedRow()
	if m.pane != paneTasks || !ok {
		return
	}
	if !m.session.StartFocus(r.task.ID) {
		m.setStatus("Only open tasks can be focused", true)
		return
	}
	m.setStatus(fmt.Sprintf("Focusing on %q", r.task.Text), false)
}

func (m *Model) adjustTimer(delta int) {
	if !m.session.AdjustFocus(delta) {
		m.setStatus("Pause the work timer to adjust it", true)
		return
	}
	m.setStatus(fmt.Sprintf("Work timer set to %s", formatClock(m.session.Focus().RemainingSeconds)), false)
}

func (m *Model) carryOver() {
	moved, err := m.session.CarryOver()
	if moved == 0 && err == nil {
		m.setStatus("Nothing to carry over", false)
		return
	}
	m.report(err, fmt.Sprintf("Moved %d unfinished tasks here", moved))
}

func (m *Model) cycleCategory() {
	cats := m.session.Categories()
	if len(cats) == 0 {
		m.category = ""
		m.setStatus("No categories yet (add one with #name)", false)
		return
	}
	next := ""
	if m.category == "" {
		next = cats[0]
	} else {
		for i, c := range cats {
			if c == m.category && i+1 < len(cats) {
				next = cats[i+1]
			}
		}
	}
	m.category = next
	m.taskCursor = 0
	if next == "" {
		m.setStatus("Showing all categories", false)
		return
	}
	m.setStatus("Category: "+next, false)
}

func (m *Model) copyShareText() {
	if err := copyToClipboard(m.session.ShareText()); err != nil {
		m.setStatus(err.Error(), true)
		return
	}
	m.setStatus("Progress summary copied", false)
}

func (m *Model) startDeleteConfirm() {
	if m.pane == paneDump {
		items := m.session.BrainDump()
		if len(items) == 0 {
			return
		}
		item := items[clamp(m.dumpCursor, 0, len(items)-1)]
		m.confirmKind = deleteDump
		m.confirmID = item.ID
		m.confirmName = item.Text
		m.mode = modeConfirmDelete
		return
	}
	r, ok := m.selectedRow()
	if !ok {
		return
	}
	m.confirmID = r.task.ID
	if r.sub != nil {
		m.confirmKind = deleteSubtask
		m.confirmSubID = r.sub.ID
		m.confirmName = r.sub.Text
	} else {
		m.confirmKind = deleteTask
		m.confirmName = r.task.Text
	}
	m.mode = modeConfirmDelete
}

func (m *Model) confirmDelete() {
	kind, id, subID, name := m.confirmKind, m.confirmID, m.confirmSubID, m.confirmName
	m.confirmKind = deleteNone
	m.confirmID, m.confirmSubID, m.confirmName = "", "", ""
	m.mode = modeNormal

	switch kind {
	case deleteTask:
		m.report(m.session.DeleteTask(id), fmt.Sprintf("Task %q deleted", name))
	case deleteSubtask:
		m.report(m.session.DeleteSubtask(id, subID), fmt.Sprintf("Subtask %q deleted", name))
	case deleteDump:
		m.report(m.session.DeleteBrainDump(id), fmt.Sprintf("Thought %q deleted", name))
	}
	m.ensureSelection()
}

func (m *Model) dayChanged() {
	m.taskCursor = 0
	m.category = ""
	day := datekey.Human(m.session.ViewDate(), m.session.Today())
	if msg := m.session.CarryOverMessage(); msg != "" {
		m.setStatus(msg+" (m move • M dismiss)", false)
		return
	}
	m.setStatus("Viewing "+day, false)
}

// report shows success, or the save error while noting the change was kept.
func (m *Model) report(err error, success string) {
	if err != nil {
		m.setStatus("Change applied, but saving to disk failed: "+err.Error(), true)
		return
	}
	m.ensureSelection()
	if success != "" {
		m.setStatus(success, false)
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) ensureSelection() {
	rows := m.visibleRows()
	if len(rows) == 0 {
		m.taskCursor = 0
	} else {
		m.taskCursor = clamp(m.taskCursor, 0, len(rows)-1)
	}
	items := m.session.BrainDump()
	if len(items) == 0 {
		m.dumpCursor = 0
	} else {
		m.dumpCursor = clamp(m.dumpCursor, 0, len(items)-1)
	}
}

// row is one selectable line of the task panel: a task or one of its subtasks.
type row struct {
	task model.Task
	sub  *model.Subtask
}

func (m *Model) visibleRows() []row {
	list := m.session.Tasks(m.category)
	rows := make([]row, 0, len(list))
	for _, t := range list {
		rows = append(rows, row{task: t})
		for i := range t.Subtasks {
			st := t.Subtasks[i]
			rows = append(rows, row{task: t, sub: &st})
		}
	}
	return rows
}

func (m *Model) selectedRow() (row, bool) {
	rows := m.visibleRows()
	if len(rows) == 0 || m.taskCursor < 0 || m.taskCursor >= len(rows) {
		return row{}, false
	}
	return rows[m.taskCursor], true
}

func (m *Model) indexOfTask(taskID string) int {
	for i, r := range m.visibleRows() {
		if r.sub == nil && r.task.ID == taskID {
			return i
		}
	}
	rows := m.visibleRows()
	if len(rows) == 0 {
		return 0
	}
	return len(rows) - 1
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	viewKey := m.session.ViewDate()
	today := m.session.Today()
	stored, shown := m.session.Streak()
	done, total := 0, 0
	for _, t := range m.session.Tasks("") {
		total++
		if t.Completed {
			done++
		}
	}

	title := lipgloss.NewStyle().Bold(true).Render("focus-flow")
	summary := fmt.Sprintf("%s (%s) • %d/%d done • streak %d (best %d)",
		datekey.Long(viewKey), datekey.Human(viewKey, today), done, total, shown, stored.Longest)
	if m.category != "" {
		summary += " • category: " + m.category
	}
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		title,
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  "+summary),
	)

	viewW := m.viewportWidth()
	const paneGap = 1
	const rightInset = 2
	outerPaneW := viewW - rightInset
	if outerPaneW < 40 {
		outerPaneW = viewW
	}
	innerPaneW := outerPaneW - 2
	if innerPaneW < 20 {
		innerPaneW = outerPaneW
	}

	panelH := m.height - 6
	if m.encouragement != "" || m.awaitingCheer {
		panelH -= 3
	}
	if panelH < 8 {
		panelH = 8
	}
	innerPaneH := panelH - 2
	if innerPaneH < 6 {
		innerPaneH = 6
	}

	mainW, sideW := m.paneWidths(innerPaneW, paneGap)
	split := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTasksPanel(mainW, innerPaneH),
		lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("│"),
		m.renderSidePanel(sideW, innerPaneH),
	)

	frameColor := lipgloss.Color("240")
	if m.mode == modeNormal {
		frameColor = lipgloss.Color("39")
	}
	panes := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(frameColor).
		Width(outerPaneW).
		Height(panelH).
		Render(split)

	statusText := m.status
	if statusText == "" {
		statusText = "Ready"
	}
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	if m.statusErr {
		statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	}
	rightHint := "? shortcuts"
	if m.showHelp {
		rightHint = "Esc/? close shortcuts"
	}
	footerLine := m.renderFooter(statusText, statusStyle, rightHint)

	promptLine := m.promptLine()
	if promptLine != "" {
		promptLine = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Width(viewW).Render(promptLine)
	}

	parts := []string{header}
	if banner := m.renderEncouragement(viewW); banner != "" {
		parts = append(parts, banner)
	}

	if m.showHelp {
		popupW := viewW - 8
		if popupW > 96 {
			popupW = 96
		}
		if popupW < 56 {
			popupW = viewW - 2
		}
		if popupW < 40 {
			popupW = 40
		}
		panes = lipgloss.Place(viewW, panelH, lipgloss.Center, lipgloss.Center, m.renderHelpOverlay(popupW))
	}

	parts = append(parts, panes, footerLine)
	if promptLine != "" && !m.showHelp {
		parts = append(parts, promptLine)
	}
	return strings.Join(parts, "\n")
}

func (m *Model) promptLine() string {
	switch m.mode {
	case modeAddTask:
		return "New task: " + m.input + "▌"
	case modeAddSubtask:
		return "New subtask: " + m.input + "▌"
	case modeEditNotes:
		return "Notes: " + m.input + "▌"
	case modeSetDue:
		return "Due date: " + m.input + "▌"
	case modeAddDump:
		return "Brain dump: " + m.input + "▌"
	case modeConfirmDelete:
		target := "item"
		switch m.confirmKind {
		case deleteTask:
			target = "task"
		case deleteSubtask:
			target = "subtask"
		case deleteDump:
			target = "thought"
		}
		return fmt.Sprintf("Delete %s %q? [y/N]", target, m.confirmName)
	case modeConfirmOverload:
		return fmt.Sprintf("You already have %d or more tasks for this day. Focus works best with a short list. Add anyway? [y/N]",
			m.session.DailyLimit())
	}
	return ""
}

func (m *Model) viewportWidth() int {
	if m.width <= 0 {
		return 1
	}
	// One spare column keeps the right border from wrapping in some terminals.
	if m.width > 1 {
		return m.width - 1
	}
	return m.width
}

// paneWidths splits total between the task pane and the narrower side pane.
func (m *Model) paneWidths(total, gap int) (int, int) {
	if total <= 0 {
		return 30, 24
	}
	if gap < 0 {
		gap = 0
	}

	minMain := 30
	minSide := 20
	if total < minMain+minSide+gap {
		side := total / 3
		if side < 12 {
			side = 12
		}
		main := total - side - gap
		if main < 12 {
			main = 12
			side = total - main - gap
			if side < 10 {
				side = 10
			}
		}
		return main, side
	}

	side := total / 3
	if side < 26 {
		side = 26
	}
	if side > 42 {
		side = 42
	}

	main := total - side - gap
	if main < minMain {
		main = minMain
		side = total - main - gap
	}
	if side < minSide {
		side = minSide
		main = total - side - gap
	}
	return main, side
}

func (m *Model) renderFooter(statusText string, statusStyle lipgloss.Style, rightHint string) string {
	left := strings.TrimSpace(statusText)
	right := strings.TrimSpace(rightHint)
	if left == "" {
		left = "Ready"
	}
	if right == "" {
		right = "? shortcuts"
	}

	leftW := utf8.RuneCountInString(left)
	rightW := utf8.RuneCountInString(right)
	width := m.viewportWidth()
	if width <= 0 {
		width = leftW + rightW + 2
	}

	if leftW+rightW+1 > width {
		maxLeft := width - rightW - 1
		if maxLeft < 8 {
			maxLeft = 8
		}
		left = truncateRunes(left, maxLeft)
		leftW = utf8.RuneCountInString(left)
	}

	padding := width - leftW - rightW
	if padding < 1 {
		padding = 1
	}

	rightStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	line := statusStyle.Render(left) + strings.Repeat(" ", padding) + rightStyle.Render(right)
	return lipgloss.NewStyle().Width(width).Render(line)
}

func (m *Model) renderEncouragement(width int) string {
	text := m.encouragement
	if text == "" && !m.awaitingCheer {
		return ""
	}
	if text == "" {
		text = "Nice! Thinking of something to say..."
	}
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("213")).
		Foreground(lipgloss.Color("225")).
		Padding(0, 1)
	return style.Width(width - 2).Render("🎉 " + text)
}

func (m *Model) renderHelpOverlay(width int) string {
	title := lipgloss.NewStyle().Bold(true).Render("Shortcuts")
	section := lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Bold(true)
	line := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	rows := []string{
		title,
		"",
		section.Render("Global"),
		line.Render("  Tab switches pane • j/k moves • [ / ] previous/next day • t today • q quits"),
		line.Render("  c cycles category • y copies the day's summary • m/M carry over/dismiss"),
		"",
		section.Render("Tasks"),
		line.Render("  a adds (#category @YYYY-MM-DD) • s adds subtask • g suggests subtasks"),
		line.Render("  x/Enter toggles • d deletes • J/K reorders • T continues tomorrow"),
		line.Render("  n notes • u due date"),
		"",
		section.Render("Focus timer"),
		line.Render("  f starts on the selected task • Space pauses/resumes • R resets"),
		line.Render("  +/- adjusts a paused work timer by 5 minutes"),
		"",
		section.Render("Brain dump"),
		line.Render("  a captures • Enter moves to the viewed day • d deletes"),
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("244")).
		Padding(1, 2)

	return style.Width(width).Render(strings.Join(rows, "\n"))
}

func (m *Model) renderTasksPanel(width, height int) string {
	rows := m.visibleRows()
	bound := m.session.Focus().BoundTaskID
	today := m.session.Today()

	title := "Tasks"
	if m.category != "" {
		title = "Tasks · " + m.category
	}
	lines := make([]string, 0, len(rows)+3)
	lines = append(lines, panelTitleStyled(title, m.pane == paneTasks))

	if banner := m.session.CarryOverMessage(); banner != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("↪ "+banner+" (m/M)"))
	}

	if len(rows) == 0 {
		empty := "No tasks for this day. Press 'a' to add your first priority."
		if m.category != "" {
			empty = "No tasks in this category (press 'c' or Esc)."
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render(empty))
	}

	for i, r := range rows {
		selected := i == m.taskCursor
		cursor := " "
		if selected {
			cursor = "▸"
		}

		cursorStyle := lipgloss.NewStyle()
		textStyle := lipgloss.NewStyle()
		if selected {
			cursorStyle = cursorStyle.Bold(true)
			textStyle = textStyle.Bold(true)
			if m.pane == paneTasks {
				sel := lipgloss.Color("229")
				cursorStyle = cursorStyle.Foreground(sel)
				textStyle = textStyle.Foreground(sel)
			}
		}

		if r.sub != nil {
			check := "[ ]"
			if r.sub.Completed {
				check = "[x]"
				textStyle = textStyle.Faint(true)
			}
			lines = append(lines, cursorStyle.Render(cursor+"    ")+textStyle.Render(check+" "+r.sub.Text))
			continue
		}

		check := "[ ]"
		if r.task.Completed {
			check = "[x]"
			textStyle = textStyle.Faint(true)
		}
		text := r.task.Text
		var meta []string
		if r.task.Category != "" {
			meta = append(meta, "#"+r.task.Category)
		}
		if r.task.DueDate != "" {
			due := "due " + datekey.Human(r.task.DueDate, today)
			if !r.task.Completed && r.task.DueDate < today {
				due = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render(due)
			}
			meta = append(meta, due)
		}
		if len(r.task.Subtasks) > 0 {
			doneSubs := len(r.task.Subtasks) - openSubtasks(r.task)
			meta = append(meta, fmt.Sprintf("%d/%d", doneSubs, len(r.task.Subtasks)))
		}
		if r.task.Notes != "" {
			meta = append(meta, "✎")
		}
		marker := "  "
		if r.task.ID == bound {
			marker = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("● ")
		}
		line := lipgloss.JoinHorizontal(lipgloss.Left,
			cursorStyle.Render(cursor+" "),
			marker,
			textStyle.Render(check+" "+text),
		)
		if len(meta) > 0 {
			line += lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render("  " + strings.Join(meta, " • "))
		}
		lines = append(lines, line)
	}

	if r, ok := m.selectedRow(); ok && r.task.Notes != "" && m.pane == paneTasks {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Render("Notes: "+truncateRunes(r.task.Notes, width*2)))
	}

	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderSidePanel(width, height int) string {
	timer := m.renderTimer(width)
	timerH := lipgloss.Height(timer)
	dumpH := height - timerH - 1
	if dumpH < 3 {
		dumpH = 3
	}
	return lipgloss.NewStyle().Width(width).Height(height).Render(
		lipgloss.JoinVertical(lipgloss.Left, timer, "", m.renderDump(width, dumpH)),
	)
}

func (m *Model) renderTimer(width int) string {
	snap := m.session.Focus()
	state := m.session.FocusState()

	phase := "Focus"
	color := lipgloss.Color("203")
	if snap.Phase == model.PhaseBreak {
		phase = "Break"
		color = lipgloss.Color("114")
	}
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render("Focus timer"),
		lipgloss.NewStyle().Foreground(color).Bold(true).Render(fmt.Sprintf("%s  %s", phase, formatClock(snap.RemainingSeconds))),
		progressBar(m.session.FocusProgress(), width-2, color),
	}
	switch state {
	case focus.Idle:
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render("Select a task and press 'f'"))
	case focus.WorkPaused, focus.BreakPaused:
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Render("Paused (Space resumes)"))
	}
	if snap.BoundTaskLabel != "" {
		lines = append(lines, "On: "+truncateRunes(snap.BoundTaskLabel, width-4))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderDump(width, height int) string {
	items := m.session.BrainDump()
	lines := []string{panelTitleStyled("Brain dump", m.pane == paneDump)}
	if len(items) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render("Empty. Tab here and press 'a'."))
	}
	for i, item := range items {
		cursor := " "
		style := lipgloss.NewStyle()
		if i == m.dumpCursor {
			cursor = "▸"
			style = style.Bold(true)
			if m.pane == paneDump {
				style = style.Foreground(lipgloss.Color("229"))
			}
		}
		lines = append(lines, style.Render(cursor+" "+truncateRunes(item.Text, width-3)))
	}
	return lipgloss.NewStyle().Width(width).MaxHeight(height).Render(strings.Join(lines, "\n"))
}

// Bell returns a cue sink that rings the terminal bell on w.
func Bell(w io.Writer) focus.Cues {
	return focus.CueFunc(func(focus.Cue) {
		_, _ = io.WriteString(w, "\a")
	})
}

func panelTitleStyled(title string, active bool) string {
	base := lipgloss.NewStyle().Bold(true)
	if !active {
		return base.Render(title)
	}
	text := base.Foreground(lipgloss.Color("229")).Render(title)
	marker := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).Render("*")
	return lipgloss.JoinHorizontal(lipgloss.Left, text, " ", marker)
}

// parseTaskInput pulls "#category" and "@YYYY-MM-DD" tokens out of a task line.
func parseTaskInput(input string) (text, category, due string) {
	fields := strings.Fields(input)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		switch {
		case len(f) > 1 && strings.HasPrefix(f, "#") && category == "":
			category = f[1:]
		case len(f) > 1 && strings.HasPrefix(f, "@") && datekey.Valid(f[1:]) && due == "":
			due = f[1:]
		default:
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " "), category, due
}

func openSubtasks(t model.Task) int {
	n := 0
	for _, st := range t.Subtasks {
		if !st.Completed {
			n++
		}
	}
	return n
}

func hasPartialProgress(t model.Task) bool {
	open := openSubtasks(t)
	return open > 0 && open < len(t.Subtasks)
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func progressBar(ratio float64, width int, color lipgloss.Color) string {
	if width < 4 {
		width = 4
	}
	filled := int(ratio*float64(width) + 0.5)
	filled = clamp(filled, 0, width)
	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Render(strings.Repeat("░", width-filled))
}

func copyToClipboard(text string) error {
	candidates := []struct {
		name string
		args []string
	}{
		{name: "wl-copy", args: []string{"--type", "text/plain"}},
		{name: "xclip", args: []string{"-in", "-selection", "clipboard"}},
		{name: "xsel", args: []string{"--clipboard", "--input"}},
		{name: "pbcopy"},
	}

	for _, c := range candidates {
		if _, err := exec.LookPath(c.name); err != nil {
			continue
		}
		go runClipboardCommand(c.name, c.args, text)
		return nil
	}
	return fmt.Errorf("no clipboard command available (install wl-copy or xclip)")
}

func runClipboardCommand(name string, args []string, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(text)
	_ = cmd.Run()
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func trimLastRune(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}
