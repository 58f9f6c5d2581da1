package dashboard

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/smileynet/condatools/internal/channel"
	"github.com/smileynet/condatools/internal/conda"
	"github.com/smileynet/condatools/internal/session"
	"github.com/smileynet/condatools/internal/views"
)

// Model is the root Bubble Tea model for the dashboard TUI.
// Every session call happens inside Update, which makes the update loop the
// session's single writer.
type Model struct {
	session *session.Session
	events  *channel.Adapter
	copy    func(string) error

	python       string
	exportFormat conda.ExportFormat
	noBuilds     bool

	state  session.State
	sorter *views.EnvironmentSorter
	filter *views.PackageFilter

	mode      Mode
	focus     Focus
	width     int
	height    int
	cursor    int // Index into the sorted environment list.
	pkgOffset int
	query     string
	notice    string

	filterInput textinput.Model
	prompt      promptState
	confirm     confirmState
	log         viewport.Model
	logContent  string
	spinner     spinner.Model
	help        help.Model
}

// ModelOption configures optional Model behavior.
type ModelOption func(*Model)

// WithClipboard replaces the clipboard writer, mainly for tests.
func WithClipboard(fn func(string) error) ModelOption {
	return func(m *Model) { m.copy = fn }
}

// WithPython sets the interpreter version used for new environments.
func WithPython(version string) ModelOption {
	return func(m *Model) { m.python = version }
}

// WithExport sets the export format and build-string policy.
func WithExport(format conda.ExportFormat, noBuilds bool) ModelOption {
	return func(m *Model) {
		m.exportFormat = format
		m.noBuilds = noBuilds
	}
}

// NewModel creates a dashboard Model in browse mode with the environment
// pane focused. events must be attached to the host that sess dispatches to.
func NewModel(sess *session.Session, events *channel.Adapter, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	fi := textinput.New()
	fi.Prompt = "/"
	fi.Placeholder = "filter packages"
	fi.CharLimit = 64

	m := Model{
		session:      sess,
		events:       events,
		copy:         clipboard.WriteAll,
		python:       session.DefaultPython,
		exportFormat: conda.FormatYML,
		sorter:       &views.EnvironmentSorter{},
		filter:       &views.PackageFilter{},
		mode:         ModeBrowse,
		focus:        PaneEnvironments,
		filterInput:  fi,
		log:          viewport.New(0, 0),
		spinner:      s,
		help:         help.New(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.state = sess.Snapshot()
	return m
}

// Init starts the event pump and the spinner, and requests the bootstrap.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.events.WaitEvent(),
		m.spinner.Tick,
		func() tea.Msg { return bootstrapMsg{} },
	)
}

// Update handles incoming messages with mode-based routing.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.log.Width = max(msg.Width-borderChrome, 0)
		m.log.Height = computeLayout(msg.Width, msg.Height).logHeight
		m.log.GotoBottom()
		return m, nil

	case bootstrapMsg:
		m.report(m.session.Bootstrap())
		m.sync()
		return m, nil

	case channel.EventMsg:
		m.session.Handle(msg.Event)
		m.sync()
		return m, m.events.WaitEvent()

	case channel.ClosedMsg:
		return m, nil

	case copiedMsg:
		if msg.Err != nil {
			m.notice = fmt.Sprintf("copy failed: %v", msg.Err)
		} else {
			m.notice = "copied " + msg.Text
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Cursor blink and other input messages.
	var cmd tea.Cmd
	switch m.mode {
	case ModeFilter:
		m.filterInput, cmd = m.filterInput.Update(msg)
	case ModePrompt:
		m.prompt.input, cmd = m.prompt.input.Update(msg)
	}
	return m, cmd
}

// handleKey routes key messages to the active mode.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeFilter:
		return m.updateFilter(msg)
	case ModePrompt:
		return m.updatePrompt(msg)
	case ModeConfirm:
		return m.updateConfirm(msg)
	default:
		return m.updateBrowse(msg)
	}
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := BrowseKeyMap()
	m.notice = ""

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Tab):
		if m.focus == PaneEnvironments {
			m.focus = PanePackages
		} else {
			m.focus = PaneEnvironments
		}

	case key.Matches(msg, keys.Up):
		if m.focus == PaneEnvironments {
			m.cursor = max(m.cursor-1, 0)
		} else {
			m.pkgOffset = max(m.pkgOffset-1, 0)
		}

	case key.Matches(msg, keys.Down):
		if m.focus == PaneEnvironments {
			m.cursor = min(m.cursor+1, max(len(m.environments())-1, 0))
		} else {
			m.pkgOffset = min(m.pkgOffset+1, max(len(m.packages())-1, 0))
		}

	case key.Matches(msg, keys.Enter):
		if env, ok := m.current(); ok {
			m.report(m.session.Select(env.Path))
			m.pkgOffset = 0
		}

	case key.Matches(msg, keys.Refresh):
		m.report(m.session.RefreshEnvironments())

	case key.Matches(msg, keys.Probe):
		m.report(m.session.Probe())

	case key.Matches(msg, keys.Filter):
		m.mode = ModeFilter
		m.filterInput.SetValue(m.query)
		m.filterInput.CursorEnd()
		return m, m.filterInput.Focus()

	case key.Matches(msg, keys.Create):
		return m.openPrompt(promptCreate, "", "")

	case key.Matches(msg, keys.Rename):
		if env, ok := m.mutable(); ok {
			return m.openPrompt(promptRename, env.Path, env.Name())
		}

	case key.Matches(msg, keys.Clone):
		if env, ok := m.current(); ok {
			return m.openPrompt(promptClone, env.Path, m.cloneSource(env)+"-clone")
		}

	case key.Matches(msg, keys.Import):
		return m.openPrompt(promptImportFile, "", "")

	case key.Matches(msg, keys.Export):
		if env, ok := m.mutable(); ok {
			return m.openPrompt(promptExportFile, env.Path, env.Name()+"."+string(m.exportFormat))
		}

	case key.Matches(msg, keys.Remove):
		if env, ok := m.mutable(); ok && !m.busy() {
			m.confirm = confirmState{path: env.Path, name: env.Name()}
			m.mode = ModeConfirm
		}

	case key.Matches(msg, keys.Copy):
		if env, ok := m.current(); ok {
			return m, copyCmd(m.copy, env.Path)
		}

	case key.Matches(msg, keys.Clear):
		m.session.ClearTranscript()

	case key.Matches(msg, keys.LogUp), key.Matches(msg, keys.LogDown):
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd
	}

	m.sync()
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := InputKeyMap()
	switch {
	case key.Matches(msg, keys.Cancel):
		m.query = ""
		m.filterInput.SetValue("")
		m.filterInput.Blur()
		m.mode = ModeBrowse
		m.pkgOffset = 0
		return m, nil
	case key.Matches(msg, keys.Submit):
		m.filterInput.Blur()
		m.mode = ModeBrowse
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.query = m.filterInput.Value()
	m.pkgOffset = 0
	return m, cmd
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := InputKeyMap()
	switch {
	case key.Matches(msg, keys.Cancel):
		m.mode = ModeBrowse
		return m, nil
	case key.Matches(msg, keys.Submit):
		return m.submitPrompt()
	}

	var cmd tea.Cmd
	m.prompt.input, cmd = m.prompt.input.Update(msg)
	return m, cmd
}

// submitPrompt runs the operation behind the active prompt. Validation
// errors keep the prompt open so the value can be corrected.
func (m Model) submitPrompt() (tea.Model, tea.Cmd) {
	value := m.prompt.input.Value()

	var err error
	switch m.prompt.kind {
	case promptCreate:
		err = m.session.CreateEnvironment(value, m.python)
	case promptRename:
		err = m.session.RenameEnvironment(m.prompt.target, value)
	case promptClone:
		err = m.session.CloneEnvironment(m.prompt.target, value)
	case promptImportFile:
		file := strings.TrimSpace(value)
		if file == "" {
			err = session.ErrNoFile
			break
		}
		next := newPrompt(promptImportName, "", "")
		next.file = file
		m.prompt = next
		return m, textinput.Blink
	case promptImportName:
		err = m.session.ImportEnvironment(m.prompt.file, value)
	case promptExportFile:
		err = m.session.ExportEnvironment(m.prompt.target, strings.TrimSpace(value), m.exportFormat, m.noBuilds)
	}

	if err != nil {
		m.prompt.err = err.Error()
		return m, nil
	}
	m.mode = ModeBrowse
	m.sync()
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := ConfirmKeyMap()
	switch {
	case key.Matches(msg, keys.Yes):
		m.report(m.session.RemoveEnvironment(m.confirm.path))
		m.mode = ModeBrowse
		m.sync()
	case key.Matches(msg, keys.No):
		m.mode = ModeBrowse
	}
	return m, nil
}

// openPrompt switches to prompt mode unless a command holds the gate.
func (m Model) openPrompt(kind promptKind, target, initial string) (tea.Model, tea.Cmd) {
	if m.busy() {
		return m, nil
	}
	m.prompt = newPrompt(kind, target, initial)
	m.mode = ModePrompt
	return m, textinput.Blink
}

func copyCmd(write func(string) error, text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{Text: text, Err: write(text)}
	}
}

// busy reports whether a command is running and sets a notice if so.
func (m *Model) busy() bool {
	if m.state.Running == nil {
		return false
	}
	m.notice = "waiting for " + m.state.Running.Display
	return true
}

// report shows err as a transient notice. Errors from operations are
// pre-dispatch validation failures and never touch the error banner.
func (m *Model) report(err error) {
	if err != nil {
		m.notice = err.Error()
	}
}

// sync refreshes the cached snapshot and everything derived from it.
func (m *Model) sync() {
	m.state = m.session.Snapshot()

	if n := len(m.environments()); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	if n := len(m.packages()); m.pkgOffset >= n {
		m.pkgOffset = max(n-1, 0)
	}

	content := strings.Join(m.state.Transcript, "\n")
	if content != m.logContent {
		m.logContent = content
		m.log.SetContent(content)
		m.log.GotoBottom()
	}
}

func (m Model) environments() []conda.Environment {
	return m.sorter.Sorted(m.state.Environments, m.state.Connection)
}

func (m Model) packages() []conda.Package {
	return m.filter.Filtered(m.state.Packages, m.query)
}

// current returns the environment under the cursor.
func (m *Model) current() (conda.Environment, bool) {
	envs := m.environments()
	if m.cursor < 0 || m.cursor >= len(envs) {
		m.notice = "no environment under the cursor"
		return conda.Environment{}, false
	}
	return envs[m.cursor], true
}

// mutable returns the environment under the cursor unless it is the base
// environment, which only supports cloning.
func (m *Model) mutable() (conda.Environment, bool) {
	env, ok := m.current()
	if !ok {
		return env, false
	}
	if conda.IsBase(env, m.state.Connection) {
		m.notice = conda.ErrBaseEnvironment.Error()
		return env, false
	}
	return env, true
}

func (m Model) cloneSource(env conda.Environment) string {
	if conda.IsBase(env, m.state.Connection) {
		return conda.BaseName
	}
	return env.Name()
}

func envName(path string) string {
	return conda.Environment{Path: path}.Name()
}

// View renders the two-pane layout with log, status line and help bar.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	l := computeLayout(m.width, m.height)
	var top string
	switch m.mode {
	case ModePrompt:
		top = FocusedBorder().Width(m.width - borderChrome).Height(l.paneHeight).Render(m.prompt.View())
	case ModeConfirm:
		top = FocusedBorder().Width(m.width - borderChrome).Height(l.paneHeight).Render(m.confirm.View())
	default:
		top = m.viewPanes(l)
	}

	logBox := UnfocusedBorder().
		Width(m.width - borderChrome).
		Height(l.logHeight).
		Render(m.log.View())
	helpView := m.help.View(HelpBindings(m.mode))

	return lipgloss.JoinVertical(lipgloss.Left, top, logBox, m.viewStatus(), helpView)
}

func (m Model) viewPanes(l layout) string {
	height := l.paneHeight

	leftStyle, rightStyle := FocusedBorder(), UnfocusedBorder()
	if m.focus == PanePackages {
		leftStyle, rightStyle = UnfocusedBorder(), FocusedBorder()
	}
	leftInner := max(l.envWidth-borderChrome, 0)
	rightInner := max(l.pkgWidth-borderChrome, 0)

	left := leftStyle.Width(leftInner).Height(height).Render(m.viewEnvironments(leftInner, height))
	right := rightStyle.Width(rightInner).Height(height).Render(m.viewPackages(rightInner, height))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m Model) viewEnvironments(width, height int) string {
	envs := m.environments()
	lines := []string{titleStyle.Render(truncate("Environments", width))}
	if len(envs) == 0 {
		if m.state.Running != nil {
			lines = append(lines, m.spinner.View()+" loading...")
		} else {
			lines = append(lines, dimStyle.Render("no environments"))
		}
		return strings.Join(lines, "\n")
	}

	rows := max(height-1, 1)
	start := max(m.cursor-rows+1, 0)
	for i := start; i < len(envs) && i < start+rows; i++ {
		env := envs[i]
		marker := " "
		if conda.IsBase(env, m.state.Connection) {
			marker = "*"
		}
		pointer := "  "
		if i == m.cursor {
			pointer = "> "
		}
		line := truncate(pointer+marker+" "+env.Name()+"  "+env.RuntimeVersion, width)
		switch {
		case i == m.cursor:
			line = cursorStyle.Render(line)
		case env.Path == m.state.Selected:
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewPackages(width, height int) string {
	title := "Packages"
	if m.state.Selected != "" {
		title = "Packages in " + envName(m.state.Selected)
	}
	lines := []string{titleStyle.Render(truncate(title, width))}

	switch {
	case m.mode == ModeFilter:
		lines = append(lines, m.filterInput.View())
	case m.query != "":
		lines = append(lines, dimStyle.Render(truncate("/"+m.query, width)))
	}

	if m.state.Selected == "" {
		lines = append(lines, dimStyle.Render("select an environment and press enter"))
		return strings.Join(lines, "\n")
	}

	pkgs := m.packages()
	if len(pkgs) == 0 {
		if m.state.Running != nil && m.state.Running.Command == conda.TagPkgList {
			lines = append(lines, m.spinner.View()+" loading...")
		} else {
			lines = append(lines, dimStyle.Render("no packages"))
		}
		return strings.Join(lines, "\n")
	}

	rows := max(height-len(lines), 1)
	for i := m.pkgOffset; i < len(pkgs) && i < m.pkgOffset+rows; i++ {
		p := pkgs[i]
		row := fmt.Sprintf("%-28s %-14s %-18s %s",
			truncate(p.Name, 28), truncate(p.Version, 14), truncate(p.Build, 18), p.Channel)
		lines = append(lines, truncate(row, width))
	}
	return strings.Join(lines, "\n")
}

// viewStatus renders the running command, then the error banner or the
// latest notice, falling back to connection details.
func (m Model) viewStatus() string {
	width := m.width
	var b strings.Builder
	if r := m.state.Running; r != nil {
		display := truncate(r.Display, width/2)
		b.WriteString(m.spinner.View() + " " + display + "  ")
		width -= runewidth.StringWidth(display) + 4
	}
	switch {
	case m.state.Banner != "":
		b.WriteString(bannerStyle.Render(truncate("error: "+m.state.Banner, width)))
	case m.notice != "":
		b.WriteString(noticeStyle.Render(truncate(m.notice, width)))
	case m.state.Running == nil && m.state.Connection != nil:
		c := m.state.Connection
		b.WriteString(dimStyle.Render(truncate(fmt.Sprintf("conda %s  python %s  %s", c.ToolVersion, c.ToolRuntimeVersion, c.RootPrefix), width)))
	}
	return b.String()
}
