package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"legalchat/internal/domain"
	"legalchat/internal/service"
	"legalchat/internal/session"
	"legalchat/internal/speech"
)

type mode int

const (
	modeAsk mode = iota
	modeSummarize
	modeDraft
	modeAnalyze
	modeCount
)

func (m mode) String() string {
	switch m {
	case modeSummarize:
		return "Summarize"
	case modeDraft:
		return "Draft"
	case modeAnalyze:
		return "Analyze"
	default:
		return "Ask"
	}
}

// analysis is the document analysis run by Analyze mode.
type analysis int

const (
	analyzeEntities analysis = iota
	analyzeCitations
	analyzeCompare
	analysisCount
)

func (a analysis) String() string {
	switch a {
	case analyzeCitations:
		return "citations"
	case analyzeCompare:
		return "compare"
	default:
		return "entities"
	}
}

type callDoneMsg struct{ outcome service.Outcome }

type statusMsg struct {
	text string
	err  error
}

type speechResultMsg struct{ text string }

type speechErrorMsg struct{ err error }

// Model is the Bubble Tea model for the chat client.
type Model struct {
	ctx        context.Context
	dispatcher *service.Dispatcher
	store      *session.Store
	draft      *session.Draft
	recognizer *speech.Recognizer
	speechCh   chan tea.Msg
	log        *zap.Logger

	mode     mode
	analysis analysis
	inputs   [modeCount]textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	picker   picker

	selected     int
	followTail   bool
	status       string
	notice       string
	voiceEnabled bool
	ready        bool
	width        int
}

// New creates a new TUI model instance.
func New(ctx context.Context, dispatcher *service.Dispatcher, store *session.Store, recognizer *speech.Recognizer, log *zap.Logger) Model {
	if log == nil {
		log = zap.NewNop()
	}
	if recognizer == nil {
		recognizer = speech.NewRecognizer(nil)
	}
	var inputs [modeCount]textinput.Model
	placeholders := [modeCount]string{
		modeAsk:       "Ask a legal question and press Enter",
		modeSummarize: "PDF path on the server (Enter), or a local file path then ctrl+o to attach",
		modeDraft:     "Describe the notice or summons to draft",
		modeAnalyze:   "PDF path on the server; for compare: first.pdf | second.pdf",
	}
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = "> "
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 0
		inputs[i] = ti
	}
	inputs[modeAsk].Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:          ctx,
		dispatcher:   dispatcher,
		store:        store,
		draft:        session.NewDraft(),
		recognizer:   recognizer,
		speechCh:     make(chan tea.Msg, 4),
		log:          log,
		inputs:       inputs,
		viewport:     viewport.New(0, 0),
		spinner:      sp,
		picker:       newPicker(),
		selected:     store.Len() - 1,
		followTail:   true,
		voiceEnabled: recognizer.State() != speech.StateUnavailable,
		status:       "Loaded. Tab switches Ask / Summarize / Draft / Analyze.",
	}
	ch := m.speechCh
	recognizer.OnResult(func(text string) { ch <- speechResultMsg{text: text} })
	recognizer.OnError(func(err error) { ch <- speechErrorMsg{err: err} })
	return m
}

// Init starts the cursor blink, checks the backend and listens for speech events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.checkStatus(), waitForSpeech(m.speechCh))
}

// Update handles key, window and completion events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, lh := logBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + 1 + ih + 1 // header, status, help, input box, input line
		vh := msg.Height - reserved - lh
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, vh)
		m.refresh()
		return m, nil

	case callDoneMsg:
		if msg.outcome.Failed() {
			m.status = fmt.Sprintf("%s failed", msg.outcome.Kind)
		} else {
			m.status = fmt.Sprintf("%s done", msg.outcome.Kind)
		}
		if msg.outcome.Kind != domain.OpTranslate {
			m.followTail = true
		}
		m.refresh()
		return m, nil

	case statusMsg:
		if msg.err != nil {
			m.status = "Backend unreachable: " + msg.err.Error()
		} else {
			m.status = "Backend: " + msg.text
		}
		return m, nil

	case speechResultMsg:
		in := &m.inputs[modeAsk]
		in.SetValue(strings.TrimSpace(strings.TrimSpace(in.Value()) + " " + msg.text))
		in.CursorEnd()
		m.status = "Voice input captured."
		return m, waitForSpeech(m.speechCh)

	case speechErrorMsg:
		m.log.Warn("voice input failed", zap.Error(msg.err))
		switch {
		case errors.Is(msg.err, speech.ErrPermissionDenied):
			m.notice = "Microphone access was denied. Voice input stopped."
		case errors.Is(msg.err, speech.ErrUnsupported):
			m.voiceEnabled = false
			m.notice = "Voice input is not supported on this machine."
		default:
			m.status = "Voice input failed: " + msg.err.Error()
		}
		return m, waitForSpeech(m.speechCh)

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.recognizer.Stop()
			return m, tea.Quit
		}
		if m.notice != "" {
			m.notice = ""
			return m, nil
		}
		if m.picker.open {
			return m.updatePicker(msg)
		}
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.inputs[m.mode], cmd = m.inputs[m.mode].Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.submit()
	case "tab":
		m.inputs[m.mode].Blur()
		m.mode = (m.mode + 1) % modeCount
		m.inputs[m.mode].Focus()
		return m, textinput.Blink
	case "ctrl+n":
		if m.mode == modeAnalyze {
			m.analysis = (m.analysis + 1) % analysisCount
			m.status = fmt.Sprintf("Analysis: %s", m.analysis)
			return m, nil
		}
		if m.draft.DocumentType == domain.DocumentNotice {
			m.draft.DocumentType = domain.DocumentSummons
		} else {
			m.draft.DocumentType = domain.DocumentNotice
		}
		m.status = fmt.Sprintf("Document type: %s", m.draft.DocumentType)
		return m, nil
	case "ctrl+o":
		m.attach()
		return m, nil
	case "ctrl+x":
		m.draft.ClearDocument()
		m.status = "Document selection cleared."
		return m, nil
	case "up":
		if n := m.store.Len(); n > 0 {
			m.selected = (m.selected - 1 + n) % n
			m.followTail = false
			m.refresh()
		}
		return m, nil
	case "down":
		if n := m.store.Len(); n > 0 {
			m.selected = (m.selected + 1) % n
			m.followTail = m.selected == n-1
			m.refresh()
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "ctrl+t":
		if m.selected >= 0 && m.selected < m.store.Len() {
			m.picker = m.picker.toggle(m.selected)
		}
		return m, nil
	case "ctrl+l":
		if err := m.store.Clear(m.ctx); err != nil {
			m.status = "History cleared, but saving failed: " + err.Error()
		} else {
			m.status = "History cleared."
		}
		m.selected = -1
		m.followTail = true
		m.refresh()
		return m, nil
	case "ctrl+p":
		m.status = "Checking backend..."
		return m, m.checkStatus()
	case "ctrl+r":
		return m.toggleVoice()
	}
	var cmd tea.Cmd
	m.inputs[m.mode], cmd = m.inputs[m.mode].Update(msg)
	return m, cmd
}

// submit hands the current input to the dispatcher. Rejected submissions change nothing.
func (m Model) submit() (tea.Model, tea.Cmd) {
	in := &m.inputs[m.mode]
	var (
		call *service.Call
		ok   bool
	)
	switch m.mode {
	case modeAsk:
		m.draft.Question = in.Value()
		call, ok = m.dispatcher.BeginQuery(m.ctx, m.draft)
		if ok {
			in.SetValue(m.draft.Question)
		}
	case modeSummarize:
		// a typed path only selects the document when nothing is attached
		if strings.TrimSpace(in.Value()) != "" && m.draft.Attachment().IsZero() {
			m.draft.SetPDFPath(in.Value())
		}
		call, ok = m.dispatcher.BeginSummarize(m.ctx, m.draft)
		if ok {
			in.Reset()
		}
	case modeDraft:
		m.draft.Prompt = in.Value()
		call, ok = m.dispatcher.BeginGenerateDocument(m.ctx, m.draft)
		if ok {
			in.SetValue(m.draft.Prompt)
		}
	case modeAnalyze:
		call, ok = m.beginAnalysis(in.Value())
		if ok {
			in.Reset()
		}
	}
	if !ok {
		return m, nil
	}
	m.status = fmt.Sprintf("%s sent...", call.Kind())
	m.followTail = true
	m.refresh()
	return m, tea.Batch(m.run(call), m.spinner.Tick)
}

func (m Model) beginAnalysis(value string) (*service.Call, bool) {
	switch m.analysis {
	case analyzeCitations:
		return m.dispatcher.BeginExtractCitations(m.ctx, value)
	case analyzeCompare:
		a, b, ok := splitPair(value)
		if !ok {
			return nil, false
		}
		return m.dispatcher.BeginCompareDocuments(m.ctx, a, b)
	default:
		return m.dispatcher.BeginExtractEntities(m.ctx, value)
	}
}

// splitPair reads "a | b", or two whitespace separated paths.
func splitPair(value string) (string, string, bool) {
	if a, b, found := strings.Cut(value, "|"); found {
		return strings.TrimSpace(a), strings.TrimSpace(b), true
	}
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+t":
		m.picker = m.picker.close()
		return m, nil
	case "enter":
		lang, ok := m.picker.selected()
		index := m.picker.index
		m.picker = m.picker.close()
		if !ok {
			return m, nil
		}
		call, ok := m.dispatcher.BeginTranslate(m.ctx, index, lang)
		if !ok {
			m.status = translateRejection(m.dispatcher, m.store, index)
			return m, nil
		}
		m.status = fmt.Sprintf("Translating message %d to %s...", index+1, lang)
		m.refresh()
		return m, tea.Batch(m.run(call), m.spinner.Tick)
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.update(msg)
	return m, cmd
}

func translateRejection(d *service.Dispatcher, store *session.Store, index int) string {
	if d.InFlight(domain.OpTranslate) {
		return "Translation already in progress."
	}
	msg, ok := store.At(index)
	if !ok {
		return fmt.Sprintf("Message %d no longer exists.", index+1)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return fmt.Sprintf("Message %d has no text to translate.", index+1)
	}
	return "Translation was not started."
}

func (m *Model) attach() {
	path := strings.TrimSpace(m.inputs[modeSummarize].Value())
	if path == "" {
		m.status = "Type a local file path in Summarize mode, then ctrl+o."
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		m.status = "Cannot attach: " + err.Error()
		return
	}
	m.draft.SetAttachment(&domain.Attachment{Name: filepath.Base(path), Content: data})
	m.inputs[modeSummarize].Reset()
	m.status = fmt.Sprintf("Attached %s (%d bytes). Press Enter in Summarize mode.", filepath.Base(path), len(data))
}

func (m Model) toggleVoice() (tea.Model, tea.Cmd) {
	if !m.voiceEnabled {
		m.notice = "Voice input is not supported on this machine."
		return m, nil
	}
	if m.recognizer.State() == speech.StateListening {
		m.recognizer.Stop()
		m.status = "Stopped listening."
		return m, nil
	}
	if err := m.recognizer.Start(m.ctx); err != nil {
		if errors.Is(err, speech.ErrUnsupported) {
			m.voiceEnabled = false
			m.notice = "Voice input is not supported on this machine."
		} else {
			m.status = "Voice input failed: " + err.Error()
		}
		return m, nil
	}
	m.status = "Listening... (ctrl+r to stop)"
	return m, nil
}

func (m Model) run(call *service.Call) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return callDoneMsg{outcome: call.Run(ctx)}
	}
}

func (m Model) checkStatus() tea.Cmd {
	d, ctx := m.dispatcher, m.ctx
	return func() tea.Msg {
		text, err := d.Status(ctx)
		return statusMsg{text: text, err: err}
	}
}

func waitForSpeech(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

func (m Model) busy() bool {
	for _, inFlight := range m.dispatcher.Pending().Snapshot() {
		if inFlight {
			return true
		}
	}
	return false
}

// refresh re-renders the log into the viewport, keeping the selected message in range.
func (m *Model) refresh() {
	n := m.store.Len()
	if m.followTail || m.selected >= n {
		m.selected = n - 1
	}
	m.viewport.SetContent(m.renderLog())
	if m.followTail {
		m.viewport.GotoBottom()
	}
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	logBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	noticeStyle    = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("9")).Padding(1, 3)
	pickerStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	botStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	translateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Italic(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
