package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/assistant"
	"docqa/internal/domain"
	"docqa/internal/extract"
	"docqa/internal/textutil"
)

// Port is the TUI-facing subset of the assistant.
type Port interface {
	Upload(ctx context.Context, path, docType string) (assistant.UploadResult, error)
	Ask(ctx context.Context, question string, k int) (assistant.Reply, error)
	Reload(ctx context.Context) error
}

type answerMsg struct {
	question string
	reply    assistant.Reply
	err      error
}

type uploadMsg struct {
	result assistant.UploadResult
	err    error
}

type reloadMsg struct{ err error }

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx         context.Context
	port        Port
	topK        int
	input       textinput.Model
	viewport    viewport.Model
	answer      string
	sources     []domain.SearchResult
	showSources bool
	document    string
	status      string
	cursor      int
	busy        bool
	ready       bool
	lastQuery   string
}

// New creates a chat model. intro is shown until the first answer, usually
// the summary of a document uploaded at startup. Uploads and questions run
// under ctx.
func New(ctx context.Context, port Port, topK int, document, intro string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, /load <path> [type] or /reload"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	status := "Ready. Ask a question about the document."
	if document == "" {
		status = "No document loaded. Use /load <path> [invoice|prescription|logistics|general]."
	}
	return Model{ctx: ctx, port: port, topK: topK, input: ti, viewport: vp, answer: intro, document: document, status: status}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around the body and input boxes
		_, bh := bodyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header lines, status, input box, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-bh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + describeError(msg.err)
			return m, nil
		}
		m.answer = msg.reply.Answer
		m.sources = msg.reply.Sources
		m.lastQuery = msg.question
		m.cursor = 0
		m.showSources = false
		m.status = fmt.Sprintf("Answered from %d chunk(s). Tab shows sources.", len(m.sources))
		m.refresh()
		return m, nil
	case uploadMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + describeError(msg.err)
			return m, nil
		}
		m.answer = msg.result.Summary
		m.sources = nil
		m.showSources = false
		if msg.result.Empty {
			m.status = msg.result.Summary
		} else {
			m.document = msg.result.Source
			m.status = fmt.Sprintf("Loaded %s as %s: %d chunk(s).", msg.result.Source, msg.result.DocType, msg.result.Ingest.ChunkCount)
		}
		m.refresh()
		return m, nil
	case reloadMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + describeError(msg.err)
			return m, nil
		}
		m.status = "Index reloaded."
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			return m.submit(line)
		case "tab":
			if len(m.sources) > 0 {
				m.showSources = !m.showSources
				m.refresh()
			}
			return m, nil
		case "down":
			if m.showSources && len(m.sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.sources)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.showSources && len(m.sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.sources)) % len(m.sources)
				m.refresh()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	if line == "/quit" {
		return m, tea.Quit
	}
	ctx, port := m.ctx, m.port
	if line == "/reload" {
		m.busy = true
		m.status = "Reloading index..."
		return m, func() tea.Msg {
			return reloadMsg{err: port.Reload(ctx)}
		}
	}
	if strings.HasPrefix(line, "/load") {
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields) > 3 {
			m.status = "Usage: /load <path> [invoice|prescription|logistics|general]"
			return m, nil
		}
		path, docType := fields[1], ""
		if len(fields) == 3 {
			docType = fields[2]
		}
		m.busy = true
		m.status = "Processing " + path + "..."
		return m, func() tea.Msg {
			res, err := port.Upload(ctx, path, docType)
			return uploadMsg{result: res, err: err}
		}
	}
	m.busy = true
	m.status = "Thinking..."
	k := m.topK
	return m, func() tea.Msg {
		reply, err := port.Ask(ctx, line, k)
		return answerMsg{question: line, reply: reply, err: err}
	}
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Q&A")
	doc := "no document"
	if m.document != "" {
		doc = m.document
	}
	sub := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(doc)
	input := inputBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	body := bodyBoxStyle.Render(m.viewport.View())
	return header + "\n" + sub + "\n" + body + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderBody())
	m.viewport.GotoTop()
}

func (m Model) renderBody() string {
	if m.showSources && len(m.sources) > 0 {
		r := m.sources[m.cursor]
		title := fmt.Sprintf("Source %d/%d  chunk #%d  score=%.3f", m.cursor+1, len(m.sources), r.Chunk.Index, r.Score)
		return title + "\n\n" + highlightBestSentence(r.Chunk.Text, m.lastQuery)
	}
	if m.answer == "" {
		return "No answer yet."
	}
	return m.answer
}

// describeError turns service errors into messages for the status line.
func describeError(err error) string {
	switch domain.KindOf(err) {
	case domain.KindConcurrentIngest:
		return "another document is still being processed, try again shortly"
	case domain.KindTimeout:
		return "the operation timed out"
	case domain.KindDimensionMismatch:
		return "the index was built with a different embedding model; re-upload the document"
	case domain.KindEmbedding:
		return "the embedding model failed: " + err.Error()
	case domain.KindIngest:
		return "could not index the document: " + err.Error()
	}
	if errors.Is(err, extract.ErrUnsupportedFormat) {
		return "unsupported file type"
	}
	return err.Error()
}

var (
	bodyBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func highlightBestSentence(text, query string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	qTokens := textutil.TokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		if score := textutil.Overlap(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}
