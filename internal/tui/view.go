package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"legalchat/internal/domain"
	"legalchat/internal/speech"
)

// View renders the current UI.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render(fmt.Sprintf("Vakil Buddy  [%s]", m.mode))
	if m.mode == modeDraft {
		header += helpStyle.Render(fmt.Sprintf("  type: %s (ctrl+n)", m.draft.DocumentType))
	}
	if m.mode == modeAnalyze {
		header += helpStyle.Render(fmt.Sprintf("  analysis: %s (ctrl+n)", m.analysis))
	}
	if m.mode == modeSummarize {
		if att := m.draft.Attachment(); !att.IsZero() {
			header += helpStyle.Render("  attached: " + att.Name + " (ctrl+x clears)")
		}
	}

	body := logBoxStyle.Width(m.viewport.Width).Render(m.viewport.View())
	if m.picker.open {
		body = lipgloss.JoinVertical(lipgloss.Left, body, m.renderPicker())
	}
	if m.notice != "" {
		body = lipgloss.Place(m.viewport.Width+2, lipgloss.Height(body), lipgloss.Center, lipgloss.Center,
			noticeStyle.Render(m.notice+"\n\n"+helpStyle.Render("press any key")))
	}

	input := inputBoxStyle.Width(m.viewport.Width).Render(m.inputs[m.mode].View())
	help := helpStyle.Render("enter send • tab mode • ↑/↓ select • ctrl+t translate • ctrl+o attach • ctrl+r voice • ctrl+l clear • ctrl+p status • ctrl+c quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, body, input, m.renderStatus(), help)
}

func (m Model) renderStatus() string {
	var busy []string
	snapshot := m.dispatcher.Pending().Snapshot()
	for _, kind := range domain.OperationKinds {
		if snapshot[kind] {
			busy = append(busy, string(kind))
		}
	}
	line := m.status
	if len(busy) > 0 {
		line = fmt.Sprintf("%s %s in progress · %s", m.spinner.View(), strings.Join(busy, ", "), m.status)
	}
	if m.recognizer.State() == speech.StateListening {
		line = "● rec · " + line
	}
	return statusStyle.Render(line)
}

func (m Model) renderPicker() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Translate message %d\n", m.picker.index+1))
	b.WriteString(m.picker.input.View())
	b.WriteString("\n")
	if len(m.picker.options) == 0 {
		b.WriteString(helpStyle.Render("no matching language"))
	}
	const visible = 6
	start := 0
	if m.picker.cursor >= visible {
		start = m.picker.cursor - visible + 1
	}
	for i := start; i < len(m.picker.options) && i < start+visible; i++ {
		if i == m.picker.cursor {
			b.WriteString(selectedStyle.Render("› " + m.picker.options[i]))
		} else {
			b.WriteString("  " + m.picker.options[i])
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("enter translate • esc cancel"))
	return pickerStyle.Render(b.String())
}

// renderLog renders every message, highlighting sources against the question that produced them.
func (m Model) renderLog() string {
	msgs := m.store.Messages()
	if len(msgs) == 0 {
		return helpStyle.Render("No messages yet. Ask a question to get started.")
	}
	width := max(20, m.viewport.Width-4)
	var (
		b        strings.Builder
		question string
	)
	for i, msg := range msgs {
		if msg.Sender == domain.SenderUser && msg.Kind == domain.KindQuery {
			question = msg.Text
		}
		marker := "  "
		if i == m.selected {
			marker = selectedStyle.Render("› ")
		}
		b.WriteString(marker)
		b.WriteString(senderLabel(msg))
		b.WriteString("\n")
		text := msg.Text
		if msg.IsError() {
			text = errorStyle.Render(text)
		}
		b.WriteString(lipgloss.NewStyle().Width(width).PaddingLeft(2).Render(text))
		b.WriteString("\n")
		for j, src := range msg.SourceDocuments {
			line := fmt.Sprintf("[%d] %s", j+1, highlightPassage(src, question))
			b.WriteString(sourceStyle.Width(width).PaddingLeft(4).Render(line))
			b.WriteString("\n")
		}
		if msg.TranslatedText != "" {
			b.WriteString(translateStyle.Width(width).PaddingLeft(2).Render("↳ " + msg.TranslatedText))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func senderLabel(msg domain.Message) string {
	if msg.Sender == domain.SenderUser {
		return userStyle.Render("You")
	}
	if msg.IsError() {
		return errorStyle.Render("Vakil Buddy")
	}
	return botStyle.Render("Vakil Buddy")
}

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightPassage marks the sentence of passage sharing the most words with question.
func highlightPassage(passage, question string) string {
	passage = strings.TrimSpace(passage)
	if passage == "" {
		return passage
	}
	sentences := sentenceRe.FindAllString(passage, -1)
	if len(sentences) == 0 {
		sentences = []string{passage}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	best := bestSentence(sentences, wordSet(question))
	if best >= 0 {
		sentences[best] = highlightStyle.Render(sentences[best])
	}
	return strings.Join(sentences, " ")
}

// bestSentence returns the index of the sentence with the highest overlap, or -1 if nothing overlaps.
func bestSentence(sentences []string, words map[string]struct{}) int {
	best, bestScore := -1, 0
	if len(words) == 0 {
		return best
	}
	for i, s := range sentences {
		score := 0
		for w := range wordSet(s) {
			if _, ok := words[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func wordSet(s string) map[string]struct{} {
	words := wordRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
