package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the TUI (required by Bubble Tea)
func (m Model) View() string {
	if !m.ready {
		return "Iniciando..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.styles.Title.Render("StressGuard")
	status := "voz: no"
	if m.voice {
		status = "voz: sí"
	}
	if m.guidance {
		status += " · modo acompañamiento"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", m.styles.Subtitle.Render(status))
}

// renderTranscript renders every message plus the reply being streamed
func (m Model) renderTranscript() string {
	width := m.width - 2
	if width < 20 {
		width = 20
	}
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for _, e := range m.transcript {
		b.WriteString(wrap.Render(m.renderEntry(e)))
		b.WriteString("\n\n")
	}
	if m.partial != "" {
		b.WriteString(wrap.Render(m.styles.Assistant.Render(m.partial)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderEntry(e entry) string {
	switch e.role {
	case roleUser:
		return m.styles.User.Render("Tú: " + e.text)
	case roleNotice:
		return m.styles.Muted.Render(e.text)
	case roleError:
		return m.styles.Error.Render("✗ " + e.text)
	default:
		return m.styles.Assistant.Render(e.text)
	}
}

func (m Model) renderFooter() string {
	var lines []string

	if m.question > 0 && m.total > 0 {
		label := fmt.Sprintf(" Pregunta %d de %d", m.question, m.total)
		lines = append(lines, m.bar.ViewAs(m.progress/100)+m.styles.Muted.Render(label))
	} else {
		lines = append(lines, "")
	}

	lines = append(lines, m.renderChoices())

	if m.waiting {
		lines = append(lines, m.spinner.View()+" "+m.styles.Muted.Render("StressGuard está escribiendo..."))
	} else {
		lines = append(lines, m.input.View())
	}

	lines = append(lines, m.renderHelp())
	return strings.Join(lines, "\n")
}

func (m Model) renderChoices() string {
	if len(m.choices) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.choices))
	for i, c := range m.choices {
		if i == m.selected {
			parts = append(parts, m.styles.Highlighted.Render(c.Label))
			continue
		}
		parts = append(parts, m.styles.Choice.Render(c.Label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderHelp() string {
	bindings := []struct{ key, desc string }{
		{m.keys.Send.Help().Key, m.keys.Send.Help().Desc},
		{m.keys.Cancel.Help().Key, m.keys.Cancel.Help().Desc},
		{m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc},
		{VoiceCommand, "voz"},
	}
	if len(m.choices) > 0 {
		bindings = append(bindings, struct{ key, desc string }{m.keys.Next.Help().Key, "elegir opción"})
	}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		parts = append(parts, m.styles.Key.Render(kb.key)+" "+m.styles.KeyDesc.Render(kb.desc))
	}
	return m.styles.Help.Render(strings.Join(parts, " • "))
}
