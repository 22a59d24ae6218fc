package helper

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chat-with-docs/internal/models"
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	ContextStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// FormatSources renders ids the way answers cite them: [a, b].
func FormatSources(ids []string) string {
	return "[" + strings.Join(ids, ", ") + "]"
}

// FormatAnswer renders the response text followed by its sources. With
// showContext the retrieved chunks and scores come first.
func FormatAnswer(ans *models.Answer, showContext bool) string {
	var sb strings.Builder
	if showContext {
		for i, r := range ans.Context {
			header := MutedStyle.Render(fmt.Sprintf("#%d %s  score=%.3f", i+1, r.ID, r.Score))
			sb.WriteString(ContextStyle.Render(header + "\n" + r.Content))
			sb.WriteString("\n")
		}
	}
	sb.WriteString(TitleStyle.Render("Response:"))
	sb.WriteString(" ")
	sb.WriteString(ans.Text)
	sb.WriteString("\n")
	sb.WriteString(MutedStyle.Render("Sources: " + FormatSources(ans.Sources)))
	return sb.String()
}
