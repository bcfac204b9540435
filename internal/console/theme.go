package console

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/thebtf/hcplog/pkg/models"
)

const (
	colorGreen  lipgloss.Color = "#a6e3a1"
	colorRed    lipgloss.Color = "#f38ba8"
	colorYellow lipgloss.Color = "#f9e2af"
	colorBlue   lipgloss.Color = "#89b4fa"
	colorPink   lipgloss.Color = "#f5c2e7"
	colorMuted  lipgloss.Color = "#7f849c"
)

type styles struct {
	title    lipgloss.Style
	accent   lipgloss.Style
	muted    lipgloss.Style
	message  lipgloss.Style
	err      lipgloss.Style
	statuses map[models.Status]lipgloss.Style
	feelings map[models.Sentiment]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	s := styles{
		title:   r.NewStyle().Bold(true).Foreground(colorBlue),
		accent:  r.NewStyle().Foreground(colorPink),
		muted:   r.NewStyle().Foreground(colorMuted),
		message: r.NewStyle().Italic(true),
		err:     r.NewStyle().Foreground(colorRed),
	}
	s.statuses = map[models.Status]lipgloss.Style{
		models.StatusIdle:      s.muted,
		models.StatusLoading:   r.NewStyle().Foreground(colorYellow),
		models.StatusUpdating:  r.NewStyle().Foreground(colorYellow),
		models.StatusSucceeded: r.NewStyle().Foreground(colorGreen),
		models.StatusUpdated:   r.NewStyle().Foreground(colorGreen).Bold(true),
		models.StatusFailed:    s.err.Bold(true),
	}
	s.feelings = map[models.Sentiment]lipgloss.Style{
		models.SentimentPositive: r.NewStyle().Foreground(colorGreen),
		models.SentimentNeutral:  s.muted,
		models.SentimentNegative: r.NewStyle().Foreground(colorRed),
	}
	return s
}

func (s styles) status(st models.Status) string {
	style, ok := s.statuses[st]
	if !ok {
		style = s.muted
	}
	return style.Render("[" + st.String() + "]")
}

func (s styles) sentiment(v models.Sentiment) string {
	style, ok := s.feelings[v]
	if !ok {
		return string(v)
	}
	return style.Render(string(v))
}
