package presenter

import "github.com/charmbracelet/lipgloss"

var (
	accentColor  = lipgloss.Color("#ff8c00")
	mutedColor   = lipgloss.Color("244")
	successColor = lipgloss.Color("#a3be8c")
	warningColor = lipgloss.Color("#ffd166")
	errorColor   = lipgloss.Color("9")
	featureColor = lipgloss.Color("#7f5af0")
)

// styles are built per renderer so that output to a non-terminal writer
// degrades to plain text
type styles struct {
	header   lipgloss.Style
	helper   lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	error    lipgloss.Style
	card     lipgloss.Style
	cardHead lipgloss.Style
	label    lipgloss.Style
	featured lipgloss.Style
	chip     lipgloss.Style
	chipOn   lipgloss.Style
	page     lipgloss.Style
	pageOn   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, width int) styles {
	return styles{
		header:   r.NewStyle().Bold(true).Foreground(accentColor),
		helper:   r.NewStyle().Foreground(mutedColor),
		success:  r.NewStyle().Foreground(successColor),
		warning:  r.NewStyle().Foreground(warningColor),
		error:    r.NewStyle().Foreground(errorColor),
		card:     r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accentColor).Padding(0, 1).Width(width),
		cardHead: r.NewStyle().Bold(true),
		label:    r.NewStyle().Foreground(mutedColor),
		featured: r.NewStyle().Foreground(featureColor).Italic(true),
		chip:     r.NewStyle().Padding(0, 1),
		chipOn:   r.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#0f0f0f")).Background(warningColor),
		page:     r.NewStyle().Padding(0, 1),
		pageOn:   r.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")),
	}
}
