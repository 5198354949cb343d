package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = newRunStyles(runColors{
	heading: "#7D56F4",
	done:    "#04B575",
	failed:  "#FF0000",
	retried: "#FFA500",
	detail:  "#626262",
})

type runColors struct {
	heading, done, failed, retried, detail string
}

// runStyles holds one style per kind of line on the enrichment screens.
type runStyles struct {
	heading lipgloss.Style
	done    lipgloss.Style
	failed  lipgloss.Style
	retried lipgloss.Style
	detail  lipgloss.Style
}

func newRunStyles(c runColors) runStyles {
	fg := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}
	return runStyles{
		heading: fg(c.heading).Bold(true).MarginBottom(1),
		done:    fg(c.done).Bold(true),
		failed:  fg(c.failed).Bold(true),
		retried: fg(c.retried),
		detail:  fg(c.detail).Italic(true),
	}
}
