package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/research-writer/internal/model"
)

// Shown instead of any partial output when a run aborts.
const fatalNotice = "Something went wrong while writing your article. Please rephrase the query or try again."

var (
	stageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#20B9B4"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))

	noticeBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#E74C3C")).
			Padding(0, 1)
)

// progressLine renders one stage outcome for stderr.
func progressLine(res model.StageResult) string {
	status := okStyle.Render("ok")
	switch res.Status {
	case model.StageStatusDegraded:
		status = warnStyle.Render("degraded")
	case model.StageStatusFailed:
		status = errStyle.Render("failed")
	}
	line := fmt.Sprintf("%s %s %s", stageStyle.Render(fmt.Sprintf("%-13s", res.Name)), status, mutedStyle.Render(fmt.Sprintf("(%dms)", res.Duration)))
	if res.Error != "" {
		line += " " + mutedStyle.Render(res.Error)
	}
	return line
}

func fatalBox() string {
	return noticeBoxStyle.Render(errStyle.Render(fatalNotice))
}

// writeRecord renders rec in the requested format.
func writeRecord(w io.Writer, rec *model.Record, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(rec), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	case "markdown", "":
		_, err := io.WriteString(w, renderMarkdown(rec))
		return eris.Wrap(err, "write markdown")
	default:
		return eris.Errorf("unknown format %q", format)
	}
}

// renderMarkdown prints the article followed by its sources.
func renderMarkdown(rec *model.Record) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(rec.Article))
	b.WriteString("\n")

	if sources := rec.Sources(); len(sources) > 0 {
		b.WriteString("\n---\n\nSources:\n\n")
		for i, s := range sources {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, "\n> Note: %s\n", rec.Error)
	}
	return b.String()
}
