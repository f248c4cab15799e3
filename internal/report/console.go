package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/miradorstack/dmr-correlate/internal/models"
)

var (
	colorCyan   = lipgloss.Color("#8BE9FD")
	colorGreen  = lipgloss.Color("#50FA7B")
	colorYellow = lipgloss.Color("#F1FA8C")
	colorGray   = lipgloss.Color("#6272A4")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	labelStyle = lipgloss.NewStyle().Foreground(colorGray).Width(22)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle  = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
)

// WriteConsoleSummary prints a short styled recap of a finished run.
func WriteConsoleSummary(w io.Writer, a models.Analysis, reportPath string) {
	fmt.Fprintln(w, titleStyle.Render("Analysis complete"))
	row(w, "Packets", humanize.Comma(int64(a.TotalPackets)))
	row(w, "Log entries", humanize.Comma(int64(a.TotalLogEntries)))
	row(w, "Data volume", humanize.IBytes(uint64(a.DataVolume)))
	row(w, "Voice sessions", fmt.Sprintf("%d of %d transmissions", len(a.VoiceSessions), a.VoiceTransmissions))
	row(w, "Errors", fmt.Sprintf("%d", len(a.Errors)))
	if a.Partial {
		row(w, "Completeness", warnStyle.Render(fmt.Sprintf("partial (%d errors)", len(a.Warnings))))
	} else {
		row(w, "Completeness", okStyle.Render("complete"))
	}
	row(w, "Report", reportPath)
}

func row(w io.Writer, label, value string) {
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label+":"), value))
}
