package tui

import (
	"fmt"
	"strings"

	hprogress "github.com/hashsafe/hashsafe/internal/progress"
	"github.com/hashsafe/hashsafe/internal/sanitize"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("hashsafe"))
	b.WriteString(labelStyle.Render("  SHA256 file digest"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch m.phase {
	case phaseHashing:
		b.WriteString(m.progressView())
	case phaseSucceeded:
		b.WriteString(labelStyle.Render("SHA256 "))
		b.WriteString(digestStyle.Render(m.digest))
	case phaseCancelled:
		b.WriteString(noticeStyle.Render("Cancelled"))
	case phaseFailed:
		b.WriteString(errorStyle.Render("Error: " + sanitize.Display(m.err.Error())))
	}
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m Model) progressView() string {
	var b strings.Builder
	if m.run != nil {
		b.WriteString(labelStyle.Render(sanitize.Display(m.run.Path())))
		b.WriteString("\n")
	}
	b.WriteString(m.progressBar())
	return b.String()
}

func (m Model) progressBar() string {
	s := m.snapshot
	if f, ok := s.Fraction(); ok {
		return fmt.Sprintf("%s\n%s / %s",
			m.bar.ViewAs(f),
			hprogress.FormatBytes(s.BytesProcessed),
			hprogress.FormatBytes(s.TotalBytes))
	}
	return fmt.Sprintf("%s Hashing... %s", m.spinner.View(), hprogress.FormatBytes(s.BytesProcessed))
}
