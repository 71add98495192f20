package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/born-ml/clipweights/internal/inspect"
	"github.com/born-ml/clipweights/internal/loader"
)

const ruleWidth = 70

// report writes the human-readable run summary.
type report struct {
	w     io.Writer
	title lipgloss.Style
	ok    lipgloss.Style
	muted lipgloss.Style
}

func newReport(w io.Writer) *report {
	r := lipgloss.NewRenderer(w)
	return &report{
		w:     w,
		title: r.NewStyle().Bold(true),
		ok:    r.NewStyle().Foreground(lipgloss.Color("10")),
		muted: r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (r *report) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

func (r *report) banner(title string) {
	rule := strings.Repeat("=", ruleWidth)
	r.printf("%s\n%s\n%s\n", rule, r.title.Render(title), rule)
}

func (r *report) separator() {
	r.printf("%s\n", r.muted.Render(strings.Repeat("-", ruleWidth)))
}

func (r *report) bundle(label, path string, b loader.Bundle) {
	r.printf("Loading %s from: %s\n", strings.ToLower(label), path)
	r.printf("%s\n", r.ok.Render("✓ "+inspect.Summary(label, b)))
}

func (r *report) preview(b loader.Bundle, maxDisplay int) {
	r.printf("\n%s\n", inspect.Header(b))
	for line := range inspect.Lines(b, inspect.Options{ShowShapes: true, MaxDisplay: maxDisplay}) {
		r.printf("%s\n", line)
	}
	r.printf("\n")
}

func (r *report) success(msg string) {
	rule := strings.Repeat("=", ruleWidth)
	r.printf("\n%s\n%s\n%s\n", rule, r.ok.Render("✓ "+msg), rule)
}
