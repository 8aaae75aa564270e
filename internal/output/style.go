package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette, matching the colors binnacle uses elsewhere
var (
	colorLabel = lipgloss.Color("#4ccbf1") // light blue
	colorValue = lipgloss.Color("#4dca7d") // green
	colorDim   = lipgloss.Color("#9f83e4") // purple
	colorWarn  = lipgloss.Color("#f46251") // red
)

// Styler colors text for a particular output. On writers that are not terminals,
// or when NO_COLOR is set, it emits plain text.
type Styler struct {
	label lipgloss.Style
	value lipgloss.Style
	dim   lipgloss.Style
	warn  lipgloss.Style
}

// NewStyler detects the color profile of w.
func NewStyler(w io.Writer) *Styler {
	return newStyler(lipgloss.NewRenderer(w))
}

// NewPlainStyler never emits escape codes.
func NewPlainStyler(w io.Writer) *Styler {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(termenv.Ascii)
	return newStyler(r)
}

func newStyler(r *lipgloss.Renderer) *Styler {
	return &Styler{
		label: r.NewStyle().Foreground(colorLabel).Bold(true),
		value: r.NewStyle().Foreground(colorValue),
		dim:   r.NewStyle().Foreground(colorDim).Faint(true),
		warn:  r.NewStyle().Foreground(colorWarn).Bold(true),
	}
}

// Label renders a field name.
func (s *Styler) Label(text string) string {
	return s.label.Render(text)
}

// Value renders a field value.
func (s *Styler) Value(text string) string {
	return s.value.Render(text)
}

// Dim renders secondary information such as line numbers.
func (s *Styler) Dim(text string) string {
	return s.dim.Render(text)
}

// Warn renders a problem.
func (s *Styler) Warn(text string) string {
	return s.warn.Render(text)
}

// Field renders "label: value" with the label padded to width.
func (s *Styler) Field(label string, width int, value string) string {
	return fmt.Sprintf("%s %s", s.Label(fmt.Sprintf("%-*s", width, label+":")), s.Value(value))
}
