package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette.
const (
	ColorAccent   = "39"  // subjects and headers
	ColorAccentDim = "31" // scores
	ColorGray     = "245" // labels and snippets
	ColorRed      = "196" // errors
	ColorYellow   = "220" // warnings
	ColorGreen    = "154" // success
)

// Styles holds the styles used for terminal rendering.
type Styles struct {
	Header  lipgloss.Style
	Subject lipgloss.Style
	Score   lipgloss.Style
	Label   lipgloss.Style
	Snippet lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles returns colored styles bound to r.
func DefaultStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Subject: r.NewStyle().Bold(true),
		Score:   r.NewStyle().Foreground(lipgloss.Color(ColorAccentDim)),
		Label:   r.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Snippet: r.NewStyle().Foreground(lipgloss.Color(ColorGray)).Italic(true),
		Success: r.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Warning: r.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   r.NewStyle().Foreground(lipgloss.Color(ColorRed)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:  plain,
		Subject: plain,
		Score:   plain,
		Label:   plain,
		Snippet: plain,
		Success: plain,
		Warning: plain,
		Error:   plain,
	}
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}
