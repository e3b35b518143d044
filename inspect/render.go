package inspect

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	moduleStyle = lipgloss.NewStyle().
			Bold(true)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// Render writes a readable listing of rep. Styles apply only when styled.
func Render(w io.Writer, title string, rep *Report, styled bool) error {
	s := func(st lipgloss.Style, v string) string {
		if !styled {
			return v
		}
		return st.Render(v)
	}

	var b strings.Builder
	b.WriteString(s(titleStyle, "wasm"))
	fmt.Fprintf(&b, " %s (%d bytes)\n", title, rep.Size)
	if rep.Unchecked != nil {
		b.WriteString(s(warnStyle, fmt.Sprintf("signatures unavailable: %v", rep.Unchecked)))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nImports (%d modules):\n", len(rep.Modules))
	for _, m := range rep.Modules {
		b.WriteString("  ")
		b.WriteString(s(moduleStyle, m.Original))
		if m.Original != m.ID {
			b.WriteString(s(dimStyle, " ["+m.ID+"]"))
		}
		b.WriteString("\n")
		for _, sym := range m.Symbols {
			b.WriteString("    ")
			b.WriteString(formatSymbol(sym, s))
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\nExports (%d):\n", len(rep.Exports))
	for _, sym := range rep.Exports {
		b.WriteString("  ")
		b.WriteString(formatSymbol(sym, s))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatSymbol(sym Symbol, s func(lipgloss.Style, string) string) string {
	out := s(funcStyle, sym.Original)
	if sym.Signature != "" {
		out += s(typeStyle, sym.Signature)
	} else if sym.Kind != "function" {
		out += " " + s(typeStyle, sym.Kind)
	}
	if sym.Original != sym.ID {
		out += s(dimStyle, " ["+sym.ID+"]")
	}
	return out
}
