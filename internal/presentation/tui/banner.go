package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the triage banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct{ text, color string }{
		{"  _        _                 ", "#34d399"},
		{" | |_ _ __(_) __ _  __ _  ___ ", "#2dd4bf"},
		{" | __| '__| |/ _` |/ _` |/ _ \\", "#22d3ee"},
		{" | |_| |  | | (_| | (_| |  __/", "#38bdf8"},
		{"  \\__|_|  |_|\\__,_|\\__, |\\___|", "#60a5fa"},
		{"                   |___/      ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
