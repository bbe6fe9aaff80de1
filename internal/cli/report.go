package cli

import (
	"fmt"
	"io"

	"github.com/aretw0/triage/pkg/validator"
	"github.com/muesli/termenv"
)

// PrintReport writes one line per finding, errors in red and warnings in yellow,
// followed by a summary line.
func PrintReport(w io.Writer, name string, r *validator.Report) {
	p := termenv.ColorProfile()
	for _, f := range r.Findings {
		color := "#facc15"
		if f.Severity == validator.SeverityError {
			color = "#f87171"
		}
		fmt.Fprintln(w, termenv.String(f.String()).Foreground(p.Color(color)))
	}

	errs, warns := len(r.Errors()), len(r.Warnings())
	switch {
	case errs > 0:
		fmt.Fprintf(w, "%s: not executable (%d errors, %d warnings)\n", name, errs, warns)
	case warns > 0:
		fmt.Fprintf(w, "%s: executable with %d warnings, entry point %q\n", name, warns, r.StartNodeID)
	default:
		fmt.Fprintf(w, "%s: valid, entry point %q\n", name, r.StartNodeID)
	}
}
