package render

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/newhook/cilog/internal/report"
)

// Report renders a job summary: a panel of facts followed by each failure.
func (r *Renderer) Report(rep *report.Report) string {
	var facts strings.Builder
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&facts, "%s %s\n", labelStyle.Render(label+":"), value)
		}
	}

	outcome := rep.Facts.Outcome()
	if outcome == "passed" {
		outcome = successStyle.Render(outcome)
	} else {
		outcome = errorStyle.Render(outcome)
	}
	field("outcome", outcome)
	field("language", rep.Facts.Language)
	field("virtualenv", rep.Facts.Venv)
	field("worker", rep.Facts.Worker)
	if rep.Facts.ExitCode != nil {
		field("exit code", exitStyle(*rep.Facts.ExitCode).Render(fmt.Sprint(*rep.Facts.ExitCode)))
	}
	if rep.Tests != nil {
		field("tests", rep.Tests.String())
	}
	field("script lines", fmt.Sprint(rep.ScriptLines))

	var b strings.Builder
	b.WriteString(panelStyle.Width(r.opts.Width - 2).Render(strings.TrimRight(facts.String(), "\n")))
	b.WriteByte('\n')

	for _, f := range rep.Failures {
		b.WriteByte('\n')
		r.failure(&b, f)
	}
	if len(rep.Warnings) > 0 {
		b.WriteByte('\n')
		b.WriteString(r.Warnings(rep.Warnings))
	}
	return b.String()
}

func (r *Renderer) failure(b *strings.Builder, f report.Failure) {
	title := strings.ToUpper(f.Kind) + " " + f.Test
	if f.Suite != "" {
		title += " (" + f.Suite + ")"
	}
	r.line(b, 0, errorStyle.Render(title))

	if f.File != "" {
		loc := f.File
		if f.Line > 0 {
			loc = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		r.line(b, 1, labelStyle.Render(loc))
	}
	if f.Message != "" {
		width := max(r.opts.Width-len(indentUnit), 20)
		for _, l := range strings.Split(wordwrap.String(f.Message, width), "\n") {
			r.line(b, 1, l)
		}
	}
	if len(f.Logging) > 0 {
		r.line(b, 1, labelStyle.Render("captured logging:"))
		for _, l := range f.Logging {
			r.line(b, 2, dimStyle.Render(l))
		}
	}
}
