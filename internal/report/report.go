package report

import (
	"github.com/newhook/cilog/internal/logging"
	"github.com/newhook/cilog/internal/travis"
)

// Report is the summary of one job log.
type Report struct {
	Facts    Facts
	Tests    *TestRun // nil when no runner summary was printed
	Failures []Failure
	Warnings []travis.Warning

	// ScriptLines is the number of lines the script section printed.
	ScriptLines int
}

// Failed reports whether the job failed for any reason.
func (r *Report) Failed() bool {
	return r.Facts.Outcome() != "passed" || len(r.Failures) > 0
}

// Build summarises a parse result. Test output is read from the script
// section; when the log has none, every line of the tree is searched.
func Build(res *travis.Result) *Report {
	r := &Report{
		Facts:    ExtractFacts(res.Tree),
		Warnings: res.Warnings,
	}

	lines := CleanLines(ScriptLines(res.Tree))
	r.ScriptLines = len(lines)
	r.Tests, _ = ParseTestRun(lines)
	r.Failures = ParseFailures(lines)

	logging.Debug("built report",
		"outcome", r.Facts.Outcome(),
		"language", r.Facts.Language,
		"failures", len(r.Failures),
		"script_lines", r.ScriptLines)
	return r
}

// ScriptLines returns the raw lines of the script section, or of the whole
// tree when there is no script section.
func ScriptLines(tree *travis.Tree) []string {
	if n, ok := tree.Get("script"); ok {
		return travis.LinesOf(n)
	}
	var lines []string
	for _, n := range tree.Nodes() {
		lines = append(lines, travis.LinesOf(n)...)
	}
	return lines
}
