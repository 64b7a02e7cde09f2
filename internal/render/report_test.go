package render

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"

	"github.com/newhook/cilog/internal/report"
	"github.com/newhook/cilog/internal/travis"
)

func TestRenderer_Report(t *testing.T) {
	rep := &report.Report{
		Facts: report.Facts{Language: "python", Venv: "python2.7", ExitCode: intp(1)},
		Tests: &report.TestRun{Count: 4, Passed: false},
		Failures: []report.Failure{{
			Kind:    "error",
			Test:    "test_load",
			Suite:   "tests.site_tests.TestSite",
			File:    "pywikibot/site.py",
			Line:    88,
			Message: "ValueError: bad family",
			Logging: []string{"pywiki: DEBUG: loading family wikipedia"},
		}},
		Warnings:    []travis.Warning{{Line: 3, Message: "odd"}},
		ScriptLines: 30,
	}

	out := ansi.Strip(New(Options{Width: 60}).Report(rep))

	for _, want := range []string{
		"outcome: failed",
		"language: python",
		"virtualenv: python2.7",
		"exit code: 1",
		"tests: 4 tests in 0s: FAILED",
		"script lines: 30",
		"ERROR test_load (tests.site_tests.TestSite)",
		"  pywikibot/site.py:88",
		"  ValueError: bad family",
		"    pywiki: DEBUG: loading family wikipedia",
		"warning: line 3: odd",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "worker:")

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, ansi.StringWidth(line), 60, line)
	}
}

func TestRenderer_ReportWrapsMessages(t *testing.T) {
	rep := &report.Report{
		Facts: report.Facts{ExitCode: intp(0)},
		Failures: []report.Failure{{
			Kind:    "fail",
			Test:    "test_title",
			Message: "AssertionError: the rendered title of the main page does not match the title stored in the database",
		}},
	}

	out := ansi.Strip(New(Options{Width: 40}).Report(rep))
	assert.Contains(t, out, "outcome: passed")
	assert.Contains(t, out, "  AssertionError: the rendered title of")
}
