// Package report extracts a job summary from a parsed log: facts about the
// job itself plus the test and lint failures printed by its script section.
package report

import (
	"github.com/newhook/cilog/internal/logging"
)

// Failure is one failed test or lint finding.
type Failure struct {
	Kind    string   // "fail", "error" or "lint"
	Test    string   // test or linter name
	Suite   string   // package, test case class or module
	File    string   // e.g. "tests/test_site.py"
	Line    int      // 0 when unknown
	Message string   // the final error line
	Output  []string // traceback or surrounding output
	Logging []string // captured logging, when the runner printed it
}

// Parser recognises the output of one test runner or linter.
type Parser interface {
	// Name identifies the parser in logs.
	Name() string
	// CanParse reports whether the lines contain output this parser handles.
	CanParse(lines []string) bool
	// Parse extracts failures from the lines.
	Parse(lines []string) ([]Failure, error)
}

var parsers []Parser

// Register adds a parser to the registry. Parsers run in registration order.
func Register(p Parser) {
	parsers = append(parsers, p)
}

// ParseFailures runs every registered parser that recognises the lines and
// concatenates their results. A parser that fails is skipped.
func ParseFailures(lines []string) []Failure {
	var all []Failure
	for _, p := range parsers {
		if !p.CanParse(lines) {
			continue
		}
		failures, err := p.Parse(lines)
		if err != nil {
			logging.Warn("report parser failed", "parser", p.Name(), "error", err)
			continue
		}
		all = append(all, failures...)
	}
	return all
}
