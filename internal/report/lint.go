package report

import (
	"fmt"
	"regexp"
	"strconv"
)

func init() {
	Register(&LintParser{})
}

// LintParser parses golangci-lint findings, plain or as GitHub annotations.
type LintParser struct{}

// Finding is a single linter report.
type Finding struct {
	File   string
	Line   int
	Column int
	Text   string
	Linter string
}

func (f Finding) String() string {
	if f.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s (%s)", f.File, f.Line, f.Column, f.Text, f.Linter)
	}
	return fmt.Sprintf("%s:%d: %s (%s)", f.File, f.Line, f.Text, f.Linter)
}

// file.go:10:5: message (linter)
var lintPattern = regexp.MustCompile(`^(?:##\[error\])?(\S+\.go):(\d+)(?::(\d+))?:\s*(.+?)\s*\(([a-z0-9-]+)\)$`)

var knownLinters = map[string]bool{
	"errcheck":    true,
	"gofmt":       true,
	"goimports":   true,
	"unused":      true,
	"staticcheck": true,
	"govet":       true,
	"gosimple":    true,
	"ineffassign": true,
	"typecheck":   true,
	"revive":      true,
	"thelper":     true,
}

func (p *LintParser) Name() string { return "golangci-lint" }

// CanParse reports whether any line is a finding from a known linter.
func (p *LintParser) CanParse(lines []string) bool {
	for _, line := range lines {
		if m := lintPattern.FindStringSubmatch(line); m != nil && knownLinters[m[5]] {
			return true
		}
	}
	return false
}

// Parse converts findings into failures.
func (p *LintParser) Parse(lines []string) ([]Failure, error) {
	findings := p.Findings(lines)
	failures := make([]Failure, 0, len(findings))
	for _, f := range findings {
		failures = append(failures, Failure{
			Kind:    "lint",
			Test:    f.Linter,
			File:    f.File,
			Line:    f.Line,
			Message: f.Text,
			Output:  []string{f.String()},
		})
	}
	return failures, nil
}

// Findings returns each distinct finding once, in log order.
func (p *LintParser) Findings(lines []string) []Finding {
	var out []Finding
	seen := make(map[string]bool)
	for _, line := range lines {
		m := lintPattern.FindStringSubmatch(line)
		if m == nil || !knownLinters[m[5]] {
			continue
		}
		key := m[1] + ":" + m[2] + ":" + m[3]
		if seen[key] {
			continue
		}
		seen[key] = true

		f := Finding{File: m[1], Text: m[4], Linter: m[5]}
		f.Line, _ = strconv.Atoi(m[2])
		f.Column, _ = strconv.Atoi(m[3])
		out = append(out, f)
	}
	return out
}

// ByLinter groups findings by linter name.
func ByLinter(findings []Finding) map[string][]Finding {
	groups := make(map[string][]Finding)
	for _, f := range findings {
		groups[f.Linter] = append(groups[f.Linter], f)
	}
	return groups
}
