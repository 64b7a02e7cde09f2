package report

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

func init() {
	Register(&GoTestParser{})
}

// GoTestParser parses go test output, including testify assertions and the
// gotestsum summary.
type GoTestParser struct{}

var (
	// --- FAIL: TestName (0.01s)
	goFailPattern = regexp.MustCompile(`---\s*FAIL:\s*(\S+)\s*\([\d.]+s\)`)
	// === FAIL: package TestName (0.01s)
	gotestsumFailPattern = regexp.MustCompile(`===\s*FAIL:\s*(\S+)\s+(\S+)\s*\([\d.]+s\)`)
	// FAIL\tpackage/path\t0.015s
	goPackageFailPattern = regexp.MustCompile(`^FAIL\s+(\S+)\s+[\d.]+s`)

	testifyTracePattern = regexp.MustCompile(`Error Trace:\s*(.+?):(\d+)`)
	testifyErrorPattern = regexp.MustCompile(`Error:\s+(.+)`)
	goFileLinePattern   = regexp.MustCompile(`(\S+_test\.go):(\d+)`)
)

const goContextLines = 20

func (p *GoTestParser) Name() string { return "go" }

// CanParse reports whether the lines contain a go test failure.
func (p *GoTestParser) CanParse(lines []string) bool {
	for _, line := range lines {
		if strings.Contains(line, "--- FAIL:") ||
			strings.Contains(line, "=== FAIL:") ||
			strings.HasPrefix(line, "FAIL\t") {
			return true
		}
	}
	return false
}

// Parse returns one failure per failed test, in the order they were
// reported. A package failure line fills in the package of the failures
// before it that had none.
func (p *GoTestParser) Parse(lines []string) ([]Failure, error) {
	var failures []Failure
	seen := make(map[string]int)

	add := func(i int, suite, test string) {
		key := suite + "/" + test
		if _, ok := seen[key]; ok {
			return
		}
		f := Failure{Kind: "fail", Test: test, Suite: suite, Output: around(lines, i, goContextLines)}
		p.enrich(&f)
		seen[key] = len(failures)
		failures = append(failures, f)
	}

	for i, line := range lines {
		if m := gotestsumFailPattern.FindStringSubmatch(line); m != nil {
			add(i, m[1], m[2])
			continue
		}
		if m := goFailPattern.FindStringSubmatch(line); m != nil {
			add(i, "", m[1])
			continue
		}
		if m := goPackageFailPattern.FindStringSubmatch(line); m != nil {
			for j := range failures {
				if failures[j].Suite == "" {
					failures[j].Suite = m[1]
				}
			}
		}
	}
	return failures, nil
}

// enrich reads the file, line and assertion message from the output around
// a failure.
func (p *GoTestParser) enrich(f *Failure) {
	for i, line := range f.Output {
		if m := testifyTracePattern.FindStringSubmatch(line); m != nil {
			f.File = path.Base(m[1])
			f.Line, _ = strconv.Atoi(m[2])
		}

		if m := testifyErrorPattern.FindStringSubmatch(line); m != nil && f.Message == "" {
			parts := []string{strings.TrimSpace(m[1])}
			for _, next := range f.Output[i+1:] {
				next = strings.TrimSpace(next)
				if next == "" || strings.HasPrefix(next, "Error Trace:") ||
					strings.HasPrefix(next, "Test:") || strings.HasPrefix(next, "Messages:") {
					break
				}
				parts = append(parts, next)
			}
			f.Message = strings.Join(parts, " ")
		}

		if f.File == "" {
			if m := goFileLinePattern.FindStringSubmatch(line); m != nil {
				f.File = m[1]
				f.Line, _ = strconv.Atoi(m[2])
			}
		}
	}
}
