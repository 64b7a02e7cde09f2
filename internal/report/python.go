package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

func init() {
	Register(&PythonParser{})
}

// PythonParser parses unittest and nose output.
type PythonParser struct{}

const (
	pySeparator    = "========================================="
	pyDivider      = "----------------------------------------------------------------------"
	pyBeginLogging = "-------------------- >> begin captured logging << --------------------"
	pyEndLogging   = "--------------------- >> end captured logging << ---------------------"
)

var (
	pyRanPattern     = regexp.MustCompile(`^Ran (\d+) tests? in (\d+(?:\.\d+)?)s$`)
	pyResultPattern  = regexp.MustCompile(`^(OK|FAILED)(?: \((.*)\))?$`)
	pyHeaderPattern  = regexp.MustCompile(`^(ERROR|FAIL): (.+?)(?: \(([^()]*)\))?$`)
	pyFrameLocation  = regexp.MustCompile(`^\s*File "([^"]+)", line (\d+)`)
	pyExceptionStart = regexp.MustCompile(`^[A-Za-z_][\w.]*(?:Error|Exception|Failure|Exit)\b`)
)

// TestRun is the summary a Python runner prints after the tests finish.
type TestRun struct {
	Count    int
	Duration time.Duration
	Passed   bool
	Counts   map[string]int // e.g. failures, errors, skip
}

func (r *TestRun) String() string {
	status := "OK"
	if !r.Passed {
		status = "FAILED"
	}
	return fmt.Sprintf("%d tests in %s: %s", r.Count, r.Duration, status)
}

// ParseTestRun returns the last runner summary in lines.
func ParseTestRun(lines []string) (*TestRun, bool) {
	var run *TestRun
	for i, line := range lines {
		m := pyRanPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		count, _ := strconv.Atoi(m[1])
		secs, _ := strconv.ParseFloat(m[2], 64)
		run = &TestRun{Count: count, Duration: time.Duration(secs * float64(time.Second))}

		for _, next := range lines[i+1:] {
			if next == "" {
				continue
			}
			if r := pyResultPattern.FindStringSubmatch(next); r != nil {
				run.Passed = r[1] == "OK"
				run.Counts = parseCounts(r[2])
			}
			break
		}
	}
	return run, run != nil
}

// parseCounts decodes "failures=1, errors=2".
func parseCounts(s string) map[string]int {
	if s == "" {
		return nil
	}
	counts := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		counts[strings.ToLower(name)] = n
	}
	return counts
}

// CanParse reports whether the lines contain a runner summary or a failure
// report.
func (p *PythonParser) CanParse(lines []string) bool {
	afterSeparator := false
	for _, line := range lines {
		if pyRanPattern.MatchString(line) {
			return true
		}
		if afterSeparator && pyHeaderPattern.MatchString(line) {
			return true
		}
		afterSeparator = strings.HasPrefix(line, pySeparator)
	}
	return false
}

func (p *PythonParser) Name() string { return "python" }

// Parse extracts one failure per ERROR or FAIL report.
//
//	======================================================================
//	FAIL: test_title (tests.page_tests.TestPage)
//	----------------------------------------------------------------------
//	Traceback (most recent call last):
//	  File "tests/page_tests.py", line 40, in test_title
//	AssertionError: 'Foo' != 'Bar'
func (p *PythonParser) Parse(lines []string) ([]Failure, error) {
	var (
		failures  []Failure
		current   *Failure
		reporting bool
		capturing bool
	)
	flush := func() {
		if current != nil {
			p.finish(current)
			failures = append(failures, *current)
			current = nil
		}
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, pySeparator):
			flush()
			reporting = true
			continue
		case !reporting:
			continue
		case line == pyBeginLogging:
			if current == nil {
				return nil, fmt.Errorf("captured logging outside a failure report")
			}
			capturing = true
			continue
		case line == pyEndLogging:
			capturing = false
			flush()
			continue
		case capturing:
			current.Logging = append(current.Logging, line)
			continue
		case pyRanPattern.MatchString(line):
			flush()
			reporting = false
			continue
		}

		if m := pyHeaderPattern.FindStringSubmatch(line); m != nil && current == nil {
			current = &Failure{Kind: strings.ToLower(m[1]), Test: m[2], Suite: m[3]}
			continue
		}
		if current != nil && line != pyDivider {
			current.Output = append(current.Output, line)
		}
	}
	flush()
	return failures, nil
}

// finish fills the location and message from the traceback.
func (p *PythonParser) finish(f *Failure) {
	for len(f.Output) > 0 && f.Output[len(f.Output)-1] == "" {
		f.Output = f.Output[:len(f.Output)-1]
	}
	for i, line := range f.Output {
		if m := pyFrameLocation.FindStringSubmatch(line); m != nil {
			f.File = m[1]
			f.Line, _ = strconv.Atoi(m[2])
			f.Message = ""
			continue
		}
		if f.Message == "" && f.File != "" && pyExceptionStart.MatchString(line) {
			f.Message = strings.Join(trimBlank(f.Output[i:]), " ")
		}
	}
	if f.Message == "" && len(f.Output) > 0 {
		f.Message = f.Output[len(f.Output)-1]
	}
}

func trimBlank(lines []string) []string {
	var out []string
	for _, line := range lines {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}
