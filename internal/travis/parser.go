// Package travis reconstructs the section structure of a Travis CI job log.
//
// A log is classified line by line (Classify), fed through a state machine
// (Machine) that builds an ordered tree of named blocks, and finally
// regrouped (Regroup) so that numbered or dotted siblings such as
// "git.checkout" and "git.submodule" become one composite.
package travis

import (
	"log/slog"
	"strings"

	"github.com/newhook/cilog/internal/logging"
)

// headerWindow is where the system information section of a well-formed log
// must start. Shorter logs without it may be jobs cancelled before starting.
const headerWindow = 400

// Result is a successfully parsed log.
type Result struct {
	// Tree is the regrouped tree handed to consumers.
	Tree *Tree
	// Raw is the tree as built by the state machine.
	Raw *Tree
	// Warnings lists non-fatal inconsistencies.
	Warnings []Warning
}

// Option configures Parse.
type Option func(*options)

type options struct {
	logger           *slog.Logger
	strictCompletion bool
	regroup          bool
}

func defaultOptions() options {
	return options{
		strictCompletion: true,
		regroup:          true,
	}
}

// WithLogger sets the logger used for debug output and warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStrictCompletion controls whether a completion line that does not
// follow a script section is an error (the default) or a warning.
func WithStrictCompletion(strict bool) Option {
	return func(o *options) { o.strictCompletion = strict }
}

// WithoutRegroup returns the state machine tree as Result.Tree.
func WithoutRegroup() Option {
	return func(o *options) { o.regroup = false }
}

// Parse reconstructs the structure of a complete job log.
func Parse(body string, opts ...Option) (*Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Logger()
	}

	if body == "" {
		return &Result{Tree: NewTree(), Raw: NewTree()}, nil
	}
	legacy, empty, err := inspectHeader(body)
	if err != nil {
		return nil, err
	}
	if empty {
		o.logger.Debug("job cancelled before any section started")
		return &Result{Tree: NewTree(), Raw: NewTree()}, nil
	}

	m := newMachine(o, legacy)
	for _, line := range SplitLines(body) {
		if err := m.Step(Classify(line)); err != nil {
			return nil, err
		}
	}
	if err := m.Finish(); err != nil {
		return nil, err
	}

	raw := m.Store().Tree()
	res := &Result{Tree: raw, Raw: raw, Warnings: m.Warnings()}
	if o.regroup {
		res.Tree = Regroup(raw)
	}
	o.logger.Debug("parsed job log",
		"lines", m.Line(),
		"blocks", raw.Len(),
		"sections", res.Tree.Len(),
		"warnings", len(res.Warnings),
		"legacy", legacy)
	return res, nil
}

// inspectHeader checks where the log's first section starts. Logs from
// before the system_info section existed start with a git fold and use the
// legacy grammar. A system_info fold outside the header of a long log is a
// known provider corruption, even when a git fold comes first.
func inspectHeader(body string) (legacy, empty bool, err error) {
	head := body[:min(len(body), headerWindow)]
	if strings.Contains(head, foldStartPrefix+"system_info") {
		return false, false, nil
	}
	if len(body) < headerWindow {
		if strings.HasPrefix(firstFold(body), "git") {
			return true, false, nil
		}
		return false, cancelledBeforeStart(body), nil
	}
	if i := strings.Index(body, foldStartPrefix+"system_info"); i >= 0 {
		// https://github.com/travis-ci/travis-ci/issues/4848
		return false, false, &CorruptLogError{Line: strings.Count(body[:i], "\n") + 1, Directive: "system_info"}
	}
	if strings.Contains(head, foldStartPrefix+"git") {
		return true, false, nil
	}
	return false, false, &ParseError{Msg: "log header not found"}
}

// firstFold returns the identifier of the first fold start directive.
func firstFold(body string) string {
	for _, line := range SplitLines(body) {
		if tok := Classify(line); tok.Kind == TokenFoldStart {
			return tok.ID
		}
	}
	return ""
}

// cancelledBeforeStart reports whether a short log holds nothing but the
// worker banner and a cancellation notice.
func cancelledBeforeStart(body string) bool {
	var lines []string
	for _, line := range SplitLines(body) {
		if text := strings.TrimSpace(StripANSI(line)); text != "" {
			lines = append(lines, text)
		}
	}
	if len(lines) > 0 && strings.HasPrefix(lines[0], "Using worker: ") {
		lines = lines[1:]
	}
	return len(lines) == 1 && lines[0] == "Done: Job Cancelled"
}
