package travis

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError reports a structural violation: the log does not follow the
// block/command/timer ordering the parser expects.
type ParseError struct {
	Line    int    // 1-based line number, 0 when the error is not tied to a line
	Block   string // name of the block open at the time, if any
	Command string // echo text of the current command, if any
	Text    string // colour-stripped offending line
	Msg     string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	b.WriteString(e.Msg)
	if e.Block != "" {
		fmt.Fprintf(&b, " (block %s", e.Block)
		if e.Command != "" {
			fmt.Fprintf(&b, ", command %q", e.Command)
		}
		b.WriteString(")")
	}
	if e.Text != "" {
		fmt.Fprintf(&b, ": %q", e.Text)
	}
	return b.String()
}

// CorruptLogError reports a log matching a known provider-side corruption
// signature. Callers may prefer to refetch the log rather than treat it as a
// parser defect.
type CorruptLogError struct {
	Line      int
	Directive string
}

func (e *CorruptLogError) Error() string {
	return fmt.Sprintf("corrupt log: %s directive at line %d is outside the log header", e.Directive, e.Line)
}

// IsCorrupt reports whether err is, or wraps, a CorruptLogError.
func IsCorrupt(err error) bool {
	var ce *CorruptLogError
	return errors.As(err, &ce)
}

// IsParseError reports whether err is, or wraps, a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Warning is a non-fatal inconsistency found while parsing.
type Warning struct {
	Line    int
	Block   string
	Message string
}

func (w Warning) String() string {
	if w.Block == "" {
		return fmt.Sprintf("line %d: %s", w.Line, w.Message)
	}
	return fmt.Sprintf("line %d: %s: %s", w.Line, w.Block, w.Message)
}

// blockError is returned by block-level append rules, which know nothing about
// line numbers. The parser converts it into a ParseError.
type blockError struct {
	msg string
}

func (e *blockError) Error() string { return e.msg }

func blockErrorf(format string, args ...any) error {
	return &blockError{msg: fmt.Sprintf(format, args...)}
}
