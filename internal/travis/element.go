package travis

import (
	"fmt"
	"strconv"
	"strings"
)

// Element is one item inside a block: a Note, Command, Timer, Fold,
// BlankLine or Activation.
type Element interface {
	element()
}

// Note is free text, such as a banner or section header.
type Note struct {
	ID    string
	Lines []string
}

// Command is an echoed invocation (the first line, starting with "$ ") and
// the output that followed it.
type Command struct {
	Echo     string   // raw echo line including colour sequences
	Output   []string // raw output lines
	ExitCode *int
}

// Timer is a timed region. Its nested elements are the commands that ran
// inside it.
type Timer struct {
	ID       string
	Start    int64
	Finish   int64
	Duration int64
	Elements []Element

	// Continues is the timer that was interrupted by a cancellation banner
	// and resumed by this one.
	Continues *Timer

	allowEmpty bool
	closed     bool
}

// Fold is a foldable region introduced by a numbered fold directive.
type Fold struct {
	ID       string
	Elements []Element

	closed bool
}

// BlankLine is an empty line that ends or separates sections.
type BlankLine struct{}

// Activation wraps the timer that activated a virtualenv.
type Activation struct {
	Timer *Timer
}

func (*Note) element()       {}
func (*Command) element()    {}
func (*Timer) element()      {}
func (*Fold) element()       {}
func (*BlankLine) element()  {}
func (*Activation) element() {}

func newCommand(echo string) *Command {
	return &Command{Echo: echo}
}

// Executed returns the invoked command line without the prompt marker.
func (c *Command) Executed() string {
	return strings.TrimPrefix(StripANSI(c.Echo), promptMarker)
}

// Lines returns the echo followed by the output, as they appeared in the log.
func (c *Command) Lines() []string {
	return append([]string{c.Echo}, c.Output...)
}

// SetExitCode records the exit code reported for the command. The exit code
// can only be recorded once.
func (c *Command) SetExitCode(code int) error {
	if c.ExitCode != nil {
		return fmt.Errorf("exit code of %q already recorded as %d", c.Executed(), *c.ExitCode)
	}
	c.ExitCode = &code
	return nil
}

func (c *Command) String() string {
	return "$ " + c.Executed()
}

// Closed reports whether the end marker for the timer has been seen.
func (t *Timer) Closed() bool { return t.closed }

// Commands returns the commands nested directly inside the timer.
func (t *Timer) Commands() []*Command {
	return commandsOf(t.Elements)
}

// Empty reports whether nothing was logged inside the timer.
func (t *Timer) Empty() bool { return len(t.Elements) == 0 }

// setParameters decodes "start=..,finish=..,duration=.." and closes the timer.
func (t *Timer) setParameters(params string) error {
	if !t.allowEmpty && t.Empty() {
		return fmt.Errorf("timer %s is empty", t.ID)
	}
	if params != "" {
		for _, pair := range strings.Split(params, ",") {
			key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok {
				return fmt.Errorf("timer %s: malformed parameter %q", t.ID, pair)
			}
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("timer %s: parameter %s: %w", t.ID, key, err)
			}
			switch key {
			case "start":
				t.Start = n
			case "finish":
				t.Finish = n
			case "duration":
				t.Duration = n
			default:
				return fmt.Errorf("timer %s: unknown parameter %q", t.ID, key)
			}
		}
	}
	t.closed = true
	if t.Continues != nil {
		t.Continues.Start, t.Continues.Finish, t.Continues.Duration = t.Start, t.Finish, t.Duration
		t.Continues.closed = true
	}
	return nil
}

func (t *Timer) String() string {
	if t.Empty() {
		return fmt.Sprintf("<empty timer %s>", t.ID)
	}
	return fmt.Sprintf("<timer %s: %d elements>", t.ID, len(t.Elements))
}

// Closed reports whether the fold end directive has been seen.
func (f *Fold) Closed() bool { return f.closed }

// Commands returns every command inside the fold, including timed ones.
func (f *Fold) Commands() []*Command {
	return commandsOf(f.Elements)
}

// commandsOf collects commands in document order, descending into timers,
// folds and activations.
func commandsOf(elements []Element) []*Command {
	var out []*Command
	for _, e := range elements {
		switch v := e.(type) {
		case *Command:
			out = append(out, v)
		case *Timer:
			out = append(out, commandsOf(v.Elements)...)
		case *Fold:
			out = append(out, commandsOf(v.Elements)...)
		case *Activation:
			out = append(out, commandsOf(v.Timer.Elements)...)
		}
	}
	return out
}

// lastCommand returns the most recent command in elements, looking inside the
// trailing timer or fold. A single trailing blank line is skipped.
func lastCommand(elements []Element) *Command {
	n := len(elements)
	if n == 0 {
		return nil
	}
	last := elements[n-1]
	if _, ok := last.(*BlankLine); ok && n > 1 {
		last = elements[n-2]
	}
	switch v := last.(type) {
	case *Command:
		return v
	case *Timer:
		return lastCommand(v.Elements)
	case *Fold:
		return lastCommand(v.Elements)
	case *Activation:
		return lastCommand(v.Timer.Elements)
	}
	return nil
}

func linesOf(elements []Element) []string {
	var out []string
	for _, e := range elements {
		switch v := e.(type) {
		case *Note:
			out = append(out, v.Lines...)
		case *Command:
			out = append(out, v.Lines()...)
		case *Timer:
			out = append(out, linesOf(v.Elements)...)
		case *Fold:
			out = append(out, linesOf(v.Elements)...)
		case *Activation:
			out = append(out, linesOf(v.Timer.Elements)...)
		case *BlankLine:
			out = append(out, "")
		}
	}
	return out
}
