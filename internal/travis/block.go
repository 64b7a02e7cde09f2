package travis

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind selects how a block accepts lines and when it is finished.
type Kind int

const (
	// KindNote collects every line into a single note.
	KindNote Kind = iota
	// KindCommands is a sequence of commands; output belongs to the most
	// recent command and exit code reports are folded into it.
	KindCommands
	// KindMixed is KindCommands that also accepts a leading note. It is the
	// default for fold-delimited sections.
	KindMixed
	// KindVersions is the implicit "print toolchain versions" section.
	KindVersions
	// KindRubyVersions is the OS X variant of KindVersions, which ends after
	// bundler reports its version.
	KindRubyVersions
	// KindActivate holds exactly one timed command.
	KindActivate
	// KindPHPActivate is the phpenv activation, which may install PHP first.
	KindPHPActivate
	// KindGit is the legacy multi-part checkout section. It never finishes on
	// its own because the number of parts varies.
	KindGit
	// KindApt is the apt addon section, headed by a note.
	KindApt
	// KindBanner is a provider message recognised by its first line.
	KindBanner
	// KindExact is a provider message that must match verbatim.
	KindExact
	// KindEnvironment is a header followed by exported variables.
	KindEnvironment
	// KindBlankLines holds one stray blank line between sections.
	KindBlankLines
	// KindCompletion is the final build status line.
	KindCompletion
)

var kindNames = [...]string{
	KindNote:         "note",
	KindCommands:     "commands",
	KindMixed:        "mixed",
	KindVersions:     "versions",
	KindRubyVersions: "ruby-versions",
	KindActivate:     "activate",
	KindPHPActivate:  "php-activate",
	KindGit:          "git",
	KindApt:          "apt",
	KindBanner:       "banner",
	KindExact:        "exact",
	KindEnvironment:  "environment",
	KindBlankLines:   "blank-lines",
	KindCompletion:   "completion",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Status is the completion state of a block.
type Status int

const (
	// StatusIndeterminate blocks have no terminator of their own and may end
	// whenever the next section starts.
	StatusIndeterminate Status = iota
	// StatusOpen blocks are still waiting for their terminator.
	StatusOpen
	// StatusDone blocks accept no more lines.
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusIndeterminate:
		return "indeterminate"
	case StatusOpen:
		return "open"
	case StatusDone:
		return "done"
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

// bannerEnd says how a KindBanner block terminates.
type bannerEnd int

const (
	endNone bannerEnd = iota
	endBlankLine
	endSingleLine
)

// Block is a named section of a job log.
type Block struct {
	Name     string
	Kind     Kind
	Elements []Element

	// ExitCode is the build exit status of a KindCompletion block.
	ExitCode *int

	end    bannerEnd
	expect []string
	closed bool

	// awaiting is the command named by an exit code report that spans lines
	awaiting *Command
}

// NewBlock returns an empty block.
func NewBlock(name string, kind Kind) *Block {
	return &Block{Name: name, Kind: kind}
}

// NodeName implements Node.
func (b *Block) NodeName() string { return b.Name }

// Len is the number of top-level elements.
func (b *Block) Len() int { return len(b.Elements) }

// Commands returns every command in the block in document order.
func (b *Block) Commands() []*Command { return commandsOf(b.Elements) }

// LastCommand returns the most recent command, or nil.
func (b *Block) LastCommand() *Command { return lastCommand(b.Elements) }

// Notes returns the top-level notes.
func (b *Block) Notes() []*Note {
	var out []*Note
	for _, e := range b.Elements {
		if n, ok := e.(*Note); ok {
			out = append(out, n)
		}
	}
	return out
}

// Timers returns the top-level timers.
func (b *Block) Timers() []*Timer {
	var out []*Timer
	for _, e := range b.Elements {
		if t, ok := e.(*Timer); ok {
			out = append(out, t)
		}
	}
	return out
}

// Finished reports whether the block accepts no more lines.
func (b *Block) Finished() bool { return b.Status() == StatusDone }

// Status reports the block's completion state.
func (b *Block) Status() Status {
	switch b.Kind {
	case KindNote, KindCommands, KindMixed, KindVersions, KindApt:
		if b.closed {
			return StatusDone
		}
		return StatusIndeterminate
	case KindGit:
		return StatusIndeterminate
	case KindRubyVersions:
		c := b.LastCommand()
		if c != nil && c.Executed() == "bundle --version" && len(c.Output) == 2 {
			return StatusDone
		}
		return StatusOpen
	case KindActivate:
		if len(b.Elements) == 1 {
			t, ok := b.Elements[0].(*Timer)
			if a, wrapped := b.Elements[0].(*Activation); wrapped {
				t, ok = a.Timer, true
			}
			if ok && t.closed && len(t.Elements) == 1 {
				if c, ok := t.Elements[0].(*Command); ok && len(c.Output) == 0 {
					return StatusDone
				}
			}
		}
		return StatusOpen
	case KindPHPActivate:
		return b.phpActivateStatus()
	case KindBanner:
		switch b.end {
		case endSingleLine:
			if n := b.firstNote(); n != nil && len(n.Lines) == 1 {
				return StatusDone
			}
			return StatusOpen
		case endBlankLine:
			return b.blankLineStatus()
		}
		return StatusIndeterminate
	case KindEnvironment:
		return b.blankLineStatus()
	case KindExact:
		if n := b.firstNote(); n != nil && len(n.Lines) == len(b.expect) {
			return StatusDone
		}
		return StatusOpen
	case KindBlankLines:
		if len(b.Elements) == 1 {
			return StatusDone
		}
		return StatusOpen
	case KindCompletion:
		if b.ExitCode != nil {
			return StatusDone
		}
		return StatusOpen
	}
	return StatusIndeterminate
}

func (b *Block) blankLineStatus() Status {
	if n := len(b.Elements); n > 0 {
		if _, ok := b.Elements[n-1].(*BlankLine); ok {
			return StatusDone
		}
	}
	return StatusOpen
}

const phpInstallCommand = "phpenv global 7 2>/dev/null"

// phpActivateStatus: a plain "phpenv global" is done once timed; when the
// requested version is not pre-installed the provider installs it in several
// timers and re-runs "phpenv global 7" at the end.
func (b *Block) phpActivateStatus() Status {
	if len(b.Elements) == 0 {
		return StatusOpen
	}
	first, ok := b.Elements[0].(*Timer)
	if !ok || !first.closed || len(first.Commands()) == 0 {
		return StatusOpen
	}
	if first.Commands()[0].Executed() != phpInstallCommand {
		return StatusDone
	}
	if len(b.Elements) > 3 {
		last, ok := b.Elements[len(b.Elements)-1].(*Timer)
		if ok && last.closed {
			if cmds := last.Commands(); len(cmds) > 0 && cmds[len(cmds)-1].Executed() == "phpenv global 7" {
				return StatusDone
			}
		}
	}
	return StatusOpen
}

func (b *Block) firstNote() *Note {
	if len(b.Elements) == 0 {
		return nil
	}
	n, _ := b.Elements[0].(*Note)
	return n
}

// allowsEmptyTimers reports whether timers in this block may close without
// any logged lines.
func (b *Block) allowsEmptyTimers() bool {
	switch b.Kind {
	case KindGit, KindPHPActivate, KindRubyVersions:
		return true
	}
	return false
}

// acceptsTimers reports whether a timer may start inside the block. Provider
// banners and the bookkeeping blocks never hold timed commands.
func (b *Block) acceptsTimers() bool {
	switch b.Kind {
	case KindBanner, KindExact, KindEnvironment, KindBlankLines, KindCompletion:
		return false
	}
	return true
}

// slots counts the elements that occupy a sequence position for numbered
// folds. Blank lines and empty bookkeeping timers do not.
func (b *Block) slots() int {
	n := 0
	for _, e := range b.Elements {
		switch v := e.(type) {
		case *BlankLine:
			continue
		case *Timer:
			if v.closed && v.Empty() {
				continue
			}
		}
		n++
	}
	return n
}

// container returns the element list new elements are added to: the
// innermost open fold or timer at the end of the block, or the block itself.
func (b *Block) container() *[]Element {
	c := &b.Elements
	for {
		n := len(*c)
		if n == 0 {
			return c
		}
		switch v := (*c)[n-1].(type) {
		case *Fold:
			if !v.closed {
				c = &v.Elements
				continue
			}
		case *Timer:
			if !v.closed {
				c = &v.Elements
				continue
			}
		}
		return c
	}
}

// add appends an element to the current container.
func (b *Block) add(e Element) {
	c := b.container()
	*c = append(*c, e)
}

// openTimer returns the open timer at the end of the block, if any.
func (b *Block) openTimer() *Timer {
	elements := b.Elements
	var open *Timer
	for len(elements) > 0 {
		switch v := elements[len(elements)-1].(type) {
		case *Fold:
			if v.closed {
				return open
			}
			elements = v.Elements
			continue
		case *Timer:
			if v.closed {
				return open
			}
			open = v
			elements = v.Elements
			continue
		}
		return open
	}
	return open
}

var (
	exitCodePattern = regexp.MustCompile(`^The command "(.*)" (?:failed and )?exited with (-?\d+)(?: during [^.]*)?\.?$`)
	exitCodeTail    = regexp.MustCompile(`" (?:failed and )?exited with (-?\d+)(?: during [^.]*)?\.?$`)
	completionLine  = regexp.MustCompile(`^Done\. Your build exited with (-?\d+)\.$`)
	versionProbe    = regexp.MustCompile(`(?:--version|[ ]-version|[ ]version|[ ]-v|[ ]-V)$`)
)

const exitCodePrefix = `The command "`

// appendLine adds one non-directive line to the block according to its kind.
func (b *Block) appendLine(tok Token) error {
	switch b.Kind {
	case KindNote:
		return b.appendNoteLine(tok)
	case KindCommands, KindPHPActivate:
		return b.appendCommandLine(tok, false)
	case KindMixed, KindGit:
		return b.appendCommandLine(tok, true)
	case KindApt:
		if len(b.Elements) == 0 {
			if !strings.Contains(tok.Text, "Installing APT Packages") {
				return blockErrorf("apt section must start with its header")
			}
			b.Elements = append(b.Elements, &Note{Lines: []string{tok.Raw}})
			return nil
		}
		return b.appendCommandLine(tok, true)
	case KindVersions, KindRubyVersions:
		return b.appendVersionLine(tok)
	case KindActivate:
		c := b.container()
		if tok.Kind != TokenCommand || c == &b.Elements || len(*c) != 0 {
			return blockErrorf("activation holds a single timed command")
		}
		*c = append(*c, newCommand(tok.Raw))
		return nil
	case KindBanner:
		if b.Finished() {
			return blockErrorf("block %s is finished", b.Name)
		}
		if tok.Kind == TokenBlank {
			b.Elements = append(b.Elements, &BlankLine{})
			return nil
		}
		n := b.firstNote()
		n.Lines = append(n.Lines, tok.Raw)
		return nil
	case KindEnvironment:
		if b.Finished() {
			return blockErrorf("block %s is finished", b.Name)
		}
		switch tok.Kind {
		case TokenBlank:
			b.Elements = append(b.Elements, &BlankLine{})
		case TokenCommand:
			b.Elements = append(b.Elements, newCommand(tok.Raw))
		default:
			return blockErrorf("expected an exported variable")
		}
		return nil
	case KindExact:
		n := b.firstNote()
		if len(n.Lines) >= len(b.expect) {
			return blockErrorf("block %s is finished", b.Name)
		}
		if want := b.expect[len(n.Lines)]; tok.Text != want {
			return blockErrorf("expected %q", want)
		}
		n.Lines = append(n.Lines, tok.Raw)
		return nil
	case KindBlankLines:
		if tok.Kind != TokenBlank {
			return blockErrorf("expected a blank line")
		}
		b.Elements = append(b.Elements, &BlankLine{})
		return nil
	case KindCompletion:
		if b.ExitCode != nil {
			return blockErrorf("build exit status already recorded")
		}
		m := completionLine.FindStringSubmatch(tok.Text)
		if m == nil {
			return blockErrorf("malformed completion line")
		}
		code, err := strconv.Atoi(m[1])
		if err != nil {
			return blockErrorf("completion exit code: %v", err)
		}
		b.ExitCode = &code
		b.Elements = append(b.Elements, &Note{Lines: []string{tok.Raw}})
		return nil
	}
	return blockErrorf("unhandled block kind %s", b.Kind)
}

func (b *Block) appendNoteLine(tok Token) error {
	c := b.container()
	if n := len(*c); n > 0 {
		if note, ok := (*c)[n-1].(*Note); ok {
			note.Lines = append(note.Lines, tok.Raw)
			return nil
		}
	}
	*c = append(*c, &Note{Lines: []string{tok.Raw}})
	return nil
}

func (b *Block) appendCommandLine(tok Token, leadingNote bool) error {
	if handled, err := b.interceptExitCode(tok); handled || err != nil {
		return err
	}
	c := b.container()
	if tok.Kind == TokenCommand {
		*c = append(*c, newCommand(tok.Raw))
		return nil
	}
	if cmd, note := outputTarget(*c); cmd != nil {
		cmd.Output = append(cmd.Output, tok.Raw)
		return nil
	} else if note != nil {
		note.Lines = append(note.Lines, tok.Raw)
		return nil
	}
	if tok.Kind == TokenBlank {
		*c = append(*c, &BlankLine{})
		return nil
	}
	if !leadingNote && c == &b.Elements {
		return blockErrorf("output before any command")
	}
	*c = append(*c, &Note{Lines: []string{tok.Raw}})
	return nil
}

func (b *Block) appendVersionLine(tok Token) error {
	c := b.container()
	if tok.Kind == TokenCommand {
		executed := strings.TrimPrefix(tok.Text, promptMarker)
		if !strings.HasPrefix(executed, "export ") && !versionProbe.MatchString(executed) {
			return blockErrorf("%q is not a version probe", executed)
		}
		*c = append(*c, newCommand(tok.Raw))
		return nil
	}
	cmd, _ := outputTarget(*c)
	if cmd == nil {
		return blockErrorf("version output before any command")
	}
	cmd.Output = append(cmd.Output, tok.Raw)
	return nil
}

// interceptExitCode turns "The command ... exited with N." into the exit code
// of the most recent command.
func (b *Block) interceptExitCode(tok Token) (bool, error) {
	if b.awaiting != nil {
		m := exitCodeTail.FindStringSubmatch(tok.Text)
		if m == nil {
			return true, nil
		}
		cmd := b.awaiting
		b.awaiting = nil
		code, _ := strconv.Atoi(m[1])
		if err := cmd.SetExitCode(code); err != nil {
			return true, blockErrorf("%v", err)
		}
		return true, nil
	}
	if !strings.HasPrefix(tok.Text, exitCodePrefix) {
		return false, nil
	}
	last := b.LastCommand()
	if m := exitCodePattern.FindStringSubmatch(tok.Text); m != nil {
		if last == nil {
			return true, blockErrorf("exit code reported for %q with no command", m[1])
		}
		if m[1] != last.Executed() {
			return true, blockErrorf("exit code reported for %q but the last command is %q", m[1], last.Executed())
		}
		code, err := strconv.Atoi(m[2])
		if err != nil {
			return true, blockErrorf("exit code: %v", err)
		}
		if err := last.SetExitCode(code); err != nil {
			return true, blockErrorf("%v", err)
		}
		return true, nil
	}
	// a multi-line command is quoted across several lines
	if last != nil && tok.Text[len(exitCodePrefix):] == last.Executed() {
		b.awaiting = last
		return true, nil
	}
	return false, nil
}

// outputTarget finds where an output line belongs: the trailing command or
// note, looking inside a closed timer, fold or activation.
func outputTarget(elements []Element) (*Command, *Note) {
	if len(elements) == 0 {
		return nil, nil
	}
	switch v := elements[len(elements)-1].(type) {
	case *Command:
		return v, nil
	case *Note:
		return nil, v
	case *Timer:
		return outputTarget(v.Elements)
	case *Fold:
		return outputTarget(v.Elements)
	case *Activation:
		return outputTarget(v.Timer.Elements)
	}
	return nil, nil
}

func (b *Block) String() string {
	return fmt.Sprintf("<block %s (%s, %d elements)>", b.Name, b.Kind, len(b.Elements))
}
