package travis

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/newhook/cilog/internal/logging"
)

// fillerPrefix names the blocks that absorb stray blank lines between
// sections.
const fillerPrefix = "_unexpected_blank_lines"

// openFold is the fold directive currently in effect.
type openFold struct {
	id    string
	block *Block
	// fold is the element for a numbered part, nil for a whole-block fold
	fold *Fold
}

// Machine is the line-by-line state machine behind Parse. Each Step consumes
// one classified line and either extends the block store or fails.
type Machine struct {
	opts   options
	log    *slog.Logger
	legacy bool

	store *Store
	line  int
	tok   Token

	timer *Timer
	fold  *openFold

	checked  *Block
	warnings []Warning
}

// NewMachine returns a machine for a log in the current format. legacy selects
// the grammar of logs that start directly with a git fold.
func NewMachine(legacy bool, opts ...Option) *Machine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Logger()
	}
	return newMachine(o, legacy)
}

func newMachine(o options, legacy bool) *Machine {
	return &Machine{
		opts:   o,
		log:    o.logger,
		legacy: legacy,
		store:  NewStore(),
	}
}

// Store exposes the blocks built so far.
func (m *Machine) Store() *Store { return m.store }

// Line is the number of lines consumed.
func (m *Machine) Line() int { return m.line }

// Warnings returns the inconsistencies noticed so far.
func (m *Machine) Warnings() []Warning {
	out := make([]Warning, len(m.warnings))
	copy(out, m.warnings)
	return out
}

// Step consumes the next line.
func (m *Machine) Step(tok Token) error {
	m.line++
	m.tok = tok

	var err error
	switch tok.Kind {
	case TokenTimerStart:
		err = m.timerStart()
	case TokenTimerEnd:
		err = m.timerEnd()
	case TokenFoldStart:
		err = m.foldStart()
	case TokenFoldEnd:
		err = m.foldEnd()
	case TokenCorrupt:
		err = fmt.Errorf("unexpected provider directive in output")
	default:
		err = m.text()
	}
	if err != nil {
		return m.wrap(err)
	}
	if err := m.checkCompletion(); err != nil {
		return m.wrap(err)
	}
	return nil
}

// Finish reports problems that only show at the end of the log.
func (m *Machine) Finish() error {
	for _, b := range m.store.Tree().Blocks() {
		if b.awaiting != nil {
			return &ParseError{
				Line:    m.line,
				Block:   b.Name,
				Command: b.awaiting.Executed(),
				Msg:     "exit code report never completed",
			}
		}
	}
	if m.timer != nil {
		m.log.Debug("log ends inside a timer", "timer", m.timer.ID)
	}
	return nil
}

func (m *Machine) wrap(err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	out := &ParseError{Line: m.line, Text: m.tok.Text, Msg: err.Error()}
	if last := m.store.Last(); last != nil {
		out.Block = last.Name
		if c := last.LastCommand(); c != nil {
			out.Command = c.Executed()
		}
	}
	return out
}

func (m *Machine) warn(block, format string, args ...any) {
	w := Warning{Line: m.line, Block: block, Message: fmt.Sprintf(format, args...)}
	m.warnings = append(m.warnings, w)
	m.log.Warn("log inconsistency", "line", w.Line, "block", w.Block, "message", w.Message)
}

func (m *Machine) appendBlock(b *Block) error {
	if err := m.store.Append(b); err != nil {
		return err
	}
	m.log.Debug("block started", "block", b.Name, "kind", b.Kind.String(), "line", m.line)
	return nil
}

// lastSection is the last block that is not blank-line filler.
func (m *Machine) lastSection() *Block {
	for i := m.store.Len() - 1; i >= 0; i-- {
		if b := m.store.At(i); !strings.HasPrefix(b.Name, fillerPrefix) {
			return b
		}
	}
	return nil
}

func (m *Machine) timerStart() error {
	id := m.tok.ID
	if id == "" {
		return fmt.Errorf("timer without identifier")
	}
	if m.timer != nil {
		return fmt.Errorf("timer %s started while timer %s is open", id, m.timer.ID)
	}
	last := m.store.Last()
	if last == nil {
		return fmt.Errorf("timer %s before any section", id)
	}

	switch {
	case last.Name == "_versions" || last.Name == "_versions-continued":
		if err := m.appendBlock(NewBlock("script", KindCommands)); err != nil {
			return err
		}
	case last.Finished() || !last.acceptsTimers():
		next, err := m.sectionAfter(m.lastSection())
		if err != nil {
			return err
		}
		if err := m.appendBlock(next); err != nil {
			return err
		}
	}

	block := m.store.Last()
	t := &Timer{ID: id, allowEmpty: block.allowsEmptyTimers()}
	block.add(t)
	m.timer = t
	return nil
}

// sectionAfter picks the implicit section that a timer opens after prev.
func (m *Machine) sectionAfter(prev *Block) (*Block, error) {
	if prev == nil {
		return nil, fmt.Errorf("timer %s before any section", m.tok.ID)
	}
	switch name := prev.Name; {
	case strings.HasSuffix(name, "_environment_variables"), name == "_container_notice", strings.HasPrefix(name, "git"):
		if m.buildLanguage() == "php" {
			return NewBlock("_activate", KindPHPActivate), nil
		}
		return NewBlock("_activate", KindActivate), nil
	case name == "_activate":
		return NewBlock("_versions-timed", KindCommands), nil
	case name == "before_script", name == "install", name == "install.bundler",
		name == "before_script-continued", name == "install-continued":
		return NewBlock("script", KindCommands), nil
	}
	return nil, fmt.Errorf("timer %s unexpected after %s", m.tok.ID, prev.Name)
}

func (m *Machine) timerEnd() error {
	id := m.tok.ID
	if m.timer == nil {
		return fmt.Errorf("end of timer %s with no open timer", id)
	}
	if m.timer.ID != id {
		return fmt.Errorf("end of timer %s while timer %s is open", id, m.timer.ID)
	}
	if err := m.timer.setParameters(m.tok.Params); err != nil {
		return err
	}
	m.timer = nil
	return nil
}

func (m *Machine) foldStart() error {
	id := m.tok.ID
	if id == "" {
		return fmt.Errorf("fold without identifier")
	}
	if m.timer != nil {
		return fmt.Errorf("fold %s started inside timer %s", id, m.timer.ID)
	}
	if m.fold != nil {
		return fmt.Errorf("fold %s started inside fold %s", id, m.fold.id)
	}
	name, err := ParseName(id)
	if err != nil {
		return err
	}
	if !name.Numbered() {
		if _, exists := m.store.Lookup(name.Key()); exists {
			return fmt.Errorf("section %s started twice", id)
		}
	}

	last := m.store.Last()
	block, err := m.store.Get(id, true, foldKind(name, m.legacy))
	if err != nil {
		return err
	}
	if last != nil && last != block && last.Status() == StatusOpen {
		return fmt.Errorf("section %s started before %s finished", id, last.Name)
	}

	open := &openFold{id: id, block: block}
	if name.Numbered() {
		open.fold = &Fold{ID: id}
		block.Elements = append(block.Elements, open.fold)
		block.closed = false
	}
	m.fold = open
	return nil
}

func (m *Machine) foldEnd() error {
	id := m.tok.ID
	if m.fold == nil {
		return fmt.Errorf("end of fold %s with no open fold", id)
	}
	if m.fold.id != id {
		return fmt.Errorf("end of fold %s while fold %s is open", id, m.fold.id)
	}
	block := m.fold.block
	if m.timer != nil && block.openTimer() == m.timer {
		return fmt.Errorf("fold %s ended while timer %s is open", id, m.timer.ID)
	}

	if last := m.store.Last(); last != block {
		switch {
		case last.Name == block.Name+"-continued":
			last.closed = true
		case last.Name == "_job_cancelled":
		default:
			return fmt.Errorf("fold %s ended after section %s", id, last.Name)
		}
	}

	if m.fold.fold != nil {
		m.fold.fold.closed = true
	}
	block.closed = true
	m.fold = nil

	if id == "announce" {
		return m.appendBlock(NewBlock("_versions-extra", KindVersions))
	}
	return nil
}

func (m *Machine) text() error {
	tok := m.tok
	detected, err := detect(tok)
	if err != nil {
		return err
	}
	if detected != nil {
		if err := m.appendBlock(detected); err != nil {
			return err
		}
		if len(detected.Elements) > 0 {
			return nil
		}
	}

	if err := m.implicitSection(); err != nil {
		return err
	}

	last := m.store.Last()
	if last == nil {
		if tok.Kind == TokenBlank {
			return nil
		}
		return fmt.Errorf("unexpected line before any section")
	}
	if last.Finished() {
		switch {
		case isVersionProbe(tok):
			if err := m.appendBlock(NewBlock("_versions", KindVersions)); err != nil {
				return err
			}
			last = m.store.Last()
		case tok.Kind == TokenBlank:
			filler := NewBlock(fmt.Sprintf("%s-%d", fillerPrefix, m.line), KindBlankLines)
			filler.Elements = append(filler.Elements, &BlankLine{})
			return m.appendBlock(filler)
		}
	}
	return last.appendLine(tok)
}

// implicitSection opens the sections that have no directive of their own and
// are recognised by what they follow.
func (m *Machine) implicitSection() error {
	if m.tok.Kind == TokenBlank {
		return nil
	}
	prev := m.lastSection()
	if prev == nil || !prev.Finished() {
		return nil
	}
	switch {
	case m.legacy && prev.Name == "_worker":
		return m.appendBlock(NewBlock("_top_env", KindCommands))
	case prev.Name == "rvm":
		if strings.Contains(m.workerName(), "jupiter") {
			return m.appendBlock(NewBlock("_versions-odd", KindRubyVersions))
		}
		return m.appendBlock(NewBlock("_versions", KindVersions))
	case prev.Name == "_activate":
		return m.appendBlock(NewBlock("_versions", KindVersions))
	case prev.Name == "_job_cancelled":
		return m.resumeAfterCancel(prev)
	case m.legacy && prev.Name == "before_install":
		return m.appendBlock(NewBlock("script", KindCommands))
	}
	return nil
}

// resumeAfterCancel handles output that continues after a cancellation
// banner. When the banner interrupted a timer, the output belongs to a
// continuation of the interrupted section.
func (m *Machine) resumeAfterCancel(banner *Block) error {
	var interrupted *Block
	for i := m.store.Tree().Index(banner.Name) - 1; i >= 0; i-- {
		b := m.store.At(i)
		if strings.HasPrefix(b.Name, fillerPrefix) {
			continue
		}
		interrupted = b
		break
	}
	if m.timer != nil && interrupted != nil && interrupted.openTimer() == m.timer {
		cont := NewBlock(interrupted.Name+"-continued", interrupted.Kind)
		t := &Timer{ID: m.timer.ID, Continues: m.timer, allowEmpty: true}
		cont.Elements = append(cont.Elements, t)
		m.timer = t
		return m.appendBlock(cont)
	}
	return m.appendBlock(NewBlock(fmt.Sprintf("_after_job_cancelled-%d", m.line), KindNote))
}

// checkCompletion compares the build exit status with the last script
// command once the completion line has been read.
func (m *Machine) checkCompletion() error {
	done := m.store.Last()
	if done == nil || done.Kind != KindCompletion || !done.Finished() || m.checked == done {
		return nil
	}
	m.checked = done
	status := *done.ExitCode

	var prev *Block
	for i := m.store.Len() - 2; i >= 0; i-- {
		b := m.store.At(i)
		switch {
		case strings.HasPrefix(b.Name, fillerPrefix),
			strings.HasPrefix(b.Name, "after_success"),
			strings.HasPrefix(b.Name, "after_failure"),
			strings.HasPrefix(b.Name, "after_script"):
			continue
		}
		prev = b
		break
	}

	if prev == nil || (prev.Name != "script" && prev.Name != "script-continued") {
		after := "the start of the log"
		if prev != nil {
			after = prev.Name
		}
		// an earlier stage failed and the job ended before the script ran
		if c := m.lastCommandBefore(done); status != 0 && c != nil && c.ExitCode != nil && *c.ExitCode != 0 {
			return nil
		}
		if m.opts.strictCompletion {
			return fmt.Errorf("build completed after %s instead of a script section", after)
		}
		m.warn(done.Name, "build completed after %s instead of a script section", after)
		return nil
	}

	c := prev.LastCommand()
	if c == nil {
		return fmt.Errorf("script section %s has no command", prev.Name)
	}
	if c.ExitCode == nil {
		return nil
	}
	switch {
	case status != 0 && *c.ExitCode == 0:
		m.warn(done.Name, "build exited with %d but %q exited with 0", status, c.Executed())
	case status == 0 && *c.ExitCode != 0:
		m.warn(done.Name, "build exited with 0 but %q exited with %d", c.Executed(), *c.ExitCode)
	}
	return nil
}

// lastCommandBefore finds the most recent command logged before block b.
func (m *Machine) lastCommandBefore(b *Block) *Command {
	i := m.store.Tree().Index(b.Name)
	for i--; i >= 0; i-- {
		if c := m.store.At(i).LastCommand(); c != nil {
			return c
		}
	}
	return nil
}

// buildLanguage reads the language from the system information section.
func (m *Machine) buildLanguage() string {
	b, ok := m.store.Lookup("system_info")
	if !ok {
		return ""
	}
	for _, n := range notesOf(b.Elements) {
		for _, line := range n.Lines {
			if lang, ok := strings.CutPrefix(StripANSI(line), "Build language: "); ok {
				return strings.TrimSpace(lang)
			}
		}
	}
	return ""
}

func (m *Machine) workerName() string {
	b, ok := m.store.Lookup("_worker")
	if !ok {
		return ""
	}
	if n := b.firstNote(); n != nil && len(n.Lines) > 0 {
		return StripANSI(n.Lines[0])
	}
	return ""
}

// notesOf collects notes, descending into folds and timers.
func notesOf(elements []Element) []*Note {
	var out []*Note
	for _, e := range elements {
		switch v := e.(type) {
		case *Note:
			out = append(out, v)
		case *Fold:
			out = append(out, notesOf(v.Elements)...)
		case *Timer:
			out = append(out, notesOf(v.Elements)...)
		}
	}
	return out
}
