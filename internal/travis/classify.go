package travis

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// TokenKind classifies one physical line of a job log.
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenBlank
	TokenCommand
	TokenFoldStart
	TokenFoldEnd
	TokenTimerStart
	TokenTimerEnd
	TokenCorrupt
)

var tokenKindNames = [...]string{
	TokenText:       "text",
	TokenBlank:      "blank",
	TokenCommand:    "command",
	TokenFoldStart:  "fold-start",
	TokenFoldEnd:    "fold-end",
	TokenTimerStart: "timer-start",
	TokenTimerEnd:   "timer-end",
	TokenCorrupt:    "corrupt",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "unknown"
}

// Provider directive prefixes. See travis-build's header.sh for the emitter.
const (
	foldStartPrefix  = "travis_fold:start:"
	foldEndPrefix    = "travis_fold:end:"
	timerStartPrefix = "travis_time:start:"
	timerEndPrefix   = "travis_time:end:"
	providerMarker   = "travis_"
	promptMarker     = "$ "
)

// Token is a classified log line.
type Token struct {
	Kind   TokenKind
	Raw    string // line as it appeared in the log
	Text   string // colour and control sequences removed
	ID     string // fold or timer identifier
	Params string // timer end parameters, e.g. "start=1,finish=2,duration=1"
}

// Classify strips colour sequences from line and determines its kind.
func Classify(line string) Token {
	text := StripANSI(line)
	tok := Token{Raw: line, Text: text}

	switch {
	case strings.HasPrefix(text, foldStartPrefix):
		tok.Kind = TokenFoldStart
		tok.ID = strings.TrimSpace(text[len(foldStartPrefix):])
	case strings.HasPrefix(text, foldEndPrefix):
		tok.Kind = TokenFoldEnd
		tok.ID = strings.TrimSpace(text[len(foldEndPrefix):])
	case strings.HasPrefix(text, timerStartPrefix):
		tok.Kind = TokenTimerStart
		tok.ID = strings.TrimSpace(text[len(timerStartPrefix):])
	case strings.HasPrefix(text, timerEndPrefix):
		tok.Kind = TokenTimerEnd
		rest := strings.TrimSpace(text[len(timerEndPrefix):])
		tok.ID, tok.Params, _ = strings.Cut(rest, ":")
	case strings.HasPrefix(text, promptMarker):
		tok.Kind = TokenCommand
	case text == "":
		tok.Kind = TokenBlank
	case strings.Contains(text, providerMarker) && !strings.Contains(text, `"`+providerMarker):
		// ruby coveralls quotes travis variables in its payload; anything
		// else is a directive leaking into command output
		tok.Kind = TokenCorrupt
	default:
		tok.Kind = TokenText
	}
	return tok
}

// StripANSI removes colour and cursor control sequences and any trailing
// carriage return from a single line.
func StripANSI(line string) string {
	return strings.TrimRight(ansi.Strip(line), "\r")
}

var lineBreakPattern = regexp.MustCompile(`\r\n|\r|\n`)

// SplitLines splits a log body into physical lines. Progress output uses bare
// carriage returns, which count as line breaks. A trailing line break does not
// produce an empty final line.
func SplitLines(body string) []string {
	if body == "" {
		return nil
	}
	lines := lineBreakPattern.Split(body, -1)
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
