package travis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		kind   TokenKind
		text   string
		id     string
		params string
	}{
		{
			name: "Plain output",
			line: "Cloning into 'legoktm/pywikibot-core'...",
			kind: TokenText,
			text: "Cloning into 'legoktm/pywikibot-core'...",
		},
		{
			name: "Coloured output",
			line: "\x1b[33;1mSetting environment variables from .travis.yml\x1b[0m",
			kind: TokenText,
			text: "Setting environment variables from .travis.yml",
		},
		{
			name: "Erase sequence only",
			line: "\x1b[0K",
			kind: TokenBlank,
		},
		{
			name: "Empty",
			line: "",
			kind: TokenBlank,
		},
		{
			name: "Command echo",
			line: "\x1b[0K$ git checkout -qf 3e6b83f",
			kind: TokenCommand,
			text: "$ git checkout -qf 3e6b83f",
		},
		{
			name: "Fold start",
			line: "travis_fold:start:git.1",
			kind: TokenFoldStart,
			text: "travis_fold:start:git.1",
			id:   "git.1",
		},
		{
			name: "Fold end after erase",
			line: "\x1b[0Ktravis_fold:end:git.1",
			kind: TokenFoldEnd,
			text: "travis_fold:end:git.1",
			id:   "git.1",
		},
		{
			name: "Timer start",
			line: "\x1b[0Ktravis_time:start:1128f657",
			kind: TokenTimerStart,
			text: "travis_time:start:1128f657",
			id:   "1128f657",
		},
		{
			name:   "Timer end",
			line:   "travis_time:end:1128f657:start=1407532615275248672,finish=1407532617304471154,duration=2029222482",
			kind:   TokenTimerEnd,
			text:   "travis_time:end:1128f657:start=1407532615275248672,finish=1407532617304471154,duration=2029222482",
			id:     "1128f657",
			params: "start=1407532615275248672,finish=1407532617304471154,duration=2029222482",
		},
		{
			name: "Timer end without parameters",
			line: "travis_time:end:1128f657",
			kind: TokenTimerEnd,
			text: "travis_time:end:1128f657",
			id:   "1128f657",
		},
		{
			name: "Directive leaking into output",
			line: "export TRAVIS_BRANCH=master; travis_wait 20",
			kind: TokenCorrupt,
			text: "export TRAVIS_BRANCH=master; travis_wait 20",
		},
		{
			name: "Quoted provider variable",
			line: `{"travis_job_id": "81691593", "service_name": "travis-ci"}`,
			kind: TokenText,
			text: `{"travis_job_id": "81691593", "service_name": "travis-ci"}`,
		},
		{
			name: "Trailing carriage return",
			line: "Ran 85 tests in 34.679s\r",
			kind: TokenText,
			text: "Ran 85 tests in 34.679s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := Classify(tt.line)
			assert.Equal(t, tt.kind, tok.Kind, "kind")
			assert.Equal(t, tt.line, tok.Raw)
			assert.Equal(t, tt.text, tok.Text)
			assert.Equal(t, tt.id, tok.ID)
			assert.Equal(t, tt.params, tok.Params)
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected []string
	}{
		{name: "Empty", body: "", expected: nil},
		{name: "Single line without newline", body: "a", expected: []string{"a"}},
		{name: "Trailing newline", body: "a\nb\n", expected: []string{"a", "b"}},
		{name: "Windows line endings", body: "a\r\nb\r\n", expected: []string{"a", "b"}},
		{name: "Bare carriage return", body: "travis_fold:start:install\r\x1b[0K$ make\n", expected: []string{"travis_fold:start:install", "\x1b[0K$ make"}},
		{name: "Blank lines kept", body: "a\n\nb", expected: []string{"a", "", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitLines(tt.body))
		})
	}
}

func TestTokenKindString(t *testing.T) {
	assert.Equal(t, "timer-end", TokenTimerEnd.String())
	assert.Equal(t, "unknown", TokenKind(99).String())
}
