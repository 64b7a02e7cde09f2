package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newhook/cilog/internal/travis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFixture(t *testing.T, name string) *travis.Result {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	res, err := travis.Parse(string(body))
	require.NoError(t, err)
	return res
}

func TestBuild_FailedPythonJob(t *testing.T) {
	r := Build(parseFixture(t, "failed_python.txt"))

	assert.Equal(t, "python", r.Facts.Language)
	assert.Equal(t, "python2.7", r.Facts.Venv)
	assert.Equal(t, "worker-linux-docker-397f32d0.prod.travis-ci.org:travis-linux-1", r.Facts.Worker)
	assert.Equal(t, "failed", r.Facts.Outcome())
	require.NotNil(t, r.Facts.ExitCode)
	assert.Equal(t, 1, *r.Facts.ExitCode)
	assert.True(t, r.Failed())
	assert.Empty(t, r.Warnings)

	require.NotNil(t, r.Tests)
	assert.Equal(t, 4, r.Tests.Count)
	assert.Equal(t, 1250*time.Millisecond, r.Tests.Duration)
	assert.False(t, r.Tests.Passed)
	assert.Equal(t, map[string]int{"errors": 1, "failures": 1}, r.Tests.Counts)

	require.Len(t, r.Failures, 2)

	load := r.Failures[0]
	assert.Equal(t, "error", load.Kind)
	assert.Equal(t, "test_load", load.Test)
	assert.Equal(t, "tests.site_tests.TestSite", load.Suite)
	assert.Equal(t, "pywikibot/site.py", load.File)
	assert.Equal(t, 88, load.Line)
	assert.Equal(t, "ValueError: bad family", load.Message)
	assert.Equal(t, []string{"pywiki: DEBUG: loading family wikipedia"}, load.Logging)

	title := r.Failures[1]
	assert.Equal(t, "fail", title.Kind)
	assert.Equal(t, "tests/page_tests.py", title.File)
	assert.Equal(t, 40, title.Line)
	assert.Equal(t, "AssertionError: 'Foo' != 'Bar'", title.Message)
	assert.Empty(t, title.Logging)
}

func TestScriptLines_WithoutScriptSection(t *testing.T) {
	tree := travis.NewTree()
	b := travis.NewBlock("install", travis.KindCommands)
	b.Elements = append(b.Elements, &travis.Command{Echo: "$ make", Output: []string{"ok"}})
	require.NoError(t, tree.Append(b))
	note := travis.NewBlock("_worker", travis.KindBanner)
	note.Elements = append(note.Elements, &travis.Note{Lines: []string{"Using worker: w1"}})
	require.NoError(t, tree.Append(note))

	assert.Equal(t, []string{"$ make", "ok", "Using worker: w1"}, ScriptLines(tree))
}

func TestExtractFacts(t *testing.T) {
	banner := func(name string, lines ...string) *travis.Block {
		b := travis.NewBlock(name, travis.KindBanner)
		b.Elements = append(b.Elements, &travis.Note{Lines: lines})
		return b
	}
	clone := travis.NewBlock("git.checkout", travis.KindMixed)
	clone.Elements = append(clone.Elements, &travis.Command{
		Echo:   "$ git clone --depth=50 https://github.com/u/p.git u/p",
		Output: []string{"\x1b[31;1mThe command \"eval git clone --depth=50 https://github.com/u/p.git u/p\" failed 3 times.\x1b[0m"},
	})

	tests := []struct {
		name    string
		blocks  []*travis.Block
		outcome string
	}{
		{name: "No completion", blocks: []*travis.Block{banner("_worker", "Using worker: w")}, outcome: "unfinished"},
		{name: "Cancelled", blocks: []*travis.Block{banner("_job_cancelled", "Done: Job Cancelled")}, outcome: "cancelled"},
		{name: "Stalled", blocks: []*travis.Block{banner("_stalled_job_terminated", "No output has been received in the last 10 minutes")}, outcome: "stalled"},
		{name: "Log exceeded", blocks: []*travis.Block{banner("_log_exceeded_job_terminated", "The log length has exceeded the limit of 4 Megabytes")}, outcome: "log exceeded"},
		{name: "Stopped", blocks: []*travis.Block{banner("_job_stopped", "Your build has been stopped.")}, outcome: "stopped"},
		{name: "Clone failed", blocks: []*travis.Block{clone, banner("_job_stopped", "Your build has been stopped.")}, outcome: "clone failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := travis.NewTree()
			for _, b := range tt.blocks {
				require.NoError(t, tree.Append(b))
			}
			assert.Equal(t, tt.outcome, ExtractFacts(tree).Outcome())
		})
	}
}

func TestCleanLines(t *testing.T) {
	in := []string{"\x1b[31mFAIL\x1b[0m: test_x", "10%\r50%\r100%", "trailing  \r", ""}
	assert.Equal(t, []string{"FAIL: test_x", "100%", "trailing", ""}, CleanLines(in))
}
