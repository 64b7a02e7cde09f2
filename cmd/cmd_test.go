package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/newhook/cilog/internal/config"
	"github.com/newhook/cilog/internal/logstore"
	"github.com/newhook/cilog/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = "../internal/report/testdata/failed_python.txt"

type cliEnv struct {
	t      *testing.T
	dir    string
	config string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	cfg := &config.Config{Cache: config.CacheConfig{Path: filepath.Join(dir, "logs.db")}}
	require.NoError(t, cfg.Save(path))
	return &cliEnv{t: t, dir: dir, config: path}
}

// writeLogs lays out the fixture as an importable log tree next to a file
// that is not a log, and returns the tree's root.
func (e *cliEnv) writeLogs() string {
	e.t.Helper()
	body, err := os.ReadFile(fixture)
	require.NoError(e.t, err)
	logs := filepath.Join(e.dir, "logs")
	repo := filepath.Join(logs, "wikimedia", "pywikibot-core")
	require.NoError(e.t, os.MkdirAll(repo, 0755))
	require.NoError(e.t, os.WriteFile(filepath.Join(repo, "2215.3-failed.txt"), body, 0644))
	require.NoError(e.t, os.WriteFile(filepath.Join(repo, "notes.txt"), []byte("x"), 0644))
	return logs
}

// run executes the root command and returns what it wrote to stdout.
func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	flagParseRaw, flagParseJSON, flagParseAll = false, false, false
	flagReportFail, flagShowBody, flagConfigForce = false, false, false
	flagImportReport, flagImportWatch = false, false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := Execute()
	return out.String(), err
}

func TestParseCommand_JSON(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("parse", "--json", fixture)
	require.NoError(t, err)

	var summary treeSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Empty(t, summary.Warnings)

	nodes := make(map[string]nodeSummary)
	for _, n := range summary.Nodes {
		nodes[n.Name] = n
	}
	assert.Equal(t, "block", nodes["_worker"].Type)
	assert.Equal(t, "block", nodes["install"].Type)
	assert.Equal(t, 1, nodes["install"].Commands)
	assert.Equal(t, "commands", nodes["script"].Kind)
	assert.Equal(t, 1, nodes["script"].Commands)

	last := summary.Nodes[len(summary.Nodes)-1]
	assert.Equal(t, "_done", last.Name)
	assert.Equal(t, "done", last.Status)
	require.NotNil(t, last.ExitCode)
	assert.Equal(t, 1, *last.ExitCode)
}

func TestParseCommand_Raw(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("parse", "--raw", "--json", fixture)
	require.NoError(t, err)

	var summary treeSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	for _, n := range summary.Nodes {
		assert.Equal(t, "block", n.Type, n.Name)
	}
}

func TestParseCommand_Tree(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("parse", "--all", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "install")
	assert.Contains(t, out, "$ nosetests -v tests")
	assert.Contains(t, out, "FAILED (errors=1, failures=1)")
	assert.NotContains(t, out, "more lines")
}

func TestParseCommand_MissingFile(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run("parse", filepath.Join(env.dir, "absent.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read log")
}

func TestExecute_CancelsContextOnError(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run("parse", filepath.Join(env.dir, "absent.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, GetContext().Err(), context.Canceled)
}

func TestReportCommand_File(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("report", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "outcome: failed")
	assert.Contains(t, out, "language: python")
	assert.Contains(t, out, "ERROR test_load (tests.site_tests.TestSite)")
	assert.Contains(t, out, "FAIL test_title (tests.page_tests.TestPage)")

	_, err = env.run("report", "--fail", fixture)
	assert.ErrorContains(t, err, "1 job(s) failed")
}

func TestReportCommand_RejectsWebURL(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run("report", "https://travis-ci.org/wikimedia/pywikibot-core/jobs/91813547")
	assert.ErrorContains(t, err, "invalid slug")
}

func TestCacheCommands(t *testing.T) {
	env := newCLIEnv(t)

	body, err := os.ReadFile(fixture)
	require.NoError(t, err)
	logs := env.writeLogs()

	out, err := env.run("cache", "import", logs)
	require.NoError(t, err)
	assert.Equal(t, "Imported 1 log(s)\n", out)

	out, err = env.run("cache", "list")
	require.NoError(t, err)
	assert.Equal(t, "wikimedia/pywikibot-core\n", out)

	out, err = env.run("cache", "list", "wikimedia/pywikibot-core")
	require.NoError(t, err)
	assert.Contains(t, out, "wikimedia/pywikibot-core/2215.3")
	assert.Regexp(t, `2215\.3\s+failed\s+failed`, out)

	out, err = env.run("cache", "show", "--body", "wikimedia/pywikibot-core/2215.3")
	require.NoError(t, err)
	assert.Equal(t, string(body), out)

	out, err = env.run("cache", "show", "wikimedia/pywikibot-core/2215.3")
	require.NoError(t, err)
	assert.Contains(t, out, "$ nosetests -v tests")

	_, err = env.run("cache", "show", "wikimedia/pywikibot-core")
	assert.ErrorContains(t, err, "does not name a job")

	out, err = env.run("report", "wikimedia/pywikibot-core")
	require.NoError(t, err)
	assert.Contains(t, out, "wikimedia/pywikibot-core/2215.3 (failed)")
	assert.Contains(t, out, "pywikibot/site.py:88")

	out, err = env.run("cache", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied migrations (2)")

	out, err = env.run("cache", "rm", "wikimedia/pywikibot-core/2215")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 log(s)\n", out)

	out, err = env.run("cache", "list")
	require.NoError(t, err)
	assert.Equal(t, "No logs stored\n", out)

	_, err = env.run("report", "wikimedia/pywikibot-core")
	assert.Error(t, err)
}

func TestCacheImport_Report(t *testing.T) {
	env := newCLIEnv(t)
	logs := env.writeLogs()

	out, err := env.run("cache", "import", "--report", logs)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Imported 1 log(s)\n\n"), out)
	assert.Contains(t, out, "wikimedia/pywikibot-core/2215.3 (failed)")
	assert.Contains(t, out, "outcome: failed")
	assert.Contains(t, out, "pywikibot/site.py:88")
}

func TestImportReport_SharesParseCache(t *testing.T) {
	env := newCLIEnv(t)
	logs := env.writeLogs()
	ctx := context.Background()

	store, err := logstore.Open(ctx, filepath.Join(env.dir, "shared.db"))
	require.NoError(t, err)
	defer store.Close()

	jobs, err := store.Import(ctx, logs)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	cache := newParseCache()
	assert.Equal(t, 0, recordOutcomes(ctx, store, cache, jobs))
	assert.Equal(t, logstore.CacheStats{Hits: 0, Misses: 1}, cache.Stats())

	var out bytes.Buffer
	failed := writeJobReports(ctx, &out, render.New(renderOptions()), store, cache, jobs)
	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "outcome: failed")
	assert.Equal(t, logstore.CacheStats{Hits: 1, Misses: 1}, cache.Stats())

	got, err := store.Get(ctx, jobs[0].Slug)
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Outcome)
}

func TestConfigCommands(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[parser]")
	assert.Contains(t, out, filepath.Join(env.dir, "logs.db"))

	_, err = env.run("config", "init")
	assert.ErrorContains(t, err, "already exists")

	out, err = env.run("config", "init", "--force")
	require.NoError(t, err)
	assert.Equal(t, "Wrote "+env.config+"\n", out)
}
