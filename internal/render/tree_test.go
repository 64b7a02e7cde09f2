package render

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newhook/cilog/internal/travis"
)

func plain(s string) []string {
	return strings.Split(strings.TrimRight(ansi.Strip(s), "\n"), "\n")
}

func intp(n int) *int { return &n }

func sampleTree(t *testing.T) *travis.Tree {
	t.Helper()
	tree := travis.NewTree()

	worker := travis.NewBlock("_worker", travis.KindBanner)
	worker.Elements = append(worker.Elements, &travis.Note{Lines: []string{"\x1b[33mUsing worker: w1\x1b[0m"}}, &travis.BlankLine{})
	require.NoError(t, tree.Append(worker))

	install := travis.NewBlock("install", travis.KindCommands)
	install.Elements = append(install.Elements, &travis.Timer{
		ID:       "0b2f0c3a",
		Duration: 2431374959,
		Elements: []travis.Element{&travis.Command{
			Echo:     "$ pip install -r requirements.txt",
			Output:   []string{"Collecting six", "Collecting mwparserfromhell", "Installing collected packages"},
			ExitCode: intp(0),
		}},
	})
	require.NoError(t, tree.Append(install))

	filler := travis.NewBlock("_unexpected_blank_lines-9", travis.KindBlankLines)
	filler.Elements = append(filler.Elements, &travis.BlankLine{})
	require.NoError(t, tree.Append(filler))

	done := travis.NewBlock("_done", travis.KindCompletion)
	done.ExitCode = intp(1)
	done.Elements = append(done.Elements, &travis.Note{Lines: []string{"Done. Your build exited with 1."}})
	require.NoError(t, tree.Append(done))
	return tree
}

func TestRenderer_Tree(t *testing.T) {
	out := plain(New(Options{Width: 80, MaxOutputLines: 2}).Tree(sampleTree(t)))

	assert.Equal(t, []string{
		"_worker banner",
		"  Using worker: w1",
		"install commands",
		"  timer 0b2f0c3a (running)",
		"    $ pip install -r requirements.txt [0]",
		"      Collecting six",
		"      Collecting mwparserfromhell",
		"      ... 1 more lines",
		"_done completion exit 1",
		"  Done. Your build exited with 1.",
	}, out)
}

func TestRenderer_AllOutput(t *testing.T) {
	out := strings.Join(plain(New(Options{Width: 80, MaxOutputLines: -1}).Tree(sampleTree(t))), "\n")
	assert.Contains(t, out, "Installing collected packages")
	assert.NotContains(t, out, "more lines")
}

func TestRenderer_TruncatesToWidth(t *testing.T) {
	for _, line := range plain(New(Options{Width: 24, MaxOutputLines: -1}).Tree(sampleTree(t))) {
		assert.LessOrEqual(t, ansi.StringWidth(line), 24, line)
	}
}

func TestRenderer_Regrouped(t *testing.T) {
	tree := travis.NewTree()
	for _, name := range []string{"git.checkout", "git.submodule", "install", "nosetests", "_done"} {
		b := travis.NewBlock(name, travis.KindMixed)
		require.NoError(t, tree.Append(b))
	}
	out := plain(New(Options{}).Tree(travis.Regroup(tree)))

	assert.Equal(t, []string{
		"git group of 2: checkout, submodule",
		"  git.checkout mixed",
		"  git.submodule mixed",
		"install mixed",
		"script synthesized",
		"  nosetests mixed",
		"_done mixed",
	}, out)
}

func TestRenderer_Warnings(t *testing.T) {
	out := plain(New(Options{}).Warnings([]travis.Warning{{Line: 40, Block: "_done", Message: "build exited with 1 but the last command exited with 0"}}))
	assert.Equal(t, []string{"warning: line 40: _done: build exited with 1 but the last command exited with 0"}, out)
}
