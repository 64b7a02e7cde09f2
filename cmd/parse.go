package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/newhook/cilog/internal/logging"
	"github.com/newhook/cilog/internal/logstore"
	"github.com/newhook/cilog/internal/render"
	"github.com/newhook/cilog/internal/travis"
	"github.com/spf13/cobra"
)

var (
	flagParseRaw  bool
	flagParseJSON bool
	flagParseAll  bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a job log and print its structure",
	Long: `Parse a complete Travis CI job log and print the reconstructed tree of
sections, commands and timers. Use "-" to read the log from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&flagParseRaw, "raw", false, "show blocks as parsed, without regrouping")
	parseCmd.Flags().BoolVar(&flagParseJSON, "json", false, "print a JSON summary instead of the tree")
	parseCmd.Flags().BoolVarP(&flagParseAll, "all", "a", false, "show every output line of each command")
}

func runParse(cmd *cobra.Command, args []string) error {
	body, err := readLog(cmd, args[0])
	if err != nil {
		return err
	}

	res, err := newParseCache().Parse(body)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}
	tree := res.Tree
	if flagParseRaw {
		tree = res.Raw
	}

	out := cmd.OutOrStdout()
	if flagParseJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summarize(tree, res.Warnings))
	}

	opts := renderOptions()
	if flagParseAll {
		opts.MaxOutputLines = -1
	}
	r := render.New(opts)
	fmt.Fprint(out, r.Tree(tree))
	if len(res.Warnings) > 0 {
		fmt.Fprint(cmd.ErrOrStderr(), r.Warnings(res.Warnings))
	}
	return nil
}

// readLog reads a log file, or stdin when path is "-".
func readLog(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read log: %w", err)
	}
	return string(data), nil
}

// parseOptions translates the [parser] config section.
func parseOptions() []travis.Option {
	c := getConfig()
	opts := []travis.Option{
		travis.WithLogger(logging.Logger()),
		travis.WithStrictCompletion(c.Parser.IsStrictCompletion()),
	}
	if !c.Parser.ShouldRegroup() {
		opts = append(opts, travis.WithoutRegroup())
	}
	return opts
}

func newParseCache() *logstore.ParseCache {
	return logstore.NewParseCache(getConfig().Cache.MemoryTTL(), parseOptions()...)
}

func logCacheStats(cache *logstore.ParseCache) {
	stats := cache.Stats()
	logging.Debug("parse cache", "hits", stats.Hits, "misses", stats.Misses, "entries", cache.Len())
}

func renderOptions() render.Options {
	c := getConfig()
	return render.Options{
		Width:          c.Render.GetWidth(),
		MaxOutputLines: c.Render.GetMaxOutputLines(),
	}
}

type nodeSummary struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Kind     string        `json:"kind,omitempty"`
	Status   string        `json:"status,omitempty"`
	ExitCode *int          `json:"exit_code,omitempty"`
	Commands int           `json:"commands"`
	Lines    int           `json:"lines"`
	Items    []nodeSummary `json:"items,omitempty"`
}

type treeSummary struct {
	Nodes    []nodeSummary `json:"nodes"`
	Warnings []string      `json:"warnings,omitempty"`
}

func summarize(tree *travis.Tree, warnings []travis.Warning) treeSummary {
	s := treeSummary{Nodes: summarizeNodes(tree.Nodes())}
	for _, w := range warnings {
		s.Warnings = append(s.Warnings, w.String())
	}
	return s
}

func summarizeNodes(nodes []travis.Node) []nodeSummary {
	out := make([]nodeSummary, 0, len(nodes))
	for _, n := range nodes {
		ns := nodeSummary{
			Name:     n.NodeName(),
			Commands: len(travis.CommandsOf(n)),
			Lines:    len(travis.LinesOf(n)),
		}
		switch v := n.(type) {
		case *travis.Block:
			ns.Type = "block"
			ns.Kind = v.Kind.String()
			ns.Status = v.Status().String()
			ns.ExitCode = v.ExitCode
		case *travis.Group:
			ns.Type = "group"
			ns.Items = summarizeNodes(v.Items)
		case *travis.Script:
			ns.Type = "script"
			ns.Items = summarizeNodes(v.Items)
		}
		out = append(out, ns)
	}
	return out
}
