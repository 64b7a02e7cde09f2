package report

import (
	"regexp"
	"strings"

	"github.com/newhook/cilog/internal/travis"
)

// Facts describes how a job ran, independent of what its tests printed.
type Facts struct {
	Language    string
	Worker      string
	Venv        string
	CloneFailed bool
	Cancelled   bool
	Stopped     bool
	Stalled     bool
	LogExceeded bool
	ExitCode    *int
}

// Outcome names the way the job ended.
func (f Facts) Outcome() string {
	switch {
	case f.CloneFailed:
		return "clone failed"
	case f.Cancelled:
		return "cancelled"
	case f.Stalled:
		return "stalled"
	case f.LogExceeded:
		return "log exceeded"
	case f.Stopped:
		return "stopped"
	case f.ExitCode == nil:
		return "unfinished"
	case *f.ExitCode == 0:
		return "passed"
	}
	return "failed"
}

var (
	venvPattern  = regexp.MustCompile(`^source ~/virtualenv/(.+)/bin/activate$`)
	clonePattern = regexp.MustCompile(`^The command "eval git (?:clone|checkout|submodule update)\b.*" failed 3 times\.$`)
)

const (
	languagePrefix = "Build language: "
	workerPrefix   = "Using worker: "
)

// ExtractFacts reads the job facts from a parsed tree, raw or regrouped.
func ExtractFacts(tree *travis.Tree) Facts {
	f := Facts{
		Cancelled:   tree.Has("_job_cancelled"),
		Stopped:     tree.Has("_job_stopped"),
		Stalled:     tree.Has("_stalled_job_terminated"),
		LogExceeded: tree.Has("_log_exceeded_job_terminated"),
	}
	if done, ok := tree.Block("_done"); ok {
		f.ExitCode = done.ExitCode
	}

	for _, n := range tree.Nodes() {
		for _, line := range CleanLines(travis.LinesOf(n)) {
			switch {
			case f.Language == "" && strings.HasPrefix(line, languagePrefix):
				f.Language = strings.TrimPrefix(line, languagePrefix)
			case f.Worker == "" && strings.HasPrefix(line, workerPrefix):
				f.Worker = strings.TrimPrefix(line, workerPrefix)
			case clonePattern.MatchString(line):
				f.CloneFailed = true
			}
		}
		if f.Venv != "" {
			continue
		}
		for _, c := range travis.CommandsOf(n) {
			if m := venvPattern.FindStringSubmatch(c.Executed()); m != nil {
				f.Venv = m[1]
				break
			}
		}
	}
	return f
}
