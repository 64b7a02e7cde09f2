package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/newhook/cilog/internal/logstore"
	"github.com/newhook/cilog/internal/render"
	"github.com/newhook/cilog/internal/report"
	"github.com/spf13/cobra"
)

var flagReportFail bool

var reportCmd = &cobra.Command{
	Use:   "report <file|slug>",
	Short: "Summarise the outcome and test failures of a job",
	Long: `Summarise a job log: how it ended, which language and virtualenv it used,
and the test failures its script printed.

The argument is either a log file or a slug naming stored logs:
  user/project            every job of the latest stored build
  user/project/build      every job of a build
  user/project/build.job  a single job`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&flagReportFail, "fail", false, "exit with an error when any job failed")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	out := cmd.OutOrStdout()
	r := render.New(renderOptions())
	cache := newParseCache()

	var failed int
	if _, err := os.Stat(args[0]); err == nil || args[0] == "-" {
		body, err := readLog(cmd, args[0])
		if err != nil {
			return err
		}
		res, err := cache.Parse(body)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
		rep := report.Build(res)
		fmt.Fprint(out, r.Report(rep))
		if rep.Failed() {
			failed++
		}
	} else {
		slug, err := logstore.ParseSlug(args[0])
		if err != nil {
			return err
		}
		store, err := logstore.Open(ctx, getConfig().Cache.GetPath())
		if err != nil {
			return err
		}
		defer store.Close()

		jobs, err := storedJobs(ctx, store, slug)
		if err != nil {
			return err
		}
		failed = writeJobReports(ctx, out, r, store, cache, jobs)
	}
	logCacheStats(cache)

	if flagReportFail && failed > 0 {
		return fmt.Errorf("%d job(s) failed", failed)
	}
	return nil
}

// storedJobs resolves a slug to stored jobs with their bodies. A repository
// slug selects its latest build.
func storedJobs(ctx context.Context, store *logstore.Store, slug logstore.Slug) ([]*logstore.Job, error) {
	if slug.IsJob() {
		job, err := store.Get(ctx, slug)
		if err != nil {
			return nil, err
		}
		return []*logstore.Job{job}, nil
	}

	if slug.Build == 0 {
		build, err := store.LatestBuild(ctx, slug)
		if err != nil {
			return nil, err
		}
		slug.Build = build
	}
	listed, err := store.List(ctx, slug)
	if err != nil {
		return nil, err
	}
	if len(listed) == 0 {
		return nil, fmt.Errorf("%s: %w", slug, logstore.ErrNotFound)
	}

	jobs := make([]*logstore.Job, 0, len(listed))
	for _, l := range listed {
		job, err := store.Get(ctx, l.Slug)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// writeJobReports prints a report per stored job and returns how many
// failed or could not be parsed.
func writeJobReports(ctx context.Context, out io.Writer, r *render.Renderer, store *logstore.Store, cache *logstore.ParseCache, jobs []*logstore.Job) int {
	var failed int
	for i, job := range jobs {
		if i > 0 {
			fmt.Fprintln(out)
		}
		rep, err := reportJob(ctx, store, cache, job)
		if err != nil {
			fmt.Fprintf(out, "%s (%s): %v\n", job.Slug, job.State, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "%s (%s)\n", job.Slug, job.State)
		fmt.Fprint(out, r.Report(rep))
		if rep.Failed() {
			failed++
		}
	}
	return failed
}

// reportJob parses a stored job and records its outcome.
func reportJob(ctx context.Context, store *logstore.Store, cache *logstore.ParseCache, job *logstore.Job) (*report.Report, error) {
	res, err := cache.ParseJob(job)
	if err != nil {
		if setErr := store.SetOutcome(ctx, job.Slug, outcomeUnparsable); setErr != nil {
			return nil, errors.Join(err, setErr)
		}
		return nil, err
	}
	rep := report.Build(res)
	if err := store.SetOutcome(ctx, job.Slug, rep.Facts.Outcome()); err != nil {
		return nil, err
	}
	return rep, nil
}

const outcomeUnparsable = "unparsable"

// printJobs writes a table of stored jobs.
func printJobs(w io.Writer, jobs []*logstore.Job) {
	fmt.Fprintf(w, "%-40s %-10s %-14s %s\n", "JOB", "STATE", "OUTCOME", "FETCHED")
	fmt.Fprintf(w, "%-40s %-10s %-14s %s\n", "---", "-----", "-------", "-------")
	for _, job := range jobs {
		outcome := job.Outcome
		if outcome == "" {
			outcome = "-"
		}
		fetched := "-"
		if !job.FetchedAt.IsZero() {
			fetched = job.FetchedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%-40s %-10s %-14s %s\n", job.Slug, job.State, outcome, fetched)
	}
}
