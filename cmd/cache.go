package cmd

import (
	"context"
	"fmt"

	"github.com/newhook/cilog/internal/logging"
	"github.com/newhook/cilog/internal/logstore"
	"github.com/newhook/cilog/internal/render"
	"github.com/spf13/cobra"
)

var (
	flagShowBody     bool
	flagImportReport bool
	flagImportWatch  bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local log store",
	Long:  `Manage the local SQLite store of fetched job logs.`,
}

var cacheImportCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import log files into the store",
	Long: `Import job logs laid out as <dir>/<user>/<project>/<build>.<job>-<state>.txt.
Each imported log is parsed and its outcome recorded.

With --watch the command keeps running after the import and stores every log
saved under <dir> until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runCacheImport,
}

var cacheListCmd = &cobra.Command{
	Use:   "list [slug]",
	Short: "List stored repositories or jobs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheList,
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Show the parsed structure of a stored job",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheShow,
}

var cacheRmCmd = &cobra.Command{
	Use:   "rm <slug>",
	Short: "Remove stored jobs",
	Long:  `Remove every stored job matching a repository, build or job slug.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheRm,
}

var cacheMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Show applied store migrations",
	Args:  cobra.NoArgs,
	RunE:  runCacheMigrate,
}

var cacheRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the last store migration",
	Args:  cobra.NoArgs,
	RunE:  runCacheRollback,
}

func init() {
	cacheImportCmd.Flags().BoolVar(&flagImportReport, "report", false, "print a report for each imported job")
	cacheImportCmd.Flags().BoolVarP(&flagImportWatch, "watch", "w", false, "keep importing logs saved under the directory")
	cacheShowCmd.Flags().BoolVar(&flagShowBody, "body", false, "print the stored log instead of its structure")

	cacheCmd.AddCommand(cacheImportCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheRmCmd)
	cacheCmd.AddCommand(cacheMigrateCmd)
	cacheMigrateCmd.AddCommand(cacheRollbackCmd)
}

func openStore() (*logstore.Store, error) {
	store, err := logstore.Open(GetContext(), getConfig().Cache.GetPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open log store: %w", err)
	}
	return store, nil
}

func runCacheImport(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	root := args[0]
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var watcher *logstore.Watcher
	if flagImportWatch {
		// Watch before the walk so logs saved during it are not missed.
		watcher, err = store.NewWatcher(logstore.DefaultWatchConfig(root))
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	jobs, err := store.Import(ctx, root)
	if err != nil {
		return err
	}

	cache := newParseCache()
	defer logCacheStats(cache)
	unparsable := recordOutcomes(ctx, store, cache, jobs)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d log(s)", len(jobs))
	if unparsable > 0 {
		fmt.Fprintf(out, ", %d could not be parsed", unparsable)
	}
	fmt.Fprintln(out)

	r := render.New(renderOptions())
	if flagImportReport && len(jobs) > 0 {
		fmt.Fprintln(out)
		writeJobReports(ctx, out, r, store, cache, jobs)
	}
	if watcher == nil {
		return nil
	}

	fmt.Fprintf(out, "Watching %s for new logs\n", root)
	return watcher.Run(ctx, func(job *logstore.Job) {
		if flagImportReport {
			fmt.Fprintln(out)
			writeJobReports(ctx, out, r, store, cache, []*logstore.Job{job})
			return
		}
		outcome := outcomeUnparsable
		if rep, err := reportJob(ctx, store, cache, job); err == nil {
			outcome = rep.Facts.Outcome()
		}
		fmt.Fprintf(out, "Imported %s (%s)\n", job.Slug, outcome)
	})
}

// recordOutcomes parses each job and stores how it ended. It returns the
// number of jobs that could not be parsed.
func recordOutcomes(ctx context.Context, store *logstore.Store, cache *logstore.ParseCache, jobs []*logstore.Job) int {
	var unparsable int
	for _, job := range jobs {
		if _, err := reportJob(ctx, store, cache, job); err != nil {
			logging.Warn("failed to parse imported log", "slug", job.Slug.String(), "error", err)
			unparsable++
		}
	}
	return unparsable
}

func runCacheList(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		repos, err := store.Repos(ctx)
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Fprintln(out, "No logs stored")
			return nil
		}
		for _, repo := range repos {
			fmt.Fprintln(out, repo.Repo())
		}
		return nil
	}

	slug, err := logstore.ParseSlug(args[0])
	if err != nil {
		return err
	}
	jobs, err := store.List(ctx, slug)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintf(out, "No logs stored for %s\n", slug)
		return nil
	}
	printJobs(out, jobs)
	return nil
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	slug, err := logstore.ParseSlug(args[0])
	if err != nil {
		return err
	}
	if !slug.IsJob() {
		return fmt.Errorf("%s does not name a job, expected user/project/build.job", slug)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	job, err := store.Get(ctx, slug)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagShowBody {
		fmt.Fprint(out, job.Body)
		return nil
	}
	res, err := newParseCache().ParseJob(job)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", slug, err)
	}
	r := render.New(renderOptions())
	fmt.Fprint(out, r.Tree(res.Tree))
	if len(res.Warnings) > 0 {
		fmt.Fprint(cmd.ErrOrStderr(), r.Warnings(res.Warnings))
	}
	return nil
}

func runCacheRm(cmd *cobra.Command, args []string) error {
	slug, err := logstore.ParseSlug(args[0])
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Delete(GetContext(), slug)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d log(s)\n", n)
	return nil
}

func runCacheMigrate(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	versions, err := store.MigrationStatus(GetContext())
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Applied migrations (%d):\n", len(versions))
	for _, v := range versions {
		fmt.Fprintf(out, "  %s\n", v)
	}
	return nil
}

func runCacheRollback(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.RollbackMigration(GetContext()); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Rolled back the last migration. It is applied again the next time the store is opened.")
	return nil
}
