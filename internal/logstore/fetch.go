package logstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newhook/cilog/internal/logging"
)

// JobInfo is what the provider reports about a job before its log is
// downloaded.
type JobInfo struct {
	State      string
	FinishedAt time.Time // zero while the job is running
}

// Fetcher retrieves jobs from the CI provider.
type Fetcher interface {
	Info(ctx context.Context, slug Slug) (JobInfo, error)
	Log(ctx context.Context, slug Slug) (string, error)
}

// Fetch returns the log of a job, downloading it only when there is no
// stored copy or the stored copy was fetched before the job finished.
func (s *Store) Fetch(ctx context.Context, f Fetcher, slug Slug) (*Job, error) {
	info, err := f.Info(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", slug, err)
	}

	cached, err := s.Get(ctx, slug)
	switch {
	case err == nil:
		if fresh(cached, info) {
			logging.Debug("using stored log", "slug", slug.String())
			return cached, nil
		}
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	body, err := f.Log(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", slug, err)
	}
	job := &Job{Slug: slug, State: info.State, Body: body, FinishedAt: info.FinishedAt}
	if cached != nil {
		job.ID = cached.ID
	}
	if err := s.Put(ctx, job); err != nil {
		return nil, err
	}
	logging.Info("downloaded job log", "slug", slug.String(), "bytes", len(body))
	return job, nil
}

// fresh reports whether a stored log was fetched after the job finished.
// The log of a running job can still grow.
func fresh(job *Job, info JobInfo) bool {
	if info.FinishedAt.IsZero() {
		return false
	}
	return !job.FetchedAt.Before(info.FinishedAt)
}
