package logstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/newhook/cilog/internal/logging"
)

// errNotLog marks files that do not follow the import layout.
var errNotLog = errors.New("not a job log")

// Import stores every log found under root, laid out as
// <root>/<user>/<project>/<build>.<job>-<state>.txt. The file's modification
// time becomes the fetch time. Files that do not follow the layout are
// skipped. It returns the imported jobs.
func (s *Store) Import(ctx context.Context, root string) ([]*Job, error) {
	var jobs []*Job
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".txt") {
			return nil
		}

		job, err := s.ImportFile(ctx, root, path)
		if errors.Is(err, errNotLog) {
			logging.Warn("skipping file", "path", path, "error", err)
			return nil
		}
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
		return nil
	})
	if err != nil {
		return jobs, fmt.Errorf("import from %s: %w", root, err)
	}
	return jobs, nil
}

// ImportFile stores the single log at path, which must lie under root in the
// layout Import expects.
func (s *Store) ImportFile(ctx context.Context, root, path string) (*Job, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, err
	}
	slug, state, err := slugOfFile(rel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errNotLog, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	job := &Job{Slug: slug, State: state, Body: string(body), FetchedAt: info.ModTime()}
	if err := s.Put(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func slugOfFile(rel string) (Slug, string, error) {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return Slug{}, "", fmt.Errorf("want <user>/<project>/<file>, got %s", rel)
	}
	name, err := ParseFileName(parts[2])
	if err != nil {
		return Slug{}, "", err
	}
	return Slug{User: parts[0], Project: parts[1], Build: name.Build, Job: name.Job}, name.State, nil
}
