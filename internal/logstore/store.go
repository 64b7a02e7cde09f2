// Package logstore keeps fetched job logs in a local SQLite database so they
// can be parsed again without hitting the provider.
package logstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/newhook/cilog/internal/logging"
)

// ErrNotFound is returned when no log is stored for a job.
var ErrNotFound = errors.New("log not found")

// Job is a stored job log.
type Job struct {
	ID         string
	Slug       Slug
	State      string // provider job state, e.g. "passed", "failed", "started"
	Outcome    string // how the parsed log ended, empty until parsed
	Body       string
	Digest     string
	FinishedAt time.Time // zero while the job is running
	FetchedAt  time.Time
}

// Store is the log database.
type Store struct {
	db *sql.DB
}

// Open opens the database at path, creating it and applying migrations as
// needed. ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// an in-memory database exists per connection
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// MigrationStatus lists the applied schema versions.
func (s *Store) MigrationStatus(ctx context.Context) ([]string, error) {
	return AppliedVersions(ctx, s.db)
}

// RollbackMigration reverts the newest schema version. The next Open applies
// it again.
func (s *Store) RollbackMigration(ctx context.Context) error {
	return Rollback(ctx, s.db, migrationsFS)
}

// Digest returns the content digest used to key parsed logs.
func Digest(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Put stores a job log, replacing any earlier copy of the same job. ID,
// Digest and a zero FetchedAt are filled in.
func (s *Store) Put(ctx context.Context, job *Job) error {
	if !job.Slug.IsJob() {
		return fmt.Errorf("%s does not name a job", job.Slug)
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.FetchedAt.IsZero() {
		job.FetchedAt = time.Now()
	}
	job.Digest = Digest(job.Body)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_logs (id, user, project, build, job, state, outcome, body, digest, finished_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user, project, build, job) DO UPDATE SET
			state = excluded.state,
			outcome = excluded.outcome,
			body = excluded.body,
			digest = excluded.digest,
			finished_at = excluded.finished_at,
			fetched_at = excluded.fetched_at`,
		job.ID, job.Slug.User, job.Slug.Project, job.Slug.Build, job.Slug.Job,
		job.State, job.Outcome, job.Body, job.Digest, nanos(job.FinishedAt), job.FetchedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", job.Slug, err)
	}
	logging.Debug("stored job log", "slug", job.Slug.String(), "state", job.State, "bytes", len(job.Body))
	return nil
}

// SetOutcome records how the parsed log of a job ended.
func (s *Store) SetOutcome(ctx context.Context, slug Slug, outcome string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_logs SET outcome = ?
		WHERE user = ? AND project = ? AND build = ? AND job = ?`,
		outcome, slug.User, slug.Project, slug.Build, slug.Job)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", slug, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", slug, ErrNotFound)
	}
	return nil
}

// Get returns the stored log of a job.
func (s *Store) Get(ctx context.Context, slug Slug) (*Job, error) {
	if !slug.IsJob() {
		return nil, fmt.Errorf("%s does not name a job", slug)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user, project, build, job, state, outcome, body, digest, finished_at, fetched_at
		FROM job_logs
		WHERE user = ? AND project = ? AND build = ? AND job = ?`,
		slug.User, slug.Project, slug.Build, slug.Job)

	job, err := scanJob(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", slug, err)
	}
	return job, nil
}

// List returns the jobs matching a repository or build slug, without their
// bodies, ordered by build and job.
func (s *Store) List(ctx context.Context, slug Slug) ([]*Job, error) {
	query := `
		SELECT id, user, project, build, job, state, outcome, digest, finished_at, fetched_at
		FROM job_logs
		WHERE user = ? AND project = ?`
	args := []any{slug.User, slug.Project}
	if slug.Build > 0 {
		query += " AND build = ?"
		args = append(args, slug.Build)
	}
	if slug.Job > 0 {
		query += " AND job = ?"
		args = append(args, slug.Job)
	}
	query += " ORDER BY build, job"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", slug, err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", slug, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Repos returns every stored repository as a two-part slug.
func (s *Store) Repos(ctx context.Context) ([]Slug, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT user, project FROM job_logs ORDER BY user, project")
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var out []Slug
	for rows.Next() {
		var slug Slug
		if err := rows.Scan(&slug.User, &slug.Project); err != nil {
			return nil, err
		}
		out = append(out, slug)
	}
	return out, rows.Err()
}

// LatestBuild returns the highest stored build number of a repository.
func (s *Store) LatestBuild(ctx context.Context, slug Slug) (int, error) {
	var build sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(build) FROM job_logs WHERE user = ? AND project = ?",
		slug.User, slug.Project).Scan(&build)
	if err != nil {
		return 0, fmt.Errorf("failed to find latest build of %s: %w", slug.Repo(), err)
	}
	if !build.Valid {
		return 0, fmt.Errorf("%s: %w", slug.Repo(), ErrNotFound)
	}
	return int(build.Int64), nil
}

// Delete removes the jobs matching a repository, build or job slug and
// returns how many were removed.
func (s *Store) Delete(ctx context.Context, slug Slug) (int64, error) {
	query := "DELETE FROM job_logs WHERE user = ? AND project = ?"
	args := []any{slug.User, slug.Project}
	if slug.Build > 0 {
		query += " AND build = ?"
		args = append(args, slug.Build)
	}
	if slug.Job > 0 {
		query += " AND job = ?"
		args = append(args, slug.Job)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", slug, err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner, withBody bool) (*Job, error) {
	var (
		job      Job
		finished sql.NullInt64
		fetched  int64
	)
	dest := []any{&job.ID, &job.Slug.User, &job.Slug.Project, &job.Slug.Build, &job.Slug.Job, &job.State, &job.Outcome}
	if withBody {
		dest = append(dest, &job.Body)
	}
	dest = append(dest, &job.Digest, &finished, &fetched)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if finished.Valid {
		job.FinishedAt = time.Unix(0, finished.Int64)
	}
	job.FetchedAt = time.Unix(0, fetched)
	return &job, nil
}

func nanos(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}
