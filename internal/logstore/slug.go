package logstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Slug addresses a repository, a build of it, or a single job. Build and Job
// are zero when not given.
type Slug struct {
	User    string
	Project string
	Build   int
	Job     int
}

// ParseSlug accepts "user/project", "user/project/build" and
// "user/project/build.job".
func ParseSlug(s string) (Slug, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return Slug{}, fmt.Errorf("invalid slug %q: want user/project[/build[.job]]", s)
	}
	slug := Slug{User: parts[0], Project: parts[1]}
	if len(parts) == 2 {
		return slug, nil
	}

	build, job, hasJob := strings.Cut(parts[2], ".")
	var err error
	if slug.Build, err = positive(build); err != nil {
		return Slug{}, fmt.Errorf("invalid slug %q: build: %w", s, err)
	}
	if hasJob {
		if slug.Job, err = positive(job); err != nil {
			return Slug{}, fmt.Errorf("invalid slug %q: job: %w", s, err)
		}
	}
	return slug, nil
}

// Repo is "user/project".
func (s Slug) Repo() string { return s.User + "/" + s.Project }

// IsJob reports whether the slug names a single job.
func (s Slug) IsJob() bool { return s.Build > 0 && s.Job > 0 }

func (s Slug) String() string {
	switch {
	case s.Build == 0:
		return s.Repo()
	case s.Job == 0:
		return fmt.Sprintf("%s/%d", s.Repo(), s.Build)
	}
	return fmt.Sprintf("%s/%d.%d", s.Repo(), s.Build, s.Job)
}

// FileName is the name a job log is saved under inside its repository
// directory: "<build>.<job>-<state>.txt".
type FileName struct {
	Build int
	Job   int
	State string
}

// ParseFileName decodes a log file name such as "2215.3-failed.txt".
func ParseFileName(name string) (FileName, error) {
	stem, ok := strings.CutSuffix(name, ".txt")
	if !ok {
		return FileName{}, fmt.Errorf("unexpected file name %q", name)
	}
	id, state, ok := strings.Cut(stem, "-")
	if !ok || state == "" {
		return FileName{}, fmt.Errorf("file name %q has no job state", name)
	}
	build, job, ok := strings.Cut(id, ".")
	if !ok {
		return FileName{}, fmt.Errorf("file name %q has no job number", name)
	}

	var (
		f   = FileName{State: state}
		err error
	)
	if f.Build, err = positive(build); err != nil {
		return FileName{}, fmt.Errorf("file name %q: build: %w", name, err)
	}
	if f.Job, err = positive(job); err != nil {
		return FileName{}, fmt.Errorf("file name %q: job: %w", name, err)
	}
	return f, nil
}

func (f FileName) String() string {
	return fmt.Sprintf("%d.%d-%s.txt", f.Build, f.Job, f.State)
}

func positive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%d is not positive", n)
	}
	return n, nil
}
