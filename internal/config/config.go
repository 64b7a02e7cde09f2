// Package config loads cilog settings from a TOML file.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/newhook/cilog/internal/logging"
)

//go:embed templates/config.tmpl
var templateText string

const (
	// AppName names the per-user config and cache directories.
	AppName = "cilog"
	// FileName is the config file inside the config directory.
	FileName = "config.toml"
)

// Config is the contents of config.toml. Every field is optional.
type Config struct {
	Parser ParserConfig `toml:"parser"`
	Cache  CacheConfig  `toml:"cache"`
	Log    LogConfig    `toml:"log"`
	Render RenderConfig `toml:"render"`
}

// ParserConfig controls the log parser.
type ParserConfig struct {
	// StrictCompletion makes a build status line that does not follow the
	// script section an error instead of a warning. Defaults to true.
	StrictCompletion *bool `toml:"strict_completion"`

	// Regroup merges dotted sections and synthesises the script section.
	// Defaults to true.
	Regroup *bool `toml:"regroup"`
}

// ShouldRegroup reports whether parsed trees are regrouped.
func (p *ParserConfig) ShouldRegroup() bool {
	if p.Regroup == nil {
		return true
	}
	return *p.Regroup
}

// IsStrictCompletion reports whether completion checks are fatal.
func (p *ParserConfig) IsStrictCompletion() bool {
	if p.StrictCompletion == nil {
		return true
	}
	return *p.StrictCompletion
}

// CacheConfig locates the local log store.
type CacheConfig struct {
	// Path is the sqlite database holding fetched logs.
	// Defaults to <user cache dir>/cilog/logs.db.
	Path string `toml:"path"`

	// MemoryTTLMinutes bounds how long parsed trees stay in memory.
	// Defaults to 10 minutes.
	MemoryTTLMinutes *int `toml:"memory_ttl_minutes"`
}

// GetPath returns the database path.
func (c *CacheConfig) GetPath() string {
	if c.Path != "" {
		return expandHome(c.Path)
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, AppName, "logs.db")
}

// MemoryTTL returns the in-memory parse cache lifetime.
func (c *CacheConfig) MemoryTTL() time.Duration {
	if c.MemoryTTLMinutes != nil && *c.MemoryTTLMinutes > 0 {
		return time.Duration(*c.MemoryTTLMinutes) * time.Minute
	}
	return 10 * time.Minute
}

// LogConfig controls the debug log.
type LogConfig struct {
	// Path is the JSON log file. Empty disables logging.
	Path string `toml:"path"`

	// Level is one of debug, info, warn or error. Defaults to info.
	Level string `toml:"level"`
}

// GetLevel returns the configured level, falling back to info when the
// name is not recognised.
func (l *LogConfig) GetLevel() slog.Level {
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// GetPath returns the log file path with a leading ~ expanded.
func (l *LogConfig) GetPath() string {
	return expandHome(l.Path)
}

// RenderConfig controls terminal output.
type RenderConfig struct {
	// Width wraps rendered lines. 0 uses 100 columns.
	Width int `toml:"width"`

	// MaxOutputLines limits the command output shown per command.
	// Defaults to 5; negative shows everything.
	MaxOutputLines *int `toml:"max_output_lines"`
}

// GetWidth returns the render width.
func (r *RenderConfig) GetWidth() int {
	if r.Width <= 0 {
		return 100
	}
	return r.Width
}

// GetMaxOutputLines returns the per-command output limit, or -1 for none.
func (r *RenderConfig) GetMaxOutputLines() int {
	if r.MaxOutputLines == nil {
		return 5
	}
	if *r.MaxOutputLines < 0 {
		return -1
	}
	return *r.MaxOutputLines
}

// DefaultPath returns <user config dir>/cilog/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(dir, AppName, FileName)
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes a documented config to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	content, err := c.GenerateDocumented()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0600)
}

type templateData struct {
	StrictCompletion bool
	Regroup          bool
	CachePath        string
	MemoryTTL        int
	LogPath          string
	LogLevel         string
	Width            int
	MaxOutputLines   int
}

func tomlString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

var configTemplate = template.Must(template.New("config").Funcs(template.FuncMap{
	"tomlString": tomlString,
}).Parse(templateText))

// GenerateDocumented renders the effective settings as a commented config
// file.
func (c *Config) GenerateDocumented() (string, error) {
	data := templateData{
		StrictCompletion: c.Parser.IsStrictCompletion(),
		Regroup:          c.Parser.ShouldRegroup(),
		CachePath:        c.Cache.Path,
		MemoryTTL:        int(c.Cache.MemoryTTL() / time.Minute),
		LogPath:          c.Log.Path,
		LogLevel:         c.Log.GetLevel().String(),
		Width:            c.Render.GetWidth(),
		MaxOutputLines:   c.Render.GetMaxOutputLines(),
	}
	data.LogLevel = strings.ToLower(data.LogLevel)

	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return buf.String(), nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
