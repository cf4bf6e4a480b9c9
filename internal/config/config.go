package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	TorrentDir string `toml:"torrent_dir"`
	LogDir     string `toml:"log_dir"`
	StateDir   string `toml:"state_dir"`
}

// Transcode contains batch transcoding options.
type Transcode struct {
	Formats    []string `toml:"formats"`
	Processes  int      `toml:"processes"`
	ListFile   bool     `toml:"list_file"`
	CopyExtras bool     `toml:"copy_extras"`
	FFprobe    string   `toml:"ffprobe"`
}

// Tools contains overrides for the external encoder registry.
type Tools struct {
	// Binaries maps a tool id (e.g. "lame") to the executable to resolve.
	Binaries map[string]string `toml:"binaries"`
	// Priorities maps a tool id to a priority override. Lower wins.
	Priorities map[string]int `toml:"priorities"`
	// Disabled lists tool ids that are treated as unavailable.
	Disabled []string `toml:"disabled"`
}

// Torrent contains metainfo creation options.
type Torrent struct {
	Enabled      bool     `toml:"enabled"`
	AnnounceURL  string   `toml:"announce_url"`
	AnnounceURLs []string `toml:"announce_urls"`
	Source       string   `toml:"source"`
	Private      bool     `toml:"private"`
	PieceLength  int64    `toml:"piece_length"`
	MaxPieces    int      `toml:"max_pieces"`
	Overwrite    bool     `toml:"overwrite"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// History controls the run history database.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Notifications configures ntfy delivery of batch results.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for OATS.
//
// Configuration sections by subsystem:
//   - Paths: output, torrent, log, and state directories
//   - Transcode: requested formats and worker count
//   - Tools: executable and priority overrides for encoders
//   - Torrent: announce URLs, source tag, piece sizing
//   - Logging: log format and level
//   - History: run history database
//   - Notifications: ntfy push messages
type Config struct {
	Paths     Paths     `toml:"paths"`
	Transcode Transcode `toml:"transcode"`
	Tools     Tools     `toml:"tools"`
	Torrent   Torrent   `toml:"torrent"`
	Logging   Logging   `toml:"logging"`
	History   History   `toml:"history"`

	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/oats/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("oats.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDir, c.Paths.LogDir}
	if c.History.Enabled {
		dirs = append(dirs, c.Paths.StateDir)
	}
	if c.Torrent.Enabled {
		dirs = append(dirs, c.Paths.TorrentDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the SQLite database path for run history.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LogPath returns the log file written alongside console output.
func (c *Config) LogPath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "oats.log")
}

// Trackers returns the primary announce URL followed by any extra trackers,
// without duplicates.
func (c *Config) Trackers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, url := range append([]string{c.Torrent.AnnounceURL}, c.Torrent.AnnounceURLs...) {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
