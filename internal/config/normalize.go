package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscode()
	c.normalizeTools()
	c.normalizeTorrent()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if strings.TrimSpace(c.Paths.TorrentDir) == "" {
		c.Paths.TorrentDir = defaultTorrentDir
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.TorrentDir, err = expandPath(c.Paths.TorrentDir); err != nil {
		return fmt.Errorf("paths.torrent_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscode() {
	formats := make([]string, 0, len(c.Transcode.Formats))
	for _, f := range c.Transcode.Formats {
		if f = strings.Join(strings.Fields(f), " "); f != "" {
			formats = append(formats, f)
		}
	}
	c.Transcode.Formats = formats
	c.Transcode.FFprobe = strings.TrimSpace(c.Transcode.FFprobe)
}

func (c *Config) normalizeTools() {
	binaries := make(map[string]string, len(c.Tools.Binaries))
	for id, bin := range c.Tools.Binaries {
		id = strings.ToLower(strings.TrimSpace(id))
		bin = strings.TrimSpace(bin)
		if id == "" || bin == "" {
			continue
		}
		binaries[id] = bin
	}
	c.Tools.Binaries = binaries

	priorities := make(map[string]int, len(c.Tools.Priorities))
	for id, p := range c.Tools.Priorities {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			priorities[id] = p
		}
	}
	c.Tools.Priorities = priorities

	disabled := c.Tools.Disabled[:0]
	for _, id := range c.Tools.Disabled {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			disabled = append(disabled, id)
		}
	}
	c.Tools.Disabled = disabled
}

func (c *Config) normalizeTorrent() {
	c.Torrent.AnnounceURL = strings.TrimSpace(c.Torrent.AnnounceURL)
	if c.Torrent.AnnounceURL == "" {
		if value, ok := os.LookupEnv("OATS_ANNOUNCE_URL"); ok {
			c.Torrent.AnnounceURL = strings.TrimSpace(value)
		}
	}
	c.Torrent.Source = strings.TrimSpace(c.Torrent.Source)
	if c.Torrent.Source == "" {
		if value, ok := os.LookupEnv("OATS_TORRENT_SOURCE"); ok {
			c.Torrent.Source = strings.TrimSpace(value)
		}
	}
	if c.Torrent.MaxPieces <= 0 {
		c.Torrent.MaxPieces = defaultMaxPieces
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
