package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateTorrent(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		parsed, err := url.Parse(topic)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
		}
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if len(c.Transcode.Formats) == 0 {
		return errors.New("transcode.formats must list at least one format")
	}
	if c.Transcode.Processes < 0 {
		return errors.New("transcode.processes must be zero (auto) or positive")
	}
	return nil
}

func (c *Config) validateTorrent() error {
	if pl := c.Torrent.PieceLength; pl != 0 {
		if pl < MinPieceLength || pl > MaxPieceLength || pl&(pl-1) != 0 {
			return fmt.Errorf("torrent.piece_length must be a power of two between %d and %d, got %d", MinPieceLength, MaxPieceLength, pl)
		}
	}
	for _, tracker := range c.Trackers() {
		if err := ValidateTrackerURL(tracker); err != nil {
			return err
		}
	}
	if c.Torrent.Enabled && c.Torrent.AnnounceURL == "" {
		return errors.New("torrent.announce_url is required when torrent.enabled is true (or export OATS_ANNOUNCE_URL)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

// ValidateTrackerURL accepts http, https, and udp announce URLs with a host.
func ValidateTrackerURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid tracker %q: %w", raw, err)
	}
	switch parsed.Scheme {
	case "http", "https", "udp":
	default:
		return fmt.Errorf("invalid tracker %q: scheme must be http, https, or udp", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid tracker %q: missing host", raw)
	}
	return nil
}
