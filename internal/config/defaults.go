package config

const (
	defaultOutputDir      = "."
	defaultTorrentDir     = "."
	defaultLogDir         = "~/.local/share/oats/logs"
	defaultStateDir       = "~/.local/share/oats"
	defaultFFprobe        = "ffprobe"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultMaxPieces      = 1024
	defaultTorrentPrivate = true
	defaultNtfyTimeout    = 10

	// MinPieceLength and MaxPieceLength bound the accepted piece sizes.
	MinPieceLength = 16 << 10
	MaxPieceLength = 16 << 20
)

var defaultFormats = []string{"MP3 CBR 320", "MP3 VBR 0"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			TorrentDir: defaultTorrentDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
		},
		Transcode: Transcode{
			Formats:    append([]string(nil), defaultFormats...),
			CopyExtras: true,
			FFprobe:    defaultFFprobe,
		},
		Tools: Tools{
			Binaries:   map[string]string{},
			Priorities: map[string]int{},
		},
		Torrent: Torrent{
			Private:   defaultTorrentPrivate,
			MaxPieces: defaultMaxPieces,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
	}
}
