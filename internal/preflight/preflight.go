package preflight

import "oats/internal/config"

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Advisory failures are reported but do not stop a batch.
	Advisory bool
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Blocking returns the failed results that are not advisory.
func Blocking(results []Result) []Result {
	var out []Result
	for _, r := range Failed(results) {
		if !r.Advisory {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results,
		CheckCreatableDirectory("Output directory", cfg.Paths.OutputDir),
		CheckFreeSpace("Output free space", cfg.Paths.OutputDir, DefaultMinFreeBytes),
	)
	if cfg.Torrent.Enabled {
		results = append(results, CheckCreatableDirectory("Torrent directory", cfg.Paths.TorrentDir))
	}
	if cfg.History.Enabled {
		results = append(results, CheckCreatableDirectory("State directory", cfg.Paths.StateDir))
	}
	return results
}
