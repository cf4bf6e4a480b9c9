package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"oats/internal/config"
	"oats/internal/torrent"
)

func newTorrentCommand(ctx *commandContext) *cobra.Command {
	torrentCmd := &cobra.Command{
		Use:   "torrent",
		Short: "Create and verify .torrent files",
	}
	torrentCmd.AddCommand(newTorrentMakeCommand(ctx))
	torrentCmd.AddCommand(newTorrentVerifyCommand())
	return torrentCmd
}

func newTorrentMakeCommand(ctx *commandContext) *cobra.Command {
	var (
		announce    []string
		torrentDir  string
		source      string
		pieceLength int64
		maxPieces   int
		private     bool
		overwrite   bool
	)

	cmd := &cobra.Command{
		Use:   "make [flags] <target>...",
		Short: "Build a .torrent for each target file or directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configCopy()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("announce-url") {
				cleaned := cleanList(announce)
				cfg.Torrent.AnnounceURL = ""
				cfg.Torrent.AnnounceURLs = cleaned
				if len(cleaned) > 0 {
					cfg.Torrent.AnnounceURL = cleaned[0]
				}
			}
			if flags.Changed("torrent-dir") {
				if cfg.Paths.TorrentDir, err = config.ExpandPath(strings.TrimSpace(torrentDir)); err != nil {
					return fmt.Errorf("resolve torrent dir: %w", err)
				}
			}
			if flags.Changed("source") {
				cfg.Torrent.Source = strings.TrimSpace(source)
			}
			if flags.Changed("piece-length") {
				cfg.Torrent.PieceLength = pieceLength
			}
			if flags.Changed("max-pieces") {
				cfg.Torrent.MaxPieces = maxPieces
			}
			if flags.Changed("private") {
				cfg.Torrent.Private = private
			}
			if flags.Changed("overwrite") {
				cfg.Torrent.Overwrite = overwrite
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if len(cfg.Trackers()) == 0 {
				return errors.New("an announce URL is required (--announce-url, torrent.announce_url or OATS_ANNOUNCE_URL)")
			}

			out := cmd.OutOrStdout()
			var rows [][]string
			var failures []error
			for _, target := range args {
				root, err := config.ExpandPath(target)
				if err != nil {
					return err
				}
				res, err := torrent.MakeTorrent(cmd.Context(), root, cfg.Paths.TorrentDir, torrentOptions(cfg), cfg.Torrent.Overwrite)
				if err != nil {
					failures = append(failures, fmt.Errorf("%s: %w", target, err))
					continue
				}
				rows = append(rows, []string{
					res.Meta.Name,
					strconv.Itoa(len(res.Meta.Files)),
					humanize.IBytes(uint64(res.Meta.TotalLength())),
					humanize.IBytes(uint64(res.Meta.PieceLength)),
					strconv.Itoa(len(res.Meta.Pieces)),
					res.Path,
				})
				fmt.Fprintf(out, "magnet: %s\n", res.Magnet)
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable("Torrents", []string{"Name", "Files", "Size", "Piece", "Pieces", "Path"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft}))
			}
			return errors.Join(failures...)
		},
	}

	cmd.Flags().StringSliceVarP(&announce, "announce-url", "a", nil, "Tracker announce URL (repeatable; the first is primary)")
	cmd.Flags().StringVarP(&torrentDir, "torrent-dir", "t", "", "Directory that receives .torrent files")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source tag written into the info dictionary")
	cmd.Flags().Int64Var(&pieceLength, "piece-length", 0, "Piece length in bytes (power of two; 0 chooses automatically)")
	cmd.Flags().IntVar(&maxPieces, "max-pieces", 0, "Piece count ceiling used when choosing a piece length")
	cmd.Flags().BoolVar(&private, "private", true, "Mark the torrent private")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing .torrent files")
	return cmd
}

func newTorrentVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "verify <file.torrent> <content>",
		Short:       "Re-hash content and compare it with a .torrent",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := torrent.Verify(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colors := newPalette(out)
			rows := [][]string{
				{"Name", report.Name},
				{"Announce", report.Announce},
				{"Files", strconv.Itoa(report.Files)},
				{"Size", humanize.IBytes(uint64(report.TotalLength))},
				{"Piece length", humanize.IBytes(uint64(report.PieceLength))},
				{"Pieces", strconv.Itoa(report.Pieces)},
			}
			fmt.Fprintln(out, renderTable("", []string{"Field", "Value"}, rows, nil))
			for _, path := range report.Missing {
				fmt.Fprintf(out, "missing: %s\n", path)
			}
			for _, path := range report.Mismatched {
				fmt.Fprintf(out, "size mismatch: %s\n", path)
			}
			if len(report.BadPieces) > 0 {
				fmt.Fprintf(out, "bad pieces: %d of %d\n", len(report.BadPieces), report.Pieces)
			}
			if !report.OK() {
				fmt.Fprintln(out, colors.status(false, "FAILED"))
				return errors.New("content does not match torrent")
			}
			fmt.Fprintln(out, colors.status(true, "OK"))
			return nil
		},
	}
}
