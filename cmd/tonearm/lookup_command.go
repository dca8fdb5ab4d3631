package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tonearm/internal/config"
	"tonearm/internal/store"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var sizeFlag int64

	cmd := &cobra.Command{
		Use:   "lookup <file>",
		Short: "Look up cached metadata for a file",
		Long: "Resolves the fast lookup key from the file name and size and " +
			"prints the cached metadata. Pass --size to look up a name that " +
			"does not exist locally.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, s *store.Store) error {
				name := filepath.Base(args[0])
				size := sizeFlag
				if size == 0 {
					info, err := os.Stat(args[0])
					if err != nil {
						return fmt.Errorf("stat %s (or pass --size): %w", args[0], err)
					}
					size = info.Size()
				}

				result, err := s.Lookup(cmd.Context(), name, size)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if result == nil {
					fmt.Fprintf(out, "no cached metadata for %s (%s)\n", name, humanize.Bytes(uint64(size)))
					return nil
				}

				if jsonOutput || !stdoutIsTerminal() {
					encoder := json.NewEncoder(out)
					encoder.SetIndent("", "  ")
					return encoder.Encode(result)
				}

				fmt.Fprintln(out, renderLookup(result))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the result as JSON")
	cmd.Flags().Int64Var(&sizeFlag, "size", 0, "File size in bytes to use instead of stat")
	return cmd
}

func renderLookup(result *store.LookupResult) string {
	var rows [][]string
	if meta := result.Metadata; meta != nil {
		rows = append(rows,
			[]string{"Title", meta.Title},
			[]string{"Artist", meta.Artist},
			[]string{"Album", meta.Album},
			[]string{"Year", formatInt(meta.Year)},
			[]string{"Genre", meta.Genre},
			[]string{"Format", meta.Format},
			[]string{"Duration", formatDuration(meta.Duration)},
			[]string{"Verified", yesNo(meta.Verified)},
		)
	}
	if track := result.Track; track != nil {
		// The track row is the fallback when its metadata row is gone.
		if result.Metadata == nil {
			rows = append(rows,
				[]string{"File", track.FileName},
				[]string{"Size", humanize.Bytes(uint64(track.FileSize))},
				[]string{"Verified", yesNo(track.Verified)},
			)
		}
		rows = append(rows,
			[]string{"Access count", strconv.FormatInt(track.AccessCount, 10)},
			[]string{"Cached", humanize.Time(track.CreatedAt)},
		)
		if track.SupersededBy != "" {
			rows = append(rows, []string{"Superseded by", track.SupersededBy})
		}
	}
	if result.Artwork != nil {
		rows = append(rows, []string{"Artwork", fmt.Sprintf("%s (%s)",
			result.Artwork.MIMEType, humanize.Bytes(uint64(result.Artwork.Size)))})
	}
	return renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
}

func formatInt(value int) string {
	if value == 0 {
		return ""
	}
	return strconv.Itoa(value)
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}
