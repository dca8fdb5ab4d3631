package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tonearm/internal/config"
	"tonearm/internal/daemon"
	"tonearm/internal/store"
	"tonearm/internal/telemetry"
)

type statsDocument struct {
	DatabasePath string         `json:"database_path"`
	DatabaseSize int64          `json:"database_size_bytes"`
	Store        storeStatsView `json:"store"`
	Telemetry    *telemetryView `json:"telemetry,omitempty"`
}

type storeStatsView struct {
	Tracks           int `json:"tracks"`
	VerifiedTracks   int `json:"verified_tracks"`
	UnverifiedTracks int `json:"unverified_tracks"`
	Metadata         int `json:"metadata"`
	Artwork          int `json:"artwork"`
	Queued           int `json:"queued"`
}

type telemetryView struct {
	CacheHitRate            float64            `json:"cache_hit_rate"`
	VerificationSuccessRate float64            `json:"verification_success_rate"`
	Insights                telemetry.Insights `json:"insights"`
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var withTelemetry bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, s *store.Store) error {
				stats, err := s.Stats(cmd.Context())
				if err != nil {
					return err
				}

				doc := statsDocument{
					DatabasePath: cfg.DatabasePath(),
					Store: storeStatsView{
						Tracks:           stats.TrackCount,
						VerifiedTracks:   stats.VerifiedTracks,
						UnverifiedTracks: stats.UnverifiedTracks,
						Metadata:         stats.MetadataCount,
						Artwork:          stats.ArtworkCount,
						Queued:           stats.QueueCount,
					},
				}
				if info, err := os.Stat(cfg.DatabasePath()); err == nil {
					doc.DatabaseSize = info.Size()
				}
				if withTelemetry {
					view, err := loadTelemetryView(cfg)
					if err != nil {
						return err
					}
					doc.Telemetry = view
				}

				out := cmd.OutOrStdout()
				if jsonOutput || !stdoutIsTerminal() {
					encoder := json.NewEncoder(out)
					encoder.SetIndent("", "  ")
					return encoder.Encode(doc)
				}

				fmt.Fprintln(out, renderStats(doc))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit statistics as JSON")
	cmd.Flags().BoolVar(&withTelemetry, "telemetry", false, "Include the daemon's exported telemetry")
	return cmd
}

// loadTelemetryView reads the diagnostics document the daemon exports
// alongside its logs. A missing file simply means no daemon has run yet.
func loadTelemetryView(cfg *config.Config) (*telemetryView, error) {
	data, err := os.ReadFile(daemon.TelemetryExportPath(cfg))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no telemetry export found at %s; run the daemon first", daemon.TelemetryExportPath(cfg))
		}
		return nil, fmt.Errorf("read telemetry export: %w", err)
	}
	var export telemetry.Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parse telemetry export: %w", err)
	}
	return &telemetryView{
		CacheHitRate:            export.Stats.CacheHitRate,
		VerificationSuccessRate: export.Stats.VerificationSuccessRate,
		Insights:                export.Insights,
	}, nil
}

func renderStats(doc statsDocument) string {
	rows := [][]string{
		{"Tracks", humanize.Comma(int64(doc.Store.Tracks))},
		{"  Verified", humanize.Comma(int64(doc.Store.VerifiedTracks))},
		{"  Unverified", humanize.Comma(int64(doc.Store.UnverifiedTracks))},
		{"Metadata records", humanize.Comma(int64(doc.Store.Metadata))},
		{"Artwork records", humanize.Comma(int64(doc.Store.Artwork))},
		{"Queued for verification", humanize.Comma(int64(doc.Store.Queued))},
		{"Database size", humanize.Bytes(uint64(doc.DatabaseSize))},
	}

	var b strings.Builder
	b.WriteString(renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

	if doc.Telemetry != nil {
		b.WriteString("\n")
		telemetryRows := [][]string{
			{"Cache hit rate", formatRate(doc.Telemetry.CacheHitRate), doc.Telemetry.Insights.CacheHitRating},
			{"Verification success", formatRate(doc.Telemetry.VerificationSuccessRate), doc.Telemetry.Insights.VerificationRating},
		}
		b.WriteString(renderTable([]string{"Telemetry", "Rate", "Rating"}, telemetryRows,
			[]columnAlignment{alignLeft, alignRight, alignLeft}))
		for _, rec := range doc.Telemetry.Insights.Recommendations {
			b.WriteString("\n  - ")
			b.WriteString(rec)
		}
	}
	return b.String()
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate*100, 'f', 1, 64) + "%"
}
