package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tonearm/internal/config"
	"tonearm/internal/store"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var maxAgeDays int
	var retainCount int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Evict stale cache entries",
		Long: "Removes track index entries and artwork that have not been " +
			"touched within the age window and fall below the access " +
			"threshold. Metadata records are kept longer and are not swept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, s *store.Store) error {
				if maxAgeDays <= 0 {
					maxAgeDays = cfg.Cache.MaxAgeDays
				}
				if retainCount <= 0 {
					retainCount = cfg.Cache.RetainAccessCount
				}
				maxAge := time.Duration(maxAgeDays) * 24 * time.Hour

				deleted, err := s.CleanupOldEntries(cmd.Context(), maxAge, retainCount)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d stale entries\n", deleted)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "Age threshold in days (defaults to cache.max_age_days)")
	cmd.Flags().IntVar(&retainCount, "retain", 0, "Access count that exempts entries (defaults to cache.retain_access_count)")
	return cmd
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("clear removes all cached metadata; re-run with --force to confirm")
			}
			return ctx.withStore(func(cfg *config.Config, s *store.Store) error {
				if err := s.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm deletion of all cached records")
	return cmd
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check cache database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, s *store.Store) error {
				health, err := s.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}

				rows := [][]string{
					{"Database", health.DBPath},
					{"Exists", yesNo(health.DatabaseExists)},
					{"Readable", yesNo(health.DatabaseReadable)},
					{"Schema version", fmt.Sprintf("%d", health.SchemaVersion)},
					{"Integrity check", yesNo(health.IntegrityCheck)},
					{"Tracks", fmt.Sprintf("%d", health.TotalTracks)},
				}
				if len(health.MissingTables) > 0 {
					rows = append(rows, []string{"Missing tables", fmt.Sprintf("%v", health.MissingTables)})
				}
				if health.Error != "" {
					rows = append(rows, []string{"Error", health.Error})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Result"}, rows,
					[]columnAlignment{alignLeft, alignLeft}))

				if !health.DatabaseReadable || !health.IntegrityCheck || len(health.MissingTables) > 0 {
					return fmt.Errorf("cache database is unhealthy")
				}
				return nil
			})
		},
	}
}
