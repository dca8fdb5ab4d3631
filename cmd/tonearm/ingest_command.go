package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tonearm/internal/config"
	"tonearm/internal/identity"
	"tonearm/internal/store"
	"tonearm/internal/tags"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var priority int
	var verifyNow bool

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Cache optimistic metadata for audio files",
		Long: "Stores fast-path metadata for each file and queues it for " +
			"background verification. With --verify the full verification " +
			"runs inline instead of waiting for the daemon.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, s *store.Store) error {
				if priority == 0 {
					priority = cfg.Verification.DefaultPriority
				}
				out := cmd.OutOrStdout()
				var failures int
				for _, arg := range args {
					if err := ingestFile(cmd, s, arg, priority, verifyNow); err != nil {
						failures++
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", arg, err)
						continue
					}
					fmt.Fprintf(out, "cached %s\n", arg)
				}
				if failures > 0 {
					return fmt.Errorf("%d of %d files failed", failures, len(args))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 0, "Verification queue priority (higher is sooner)")
	cmd.Flags().BoolVar(&verifyNow, "verify", false, "Verify inline instead of queueing")
	return cmd
}

func ingestFile(cmd *cobra.Command, s *store.Store, path string, priority int, verifyNow bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New("is a directory")
	}

	name := filepath.Base(path)
	size := info.Size()

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	// The optimistic record is deliberately cheap: filename-derived fields
	// only. The queued verification fills in the embedded tags later.
	meta := optimisticMetadata(name)

	result, err := s.Put(cmd.Context(), name, size, meta, content)
	if err != nil {
		if errors.Is(err, store.ErrConstraintViolation) {
			return fmt.Errorf("already cached under key %s", identity.OptimisticKey(name, size))
		}
		return err
	}

	if verifyNow {
		verified, err := tags.Extract(name, content)
		if err != nil {
			return fmt.Errorf("extract metadata: %w", err)
		}
		if _, err := s.Verify(cmd.Context(), result.Key, name, size, verified, content); err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return s.EnqueueFile(cmd.Context(), result.Key, abs, priority)
}

func optimisticMetadata(name string) store.Metadata {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	title := strings.TrimSuffix(name, filepath.Ext(name))
	title = strings.ReplaceAll(title, "_", " ")
	return store.Metadata{
		Title:  strings.TrimSpace(title),
		Format: strings.ToLower(ext),
	}
}
