package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tonearm/internal/daemon"
	"tonearm/internal/logging"
	"tonearm/internal/store"
	"tonearm/internal/telemetry"
	"tonearm/internal/worker"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the background verification daemon",
		Long: "Runs the verification worker and the periodic cache sweep in the " +
			"foreground until interrupted. Only one daemon per data directory " +
			"can run at a time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd, ctx)
		},
	}
}

func runDaemonProcess(cmd *cobra.Command, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	recorder := telemetry.NewRecorder(cfg.Telemetry.EventCapacity)

	s, err := store.Open(cfg, logger, recorder)
	if err != nil {
		logger.Error("open cache store", logging.Error(err))
		return err
	}
	defer s.Close()

	w := worker.New(cfg, s, logger, recorder)

	d, err := daemon.New(cfg, s, logger, w, recorder)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("tonearm daemon shutting down")
	d.Stop()
	return nil
}
