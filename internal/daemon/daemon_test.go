package daemon_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"tonearm/internal/daemon"
	"tonearm/internal/logging"
	"tonearm/internal/telemetry"
	"tonearm/internal/testsupport"
	"tonearm/internal/worker"
)

func TestDaemonLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s, rec := testsupport.MustOpenStoreWithTelemetry(t, cfg)
	w := worker.New(cfg, s, logging.NewNop(), rec)

	d, err := daemon.New(cfg, s, logging.NewNop(), w, rec)
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Status(ctx).Running {
		t.Fatal("expected running daemon")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected stopped daemon")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s, rec := testsupport.MustOpenStoreWithTelemetry(t, cfg)

	first, err := daemon.New(cfg, s, logging.NewNop(), worker.New(cfg, s, logging.NewNop(), rec), rec)
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, s, logging.NewNop(), worker.New(cfg, s, logging.NewNop(), rec), rec)
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance must fail to acquire the lock")
	}
}

func TestStopWritesTelemetryExport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s, rec := testsupport.MustOpenStoreWithTelemetry(t, cfg)
	w := worker.New(cfg, s, logging.NewNop(), rec)

	d, err := daemon.New(cfg, s, logging.NewNop(), w, rec)
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Generate a little traffic so the export has content.
	if _, err := s.Lookup(ctx, "missing.mp3", 1); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	d.Stop()

	data, err := os.ReadFile(daemon.TelemetryExportPath(cfg))
	if err != nil {
		t.Fatalf("read telemetry export: %v", err)
	}
	var export telemetry.Export
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("parse telemetry export: %v", err)
	}
	if export.Stats.Counts[telemetry.EventCacheMiss] != 1 {
		t.Fatalf("unexpected export stats %#v", export.Stats)
	}
}
