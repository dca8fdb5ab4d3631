package telemetry_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"tonearm/internal/telemetry"
)

func TestHitMissAccounting(t *testing.T) {
	rec := telemetry.NewRecorder(100)

	for i := 0; i < 3; i++ {
		rec.CacheHit("key-a", 2*time.Millisecond)
	}
	rec.CacheMiss("key-b")

	stats := rec.Stats()
	if stats.CacheHitRate != 0.75 {
		t.Fatalf("expected hit rate 0.75, got %g", stats.CacheHitRate)
	}
	if stats.AvgHitDuration != 2*time.Millisecond {
		t.Fatalf("expected avg hit duration 2ms, got %v", stats.AvgHitDuration)
	}
	if stats.TotalEvents != 4 {
		t.Fatalf("expected 4 events, got %d", stats.TotalEvents)
	}
}

func TestHitRateZeroWhenEmpty(t *testing.T) {
	rec := telemetry.NewRecorder(10)
	if rate := rec.Stats().CacheHitRate; rate != 0 {
		t.Fatalf("expected zero hit rate with no samples, got %g", rate)
	}
}

func TestRingBufferWraparound(t *testing.T) {
	rec := telemetry.NewRecorder(5)
	for i := 0; i < 8; i++ {
		rec.CacheMiss(fmt.Sprintf("key-%d", i))
	}

	events := rec.RecentEvents(10)
	if len(events) != 5 {
		t.Fatalf("expected 5 buffered events, got %d", len(events))
	}
	if events[0].Key != "key-3" {
		t.Fatalf("expected oldest retained event key-3, got %s", events[0].Key)
	}
	if events[4].Key != "key-7" {
		t.Fatalf("expected newest event key-7, got %s", events[4].Key)
	}

	// Aggregates count everything, including dropped events.
	if rec.Stats().Counts[telemetry.EventCacheMiss] != 8 {
		t.Fatalf("expected 8 misses counted, got %d", rec.Stats().Counts[telemetry.EventCacheMiss])
	}
}

func TestEventFilters(t *testing.T) {
	rec := telemetry.NewRecorder(50)
	rec.CacheHit("alpha", time.Millisecond)
	rec.CacheMiss("beta")
	rec.CollisionDetected("alpha")
	rec.VerificationFailed("beta", errors.New("read failed"))

	byType := rec.EventsByType(telemetry.EventCollisionDetected)
	if len(byType) != 1 || byType[0].Key != "alpha" {
		t.Fatalf("unexpected collision events: %#v", byType)
	}

	forKey := rec.EventsForKey("beta")
	if len(forKey) != 2 {
		t.Fatalf("expected 2 events for beta, got %d", len(forKey))
	}
	if forKey[1].Error != "read failed" {
		t.Fatalf("expected error message on failure event, got %q", forKey[1].Error)
	}
}

func TestVerificationSuccessRate(t *testing.T) {
	rec := telemetry.NewRecorder(50)
	for i := 0; i < 9; i++ {
		rec.VerificationComplete("k", 10*time.Millisecond)
	}
	rec.VerificationFailed("k", errors.New("timeout"))

	stats := rec.Stats()
	if stats.VerificationSuccessRate != 0.9 {
		t.Fatalf("expected success rate 0.9, got %g", stats.VerificationSuccessRate)
	}
	if stats.AvgVerificationDuration != 10*time.Millisecond {
		t.Fatalf("expected avg verification 10ms, got %v", stats.AvgVerificationDuration)
	}
}

func TestPerformanceInsightsThresholds(t *testing.T) {
	cases := []struct {
		hits, misses int
		want         string
	}{
		{8, 2, "excellent"},
		{6, 4, "good"},
		{4, 6, "moderate"},
		{1, 9, "low"},
	}
	for _, tc := range cases {
		rec := telemetry.NewRecorder(100)
		for i := 0; i < tc.hits; i++ {
			rec.CacheHit("k", time.Millisecond)
		}
		for i := 0; i < tc.misses; i++ {
			rec.CacheMiss("k")
		}
		insights := rec.PerformanceInsights()
		if insights.CacheHitRating != tc.want {
			t.Fatalf("hits=%d misses=%d: expected rating %q, got %q",
				tc.hits, tc.misses, tc.want, insights.CacheHitRating)
		}
		if len(insights.Recommendations) == 0 {
			t.Fatal("expected at least one recommendation")
		}
	}
}

func TestExportDataRoundTripsAsJSON(t *testing.T) {
	rec := telemetry.NewRecorder(10)
	rec.CacheHit("k", time.Millisecond)
	rec.CollisionDetected("k")

	data, err := json.Marshal(rec.ExportData())
	if err != nil {
		t.Fatalf("marshal export: %v", err)
	}

	var export telemetry.Export
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if export.Stats.TotalEvents != 2 {
		t.Fatalf("expected 2 events in export, got %d", export.Stats.TotalEvents)
	}
	if len(export.Events) != 2 {
		t.Fatalf("expected 2 raw events, got %d", len(export.Events))
	}
}

func TestClearResetsAggregates(t *testing.T) {
	rec := telemetry.NewRecorder(10)
	rec.CacheHit("k", time.Millisecond)
	rec.Clear()

	if rec.Stats().TotalEvents != 0 {
		t.Fatal("expected zero events after clear")
	}
	if len(rec.RecentEvents(10)) != 0 {
		t.Fatal("expected empty buffer after clear")
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *telemetry.Recorder
	rec.CacheHit("k", time.Millisecond)
	rec.CacheMiss("k")
	if rec.Stats().TotalEvents != 0 {
		t.Fatal("nil recorder should report zero events")
	}
	if rec.RecentEvents(5) != nil {
		t.Fatal("nil recorder should return no events")
	}
}
