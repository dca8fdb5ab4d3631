package worker

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"tonearm/internal/identity"
	"tonearm/internal/logging"
	"tonearm/internal/store"
	"tonearm/internal/telemetry"
	"tonearm/internal/testsupport"
)

func taggedContent(title, artist string) []byte {
	return testsupport.TaggedContent(title, artist, "Album", "1992")
}

func newTestWorker(t *testing.T, opts ...testsupport.ConfigOption) (*Worker, *store.Store, *telemetry.Recorder) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	s, rec := testsupport.MustOpenStoreWithTelemetry(t, cfg)
	return New(cfg, s, logging.NewNop(), rec), s, rec
}

func TestAddTaskProcessVerifies(t *testing.T) {
	w, s, _ := newTestWorker(t)
	ctx := context.Background()

	content := taggedContent("Harvest Moon", "Neil Young")
	size := int64(len(content))
	testsupport.MustPut(t, s, "harvest.mp3", size, store.Metadata{Title: "harvest", Format: "mp3"}, content)

	key, err := w.AddTask(ctx, "harvest.mp3", size, content, 0)
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if key != identity.OptimisticKey("harvest.mp3", size) {
		t.Fatalf("unexpected key %q", key)
	}

	processed, err := w.processNext(ctx)
	if err != nil {
		t.Fatalf("processNext failed: %v", err)
	}
	if !processed {
		t.Fatal("expected an item to be consumed")
	}

	track, err := s.TrackByKey(ctx, key)
	if err != nil {
		t.Fatalf("TrackByKey failed: %v", err)
	}
	if track == nil || !track.Verified {
		t.Fatalf("expected verified track, got %#v", track)
	}

	meta, err := s.MetadataByKey(ctx, key)
	if err != nil {
		t.Fatalf("MetadataByKey failed: %v", err)
	}
	if meta.Title != "Harvest Moon" {
		t.Fatalf("verified title must win, got %q", meta.Title)
	}

	status := w.Status(ctx)
	if status.Stats.Succeeded != 1 || status.Stats.Processed != 1 {
		t.Fatalf("unexpected stats %#v", status.Stats)
	}
	if status.PendingTasks != 0 {
		t.Fatalf("pending payload leaked: %d", status.PendingTasks)
	}
	if status.QueueSize != 0 {
		t.Fatalf("queue not drained: %d", status.QueueSize)
	}
}

func TestUntaggedContentVerifies(t *testing.T) {
	w, s, _ := newTestWorker(t)
	ctx := context.Background()

	noise := bytes.Repeat([]byte{0x42}, 512)
	size := int64(len(noise))
	put := testsupport.MustPut(t, s, "field_recording.wav", size,
		store.Metadata{Title: "field recording", Format: "wav"}, noise)

	if _, err := w.AddTask(ctx, "field_recording.wav", size, noise, 0); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if _, err := w.processNext(ctx); err != nil {
		t.Fatalf("processNext failed: %v", err)
	}

	track, err := s.TrackByKey(ctx, put.Key)
	if err != nil {
		t.Fatalf("TrackByKey failed: %v", err)
	}
	if track == nil || !track.Verified {
		t.Fatalf("tag-less content must still verify, got %#v", track)
	}

	meta, err := s.MetadataByKey(ctx, put.Key)
	if err != nil {
		t.Fatalf("MetadataByKey failed: %v", err)
	}
	if meta.Title != "field recording" {
		t.Fatalf("optimistic title lost in merge, got %q", meta.Title)
	}

	status := w.Status(ctx)
	if status.Stats.Succeeded != 1 || status.Stats.Failed != 0 {
		t.Fatalf("unexpected stats %#v", status.Stats)
	}
}

func TestCanceledRunRestoresQueueEntry(t *testing.T) {
	w, s, rec := newTestWorker(t)
	ctx := context.Background()

	content := taggedContent("Interrupted", "Artist")
	size := int64(len(content))
	testsupport.MustPut(t, s, "interrupted.mp3", size, store.Metadata{Title: "interrupted"}, content)

	key, err := w.AddTask(ctx, "interrupted.mp3", size, content, 3)
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	item, err := s.NextVerification(ctx)
	if err != nil {
		t.Fatalf("NextVerification failed: %v", err)
	}
	if item == nil {
		t.Fatal("expected the queued item")
	}

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	w.processItem(canceledCtx, item)

	requeued, err := s.NextVerification(ctx)
	if err != nil {
		t.Fatalf("NextVerification failed: %v", err)
	}
	if requeued == nil {
		t.Fatal("interrupted item lost from the queue")
	}
	if requeued.Key != key {
		t.Fatalf("unexpected requeued key %q", requeued.Key)
	}
	if requeued.Priority != 3 || requeued.RetryCount != 0 {
		t.Fatalf("interruption must not consume retry budget, got %#v", requeued)
	}
	if rec.Stats().Counts[telemetry.EventVerificationFailed] != 0 {
		t.Fatal("interruption recorded as a failure")
	}

	// The restored entry completes normally on the next run.
	w.processItem(ctx, requeued)
	track, err := s.TrackByKey(ctx, key)
	if err != nil {
		t.Fatalf("TrackByKey failed: %v", err)
	}
	if track == nil || !track.Verified {
		t.Fatalf("expected verification to resume after restart, got %#v", track)
	}
}

func TestProcessNextEmptyQueue(t *testing.T) {
	w, _, _ := newTestWorker(t)

	processed, err := w.processNext(context.Background())
	if err != nil {
		t.Fatalf("processNext failed: %v", err)
	}
	if processed {
		t.Fatal("consumed an item from an empty queue")
	}
}

func TestContentReadFailureRetriesThenDrops(t *testing.T) {
	w, s, rec := newTestWorker(t, testsupport.WithMaxRetries(2))
	ctx := context.Background()

	// A vanished source file makes the content read fail every attempt.
	key := identity.OptimisticKey("gone.mp3", 256)
	missing := filepath.Join(t.TempDir(), "gone.mp3")
	if err := s.EnqueueFile(ctx, key, missing, 4); err != nil {
		t.Fatalf("EnqueueFile failed: %v", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		processed, err := w.processNext(ctx)
		if err != nil {
			t.Fatalf("processNext failed: %v", err)
		}
		if !processed {
			t.Fatalf("queue empty after %d attempts", attempt)
		}
	}

	status := w.Status(ctx)
	if status.Stats.Retries != 2 {
		t.Fatalf("expected 2 retries, got %d", status.Stats.Retries)
	}
	if status.Stats.Failed != 1 {
		t.Fatalf("expected 1 terminal failure, got %d", status.Stats.Failed)
	}
	if status.QueueSize != 0 {
		t.Fatalf("item still queued after retry budget: %d", status.QueueSize)
	}
	if rec.Stats().Counts[telemetry.EventVerificationFailed] != 1 {
		t.Fatal("terminal failure not recorded")
	}
}

func TestRetryDecaysPriority(t *testing.T) {
	w, s, _ := newTestWorker(t, testsupport.WithMaxRetries(3))
	ctx := context.Background()

	key := identity.OptimisticKey("gone.mp3", 256)
	missing := filepath.Join(t.TempDir(), "gone.mp3")
	if err := s.EnqueueFile(ctx, key, missing, 5); err != nil {
		t.Fatalf("EnqueueFile failed: %v", err)
	}

	if _, err := w.processNext(ctx); err != nil {
		t.Fatalf("processNext failed: %v", err)
	}

	item, err := s.NextVerification(ctx)
	if err != nil {
		t.Fatalf("NextVerification failed: %v", err)
	}
	if item == nil {
		t.Fatal("expected requeued item")
	}
	if item.Priority != 4 {
		t.Fatalf("expected decayed priority 4, got %d", item.Priority)
	}
	if item.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", item.RetryCount)
	}
	if item.SourcePath != missing {
		t.Fatalf("source path lost on requeue: %q", item.SourcePath)
	}
	if item.ErrorMessage == "" {
		t.Fatal("expected recorded failure message")
	}
}

func TestMissingPayloadFailsTerminally(t *testing.T) {
	w, s, rec := newTestWorker(t, testsupport.WithMaxRetries(0))
	ctx := context.Background()

	key := identity.OptimisticKey("ghost.mp3", 100)
	if err := s.Enqueue(ctx, key, 3); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	processed, err := w.processNext(ctx)
	if err != nil {
		t.Fatalf("processNext failed: %v", err)
	}
	if !processed {
		t.Fatal("expected the item to be consumed")
	}
	if rec.Stats().Counts[telemetry.EventVerificationFailed] != 1 {
		t.Fatal("expected terminal failure for missing payload")
	}
}

func TestSourceServesPersistedKeys(t *testing.T) {
	content := taggedContent("Recovered", "Artist")
	source := sourceFunc(func(ctx context.Context, key string) (*Task, error) {
		return &Task{Name: "recovered.mp3", Size: int64(len(content)), Content: content}, nil
	})

	cfg := testsupport.NewConfig(t)
	s, rec := testsupport.MustOpenStoreWithTelemetry(t, cfg)
	w := New(cfg, s, logging.NewNop(), rec, WithSource(source))
	ctx := context.Background()

	key := identity.OptimisticKey("recovered.mp3", int64(len(content)))
	if err := s.Enqueue(ctx, key, 2); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if _, err := w.processNext(ctx); err != nil {
		t.Fatalf("processNext failed: %v", err)
	}

	track, err := s.TrackByKey(ctx, key)
	if err != nil {
		t.Fatalf("TrackByKey failed: %v", err)
	}
	if track == nil || !track.Verified {
		t.Fatalf("expected verified track from sourced content, got %#v", track)
	}
}

func TestSourcePathServesPersistedKeys(t *testing.T) {
	w, s, _ := newTestWorker(t)
	ctx := context.Background()

	content := taggedContent("On Disk", "Artist")
	path := filepath.Join(t.TempDir(), "on_disk.mp3")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	key := identity.OptimisticKey("on_disk.mp3", int64(len(content)))
	if err := s.EnqueueFile(ctx, key, path, 2); err != nil {
		t.Fatalf("EnqueueFile failed: %v", err)
	}

	if _, err := w.processNext(ctx); err != nil {
		t.Fatalf("processNext failed: %v", err)
	}

	track, err := s.TrackByKey(ctx, key)
	if err != nil {
		t.Fatalf("TrackByKey failed: %v", err)
	}
	if track == nil || !track.Verified {
		t.Fatalf("expected verified track from on-disk content, got %#v", track)
	}
}

type sourceFunc func(ctx context.Context, key string) (*Task, error)

func (f sourceFunc) Resolve(ctx context.Context, key string) (*Task, error) { return f(ctx, key) }

func TestCollisionCounted(t *testing.T) {
	w, s, _ := newTestWorker(t)
	ctx := context.Background()

	original := taggedContent("Original", "Artist A")
	actual := taggedContent("Impostor", "Artist B")
	size := int64(len(actual))

	put := testsupport.MustPut(t, s, "same-name.mp3", size, store.Metadata{Title: "Original"}, original)

	if _, err := w.AddTask(ctx, "same-name.mp3", size, actual, 0); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if _, err := w.processNext(ctx); err != nil {
		t.Fatalf("processNext failed: %v", err)
	}

	status := w.Status(ctx)
	if status.Stats.Collisions != 1 {
		t.Fatalf("expected 1 collision, got %d", status.Stats.Collisions)
	}

	old, err := s.TrackByKey(ctx, put.Key)
	if err != nil {
		t.Fatalf("TrackByKey failed: %v", err)
	}
	if old.Live() {
		t.Fatal("collided record must be superseded")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	w, _, _ := newTestWorker(t)
	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Start(ctx); err == nil {
		t.Fatal("second Start must fail while running")
	}

	w.Pause()
	if !w.Status(ctx).Paused {
		t.Fatal("expected paused status")
	}
	w.Resume()
	if w.Status(ctx).Paused {
		t.Fatal("expected resumed status")
	}

	w.Stop()
	if w.Status(ctx).Running {
		t.Fatal("expected stopped status")
	}
	// Stop again is a no-op.
	w.Stop()
}
