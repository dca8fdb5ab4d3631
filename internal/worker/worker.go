package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tonearm/internal/config"
	"tonearm/internal/identity"
	"tonearm/internal/logging"
	"tonearm/internal/store"
	"tonearm/internal/telemetry"
)

// Task carries the raw content needed to verify one queued key.
type Task struct {
	Name    string
	Size    int64
	Content []byte
}

// Source supplies content for queued keys that have no in-memory payload,
// typically entries persisted in the queue across a daemon restart. Resolve
// returns nil with no error when the key cannot be served.
type Source interface {
	Resolve(ctx context.Context, key string) (*Task, error)
}

// Worker drains the verification queue in the background. Items are consumed
// strictly by priority, verified against full content, and retried with
// decaying priority when verification fails.
type Worker struct {
	cfg       *config.Config
	store     *store.Store
	logger    *slog.Logger
	telemetry *telemetry.Recorder
	source    Source

	pollInterval  time.Duration
	retryInterval time.Duration
	itemTimeout   time.Duration
	maxRetries    int

	mu      sync.RWMutex
	running bool
	paused  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	pending map[string]Task

	stats Stats
}

// Stats counts worker outcomes since construction.
type Stats struct {
	Processed  int64
	Succeeded  int64
	Failed     int64
	Collisions int64
	Retries    int64
}

// Option configures optional Worker behavior.
type Option func(*Worker)

// WithSource registers a content source consulted for queued keys that have
// no pending in-memory payload.
func WithSource(source Source) Option {
	return func(w *Worker) { w.source = source }
}

// New constructs a verification worker.
func New(cfg *config.Config, s *store.Store, logger *slog.Logger, rec *telemetry.Recorder, opts ...Option) *Worker {
	w := &Worker{
		cfg:           cfg,
		store:         s,
		logger:        logging.NewComponentLogger(logger, "worker"),
		telemetry:     rec,
		pollInterval:  time.Duration(cfg.Verification.QueuePollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Verification.ErrorRetryInterval) * time.Second,
		itemTimeout:   time.Duration(cfg.Verification.ItemTimeout) * time.Second,
		maxRetries:    cfg.Verification.MaxRetries,
		pending:       make(map[string]Task),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AddTask registers content for verification and enqueues its key. A priority
// of zero or less falls back to the configured default. Re-adding a key that
// is already queued raises its priority but never lowers it.
func (w *Worker) AddTask(ctx context.Context, name string, size int64, content []byte, priority int) (string, error) {
	if priority <= 0 {
		priority = w.cfg.Verification.DefaultPriority
	}
	key := identity.OptimisticKey(name, size)

	w.mu.Lock()
	w.pending[key] = Task{Name: name, Size: size, Content: content}
	w.mu.Unlock()

	if err := w.store.Enqueue(ctx, key, priority); err != nil {
		w.mu.Lock()
		delete(w.pending, key)
		w.mu.Unlock()
		return "", err
	}
	return key, nil
}

// Start begins background processing.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go w.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the in-flight item.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

// Pause suspends queue consumption. Tasks can still be added while paused.
func (w *Worker) Pause() {
	w.mu.Lock()
	w.paused = true
	w.mu.Unlock()
}

// Resume restores queue consumption after a pause.
func (w *Worker) Resume() {
	w.mu.Lock()
	w.paused = false
	w.mu.Unlock()
}

func (w *Worker) isPaused() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paused
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if w.isPaused() {
			w.waitForItemOrShutdown(ctx)
			continue
		}

		processed, err := w.processNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.handleFetchError(ctx, err)
			continue
		}
		if !processed {
			w.waitForItemOrShutdown(ctx)
		}
	}
}

// processNext consumes at most one queue item. It reports whether an item was
// consumed; fetch errors are returned, per-item failures are handled inline.
func (w *Worker) processNext(ctx context.Context) (bool, error) {
	item, err := w.store.NextVerification(ctx)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	w.processItem(ctx, item)
	return true, nil
}

func (w *Worker) handleFetchError(ctx context.Context, err error) {
	w.setLastError(err)
	w.logger.Error("failed to fetch next verification item",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check cache database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(w.retryInterval):
	}
}

func (w *Worker) waitForItemOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}

func (w *Worker) setLastError(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

func (w *Worker) takeTask(key string) (Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	task, ok := w.pending[key]
	if ok {
		delete(w.pending, key)
	}
	return task, ok
}

func (w *Worker) restoreTask(key string, task Task) {
	w.mu.Lock()
	w.pending[key] = task
	w.mu.Unlock()
}
