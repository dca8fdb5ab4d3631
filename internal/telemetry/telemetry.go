package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a recorded cache or verification event.
type EventType string

const (
	EventCacheHit             EventType = "cache_hit"
	EventCacheMiss            EventType = "cache_miss"
	EventVerificationStart    EventType = "verification_start"
	EventVerificationComplete EventType = "verification_complete"
	EventVerificationFailed   EventType = "verification_failed"
	EventCollisionDetected    EventType = "collision_detected"
)

// Event is a single telemetry record.
type Event struct {
	ID       string        `json:"id"`
	Type     EventType     `json:"type"`
	Key      string        `json:"key,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
	Error    string        `json:"error,omitempty"`
	At       time.Time     `json:"at"`
}

// DefaultCapacity bounds the ring buffer when no capacity is configured.
const DefaultCapacity = 1000

// Recorder keeps a bounded ring of events plus running aggregates. All methods
// are safe for concurrent use and tolerate a nil receiver, so components can
// run without telemetry wired in.
type Recorder struct {
	mu sync.RWMutex

	// Fixed arena; head is the oldest slot once count == len(events).
	events []Event
	head   int
	count  int

	counts         map[EventType]int64
	hitDuration    time.Duration
	verifyDuration time.Duration
}

// NewRecorder constructs a recorder with the given event capacity.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		events: make([]Event, capacity),
		counts: make(map[EventType]int64),
	}
}

// Record appends an event, dropping the oldest once the buffer is full.
// A missing ID or timestamp is filled in.
func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	slot := (r.head + r.count) % len(r.events)
	if r.count == len(r.events) {
		r.head = (r.head + 1) % len(r.events)
	} else {
		r.count++
	}
	r.events[slot] = event

	r.counts[event.Type]++
	switch event.Type {
	case EventCacheHit:
		r.hitDuration += event.Duration
	case EventVerificationComplete:
		r.verifyDuration += event.Duration
	}
}

// CacheHit records a lookup hit with its latency.
func (r *Recorder) CacheHit(key string, duration time.Duration) {
	r.Record(Event{Type: EventCacheHit, Key: key, Duration: duration})
}

// CacheMiss records a lookup miss.
func (r *Recorder) CacheMiss(key string) {
	r.Record(Event{Type: EventCacheMiss, Key: key})
}

// VerificationStart records the beginning of a verification pass.
func (r *Recorder) VerificationStart(key string) {
	r.Record(Event{Type: EventVerificationStart, Key: key})
}

// VerificationComplete records a successful verification with its duration.
func (r *Recorder) VerificationComplete(key string, duration time.Duration) {
	r.Record(Event{Type: EventVerificationComplete, Key: key, Duration: duration})
}

// VerificationFailed records a failed verification attempt.
func (r *Recorder) VerificationFailed(key string, err error) {
	event := Event{Type: EventVerificationFailed, Key: key}
	if err != nil {
		event.Error = err.Error()
	}
	r.Record(event)
}

// CollisionDetected records a fast-key collision resolved by supersession.
func (r *Recorder) CollisionDetected(key string) {
	r.Record(Event{Type: EventCollisionDetected, Key: key})
}

// Stats summarizes recorded events.
type Stats struct {
	TotalEvents             int64               `json:"total_events"`
	Counts                  map[EventType]int64 `json:"counts"`
	CacheHitRate            float64             `json:"cache_hit_rate"`
	AvgHitDuration          time.Duration       `json:"avg_hit_duration_ns"`
	AvgVerificationDuration time.Duration       `json:"avg_verification_duration_ns"`
	VerificationSuccessRate float64             `json:"verification_success_rate"`
}

// Stats returns the running aggregates. Rates are 0 when no samples exist.
func (r *Recorder) Stats() Stats {
	if r == nil {
		return Stats{Counts: map[EventType]int64{}}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Counts: make(map[EventType]int64, len(r.counts))}
	for eventType, count := range r.counts {
		stats.Counts[eventType] = count
		stats.TotalEvents += count
	}

	hits := r.counts[EventCacheHit]
	misses := r.counts[EventCacheMiss]
	if hits+misses > 0 {
		stats.CacheHitRate = float64(hits) / float64(hits+misses)
	}
	if hits > 0 {
		stats.AvgHitDuration = r.hitDuration / time.Duration(hits)
	}

	completed := r.counts[EventVerificationComplete]
	failed := r.counts[EventVerificationFailed]
	if completed+failed > 0 {
		stats.VerificationSuccessRate = float64(completed) / float64(completed+failed)
	}
	if completed > 0 {
		stats.AvgVerificationDuration = r.verifyDuration / time.Duration(completed)
	}
	return stats
}

// RecentEvents returns up to n events, newest last.
func (r *Recorder) RecentEvents(n int) []Event {
	if r == nil || n <= 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.count {
		n = r.count
	}
	result := make([]Event, 0, n)
	for i := r.count - n; i < r.count; i++ {
		result = append(result, r.events[(r.head+i)%len(r.events)])
	}
	return result
}

// EventsByType returns all buffered events of the given type, oldest first.
func (r *Recorder) EventsByType(eventType EventType) []Event {
	return r.filter(func(event Event) bool { return event.Type == eventType })
}

// EventsForKey returns all buffered events for the given key, oldest first.
func (r *Recorder) EventsForKey(key string) []Event {
	return r.filter(func(event Event) bool { return event.Key == key })
}

func (r *Recorder) filter(keep func(Event) bool) []Event {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Event
	for i := 0; i < r.count; i++ {
		event := r.events[(r.head+i)%len(r.events)]
		if keep(event) {
			result = append(result, event)
		}
	}
	return result
}

// Clear drops all buffered events and resets aggregates.
func (r *Recorder) Clear() {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.head = 0
	r.count = 0
	r.counts = make(map[EventType]int64)
	r.hitDuration = 0
	r.verifyDuration = 0
}
