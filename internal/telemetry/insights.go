package telemetry

// Insights classifies the recorded rates and suggests operator actions.
type Insights struct {
	CacheHitRating       string   `json:"cache_hit_rating"`
	VerificationRating   string   `json:"verification_rating"`
	Recommendations      []string `json:"recommendations"`
	SampleSizeSufficient bool     `json:"sample_size_sufficient"`
}

// Export is a JSON-serializable diagnostics document.
type Export struct {
	Stats    Stats    `json:"stats"`
	Events   []Event  `json:"events"`
	Insights Insights `json:"insights"`
}

// PerformanceInsights rates the cache hit rate and verification success rate
// and produces textual recommendations for low ratings.
func (r *Recorder) PerformanceInsights() Insights {
	stats := r.Stats()

	insights := Insights{
		CacheHitRating:     rateThresholds(stats.CacheHitRate, 0.8, 0.6, 0.4),
		VerificationRating: rateThresholds(stats.VerificationSuccessRate, 0.95, 0.9, 0.8),
	}

	hits := stats.Counts[EventCacheHit]
	misses := stats.Counts[EventCacheMiss]
	verifications := stats.Counts[EventVerificationComplete] + stats.Counts[EventVerificationFailed]
	insights.SampleSizeSufficient = hits+misses >= 20 || verifications >= 20

	switch insights.CacheHitRating {
	case "moderate":
		insights.Recommendations = append(insights.Recommendations,
			"cache hit rate is moderate; consider raising cache.max_age_days so entries survive between sessions")
	case "low":
		insights.Recommendations = append(insights.Recommendations,
			"cache hit rate is low; the library may be churning faster than the cache retains entries, or files are being renamed")
	}

	switch insights.VerificationRating {
	case "moderate":
		insights.Recommendations = append(insights.Recommendations,
			"verification success rate is dropping; check verification.item_timeout against typical file sizes")
	case "low":
		insights.Recommendations = append(insights.Recommendations,
			"verification is failing frequently; inspect recent verification_failed events for I/O errors")
	}

	if stats.Counts[EventCollisionDetected] > 0 && hits+misses > 0 {
		collisionRate := float64(stats.Counts[EventCollisionDetected]) / float64(hits+misses)
		if collisionRate > 0.01 {
			insights.Recommendations = append(insights.Recommendations,
				"fast-key collisions are unusually common; many files likely share a name and size")
		}
	}

	if len(insights.Recommendations) == 0 {
		insights.Recommendations = append(insights.Recommendations, "cache is performing well; no action needed")
	}

	return insights
}

// ExportData assembles the full diagnostics document.
func (r *Recorder) ExportData() Export {
	return Export{
		Stats:    r.Stats(),
		Events:   r.RecentEvents(len(r.arena())),
		Insights: r.PerformanceInsights(),
	}
}

func (r *Recorder) arena() []Event {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.events
}

func rateThresholds(rate, excellent, good, moderate float64) string {
	switch {
	case rate >= excellent:
		return "excellent"
	case rate >= good:
		return "good"
	case rate >= moderate:
		return "moderate"
	default:
		return "low"
	}
}
