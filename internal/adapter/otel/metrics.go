package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "profile-service"

// Metrics holds all profile service metric instruments.
type Metrics struct {
	CacheHits          metric.Int64Counter
	CacheMisses        metric.Int64Counter
	ProbeCalls         metric.Int64Counter
	ProbeDuration      metric.Float64Histogram
	BreakerTransitions metric.Int64Counter
	ListDuration       metric.Float64Histogram
	ListFallbacks      metric.Int64Counter
	EventsPublished    metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.CacheHits, err = meter.Int64Counter("profile.cache.hits",
		metric.WithDescription("Number of profile cache hits"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("profile.cache.misses",
		metric.WithDescription("Number of profile cache misses"))
	if err != nil {
		return nil, err
	}

	m.ProbeCalls, err = meter.Int64Counter("profile.photo_probe.calls",
		metric.WithDescription("Photo probe calls by outcome"))
	if err != nil {
		return nil, err
	}

	m.ProbeDuration, err = meter.Float64Histogram("profile.photo_probe.duration",
		metric.WithDescription("Photo probe duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.BreakerTransitions, err = meter.Int64Counter("profile.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"))
	if err != nil {
		return nil, err
	}

	m.ListDuration, err = meter.Float64Histogram("profile.list.duration",
		metric.WithDescription("Bulk list enrichment duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.ListFallbacks, err = meter.Int64Counter("profile.list.fallbacks",
		metric.WithDescription("List items left at the fallback value when the deadline expired"))
	if err != nil {
		return nil, err
	}

	m.EventsPublished, err = meter.Int64Counter("profile.events.published",
		metric.WithDescription("Change events published"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
