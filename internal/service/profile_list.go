package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/userprofile/internal/adapter/otel"
	"github.com/Strob0t/userprofile/internal/domain/photo"
	"github.com/Strob0t/userprofile/internal/domain/profile"
)

type enrichment struct {
	idx    int
	status photo.Status
}

// ListByBank returns every profile of the bank in store order, each enriched
// with its photo flag. Probes run concurrently, bounded by the shared pool,
// under one deadline for the whole list. Waiting for a pool slot counts
// against that deadline, so concurrent large lists can push each other's
// items to the fallback. Items whose probe has not reported
// by the deadline keep "No". List results are never cached.
func (s *ProfileService) ListByBank(ctx context.Context, bankID int64) ([]profile.Profile, error) {
	ctx, span := cfotel.StartListSpan(ctx, bankID)
	defer span.End()

	profiles, err := s.store.ListProfilesByBank(ctx, bankID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("list.size", len(profiles)),
		attribute.Int("list.max_parallel", s.pool.Limit()),
	)

	results := make([]profile.Profile, len(profiles))
	for i := range profiles {
		results[i] = profiles[i]
		results[i].HasProfilePhoto = profile.PhotoNo
	}
	if len(results) == 0 {
		return results, nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	// Buffered to len(results) so that probes finishing after the deadline
	// never block.
	done := make(chan enrichment, len(results))
	for i := range results {
		userID := results[i].ID
		go func() {
			_ = s.pool.Run(ctx, func() error {
				done <- enrichment{idx: i, status: s.prober.HasPhoto(ctx, bankID, userID)}
				return nil
			})
		}()
	}

	pending := len(results)
collect:
	for pending > 0 {
		select {
		case e := <-done:
			results[e.idx].HasProfilePhoto = e.status.Flag()
			pending--
		case <-ctx.Done():
			break collect
		}
	}

	elapsed := time.Since(start)
	if pending > 0 {
		slog.WarnContext(ctx, "list enrichment deadline reached",
			"bank_id", bankID, "total", len(results), "pending", pending,
			"deadline", s.deadline, "max_parallel", s.pool.Limit())
	}
	if s.metrics != nil {
		attrs := metric.WithAttributes(attribute.Bool("deadline_reached", pending > 0))
		s.metrics.ListDuration.Record(ctx, elapsed.Seconds(), attrs)
		if pending > 0 {
			s.metrics.ListFallbacks.Add(ctx, int64(pending))
		}
	}
	return results, nil
}
