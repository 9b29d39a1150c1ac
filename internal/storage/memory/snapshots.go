package memory

import (
	"context"
	"sync"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

// SnapshotSink is an in-memory storage.SnapshotSink. Rows are deduplicated
// by id, matching the replay semantics of the ClickHouse sink.
type SnapshotSink struct {
	mu          sync.Mutex
	poolMetrics map[string]*domain.PoolMetrics
	rateSnaps   map[string]*domain.InterestRateSnapshot
}

// NewSnapshotSink creates an empty snapshot sink.
func NewSnapshotSink() *SnapshotSink {
	return &SnapshotSink{
		poolMetrics: make(map[string]*domain.PoolMetrics),
		rateSnaps:   make(map[string]*domain.InterestRateSnapshot),
	}
}

var _ storage.SnapshotSink = (*SnapshotSink)(nil)

func (s *SnapshotSink) WritePoolMetrics(_ context.Context, rows []*domain.PoolMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if _, exists := s.poolMetrics[r.ID]; exists {
			continue
		}
		c := *r
		s.poolMetrics[r.ID] = &c
	}
	return nil
}

func (s *SnapshotSink) WriteRateSnapshots(_ context.Context, rows []*domain.InterestRateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if _, exists := s.rateSnaps[r.ID]; exists {
			continue
		}
		c := *r
		s.rateSnaps[r.ID] = &c
	}
	return nil
}

// PoolMetricsCount reports the number of distinct pool metrics rows.
func (s *SnapshotSink) PoolMetricsCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.poolMetrics)
}

// PoolMetricsByID returns a stored snapshot, or nil.
func (s *SnapshotSink) PoolMetricsByID(id string) *domain.PoolMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.poolMetrics[id]; ok {
		c := *m
		return &c
	}
	return nil
}

// RateSnapshotCount reports the number of distinct rate snapshot rows.
func (s *SnapshotSink) RateSnapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rateSnaps)
}
