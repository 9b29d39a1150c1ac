// Package dispatch routes decoded events to their reducers. Events for
// the same chain are applied strictly in delivery order on a dedicated
// single-worker lane; chains never block each other.
package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/observability"
	"domain-market-indexer/internal/reduce"
	"domain-market-indexer/internal/storage"
)

const laneQueueSize = 4096

// Dispatcher applies decoded events transactionally, one transaction per
// event. Skippable failures (malformed payloads, missing parents) are
// logged and counted but never stop the stream; storage failures do.
type Dispatcher struct {
	log      *zap.Logger
	db       storage.DB
	reducers *reduce.Reducers
	metrics  *observability.Metrics

	mu    sync.Mutex
	lanes map[uint64]pond.Pool
}

// New creates a dispatcher. Metrics may be nil.
func New(log *zap.Logger, db storage.DB, reducers *reduce.Reducers, metrics *observability.Metrics) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		log:      log,
		db:       db,
		reducers: reducers,
		metrics:  metrics,
		lanes:    make(map[uint64]pond.Pool),
	}
}

// Apply handles one event synchronously. It returns nil for skipped
// events; only storage-level failures propagate.
func (d *Dispatcher) Apply(ctx context.Context, ev *domain.Event) error {
	key := ev.RouteKey()
	fn, ok := d.reducers.Lookup(key)
	if !ok {
		d.log.Debug("no reducer registered, dropping event",
			zap.String("event", key.String()),
			zap.String("tx", ev.TxHash.Hex()),
		)
		if d.metrics != nil {
			d.metrics.EventsDropped.Inc()
		}
		return nil
	}

	start := time.Now()
	err := d.db.InTx(ctx, func(tx storage.Tx) error {
		return fn(ctx, tx, ev)
	})
	if d.metrics != nil {
		d.metrics.ApplyLatency.WithLabelValues(string(ev.Contract)).Observe(time.Since(start).Seconds())
	}

	switch {
	case err == nil:
		if d.metrics != nil {
			d.metrics.EventsApplied.WithLabelValues(string(ev.Contract), ev.Name).Inc()
			d.metrics.HighestBlockSeen.WithLabelValues(chainLabel(ev.ChainID)).Set(float64(ev.BlockNumber))
		}
		return nil

	case reduce.IsDecodeError(err):
		d.log.Warn("skipping malformed event payload",
			zap.String("event", key.String()),
			zap.String("tx", ev.TxHash.Hex()),
			zap.Uint32("log_index", ev.LogIndex),
			zap.Error(err),
		)
		d.skip("decode_error")
		return nil

	case reduce.IsMissingParent(err):
		d.log.Warn("skipping event with missing parent entity",
			zap.String("event", key.String()),
			zap.String("tx", ev.TxHash.Hex()),
			zap.Uint32("log_index", ev.LogIndex),
			zap.Error(err),
		)
		d.skip("missing_parent")
		return nil

	default:
		if d.metrics != nil {
			d.metrics.EventsFailed.WithLabelValues(string(ev.Contract), ev.Name).Inc()
		}
		return fmt.Errorf("apply %s at %s: %w", key, ev.LedgerID(), err)
	}
}

// Dispatch enqueues an event on its chain's lane. Apply errors surface
// through the error log only; use Apply directly when the caller must
// observe failures.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *domain.Event) {
	lane := d.lane(ev.ChainID)
	label := chainLabel(ev.ChainID)
	if d.metrics != nil {
		d.metrics.QueueDepth.WithLabelValues(label).Inc()
	}
	lane.Go(func() {
		defer func() {
			if d.metrics != nil {
				d.metrics.QueueDepth.WithLabelValues(label).Dec()
			}
		}()
		if err := d.Apply(ctx, ev); err != nil {
			d.log.Error("event apply failed",
				zap.Uint64("chain_id", ev.ChainID),
				zap.String("event", ev.RouteKey().String()),
				zap.Error(err),
			)
		}
	})
}

// Close drains every lane and waits for in-flight events to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	lanes := make([]pond.Pool, 0, len(d.lanes))
	for _, lane := range d.lanes {
		lanes = append(lanes, lane)
	}
	d.lanes = make(map[uint64]pond.Pool)
	d.mu.Unlock()

	for _, lane := range lanes {
		lane.StopAndWait()
	}
}

// lane returns the single-worker pool serializing one chain's events.
func (d *Dispatcher) lane(chainID uint64) pond.Pool {
	d.mu.Lock()
	defer d.mu.Unlock()
	lane, ok := d.lanes[chainID]
	if !ok {
		lane = pond.NewPool(1, pond.WithQueueSize(laneQueueSize))
		d.lanes[chainID] = lane
	}
	return lane
}

func (d *Dispatcher) skip(reason string) {
	if d.metrics != nil {
		d.metrics.EventsSkipped.WithLabelValues(reason).Inc()
	}
}

func chainLabel(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}
