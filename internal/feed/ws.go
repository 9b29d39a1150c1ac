package feed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/observability"
)

// WSConfig configures websocket feed behavior.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential reconnect backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
	// WriteTimeout is the deadline for control-frame writes.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default websocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      15 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Handler consumes one decoded event.
type Handler func(ctx context.Context, ev *domain.Event)

// WSFeed streams decoded events from the delivery layer's websocket.
// The connection is re-established with exponential backoff; the
// delivery layer replays from its checkpoint on reconnect and the
// reduction rules absorb the resulting duplicates.
type WSFeed struct {
	url     string
	cfg     WSConfig
	log     *zap.Logger
	metrics *observability.Metrics
}

// NewWSFeed creates a websocket feed. Metrics may be nil.
func NewWSFeed(url string, cfg WSConfig, log *zap.Logger, metrics *observability.Metrics) *WSFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSFeed{url: url, cfg: cfg, log: log, metrics: metrics}
}

// Run connects and pushes every decoded event to handle until ctx is
// cancelled. Undecodable messages are counted and skipped.
func (f *WSFeed) Run(ctx context.Context, handle Handler) error {
	delay := f.cfg.ReconnectDelay
	first := true

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !first {
			f.log.Info("reconnecting to event feed", zap.Duration("delay", delay))
			if f.metrics != nil {
				f.metrics.FeedReconnects.Inc()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > f.cfg.MaxReconnectDelay {
				delay = f.cfg.MaxReconnectDelay
			}
		}
		first = false

		err := f.readSession(ctx, handle, &delay)
		if err != nil && ctx.Err() == nil {
			f.log.Warn("event feed connection lost", zap.Error(err))
		}
	}
}

// readSession runs one dial-read cycle. It resets the backoff delay once
// a message arrives, so a flapping endpoint still backs off.
func (f *WSFeed) readSession(ctx context.Context, handle Handler, delay *time.Duration) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", f.url, err)
	}
	defer conn.Close()

	f.log.Info("connected to event feed", zap.String("url", f.url))

	var closed atomic.Bool
	go func() {
		<-ctx.Done()
		closed.Store(true)
		conn.Close()
	}()

	pinger := time.NewTicker(f.cfg.PingInterval)
	defer pinger.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pinger.C:
				deadline := time.Now().Add(f.cfg.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout)); err != nil {
			return err
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if closed.Load() {
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		*delay = f.cfg.ReconnectDelay

		if f.metrics != nil {
			f.metrics.FeedMessages.Inc()
		}
		ev, err := DecodeEvent(message)
		if err != nil {
			f.log.Warn("skipping undecodable feed message", zap.Error(err))
			if f.metrics != nil {
				f.metrics.FeedDecodeErrors.Inc()
			}
			continue
		}
		handle(ctx, ev)
	}
}
