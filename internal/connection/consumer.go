package connection

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// FrameHandler processes one raw frame from the stream.
type FrameHandler interface {
	HandleFrame(ctx context.Context, msg TimestampedMessage)
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(ctx context.Context, msg TimestampedMessage)

// HandleFrame calls f(ctx, msg).
func (f FrameHandlerFunc) HandleFrame(ctx context.Context, msg TimestampedMessage) {
	f(ctx, msg)
}

// ClientFactory builds a fresh Client for each connection attempt.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

// Consumer keeps one live stream connection open and feeds its frames to a
// handler, reconnecting with backoff whenever the connection fails.
type Consumer struct {
	cfg       ConsumerConfig
	handler   FrameHandler
	logger    *slog.Logger
	newClient ClientFactory

	state      atomic.Int32
	frames     atomic.Int64
	dropped    atomic.Int64
	reconnects atomic.Int64
	dialErrors atomic.Int64
}

// NewConsumer creates a consumer that delivers frames to handler.
func NewConsumer(cfg ConsumerConfig, handler FrameHandler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:       cfg,
		handler:   handler,
		logger:    logger.With("component", "stream_consumer"),
		newClient: NewClient,
	}
}

// SetClientFactory overrides how connections are built. Used by tests.
func (c *Consumer) SetClientFactory(f ClientFactory) {
	c.newClient = f
}

// State returns the current connection state.
func (c *Consumer) State() State {
	return State(c.state.Load())
}

// Stats returns a snapshot of consumer counters.
func (c *Consumer) Stats() Stats {
	return Stats{
		Frames:     c.frames.Load(),
		Dropped:    c.dropped.Load(),
		Reconnects: c.reconnects.Load(),
		DialErrors: c.dialErrors.Load(),
	}
}

func (c *Consumer) setState(s State) {
	if State(c.state.Swap(int32(s))) != s {
		c.logger.Debug("state changed", "state", s.String())
	}
}

// Run connects and streams until ctx is cancelled. It never gives up on
// connection failures; it returns nil once ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.setState(StateDisconnected)

	attempt := 0
	for ctx.Err() == nil {
		c.setState(StateConnecting)
		client := c.newClient(c.cfg.Client, c.logger)

		if err := client.Connect(ctx); err != nil {
			client.Close()
			c.setState(StateDisconnected)
			if ctx.Err() != nil {
				break
			}
			c.dialErrors.Add(1)
			attempt++
			wait := c.cfg.Backoff.Next(attempt)
			c.logger.Warn("feed connect failed",
				"error", err,
				"attempt", attempt,
				"retry_in", wait,
			)
			if !sleep(ctx, wait) {
				break
			}
			continue
		}

		c.setState(StateStreaming)
		c.logger.Info("feed connected", "url", c.cfg.Client.URL)

		err := c.stream(ctx, client)
		client.Close()
		c.dropped.Add(client.Dropped())
		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			break
		}

		c.reconnects.Add(1)
		attempt = 1
		wait := c.cfg.Backoff.Next(attempt)
		c.logger.Warn("feed disconnected", "error", err, "retry_in", wait)
		if !sleep(ctx, wait) {
			break
		}
	}

	c.logger.Info("stream consumer stopped")
	return nil
}

// stream pumps frames from client to the handler until the connection fails
// or ctx is cancelled.
func (c *Consumer) stream(ctx context.Context, client Client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-client.Errors():
			return err
		case msg := <-client.Messages():
			c.frames.Add(1)
			c.handler.HandleFrame(ctx, msg)
		}
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
