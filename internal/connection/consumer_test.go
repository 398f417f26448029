package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func fastConsumerConfig(url string) ConsumerConfig {
	return ConsumerConfig{
		Client: ClientConfig{
			URL:          url,
			PingTimeout:  30 * time.Second,
			WriteTimeout: time.Second,
			BufferSize:   16,
		},
		Backoff: Backoff{Base: 10 * time.Millisecond, Max: 50 * time.Millisecond, Factor: 2.0},
	}
}

// frameRecorder collects frames passed to the handler.
type frameRecorder struct {
	mu     sync.Mutex
	frames []string
}

func (r *frameRecorder) HandleFrame(_ context.Context, msg TimestampedMessage) {
	r.mu.Lock()
	r.frames = append(r.frames, string(msg.Data))
	r.mu.Unlock()
}

func (r *frameRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConsumer_StreamsFrames(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for i := 0; i < 3; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`[]`)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	rec := &frameRecorder{}
	consumer := NewConsumer(fastConsumerConfig(wsURL(server)), rec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	waitFor(t, time.Second, func() bool { return rec.count() == 3 })
	if got := consumer.State(); got != StateStreaming {
		t.Errorf("State() = %v, want streaming", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := consumer.State(); got != StateDisconnected {
		t.Errorf("State() after cancel = %v, want disconnected", got)
	}
	if got := consumer.Stats().Frames; got != 3 {
		t.Errorf("Stats().Frames = %d, want 3", got)
	}
	if got := consumer.Stats().Reconnects; got != 0 {
		t.Errorf("Stats().Reconnects = %d, want 0", got)
	}
}

func TestConsumer_ReconnectsAfterDrop(t *testing.T) {
	var conns atomic.Int32
	server := mockWSServer(t, func(conn *websocket.Conn) {
		n := conns.Add(1)
		conn.WriteMessage(websocket.TextMessage, []byte(`[]`))
		if n == 1 {
			// First connection drops right away.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	rec := &frameRecorder{}
	consumer := NewConsumer(fastConsumerConfig(wsURL(server)), rec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	waitFor(t, 2*time.Second, func() bool { return conns.Load() >= 2 && rec.count() >= 2 })

	if got := consumer.Stats().Reconnects; got < 1 {
		t.Errorf("Stats().Reconnects = %d, want >= 1", got)
	}
}

// fakeClient fails every Connect.
type fakeClient struct {
	err    error
	closed atomic.Bool
}

func (f *fakeClient) Connect(context.Context) error       { return f.err }
func (f *fakeClient) Close() error                        { f.closed.Store(true); return nil }
func (f *fakeClient) Messages() <-chan TimestampedMessage { return nil }
func (f *fakeClient) Errors() <-chan error                { return nil }
func (f *fakeClient) IsConnected() bool                   { return false }
func (f *fakeClient) Dropped() int64                      { return 0 }

func TestConsumer_RetriesDialFailures(t *testing.T) {
	var attempts atomic.Int32
	consumer := NewConsumer(fastConsumerConfig("ws://unused"), FrameHandlerFunc(func(context.Context, TimestampedMessage) {}), nil)
	consumer.SetClientFactory(func(ClientConfig, *slog.Logger) Client {
		attempts.Add(1)
		return &fakeClient{err: errors.New("dial refused")}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool { return attempts.Load() >= 3 })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := consumer.Stats().DialErrors; got < 3 {
		t.Errorf("Stats().DialErrors = %d, want >= 3", got)
	}
}

func TestConsumer_CancelDuringBackoff(t *testing.T) {
	cfg := fastConsumerConfig("ws://unused")
	cfg.Backoff = Backoff{Base: time.Hour, Max: time.Hour}

	consumer := NewConsumer(cfg, FrameHandlerFunc(func(context.Context, TimestampedMessage) {}), nil)
	consumer.SetClientFactory(func(ClientConfig, *slog.Logger) Client {
		return &fakeClient{err: errors.New("dial refused")}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(done)
	}()

	waitFor(t, time.Second, func() bool { return consumer.Stats().DialErrors == 1 })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return while waiting to reconnect")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateStreaming, "streaming"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
