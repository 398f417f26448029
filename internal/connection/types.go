package connection

import (
	"crypto/tls"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw frame data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL               string        // WebSocket URL (e.g., wss://stream.binance.com:9443/ws/!ticker@arr)
	TLSConfig         *tls.Config   // nil = Go defaults
	HandshakeTimeout  time.Duration // Dial + upgrade deadline
	PingTimeout       time.Duration // Max time without ping/pong before considering connection stale
	HeartbeatInterval time.Duration // Interval between keepalive pings
	WriteTimeout      time.Duration // Write deadline for sends and control frames
	BufferSize        int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout:  10 * time.Second,
		PingTimeout:       10 * time.Minute,
		HeartbeatInterval: 30 * time.Second,
		WriteTimeout:      5 * time.Second,
		BufferSize:        256,
	}
}

// ConsumerConfig configures the stream consumer.
type ConsumerConfig struct {
	Client  ClientConfig
	Backoff Backoff
}

// DefaultConsumerConfig returns sensible defaults.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Client:  DefaultClientConfig(),
		Backoff: DefaultBackoff(),
	}
}

// State is the consumer connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Stats holds consumer counters.
type Stats struct {
	Frames     int64
	Dropped    int64
	Reconnects int64
	DialErrors int64
}
