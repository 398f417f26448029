// Package connection maintains the live ticker stream.
//
// A Client wraps one gorilla/websocket connection with a read loop and a
// keepalive heartbeat. The Consumer owns the connection lifecycle:
//
//	Disconnected -> Connecting -> Streaming -> Disconnected -> ...
//
// Dial failures and dropped connections are retried forever with capped
// exponential backoff. Cancelling the context closes the socket and returns
// without reconnecting. Every frame received is handed to a FrameHandler.
package connection
