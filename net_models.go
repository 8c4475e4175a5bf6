package relink

import (
	"context"
)

// CloseNormal is the websocket close code for a normal closure.
const CloseNormal = 1000

type (
	// Listener receives the events of a single transport connection. A Transport delivers all
	// events for one connection from a single goroutine, in the order they happened.
	Listener interface {
		OnOpen(c Conn)
		OnMessage(c Conn, text string)
		// OnClosing is called when the peer sent a close frame. The connection is not fully
		// closed until the listener answers with Conn.Close.
		OnClosing(c Conn, code int, reason string)
		OnClosed(c Conn, code int, reason string)
		OnFailure(c Conn, err error)
	}

	// Conn is a handle to one transport connection.
	Conn interface {
		// Close starts a graceful close handshake. Calling it more than once has no effect.
		Close(code int, reason string) error
		// Cancel drops the connection immediately. No listener events follow a Cancel.
		Cancel()
	}

	// Transport opens connections. Open must not block on the network and must never invoke the
	// listener from the calling goroutine; connection progress is reported through l.
	Transport interface {
		Open(ctx context.Context, url string, l Listener) Conn
	}

	// TransportFunc adapts a plain function to the Transport interface.
	TransportFunc func(ctx context.Context, url string, l Listener) Conn
)

func (f TransportFunc) Open(ctx context.Context, url string, l Listener) Conn {
	return f(ctx, url, l)
}
