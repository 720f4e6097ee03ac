// Package wsconn adapts a WebSocket connection to the ircrunner.Conn
// interface, so the runner can drive Twitch's wss://irc-ws.chat.twitch.tv
// endpoint the same way it drives a plain TCP/TLS socket.
package wsconn

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"nhooyr.io/websocket"
)

// Dial opens a WebSocket connection to addr (e.g.
// "wss://irc-ws.chat.twitch.tv:443") and wraps it as a net.Conn via
// websocket.NetConn, using "text" message framing since Twitch IRC
// commands are newline-delimited text.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "wsconn: dial")
	}
	conn.SetReadLimit(1 << 20)
	return websocket.NetConn(context.Background(), conn, websocket.MessageText), nil
}

// DialTimeout is a convenience wrapper applying a connect timeout.
func DialTimeout(addr string, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return Dial(ctx, addr)
}
