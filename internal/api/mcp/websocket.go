package mcp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// writeTimeout bounds a single response write to a WebSocket client.
const writeTimeout = 10 * time.Second

// WebSocketTransport serves JSON-RPC over WebSocket. Every text message is
// one request and receives one response on the same socket. Sockets share
// nothing but the dispatcher.
type WebSocketTransport struct {
	dispatcher     *Dispatcher
	originPatterns []string
	logger         *zap.Logger
}

// NewWebSocketTransport returns an http.Handler that upgrades connections and
// dispatches their messages through d. originPatterns lists the cross-origin
// hosts allowed to connect; same-origin requests are always accepted.
func NewWebSocketTransport(d *Dispatcher, originPatterns []string, logger *zap.Logger) *WebSocketTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketTransport{dispatcher: d, originPatterns: originPatterns, logger: logger}
}

// ServeHTTP upgrades the connection and serves it until the client leaves.
func (t *WebSocketTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: t.originPatterns,
	})
	if err != nil {
		t.logger.Warn("mcp: websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(MaxMessageSize)

	t.logger.Info("mcp: websocket client connected", zap.String("remote", r.RemoteAddr))
	err = t.serve(r.Context(), conn)
	t.logger.Info("mcp: websocket client disconnected", zap.String("remote", r.RemoteAddr), zap.Error(err))
}

func (t *WebSocketTransport) serve(ctx context.Context, conn *websocket.Conn) error { //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		resp := t.dispatcher.HandleRaw(ctx, msg)

		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = conn.Write(wctx, websocket.MessageText, resp)
		cancel()
		if err != nil {
			return err
		}
	}
}
