package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// MaxMessageSize bounds one stdio line or WebSocket message.
const MaxMessageSize = 4 * 1024 * 1024

// StdioTransport reads line-delimited JSON-RPC 2.0 requests from an io.Reader
// and writes one response line per request to an io.Writer.
//
// Stdout carries protocol frames only. The logger must write elsewhere
// (logging.New always targets stderr).
type StdioTransport struct {
	dispatcher *Dispatcher
	in         io.Reader
	out        io.Writer
	logger     *zap.Logger
}

// NewStdioTransport constructs a StdioTransport over d.
//
//	t := mcp.NewStdioTransport(d, os.Stdin, os.Stdout, logger)
//	t.Serve(ctx)
func NewStdioTransport(d *Dispatcher, in io.Reader, out io.Writer, logger *zap.Logger) *StdioTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StdioTransport{dispatcher: d, in: in, out: out, logger: logger}
}

// Serve handles requests in arrival order until in is exhausted or ctx is
// cancelled. A clean EOF returns nil. Cancellation is honoured while a read
// is pending, so a client holding stdin open cannot keep the process alive.
func (t *StdioTransport) Serve(ctx context.Context) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go t.scan(lines, scanErr, stop)

	for {
		if err := ctx.Err(); err != nil {
			return t.cancelled(err)
		}

		var line []byte
		select {
		case <-ctx.Done():
			return t.cancelled(ctx.Err())
		case l, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					t.logger.Error("mcp: stdin scanner error", zap.Error(err))
					return fmt.Errorf("stdin scanner: %w", err)
				}
				t.logger.Info("mcp: stdin closed, stdio transport stopping")
				return nil
			}
			line = l
		}

		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		resp := t.dispatcher.HandleRaw(ctx, line)
		if isNotification(line) {
			continue
		}
		if _, err := fmt.Fprintf(t.out, "%s\n", resp); err != nil {
			t.logger.Error("mcp: write response", zap.Error(err))
			return fmt.Errorf("write response: %w", err)
		}
	}
}

func (t *StdioTransport) cancelled(err error) error {
	t.logger.Info("mcp: context cancelled, stdio transport stopping")
	return err
}

// scan feeds lines from in until it ends or stop is closed. The reader is
// not ours to close, so after a cancellation this goroutine may stay blocked
// in Read until the process exits.
func (t *StdioTransport) scan(lines chan<- []byte, errc chan<- error, stop <-chan struct{}) {
	defer close(lines)

	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 64*1024), MaxMessageSize)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case lines <- line:
		case <-stop:
			errc <- nil
			return
		}
	}
	errc <- scanner.Err()
}

// isNotification reports whether raw is an MCP notification: a
// notifications/* method sent without an id. Clients do not expect a reply.
func isNotification(raw []byte) bool {
	var head struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return false
	}
	return head.ID == nil && strings.HasPrefix(head.Method, "notifications/")
}
