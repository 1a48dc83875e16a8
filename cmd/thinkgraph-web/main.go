// thinkgraph-web serves the thinkgraph MCP tools over HTTP and WebSocket,
// along with the REST helper endpoints, health and Prometheus metrics.
package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/app"
	"github.com/scrypster/thinkgraph/internal/cli"
	"github.com/scrypster/thinkgraph/internal/config"
	"github.com/scrypster/thinkgraph/internal/server"
)

func main() {
	cmd := cli.NewCommand("thinkgraph-web", "Advanced reasoning MCP server over HTTP and WebSocket", cli.HTTPFlags, run)
	os.Exit(cli.Execute(cmd))
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	a, err := app.New(ctx, cfg, app.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	}()

	handler, err := a.HTTPHandler()
	if err != nil {
		return err
	}
	addr, done, err := server.Start(ctx, cfg, handler, logger.Named("http"))
	if err != nil {
		return err
	}
	logger.Info("HTTP server listening",
		zap.String("addr", addr),
		zap.String("security_mode", cfg.Security.SecurityMode))

	return <-done
}
