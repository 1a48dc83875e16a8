// thinkgraph-mcp serves the thinkgraph MCP tools over stdio: one JSON-RPC
// request per line on stdin, one response per line on stdout.
//
// All logging goes to stderr. Any stray byte on stdout corrupts the protocol
// framing.
package main

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/api/mcp"
	"github.com/scrypster/thinkgraph/internal/app"
	"github.com/scrypster/thinkgraph/internal/cli"
	"github.com/scrypster/thinkgraph/internal/config"
)

func main() {
	cmd := cli.NewCommand("thinkgraph-mcp", "Advanced reasoning MCP server over stdio", nil, run)
	os.Exit(cli.Execute(cmd))
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	a, err := app.New(ctx, cfg, app.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		// ctx is already cancelled on shutdown; flushing needs its own.
		if err := a.Close(context.Background()); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	}()

	logger.Info("serving MCP on stdio")
	err = mcp.NewStdioTransport(a.Dispatcher, os.Stdin, os.Stdout, logger.Named("stdio")).Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
