// Package logging builds the zap logger shared by thinkgraph components.
// Every logger writes to stderr: stdout carries the stdio transport's
// newline-delimited JSON and must never see log lines.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a production logger when env is "production" and a development
// logger otherwise.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, nil
}
