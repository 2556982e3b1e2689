package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the process-wide zap logger. Production environments get JSON
// output; everything else gets the human-readable development encoder.
func New(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	switch env {
	case "production", "staging":
		logger, err = zap.NewProduction()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}
