package cmdlog

import (
	"time"

	"go.uber.org/zap"

	"refdash/internal/apperr"
	"refdash/internal/metrics"
)

// Run executes one CLI command, counting it and logging the outcome.
func Run(logger *zap.Logger, cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	if err != nil {
		metrics.IncCommandError(cmd)
		logger.Error("command failed", zap.String("command", cmd), zap.Stringer("kind", apperr.KindOf(err)), zap.Duration("duration", time.Since(start)), zap.Error(err))
	} else {
		logger.Debug("command completed", zap.String("command", cmd), zap.Duration("duration", time.Since(start)))
	}
	return err
}
