package testutil

import (
	"github.com/trackline/cmdb/internal/pkg/logger"
)

// NewTestLogger returns a logger that only emits errors, keeping test
// output readable.
func NewTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "console"})
}
