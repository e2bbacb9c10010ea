package audit

import (
	"context"
	"log/slog"
)

// ConsoleListener logs each event through slog.
type ConsoleListener struct {
	logger *slog.Logger
}

// NewConsoleListener creates a ConsoleListener.
func NewConsoleListener(logger *slog.Logger) *ConsoleListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleListener{logger: logger}
}

func (c *ConsoleListener) Name() string { return "console" }

func (c *ConsoleListener) Handle(ctx context.Context, e Event) error {
	c.logger.InfoContext(ctx, "audit",
		"user", e.User,
		"admin", e.IsAdmin,
		"operation", e.Operation,
		"kind", e.Kind,
		"namespace", e.Metadata.Namespace,
		"name", e.Metadata.Name,
	)
	return nil
}
