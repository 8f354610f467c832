package port

import (
	"context"
	"time"
)

type Command interface {
	// Run executes the command until it completes, fails, or the context is cancelled. A zero timeout means the
	// command runs without a deadline.
	Run(ctx context.Context, timeout time.Duration) error
	// GetCommand retrieves the command identifier associated with a specific command handler.
	GetCommand() string
}

type CommandRegistry interface {
	// Register adds a new command handler to the command registry.
	Register(handler Command)
	// Get retrieves a registered Command based on its string identifier or returns an error if not found.
	Get(command string) (Command, error)
	// ListCommands returns a list of all command identifiers currently registered in the command registry.
	ListCommands() []string
}
