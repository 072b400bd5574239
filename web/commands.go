package web

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-command/runner"
	tours "github.com/goliatone/go-tours"
)

// DefaultCommandTimeout bounds a single command run started by a request
const DefaultCommandTimeout = 30 * time.Second

func newCommandRunner(logger tours.Logger) *runner.Handler {
	return runner.NewHandler(
		runner.WithTimeout(DefaultCommandTimeout),
		runner.WithErrorHandler(func(err error) {
			logger.Debug("command failed", "error", err)
		}),
	)
}

// runCommand validates msg and executes it with r. Handler panics come back
// as errors.
func runCommand[T command.Message](ctx context.Context, r *runner.Handler, cmd command.Commander[T], msg T) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return runner.RunCommand(ctx, r, cmd, msg)
}
