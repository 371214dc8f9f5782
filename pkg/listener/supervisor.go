package listener

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// restartDelay paces supervisor restarts of a crashed component.
const restartDelay = time.Second

// supervise runs fn until ctx is cancelled, restarting it with fresh
// state after an error or panic. In-flight work of the crashed run is not
// retained.
func supervise(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) {
	for {
		err := runRecovered(ctx, fn)
		if ctx.Err() != nil {
			return
		}
		logger.Error("component crashed, restarting",
			"component", name, "error", err)

		select {
		case <-time.After(restartDelay):
		case <-ctx.Done():
			return
		}
	}
}

func runRecovered(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
