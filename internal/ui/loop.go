package ui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vbonduro/shelfshot/internal/app"
	"github.com/vbonduro/shelfshot/internal/bus"
)

const keyPoll = 50 * time.Millisecond

// Run loops until the state quits, input ends, or ctx is canceled. Workers
// always receive Shutdown before Run returns.
func Run(ctx context.Context, state *app.State, b *bus.Bus, keys KeySource, out io.Writer, logger *slog.Logger) error {
	logger.Info("controller started")
	defer logger.Info("controller stopped")

	var last string
	timer := time.NewTimer(keyPoll)
	defer timer.Stop()

	for {
		state.Prune(time.Now())
		for _, e := range b.Events.Drain() {
			state.Apply(e)
		}
		b.SendAll(state.DrainPending())

		timer.Reset(keyPoll)
		select {
		case <-ctx.Done():
			b.Send(bus.Shutdown{})
			return ctx.Err()
		case k, ok := <-keys.Keys():
			if !ok {
				logger.Info("input closed, shutting down")
				b.Send(bus.Shutdown{})
				return nil
			}
			state.HandleKey(k)
			b.SendAll(state.DrainPending())
		case <-timer.C:
		}

		if view := Render(state); view != last {
			last = view
			if _, err := fmt.Fprintln(out, view); err != nil {
				logger.Warn("failed to write view", "error", err)
			}
		}
		if state.Quit {
			return nil
		}
	}
}
