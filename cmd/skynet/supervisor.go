package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/pauljones0/skynet-bot/internal/scheduler"
)

// supervise runs the bot until ctx is done. Every failure is written to
// crash and the bot is rebuilt after a jitter delay.
func supervise(ctx context.Context, runBot func(context.Context) error, crash io.Writer, jitter func() time.Duration) {
	for restarts := 0; ; restarts++ {
		if d := jitter(); d > 0 {
			slog.Info("Waiting before start", "delay", d, "restarts", restarts)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
		}

		err := safeRun(ctx, runBot)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("bot exited without error")
		}
		slog.Error("Bot crashed, restarting", "error", err, "restarts", restarts)
		writeCrash(crash, err, time.Now())
	}
}

func safeRun(ctx context.Context, runBot func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &scheduler.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return runBot(ctx)
}

func writeCrash(w io.Writer, err error, at time.Time) {
	entry := fmt.Sprintf("%s %v\n", at.Format(time.RFC3339), err)
	var panicErr *scheduler.PanicError
	if errors.As(err, &panicErr) {
		entry += string(panicErr.Stack)
		if len(panicErr.Stack) > 0 && panicErr.Stack[len(panicErr.Stack)-1] != '\n' {
			entry += "\n"
		}
	}
	if _, werr := io.WriteString(w, entry); werr != nil {
		slog.Error("Failed to write crash log", "error", werr)
	}
}
