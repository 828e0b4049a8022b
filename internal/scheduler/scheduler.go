// Package scheduler drives the bot's actions on a fixed tick, gated by
// per-kind cooldowns.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"
)

// Actions is the repertoire a tick chooses from.
type Actions interface {
	ReshareRandom(ctx context.Context, interval time.Duration) (bool, error)
	ReshareOwn(ctx context.Context) (bool, error)
	AddFriend(ctx context.Context) (bool, error)
	AcceptFriendRequests(ctx context.Context) (bool, error)
	SendStat(ctx context.Context) (bool, error)
	VisitGroup(ctx context.Context) (bool, error)
	Presence(ctx context.Context) (bool, error)
}

type Options struct {
	TickInterval        time.Duration
	AwakeFromHour       int
	AwakeToHour         int
	StatHour            int
	RandomResharePeriod time.Duration
}

// PanicError carries a recovered panic and the stack it was raised on.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

type Scheduler struct {
	actions Actions
	gate    *Gate
	opts    Options
	now     func() time.Time
}

func New(actions Actions, gate *Gate, opts Options) *Scheduler {
	return &Scheduler{
		actions: actions,
		gate:    gate,
		opts:    opts,
		now:     time.Now,
	}
}

type step struct {
	kind Kind
	run  func(context.Context) (bool, error)
	// markAlways advances the cooldown whatever the outcome.
	markAlways bool
}

func (s *Scheduler) steps(hour int) []step {
	steps := []step{
		{kind: ReshareRandom, run: func(ctx context.Context) (bool, error) {
			return s.actions.ReshareRandom(ctx, s.opts.RandomResharePeriod)
		}},
		{kind: ReshareOwn, run: s.actions.ReshareOwn},
		{kind: AddFriend, run: s.actions.AddFriend, markAlways: true},
		{kind: AcceptFriendRequests, run: s.actions.AcceptFriendRequests, markAlways: true},
	}
	if hour == s.opts.StatHour {
		steps = append(steps, step{kind: SendStat, run: s.actions.SendStat})
	}
	return append(steps,
		step{kind: VisitGroup, run: s.actions.VisitGroup},
		step{kind: Presence, run: s.actions.Presence},
	)
}

// Tick attempts due actions in priority order until one succeeds. It does
// nothing outside the awake window. An error from an action ends the tick.
func (s *Scheduler) Tick(ctx context.Context) error {
	hour := s.now().Hour()
	if hour < s.opts.AwakeFromHour || hour > s.opts.AwakeToHour {
		slog.Debug("Outside awake window, skipping tick", "hour", hour)
		return nil
	}

	for _, st := range s.steps(hour) {
		if !s.gate.IsDue(st.kind) {
			continue
		}
		slog.Info("Running action", "action", st.kind)
		ok, err := st.run(ctx)
		if ok || st.markAlways {
			s.gate.MarkRun(st.kind)
		}
		if err != nil {
			return fmt.Errorf("action %s: %w", st.kind, err)
		}
		if ok {
			slog.Info("Action succeeded", "action", st.kind)
			return nil
		}
		slog.Info("Action did not succeed", "action", st.kind)
	}
	return nil
}

func (s *Scheduler) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return s.Tick(ctx)
}

// Run ticks once right away and then every TickInterval until ctx is done or
// a tick fails. Ticks never overlap. The first failure is returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.opts.TickInterval <= 0 {
		return errors.New("tick interval must be positive")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 1)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	_, err := c.AddFunc("@every "+s.opts.TickInterval.String(), func() {
		if runCtx.Err() != nil {
			return
		}
		if err := s.safeTick(runCtx); err != nil {
			select {
			case errc <- err:
			default:
			}
			cancel()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule tick: %w", err)
	}

	slog.Info("Starting scheduler", "interval", s.opts.TickInterval)
	if err := s.safeTick(runCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	c.Start()
	defer func() {
		cancel()
		<-c.Stop().Done()
		slog.Info("Scheduler stopped")
	}()

	select {
	case err := <-errc:
		return err
	case <-runCtx.Done():
		select {
		case err := <-errc:
			return err
		default:
		}
		return ctx.Err()
	}
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
