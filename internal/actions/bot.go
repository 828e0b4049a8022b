// Package actions implements the bot's repertoire. Every action returns
// (true, nil) on success, (false, nil) when it could not be carried out and
// (false, err) only for transport faults the session could not recover from.
package actions

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/skynet-bot/internal/config"
	"github.com/pauljones0/skynet-bot/internal/scraper"
	"github.com/pauljones0/skynet-bot/internal/validator"
)

type Bot struct {
	session   Session
	solver    CaptchaSolver
	messenger Messenger
	parser    *scraper.Parser
	validator *validator.Validator
	config    *config.Config
	rng       *rand.Rand
	now       func() time.Time
}

func New(sess Session, solver CaptchaSolver, messenger Messenger, parser *scraper.Parser, cfg *config.Config) *Bot {
	return &Bot{
		session:   sess,
		solver:    solver,
		messenger: messenger,
		parser:    parser,
		validator: validator.New(),
		config:    cfg,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1)),
		now:       time.Now,
	}
}

func (b *Bot) authenticate(ctx context.Context, action string) (bool, error) {
	ok, err := b.session.EnsureAuthenticated(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		slog.Warn("Not authenticated, skipping action", "action", action)
	}
	return ok, nil
}

func (b *Bot) ownProfilePath() string {
	return "/id" + b.session.AccountID()
}

// fetch GETs target and parses it. ok is false for non-200 responses.
func (b *Bot) fetch(ctx context.Context, target string) (doc *goquery.Document, ok bool, err error) {
	resp, err := b.session.Get(ctx, target)
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode != http.StatusOK {
		slog.Warn("Unexpected status", "url", target, "status", resp.StatusCode)
		return nil, false, nil
	}
	return scraper.Document(resp.Body), true, nil
}

// persist saves the session after a state-changing exchange. A failed save is
// logged; the action itself already happened.
func (b *Bot) persist(ctx context.Context) {
	if err := b.session.Persist(ctx); err != nil {
		slog.Error("Failed to persist session", "error", err)
	}
}

func (b *Bot) pick(items []string) string {
	return items[b.rng.IntN(len(items))]
}

// Presence refreshes the online status by opening the bot's own profile.
func (b *Bot) Presence(ctx context.Context) (bool, error) {
	if ok, err := b.authenticate(ctx, "presence"); !ok {
		return false, err
	}
	if _, ok, err := b.fetch(ctx, b.ownProfilePath()); !ok {
		return false, err
	}
	b.persist(ctx)
	slog.Info("Online status refreshed")
	return true, nil
}

// VisitGroup opens the home group page.
func (b *Bot) VisitGroup(ctx context.Context) (bool, error) {
	if ok, err := b.authenticate(ctx, "visit_group"); !ok {
		return false, err
	}
	if _, ok, err := b.fetch(ctx, b.config.HomeGroup); !ok {
		return false, err
	}
	slog.Info("Visited home group")
	return true, nil
}
