package actions

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pauljones0/skynet-bot/internal/notifier"
	"github.com/pauljones0/skynet-bot/internal/scraper"
)

// SendStat messages the admin the bot's friend, request and unread counters.
func (b *Bot) SendStat(ctx context.Context) (bool, error) {
	if ok, err := b.authenticate(ctx, "send_stat"); !ok {
		return false, err
	}

	resp, err := b.session.Get(ctx, "/id"+b.config.AdminID)
	if err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		slog.Warn("Admin profile unavailable", "status", resp.StatusCode)
		return false, nil
	}
	composeHash, ok := scraper.ComposeHash(resp.Body)
	if !ok {
		slog.Warn("Compose token not found on admin profile")
		return false, nil
	}

	doc, ok, err := b.fetch(ctx, b.ownProfilePath())
	if !ok {
		return false, err
	}
	message := notifier.FormatStat(b.parser.ProfileStats(doc))

	if err := b.messenger.Send(ctx, b.config.AdminID, composeHash, message); err != nil {
		if errors.Is(err, notifier.ErrRejected) {
			slog.Warn("Stat message rejected", "error", err)
			return false, nil
		}
		return false, err
	}
	b.persist(ctx)
	slog.Info("Stat sent", "message", message)
	return true, nil
}
