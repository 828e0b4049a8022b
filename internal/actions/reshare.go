package actions

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/skynet-bot/internal/models"
	"github.com/pauljones0/skynet-bot/internal/ranker"
	"github.com/pauljones0/skynet-bot/internal/scraper"
)

// ReshareOwn reshares the latest post of the home group. A post that was
// already reshared counts as success. When the group post is itself a
// reshare of an excluded upstream, a random post is reshared instead.
func (b *Bot) ReshareOwn(ctx context.Context) (bool, error) {
	if ok, err := b.authenticate(ctx, "reshare_own"); !ok {
		return false, err
	}

	interval := b.config.OwnResharePeriod
	ownWall, fresh, err := b.reshareWindowOpen(ctx, interval)
	if !fresh {
		return false, err
	}

	groupDoc, ok, err := b.fetch(ctx, b.config.HomeGroup)
	if !ok {
		return false, err
	}
	groupPost, ok := b.parser.LatestWallPost(groupDoc)
	if !ok || groupPost.ID == "" {
		slog.Warn("No post found on home group wall")
		return false, nil
	}

	if ranker.AlreadyReshared(groupPost, b.parser.WallPosts(ownWall)) {
		slog.Info("Home group post already reshared", "id", groupPost.ID)
		return true, nil
	}

	if groupPost.IsReshare() && b.excludedUpstream(groupPost.OriginAuthorLink) {
		slog.Info("Home group post comes from an excluded upstream, resharing a random post", "upstream", groupPost.OriginAuthorLink)
		return b.reshareBest(ctx, ownWall)
	}
	return b.reshare(ctx, groupPost)
}

// ReshareRandom reshares the best not yet reshared post of the source walls,
// provided the bot has not reshared anything within interval.
func (b *Bot) ReshareRandom(ctx context.Context, interval time.Duration) (bool, error) {
	if ok, err := b.authenticate(ctx, "reshare_random"); !ok {
		return false, err
	}

	ownWall, fresh, err := b.reshareWindowOpen(ctx, interval)
	if !fresh {
		return false, err
	}
	return b.reshareBest(ctx, ownWall)
}

func (b *Bot) excludedUpstream(link string) bool {
	link = strings.TrimSpace(link)
	return link != "" && slices.Contains(b.config.Targets.ExcludedUpstreams, link)
}

// reshareWindowOpen loads the bot's own wall and reports whether its last
// reshare is older than interval.
func (b *Bot) reshareWindowOpen(ctx context.Context, interval time.Duration) (*goquery.Document, bool, error) {
	doc, ok, err := b.fetch(ctx, b.ownProfilePath())
	if !ok {
		return nil, false, err
	}
	last := b.parser.LastReshareTime(doc)
	if !last.IsZero() && b.now().Sub(last) < interval {
		slog.Info("Last reshare too recent", "last", last, "interval", interval)
		return nil, false, nil
	}
	return doc, true, nil
}

func (b *Bot) reshareBest(ctx context.Context, ownWall *goquery.Document) (bool, error) {
	candidates, err := b.collectWalls(ctx, b.config.Targets.Sources, b.parser.SourcePosts)
	if err != nil {
		return false, err
	}
	published, err := b.collectWalls(ctx, b.config.Targets.SiblingBots, b.parser.WallPosts)
	if err != nil {
		return false, err
	}
	published = append(published, b.parser.WallPosts(ownWall)...)

	best, ok := ranker.SelectBest(candidates, published, b.rng)
	if !ok {
		return false, nil
	}
	if err := b.validator.ValidateStruct(best); err != nil {
		slog.Warn("Best candidate is invalid", "id", best.ID, "error", err)
		return false, nil
	}
	slog.Info("Selected post to reshare", "id", best.ID, "rating", best.Rating, "candidates", len(candidates), "published", len(published))
	return b.reshare(ctx, best)
}

// collectWalls parses every wall in targets. A wall that cannot be fetched
// is logged and skipped.
func (b *Bot) collectWalls(ctx context.Context, targets []string, parse func(*goquery.Document) []models.PostRecord) ([]models.PostRecord, error) {
	var posts []models.PostRecord
	for _, target := range targets {
		doc, ok, err := b.fetch(ctx, target)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			slog.Warn("Failed to fetch wall, skipping", "url", target, "error", err)
			continue
		}
		if !ok {
			continue
		}
		posts = append(posts, parse(doc)...)
	}
	return posts, nil
}

// reshare stages the post in the share box and publishes it to the bot's wall.
func (b *Bot) reshare(ctx context.Context, post models.PostRecord) (bool, error) {
	object := "wall" + strings.TrimPrefix(post.ID, "post")

	resp, err := b.session.Post(ctx, "/like.php", url.Values{
		"act":    {"publish_box"},
		"al":     {"1"},
		"object": {object},
	})
	if err != nil {
		return false, err
	}
	shareHash, ok := scraper.ShareHash(resp.Body)
	if !ok {
		slog.Warn("Share token not found", "object", object)
		return false, nil
	}

	resp, err = b.session.Post(ctx, "/like.php", url.Values{
		"act":    {"a_do_publish"},
		"al":     {"1"},
		"from":   {"box"},
		"hash":   {shareHash},
		"list":   {""},
		"object": {object},
		"to":     {"0"},
	})
	if err != nil {
		return false, err
	}
	if !strings.Contains(resp.Body, scraper.MarkerPublished) {
		slog.Warn("Reshare not confirmed", "object", object)
		return false, nil
	}
	b.persist(ctx)
	slog.Info("Post reshared", "id", post.ID)
	return true, nil
}
