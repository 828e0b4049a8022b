package actions

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/pauljones0/skynet-bot/internal/scraper"
)

// Relationship statuses the friend search picks from.
var searchStatuses = []string{"1", "5", "6"}

// AddFriend finds a person through the people search and sends a friend
// request. A CAPTCHA demand is answered once.
func (b *Bot) AddFriend(ctx context.Context) (bool, error) {
	if ok, err := b.authenticate(ctx, "add_friend"); !ok {
		return false, err
	}

	candidate, found, err := b.searchFriend(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		slog.Warn("No friend candidates found")
		return false, nil
	}

	form := url.Values{
		"act":  {"subscr"},
		"al":   {"1"},
		"from": {"search"},
		"hash": {candidate.Hash},
		"oid":  {candidate.ID},
		"ref":  {"friends"},
	}
	resp, err := b.session.Post(ctx, "/al_feed.php", form)
	if err != nil {
		return false, err
	}
	if strings.Contains(resp.Body, scraper.MarkerSubscribed) {
		return b.friendAdded(ctx, candidate.ID), nil
	}

	key, challenged := scraper.CaptchaKey(resp.Body)
	if !challenged {
		slog.Warn("Friend request not confirmed", "id", candidate.ID)
		return false, nil
	}
	token, err := b.solver.Solve(ctx, key)
	if err != nil {
		slog.Warn("Failed to solve friend request captcha", "error", err)
		return false, ctx.Err()
	}
	form.Set("recaptcha", token)
	if resp, err = b.session.Post(ctx, "/al_feed.php", form); err != nil {
		return false, err
	}
	if strings.Contains(resp.Body, scraper.MarkerSubscribed) {
		return b.friendAdded(ctx, candidate.ID), nil
	}
	slog.Warn("Friend request not confirmed after captcha", "id", candidate.ID)
	return false, nil
}

func (b *Bot) friendAdded(ctx context.Context, id string) bool {
	b.persist(ctx)
	slog.Info("Friend request sent", "id", id)
	return true
}

// searchFriend pages through search results until a page has a visible
// candidate. With more than one visible candidate the second is taken.
func (b *Bot) searchFriend(ctx context.Context) (scraper.FriendCandidate, bool, error) {
	if _, err := b.session.Get(ctx, "/friends?act=find"); err != nil {
		return scraper.FriendCandidate{}, false, err
	}

	city := b.pick(b.config.Targets.Cities)
	status := b.pick(searchStatuses)

	offset := 0
	for page := 0; page < b.config.SearchMaxPages; page++ {
		form := url.Values{
			"al":          {"1"},
			"c[age_from]": {"18"},
			"c[age_to]":   {"45"},
			"c[city]":     {city},
			"c[country]":  {"1"},
			"c[online]":   {"1"},
			"c[photo]":    {"1"},
			"c[section]":  {"people"},
			"c[status]":   {status},
			"change":      {"1"},
			"search_loc":  {"friends?act=find"},
		}
		if offset > 0 {
			form.Set("al_ad", "0")
			form.Set("offset", strconv.Itoa(offset))
		}

		resp, err := b.session.Post(ctx, "/al_search.php", form)
		if err != nil {
			return scraper.FriendCandidate{}, false, err
		}
		result := scraper.FriendSearchPage(resp.Body)
		if visible := result.Visible(); len(visible) > 0 {
			if len(visible) > 1 {
				return visible[1], true, nil
			}
			return visible[0], true, nil
		}
		if !result.HasMore || result.NextOffset <= offset {
			break
		}
		offset = result.NextOffset
	}
	return scraper.FriendCandidate{}, false, nil
}

// AcceptFriendRequests accepts the first pending friend request. Having none
// pending counts as success.
func (b *Bot) AcceptFriendRequests(ctx context.Context) (bool, error) {
	if ok, err := b.authenticate(ctx, "accept_friend_requests"); !ok {
		return false, err
	}

	resp, err := b.session.Get(ctx, "/friends?section=requests")
	if err != nil {
		return false, err
	}
	requests := scraper.IncomingRequests(resp.Body)
	if len(requests) == 0 {
		slog.Info("Friend requests checked", "accepted", 0)
		return true, nil
	}

	first := requests[0]
	resp, err = b.session.Post(ctx, "/al_friends.php", url.Values{
		"act":         {"add"},
		"al":          {"1"},
		"hash":        {first.Hash},
		"mid":         {first.ID},
		"request":     {"1"},
		"select_list": {"1"},
	})
	if err != nil {
		return false, err
	}
	if !strings.Contains(resp.Body, scraper.MarkerFriendAdded) {
		slog.Warn("Friend request acceptance not confirmed", "id", first.ID)
		return false, nil
	}
	b.persist(ctx)
	slog.Info("Friend requests checked", "accepted", 1, "id", first.ID)
	return true, nil
}
