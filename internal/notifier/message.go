// Package notifier delivers private messages through the platform's
// message-compose endpoint.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pauljones0/skynet-bot/internal/models"
	"github.com/pauljones0/skynet-bot/internal/session"
)

const statGreeting = "Привет! "

// ErrRejected means the platform answered but did not accept the message.
var ErrRejected = errors.New("message rejected")

// Poster sends a form through the authenticated session.
type Poster interface {
	Post(ctx context.Context, target string, form url.Values) (*session.Response, error)
}

type Client struct {
	poster Poster
}

func New(poster Poster) *Client {
	return &Client{poster: poster}
}

// FormatStat renders profile counters as "Привет! friends/requests/unread".
func FormatStat(stats models.ProfileStats) string {
	return statGreeting + strings.Join([]string{stats.Friends, stats.IncomingRequests, stats.UnreadMessages}, "/")
}

// Send delivers message to recipientID. composeHash is the token found on the
// recipient's profile page.
func (c *Client) Send(ctx context.Context, recipientID, composeHash, message string) error {
	if recipientID == "" {
		return fmt.Errorf("recipient is required")
	}
	resp, err := c.poster.Post(ctx, "/al_im.php", url.Values{
		"act":        {"a_send_box"},
		"al":         {"1"},
		"chas":       {composeHash},
		"entrypoint": {"writebox"},
		"from":       {"box"},
		"media":      {""},
		"message":    {message},
		"title":      {""},
		"to_ids":     {recipientID},
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d, body: %s", ErrRejected, resp.StatusCode, resp.Body)
	}
	return nil
}
