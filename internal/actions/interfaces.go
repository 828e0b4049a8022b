package actions

import (
	"context"
	"net/url"

	"github.com/pauljones0/skynet-bot/internal/session"
)

// Session abstracts the authenticated connection to the platform.
type Session interface {
	EnsureAuthenticated(ctx context.Context) (bool, error)
	Get(ctx context.Context, target string) (*session.Response, error)
	Post(ctx context.Context, target string, form url.Values) (*session.Response, error)
	Persist(ctx context.Context) error
	AccountID() string
}

// CaptchaSolver answers challenges raised by friend requests.
type CaptchaSolver interface {
	Solve(ctx context.Context, siteKey string) (string, error)
}

// Messenger delivers private messages.
type Messenger interface {
	Send(ctx context.Context, recipientID, composeHash, message string) error
}
