// Package captcha solves the reCAPTCHA challenges the platform raises during
// login and friend requests by handing them to paid solving services.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrNoSolution means a provider answered but did not produce a token.
	ErrNoSolution = errors.New("captcha: no solution")
	// ErrNotConfigured means a provider has no API key.
	ErrNotConfigured = errors.New("captcha: provider not configured")
)

// Provider is a single solving service.
type Provider interface {
	Name() string
	Solve(ctx context.Context, siteKey, pageURL string) (string, error)
}

// Resolver tries its providers in order and returns the first token.
type Resolver struct {
	providers []Provider
	pageURL   string
}

// NewResolver builds a Resolver for challenges shown on pageURL.
func NewResolver(pageURL string, providers ...Provider) *Resolver {
	return &Resolver{providers: providers, pageURL: pageURL}
}

// Solve returns a response token for the challenge identified by siteKey.
// Provider failures are logged and the next provider is tried. Only context
// cancellation is returned as is.
func (r *Resolver) Solve(ctx context.Context, siteKey string) (string, error) {
	var errs []error
	for _, p := range r.providers {
		slog.Info("Resolving captcha", "provider", p.Name())
		token, err := p.Solve(ctx, siteKey, r.pageURL)
		if err == nil && token != "" {
			return token, nil
		}
		if err == nil {
			err = ErrNoSolution
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, ErrNotConfigured) {
			slog.Debug("Skipping captcha provider without key", "provider", p.Name())
		} else {
			slog.Warn("Captcha provider failed", "provider", p.Name(), "error", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	if len(errs) == 0 {
		return "", ErrNotConfigured
	}
	return "", errors.Join(errs...)
}
