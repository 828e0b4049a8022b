package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/pauljones0/skynet-bot/internal/scraper"
)

const (
	pageLanguage   = "ru"
	captchaParam   = "sid"
	loginDoneParam = "__q_hash"
)

// EnsureAuthenticated makes sure the session is logged in, logging in again
// when the landing page shows the login form. It returns false for
// authentication faults and an error only for transport faults.
func (m *Manager) EnsureAuthenticated(ctx context.Context) (bool, error) {
	m.state = Unauthenticated

	resp, err := m.Get(ctx, "/")
	if err != nil {
		return m.fail(err)
	}

	doc := scraper.Document(resp.Body)
	tokens, needsLogin := m.parser.LoginForm(doc)
	if needsLogin {
		if m.parser.PageLanguage(doc) != pageLanguage {
			m.state = LanguageMismatch
			if err := m.switchLanguage(ctx, resp.Body); err != nil {
				return m.fail(err)
			}
			if resp, err = m.Get(ctx, "/"); err != nil {
				return m.fail(err)
			}
			tokens, needsLogin = m.parser.LoginForm(scraper.Document(resp.Body))
		}
	}

	if needsLogin {
		ok, err := m.login(ctx, tokens)
		if err != nil || !ok {
			return m.fail(err)
		}
		if resp, err = m.Get(ctx, "/"); err != nil {
			return m.fail(err)
		}
	}

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Landing page returned unexpected status", "status", resp.StatusCode)
		return m.fail(nil)
	}
	id, ok := scraper.LandingAccountID(resp.Body)
	if !ok {
		slog.Warn("Account id not found on landing page")
		return m.fail(nil)
	}
	m.accountID = id
	m.state = Authenticated
	return true, nil
}

func (m *Manager) fail(err error) (bool, error) {
	m.state = Failed
	return false, err
}

// switchLanguage asks the platform to serve the Russian UI. A missing token
// or a rejected switch is logged and login proceeds anyway.
func (m *Manager) switchLanguage(ctx context.Context, body string) error {
	hash, ok := scraper.LanguageHash(body)
	if !ok {
		slog.Warn("Locale switch token not found")
		return nil
	}
	resp, err := m.Post(ctx, "/al_index.php", url.Values{
		"act":     {"change_lang"},
		"al":      {"1"},
		"hash":    {hash},
		"lang_id": {"0"},
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		slog.Warn("Locale switch rejected", "status", resp.StatusCode)
	} else {
		slog.Info("Switched page language")
	}
	return nil
}

// login submits the credentials. A CAPTCHA demand is answered once; a second
// demand fails the login.
func (m *Manager) login(ctx context.Context, tokens scraper.LoginTokens) (bool, error) {
	m.state = Authenticating
	form := url.Values{
		"act":     {"login"},
		"role":    {"al_frame"},
		"_origin": {m.Origin()},
		"ip_h":    {tokens.IPHash},
		"lg_h":    {tokens.LoginHash},
		"email":   {m.cfg.Username},
		"pass":    {m.cfg.Password},
	}

	location, err := m.submitLogin(ctx, form)
	if err != nil {
		return false, err
	}

	if location != nil && location.Query().Has(captchaParam) {
		m.state = CaptchaPending
		if m.solver == nil {
			slog.Warn("Login requires captcha but no solver is configured")
			return false, nil
		}
		token, err := m.solver.Solve(ctx, location.Query().Get(captchaParam))
		if err != nil {
			slog.Warn("Failed to solve login captcha", "error", err)
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, nil
		}
		form.Set("recaptcha", token)
		if location, err = m.submitLogin(ctx, form); err != nil {
			return false, err
		}
		m.state = Authenticating
	}

	if location == nil || !location.Query().Has(loginDoneParam) {
		var target string
		if location != nil {
			target = location.Redacted()
		}
		slog.Warn("Login rejected", "location", target)
		return false, nil
	}

	resp, err := m.Get(ctx, location.String())
	if err != nil {
		return false, err
	}
	if id, ok := scraper.LoginAccountID(resp.Body); ok {
		m.accountID = id
	}
	if err := m.Persist(ctx); err != nil {
		slog.Error("Failed to persist session after login", "error", err)
	}
	slog.Info("Logged in", "account_id", m.accountID)
	return true, nil
}

// submitLogin posts the login form and returns the redirect target, or nil
// when the response carries none.
func (m *Manager) submitLogin(ctx context.Context, form url.Values) (*url.URL, error) {
	resp, err := m.postNoRedirect(ctx, m.loginURL.String(), form)
	if err != nil {
		return nil, err
	}
	raw := resp.Header.Get("Location")
	if raw == "" {
		return nil, nil
	}
	location, err := resp.URL.Parse(raw)
	if err != nil {
		slog.Warn("Unparseable login redirect", "location", raw, "error", err)
		return nil, nil
	}
	return location, nil
}
