// Package session owns the authenticated connection to the platform: the
// cookie jar, the user agent, the login state machine and the request
// throttle every outbound call goes through.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/semaphore"

	"github.com/pauljones0/skynet-bot/internal/models"
	"github.com/pauljones0/skynet-bot/internal/scraper"
)

// State is the position of the Manager in the login state machine.
type State int

const (
	Unauthenticated State = iota
	LanguageMismatch
	Authenticating
	CaptchaPending
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case LanguageMismatch:
		return "language_mismatch"
	case Authenticating:
		return "authenticating"
	case CaptchaPending:
		return "captcha_pending"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Store persists the session between runs.
type Store interface {
	Load(ctx context.Context) (models.Session, error)
	Save(ctx context.Context, s models.Session) error
}

// Solver answers a CAPTCHA challenge.
type Solver interface {
	Solve(ctx context.Context, siteKey string) (string, error)
}

// Config holds what the Manager needs to reach and log into the platform.
type Config struct {
	BaseURL      string
	LoginURL     string
	Username     string
	Password     string
	RequestDelay time.Duration
	Timeout      time.Duration
	ProxyURL     string
}

// Manager is driven by a single goroutine. Its semaphore still limits it to
// one request in flight.
type Manager struct {
	cfg      Config
	baseURL  *url.URL
	loginURL *url.URL

	store  Store
	solver Solver
	parser *scraper.Parser
	rng    *rand.Rand

	transport http.RoundTripper
	jar       http.CookieJar
	client    *http.Client
	noFollow  *http.Client

	sem *semaphore.Weighted

	userAgent string
	accountID string
	state     State
}

// New builds a Manager. Init must be called before the first request.
func New(cfg Config, store Store, solver Solver, parser *scraper.Parser) (*Manager, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	loginURL, err := url.Parse(cfg.LoginURL)
	if err != nil || loginURL.Host == "" {
		return nil, fmt.Errorf("invalid login url %q", cfg.LoginURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport, err := newTransport(cfg.ProxyURL)
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:       cfg,
		baseURL:   baseURL,
		loginURL:  loginURL,
		store:     store,
		solver:    solver,
		parser:    parser,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		transport: transport,
		sem:       semaphore.NewWeighted(1),
		state:     Unauthenticated,
	}, nil
}

// Init loads the persisted session into a fresh cookie jar. On a cold start
// a user agent is generated and saved.
func (m *Manager) Init(ctx context.Context) error {
	saved, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return err
	}
	cookies := make([]*http.Cookie, 0, len(saved.Cookies))
	for name, value := range saved.Cookies {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	jar.SetCookies(m.baseURL, cookies)
	jar.SetCookies(m.loginURL, cookies)

	m.jar = jar
	m.client = &http.Client{Transport: m.transport, Jar: jar, Timeout: m.cfg.Timeout}
	m.noFollow = &http.Client{
		Transport: m.transport,
		Jar:       jar,
		Timeout:   m.cfg.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	m.userAgent = saved.UserAgent
	if m.userAgent == "" {
		m.userAgent = RandomUserAgent(m.rng)
		slog.Info("Generated new user agent", "user_agent", m.userAgent)
		if err := m.Persist(ctx); err != nil {
			return err
		}
	}

	slog.Info("Session initialized", "cookies", len(saved.Cookies), "cold_start", saved.IsEmpty())
	return nil
}

// Persist saves the current cookies and user agent.
func (m *Manager) Persist(ctx context.Context) error {
	cookies := make(map[string]string)
	for _, u := range []*url.URL{m.loginURL, m.baseURL} {
		for _, c := range m.jar.Cookies(u) {
			cookies[c.Name] = c.Value
		}
	}
	if err := m.store.Save(ctx, models.Session{Cookies: cookies, UserAgent: m.userAgent}); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// RandomUserAgent returns a desktop Chrome user agent with a random major
// version between 52 and 65.
func RandomUserAgent(rng *rand.Rand) string {
	return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.3309.6 Safari/537.36", 52+rng.IntN(14))
}

func (m *Manager) State() State { return m.state }

// AccountID is the numeric id of the logged-in account, empty before login.
func (m *Manager) AccountID() string { return m.accountID }

func (m *Manager) UserAgent() string { return m.userAgent }

// URL resolves a site path such as "/id1" or "/al_feed.php" against the base
// address. Absolute URLs are returned unchanged.
func (m *Manager) URL(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return m.baseURL.String() + path
	}
	return m.baseURL.ResolveReference(ref).String()
}

// Origin is the scheme and host of the base address, as sent in login forms.
func (m *Manager) Origin() string {
	return m.baseURL.Scheme + "://" + m.baseURL.Host
}
