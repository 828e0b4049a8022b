package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/proxy"
)

const (
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	formType     = "application/x-www-form-urlencoded"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
	URL        *url.URL
}

// newTransport returns the default transport, or one dialing through the
// SOCKS5 proxy in proxyURL.
func newTransport(proxyURL string) (http.RoundTripper, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL == "" {
		return base, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: password}
	}
	d, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("proxy dialer: %w", err)
	}
	dc, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("proxy dialer missing context")
	}
	base.Proxy = nil
	base.DialContext = dc.DialContext
	slog.Info("Routing traffic through proxy", "addr", u.Host)
	return base, nil
}

// Get fetches a site path or absolute URL, following redirects.
func (m *Manager) Get(ctx context.Context, target string) (*Response, error) {
	return m.do(ctx, http.MethodGet, target, nil, true)
}

// Post submits a form, following redirects.
func (m *Manager) Post(ctx context.Context, target string, form url.Values) (*Response, error) {
	return m.do(ctx, http.MethodPost, target, form, true)
}

// postNoRedirect submits a form and returns the redirect response itself.
func (m *Manager) postNoRedirect(ctx context.Context, target string, form url.Values) (*Response, error) {
	return m.do(ctx, http.MethodPost, target, form, false)
}

// do sends one request after the fixed request delay. A broken connection tears the
// session down, reloads it from the store and retries the request once.
func (m *Manager) do(ctx context.Context, method, target string, form url.Values, follow bool) (*Response, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer m.sem.Release(1)

	resp, err := m.send(ctx, method, target, form, follow)
	if err == nil || !isBrokenConnection(err) {
		return resp, err
	}

	slog.Warn("Connection broken, reinitializing session", "url", target, "error", err)
	if m.client != nil {
		m.client.CloseIdleConnections()
	}
	if initErr := m.Init(ctx); initErr != nil {
		return nil, fmt.Errorf("reinit after %v: %w", err, initErr)
	}
	return m.send(ctx, method, target, form, follow)
}

func (m *Manager) send(ctx context.Context, method, target string, form url.Values, follow bool) (*Response, error) {
	if err := pause(ctx, m.cfg.RequestDelay); err != nil {
		return nil, err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, m.URL(target), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", acceptHeader)
	if form != nil {
		req.Header.Set("Content-Type", formType)
	}

	client := m.client
	if !follow {
		client = m.noFollow
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", req.URL, err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(bodyBytes),
		URL:        resp.Request.URL,
	}, nil
}

// pause blocks for d before a request goes out, or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isBrokenConnection reports errors caused by the peer dropping a kept-alive
// connection.
func isBrokenConnection(err error) bool {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "write" && !opErr.Timeout()
}
