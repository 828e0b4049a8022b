package captcha

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pauljones0/skynet-bot/internal/util"
)

const (
	DefaultRuCaptchaURL = "http://rucaptcha.com"
	ruCaptchaNotReady   = "CAPCHA_NOT_READY"
	ruCaptchaOK         = "OK|"
)

// RuCaptcha talks to the rucaptcha.com in.php/res.php API: submit the
// challenge, then poll for the token.
type RuCaptcha struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	maxPolls     int
}

// NewRuCaptcha builds a client polling every 10 seconds. maxPolls <= 0 polls
// until the service answers.
func NewRuCaptcha(apiKey, baseURL string, maxPolls int) *RuCaptcha {
	if baseURL == "" {
		baseURL = DefaultRuCaptchaURL
	}
	return &RuCaptcha{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: 10 * time.Second,
		maxPolls:     maxPolls,
	}
}

func (r *RuCaptcha) Name() string { return "rucaptcha" }

func (r *RuCaptcha) Solve(ctx context.Context, siteKey, pageURL string) (string, error) {
	if r.apiKey == "" {
		return "", ErrNotConfigured
	}

	submitURL := r.baseURL + "/in.php?" + url.Values{
		"key":       {r.apiKey},
		"method":    {"userrecaptcha"},
		"googlekey": {siteKey},
		"pageurl":   {pageURL},
	}.Encode()
	body, err := r.get(ctx, submitURL)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if !strings.HasPrefix(body, ruCaptchaOK) {
		return "", fmt.Errorf("submit rejected %q: %w", body, ErrNoSolution)
	}
	captchaID := strings.TrimPrefix(body, ruCaptchaOK)

	resultURL := r.baseURL + "/res.php?" + url.Values{
		"key":    {r.apiKey},
		"action": {"get"},
		"id":     {captchaID},
	}.Encode()

	var token string
	err = util.Poll(ctx, r.pollInterval, r.maxPolls, func(_ int) (bool, error) {
		body, err := r.get(ctx, resultURL)
		if err != nil {
			return false, fmt.Errorf("poll: %w", err)
		}
		if body == ruCaptchaNotReady {
			return false, nil
		}
		if !strings.HasPrefix(body, ruCaptchaOK) {
			return false, fmt.Errorf("unexpected answer %q: %w", body, ErrNoSolution)
		}
		token = strings.TrimPrefix(body, ruCaptchaOK)
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (r *RuCaptcha) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rucaptcha status: %s", resp.Status)
	}
	return strings.TrimSpace(string(bodyBytes)), nil
}
