package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pauljones0/skynet-bot/internal/util"
)

const (
	DefaultAntiCaptchaURL = "https://api.anti-captcha.com"
	antiCaptchaTaskType   = "NoCaptchaTaskProxyless"
)

// AntiCaptcha talks to the anti-captcha.com JSON API. From the caller's view
// Solve is synchronous: it creates a task and waits for its result.
type AntiCaptcha struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	maxPolls     int
}

func NewAntiCaptcha(apiKey, baseURL string) *AntiCaptcha {
	if baseURL == "" {
		baseURL = DefaultAntiCaptchaURL
	}
	return &AntiCaptcha{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: 5 * time.Second,
		maxPolls:     60,
	}
}

func (a *AntiCaptcha) Name() string { return "anti-captcha" }

type antiCaptchaTask struct {
	Type       string `json:"type"`
	WebsiteURL string `json:"websiteURL"`
	WebsiteKey string `json:"websiteKey"`
}

type antiCaptchaCreateRequest struct {
	ClientKey string          `json:"clientKey"`
	Task      antiCaptchaTask `json:"task"`
}

type antiCaptchaResultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    int64  `json:"taskId"`
}

type antiCaptchaResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	TaskID           int64  `json:"taskId"`
	Status           string `json:"status"`
	Solution         struct {
		GRecaptchaResponse string `json:"gRecaptchaResponse"`
	} `json:"solution"`
}

func (a *AntiCaptcha) Solve(ctx context.Context, siteKey, pageURL string) (string, error) {
	if a.apiKey == "" {
		return "", ErrNotConfigured
	}

	var created antiCaptchaResponse
	err := a.call(ctx, "/createTask", antiCaptchaCreateRequest{
		ClientKey: a.apiKey,
		Task: antiCaptchaTask{
			Type:       antiCaptchaTaskType,
			WebsiteURL: pageURL,
			WebsiteKey: siteKey,
		},
	}, &created)
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	var token string
	err = util.Poll(ctx, a.pollInterval, a.maxPolls, func(_ int) (bool, error) {
		var result antiCaptchaResponse
		if err := a.call(ctx, "/getTaskResult", antiCaptchaResultRequest{ClientKey: a.apiKey, TaskID: created.TaskID}, &result); err != nil {
			return false, fmt.Errorf("get task result: %w", err)
		}
		if result.Status != "ready" {
			return false, nil
		}
		token = result.Solution.GRecaptchaResponse
		return true, nil
	})
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoSolution
	}
	return token, nil
}

func (a *AntiCaptcha) call(ctx context.Context, path string, payload any, out *antiCaptchaResponse) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+path, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("anti-captcha status: %s, body: %s", resp.Status, string(bodyBytes))
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return err
	}
	if out.ErrorID != 0 {
		return fmt.Errorf("anti-captcha error %s: %s: %w", out.ErrorCode, out.ErrorDescription, ErrNoSolution)
	}
	return nil
}
