package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pauljones0/skynet-bot/internal/models"
)

const (
	cookiesFile   = "vk_cookies.json"
	userAgentFile = "vk_user_agent.out"
)

// FileStore keeps the cookies as a JSON object and the user agent as plain
// text, side by side in one directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{dir: dir}
}

func (f *FileStore) Load(_ context.Context) (models.Session, error) {
	var s models.Session

	data, err := os.ReadFile(filepath.Join(f.dir, cookiesFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return s, fmt.Errorf("failed to read cookies: %w", err)
	default:
		if err := json.Unmarshal(data, &s.Cookies); err != nil {
			return s, fmt.Errorf("failed to decode cookies: %w", err)
		}
	}

	ua, err := os.ReadFile(filepath.Join(f.dir, userAgentFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return s, fmt.Errorf("failed to read user agent: %w", err)
	default:
		s.UserAgent = strings.TrimSpace(string(ua))
	}
	return s, nil
}

func (f *FileStore) Save(_ context.Context, s models.Session) error {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return err
	}

	cookies := s.Cookies
	if cookies == nil {
		cookies = map[string]string{}
	}
	data, err := json.Marshal(cookies)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(f.dir, cookiesFile), data, 0600); err != nil {
		return fmt.Errorf("failed to write cookies: %w", err)
	}
	if err := os.WriteFile(filepath.Join(f.dir, userAgentFile), []byte(s.UserAgent), 0600); err != nil {
		return fmt.Errorf("failed to write user agent: %w", err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
