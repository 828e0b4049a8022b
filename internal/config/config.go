package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pauljones0/skynet-bot/internal/validator"
)

// Targets are the account and group lists the actions work against.
type Targets struct {
	Sources           []string `yaml:"sources" validate:"required,min=1"`
	SiblingBots       []string `yaml:"sibling_bots"`
	Cities            []string `yaml:"cities" validate:"required,min=1"`
	ExcludedUpstreams []string `yaml:"excluded_upstreams"`
}

type Config struct {
	Username  string `validate:"required"`
	Password  string `validate:"required"`
	AdminID   string `validate:"required,numeric"`
	HomeGroup string `validate:"required"`

	BaseURL  string `validate:"required,url"`
	LoginURL string `validate:"required,url"`
	ProxyURL string `validate:"omitempty,url"`

	AntigateKey       string
	AntigateURL       string `validate:"omitempty,url"`
	RucaptchaKey      string
	RucaptchaURL      string `validate:"omitempty,url"`
	RucaptchaMaxPolls int    `validate:"gte=0"`

	RequestDelay        time.Duration
	TickInterval        time.Duration `validate:"gt=0"`
	OwnResharePeriod    time.Duration `validate:"gte=0"`
	RandomResharePeriod time.Duration `validate:"gte=0"`
	AwakeFromHour       int           `validate:"gte=0,lte=23"`
	AwakeToHour         int           `validate:"gte=0,lte=23,gtefield=AwakeFromHour"`
	StatHour            int           `validate:"gte=0,lte=23"`
	SearchMaxPages      int           `validate:"gte=1"`

	SessionStore             string `validate:"oneof=file sqlite firestore"`
	SessionDir               string
	SQLitePath               string
	ProjectID                string `validate:"required_if=SessionStore firestore"`
	FirestoreCredentialsFile string
	SessionID                string

	LogDir      string
	TargetsPath string
	Targets     Targets
}

// Load reads configuration from the environment, optionally seeded from a
// .env file in the working directory, and the YAML target lists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	cfg := &Config{
		Username:                 os.Getenv("VK_USERNAME"),
		Password:                 os.Getenv("VK_PASSWORD"),
		AdminID:                  os.Getenv("ADMIN_VK_ID"),
		HomeGroup:                os.Getenv("VK_MY_GROUP"),
		BaseURL:                  envOr("BASE_URL", "https://vk.com"),
		LoginURL:                 envOr("LOGIN_URL", "https://login.vk.com/"),
		ProxyURL:                 os.Getenv("PROXY_URL"),
		AntigateKey:              os.Getenv("ANTIGATE_KEY"),
		AntigateURL:              os.Getenv("ANTIGATE_URL"),
		RucaptchaKey:             os.Getenv("RUCAPTCHA_KEY"),
		RucaptchaURL:             os.Getenv("RUCAPTCHA_URL"),
		SessionStore:             envOr("SESSION_STORE", "file"),
		SessionDir:               envOr("SESSION_DIR", "tmp"),
		SQLitePath:               envOr("SQLITE_PATH", "tmp/session.db"),
		ProjectID:                os.Getenv("GOOGLE_CLOUD_PROJECT"),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		SessionID:                os.Getenv("SESSION_ID"),
		LogDir:                   envOr("LOG_DIR", "logs"),
		TargetsPath:              envOr("TARGETS_PATH", "config/targets.yaml"),
	}
	if cfg.SessionID == "" {
		cfg.SessionID = cfg.Username
	}
	if cfg.AntigateKey == "" && cfg.RucaptchaKey == "" {
		slog.Warn("No captcha provider keys set, captcha challenges will fail")
	}

	var err error
	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"REQUEST_DELAY", "3s", &cfg.RequestDelay},
		{"TICK_INTERVAL", "1m", &cfg.TickInterval},
		{"OWN_RESHARE_PERIOD", "20h", &cfg.OwnResharePeriod},
		{"RANDOM_RESHARE_PERIOD", "65h", &cfg.RandomResharePeriod},
	}
	for _, d := range durations {
		if *d.dest, err = parseDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"RUCAPTCHA_MAX_POLLS", 60, &cfg.RucaptchaMaxPolls},
		{"AWAKE_FROM_HOUR", 4, &cfg.AwakeFromHour},
		{"AWAKE_TO_HOUR", 23, &cfg.AwakeToHour},
		{"STAT_HOUR", 11, &cfg.StatHour},
		{"SEARCH_MAX_PAGES", 10, &cfg.SearchMaxPages},
	}
	for _, i := range ints {
		if *i.dest, err = parseInt(i.key, i.def); err != nil {
			return nil, err
		}
	}

	targets, err := LoadTargets(cfg.TargetsPath)
	if err != nil {
		return nil, err
	}
	cfg.Targets = targets

	if err := validator.New().ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadTargets parses the YAML target lists at path.
func LoadTargets(path string) (Targets, error) {
	var t Targets
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("failed to read targets file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to parse targets file %q: %w", path, err)
	}
	slog.Info("Loaded targets", "path", path, "sources", len(t.Sources), "sibling_bots", len(t.SiblingBots), "cities", len(t.Cities))
	return t, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := envOr(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}
