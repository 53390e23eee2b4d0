package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	HTTPAddr string
	WSAddr   string

	RedisURL    string
	DatabaseURL string

	StockfishPath    string
	OpeningBookPath  string
	OpeningMinWeight int
	EngineThreads    int
	ComputerDelay    time.Duration
	ComputerName     string
	DefaultPreset    string
	ClockInitial     time.Duration
	ClockTick        time.Duration
	CardCatalogPath  string
	MessagesDir      string
	MaxSessions      int
	SessionRetention time.Duration

	WSAllowedOrigins []string
	RequestTimeout   time.Duration
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:         ":8080",
		WSAddr:           ":8081",
		EngineThreads:    1,
		ComputerDelay:    600 * time.Millisecond,
		ComputerName:     "Computer",
		DefaultPreset:    "normal",
		ClockInitial:     10 * time.Minute,
		ClockTick:        time.Second,
		MaxSessions:      200,
		SessionRetention: 30 * time.Minute,
		RequestTimeout:   15 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WS_ADDR")); v != "" {
		cfg.WSAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	// Engine
	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	cfg.OpeningBookPath = strings.TrimSpace(os.Getenv("OPENING_BOOK_PATH"))
	if v := strings.TrimSpace(os.Getenv("OPENING_BOOK_MIN_WEIGHT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 0xffff {
			cfg.OpeningMinWeight = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_THREADS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineThreads = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("COMPUTER_NAME")); v != "" {
		cfg.ComputerName = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPUTER_DIFFICULTY")); v != "" {
		cfg.DefaultPreset = v
	}

	var err error
	if cfg.ComputerDelay, err = durationEnv("COMPUTER_MOVE_DELAY", cfg.ComputerDelay, true); err != nil {
		return nil, err
	}
	if cfg.ClockInitial, err = durationEnv("CLOCK_INITIAL", cfg.ClockInitial, false); err != nil {
		return nil, err
	}
	if cfg.ClockTick, err = durationEnv("CLOCK_TICK", cfg.ClockTick, false); err != nil {
		return nil, err
	}
	if cfg.SessionRetention, err = durationEnv("SESSION_RETENTION", cfg.SessionRetention, false); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", cfg.RequestTimeout, false); err != nil {
		return nil, err
	}

	cfg.CardCatalogPath = strings.TrimSpace(os.Getenv("CARD_CATALOG_PATH"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	if v := strings.TrimSpace(os.Getenv("MAX_SESSIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSessions = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("WS_ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.WSAllowedOrigins = append(cfg.WSAllowedOrigins, s)
			}
		}
	}

	if cfg.ClockTick > cfg.ClockInitial {
		return nil, fmt.Errorf("CLOCK_TICK (%s) exceeds CLOCK_INITIAL (%s)", cfg.ClockTick, cfg.ClockInitial)
	}
	return cfg, nil
}

// durationEnv parses a Go duration ("90s", "10m"). Bare integers are seconds.
func durationEnv(key string, def time.Duration, allowZero bool) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		n, aerr := strconv.Atoi(v)
		if aerr != nil {
			return 0, fmt.Errorf("%s: invalid duration %q", key, v)
		}
		d = time.Duration(n) * time.Second
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("%s: must be positive, got %q", key, v)
	}
	return d, nil
}
