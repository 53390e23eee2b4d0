package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cardchess/internal/adapter/chesspresenter"
	"github.com/park285/cardchess/internal/api"
	"github.com/park285/cardchess/internal/archive"
	"github.com/park285/cardchess/internal/cards"
	"github.com/park285/cardchess/internal/config"
	"github.com/park285/cardchess/internal/engine"
	"github.com/park285/cardchess/internal/lobby"
	"github.com/park285/cardchess/internal/msgcat"
	"github.com/park285/cardchess/internal/notify"
	"github.com/park285/cardchess/internal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps is everything the server binary runs. Lobby, Archive and Redis are nil
// when their backing service is not configured.
type Deps struct {
	Config   *config.AppConfig
	Registry *session.Registry
	Hub      *notify.Hub
	Lobby    *lobby.Manager
	Archive  *archive.Repository
	Redis    *redis.Client
	Oracle   engine.Oracle
	API      *api.Server

	uci *engine.UCIOracle
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = d.Close(context.Background())
		}
	}()

	catalog, err := cards.LoadCatalog(cfg.CardCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load card catalog: %w", err)
	}
	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	preset, err := engine.LookupPreset(cfg.DefaultPreset)
	if err != nil {
		return nil, fmt.Errorf("default difficulty: %w", err)
	}

	// Engine: opening book, then external UCI, in-process searcher as the fallback
	var chain engine.Chain
	if cfg.OpeningBookPath != "" {
		book, err := engine.LoadBook(cfg.OpeningBookPath, uint16(cfg.OpeningMinWeight))
		if err != nil {
			return nil, fmt.Errorf("opening book: %w", err)
		}
		chain = append(chain, book)
	}
	if strings.TrimSpace(cfg.StockfishPath) != "" {
		d.uci, err = engine.NewUCIOracle(cfg.StockfishPath, cfg.EngineThreads)
		if err != nil {
			return nil, fmt.Errorf("init engine: %w", err)
		}
		chain = append(chain, d.uci)
	} else {
		logger.Info("engine_fallback_only", zap.String("reason", "STOCKFISH_PATH not set"))
	}
	chain = append(chain, engine.NewSearcher(engine.DefaultSearchDepth))
	d.Oracle = chain

	// Archive (postgres optional)
	var archiver session.Archiver
	if cfg.DatabaseURL != "" {
		d.Archive, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = d.Archive.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("archive schema: %w", err)
		}
		archiver = d.Archive
	}

	// Notification hub; the state lookup is bound to the registry created below
	var reg *session.Registry
	d.Hub = notify.NewHub(notify.Options{
		OriginPatterns: cfg.WSAllowedOrigins,
	}, notify.RegistryState(func(id string) (*session.GameSession, error) {
		return reg.Get(id)
	}), logger.Named("ws"))

	reg = session.NewRegistry(cfg.MaxSessions, session.Options{
		Mode:          session.ModeHuman,
		InitialTime:   cfg.ClockInitial,
		TickInterval:  cfg.ClockTick,
		ComputerDepth: preset.Depth,
		ComputerDelay: cfg.ComputerDelay,
		ComputerName:  cfg.ComputerName,
		Catalog:       catalog,
	}, session.Deps{
		Notifier: d.Hub,
		Oracle:   d.Oracle,
		Archiver: archiver,
		Messages: messages,
	})
	reg.OnRemove(d.Hub.Disconnect)
	d.Registry = reg

	// Lobby (redis optional)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		d.Redis = redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = d.Redis.Ping(ctx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		d.Lobby = lobby.NewManager(d.Redis, lobby.RegistryStarter{Registry: reg})
	}

	d.API = &api.Server{
		Registry:       reg,
		Lobby:          d.Lobby,
		Formatter:      chesspresenter.NewFormatter(false),
		Logger:         logger.Named("http"),
		RequestTimeout: cfg.RequestTimeout,
	}
	if d.Archive != nil {
		d.API.Games = d.Archive
	}

	ok = true
	return d, nil
}

// Close releases everything New opened. Sessions are closed first so pending
// archive writes are started before the database goes away.
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	if d.Registry != nil {
		d.Registry.CloseAll()
	}
	if d.Hub != nil {
		if err := d.Hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close hub: %w", err))
		}
	}
	if d.uci != nil {
		if err := d.uci.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close engine: %w", err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if d.Archive != nil {
		if err := d.Archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive: %w", err))
		}
	}
	return errors.Join(errs...)
}
