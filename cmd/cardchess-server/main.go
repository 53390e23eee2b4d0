package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/cardchess/internal/builder"
	appcfg "github.com/park285/cardchess/internal/config"
	"github.com/park285/cardchess/internal/obslog"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// nudgeEvery paces retries of computer turns that stalled on an oracle error.
const nudgeEvery = 5 * time.Second

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}
	deps, err := builder.New(cfg, logger)
	if err != nil {
		logger.Fatal("init_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpSrv := &fasthttp.Server{
		Handler:      deps.API.Handler(),
		Name:         "cardchess",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}
	// websocket upgrades need net/http
	wsMux := http.NewServeMux()
	wsMux.Handle("/ws", deps.Hub)
	wsSrv := &http.Server{Addr: cfg.WSAddr, Handler: wsMux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr))
		return httpSrv.ListenAndServe(cfg.HTTPAddr)
	})
	g.Go(func() error {
		logger.Info("ws_listen", zap.String("addr", cfg.WSAddr))
		if err := wsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		reapEvery := min(cfg.SessionRetention, time.Minute)
		t := time.NewTicker(reapEvery)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				deps.Registry.Reap(cfg.SessionRetention)
			}
		}
	})
	g.Go(func() error {
		t := time.NewTicker(nudgeEvery)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				deps.Registry.Nudge()
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown_start")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var errs []error
		if err := httpSrv.ShutdownWithContext(sctx); err != nil {
			errs = append(errs, err)
		}
		if err := deps.Hub.Close(sctx); err != nil {
			errs = append(errs, err)
		}
		if err := wsSrv.Shutdown(sctx); err != nil {
			errs = append(errs, err)
		}
		if err := deps.Close(sctx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server_exit", zap.Error(err))
		return
	}
	logger.Info("shutdown_complete")
}
