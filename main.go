package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jeffreyp/wordgame/internal/config"
	"github.com/jeffreyp/wordgame/internal/history"
	"github.com/jeffreyp/wordgame/internal/httpserver"
	"github.com/jeffreyp/wordgame/internal/store"
	"github.com/jeffreyp/wordgame/internal/words"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	dict, err := loadDictionary(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word list")
	}
	log.Info().Int("words", dict.Len()).Msg("dictionary loaded")

	reg := store.NewRegistry(store.Options{
		GridSize:      cfg.GridSize,
		RoundDuration: cfg.RoundDuration,
		Dictionary:    dict,
		Logger:        log.Logger,
	})
	defer reg.Shutdown()

	opts := httpserver.Options{
		Secret:       cfg.SecretKey,
		ClientOrigin: cfg.ClientOrigin,
		SecureCookie: strings.HasPrefix(cfg.ClientOrigin, "https://"),
	}
	if cfg.DBPath != "" {
		results, err := history.Open(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open results db")
		}
		defer results.Close()
		rec := history.NewRecorder(results, 5*time.Second, history.DefaultQueueSize)
		defer rec.Close()
		unsubscribe := reg.Subscribe(rec.Listen)
		defer unsubscribe()
		opts.Results = results
	}

	srv, err := httpserver.New(reg, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build http server")
	}

	if err := serve(cfg.Addr(), srv); err != nil {
		log.Error().Err(err).Msg("server exited")
	}
	log.Info().Msg("bye")
}

// serve runs the HTTP server until SIGINT/SIGTERM, then drains it.
func serve(addr string, srv *httpserver.Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("starting wordgame server")
		if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func setupLogging(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if strings.EqualFold(cfg.LogFormat, "console") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func loadDictionary(cfg config.Config) (*words.Dictionary, error) {
	if cfg.WordsFile != "" {
		return words.Load(cfg.WordsFile, cfg.MinWordLength)
	}
	return words.Default(cfg.MinWordLength)
}
