package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gomoku/internal/api"
	"github.com/gomoku/internal/config"
	"github.com/gomoku/internal/game"
	"github.com/gomoku/internal/kafka"
	"github.com/gomoku/internal/logging"
	"github.com/gomoku/internal/matchmaker"
	"github.com/gomoku/internal/recorder"
	"github.com/gomoku/internal/storage"
	"github.com/gomoku/internal/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "gomoku.yaml", "path to the YAML config file")
	flag.Parse()

	// Load .env file if present
	config.LoadEnvFile(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("Server exited properly")
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Interface values stay nil when a backend is unavailable
	var (
		apiStore    api.Store
		recordStore recorder.Store
		metrics     api.Metrics
	)

	store, err := storage.NewPostgresStore(ctx, cfg, log)
	if err != nil {
		log.Warn("Database not available, games won't be persisted", zap.Error(err))
	} else {
		defer store.Close()
		apiStore, recordStore = store, store
	}

	producer := kafka.NewProducer(cfg, log)
	defer producer.Close()

	var consumer *kafka.Consumer
	if producer.IsEnabled() {
		consumer, err = kafka.NewConsumer(cfg, log)
		if err != nil {
			log.Warn("Kafka consumer not available", zap.Error(err))
			consumer = nil
		} else {
			defer consumer.Close()
			metrics = consumer
		}
	}

	rec := recorder.New(producer, recordStore, log)

	mm := matchmaker.NewMatchmaker(matchmaker.Options{
		Timeout:    cfg.MatchmakingTimeout,
		Difficulty: cfg.Difficulty(),
		GameOptions: []game.GameOption{
			game.WithBoardSize(cfg.BoardSize),
			game.WithGameRules(game.NewRules(cfg.WinLength)),
			game.WithReconnectWindow(cfg.ReconnectWindow),
		},
	}, log)
	mm.SetOnGameStart(rec.GameStarted)

	hub := websocket.NewHub(mm, rec, websocket.HubOptions{
		BotMoveDelay:    cfg.BotMoveDelay,
		ReconnectWindow: cfg.ReconnectWindow,
		AllowedOrigins:  cfg.AllowedOrigins,
	}, log)
	handler := websocket.NewHandler(hub, mm)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		apiHandlers := api.NewHandlers(api.Options{
			Store:        apiStore,
			Matchmaker:   mm,
			Observer:     rec,
			Metrics:      metrics,
			KafkaEnabled: producer.IsEnabled(),
			Difficulty:   cfg.Difficulty(),
			WinLength:    cfg.WinLength,
			MaxBoardSize: cfg.MaxBoardSize,
			Log:          log,
		})
		apiHandlers.RegisterRoutes(r)
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, handler, w, r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.Int("boardSize", cfg.BoardSize),
			zap.Int("winLength", cfg.WinLength),
			zap.String("difficulty", string(cfg.Difficulty())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return hub.Run(gctx)
	})

	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
