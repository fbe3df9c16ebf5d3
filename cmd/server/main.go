package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Chat/internal/adapters/http"
	wsignal "github.com/dkeye/Chat/internal/adapters/signal"
	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/auth"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/storage/memory"
	"github.com/dkeye/Chat/internal/storage/mongostore"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("Server exited gracefully")
}

type stores struct {
	rooms  core.RoomStore
	users  core.UserDirectory
	client *mongo.Client
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn().Msg("using in-memory storage; rooms are lost on restart")
		return &stores{rooms: memory.NewRoomStore(), users: memory.NewUserDirectory()}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongostore.Connect(connectCtx, cfg.MongoURL)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.Database)
	if err := mongostore.EnsureIndexes(connectCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &stores{
		rooms:  mongostore.NewRoomStore(db),
		users:  mongostore.NewUserDirectory(db),
		client: client,
	}, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if st.client == nil {
			return
		}
		if err := st.client.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("mongo disconnect")
		}
	}()

	tokens, err := auth.NewJWTManager(auth.JWTConfig{
		SecretKey: cfg.Secret,
		Algorithm: cfg.Algorithm,
		TokenTTL:  cfg.TokenTTL,
	}, st.users)
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	reg := app.NewRegistry()
	orchestrator := &orch.Orchestrator{
		Registry: reg,
		Rooms:    st.rooms,
		Policy:   app.SimplePolicy{},
	}

	var limiter *wsignal.RoomRateLimiter
	if cfg.RateLimit > 0 {
		limiter = wsignal.NewRoomRateLimiter(cfg.RateLimit, cfg.RateInterval)
	}
	ws := wsignal.NewSignalWSController(orchestrator, tokens, limiter, wsignal.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteWait:      cfg.WriteWait,
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Signal:    ws,
		Chatrooms: &app.Chatrooms{Rooms: st.rooms, Users: st.users, Registry: reg},
		Registry:  reg,
		Verifier:  tokens,
		Auth:      &auth.Authenticator{Users: st.users, Hasher: auth.NewPasswordHasher(), Tokens: tokens},
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Chat server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	if limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					log.Debug().Int("tracked", limiter.Sweep()).Msg("rate limiter sweep")
				}
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		closed := reg.CancelAll()
		log.Info().Int("sessions", closed).Msg("closing chat sessions")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		if err := ws.Drain(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("chat sessions did not drain")
		}
		return nil
	})
	return g.Wait()
}
