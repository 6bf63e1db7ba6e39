package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/internal/controller"
	"github.com/sharetube/watchparty/internal/repository/access"
	accessPostgres "github.com/sharetube/watchparty/internal/repository/access/postgres"
	"github.com/sharetube/watchparty/internal/repository/archive"
	archiveNats "github.com/sharetube/watchparty/internal/repository/archive/nats"
	"github.com/sharetube/watchparty/internal/repository/catalog"
	catalogPostgres "github.com/sharetube/watchparty/internal/repository/catalog/postgres"
	"github.com/sharetube/watchparty/internal/repository/connection"
	connInmemory "github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	eventlogInmemory "github.com/sharetube/watchparty/internal/repository/eventlog/inmemory"
	eventlogRedis "github.com/sharetube/watchparty/internal/repository/eventlog/redis"
	roomInmemory "github.com/sharetube/watchparty/internal/repository/room/inmemory"
	roomRedis "github.com/sharetube/watchparty/internal/repository/room/redis"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/redisclient"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type AppConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	LogLevel          string        `json:"log_level"`
	MembersLimit      int           `json:"members_limit"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	LeaveGracePeriod  time.Duration `json:"leave_grace_period"`
	LogWindow         int           `json:"log_window"`
	LogRetention      int           `json:"log_retention"`
	RoomExpire        time.Duration `json:"room_expire"`
	Storage           string        `json:"storage"`
	RedisHost         string        `json:"redis_host"`
	RedisPort         int           `json:"redis_port"`
	RedisPassword     string        `json:"-"`
	PostgresDSN       string        `json:"-"`
	NatsURL           string        `json:"nats_url"`
	StreamBaseURL     string        `json:"stream_base_url"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be greater than 0")
	}
	if cfg.LeaveGracePeriod <= 0 {
		return fmt.Errorf("leave grace period must be greater than 0")
	}
	if cfg.LogWindow < 1 {
		return fmt.Errorf("log window must be greater than 0")
	}
	if cfg.LogRetention < cfg.LogWindow {
		return fmt.Errorf("log retention must not be less than log window")
	}
	if cfg.RoomExpire <= 0 {
		return fmt.Errorf("room expire must be greater than 0")
	}
	if cfg.Storage != StorageMemory && cfg.Storage != StorageRedis {
		return fmt.Errorf("unknown storage %q", cfg.Storage)
	}
	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type app struct {
	handler  http.Handler
	service  interface{ Close() }
	connRepo interface{ CloseAll(code int, reason string) }
	closers  []func()
}

func (a *app) close() {
	a.service.Close()
	a.connRepo.CloseAll(websocket.CloseGoingAway, "server shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires repositories, the room service and the controller. The returned app must be closed.
func build(ctx context.Context, cfg *AppConfig, clock clockwork.Clock, logger *slog.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
		return nil, err
	}

	deps := room.Deps{
		Access:  access.AllowAll(),
		Catalog: catalog.NewStatic(cfg.StreamBaseURL),
		Archive: archive.Nop(),
		Clock:   clock,
		Logger:  logger,
	}

	switch cfg.Storage {
	case StorageRedis:
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to create redis client: %w", err))
		}
		a.closers = append(a.closers, func() { rc.Close() })

		deps.RoomRepo = roomRedis.NewRepo(rc, cfg.RoomExpire, logger)
		deps.EventLog = eventlogRedis.NewRepo(rc, cfg.LogRetention, cfg.RoomExpire, logger)
	default:
		deps.RoomRepo = roomInmemory.NewRepo(logger)
		deps.EventLog = eventlogInmemory.NewRepo(cfg.LogRetention, logger)
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fail(fmt.Errorf("failed to create postgres pool: %w", err))
		}
		a.closers = append(a.closers, pool.Close)

		if err := pool.Ping(ctx); err != nil {
			return fail(fmt.Errorf("failed to ping postgres: %w", err))
		}

		deps.Access = accessPostgres.NewRepo(pool, logger)
		deps.Catalog = catalogPostgres.NewRepo(pool, cfg.StreamBaseURL, logger)
	}

	if cfg.NatsURL != "" {
		publisher, err := archiveNats.Connect(archiveNats.Config{
			URL:           cfg.NatsURL,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		}, logger)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := publisher.Flush(flushCtx); err != nil {
				logger.Warn("failed to flush archive", "error", err)
			}
			publisher.Close()
		})

		deps.Archive = publisher
	}

	connRepo := connInmemory.NewRepo(connection.DefaultConfig(), logger)
	deps.Broadcaster = connRepo

	roomService := room.NewService(deps, room.Config{
		MembersLimit:      cfg.MembersLimit,
		HeartbeatInterval: cfg.HeartbeatInterval,
		LeaveGracePeriod:  cfg.LeaveGracePeriod,
		LogWindow:         cfg.LogWindow,
	})

	a.handler = controller.NewController(roomService, connRepo, logger).GetMux()
	a.service = roomService
	a.connRepo = connRepo

	return a, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	a, err := build(ctx, cfg, clockwork.NewRealClock(), logger)
	if err != nil {
		return err
	}
	defer a.close()

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: a.handler}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		// hijacked websocket connections are not tracked by Shutdown
		a.connRepo.CloseAll(websocket.CloseGoingAway, "server shutting down")

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()

	return nil
}
