package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/reconciler"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/wsclient"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	serverURL = configVar[string]{
		envKey:       "VIEWER_SERVER_URL",
		flagKey:      "server-url",
		defaultValue: "ws://localhost:80",
	}
	roomID = configVar[string]{
		envKey:       "VIEWER_ROOM_ID",
		flagKey:      "room-id",
		defaultValue: "",
	}
	userID = configVar[string]{
		envKey:       "VIEWER_USER_ID",
		flagKey:      "user-id",
		defaultValue: "",
	}
	username = configVar[string]{
		envKey:       "VIEWER_USERNAME",
		flagKey:      "username",
		defaultValue: "viewer",
	}
	drift = configVar[float64]{
		envKey:       "VIEWER_DRIFT",
		flagKey:      "drift",
		defaultValue: 1.0,
	}
	threshold = configVar[float64]{
		envKey:       "VIEWER_THRESHOLD",
		flagKey:      "threshold",
		defaultValue: reconciler.DefaultThresholdSec,
	}
	checkInterval = configVar[time.Duration]{
		envKey:       "VIEWER_CHECK_INTERVAL",
		flagKey:      "check-interval",
		defaultValue: reconciler.DefaultCheckInterval,
	}
	logLevel = configVar[string]{
		envKey:       "VIEWER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
)

type config struct {
	ServerURL     string        `json:"server_url"`
	RoomID        string        `json:"room_id"`
	UserID        string        `json:"user_id"`
	Username      string        `json:"username"`
	Drift         float64       `json:"drift"`
	Threshold     float64       `json:"threshold"`
	CheckInterval time.Duration `json:"check_interval"`
	LogLevel      string        `json:"log_level"`
}

func bind[T any](v configVar[T]) {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadConfig() *config {
	pflag.String(serverURL.flagKey, serverURL.defaultValue, "Websocket base url of the server")
	pflag.String(roomID.flagKey, roomID.defaultValue, "Room to join")
	pflag.String(userID.flagKey, userID.defaultValue, "User id")
	pflag.String(username.flagKey, username.defaultValue, "Display name")
	pflag.Float64(drift.flagKey, drift.defaultValue, "Playback rate of the simulated player")
	pflag.Float64(threshold.flagKey, threshold.defaultValue, "Drift in seconds that triggers a corrective seek")
	pflag.Duration(checkInterval.flagKey, checkInterval.defaultValue, "Interval of local drift checks")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	bind(serverURL)
	bind(roomID)
	bind(userID)
	bind(username)
	bind(drift)
	bind(threshold)
	bind(checkInterval)
	bind(logLevel)

	return &config{
		ServerURL:     viper.GetString(serverURL.flagKey),
		RoomID:        viper.GetString(roomID.flagKey),
		UserID:        viper.GetString(userID.flagKey),
		Username:      viper.GetString(username.flagKey),
		Drift:         viper.GetFloat64(drift.flagKey),
		Threshold:     viper.GetFloat64(threshold.flagKey),
		CheckInterval: viper.GetDuration(checkInterval.flagKey),
		LogLevel:      viper.GetString(logLevel.flagKey),
	}
}

func (cfg *config) roomURL() string {
	q := url.Values{}
	q.Set("user-id", cfg.UserID)
	q.Set("username", cfg.Username)

	return strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v1/ws/room/" + url.PathEscape(cfg.RoomID) + "?" + q.Encode()
}

func run(ctx context.Context, cfg *config) error {
	if cfg.RoomID == "" || cfg.UserID == "" {
		return fmt.Errorf("room id and user id are required")
	}

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return err
	}
	logger := slog.New(&ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	})

	clock := clockwork.NewRealClock()
	player := reconciler.NewSimulatedPlayer(clock, cfg.Drift)
	rec := reconciler.New(player, clock, reconciler.Config{
		ThresholdSec:  cfg.Threshold,
		CheckInterval: cfg.CheckInterval,
	}, logger)

	client, resp, err := wsclient.Dial(ctx, cfg.roomURL())
	if err != nil {
		if resp != nil {
			return fmt.Errorf("join rejected with status %d: %w", resp.StatusCode, err)
		}
		return err
	}
	defer client.Close()

	go rec.Run(ctx)

	v := &viewer{logger: logger, rec: rec, player: player}
	return client.Listen(ctx, v.handle)
}

type viewer struct {
	logger *slog.Logger
	rec    *reconciler.Reconciler
	player reconciler.Player
}

// handle logs chat and server errors and hands every other frame to the reconciler.
func (v *viewer) handle(ctx context.Context, msg wsclient.Message) {
	switch msg.Type {
	case domain.MessageError:
		var p domain.ErrorPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			v.logger.WarnContext(ctx, "failed to decode message", "type", msg.Type, "error", err)
			return
		}
		v.logger.WarnContext(ctx, "server error", "code", p.Code, "message", p.Message)
		return
	case domain.MessageChat:
		var p domain.ChatPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			v.logger.WarnContext(ctx, "failed to decode message", "type", msg.Type, "error", err)
			return
		}
		v.logger.InfoContext(ctx, "chat", "user_id", p.Event.UserID, "text", p.Event.Content)
		return
	}

	if err := v.rec.HandleMessage(msg.Type, msg.Payload); err != nil {
		v.logger.WarnContext(ctx, "failed to handle message", "type", msg.Type, "error", err)
		return
	}

	v.logger.DebugContext(ctx, "message handled", "type", msg.Type, "position_sec", v.player.Position(), "corrections", v.rec.Corrections())
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg := loadConfig()

	jsonConfig, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Printf("starting viewer with config: %s\n", jsonConfig)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
