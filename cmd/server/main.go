package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchparty/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 50,
	}
	heartbeatInterval = configVar[time.Duration]{
		envKey:       "SERVER_HEARTBEAT_INTERVAL",
		flagKey:      "heartbeat-interval",
		defaultValue: 5000 * time.Millisecond,
	}
	leaveGracePeriod = configVar[time.Duration]{
		envKey:       "SERVER_LEAVE_GRACE_PERIOD",
		flagKey:      "leave-grace-period",
		defaultValue: 5 * time.Second,
	}
	logWindow = configVar[int]{
		envKey:       "SERVER_LOG_WINDOW",
		flagKey:      "log-window",
		defaultValue: 50,
	}
	logRetention = configVar[int]{
		envKey:       "SERVER_LOG_RETENTION",
		flagKey:      "log-retention",
		defaultValue: 1000,
	}
	roomExpire = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_EXPIRE",
		flagKey:      "room-expire",
		defaultValue: 24 * 14 * time.Hour,
	}
	storage = configVar[string]{
		envKey:       "SERVER_STORAGE",
		flagKey:      "storage",
		defaultValue: app.StorageMemory,
	}
	streamBaseURL = configVar[string]{
		envKey:       "SERVER_STREAM_BASE_URL",
		flagKey:      "stream-base-url",
		defaultValue: "http://localhost:8081/streams",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
	postgresDSN = configVar[string]{
		envKey:       "POSTGRES_DSN",
		flagKey:      "postgres-dsn",
		defaultValue: "",
	}
	natsURL = configVar[string]{
		envKey:       "NATS_URL",
		flagKey:      "nats-url",
		defaultValue: "",
	}
)

func bind[T any](v configVar[T]) {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, "Default and maximum number of participants in a room")
	pflag.Duration(heartbeatInterval.flagKey, heartbeatInterval.defaultValue, "Interval of progress heartbeats while playing")
	pflag.Duration(leaveGracePeriod.flagKey, leaveGracePeriod.defaultValue, "Time a disconnected participant has to reconnect")
	pflag.Int(logWindow.flagKey, logWindow.defaultValue, "Number of recent log events in a snapshot")
	pflag.Int(logRetention.flagKey, logRetention.defaultValue, "Number of log events kept per room")
	pflag.Duration(roomExpire.flagKey, roomExpire.defaultValue, "Expiration of persisted room state")
	pflag.String(storage.flagKey, storage.defaultValue, "Room state storage (memory|redis)")
	pflag.String(streamBaseURL.flagKey, streamBaseURL.defaultValue, "Base url of movie streams")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.String(postgresDSN.flagKey, postgresDSN.defaultValue, "Postgres dsn of the ticket and movie tables")
	pflag.String(natsURL.flagKey, natsURL.defaultValue, "NATS url for event archival")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	bind(port)
	bind(host)
	bind(logLevel)
	bind(membersLimit)
	bind(heartbeatInterval)
	bind(leaveGracePeriod)
	bind(logWindow)
	bind(logRetention)
	bind(roomExpire)
	bind(storage)
	bind(streamBaseURL)
	bind(redisPort)
	bind(redisHost)
	bind(redisPassword)
	bind(postgresDSN)
	bind(natsURL)

	config := &app.AppConfig{
		Host:              viper.GetString(host.flagKey),
		Port:              viper.GetInt(port.flagKey),
		LogLevel:          viper.GetString(logLevel.flagKey),
		MembersLimit:      viper.GetInt(membersLimit.flagKey),
		HeartbeatInterval: viper.GetDuration(heartbeatInterval.flagKey),
		LeaveGracePeriod:  viper.GetDuration(leaveGracePeriod.flagKey),
		LogWindow:         viper.GetInt(logWindow.flagKey),
		LogRetention:      viper.GetInt(logRetention.flagKey),
		RoomExpire:        viper.GetDuration(roomExpire.flagKey),
		Storage:           viper.GetString(storage.flagKey),
		StreamBaseURL:     viper.GetString(streamBaseURL.flagKey),
		RedisPort:         viper.GetInt(redisPort.flagKey),
		RedisHost:         viper.GetString(redisHost.flagKey),
		RedisPassword:     viper.GetString(redisPassword.flagKey),
		PostgresDSN:       viper.GetString(postgresDSN.flagKey),
		NatsURL:           viper.GetString(natsURL.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	// .env is optional
	_ = godotenv.Load()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
