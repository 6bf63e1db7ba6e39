package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *AppConfig {
	return &AppConfig{
		Host:              "127.0.0.1",
		Port:              8080,
		LogLevel:          "DEBUG",
		MembersLimit:      9,
		HeartbeatInterval: 5 * time.Second,
		LeaveGracePeriod:  5 * time.Second,
		LogWindow:         50,
		LogRetention:      1000,
		RoomExpire:        time.Hour,
		Storage:           StorageMemory,
		StreamBaseURL:     "https://cdn.example.com",
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	cfg := testConfig()
	cfg.MembersLimit = 0
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.Storage = "disk"
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.LogRetention = 10
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.HeartbeatInterval = 0
	assert.Error(t, cfg.Validate())
}

func TestBuildWithRedis(t *testing.T) {
	s := miniredis.RunT(t)
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Storage = StorageRedis
	cfg.RedisHost = s.Host()
	cfg.RedisPort = port

	a, err := build(context.Background(), cfg, clockwork.NewRealClock(), slog.Default())
	require.NoError(t, err)
	defer a.close()

	server := httptest.NewServer(a.handler)
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/v1/rooms", "application/json",
		strings.NewReader(`{"room_id":"r1","movie_id":"m1","host_id":"host"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.True(t, s.Exists("room:r1"))
	members, err := s.SMembers("rooms")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, members)

	list, err := http.Get(server.URL + "/api/v1/rooms")
	require.NoError(t, err)
	defer list.Body.Close()

	var out struct {
		Data []struct {
			RoomID string `json:"room_id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(list.Body).Decode(&out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "r1", out.Data[0].RoomID)
}

func TestBuildRedisUnavailable(t *testing.T) {
	s := miniredis.RunT(t)
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	s.Close()

	cfg := testConfig()
	cfg.Storage = StorageRedis
	cfg.RedisHost = "127.0.0.1"
	cfg.RedisPort = port

	_, err = build(context.Background(), cfg, clockwork.NewRealClock(), slog.Default())
	assert.Error(t, err)
}
