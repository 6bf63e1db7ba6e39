package connection

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("connection not found")
	ErrClosed   = errors.New("connection closed")
)

// close codes sent to clients when the server ends a session
const (
	CloseKicked   = 4001
	CloseFinished = 4002
	CloseReplaced = 4003
)

type Config struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	SendBuffer   int
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		SendBuffer:   256,
	}
}
