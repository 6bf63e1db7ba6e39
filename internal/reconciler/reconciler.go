package reconciler

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/internal/domain"
)

const (
	DefaultThresholdSec  = 1.5
	DefaultCheckInterval = 2000 * time.Millisecond
)

// Player is the local video player being kept in sync.
type Player interface {
	Position() float64
	Seek(positionSec float64)
	Play()
	Pause()
}

type Config struct {
	ThresholdSec  float64
	CheckInterval time.Duration
}

// Reconciler keeps a Player close to the authoritative position of its room. It never talks back to
// the server.
type Reconciler struct {
	mu     sync.Mutex
	player Player
	clock  clockwork.Clock
	config Config
	logger *slog.Logger

	state domain.PlaybackClock
	known bool

	corrections int
}

func New(player Player, clock clockwork.Clock, config Config, logger *slog.Logger) *Reconciler {
	if config.ThresholdSec <= 0 {
		config.ThresholdSec = DefaultThresholdSec
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultCheckInterval
	}

	return &Reconciler{
		player: player,
		clock:  clock,
		config: config,
		logger: logger,
	}
}

func (r *Reconciler) nowMs() int64 {
	return r.clock.Now().UnixMilli()
}

// apply replaces the authoritative clock and moves the player to it unconditionally.
func (r *Reconciler) apply(state domain.PlaybackClock) {
	r.state = state
	r.known = true

	r.player.Seek(state.CurrentPosition(r.nowMs()))
	if state.IsPlaying() {
		r.player.Play()
	} else {
		r.player.Pause()
	}
}

func (r *Reconciler) HandleSnapshot(snapshot domain.RoomSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.apply(snapshot.Clock())
}

func (r *Reconciler) HandlePlay(payload domain.PlayPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.apply(domain.ToStartFields(payload.PositionSec, payload.StartTimeMs))
}

func (r *Reconciler) HandlePause(payload domain.PausePayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.apply(domain.PausedAt(payload.PositionSec))
}

func (r *Reconciler) HandleSeek(payload domain.SeekPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if payload.StartTimeMs != nil {
		r.apply(domain.ToStartFields(payload.PositionSec, *payload.StartTimeMs))
		return
	}

	r.apply(domain.PausedAt(payload.PositionSec))
}

// HandleProgress compensates the heartbeat for transport latency and seeks when the player drifted
// past the threshold. It reports whether a correction was issued.
func (r *Reconciler) HandleProgress(payload domain.ProgressPayload) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	nowMs := r.nowMs()
	expected := payload.Progress + float64(nowMs-payload.ServerTimestampMs)/1000
	if expected < 0 {
		expected = 0
	}

	// progress is only sent while playing
	r.state = domain.ToStartFields(payload.Progress, payload.ServerTimestampMs)
	r.known = true

	return r.correct(expected)
}

// Check compares the player against the last known authoritative clock.
func (r *Reconciler) Check() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.known {
		return false
	}

	return r.correct(r.state.CurrentPosition(r.nowMs()))
}

func (r *Reconciler) correct(expected float64) bool {
	local := r.player.Position()
	drift := local - expected
	if math.Abs(drift) <= r.config.ThresholdSec {
		return false
	}

	r.player.Seek(expected)
	r.corrections++
	r.logger.Info("corrected drift", "local_sec", local, "expected_sec", expected, "drift_sec", drift)
	return true
}

func (r *Reconciler) Corrections() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.corrections
}

// Run checks the player every CheckInterval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			r.Check()
		}
	}
}
