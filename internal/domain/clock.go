package domain

// PlaybackClock is the stored playback state of a room. StartTimeMs is set iff playback is running;
// while paused BasePositionSec holds the paused position. Wall-clock fields are epoch milliseconds,
// video-timeline fields are seconds.
type PlaybackClock struct {
	StartTimeMs     *int64  `json:"start_time_ms"`
	BasePositionSec float64 `json:"base_position_sec"`
}

func PausedAt(positionSec float64) PlaybackClock {
	return PlaybackClock{BasePositionSec: clampPosition(positionSec)}
}

// ToStartFields returns a running clock that is at positionSec at nowMs.
func ToStartFields(positionSec float64, nowMs int64) PlaybackClock {
	start := nowMs
	return PlaybackClock{
		StartTimeMs:     &start,
		BasePositionSec: clampPosition(positionSec),
	}
}

func (c PlaybackClock) IsPlaying() bool {
	return c.StartTimeMs != nil
}

// CurrentPosition returns the authoritative position at nowMs, never negative.
func (c PlaybackClock) CurrentPosition(nowMs int64) float64 {
	if c.StartTimeMs == nil {
		return clampPosition(c.BasePositionSec)
	}

	return clampPosition(c.BasePositionSec + float64(nowMs-*c.StartTimeMs)/1000)
}

func clampPosition(positionSec float64) float64 {
	if positionSec < 0 || positionSec != positionSec {
		return 0
	}

	return positionSec
}
