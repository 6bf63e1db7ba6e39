package domain

import "time"

type EventType string

const (
	EventMessage EventType = "message"
	EventJoin    EventType = "join"
	EventLeave   EventType = "leave"
	EventPlay    EventType = "play"
	EventPause   EventType = "pause"
	EventSeek    EventType = "seek"
	EventLike    EventType = "like"
)

// LogEvent is an immutable entry of a room's event log. Events are ordered by (RealTime, Sequence);
// EventTimeSec is the video position at append time and is not monotonic across seeks.
type LogEvent struct {
	ID           string    `json:"id"`
	RoomID       string    `json:"room_id"`
	Sequence     int64     `json:"sequence"`
	Type         EventType `json:"type"`
	Content      string    `json:"content"`
	RealTime     time.Time `json:"real_time"`
	EventTimeSec float64   `json:"event_time_sec"`
	UserID       *string   `json:"user_id,omitempty"`
}

// Before reports whether e is ordered before other.
func (e LogEvent) Before(other LogEvent) bool {
	if !e.RealTime.Equal(other.RealTime) {
		return e.RealTime.Before(other.RealTime)
	}

	return e.Sequence < other.Sequence
}
