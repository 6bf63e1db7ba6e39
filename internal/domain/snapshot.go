package domain

// RoomSnapshot is the bootstrap payload sent to a joining client. It is derived from a Room and
// the recent log window and never stored.
type RoomSnapshot struct {
	RoomID            string         `json:"room_id"`
	MovieID           string         `json:"movie_id"`
	Title             string         `json:"title"`
	Status            Status         `json:"status"`
	HostID            string         `json:"host_id"`
	IsPlaying         bool           `json:"is_playing"`
	StartTimeMs       *int64         `json:"start_time_ms"`
	BasePositionSec   float64        `json:"base_position_sec"`
	PositionSec       float64        `json:"position_sec"`
	ServerTimestampMs int64          `json:"server_timestamp_ms"`
	StreamURL         string         `json:"stream_url"`
	MaxParticipants   int            `json:"max_participants"`
	Participants      []Participant  `json:"participants"`
	RecentMessages    []LogEvent     `json:"recent_messages"`
	LikeCounts        map[string]int `json:"like_counts"`
	TotalLikes        int            `json:"total_likes"`
}

func NewSnapshot(r *Room, window []LogEvent, nowMs int64) RoomSnapshot {
	c := r.Clone()
	if window == nil {
		window = []LogEvent{}
	}
	if c.Participants == nil {
		c.Participants = []Participant{}
	}

	return RoomSnapshot{
		RoomID:            c.ID,
		MovieID:           c.MovieID,
		Title:             c.Title,
		Status:            c.Status,
		HostID:            c.HostID,
		IsPlaying:         c.Clock.IsPlaying(),
		StartTimeMs:       c.Clock.StartTimeMs,
		BasePositionSec:   c.Clock.BasePositionSec,
		PositionSec:       c.Clock.CurrentPosition(nowMs),
		ServerTimestampMs: nowMs,
		StreamURL:         c.StreamURL,
		MaxParticipants:   c.MaxParticipants,
		Participants:      c.Participants,
		RecentMessages:    window,
		LikeCounts:        c.LikeCounts,
		TotalLikes:        c.TotalLikes(),
	}
}

// Clock rebuilds the playback clock the snapshot was taken from.
func (s RoomSnapshot) Clock() PlaybackClock {
	return PlaybackClock{
		StartTimeMs:     s.StartTimeMs,
		BasePositionSec: s.BasePositionSec,
	}
}
