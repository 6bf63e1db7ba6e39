package room

type Room struct {
	MovieID         string  `redis:"movie_id"`
	Title           string  `redis:"title"`
	StreamURL       string  `redis:"stream_url"`
	Status          string  `redis:"status"`
	HostID          string  `redis:"host_id"`
	IsPlaying       bool    `redis:"is_playing"`
	StartTimeMs     int64   `redis:"start_time_ms"`
	BasePositionSec float64 `redis:"base_position_sec"`
	MaxParticipants int     `redis:"max_participants"`
	CreatedAtMs     int64   `redis:"created_at_ms"`
}

type Participant struct {
	UserID     string  `redis:"-"`
	Username   string  `redis:"username"`
	AvatarURL  *string `redis:"-"`
	JoinedAtMs int64   `redis:"joined_at_ms"`
}
