package domain

// Message is the envelope of every frame sent over a room channel.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// server -> client message types
const (
	MessageJoinResponse  = "JOIN_RESPONSE"
	MessageRosterUpdated = "ROSTER_UPDATED"
	MessagePlay          = "PLAY"
	MessagePause         = "PAUSE"
	MessageSeek          = "SEEK"
	MessageProgress      = "PROGRESS"
	MessageChat          = "MESSAGE"
	MessageLike          = "LIKE"
	MessageStatusUpdated = "STATUS_UPDATED"
	MessageSyncResponse  = "SYNC_RESPONSE"
	MessageError         = "ERROR"
)

type RosterPayload struct {
	Participants []Participant `json:"participants"`
	Joined       *Participant  `json:"joined,omitempty"`
	LeftUserID   *string       `json:"left_user_id,omitempty"`
}

type PlayPayload struct {
	StartTimeMs int64   `json:"start_time_ms"`
	PositionSec float64 `json:"position_sec"`
}

type PausePayload struct {
	PositionSec float64 `json:"position_sec"`
}

type SeekPayload struct {
	PositionSec float64 `json:"position_sec"`
	StartTimeMs *int64  `json:"start_time_ms"`
}

type ProgressPayload struct {
	Progress          float64 `json:"progress"`
	ServerTimestampMs int64   `json:"server_timestamp_ms"`
}

type ChatPayload struct {
	Event LogEvent `json:"event"`
}

type LikePayload struct {
	Event      LogEvent       `json:"event"`
	LikeCounts map[string]int `json:"like_counts"`
	TotalLikes int            `json:"total_likes"`
}

type StatusPayload struct {
	Status Status `json:"status"`
}

type SyncPayload struct {
	Events []LogEvent `json:"events"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
