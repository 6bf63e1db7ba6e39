package room

type SetRoomParams struct {
	RoomID          string
	MovieID         string
	Title           string
	StreamURL       string
	Status          string
	HostID          string
	MaxParticipants int
	CreatedAtMs     int64
}

type UpdatePlaybackParams struct {
	RoomID          string
	StartTimeMs     *int64
	BasePositionSec float64
}

type UpdateStatusParams struct {
	RoomID string
	Status string
}

type SetParticipantParams struct {
	RoomID     string
	UserID     string
	Username   string
	AvatarURL  *string
	JoinedAtMs int64
}

type RemoveParticipantParams struct {
	RoomID string
	UserID string
}

type IncrLikesParams struct {
	RoomID string
	UserID string
}
