package domain

type Participant struct {
	UserID     string  `json:"user_id"`
	Username   string  `json:"username"`
	AvatarURL  *string `json:"avatar_url"`
	JoinedAtMs int64   `json:"joined_at_ms"`
}
