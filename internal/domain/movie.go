package domain

type Movie struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StreamURL string `json:"stream_url"`
}
