package domain

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusOngoing  Status = "ongoing"
	StatusFinished Status = "finished"
)

func (s Status) rank() int {
	switch s {
	case StatusUpcoming:
		return 0
	case StatusOngoing:
		return 1
	case StatusFinished:
		return 2
	}

	return -1
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

// CanTransitionTo reports whether next is strictly later in the upcoming -> ongoing -> finished order.
func (s Status) CanTransitionTo(next Status) bool {
	return s.Valid() && next.Valid() && next.rank() > s.rank()
}

type Room struct {
	ID              string
	MovieID         string
	Title           string
	StreamURL       string
	Status          Status
	HostID          string
	Clock           PlaybackClock
	MaxParticipants int
	Participants    []Participant
	LikeCounts      map[string]int
	CreatedAtMs     int64
}

func (r *Room) IsPlaying() bool {
	return r.Clock.IsPlaying()
}

func (r *Room) Participant(userID string) (Participant, bool) {
	i := r.participantIndex(userID)
	if i < 0 {
		return Participant{}, false
	}

	return r.Participants[i], true
}

func (r *Room) participantIndex(userID string) int {
	return slices.IndexFunc(r.Participants, func(p Participant) bool {
		return p.UserID == userID
	})
}

// UpsertParticipant replaces the entry with the same user id or appends a new one.
func (r *Room) UpsertParticipant(p Participant) {
	if i := r.participantIndex(p.UserID); i >= 0 {
		r.Participants[i] = p
		return
	}

	r.Participants = append(r.Participants, p)
}

func (r *Room) RemoveParticipant(userID string) (Participant, bool) {
	i := r.participantIndex(userID)
	if i < 0 {
		return Participant{}, false
	}

	p := r.Participants[i]
	r.Participants = slices.Delete(r.Participants, i, i+1)
	return p, true
}

func (r *Room) IsFull() bool {
	return len(r.Participants) >= r.MaxParticipants
}

func (r *Room) TotalLikes() int {
	total := 0
	for _, n := range r.LikeCounts {
		total += n
	}

	return total
}

// Clone returns a deep copy so a candidate state can be persisted before it replaces the live one.
func (r *Room) Clone() Room {
	c := *r
	c.Participants = slices.Clone(r.Participants)
	c.LikeCounts = maps.Clone(r.LikeCounts)
	if c.LikeCounts == nil {
		c.LikeCounts = make(map[string]int)
	}
	if r.Clock.StartTimeMs != nil {
		start := *r.Clock.StartTimeMs
		c.Clock.StartTimeMs = &start
	}

	return c
}
