package archive

import (
	"context"

	"github.com/sharetube/watchparty/internal/domain"
)

type nop struct{}

// Nop discards every event.
func Nop() nop {
	return nop{}
}

func (nop) Publish(context.Context, domain.LogEvent) error {
	return nil
}

// Subject is the subject appended events of roomID are published on.
func Subject(roomID string) string {
	return "watchparty.rooms." + roomID + ".events"
}
