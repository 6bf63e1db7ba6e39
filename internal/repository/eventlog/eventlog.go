package eventlog

import (
	"errors"
	"fmt"

	"github.com/sharetube/watchparty/internal/domain"
)

var ErrInvalidEvent = errors.New("invalid event")

func Validate(event *domain.LogEvent) error {
	if event.RoomID == "" {
		return fmt.Errorf("%w: room id is empty", ErrInvalidEvent)
	}

	if event.Type == "" {
		return fmt.Errorf("%w: type is empty", ErrInvalidEvent)
	}

	return nil
}
