package reconciler

import (
	"encoding/json"
	"fmt"

	"github.com/sharetube/watchparty/internal/domain"
)

func decode[T any](payload json.RawMessage, apply func(T)) error {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	apply(v)
	return nil
}

// HandleMessage routes a server message to the matching handler. Message types that do not
// affect playback are ignored.
func (r *Reconciler) HandleMessage(msgType string, payload json.RawMessage) error {
	switch msgType {
	case domain.MessageJoinResponse:
		return decode(payload, r.HandleSnapshot)
	case domain.MessagePlay:
		return decode(payload, r.HandlePlay)
	case domain.MessagePause:
		return decode(payload, r.HandlePause)
	case domain.MessageSeek:
		return decode(payload, r.HandleSeek)
	case domain.MessageProgress:
		return decode(payload, func(p domain.ProgressPayload) {
			r.HandleProgress(p)
		})
	case domain.MessageStatusUpdated:
		return decode(payload, func(p domain.StatusPayload) {
			if p.Status == domain.StatusFinished {
				r.mu.Lock()
				defer r.mu.Unlock()
				r.apply(domain.PausedAt(r.player.Position()))
			}
		})
	}

	return nil
}
