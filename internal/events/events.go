package events

import (
	"encoding/json"
	"time"
)

// Event types emitted by the engine
const (
	TypeFollow              = "follow"
	TypeUnfollow            = "unfollow"
	TypeAchievementUnlocked = "achievement_unlocked"
	TypeAchievementRevoked  = "achievement_revoked"
)

// Event is an outbound domain event. Delivery is best-effort: the engine
// never blocks on or fails because of event delivery.
type Event struct {
	Type          string    `json:"type"`
	ActorID       string    `json:"actor_id"`
	TargetID      string    `json:"target_id,omitempty"`
	AchievementID string    `json:"achievement_id,omitempty"`
	At            time.Time `json:"at"`
}

// JSON serializes the event for transport
func (e Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// Sink receives events. Implementations must not block for long; slow sinks
// cause events to be dropped by the dispatcher.
type Sink interface {
	Emit(event Event) error
}
