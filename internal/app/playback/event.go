package playback

import "time"

// EventType represents a playback event type.
type EventType int

const (
	EventEnqueued     EventType = iota // Entry appended to a room queue
	EventTrackStarted                  // Player loop started an entry
	EventTrackEnded                    // Current entry's handle completed
	EventTrackSkipped                  // Current entry was skipped (requester, vote, or admin)
	EventRoomStopped                   // Room torn down
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventEnqueued:
		return "enqueued"
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackSkipped:
		return "track_skipped"
	case EventRoomStopped:
		return "room_stopped"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type    EventType
	GuildID string
	Entry   *Entry // nil for EventRoomStopped
	State   State
	At      time.Time
}
