// Package playback provides per-guild queues, the player loop, skip voting and the room manager.
package playback

// State represents the playback state of a room.
type State int

const (
	StateIdle    State = iota // No current entry
	StatePlaying              // Current entry's handle has been started
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}
