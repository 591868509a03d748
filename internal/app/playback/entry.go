package playback

import (
	"fmt"
	"time"

	"github.com/osa030/shinonome/internal/domain/track"
)

// Entry is an immutable queue entry pairing a handle with who asked for it and where.
type Entry struct {
	Requester track.Requester
	ChannelID string // Text channel the request came from; announcements go here
	Handle    Handle
	Track     track.Track
	AddedAt   time.Time
}

// NewEntry creates an entry, snapshotting the handle's track metadata.
func NewEntry(requester track.Requester, channelID string, h Handle) *Entry {
	return &Entry{
		Requester: requester,
		ChannelID: channelID,
		Handle:    h,
		Track:     h.Track(),
		AddedAt:   time.Now(),
	}
}

// String renders the entry as shown in chat.
func (e *Entry) String() string {
	s := fmt.Sprintf("%s uploaded by %s and requested by %s",
		e.Track.Title, e.Track.Uploader, e.Requester.DisplayName)
	if e.Track.HasDuration() {
		s += " [length: " + e.Track.Length() + "]"
	}
	return s
}
