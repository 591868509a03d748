// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"time"
)

// Source identifies which media source resolved a track.
type Source string

const (
	SourceYouTube Source = "youtube"
	SourceYtDlp   Source = "ytdlp"
	SourceSpotify Source = "spotify"
)

// Track represents resolved media metadata.
// Only Title and Uploader are required for display; everything else is best effort.
type Track struct {
	ID        string        // Source specific ID (video ID, Spotify ID)
	Title     string        // Track title
	Uploader  string        // Channel / artist name
	Duration  time.Duration // 0 when unknown (live streams, some extractors)
	URL       string        // Page URL the user can open
	StreamURL string        // Direct media URL handed to ffmpeg
	Source    Source        // Resolving source
}

// Requester represents the user who requested the track.
type Requester struct {
	ID          string // Discord user ID
	DisplayName string // Nickname or username at request time
}

// HasDuration reports whether the duration is known and at least one whole second.
func (t *Track) HasDuration() bool {
	return t.Duration >= time.Second
}

// Length formats the duration as "Mm Ss", e.g. 125s -> "2m 5s".
// Sub-second remainders are truncated.
func (t *Track) Length() string {
	secs := int(t.Duration / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
