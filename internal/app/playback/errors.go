package playback

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrNotPlaying       = errors.New("not playing")
	ErrNotConnected     = errors.New("no voice connection")
	ErrAlreadyConnected = errors.New("already connected to a voice channel")
	ErrNotVoiceChannel  = errors.New("not a voice channel")
	ErrRoomClosed       = errors.New("room closed")
	ErrRoomNotFound     = errors.New("room not found")
)

// ResolutionError reports that a media query could not be turned into a playable stream.
type ResolutionError struct {
	Kind string // Short failure class shown to users, e.g. "DownloadError"
	Err  error
}

// NewResolutionError wraps err with a failure kind.
func NewResolutionError(kind string, err error) *ResolutionError {
	return &ResolutionError{Kind: kind, Err: err}
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// RejectedError reports that an admission filter refused the entry.
type RejectedError struct {
	Code string
}

func (e *RejectedError) Error() string {
	return "rejected: " + e.Code
}
