package playback

import (
	"context"

	"github.com/osa030/shinonome/internal/domain/track"
)

// Handle controls one playable media stream.
// Implementations must call the onFinish callback passed to Conn.CreateStream exactly once,
// after the stream ends for any reason (natural end, Stop, or failure).
type Handle interface {
	Track() track.Track
	Start()
	Stop()
	Pause()
	Resume()
	IsFinished() bool
	Volume() float64
	SetVolume(v float64)
}

// Conn is an established voice connection for one guild.
type Conn interface {
	ChannelID() string
	MoveTo(ctx context.Context, channelID string) error
	Disconnect() error
	// CreateStream resolves query and prepares a handle without starting it.
	// Resolution failures are returned as *ResolutionError.
	CreateStream(ctx context.Context, query string, onFinish func(Handle)) (Handle, error)
}

// Voice opens voice connections.
type Voice interface {
	// Join fails with ErrAlreadyConnected or ErrNotVoiceChannel.
	Join(ctx context.Context, guildID, channelID string) (Conn, error)
}

// Notifier delivers plain text messages to a text channel.
type Notifier interface {
	Notify(ctx context.Context, channelID, text string) error
}
