package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shinonome/internal/app/playback"
	"github.com/osa030/shinonome/internal/domain/track"
	"github.com/osa030/shinonome/internal/infra/audio"
)

// Resolver turns a user query into a playable track.
type Resolver interface {
	Resolve(ctx context.Context, query string) (track.Track, error)
}

// link is the part of *discordgo.VoiceConnection a voiceConn drives.
type link interface {
	ChangeChannel(channelID string, mute, deaf bool) error
	Speaking(b bool) error
	Disconnect() error
}

// Voice opens voice connections through a gateway session.
type Voice struct {
	session    *discordgo.Session
	resolver   Resolver
	opener     audio.Opener
	newEncoder func() (audio.Encoder, error)
}

// NewVoice creates a Voice. Streams are decoded by opener and encoded with newEncoder.
func NewVoice(session *discordgo.Session, resolver Resolver, opener audio.Opener, newEncoder func() (audio.Encoder, error)) *Voice {
	return &Voice{
		session:    session,
		resolver:   resolver,
		opener:     opener,
		newEncoder: newEncoder,
	}
}

// Join connects to a voice channel of the guild, deafened.
func (v *Voice) Join(ctx context.Context, guildID, channelID string) (playback.Conn, error) {
	ch, err := v.channel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch.GuildID != guildID || !isVoice(ch) {
		return nil, playback.ErrNotVoiceChannel
	}

	v.session.RLock()
	_, exists := v.session.VoiceConnections[guildID]
	v.session.RUnlock()
	if exists {
		return nil, playback.ErrAlreadyConnected
	}

	vc, err := v.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to join voice channel %s", channelID)
	}
	return newVoiceConn(guildID, channelID, vc, vc.OpusSend, v.resolver, v.opener, v.newEncoder), nil
}

func (v *Voice) channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if ch, err := v.session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	ch, err := v.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch channel %s", channelID)
	}
	return ch, nil
}

func isVoice(ch *discordgo.Channel) bool {
	return ch.Type == discordgo.ChannelTypeGuildVoice || ch.Type == discordgo.ChannelTypeGuildStageVoice
}

// voiceConn is one guild's voice connection.
type voiceConn struct {
	mu        sync.Mutex
	guildID   string
	channelID string
	link      link
	frames    chan<- []byte

	resolver   Resolver
	opener     audio.Opener
	newEncoder func() (audio.Encoder, error)
	log        zerolog.Logger
}

func newVoiceConn(guildID, channelID string, l link, frames chan<- []byte, resolver Resolver, opener audio.Opener, newEncoder func() (audio.Encoder, error)) *voiceConn {
	return &voiceConn{
		guildID:    guildID,
		channelID:  channelID,
		link:       l,
		frames:     frames,
		resolver:   resolver,
		opener:     opener,
		newEncoder: newEncoder,
		log:        zlog.With().Str("guild", guildID).Logger(),
	}
}

func (c *voiceConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *voiceConn) MoveTo(ctx context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channelID == channelID {
		return nil
	}
	if err := c.link.ChangeChannel(channelID, false, true); err != nil {
		return err
	}
	c.log.Info().Msgf("voice moved: %s -> %s", c.channelID, channelID)
	c.channelID = channelID
	return nil
}

func (c *voiceConn) Disconnect() error {
	return c.link.Disconnect()
}

func (c *voiceConn) CreateStream(ctx context.Context, query string, onFinish func(playback.Handle)) (playback.Handle, error) {
	t, err := c.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Msgf("resolved %q: title=%q source=%s", query, t.Title, t.Source)

	sink := audio.Sink{Frames: c.frames, Speaking: c.link.Speaking}
	return audio.NewStream(t, c.opener, c.newEncoder, sink, func(s *audio.Stream) {
		if onFinish != nil {
			onFinish(s)
		}
	}), nil
}
