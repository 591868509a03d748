// Package discord connects the command and playback layers to the Discord gateway.
package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shinonome/internal/app/command"
)

// Intents requested from the gateway: guild cache, voice states and message content for prefix commands.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// NewSession creates an unopened gateway session for a bot token.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord session")
	}
	s.Identify.Intents = Intents
	s.State.TrackVoice = true
	s.State.TrackMembers = true
	return s, nil
}

// Bot routes gateway messages to the command dispatcher.
type Bot struct {
	session    *discordgo.Session
	dispatcher *command.Dispatcher
	notifier   *Notifier
	presence   string
	ctx        context.Context
}

// NewBot creates a bot over an unopened session.
func NewBot(session *discordgo.Session, dispatcher *command.Dispatcher, notifier *Notifier, presence string) *Bot {
	return &Bot{
		session:    session,
		dispatcher: dispatcher,
		notifier:   notifier,
		presence:   presence,
		ctx:        context.Background(),
	}
}

// Start registers the gateway handlers and opens the connection. Commands run with ctx.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)

	if err := b.session.Open(); err != nil {
		return errors.Wrap(err, "failed to open discord session")
	}
	zlog.Info().Msg("discord gateway connected")
	return nil
}

// Close closes the gateway connection.
func (b *Bot) Close() error {
	if err := b.session.Close(); err != nil {
		return errors.Wrap(err, "failed to close discord session")
	}
	zlog.Info().Msg("discord gateway disconnected")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	zlog.Info().Msgf("logged in as %s (%s), guilds=%d", r.User.Username, r.User.ID, len(r.Guilds))
	if b.presence == "" {
		return
	}
	if err := s.UpdateGameStatus(0, b.presence); err != nil {
		zlog.Warn().Err(err).Msg("failed to update presence")
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || s.State.User == nil || m.Author.ID == s.State.User.ID {
		return
	}

	inv := command.Invocation{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Author:    author(m.Message),
		Reply: func(ctx context.Context, text string) error {
			return b.notifier.Notify(ctx, m.ChannelID, text)
		},
	}
	b.dispatcher.Dispatch(b.ctx, m.Content, s.State.User.ID, inv)
}

// author builds the invoking member; the nickname wins over the account's display name.
func author(m *discordgo.Message) command.Member {
	member := command.Member{ID: m.Author.ID, DisplayName: m.Author.DisplayName()}
	if m.Member != nil {
		if m.Member.Nick != "" {
			member.DisplayName = m.Member.Nick
		}
		member.JoinedAt = m.Member.JoinedAt
	}
	return member
}
