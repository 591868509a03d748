package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/osa030/shinonome/internal/app/command"
)

// Directory resolves channels, members and voice states from the gateway state cache.
type Directory struct {
	state *discordgo.State
}

// NewDirectory creates a Directory over state.
func NewDirectory(state *discordgo.State) *Directory {
	return &Directory{state: state}
}

// FindChannel matches ref against channel ID, <#id> mention, name, then name ignoring case.
func (d *Directory) FindChannel(guildID, ref string) (command.Channel, error) {
	guild, err := d.state.Guild(guildID)
	if err != nil {
		return command.Channel{}, errors.Wrapf(err, "guild %s not in state", guildID)
	}
	id := trimMention(ref, "<#", ">")

	d.state.RLock()
	defer d.state.RUnlock()

	var folded *discordgo.Channel
	for _, ch := range guild.Channels {
		if ch.ID == id || ch.Name == ref {
			return command.Channel{ID: ch.ID, Name: ch.Name}, nil
		}
		if folded == nil && strings.EqualFold(ch.Name, ref) {
			folded = ch
		}
	}
	if folded != nil {
		return command.Channel{ID: folded.ID, Name: folded.Name}, nil
	}
	return command.Channel{}, command.ErrChannelNotFound
}

// FindMember matches ref against user ID, mention, username, global name and nickname.
func (d *Directory) FindMember(guildID, ref string) (command.Member, error) {
	id := trimMention(trimMention(ref, "<@!", ">"), "<@", ">")
	if m, err := d.state.Member(guildID, id); err == nil {
		return toMember(m), nil
	}

	guild, err := d.state.Guild(guildID)
	if err != nil {
		return command.Member{}, errors.Wrapf(err, "guild %s not in state", guildID)
	}

	d.state.RLock()
	defer d.state.RUnlock()
	for _, m := range guild.Members {
		if m.User == nil {
			continue
		}
		if m.User.Username == ref || m.User.GlobalName == ref || m.Nick == ref {
			return toMember(m), nil
		}
	}
	return command.Member{}, command.ErrMemberNotFound
}

// UserVoiceChannel returns the voice channel the user is currently connected to.
func (d *Directory) UserVoiceChannel(guildID, userID string) (string, error) {
	guild, err := d.state.Guild(guildID)
	if err != nil {
		return "", errors.Wrapf(err, "guild %s not in state", guildID)
	}

	d.state.RLock()
	defer d.state.RUnlock()
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, nil
		}
	}
	return "", command.ErrNotInVoice
}

func toMember(m *discordgo.Member) command.Member {
	return command.Member{
		ID:          m.User.ID,
		DisplayName: m.DisplayName(),
		JoinedAt:    m.JoinedAt,
	}
}

func trimMention(ref, prefix, suffix string) string {
	if strings.HasPrefix(ref, prefix) && strings.HasSuffix(ref, suffix) {
		return ref[len(prefix) : len(ref)-len(suffix)]
	}
	return ref
}
