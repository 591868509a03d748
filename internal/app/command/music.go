package command

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/shinonome/internal/app/playback"
	"github.com/osa030/shinonome/internal/domain/track"
)

// Rooms is the subset of *playback.Manager used by music commands.
type Rooms interface {
	GetOrCreate(guildID string) *playback.Room
	Get(guildID string) (*playback.Room, error)
	Stop(guildID string)
}

// Music provides the voice related commands.
type Music struct {
	rooms Rooms
	dir   Directory
}

// NewMusic creates the music command set.
func NewMusic(rooms Rooms, dir Directory) *Music {
	return &Music{rooms: rooms, dir: dir}
}

// Commands returns every music command.
func (m *Music) Commands() []Command {
	return []Command{
		New("join", "Joins a voice channel.", m.join),
		New("summon", "Summons the bot to join your voice channel.", m.summonCmd),
		New("play", "Plays a song. Searches YouTube when given plain text.", m.play),
		New("volume", "Sets the volume of the currently played song.", m.volume),
		New("pause", "Pauses the currently played song.", m.pause),
		New("resume", "Resumes the currently played song.", m.resume),
		New("stop", "Stops playing audio and leaves the voice channel. This also clears the queue.", m.stop),
		New("skip", "Vote to skip a song. The song requester can automatically skip.", m.skip),
		New("playing", "Shows info about the currently played song.", m.playing),
		New("queue", "Lists the songs currently queued up.", m.queue),
	}
}

func (m *Music) join(ctx context.Context, inv *Invocation) error {
	if inv.Rest == "" {
		return InputErrorf("Usage: join <channel>")
	}
	ch, err := m.dir.FindChannel(inv.GuildID, inv.Rest)
	if err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return InputErrorf("Channel %q not found.", inv.Rest)
		}
		return err
	}

	if err := m.rooms.GetOrCreate(inv.GuildID).Join(ctx, ch.ID); err != nil {
		return err
	}
	return inv.Reply(ctx, "Ready to play audio in "+ch.Name)
}

func (m *Music) summonCmd(ctx context.Context, inv *Invocation) error {
	_, err := m.summon(ctx, inv)
	return err
}

// summon joins or moves to the author's voice channel. ok is false when the author is not in one.
func (m *Music) summon(ctx context.Context, inv *Invocation) (ok bool, err error) {
	channelID, err := m.dir.UserVoiceChannel(inv.GuildID, inv.Author.ID)
	if err != nil {
		if errors.Is(err, ErrNotInVoice) {
			return false, inv.Reply(ctx, MsgNotInVoice)
		}
		return false, err
	}
	if err := m.rooms.GetOrCreate(inv.GuildID).Summon(ctx, channelID); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Music) play(ctx context.Context, inv *Invocation) error {
	if inv.Rest == "" {
		return InputErrorf("Usage: play <song>")
	}

	room := m.rooms.GetOrCreate(inv.GuildID)
	if room.Conn() == nil {
		ok, err := m.summon(ctx, inv)
		if err != nil || !ok {
			return err
		}
	}

	requester := track.Requester{ID: inv.Author.ID, DisplayName: inv.Author.DisplayName}
	_, err := room.Enqueue(ctx, inv.Rest, requester, inv.ChannelID)
	return err
}

func (m *Music) volume(ctx context.Context, inv *Invocation) error {
	args, err := inv.Arguments()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return InputErrorf("Usage: volume <percent>")
	}
	value, err := strconv.Atoi(strings.TrimSuffix(args[0], "%"))
	if err != nil {
		return InputErrorf("Volume must be a whole number.")
	}

	room, ok := m.existing(inv.GuildID)
	if !ok {
		return nil
	}
	applied, err := room.SetVolume(value)
	if errors.Is(err, playback.ErrNotPlaying) {
		return nil
	}
	if err != nil {
		return err
	}
	return inv.Replyf(ctx, "Set the volume to %d%%", applied)
}

func (m *Music) pause(ctx context.Context, inv *Invocation) error {
	if room, ok := m.existing(inv.GuildID); ok {
		return ignoreNotPlaying(room.Pause())
	}
	return nil
}

func (m *Music) resume(ctx context.Context, inv *Invocation) error {
	if room, ok := m.existing(inv.GuildID); ok {
		return ignoreNotPlaying(room.Resume())
	}
	return nil
}

func (m *Music) stop(ctx context.Context, inv *Invocation) error {
	m.rooms.Stop(inv.GuildID)
	return nil
}

func (m *Music) skip(ctx context.Context, inv *Invocation) error {
	room, ok := m.existing(inv.GuildID)
	if !ok {
		return inv.Reply(ctx, "Not playing any music right now...")
	}

	res, err := room.VoteSkip(inv.Author.ID)
	if errors.Is(err, playback.ErrNotPlaying) {
		return inv.Reply(ctx, "Not playing any music right now...")
	}
	if err != nil {
		return err
	}

	switch res.Outcome {
	case playback.SkipRequester:
		return inv.Reply(ctx, "Requester requested skipping song...")
	case playback.SkipPassed:
		return inv.Reply(ctx, "Skip vote passed, skipping song...")
	case playback.SkipVoteAdded:
		return inv.Replyf(ctx, "Skip vote added, currently at [%d/%d]", res.Votes, res.Threshold)
	default:
		return inv.Reply(ctx, "You have already voted to skip this song.")
	}
}

func (m *Music) playing(ctx context.Context, inv *Invocation) error {
	room, ok := m.existing(inv.GuildID)
	if !ok {
		return inv.Reply(ctx, "Not playing anything.")
	}
	np, ok := room.NowPlaying()
	if !ok {
		return inv.Reply(ctx, "Not playing anything.")
	}
	return inv.Replyf(ctx, "Now playing %s [skips: %d/%d]", np.Entry, np.Votes, np.Threshold)
}

func (m *Music) queue(ctx context.Context, inv *Invocation) error {
	var entries []*playback.Entry
	if room, ok := m.existing(inv.GuildID); ok {
		entries = room.QueueListing()
	}
	if len(entries) == 0 {
		return inv.Reply(ctx, "Queue is empty.")
	}

	var b strings.Builder
	for i, e := range entries {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(e.String())
	}
	return inv.Reply(ctx, b.String())
}

// existing returns the guild's room without creating one.
func (m *Music) existing(guildID string) (*playback.Room, bool) {
	room, err := m.rooms.Get(guildID)
	if err != nil {
		return nil, false
	}
	return room, true
}

func ignoreNotPlaying(err error) error {
	if errors.Is(err, playback.ErrNotPlaying) {
		return nil
	}
	return err
}
