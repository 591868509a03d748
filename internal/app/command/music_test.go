package command

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/shinonome/internal/app/playback"
)

func TestMusic_Join(t *testing.T) {
	tests := []struct {
		name      string
		commands  []string
		wantReply string
	}{
		{name: "by name", commands: []string{"!join Music"}, wantReply: "Ready to play audio in Music"},
		{name: "by mention", commands: []string{"!join <#voice-2>"}, wantReply: "Ready to play audio in Lounge"},
		{name: "unknown channel", commands: []string{"!join Nowhere"}, wantReply: `Channel "Nowhere" not found.`},
		{name: "text channel", commands: []string{"!join general"}, wantReply: MsgNotVoiceChannel},
		{name: "already connected", commands: []string{"!join Music", "!join <#voice-2>"}, wantReply: MsgAlreadyConnected},
		{name: "missing argument", commands: []string{"!join"}, wantReply: "Usage: join <channel>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			for _, c := range tt.commands {
				assert.True(t, h.send("alice", c))
			}
			assert.Equal(t, tt.wantReply, h.replies.last())
		})
	}
}

func TestMusic_Summon(t *testing.T) {
	h := newHarness(t)

	h.send("carol", "!summon")
	assert.Equal(t, MsgNotInVoice, h.replies.last())
	assert.Nil(t, h.voice.conn("guild-1"))

	h.send("alice", "!summon")
	conn := h.voice.conn("guild-1")
	require.NotNil(t, conn)
	assert.Equal(t, "voice-1", conn.ChannelID())

	h.send("bob", "!summon")
	assert.Equal(t, "voice-2", conn.ChannelID(), "second summon moves the connection")
	assert.Equal(t, []string{"voice-2"}, conn.moves)
}

func TestMusic_PlaySummonsFirst(t *testing.T) {
	h := newHarness(t)

	h.send("carol", "!play song A")
	assert.Equal(t, MsgNotInVoice, h.replies.last(), "no voice channel, nothing enqueued")

	h.send("alice", "!play song A")
	conn := h.voice.conn("guild-1")
	require.NotNil(t, conn)

	room, err := h.manager.Get("guild-1")
	require.NoError(t, err)
	listing := room.QueueListing()
	require.Len(t, listing, 1)
	assert.Equal(t, "song A", listing[0].Track.Title, "rest of the message is the query")
	assert.Equal(t, "name-alice", listing[0].Requester.DisplayName)
}

func TestMusic_PlayQueryWithUnbalancedQuote(t *testing.T) {
	h := newHarness(t)

	h.send("alice", `!play 12" single version`)

	room, err := h.manager.Get("guild-1")
	require.NoError(t, err)
	listing := room.QueueListing()
	require.Len(t, listing, 1)
	assert.Equal(t, `12" single version`, listing[0].Track.Title)
}

func TestMusic_PlayResolutionError(t *testing.T) {
	h := newHarness(t)
	h.send("alice", "!summon")
	h.voice.conn("guild-1").createErr = playback.NewResolutionError("DownloadError", errors.New("video unavailable"))

	h.send("alice", "!play https://youtu.be/gone")

	assert.Equal(t, "An error occurred while processing this request: ```py\nDownloadError: video unavailable\n```", h.replies.last())
	room, err := h.manager.Get("guild-1")
	require.NoError(t, err)
	assert.Empty(t, room.QueueListing())
}

func TestMusic_PlaybackControls(t *testing.T) {
	h := newHarness(t)

	// Nothing exists yet: silent or "not playing" replies, and no room is created.
	h.send("alice", "!volume 50")
	h.send("alice", "!pause")
	h.send("alice", "!resume")
	assert.Empty(t, h.replies.all())
	h.send("alice", "!skip")
	assert.Equal(t, "Not playing any music right now...", h.replies.last())
	h.send("alice", "!playing")
	assert.Equal(t, "Not playing anything.", h.replies.last())
	h.send("alice", "!queue")
	assert.Equal(t, "Queue is empty.", h.replies.last())
	assert.Empty(t, h.manager.Rooms())

	h.send("alice", "!play song A")
	h.send("alice", "!play song B")
	conn := h.voice.conn("guild-1")
	first := conn.handles[0]
	room, err := h.manager.Get("guild-1")
	require.NoError(t, err)
	require.Eventually(t, room.IsPlaying, waitFor, tick)

	h.send("alice", "!volume 150")
	assert.Equal(t, "Set the volume to 100%", h.replies.last())
	h.send("alice", "!volume 25")
	assert.Equal(t, "Set the volume to 25%", h.replies.last())
	assert.InDelta(t, 0.25, first.Volume(), 0.0001)
	h.send("alice", "!volume loud")
	assert.Equal(t, "Volume must be a whole number.", h.replies.last())

	h.send("alice", "!pause")
	assert.True(t, first.isPaused())
	h.send("alice", "!resume")
	assert.False(t, first.isPaused())

	h.send("alice", "!playing")
	assert.Equal(t, "Now playing song A uploaded by uploader and requested by name-alice [skips: 0/3]", h.replies.last())

	h.send("alice", "!queue")
	assert.Equal(t, "\n1. song A uploaded by uploader and requested by name-alice"+
		"\n2. song B uploaded by uploader and requested by name-alice", h.replies.last())
}

func TestMusic_Skip(t *testing.T) {
	h := newHarness(t)
	h.send("alice", "!play song A")
	h.send("alice", "!play song B")
	room, err := h.manager.Get("guild-1")
	require.NoError(t, err)
	require.Eventually(t, room.IsPlaying, waitFor, tick)

	h.send("bob", "!skip")
	assert.Equal(t, "Skip vote added, currently at [1/3]", h.replies.last())
	h.send("bob", "!skip")
	assert.Equal(t, "You have already voted to skip this song.", h.replies.last())
	h.send("carol", "!skip")
	assert.Equal(t, "Skip vote added, currently at [2/3]", h.replies.last())
	h.send("dave", "!skip")
	assert.Equal(t, "Skip vote passed, skipping song...", h.replies.last())

	require.Eventually(t, func() bool {
		np, ok := room.NowPlaying()
		return ok && np.Entry.Track.Title == "song B"
	}, waitFor, tick)

	h.send("alice", "!skip")
	assert.Equal(t, "Requester requested skipping song...", h.replies.last())
}

func TestMusic_Stop(t *testing.T) {
	h := newHarness(t)
	h.send("alice", "!play song A")
	room, err := h.manager.Get("guild-1")
	require.NoError(t, err)
	require.Eventually(t, room.IsPlaying, waitFor, tick)

	h.send("alice", "!stop")

	_, err = h.manager.Get("guild-1")
	assert.ErrorIs(t, err, playback.ErrRoomNotFound)
	assert.True(t, h.voice.conn("guild-1").lastHandle().IsFinished())

	// A stop with nothing running is still fine
	h.send("alice", "!stop")
	assert.Empty(t, h.replies.all())
}

func TestMusic_GuildOnly(t *testing.T) {
	h := newHarness(t)

	for _, c := range []string{"!play song", "!join Music", "!summon", "!queue", "!stop"} {
		h.sendIn("", "alice", c)
		assert.Equal(t, GuildOnlyMessage, h.replies.last(), c)
	}
	assert.Empty(t, h.manager.Rooms())
}
