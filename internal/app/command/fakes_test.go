package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osa030/shinonome/internal/app/playback"
	"github.com/osa030/shinonome/internal/domain/track"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeHandle struct {
	mu       sync.Mutex
	track    track.Track
	onFinish func(playback.Handle)
	once     sync.Once
	started  bool
	paused   bool
	finished bool
	volume   float64
}

func (h *fakeHandle) Track() track.Track { return h.track }

func (h *fakeHandle) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = true
}

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	h.finished = true
	h.mu.Unlock()
	h.once.Do(func() { h.onFinish(h) })
}

func (h *fakeHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = true
}

func (h *fakeHandle) Resume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = false
}

func (h *fakeHandle) IsFinished() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finished
}

func (h *fakeHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *fakeHandle) SetVolume(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = v
}

func (h *fakeHandle) isPaused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

type fakeConn struct {
	mu        sync.Mutex
	channelID string
	handles   []*fakeHandle
	createErr error
	moves     []string
}

func (c *fakeConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *fakeConn) MoveTo(ctx context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channelID = channelID
	c.moves = append(c.moves, channelID)
	return nil
}

func (c *fakeConn) Disconnect() error { return nil }

func (c *fakeConn) CreateStream(ctx context.Context, query string, onFinish func(playback.Handle)) (playback.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	h := &fakeHandle{
		track:    track.Track{Title: query, Uploader: "uploader"},
		onFinish: onFinish,
	}
	c.handles = append(c.handles, h)
	return h, nil
}

func (c *fakeConn) lastHandle() *fakeHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.handles) == 0 {
		return nil
	}
	return c.handles[len(c.handles)-1]
}

type fakeVoice struct {
	mu          sync.Mutex
	conns       map[string]*fakeConn // guild ID -> conn
	textChannel string               // joining this channel fails with ErrNotVoiceChannel
}

func (v *fakeVoice) Join(ctx context.Context, guildID, channelID string) (playback.Conn, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if channelID == v.textChannel {
		return nil, playback.ErrNotVoiceChannel
	}
	c := &fakeConn{channelID: channelID}
	v.conns[guildID] = c
	return c, nil
}

func (v *fakeVoice) conn(guildID string) *fakeConn {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conns[guildID]
}

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, channelID, text string) error { return nil }

type fakeDirectory struct {
	channels map[string]Channel // ref -> channel
	members  map[string]Member  // ref -> member
	voice    map[string]string  // user ID -> voice channel ID
}

func (d *fakeDirectory) FindChannel(guildID, ref string) (Channel, error) {
	if ch, ok := d.channels[ref]; ok {
		return ch, nil
	}
	return Channel{}, ErrChannelNotFound
}

func (d *fakeDirectory) FindMember(guildID, ref string) (Member, error) {
	if m, ok := d.members[ref]; ok {
		return m, nil
	}
	return Member{}, ErrMemberNotFound
}

func (d *fakeDirectory) UserVoiceChannel(guildID, userID string) (string, error) {
	if ch, ok := d.voice[userID]; ok {
		return ch, nil
	}
	return "", ErrNotInVoice
}

type replies struct {
	mu    sync.Mutex
	texts []string
}

func (r *replies) reply(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *replies) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func (r *replies) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

// harness wires the music commands to a real playback manager backed by fakes.
type harness struct {
	t          *testing.T
	manager    *playback.Manager
	voice      *fakeVoice
	dir        *fakeDirectory
	dispatcher *Dispatcher
	replies    *replies
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	voice := &fakeVoice{conns: make(map[string]*fakeConn), textChannel: "text-1"}
	manager := playback.NewManager(playback.DefaultConfig(), voice, nopNotifier{}, nil, 0)
	t.Cleanup(manager.Close)

	dir := &fakeDirectory{
		channels: map[string]Channel{
			"Music":      {ID: "voice-1", Name: "Music"},
			"<#voice-2>": {ID: "voice-2", Name: "Lounge"},
			"general":    {ID: "text-1", Name: "general"},
		},
		members: map[string]Member{
			"alice": {ID: "alice", DisplayName: "Alice", JoinedAt: time.Date(2016, 4, 1, 12, 30, 0, 0, time.UTC)},
		},
		voice: map[string]string{"alice": "voice-1", "bob": "voice-2"},
	}

	registry := NewRegistry()
	require.NoError(t, registry.Register([]Middleware{GuildOnly()}, NewMusic(manager, dir).Commands()...))
	require.NoError(t, registry.Register(nil, Misc(dir)...))

	return &harness{
		t:          t,
		manager:    manager,
		voice:      voice,
		dir:        dir,
		dispatcher: NewDispatcher(registry, "!", func(code string) string { return "rejected: " + code }),
		replies:    &replies{},
	}
}

// send dispatches content as userID in guild-1.
func (h *harness) send(userID, content string) bool {
	return h.sendIn("guild-1", userID, content)
}

func (h *harness) sendIn(guildID, userID, content string) bool {
	return h.dispatcher.Dispatch(context.Background(), content, "bot", Invocation{
		GuildID:   guildID,
		ChannelID: "text-1",
		Author:    Member{ID: userID, DisplayName: "name-" + userID},
		Reply:     h.replies.reply,
	})
}
