package playback

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/shinonome/internal/domain/track"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeHandle struct {
	mu       sync.Mutex
	track    track.Track
	onFinish func(Handle)
	once     sync.Once

	starts, stops, pauses, resumes int
	finished                       bool
	volume                         float64
	silent                         bool // finish without calling onFinish
}

func (h *fakeHandle) Track() track.Track { return h.track }

func (h *fakeHandle) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts++
}

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	h.stops++
	h.mu.Unlock()
	h.complete()
}

// complete simulates the stream ending on its own.
func (h *fakeHandle) complete() {
	h.mu.Lock()
	h.finished = true
	silent := h.silent
	h.mu.Unlock()
	if silent {
		return
	}
	h.once.Do(func() {
		if h.onFinish != nil {
			h.onFinish(h)
		}
	})
}

func (h *fakeHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pauses++
}

func (h *fakeHandle) Resume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resumes++
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

func (h *fakeHandle) counts() (starts, stops, pauses, resumes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.starts, h.stops, h.pauses, h.resumes
}

type fakeConn struct {
	mu            sync.Mutex
	channelID     string
	tracks        map[string]track.Track
	createErr     error
	handles       map[string]*fakeHandle
	moves         []string
	disconnects   int
	disconnectErr error
	silent        bool
}

func newFakeConn(channelID string) *fakeConn {
	return &fakeConn{
		channelID: channelID,
		tracks:    make(map[string]track.Track),
		handles:   make(map[string]*fakeHandle),
	}
}

func (c *fakeConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *fakeConn) MoveTo(ctx context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moves = append(c.moves, channelID)
	c.channelID = channelID
	return nil
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	return c.disconnectErr
}

func (c *fakeConn) CreateStream(ctx context.Context, query string, onFinish func(Handle)) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	t, ok := c.tracks[query]
	if !ok {
		t = track.Track{Title: query, Uploader: "uploader", URL: "https://example.com/" + query}
	}
	h := &fakeHandle{track: t, onFinish: onFinish, silent: c.silent}
	c.handles[query] = h
	return h, nil
}

func (c *fakeConn) handle(query string) *fakeHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles[query]
}

func (c *fakeConn) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

type fakeVoice struct {
	mu    sync.Mutex
	conns map[string]*fakeConn // channel ID -> conn handed out on Join
	err   error
	joins int
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{conns: make(map[string]*fakeConn)}
}

func (v *fakeVoice) Join(ctx context.Context, guildID, channelID string) (Conn, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.joins++
	if v.err != nil {
		return nil, v.err
	}
	c, ok := v.conns[channelID]
	if !ok {
		c = newFakeConn(channelID)
		v.conns[channelID] = c
	}
	return c, nil
}

func (v *fakeVoice) conn(channelID string) *fakeConn {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conns[channelID]
}

type message struct {
	channelID string
	text      string
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []message
}

func (n *recordingNotifier) Notify(ctx context.Context, channelID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message{channelID: channelID, text: text})
	return nil
}

func (n *recordingNotifier) texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.messages))
	for _, m := range n.messages {
		out = append(out, m.text)
	}
	return out
}

func (n *recordingNotifier) count(prefix string) int {
	c := 0
	for _, t := range n.texts() {
		if strings.HasPrefix(t, prefix) {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) has(text string) bool {
	for _, t := range n.texts() {
		if t == text {
			return true
		}
	}
	return false
}

// newTestRoom returns a connected room backed by fakes. The room is closed on cleanup.
func newTestRoom(t *testing.T, cfg Config) (*Room, *fakeConn, *recordingNotifier) {
	t.Helper()
	voice := newFakeVoice()
	notifier := &recordingNotifier{}
	r := newRoom("guild-1", cfg, voice, notifier, nil, nil)
	t.Cleanup(r.Close)

	require.NoError(t, r.Join(context.Background(), "voice-1"))
	return r, voice.conn("voice-1"), notifier
}

func enqueue(t *testing.T, r *Room, query, userID string) *Entry {
	t.Helper()
	e, err := r.Enqueue(context.Background(), query, track.Requester{ID: userID, DisplayName: "name-" + userID}, "text-1")
	require.NoError(t, err)
	return e
}

func waitPlaying(t *testing.T, r *Room, e *Entry) {
	t.Helper()
	assert.Eventually(t, func() bool {
		np, ok := r.NowPlaying()
		return ok && np.Entry == e && e.Handle.(*fakeHandle).starts1()
	}, waitFor, tick)
}

func (h *fakeHandle) starts1() bool {
	starts, _, _, _ := h.counts()
	return starts == 1
}
