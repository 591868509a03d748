package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/shinonome/internal/app/playback"
	"github.com/osa030/shinonome/internal/domain/track"
)

type recordingStream struct {
	mu    sync.Mutex
	got   []*structpb.Struct
	err   error
	block chan struct{}
}

func (s *recordingStream) Send(n *structpb.Struct) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, n)
	return nil
}

func (s *recordingStream) received() []*structpb.Struct {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*structpb.Struct(nil), s.got...)
}

func TestManager_Broadcast(t *testing.T) {
	m := NewManager()
	a := &recordingStream{}
	b := &recordingStream{}
	m.Subscribe(a)
	idB := m.Subscribe(b)
	require.Equal(t, 2, m.SubscriberCount())

	m.Broadcast(&structpb.Struct{})
	m.Unsubscribe(idB)
	m.Broadcast(&structpb.Struct{})

	gotA := a.received()
	require.Len(t, gotA, 2)
	assert.Equal(t, float64(1), gotA[0].Fields["sequence_no"].GetNumberValue())
	assert.Equal(t, float64(2), gotA[1].Fields["sequence_no"].GetNumberValue())
	assert.Len(t, b.received(), 1)
}

func TestManager_DropsFailingSubscriber(t *testing.T) {
	m := NewManager()
	m.Subscribe(&recordingStream{err: errors.New("stream closed")})
	ok := &recordingStream{}
	m.Subscribe(ok)

	m.Broadcast(&structpb.Struct{})

	assert.Equal(t, 1, m.SubscriberCount())
	assert.Len(t, ok.received(), 1)
}

func TestManager_SlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewManager()
	slow := &recordingStream{block: make(chan struct{})}
	defer close(slow.block)
	m.Subscribe(slow)

	start := time.Now()
	m.Broadcast(&structpb.Struct{})
	assert.Less(t, time.Since(start), SendTimeout+time.Second)
	assert.Equal(t, 1, m.SubscriberCount(), "slow watchers are kept")
}

func TestManager_Run(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	m.Subscribe(s)

	events := make(chan playback.Event, 2)
	events <- playback.Event{Type: playback.EventRoomStopped, GuildID: "g1", State: playback.StateIdle, At: time.Now()}
	close(events)

	m.Run(context.Background(), events)

	got := s.received()
	require.Len(t, got, 1)
	assert.Equal(t, "room_stopped", got[0].Fields["type"].GetStringValue())
	assert.Equal(t, "g1", got[0].Fields["guild_id"].GetStringValue())
	assert.Nil(t, got[0].Fields["entry"])
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, make(chan playback.Event))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEventStruct_WithEntry(t *testing.T) {
	entry := &playback.Entry{
		Requester: track.Requester{ID: "u1", DisplayName: "Alice"},
		ChannelID: "c1",
		Track: track.Track{
			Title:    "Song",
			Uploader: "Band",
			URL:      "https://www.youtube.com/watch?v=abc",
			Source:   track.SourceYouTube,
			Duration: 125 * time.Second,
		},
		AddedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	s, err := EventStruct(playback.Event{Type: playback.EventTrackStarted, GuildID: "g1", Entry: entry, State: playback.StatePlaying})
	require.NoError(t, err)

	assert.Equal(t, "track_started", s.Fields["type"].GetStringValue())
	assert.Equal(t, "playing", s.Fields["state"].GetStringValue())
	e := s.Fields["entry"].GetStructValue()
	require.NotNil(t, e)
	assert.Equal(t, "Song", e.Fields["title"].GetStringValue())
	assert.Equal(t, "youtube", e.Fields["source"].GetStringValue())
	assert.Equal(t, float64(125), e.Fields["duration_sec"].GetNumberValue())
	assert.Equal(t, "Song uploaded by Band and requested by Alice [length: 2m 5s]", e.Fields["description"].GetStringValue())
}
