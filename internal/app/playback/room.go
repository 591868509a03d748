package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shinonome/internal/app/filter"
	"github.com/osa030/shinonome/internal/domain/track"
)

// Config holds room configuration.
type Config struct {
	DefaultVolume    float64       // Volume applied to every new handle (fraction, 0.6 = 60%)
	MaxVolumePercent int           // Upper clamp for SetVolume
	SkipThreshold    int           // Distinct votes needed to skip
	StallCheck       time.Duration // 0 disables; otherwise polls IsFinished to recover lost completion signals
}

// DefaultConfig returns the stock room configuration.
func DefaultConfig() Config {
	return Config{
		DefaultVolume:    0.6,
		MaxVolumePercent: 100,
		SkipThreshold:    3,
	}
}

// Room is the playback state of one guild: queue, current entry, skip votes and the player loop.
type Room struct {
	mu sync.Mutex

	guildID    string
	generation string

	current   *Entry
	queue     []*Entry // Waiting to be played
	display   []*Entry // What the queue command shows; head is popped only after playback ends
	skipVotes map[string]struct{}
	conn      Conn
	state     State
	closed    bool

	config   Config
	voice    Voice
	notifier Notifier
	filters  *filter.Chain
	emit     func(Event)

	wakeCh     chan struct{} // Signaled by Enqueue
	finishedCh chan struct{} // Signaled when the current handle completes

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	log       zerolog.Logger
}

// newRoom creates a room and starts its player loop.
func newRoom(guildID string, cfg Config, voice Voice, notifier Notifier, filters *filter.Chain, emit func(Event)) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	gen := uuid.New().String()
	r := &Room{
		guildID:    guildID,
		generation: gen,
		queue:      make([]*Entry, 0),
		display:    make([]*Entry, 0),
		skipVotes:  make(map[string]struct{}),
		state:      StateIdle,
		config:     cfg,
		voice:      voice,
		notifier:   notifier,
		filters:    filters,
		emit:       emit,
		wakeCh:     make(chan struct{}, 1),
		finishedCh: make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        zlog.With().Str("guild", guildID).Str("room", gen[:8]).Logger(),
	}
	if r.emit == nil {
		r.emit = func(Event) {}
	}
	go r.run()
	return r
}

// GuildID returns the guild this room belongs to.
func (r *Room) GuildID() string {
	return r.guildID
}

// Generation returns the unique ID of this room instance. A stopped and re-created room gets a new one.
func (r *Room) Generation() string {
	return r.generation
}

// State returns the current playback state.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Conn returns the voice connection, or nil.
func (r *Room) Conn() Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn
}

// Join connects to a voice channel. Fails with ErrAlreadyConnected when a connection exists.
func (r *Room) Join(ctx context.Context, channelID string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	if r.conn != nil {
		r.mu.Unlock()
		return ErrAlreadyConnected
	}
	r.mu.Unlock()

	conn, err := r.voice.Join(ctx, r.guildID, channelID)
	if err != nil {
		return err
	}
	return r.attach(conn)
}

// Summon joins channelID, or moves the existing connection there.
func (r *Room) Summon(ctx context.Context, channelID string) error {
	conn := r.Conn()
	if conn != nil {
		return errors.Wrap(conn.MoveTo(ctx, channelID), "failed to move voice connection")
	}
	conn, err := r.voice.Join(ctx, r.guildID, channelID)
	if err != nil {
		return err
	}
	return r.attach(conn)
}

func (r *Room) attach(conn Conn) error {
	r.mu.Lock()
	if r.closed || r.conn != nil {
		closed := r.closed
		r.mu.Unlock()
		// Lost a race with Stop or another Join; release the extra connection
		if err := conn.Disconnect(); err != nil {
			r.log.Debug().Err(err).Msg("failed to release surplus voice connection")
		}
		if closed {
			return ErrRoomClosed
		}
		return ErrAlreadyConnected
	}
	r.conn = conn
	r.mu.Unlock()
	r.log.Info().Msgf("voice connected: channel=%s", conn.ChannelID())
	return nil
}

// Enqueue resolves query into a handle and appends it to the queue.
// The "Enqueued" announcement is sent before the entry becomes visible to the player loop.
func (r *Room) Enqueue(ctx context.Context, query string, requester track.Requester, channelID string) (*Entry, error) {
	conn := r.Conn()
	if conn == nil {
		return nil, ErrNotConnected
	}

	h, err := conn.CreateStream(ctx, query, r.handleFinished)
	if err != nil {
		var rerr *ResolutionError
		if errors.As(err, &rerr) {
			return nil, rerr
		}
		return nil, NewResolutionError("Error", err)
	}
	h.SetVolume(r.config.DefaultVolume)
	entry := NewEntry(requester, channelID, h)

	if res := r.filters.Execute(ctx, r.admissionRequest(entry)); !res.Accepted {
		h.Stop()
		r.log.Info().Msgf("enqueue rejected: code=%s title=%q requester=%s", res.Code, entry.Track.Title, requester.ID)
		return nil, &RejectedError{Code: res.Code}
	}

	r.notify(ctx, channelID, "Enqueued "+entry.String())

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		h.Stop()
		return nil, ErrRoomClosed
	}
	r.queue = append(r.queue, entry)
	r.display = append(r.display, entry)
	state := r.state
	r.mu.Unlock()

	r.wake()
	r.emit(Event{Type: EventEnqueued, GuildID: r.guildID, Entry: entry, State: state, At: time.Now()})
	r.log.Info().Msgf("enqueued: title=%q requester=%s", entry.Track.Title, requester.ID)
	return entry, nil
}

func (r *Room) admissionRequest(entry *Entry) filter.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := make([]filter.Pending, 0, len(r.display))
	for _, e := range r.display {
		pending = append(pending, filter.Pending{Requester: e.Requester, Track: e.Track})
	}
	return filter.Request{
		GuildID:   r.guildID,
		Requester: entry.Requester,
		Track:     entry.Track,
		Pending:   pending,
	}
}

// SetVolume sets the current handle's volume, clamped to [0, MaxVolumePercent].
// Returns the applied percentage.
func (r *Room) SetVolume(percent int) (int, error) {
	if percent < 0 {
		percent = 0
	}
	if r.config.MaxVolumePercent > 0 && percent > r.config.MaxVolumePercent {
		percent = r.config.MaxVolumePercent
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isPlayingLocked() {
		return 0, ErrNotPlaying
	}
	r.current.Handle.SetVolume(float64(percent) / 100)
	return int(math.Round(r.current.Handle.Volume() * 100)), nil
}

// Pause pauses the current handle.
func (r *Room) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isPlayingLocked() {
		return ErrNotPlaying
	}
	r.current.Handle.Pause()
	return nil
}

// Resume resumes the current handle.
func (r *Room) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isPlayingLocked() {
		return ErrNotPlaying
	}
	r.current.Handle.Resume()
	return nil
}

// IsPlaying reports whether a started handle is still running on an open connection.
func (r *Room) IsPlaying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isPlayingLocked()
}

func (r *Room) isPlayingLocked() bool {
	return r.current != nil && r.conn != nil && !r.current.Handle.IsFinished()
}

// NowPlaying describes the current entry.
type NowPlaying struct {
	Entry     *Entry
	Votes     int
	Threshold int
}

// NowPlaying returns the current entry and its skip tally. ok is false when nothing is current.
func (r *Room) NowPlaying() (np NowPlaying, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return NowPlaying{}, false
	}
	return NowPlaying{
		Entry:     r.current,
		Votes:     len(r.skipVotes),
		Threshold: r.config.SkipThreshold,
	}, true
}

// QueueListing returns a snapshot of the display queue.
// The entry being played stays at the head until its playback ends.
func (r *Room) QueueListing() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, len(r.display))
	copy(out, r.display)
	return out
}

// Close cancels the player loop, stops the current handle and releases the voice connection.
// Release failures are logged at debug level and otherwise ignored.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		r.cancel()

		r.mu.Lock()
		r.closed = true
		var h Handle
		if r.isPlayingLocked() {
			h = r.current.Handle
		}
		conn := r.conn
		r.conn = nil
		r.mu.Unlock()

		if h != nil {
			h.Stop()
		}
		<-r.done

		if conn != nil {
			if err := conn.Disconnect(); err != nil {
				r.log.Debug().Err(err).Msg("voice disconnect failed")
			}
		}

		r.mu.Lock()
		r.state = StateIdle
		r.mu.Unlock()
		r.emit(Event{Type: EventRoomStopped, GuildID: r.guildID, State: StateIdle, At: time.Now()})
		r.log.Info().Msg("room closed")
	})
}

// Done is closed when the player loop has exited.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) notify(ctx context.Context, channelID, text string) {
	if r.notifier == nil || channelID == "" {
		return
	}
	if err := r.notifier.Notify(ctx, channelID, text); err != nil {
		r.log.Warn().Err(err).Msgf("failed to send message to channel %s", channelID)
	}
}

func (r *Room) wake() {
	select {
	case r.wakeCh <- struct{}{}:
	default:
	}
}

// handleFinished is the completion callback given to every handle of this room.
// Only the current entry's handle advances the loop.
func (r *Room) handleFinished(h Handle) {
	r.mu.Lock()
	isCurrent := r.current != nil && r.current.Handle == h
	r.mu.Unlock()
	if !isCurrent {
		return
	}
	select {
	case r.finishedCh <- struct{}{}:
	default:
	}
}
