package playback

import (
	"sort"
	"sync"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/shinonome/internal/app/filter"
)

// Manager owns every Room, keyed by guild ID.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	config   Config
	voice    Voice
	notifier Notifier
	filters  *filter.Chain

	eventCh chan Event
}

// NewManager creates a new room manager. filters may be nil.
func NewManager(config Config, voice Voice, notifier Notifier, filters *filter.Chain, eventBuffer int) *Manager {
	if eventBuffer <= 0 {
		eventBuffer = 64
	}
	return &Manager{
		rooms:    make(map[string]*Room),
		config:   config,
		voice:    voice,
		notifier: notifier,
		filters:  filters,
		eventCh:  make(chan Event, eventBuffer),
	}
}

// Events returns the event channel.
func (m *Manager) Events() <-chan Event {
	return m.eventCh
}

// sendEvent sends an event without blocking; events are dropped when nobody keeps up.
func (m *Manager) sendEvent(e Event) {
	select {
	case m.eventCh <- e:
	default:
		zlog.Debug().Msgf("event channel full, dropping %s for guild %s", e.Type, e.GuildID)
	}
}

// GetOrCreate returns the guild's room, creating it (and starting its player loop) if absent.
func (m *Manager) GetOrCreate(guildID string) *Room {
	m.mu.RLock()
	r, ok := m.rooms[guildID]
	m.mu.RUnlock()
	if ok {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[guildID]; ok {
		return r
	}
	r = newRoom(guildID, m.config, m.voice, m.notifier, m.filters, m.sendEvent)
	m.rooms[guildID] = r
	zlog.Info().Msgf("room created: guild=%s generation=%s", guildID, r.Generation())
	return r
}

// Get returns the guild's room without creating it.
func (m *Manager) Get(guildID string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[guildID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Stop removes the guild's room and tears it down. The mapping entry is removed even if
// the room had no connection or its handle had already finished.
func (m *Manager) Stop(guildID string) {
	m.mu.Lock()
	r, ok := m.rooms[guildID]
	delete(m.rooms, guildID)
	m.mu.Unlock()

	if ok {
		r.Close()
	}
}

// Rooms returns a snapshot of all rooms ordered by guild ID.
func (m *Manager) Rooms() []*Room {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].GuildID() < rooms[j].GuildID()
	})
	return rooms
}

// Close tears down every room in parallel and empties the mapping.
func (m *Manager) Close() {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	var g errgroup.Group
	for _, r := range rooms {
		g.Go(func() error {
			r.Close()
			return nil
		})
	}
	_ = g.Wait()
	zlog.Info().Msgf("playback manager closed: rooms=%d", len(rooms))
}
