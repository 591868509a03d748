// Package notification relays playback events to admin watchers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/shinonome/internal/app/playback"
)

// SendTimeout bounds a single delivery to one subscriber.
const SendTimeout = 500 * time.Millisecond

// Stream receives notifications for one subscriber.
type Stream interface {
	Send(*structpb.Struct) error
}

type subscription struct {
	id     string
	stream Stream
}

// Manager fans notifications out to subscribers.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a subscriber and returns its ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{id: id, stream: stream}
	zlog.Debug().Msgf("watcher subscribed: id=%s", id)
	return id
}

// Unsubscribe removes a subscriber.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

func (m *Manager) nextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Broadcast stamps the notification with the next sequence number and sends it to every subscriber.
// Sends run in parallel, each bounded by SendTimeout. A subscriber whose send fails is dropped.
func (m *Manager) Broadcast(n *structpb.Struct) {
	if n.Fields == nil {
		n.Fields = make(map[string]*structpb.Value)
	}
	n.Fields["sequence_no"] = structpb.NewNumberValue(float64(m.nextSequenceNo()))

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Err(err).Msgf("dropping watcher %s", s.id)
					m.Unsubscribe(s.id)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("watcher %s is slow, notification skipped", s.id)
			}
		}(sub)
	}
	wg.Wait()
}

// Run relays playback events until ctx is cancelled or events is closed.
func (m *Manager) Run(ctx context.Context, events <-chan playback.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			n, err := EventStruct(e)
			if err != nil {
				zlog.Warn().Err(err).Msgf("failed to encode %s event", e.Type)
				continue
			}
			m.Broadcast(n)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}

// EventStruct encodes a playback event.
func EventStruct(e playback.Event) (*structpb.Struct, error) {
	fields := map[string]any{
		"type":     e.Type.String(),
		"guild_id": e.GuildID,
		"state":    e.State.String(),
		"at":       e.At.UTC().Format(time.RFC3339),
	}
	if e.Entry != nil {
		fields["entry"] = EntryFields(e.Entry)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode event")
	}
	return s, nil
}

// EntryFields describes a queue entry as struct fields.
func EntryFields(e *playback.Entry) map[string]any {
	return map[string]any{
		"title":          e.Track.Title,
		"uploader":       e.Track.Uploader,
		"url":            e.Track.URL,
		"source":         string(e.Track.Source),
		"duration_sec":   e.Track.Duration.Seconds(),
		"requester_id":   e.Requester.ID,
		"requester_name": e.Requester.DisplayName,
		"channel_id":     e.ChannelID,
		"added_at":       e.AddedAt.UTC().Format(time.RFC3339),
		"description":    e.String(),
	}
}
