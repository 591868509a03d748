package playback

import (
	"time"
)

// run is the player loop. One instance runs per room until the room context is cancelled.
func (r *Room) run() {
	defer close(r.done)
	r.log.Debug().Msg("player loop started")

	for {
		r.drainFinished()

		entry, ok := r.next()
		if !ok {
			r.log.Debug().Msg("player loop stopped")
			return
		}

		r.notify(r.ctx, entry.ChannelID, "Now playing "+entry.String())
		r.emit(Event{Type: EventTrackStarted, GuildID: r.guildID, Entry: entry, State: StatePlaying, At: time.Now()})
		r.log.Info().Msgf("now playing: title=%q requester=%s", entry.Track.Title, entry.Requester.ID)
		entry.Handle.Start()
		if r.ctx.Err() != nil {
			// Close may have picked its handle before this one became current
			entry.Handle.Stop()
			r.log.Debug().Msg("player loop stopped")
			return
		}

		if !r.waitFinished(entry) {
			r.log.Debug().Msg("player loop stopped")
			return
		}
		r.advance(entry)
	}
}

func (r *Room) drainFinished() {
	select {
	case <-r.finishedCh:
	default:
	}
}

// next blocks until an entry can be dequeued and makes it current.
func (r *Room) next() (*Entry, bool) {
	for {
		r.mu.Lock()
		if r.closed || r.ctx.Err() != nil {
			r.mu.Unlock()
			return nil, false
		}
		if len(r.queue) > 0 {
			entry := r.queue[0]
			r.queue[0] = nil
			r.queue = r.queue[1:]
			r.current = entry
			r.state = StatePlaying
			r.mu.Unlock()
			return entry, true
		}
		r.mu.Unlock()

		select {
		case <-r.wakeCh:
		case <-r.ctx.Done():
			return nil, false
		}
	}
}

// waitFinished blocks until the entry's handle signals completion.
// Returns false if the room was cancelled first.
func (r *Room) waitFinished(entry *Entry) bool {
	var poll <-chan time.Time
	if r.config.StallCheck > 0 {
		ticker := time.NewTicker(r.config.StallCheck)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-r.finishedCh:
			return true
		case <-r.ctx.Done():
			return false
		case <-poll:
			if entry.Handle.IsFinished() {
				r.log.Warn().Msgf("handle finished without signaling completion: title=%q", entry.Track.Title)
				return true
			}
		}
	}
}

// advance retires the finished entry: pops the display head, clears votes and current.
func (r *Room) advance(entry *Entry) {
	r.mu.Lock()
	if len(r.display) > 0 {
		r.display[0] = nil
		r.display = r.display[1:]
	}
	clear(r.skipVotes)
	if r.current == entry {
		r.current = nil
	}
	r.state = StateIdle
	r.mu.Unlock()

	r.emit(Event{Type: EventTrackEnded, GuildID: r.guildID, Entry: entry, State: StateIdle, At: time.Now()})
}
