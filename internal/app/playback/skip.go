package playback

import (
	"time"
)

// SkipOutcome is the result of a skip vote.
type SkipOutcome int

const (
	SkipRequester    SkipOutcome = iota + 1 // Requester skipped their own entry
	SkipPassed                              // Vote reached the threshold
	SkipVoteAdded                           // Vote counted, threshold not reached
	SkipAlreadyVoted                        // Voter had already voted; nothing changed
	SkipForced                              // Skipped from the admin API
)

// SkipResult reports the outcome of a skip vote and the tally after it.
type SkipResult struct {
	Outcome   SkipOutcome
	Votes     int
	Threshold int
}

// Skipped reports whether the current entry was stopped.
func (r SkipResult) Skipped() bool {
	return r.Outcome == SkipRequester || r.Outcome == SkipPassed || r.Outcome == SkipForced
}

// VoteSkip registers a skip vote from voterID against the current entry.
func (r *Room) VoteSkip(voterID string) (SkipResult, error) {
	r.mu.Lock()
	if !r.isPlayingLocked() {
		r.mu.Unlock()
		return SkipResult{}, ErrNotPlaying
	}

	threshold := r.config.SkipThreshold
	entry := r.current
	var result SkipResult

	switch {
	case voterID == entry.Requester.ID:
		clear(r.skipVotes)
		result = SkipResult{Outcome: SkipRequester, Threshold: threshold}
	default:
		if _, voted := r.skipVotes[voterID]; voted {
			result = SkipResult{Outcome: SkipAlreadyVoted, Votes: len(r.skipVotes), Threshold: threshold}
			break
		}
		r.skipVotes[voterID] = struct{}{}
		votes := len(r.skipVotes)
		if votes >= threshold {
			clear(r.skipVotes)
			result = SkipResult{Outcome: SkipPassed, Votes: votes, Threshold: threshold}
		} else {
			result = SkipResult{Outcome: SkipVoteAdded, Votes: votes, Threshold: threshold}
		}
	}
	r.mu.Unlock()

	if result.Skipped() {
		r.stopEntry(entry)
	}
	return result, nil
}

// Skip stops the current entry without a vote.
func (r *Room) Skip() (SkipResult, error) {
	r.mu.Lock()
	if !r.isPlayingLocked() {
		r.mu.Unlock()
		return SkipResult{}, ErrNotPlaying
	}
	entry := r.current
	clear(r.skipVotes)
	r.mu.Unlock()

	r.stopEntry(entry)
	return SkipResult{Outcome: SkipForced, Threshold: r.config.SkipThreshold}, nil
}

// stopEntry stops the handle outside the lock; Stop may call back into handleFinished.
func (r *Room) stopEntry(entry *Entry) {
	r.log.Info().Msgf("skipping: title=%q", entry.Track.Title)
	r.emit(Event{Type: EventTrackSkipped, GuildID: r.guildID, Entry: entry, State: StatePlaying, At: time.Now()})
	entry.Handle.Stop()
}
