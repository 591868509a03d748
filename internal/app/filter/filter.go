// Package filter provides the admission filter chain run before an entry is queued.
package filter

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/osa030/shinonome/internal/domain/track"
)

// Pending is an entry listed in the room, queued or playing.
type Pending struct {
	Requester track.Requester
	Track     track.Track
}

// Request represents an entry about to be queued.
type Request struct {
	GuildID   string
	Requester track.Requester
	Track     track.Track
	Pending   []Pending // Display queue snapshot, including the entry currently playing
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "user_pending", "blocked_user", "duplicate_track"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for admission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// Check performs the filter check.
	Check(ctx context.Context, req Request) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}

// Build creates a chain from enabled filter settings, keyed by filter name.
// Filters run in name order so rejections are deterministic.
func Build(enabled map[string]map[string]any) (*Chain, error) {
	names := make([]string, 0, len(enabled))
	for name := range enabled {
		names = append(names, name)
	}
	sort.Strings(names)

	chain := NewChain()
	for _, name := range names {
		factory, ok := registry[name]
		if !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
		f := factory()
		if err := f.ValidateConfig(enabled[name]); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		chain.Add(f)
	}
	return chain, nil
}
