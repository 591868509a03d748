// Package media resolves user queries (URLs or search terms) into playable tracks.
package media

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shinonome/internal/app/playback"
	"github.com/osa030/shinonome/internal/domain/track"
)

// Resolution failure kinds shown to users.
const (
	KindDownload    = "DownloadError"
	KindUnsupported = "UnsupportedError"
	KindNotFound    = "NotFoundError"
	KindTimeout     = "TimeoutError"
)

// Source resolves queries it recognizes into tracks with a stream URL.
type Source interface {
	Name() string
	Match(query string) bool
	Resolve(ctx context.Context, query string) (track.Track, error)
}

// Resolver tries each matching source in order until one succeeds.
type Resolver struct {
	sources []Source
	timeout time.Duration
}

// NewResolver creates a resolver. A zero timeout disables the per-query deadline.
func NewResolver(timeout time.Duration, sources ...Source) *Resolver {
	return &Resolver{sources: sources, timeout: timeout}
}

// Sources returns the configured source names in resolution order.
func (r *Resolver) Sources() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

// Resolve returns the first track any matching source produces.
// Failures are returned as *playback.ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, query string) (track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return track.Track{}, playback.NewResolutionError(KindDownload, errors.New("empty query"))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var lastErr error
	for _, s := range r.sources {
		if !s.Match(query) {
			continue
		}
		t, err := s.Resolve(ctx, query)
		if err == nil {
			zlog.Debug().Msgf("resolved %q via %s: %s", query, s.Name(), t.Title)
			return t, nil
		}
		zlog.Debug().Msgf("source %s failed for %q: %v", s.Name(), query, err)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		return track.Track{}, playback.NewResolutionError(KindUnsupported,
			errors.Newf("no source can handle %q", query))
	}
	return track.Track{}, asResolutionError(lastErr)
}

// asResolutionError keeps an existing ResolutionError and classifies anything else.
func asResolutionError(err error) error {
	var re *playback.ResolutionError
	if errors.As(err, &re) {
		return re
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return playback.NewResolutionError(KindTimeout, err)
	}
	return playback.NewResolutionError(KindDownload, err)
}

// isURL reports whether s looks like an absolute http(s) URL.
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
