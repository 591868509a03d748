package media

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/osa030/shinonome/internal/domain/track"
)

// SpotifySettings represents the spotify source settings.
type SpotifySettings struct {
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
	Market       string `mapstructure:"market" validate:"omitempty,len=2"`
}

// SpotifySource resolves Spotify track links: metadata comes from the Web API,
// audio from a search on the fallback source.
type SpotifySource struct {
	client     *spotify.Client
	search     Source
	market     string
	maxRetries int
	retryDelay time.Duration
}

// NewSpotifySource creates a Spotify source using the client credentials flow.
// search resolves "<artists> - <title>" into a playable stream.
func NewSpotifySource(settings map[string]any, httpClient *http.Client, search Source) (*SpotifySource, error) {
	var s SpotifySettings
	if err := decodeSettings(settings, &s); err != nil {
		return nil, errors.Wrap(err, "invalid spotify settings")
	}
	if search == nil {
		return nil, errors.New("spotify source requires a search source")
	}

	creds := &clientcredentials.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	ctx := context.Background()
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	return newSpotifySource(spotify.New(creds.Client(ctx)), search, s.Market), nil
}

func newSpotifySource(client *spotify.Client, search Source, market string) *SpotifySource {
	return &SpotifySource{
		client:     client,
		search:     search,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Name returns the source name.
func (s *SpotifySource) Name() string {
	return string(track.SourceSpotify)
}

// Match accepts Spotify track URLs and URIs.
func (s *SpotifySource) Match(query string) bool {
	return extractTrackID(query) != ""
}

// Resolve looks the track up on Spotify and searches for its audio.
func (s *SpotifySource) Resolve(ctx context.Context, query string) (track.Track, error) {
	id := extractTrackID(query)
	if id == "" {
		return track.Track{}, errors.Newf("not a Spotify track: %s", query)
	}

	var opts []spotify.RequestOption
	if s.market != "" {
		opts = append(opts, spotify.Market(s.market))
	}

	var full *spotify.FullTrack
	err := s.retry(ctx, func() error {
		t, err := s.client.GetTrack(ctx, spotify.ID(id), opts...)
		if err != nil {
			return err
		}
		full = t
		return nil
	})
	if err != nil {
		return track.Track{}, errors.Wrap(err, "failed to get spotify track")
	}

	artists := make([]string, len(full.Artists))
	for i, a := range full.Artists {
		artists[i] = a.Name
	}
	uploader := strings.Join(artists, ", ")

	found, err := s.search.Resolve(ctx, uploader+" - "+full.Name)
	if err != nil {
		return track.Track{}, errors.Wrapf(err, "no audio found for %s - %s", uploader, full.Name)
	}

	return track.Track{
		ID:        string(full.ID),
		Title:     full.Name,
		Uploader:  uploader,
		Duration:  time.Duration(full.Duration) * time.Millisecond,
		URL:       "https://open.spotify.com/track/" + string(full.ID),
		StreamURL: found.StreamURL,
		Source:    track.SourceSpotify,
	}, nil
}

// retry retries an operation with a linear backoff.
func (s *SpotifySource) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < s.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < s.maxRetries-1 {
			select {
			case <-time.After(s.retryDelay * time.Duration(i+1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI, "" if input is neither.
func extractTrackID(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "spotify:track:") {
		return strings.TrimPrefix(input, "spotify:track:")
	}

	// https://open.spotify.com/track/ID or https://open.spotify.com/intl-XX/track/ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/track/") {
		parts := strings.Split(input, "/track/")
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}
	return ""
}
