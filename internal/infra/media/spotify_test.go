package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"

	"github.com/osa030/shinonome/internal/domain/track"
)

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL format",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL with query params",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Localized URL",
			input:    "https://open.spotify.com/intl-ja/track/abc123/",
			expected: "abc123",
		},
		{
			name:     "Playlist URL",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			expected: "",
		},
		{
			name:     "Plain text",
			input:    "never gonna give you up",
			expected: "",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractTrackID(tt.input)
			assert.Equal(t, tt.expected, result,
				"extractTrackID(%s) should return %s", tt.input, tt.expected)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "rate limit error with 429", err: errors.New("Error 429: rate limit exceeded"), expected: true},
		{name: "rate limit text", err: errors.New("rate limit exceeded"), expected: true},
		{name: "server error 500", err: errors.New("Error 500: internal server error"), expected: true},
		{name: "server error 503", err: errors.New("503 Service Unavailable"), expected: true},
		{name: "client error 400", err: errors.New("400 Bad Request"), expected: false},
		{name: "not found error", err: errors.New("404 not found"), expected: false},
		{name: "generic error", err: errors.New("something went wrong"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func TestSpotifySource_Resolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/tracks/abc":
			assert.Equal(t, "JP", r.URL.Query().Get("market"))
			fmt.Fprint(w, `{
				"id": "abc",
				"name": "Song A",
				"duration_ms": 125000,
				"artists": [{"name": "Artist One"}, {"name": "Artist Two"}],
				"album": {"name": "Album"}
			}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error": {"status": 404, "message": "non existing id"}}`)
		}
	}))
	defer server.Close()

	newSource := func(search *fakeSource) *SpotifySource {
		client := spotify.New(server.Client(), spotify.WithBaseURL(server.URL+"/"))
		s := newSpotifySource(client, search, "JP")
		s.retryDelay = time.Millisecond
		return s
	}

	t.Run("metadata from spotify, stream from search", func(t *testing.T) {
		search := &fakeSource{name: "ytdlp", result: track.Track{Title: "yt title", StreamURL: "https://cdn/a"}}
		s := newSource(search)

		got, err := s.Resolve(context.Background(), "https://open.spotify.com/track/abc?si=x")
		require.NoError(t, err)

		assert.Equal(t, []string{"Artist One, Artist Two - Song A"}, search.queries)
		assert.Equal(t, track.Track{
			ID:        "abc",
			Title:     "Song A",
			Uploader:  "Artist One, Artist Two",
			Duration:  125 * time.Second,
			URL:       "https://open.spotify.com/track/abc",
			StreamURL: "https://cdn/a",
			Source:    track.SourceSpotify,
		}, got)
	})

	t.Run("unknown track", func(t *testing.T) {
		search := &fakeSource{name: "ytdlp"}
		s := newSource(search)

		_, err := s.Resolve(context.Background(), "spotify:track:missing")
		assert.Error(t, err)
		assert.Equal(t, 0, search.calls)
	})

	t.Run("search failure", func(t *testing.T) {
		search := &fakeSource{name: "ytdlp", err: errors.New("no results")}
		s := newSource(search)

		_, err := s.Resolve(context.Background(), "spotify:track:abc")
		assert.ErrorContains(t, err, "no audio found for Artist One, Artist Two - Song A")
	})
}

func TestNewSpotifySource_Settings(t *testing.T) {
	search := &fakeSource{name: "ytdlp"}

	_, err := NewSpotifySource(map[string]any{"client_id": "id"}, nil, search)
	assert.Error(t, err, "client_secret is required")

	_, err = NewSpotifySource(map[string]any{"client_id": "id", "client_secret": "s", "market": "JPN"}, nil, search)
	assert.Error(t, err, "market must be two letters")

	_, err = NewSpotifySource(map[string]any{"client_id": "id", "client_secret": "s"}, nil, nil)
	assert.Error(t, err, "search source is required")

	s, err := NewSpotifySource(map[string]any{"client_id": "id", "client_secret": "s"}, nil, search)
	require.NoError(t, err)
	assert.True(t, s.Match("spotify:track:abc"))
	assert.False(t, s.Match("https://youtu.be/abc"))
}
