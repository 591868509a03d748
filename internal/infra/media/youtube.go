package media

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kkdai/youtube/v2"

	"github.com/osa030/shinonome/internal/domain/track"
)

var youtubeURLPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.|music\.|m\.)?(?:youtube\.com|youtu\.be)/\S+`)

// YouTubeSettings represents the youtube source settings.
type YouTubeSettings struct {
	TimeoutSec int `mapstructure:"timeout_sec" default:"15" validate:"gte=1"`
}

// videoClient is the subset of *youtube.Client used by YouTubeSource.
type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

// YouTubeSource resolves YouTube video URLs without spawning yt-dlp.
type YouTubeSource struct {
	client  videoClient
	timeout time.Duration
}

// NewYouTubeSource creates a YouTube source. httpClient carries the proxy configuration.
func NewYouTubeSource(settings map[string]any, httpClient *http.Client) (*YouTubeSource, error) {
	var s YouTubeSettings
	if err := decodeSettings(settings, &s); err != nil {
		return nil, errors.Wrap(err, "invalid youtube settings")
	}
	return &YouTubeSource{
		client:  &youtube.Client{HTTPClient: httpClient},
		timeout: time.Duration(s.TimeoutSec) * time.Second,
	}, nil
}

// Name returns the source name.
func (s *YouTubeSource) Name() string {
	return string(track.SourceYouTube)
}

// Match accepts single video URLs only.
func (s *YouTubeSource) Match(query string) bool {
	_, err := extractYouTubeID(query)
	return err == nil
}

// Resolve fetches video metadata and the best audio stream URL.
func (s *YouTubeSource) Resolve(ctx context.Context, query string) (track.Track, error) {
	id, err := extractYouTubeID(query)
	if err != nil {
		return track.Track{}, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	video, err := s.client.GetVideoContext(ctx, id)
	if err != nil {
		return track.Track{}, errors.Wrap(err, "youtube: failed to get video")
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return track.Track{}, errors.New("youtube: no audio formats found for video")
	}
	best := bestAudioFormat(formats)

	link, err := s.client.GetStreamURLContext(ctx, video, &best)
	if err != nil {
		return track.Track{}, errors.Wrap(err, "youtube: failed to get stream URL")
	}

	return track.Track{
		ID:        video.ID,
		Title:     video.Title,
		Uploader:  video.Author,
		Duration:  video.Duration,
		URL:       "https://www.youtube.com/watch?v=" + video.ID,
		StreamURL: link,
		Source:    track.SourceYouTube,
	}, nil
}

// bestAudioFormat prefers audio-only formats, then the highest bitrate.
func bestAudioFormat(formats youtube.FormatList) youtube.Format {
	sorted := make(youtube.FormatList, len(formats))
	copy(sorted, formats)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai := strings.HasPrefix(sorted[i].MimeType, "audio/")
		aj := strings.HasPrefix(sorted[j].MimeType, "audio/")
		if ai != aj {
			return ai
		}
		return sorted[i].Bitrate > sorted[j].Bitrate
	})
	return sorted[0]
}

// extractYouTubeID returns the video ID of a watch, short or youtu.be URL.
func extractYouTubeID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !youtubeURLPattern.MatchString(raw) {
		return "", errors.New("not a YouTube URL")
	}
	if !isURL(raw) {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "invalid YouTube URL")
	}

	var id string
	switch host := strings.TrimPrefix(u.Hostname(), "www."); host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	default:
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		}
	}

	id = strings.Trim(id, "/")
	if id == "" || strings.Contains(id, "/") {
		return "", errors.Newf("unsupported YouTube URL format: %s", raw)
	}
	return id, nil
}
