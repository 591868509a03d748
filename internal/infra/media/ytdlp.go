package media

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lrstanley/go-ytdlp"

	"github.com/osa030/shinonome/internal/domain/track"
)

// ytdlpPrintFormat is the tab separated template parsed by parseYtdlpLine.
const ytdlpPrintFormat = "%(url)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(id)s\t%(webpage_url)s"

// YtDlpSettings represents the ytdlp source settings.
type YtDlpSettings struct {
	Format       string `mapstructure:"format" default:"bestaudio/best"`
	SearchPrefix string `mapstructure:"search_prefix" default:"ytsearch1:" validate:"required"`
}

// ytdlpRunner runs yt-dlp with the given arguments and returns its stdout.
type ytdlpRunner func(ctx context.Context, args ...string) (string, error)

// YtDlpSource resolves any URL yt-dlp supports, and plain text via search.
type YtDlpSource struct {
	settings YtDlpSettings
	run      ytdlpRunner
}

// NewYtDlpSource creates a yt-dlp source. proxyStr is passed to yt-dlp as-is.
func NewYtDlpSource(settings map[string]any, proxyStr string) (*YtDlpSource, error) {
	var s YtDlpSettings
	if err := decodeSettings(settings, &s); err != nil {
		return nil, errors.Wrap(err, "invalid ytdlp settings")
	}

	return &YtDlpSource{
		settings: s,
		run: func(ctx context.Context, args ...string) (string, error) {
			cmd := ytdlp.New().
				Quiet().
				NoWarnings().
				IgnoreConfig().
				NoPlaylist().
				Format(s.Format).
				Print(ytdlpPrintFormat)
			if proxyStr != "" {
				cmd.Proxy(proxyStr)
			}
			res, err := cmd.Run(ctx, args...)
			if err != nil {
				return "", err
			}
			return res.Stdout, nil
		},
	}, nil
}

// Name returns the source name.
func (s *YtDlpSource) Name() string {
	return string(track.SourceYtDlp)
}

// Match accepts everything; yt-dlp is the fallback of last resort.
func (s *YtDlpSource) Match(query string) bool {
	return true
}

// Resolve resolves a URL directly, anything else through the search prefix.
func (s *YtDlpSource) Resolve(ctx context.Context, query string) (track.Track, error) {
	target := query
	if !isURL(query) {
		target = s.settings.SearchPrefix + query
	}

	out, err := s.run(ctx, "--skip-download", target)
	if err != nil {
		if ctx.Err() != nil {
			return track.Track{}, errors.Wrap(ctx.Err(), "yt-dlp")
		}
		return track.Track{}, errors.Wrap(err, "yt-dlp failed")
	}

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if t, ok := parseYtdlpLine(line); ok {
			return t, nil
		}
	}
	return track.Track{}, errors.Newf("no results for %q", query)
}

// parseYtdlpLine parses one line printed with ytdlpPrintFormat.
func parseYtdlpLine(line string) (track.Track, bool) {
	parts := strings.Split(strings.TrimSpace(line), "\t")
	if len(parts) < 6 || parts[0] == "" || parts[0] == "NA" {
		return track.Track{}, false
	}

	t := track.Track{
		StreamURL: parts[0],
		Title:     orNA(parts[1], "Unknown title"),
		Uploader:  orNA(parts[2], "Unknown uploader"),
		ID:        orNA(parts[4], ""),
		URL:       orNA(parts[5], ""),
		Source:    track.SourceYtDlp,
	}
	if secs, err := strconv.ParseFloat(parts[3], 64); err == nil && secs > 0 {
		t.Duration = time.Duration(secs * float64(time.Second))
	}
	return t, true
}

// orNA replaces yt-dlp's "NA" placeholder with fallback.
func orNA(s, fallback string) string {
	if s == "" || s == "NA" {
		return fallback
	}
	return s
}
