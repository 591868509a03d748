package media

import (
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// SourceSpec is the configuration of one source.
type SourceSpec struct {
	Type     string
	Settings map[string]any
}

// Options configures NewResolverFromSpecs.
type Options struct {
	Proxy   string        // http, https, socks5 or socks4 URL; empty for direct
	Timeout time.Duration // per-query resolution deadline
}

// SourceTypes describes every supported source type.
var SourceTypes = map[string]string{
	"youtube": "YouTube video URLs, resolved natively",
	"ytdlp":   "Any site yt-dlp supports; plain text is searched on YouTube",
	"spotify": "Spotify track links, audio found through a yt-dlp search",
}

// NewResolverFromSpecs creates a resolver with sources in the configured order.
func NewResolverFromSpecs(specs []SourceSpec, opts Options) (*Resolver, error) {
	if len(specs) == 0 {
		return nil, errors.New("no media sources configured")
	}

	httpClient, err := NewHTTPClient(opts.Proxy, 15*time.Second)
	if err != nil {
		return nil, err
	}

	// Spotify needs a yt-dlp source for its search even when none is configured.
	var searcher *YtDlpSource
	ensureSearcher := func() (*YtDlpSource, error) {
		if searcher != nil {
			return searcher, nil
		}
		s, err := NewYtDlpSource(nil, opts.Proxy)
		if err != nil {
			return nil, err
		}
		searcher = s
		return s, nil
	}

	sources := make([]Source, 0, len(specs))
	for i, spec := range specs {
		var src Source
		var err error
		zlog.Debug().Msgf("creating media source: index=%d type=%s", i+1, spec.Type)
		switch spec.Type {
		case "youtube":
			src, err = NewYouTubeSource(spec.Settings, httpClient)

		case "ytdlp":
			var s *YtDlpSource
			s, err = NewYtDlpSource(spec.Settings, opts.Proxy)
			if err == nil && searcher == nil {
				searcher = s
			}
			src = s

		case "spotify":
			var s *YtDlpSource
			s, err = ensureSearcher()
			if err == nil {
				src, err = NewSpotifySource(spec.Settings, httpClient, s)
			}

		default:
			return nil, errors.Newf("unsupported source type: %s (source index %d)", spec.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create source (index %d, type %s)", i, spec.Type)
		}
		sources = append(sources, src)
		zlog.Info().Msgf("registered media source: index=%d type=%s", i+1, spec.Type)
	}

	return NewResolver(opts.Timeout, sources...), nil
}
