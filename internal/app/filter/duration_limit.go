package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"
)

// DurationLimitConfig represents the configuration for DurationLimitFilter.
type DurationLimitConfig struct {
	MaxMinutes    float64 `yaml:"max_minutes" mapstructure:"max_minutes" default:"15" validate:"gt=0"`
	RejectUnknown bool    `yaml:"reject_unknown" mapstructure:"reject_unknown"`
}

// DurationLimitFilter rejects tracks longer than the configured limit.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Rejects tracks longer than max_minutes (and, optionally, tracks of unknown length)"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{"duration_limit_exceeded"}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	zlog.Info().Msgf("duration limit filter config: %+v", config)
	return nil
}

func (f *DurationLimitFilter) Check(ctx context.Context, req Request) Result {
	// If config is not set, accept all tracks
	if f.config == nil {
		return Accept()
	}

	// Live streams and some extractors report no duration
	if !req.Track.HasDuration() {
		if f.config.RejectUnknown {
			return Reject("duration_limit_exceeded")
		}
		return Accept()
	}

	if req.Track.Duration.Minutes() > f.config.MaxMinutes {
		return Reject("duration_limit_exceeded")
	}
	return Accept()
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return NewDurationLimitFilter()
	})
}
