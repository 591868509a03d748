package filter

import (
	"context"
)

// QueueLimitConfig represents the configuration for QueueLimitFilter.
type QueueLimitConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries" default:"50" validate:"gte=1"`
}

// QueueLimitFilter stops accepting requests once a room's queue is full.
type QueueLimitFilter struct {
	config *QueueLimitConfig
}

func (f *QueueLimitFilter) Name() string {
	return "queue_limit_filter"
}

func (f *QueueLimitFilter) Description() string {
	return "Stops accepting requests when the room already holds max_entries tracks"
}

func (f *QueueLimitFilter) ReturnCodes() []string {
	return []string{"queue_full"}
}

func (f *QueueLimitFilter) ValidateConfig(settings map[string]any) error {
	var config QueueLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	return nil
}

func (f *QueueLimitFilter) Check(ctx context.Context, req Request) Result {
	if f.config == nil {
		return Accept()
	}
	if len(req.Pending) >= f.config.MaxEntries {
		return Reject("queue_full")
	}
	return Accept()
}

func init() {
	Register("queue_limit_filter", func() Filter {
		return &QueueLimitFilter{}
	})
}
