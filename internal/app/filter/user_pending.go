package filter

import (
	"context"
)

// UserPendingConfig represents the configuration for UserPendingFilter.
type UserPendingConfig struct {
	MaxPending int `yaml:"max_pending" mapstructure:"max_pending" default:"3" validate:"gte=1"`
}

// UserPendingFilter limits how many listed entries one requester may have in a room.
// An entry counts until its playback ends.
type UserPendingFilter struct {
	config *UserPendingConfig
}

func (f *UserPendingFilter) Name() string {
	return "user_pending_filter"
}

func (f *UserPendingFilter) Description() string {
	return "Checks how many of the requester's tracks are queued or playing"
}

func (f *UserPendingFilter) ReturnCodes() []string {
	return []string{"user_pending"}
}

func (f *UserPendingFilter) ValidateConfig(settings map[string]any) error {
	var config UserPendingConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	return nil
}

func (f *UserPendingFilter) Check(ctx context.Context, req Request) Result {
	if f.config == nil {
		return Accept()
	}

	pending := 0
	for _, p := range req.Pending {
		if p.Requester.ID == req.Requester.ID {
			pending++
		}
	}
	if pending >= f.config.MaxPending {
		return Reject("user_pending")
	}
	return Accept()
}

func init() {
	Register("user_pending_filter", func() Filter {
		return &UserPendingFilter{}
	})
}
