package filter

import (
	"context"
)

// BlockedUserConfig represents the configuration for BlockedUserFilter.
type BlockedUserConfig struct {
	UserIDs []string `yaml:"user_ids" mapstructure:"user_ids" validate:"dive,required"`
}

// BlockedUserFilter refuses requests from listed Discord users.
type BlockedUserFilter struct {
	blocked map[string]struct{}
}

func (f *BlockedUserFilter) Name() string {
	return "blocked_user_filter"
}

func (f *BlockedUserFilter) Description() string {
	return "Refuses requests from users listed in user_ids"
}

func (f *BlockedUserFilter) ReturnCodes() []string {
	return []string{"blocked_user"}
}

func (f *BlockedUserFilter) ValidateConfig(settings map[string]any) error {
	var config BlockedUserConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.blocked = make(map[string]struct{}, len(config.UserIDs))
	for _, id := range config.UserIDs {
		f.blocked[id] = struct{}{}
	}
	return nil
}

func (f *BlockedUserFilter) Check(ctx context.Context, req Request) Result {
	if _, ok := f.blocked[req.Requester.ID]; ok {
		return Reject("blocked_user")
	}
	return Accept()
}

func init() {
	Register("blocked_user_filter", func() Filter {
		return &BlockedUserFilter{}
	})
}
