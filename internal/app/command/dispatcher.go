package command

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shinonome/internal/app/playback"
)

// User facing replies for connection errors.
const (
	MsgAlreadyConnected = "Already in a voice channel..."
	MsgNotVoiceChannel  = "This is not a voice channel..."
	MsgNotInVoice       = "You are not in a voice channel."
	MsgNotConnected     = "I am not connected to a voice channel."
	MsgRoomClosed       = "The player was just stopped, please try again."
	MsgInternalError    = "An error occurred while processing this request."
)

// Dispatcher routes chat messages to registered commands and turns errors into replies.
type Dispatcher struct {
	registry  *Registry
	prefix    string
	rejection func(code string) string
}

// NewDispatcher creates a dispatcher. rejection maps admission filter codes to messages and may be nil.
func NewDispatcher(registry *Registry, prefix string, rejection func(code string) string) *Dispatcher {
	return &Dispatcher{registry: registry, prefix: prefix, rejection: rejection}
}

// Dispatch runs the command addressed to the bot in content, if any.
// inv carries the message context; Name, Args and Rest are filled in here.
// It reports whether a command was run.
func (d *Dispatcher) Dispatch(ctx context.Context, content, botID string, inv Invocation) bool {
	body, ok := Trigger(content, d.prefix, botID)
	if !ok {
		return false
	}
	name, rest := Split(body)
	if name == "" {
		return false
	}
	cmd := d.registry.Get(name)
	if cmd == nil {
		zlog.Debug().Msgf("unknown command %q from user=%s", name, inv.Author.ID)
		return false
	}

	inv.Name = name
	inv.Args, inv.ArgsErr = Tokenize(rest)
	inv.Rest = rest

	if err := cmd.Run(ctx, &inv); err != nil {
		d.reply(ctx, &inv, d.ErrorMessage(err))
	}
	return true
}

// ErrorMessage translates a command error into the reply shown to the user.
func (d *Dispatcher) ErrorMessage(err error) string {
	var inputErr *UserInputError
	var resErr *playback.ResolutionError
	var rejErr *playback.RejectedError

	switch {
	case errors.As(err, &inputErr):
		return inputErr.Message
	case errors.As(err, &resErr):
		return fmt.Sprintf("An error occurred while processing this request: ```py\n%s\n```", resErr.Error())
	case errors.As(err, &rejErr):
		if d.rejection != nil {
			return d.rejection(rejErr.Code)
		}
		return "Request rejected: " + rejErr.Code
	case errors.Is(err, playback.ErrAlreadyConnected):
		return MsgAlreadyConnected
	case errors.Is(err, playback.ErrNotVoiceChannel):
		return MsgNotVoiceChannel
	case errors.Is(err, ErrNotInVoice):
		return MsgNotInVoice
	case errors.Is(err, playback.ErrNotConnected):
		return MsgNotConnected
	case errors.Is(err, playback.ErrRoomClosed):
		return MsgRoomClosed
	default:
		zlog.Error().Err(err).Msg("command failed")
		return MsgInternalError
	}
}

func (d *Dispatcher) reply(ctx context.Context, inv *Invocation, text string) {
	if err := inv.Reply(ctx, text); err != nil {
		zlog.Warn().Err(err).Msgf("failed to reply in channel %s", inv.ChannelID)
	}
}
