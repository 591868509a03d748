// Package command is the chat command core: a command has a name, a description and
// Run(ctx, invocation). Parsing, registration and error replies live here; how messages
// arrive and replies leave is up to the transport adapter.
package command

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
)

// Errors returned by a Directory.
var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrNotInVoice      = errors.New("user is not in a voice channel")
)

// Member is a guild member as seen by commands.
type Member struct {
	ID          string
	DisplayName string
	JoinedAt    time.Time
}

// Channel is a guild channel as seen by commands.
type Channel struct {
	ID   string
	Name string
}

// Directory looks up guild entities on the chat platform.
type Directory interface {
	// FindChannel resolves a channel by ID, mention or name.
	FindChannel(guildID, ref string) (Channel, error)
	// FindMember resolves a member by ID, mention or name.
	FindMember(guildID, ref string) (Member, error)
	// UserVoiceChannel returns the voice channel the user is connected to, or ErrNotInVoice.
	UserVoiceChannel(guildID, userID string) (string, error)
}

// Invocation carries one parsed command call.
type Invocation struct {
	GuildID   string // Empty for private messages
	ChannelID string
	Author    Member
	Name      string   // Command name as typed
	Args      []string // Tokenized arguments; nil when ArgsErr is set
	ArgsErr   error    // Tokenize failure, reported only by commands that read Args
	Rest      string   // Everything after the command name, verbatim
	Reply     func(ctx context.Context, text string) error
}

// Arguments returns the tokenized arguments, or a user error when they could not be parsed.
func (inv *Invocation) Arguments() ([]string, error) {
	if inv.ArgsErr != nil {
		return nil, &UserInputError{Message: "Unterminated quote in arguments."}
	}
	return inv.Args, nil
}

// Replyf sends a formatted reply to the invoking channel.
func (inv *Invocation) Replyf(ctx context.Context, format string, args ...any) error {
	return inv.Reply(ctx, fmt.Sprintf(format, args...))
}

// Command is the contract every chat command implements.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// RunFunc is the body of a command.
type RunFunc func(ctx context.Context, inv *Invocation) error

type funcCommand struct {
	name        string
	description string
	run         RunFunc
}

// New returns a command backed by run.
func New(name, description string, run RunFunc) Command {
	return &funcCommand{name: name, description: description, run: run}
}

func (c *funcCommand) Name() string        { return c.name }
func (c *funcCommand) Description() string { return c.description }
func (c *funcCommand) Run(ctx context.Context, inv *Invocation) error {
	return c.run(ctx, inv)
}

// UserInputError reports malformed arguments; its message is sent to the user verbatim.
type UserInputError struct {
	Message string
}

func (e *UserInputError) Error() string {
	return e.Message
}

// InputErrorf creates a UserInputError.
func InputErrorf(format string, args ...any) error {
	return &UserInputError{Message: fmt.Sprintf(format, args...)}
}

// Registry stores commands by name.
type Registry struct {
	commands map[string]Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds commands, wrapping each with mws. The first middleware is the outermost.
// Registering a name twice is an error.
func (r *Registry) Register(mws []Middleware, cmds ...Command) error {
	for _, c := range cmds {
		if _, exists := r.commands[c.Name()]; exists {
			return errors.Newf("command %q already registered", c.Name())
		}
		r.commands[c.Name()] = Apply(c, mws...)
	}
	return nil
}

// Get returns the command with the given name, or nil.
func (r *Registry) Get(name string) Command {
	return r.commands[name]
}

// All returns all registered commands, sorted by name.
func (r *Registry) All() []Command {
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}
