package command

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Middleware wraps a command (guild check, rate limit, logging).
type Middleware func(Command) Command

// Apply applies middlewares in order; the first in the list is the outermost.
func Apply(c Command, mws ...Middleware) Command {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

type wrapped struct {
	Command
	run RunFunc
}

func (w *wrapped) Run(ctx context.Context, inv *Invocation) error {
	return w.run(ctx, inv)
}

// Wrap returns a command that runs run instead of c.Run, keeping c's name and description.
func Wrap(c Command, run RunFunc) Command {
	return &wrapped{Command: c, run: run}
}

// GuildOnlyMessage is the reply to guild-only commands sent in private messages.
const GuildOnlyMessage = "This command cannot be used in private messages."

// GuildOnly rejects invocations outside a guild.
func GuildOnly() Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			if inv.GuildID == "" {
				return inv.Reply(ctx, GuildOnlyMessage)
			}
			return c.Run(ctx, inv)
		})
	}
}

// Logging logs every invocation and its duration.
func Logging() Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)
			ev := zlog.Debug()
			if err != nil {
				ev = zlog.Info().Err(err)
			}
			ev.Msgf("command %s: guild=%s user=%s took=%s", c.Name(), inv.GuildID, inv.Author.ID, time.Since(start))
			return err
		})
	}
}

// RateLimiter keeps one token bucket per user.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	limit    rate.Limit
	burst    int
	message  string
}

type userLimiter struct {
	limiter  *rate.Limiter
	notified bool // "slow down" already sent for the current burst
}

// NewRateLimiter creates a limiter allowing perSecond commands per user with the given burst.
func NewRateLimiter(perSecond float64, burst int, message string) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*userLimiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		message:  message,
	}
}

// allow reports whether userID may run a command now, and whether the user should be told otherwise.
func (l *RateLimiter) allow(userID string) (ok, notify bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ul, exists := l.limiters[userID]
	if !exists {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	if ul.limiter.Allow() {
		ul.notified = false
		return true, false
	}
	if ul.notified {
		return false, false
	}
	ul.notified = true
	return false, true
}

// Middleware returns the rate limiting middleware.
func (l *RateLimiter) Middleware() Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			ok, notify := l.allow(inv.Author.ID)
			if ok {
				return c.Run(ctx, inv)
			}
			zlog.Debug().Msgf("rate limited: user=%s command=%s", inv.Author.ID, c.Name())
			if notify {
				return inv.Reply(ctx, l.message)
			}
			return nil
		})
	}
}
