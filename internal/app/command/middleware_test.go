package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(c Command) Command {
			return Wrap(c, func(ctx context.Context, inv *Invocation) error {
				order = append(order, name)
				return c.Run(ctx, inv)
			})
		}
	}
	inner := New("x", "desc", func(ctx context.Context, inv *Invocation) error {
		order = append(order, "run")
		return nil
	})

	c := Apply(inner, mark("outer"), mark("inner"))
	require.NoError(t, c.Run(context.Background(), &Invocation{}))

	assert.Equal(t, []string{"outer", "inner", "run"}, order)
	assert.Equal(t, "x", c.Name())
	assert.Equal(t, "desc", c.Description())
}

func TestGuildOnly(t *testing.T) {
	ran := false
	c := Apply(New("x", "", func(ctx context.Context, inv *Invocation) error {
		ran = true
		return nil
	}), GuildOnly())

	r := &replies{}
	require.NoError(t, c.Run(context.Background(), &Invocation{Reply: r.reply}))
	assert.False(t, ran)
	assert.Equal(t, []string{GuildOnlyMessage}, r.all())

	require.NoError(t, c.Run(context.Background(), &Invocation{GuildID: "g", Reply: r.reply}))
	assert.True(t, ran)
}

func TestRateLimiter(t *testing.T) {
	runs := 0
	limiter := NewRateLimiter(0.001, 2, "Slow down, please.")
	c := Apply(New("x", "", func(ctx context.Context, inv *Invocation) error {
		runs++
		return nil
	}), limiter.Middleware())

	r := &replies{}
	alice := &Invocation{Author: Member{ID: "alice"}, Reply: r.reply}
	for range 5 {
		require.NoError(t, c.Run(context.Background(), alice))
	}
	assert.Equal(t, 2, runs, "burst allows two runs")
	assert.Equal(t, []string{"Slow down, please."}, r.all(), "user is told once")

	bob := &Invocation{Author: Member{ID: "bob"}, Reply: r.reply}
	require.NoError(t, c.Run(context.Background(), bob))
	assert.Equal(t, 3, runs, "buckets are per user")
}

func TestLogging_PassesThrough(t *testing.T) {
	c := Apply(New("x", "", func(ctx context.Context, inv *Invocation) error {
		return InputErrorf("nope")
	}), Logging())

	err := c.Run(context.Background(), &Invocation{})
	assert.EqualError(t, err, "nope")
}
