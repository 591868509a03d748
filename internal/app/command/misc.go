package command

import (
	"context"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const maxDice = 100

// Misc returns the general purpose commands: add, roll, choose and joined.
func Misc(dir Directory) []Command {
	return []Command{
		New("add", "Adds two numbers together.", add),
		New("roll", "Rolls a dice in NdN format.", roll),
		New("choose", "Chooses between multiple choices.", choose),
		New("joined", "Says when a member joined.", joined(dir)),
	}
}

func add(ctx context.Context, inv *Invocation) error {
	args, err := inv.Arguments()
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return InputErrorf("Usage: add <left> <right>")
	}
	left, err1 := strconv.Atoi(args[0])
	right, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return InputErrorf("Both arguments must be whole numbers.")
	}
	return inv.Reply(ctx, strconv.Itoa(left+right))
}

func roll(ctx context.Context, inv *Invocation) error {
	args, err := inv.Arguments()
	if err != nil {
		return err
	}
	dice := "1d6"
	if len(args) > 0 {
		dice = args[0]
	}
	rolls, limit, ok := parseDice(dice)
	if !ok {
		return inv.Reply(ctx, "Format has to be in NdN!")
	}

	results := make([]string, rolls)
	for i := range results {
		results[i] = strconv.Itoa(rand.IntN(limit) + 1)
	}
	return inv.Reply(ctx, strings.Join(results, ", "))
}

// parseDice parses "NdN" with at least one roll and one face.
func parseDice(s string) (rolls, limit int, ok bool) {
	left, right, found := strings.Cut(strings.ToLower(s), "d")
	if !found {
		return 0, 0, false
	}
	rolls, err1 := strconv.Atoi(left)
	limit, err2 := strconv.Atoi(right)
	if err1 != nil || err2 != nil || rolls < 1 || limit < 1 || rolls > maxDice {
		return 0, 0, false
	}
	return rolls, limit, true
}

func choose(ctx context.Context, inv *Invocation) error {
	args, err := inv.Arguments()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return InputErrorf("Usage: choose <choice> <choice> ...")
	}
	return inv.Reply(ctx, args[rand.IntN(len(args))])
}

func joined(dir Directory) RunFunc {
	return func(ctx context.Context, inv *Invocation) error {
		if inv.GuildID == "" {
			return inv.Reply(ctx, GuildOnlyMessage)
		}
		if inv.Rest == "" {
			return InputErrorf("Usage: joined <member>")
		}
		member, err := dir.FindMember(inv.GuildID, inv.Rest)
		if err != nil {
			if errors.Is(err, ErrMemberNotFound) {
				return InputErrorf("Member %q not found.", inv.Rest)
			}
			return err
		}
		return inv.Replyf(ctx, "%s joined in %s", member.DisplayName, member.JoinedAt.UTC().Format(time.DateTime))
	}
}

// Copypasta returns one command per entry, each replying with its text.
func Copypasta(texts map[string]string) []Command {
	names := make([]string, 0, len(texts))
	for name := range texts {
		names = append(names, name)
	}
	sort.Strings(names)

	cmds := make([]Command, 0, len(names))
	for _, name := range names {
		text := texts[name]
		cmds = append(cmds, New(name, "Posts the "+name+" copypasta.", func(ctx context.Context, inv *Invocation) error {
			return inv.Reply(ctx, text)
		}))
	}
	return cmds
}

// Help lists the registry's commands with their descriptions.
func Help(registry *Registry, botDescription, prefix string) Command {
	return New("help", "Shows this message.", func(ctx context.Context, inv *Invocation) error {
		var b strings.Builder
		if botDescription != "" {
			b.WriteString(strings.TrimSpace(botDescription))
			b.WriteString("\n\n")
		}
		b.WriteString("```\n")
		for _, c := range registry.All() {
			b.WriteString(prefix)
			b.WriteString(c.Name())
			if d := c.Description(); d != "" {
				b.WriteString("  ")
				b.WriteString(d)
			}
			b.WriteString("\n")
		}
		b.WriteString("```")
		return inv.Reply(ctx, b.String())
	})
}
