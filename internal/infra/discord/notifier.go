package discord

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
)

// MaxMessageLength is the longest message the gateway accepts.
const MaxMessageLength = 2000

// sender is the part of *discordgo.Session used to post messages.
type sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts plain text messages to text channels.
type Notifier struct {
	sender sender
}

// NewNotifier creates a Notifier posting through session.
func NewNotifier(session *discordgo.Session) *Notifier {
	return &Notifier{sender: session}
}

// Notify sends text to channelID, split into several messages when it is too long.
func (n *Notifier) Notify(ctx context.Context, channelID, text string) error {
	for _, part := range splitMessage(text, MaxMessageLength) {
		if _, err := n.sender.ChannelMessageSend(channelID, part, discordgo.WithContext(ctx)); err != nil {
			return errors.Wrapf(err, "failed to send message to channel %s", channelID)
		}
	}
	return nil
}

// splitMessage cuts text into parts of at most limit runes, preferring line breaks.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n > limit {
			flush()
		}
		for n > limit {
			runes := []rune(line)
			parts = append(parts, string(runes[:limit]))
			line = string(runes[limit:])
			n -= limit
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return parts
}
