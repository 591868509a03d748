package command

import (
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// ErrUnterminatedQuote is returned by Tokenize for an unbalanced double quote.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Trigger extracts the text after the prefix or a leading mention of botID.
// ok is false when the message is not addressed to the bot.
func Trigger(content, prefix, botID string) (body string, ok bool) {
	content = strings.TrimSpace(content)
	if botID != "" {
		for _, mention := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
			if strings.HasPrefix(content, mention) {
				return strings.TrimSpace(content[len(mention):]), true
			}
		}
	}
	if prefix != "" && strings.HasPrefix(content, prefix) {
		return content[len(prefix):], true
	}
	return "", false
}

// Split separates the command name from the remaining text.
func Split(body string) (name, rest string) {
	body = strings.TrimLeftFunc(body, unicode.IsSpace)
	i := strings.IndexFunc(body, unicode.IsSpace)
	if i < 0 {
		return body, ""
	}
	return body[:i], strings.TrimSpace(body[i:])
}

// Tokenize splits s on whitespace; double quotes group words and backslash escapes a quote.
func Tokenize(s string) ([]string, error) {
	var (
		tokens  []string
		cur     strings.Builder
		inQuote bool
		inToken bool
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
			inToken = true
		case r == '"':
			inQuote = !inQuote
			inToken = true
		case unicode.IsSpace(r) && !inQuote:
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}

	if inQuote {
		return nil, ErrUnterminatedQuote
	}
	if escaped {
		cur.WriteRune('\\')
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}
