package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigger(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantBody string
		wantOK   bool
	}{
		{name: "prefix", content: "!play song", wantBody: "play song", wantOK: true},
		{name: "mention", content: "<@123> play song", wantBody: "play song", wantOK: true},
		{name: "nickname mention", content: "<@!123>   queue", wantBody: "queue", wantOK: true},
		{name: "leading whitespace", content: "  !skip", wantBody: "skip", wantOK: true},
		{name: "other user mentioned", content: "<@456> play", wantOK: false},
		{name: "plain text", content: "hello there", wantOK: false},
		{name: "empty", content: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ok := Trigger(tt.content, "!", "123")
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantBody, body)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		body     string
		wantName string
		wantRest string
	}{
		{body: "play never gonna give you up", wantName: "play", wantRest: "never gonna give you up"},
		{body: "queue", wantName: "queue", wantRest: ""},
		{body: "  join   Music Room  ", wantName: "join", wantRest: "Music Room"},
		{body: "", wantName: "", wantRest: ""},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			name, rest := Split(tt.body)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr error
	}{
		{name: "words", input: "a b  c", want: []string{"a", "b", "c"}},
		{name: "quoted group", input: `"ice cream" cake`, want: []string{"ice cream", "cake"}},
		{name: "escaped quote", input: `say \"hi\"`, want: []string{"say", `"hi"`}},
		{name: "empty quotes", input: `"" x`, want: []string{"", "x"}},
		{name: "trailing backslash", input: `a\`, want: []string{`a\`}},
		{name: "empty", input: "   ", want: nil},
		{name: "unterminated", input: `"oops`, wantErr: ErrUnterminatedQuote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
