package twitchirc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLine = "badge-info=;badges=subscriber/12,premium/1;color=#1E90FF;display-name=User;emotes=25:0-4;" +
	"id=msg-1;room-id=22484632;tmi-sent-ts=1690000000000;user-id=42 :user!user@user.tmi.twitch.tv PRIVMSG #forsen :Kappa hi\r\n"

func TestParseLine(t *testing.T) {
	tags, err := ParseLine(sampleLine)
	require.NoError(t, err)

	assert.Equal(t, "subscriber/12,premium/1", tags["badges"])
	assert.Equal(t, "", tags["badge-info"])
	assert.Equal(t, "User", tags["display-name"])
	assert.Equal(t, "1690000000000", tags["tmi-sent-ts"])
	assert.Equal(t, "user!user@user.tmi.twitch.tv PRIVMSG #forsen :Kappa hi", tags[MessageKey])

	body, ok := tags.Body("#forsen :")
	require.True(t, ok)
	assert.Equal(t, "Kappa hi", body)
}

func TestParseLineEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
		check   func(t *testing.T, tags Tags)
	}{
		{
			name:    "no separator",
			line:    "id=1;room-id=2 PRIVMSG #forsen hi",
			wantErr: ErrNoSeparator,
		},
		{
			name:    "token without equals",
			line:    "id=1;bogus;room-id=2 :x PRIVMSG #forsen :hi",
			wantErr: ErrMalformedTag,
		},
		{
			name: "value containing equals is kept whole",
			line: "id=1;client-nonce=a=b :x PRIVMSG #forsen :hi",
			check: func(t *testing.T, tags Tags) {
				assert.Equal(t, "a=b", tags["client-nonce"])
			},
		},
		{
			name: "duplicate key last wins",
			line: "color=#FF0000;color=#00FF00 :x PRIVMSG #forsen :hi",
			check: func(t *testing.T, tags Tags) {
				assert.Equal(t, "#00FF00", tags["color"])
			},
		},
		{
			name: "leading at sign and trailing semicolon",
			line: "@id=1;room-id=2; :x PRIVMSG #forsen :hi",
			check: func(t *testing.T, tags Tags) {
				assert.Equal(t, "1", tags["id"])
				assert.Len(t, tags, 3)
			},
		},
		{
			name: "split happens at first separator only",
			line: "id=1 :x PRIVMSG #forsen :a :b",
			check: func(t *testing.T, tags Tags) {
				assert.Equal(t, "x PRIVMSG #forsen :a :b", tags[MessageKey])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, err := ParseLine(tt.line)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			tt.check(t, tags)
		})
	}
}

func TestTagsLookup(t *testing.T) {
	tags := Tags{"id": "", "room-id": "7"}

	v, err := tags.Lookup("id")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	_, err = tags.Lookup("user-id")
	require.Error(t, err)
	assert.Equal(t, "missing_tag", Reason(err))
	assert.Contains(t, err.Error(), "user-id")

	assert.Equal(t, "", tags.Optional("color"))
}

func TestTagsBodyMissingMarker(t *testing.T) {
	tags := Tags{MessageKey: "x PRIVMSG #xqc :hi"}
	_, ok := tags.Body("#forsen :")
	assert.False(t, ok)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "no_separator", Reason(ErrNoSeparator))
	assert.Equal(t, "malformed_badge", Reason(errors.Wrap(ErrMalformedBadge, "ctx")))
	assert.Equal(t, "other", Reason(errors.New("boom")))
}
