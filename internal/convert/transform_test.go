package convert

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/gnasty-chatconv/internal/core"
	"github.com/you/gnasty-chatconv/internal/twitchirc"
)

func line(ts int64, extra, text string) string {
	return fmt.Sprintf("badge-info=;%scolor=;display-name=Viewer;id=msg-%d;room-id=22484632;tmi-sent-ts=%d;user-id=4242"+
		" :viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #forsen :%s", extra, ts, ts, text)
}

func TestLineBuildsComment(t *testing.T) {
	tr := NewTransformer("")
	raw := "badges=subscriber/12,premium/1;color=#FF4500;display-name=Viewer;emotes=25:0-4,6-10;id=abc;" +
		"room-id=22484632;tmi-sent-ts=1690000000000;user-id=4242 :viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #forsen :Kappa Kappa\n"

	res, base := tr.Line(1, raw, Baseline{})
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	require.True(t, base.IsSet())
	assert.Equal(t, int64(1690000000000), res.SentMs)

	color := "#FF4500"
	want := core.Comment{
		ID:                   "abc",
		CreatedAt:            "2023-07-22T04:26:40Z",
		ChannelID:            "22484632",
		ContentType:          "video",
		ContentID:            "00000000",
		ContentOffsetSeconds: 0,
		Commenter: core.Commenter{
			DisplayName: "Viewer",
			ID:          "4242",
			Name:        "Viewer",
			CreatedAt:   "2023-07-22T04:26:40Z",
			UpdatedAt:   "2023-07-22T04:26:40Z",
		},
		Message: core.Message{
			Body: "Kappa Kappa",
			Fragments: []core.Fragment{
				{Text: "Kappa", Emoticon: &core.FragmentEmoticon{EmoticonID: "25"}},
				{Text: " "},
				{Text: "Kappa", Emoticon: &core.FragmentEmoticon{EmoticonID: "25"}},
			},
			UserBadges: []core.Badge{{ID: "subscriber", Version: "12"}, {ID: "premium", Version: "1"}},
			UserColor:  &color,
			Emoticons:  []core.Emoticon{{ID: "25", Begin: 0, End: 4}, {ID: "25", Begin: 6, End: 10}},
		},
	}
	assert.Equal(t, want, res.Comment)
}

func TestLineWithoutEmotesOrBadges(t *testing.T) {
	tr := NewTransformer("forsen")
	res, _ := tr.Line(1, line(1690000000000, "", "just chatting :)"), Baseline{})
	require.True(t, res.OK(), "unexpected error: %v", res.Err)

	msg := res.Comment.Message
	require.Len(t, msg.Fragments, 1)
	assert.Equal(t, "just chatting :)", msg.Fragments[0].Text)
	assert.Nil(t, msg.Fragments[0].Emoticon)
	assert.Equal(t, []core.Badge{}, msg.UserBadges)
	assert.Equal(t, []core.Emoticon{}, msg.Emoticons)
	assert.Nil(t, msg.UserColor)
}

func TestOffsets(t *testing.T) {
	tr := NewTransformer("forsen")
	base := Baseline{}

	first, base := tr.Line(1, line(1690000000000, "", "a"), base)
	require.True(t, first.OK())
	assert.Equal(t, int64(0), first.Comment.ContentOffsetSeconds)

	second, base := tr.Line(2, line(1690000005500, "", "b"), base)
	require.True(t, second.OK())
	assert.Equal(t, int64(5), second.Comment.ContentOffsetSeconds)
	assert.Equal(t, "2023-07-22T04:26:45.500000Z", second.Comment.CreatedAt)

	// older than the first comment: floored, not clamped or truncated toward zero
	older, _ := tr.Line(3, line(1689999999500, "", "c"), base)
	require.True(t, older.OK())
	assert.Equal(t, int64(-1), older.Comment.ContentOffsetSeconds)
}

func TestTimestampRangeEdges(t *testing.T) {
	tr := NewTransformer("forsen")

	last, _ := tr.Line(1, strings.Replace(line(1, "", "hi"), "tmi-sent-ts=1;", "tmi-sent-ts=253402300799999;", 1), Baseline{})
	require.True(t, last.OK(), "unexpected error: %v", last.Err)
	assert.Equal(t, "9999-12-31T23:59:59.999000Z", last.Comment.CreatedAt)

	first, _ := tr.Line(2, strings.Replace(line(1, "", "hi"), "tmi-sent-ts=1;", "tmi-sent-ts=-62135596800000;", 1), Baseline{})
	require.True(t, first.OK(), "unexpected error: %v", first.Err)
	assert.Equal(t, "0001-01-01T00:00:00Z", first.Comment.CreatedAt)
}

func TestBaselineSetByFirstSuccessfulLine(t *testing.T) {
	tr := NewTransformer("forsen")
	bad := strings.Replace(line(1690000000000, "", "x"), "room-id=22484632;", "", 1)

	res, base := tr.Line(1, bad, Baseline{})
	require.False(t, res.OK())
	assert.Equal(t, "missing_tag", res.Reason())
	assert.False(t, base.IsSet())

	res, base = tr.Line(2, line(1690000010000, "", "y"), base)
	require.True(t, res.OK())
	assert.Equal(t, int64(0), res.Comment.ContentOffsetSeconds)
	assert.Equal(t, int64(1690000010000), base.FirstMs())
}

func TestLineFailures(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{name: "no separator", raw: "id=1;room-id=2", reason: "no_separator"},
		{name: "bare tag token", raw: "id=1;oops :x PRIVMSG #forsen :hi", reason: "malformed_tag"},
		{name: "other channel", raw: strings.Replace(line(1, "", "hi"), "#forsen", "#xqc", 1), reason: "channel_marker"},
		{name: "missing id", raw: strings.Replace(line(1, "", "hi"), "id=msg-1;", "", 1), reason: "missing_tag"},
		{name: "missing user-id", raw: strings.Replace(line(1, "", "hi"), ";user-id=4242", "", 1), reason: "missing_tag"},
		{name: "missing display-name", raw: strings.Replace(line(1, "", "hi"), "display-name=Viewer;", "", 1), reason: "missing_tag"},
		{name: "missing timestamp", raw: strings.Replace(line(1, "", "hi"), "tmi-sent-ts=1;", "", 1), reason: "missing_tag"},
		{name: "non numeric timestamp", raw: strings.Replace(line(1, "", "hi"), "tmi-sent-ts=1;", "tmi-sent-ts=soon;", 1), reason: "bad_timestamp"},
		{name: "timestamp past year 9999", raw: strings.Replace(line(1, "", "hi"), "tmi-sent-ts=1;", "tmi-sent-ts=253402300800000;", 1), reason: "bad_timestamp"},
		{name: "timestamp before year 1", raw: strings.Replace(line(1, "", "hi"), "tmi-sent-ts=1;", "tmi-sent-ts=-62135596800001;", 1), reason: "bad_timestamp"},
		{name: "bad badge", raw: line(1, "badges=vip;", "hi"), reason: "malformed_badge"},
		{name: "bad emote", raw: line(1, "emotes=25;", "hi"), reason: "malformed_emote"},
		{name: "emote past body", raw: line(1, "emotes=25:0-9;", "hi"), reason: "emote_span"},
	}

	tr := NewTransformer("forsen")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, base := tr.Line(7, tt.raw, Baseline{})
			require.False(t, res.OK())
			assert.Equal(t, tt.reason, res.Reason())
			assert.Equal(t, 7, res.LineNo)
			assert.Equal(t, tt.raw, res.Raw)
			assert.False(t, base.IsSet())
		})
	}
}

func TestTransformerChannel(t *testing.T) {
	tr := NewTransformer("#xqc")
	assert.Equal(t, "xqc", tr.Channel())

	tags, err := twitchirc.ParseLine(strings.Replace(line(1690000000000, "", "hi"), "#forsen", "#xqc", 1))
	require.NoError(t, err)
	c, _, err := tr.Transform(tags, Baseline{})
	require.NoError(t, err)
	assert.Equal(t, "hi", c.Message.Body)

	assert.Equal(t, DefaultChannel, NewTransformer("  ").Channel())
}

func TestFormatCreatedAt(t *testing.T) {
	assert.Equal(t, "1970-01-01T00:00:00Z", FormatCreatedAt(0))
	assert.Equal(t, "2023-07-22T04:26:40.001000Z", FormatCreatedAt(1690000000001))
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, int64(5), floorDiv(5500, 1000))
	assert.Equal(t, int64(-1), floorDiv(-500, 1000))
	assert.Equal(t, int64(-2), floorDiv(-2000, 1000))
	assert.Equal(t, int64(0), floorDiv(999, 1000))
}
