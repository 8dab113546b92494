// Package convert turns parsed chat-log tags into VOD archive comments.
package convert

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/you/gnasty-chatconv/internal/core"
	"github.com/you/gnasty-chatconv/internal/twitchirc"
)

const (
	DefaultChannel = "forsen"

	contentType = "video"
	contentID   = "00000000"
)

// created_at is written with a four-digit year.
var (
	minSentMs = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	maxSentMs = time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli() - 1
)

var (
	ErrChannelMarker = errors.New("convert: channel marker not found in message")
	ErrBadTimestamp  = errors.New("convert: tmi-sent-ts is not a usable timestamp")
)

// Transformer converts one line at a time for a single channel.
type Transformer struct {
	channel string
	marker  string
}

func NewTransformer(channel string) *Transformer {
	channel = strings.TrimPrefix(strings.TrimSpace(channel), "#")
	if channel == "" {
		channel = DefaultChannel
	}
	return &Transformer{channel: channel, marker: "#" + channel + " :"}
}

// Channel returns the channel name without the leading '#'.
func (t *Transformer) Channel() string { return t.channel }

// Transform builds a comment from tags. base is the timestamp of the first
// converted comment; the returned Baseline is base, or this comment's
// timestamp when base was unset. On error base is returned unchanged.
func (t *Transformer) Transform(tags twitchirc.Tags, base Baseline) (core.Comment, Baseline, error) {
	body, ok := tags.Body(t.marker)
	if !ok {
		return core.Comment{}, base, errors.Wrapf(ErrChannelMarker, "want %q", t.marker)
	}

	spans, err := twitchirc.ParseEmotes(tags.Optional("emotes"))
	if err != nil {
		return core.Comment{}, base, err
	}
	fragments, err := twitchirc.BuildFragments(body, spans)
	if err != nil {
		return core.Comment{}, base, err
	}
	badges, err := twitchirc.ParseBadges(tags.Optional("badges"))
	if err != nil {
		return core.Comment{}, base, err
	}

	var required [5]string
	for i, key := range []string{"id", "room-id", "display-name", "user-id", "tmi-sent-ts"} {
		if required[i], err = tags.Lookup(key); err != nil {
			return core.Comment{}, base, err
		}
	}
	id, roomID, displayName, userID := required[0], required[1], required[2], required[3]

	ms, err := sentMs(tags)
	if err != nil {
		return core.Comment{}, base, err
	}
	next := base.Observe(ms)
	created := FormatCreatedAt(ms)

	var color *string
	if c := tags.Optional("color"); c != "" {
		color = &c
	}

	return core.Comment{
		ID:                   id,
		CreatedAt:            created,
		ChannelID:            roomID,
		ContentType:          contentType,
		ContentID:            contentID,
		ContentOffsetSeconds: next.Offset(ms),
		Commenter: core.Commenter{
			DisplayName: displayName,
			ID:          userID,
			Name:        displayName,
			CreatedAt:   created,
			UpdatedAt:   created,
		},
		Message: core.Message{
			Body:       body,
			Fragments:  fragments,
			UserBadges: badges,
			UserColor:  color,
			Emoticons:  twitchirc.Emoticons(spans),
		},
	}, next, nil
}

func sentMs(tags twitchirc.Tags) (int64, error) {
	raw := tags.Optional("tmi-sent-ts")
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrBadTimestamp, "%q", raw)
	}
	if ms < minSentMs || ms > maxSentMs {
		return 0, errors.Wrapf(ErrBadTimestamp, "%d is outside years 1-9999", ms)
	}
	return ms, nil
}

// FormatCreatedAt renders a millisecond epoch as UTC ISO-8601 with a
// trailing Z. Whole seconds carry no fraction; anything else carries
// microsecond precision.
func FormatCreatedAt(ms int64) string {
	t := time.UnixMilli(ms).UTC()
	if ms%1000 == 0 {
		return t.Format("2006-01-02T15:04:05") + "Z"
	}
	return t.Format("2006-01-02T15:04:05.000000") + "Z"
}
