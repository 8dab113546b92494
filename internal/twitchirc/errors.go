package twitchirc

import "github.com/pkg/errors"

var (
	ErrNoSeparator    = errors.New("twitchirc: line has no \" :\" separator")
	ErrMalformedTag   = errors.New("twitchirc: malformed tag")
	ErrMissingTag     = errors.New("twitchirc: missing tag")
	ErrMalformedEmote = errors.New("twitchirc: malformed emotes tag")
	ErrEmoteSpan      = errors.New("twitchirc: emote span out of range")
	ErrMalformedBadge = errors.New("twitchirc: malformed badges tag")
)

// Reason maps a line failure onto a short label used in drop logs and
// metrics. Errors not produced by this package map to "other".
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSeparator):
		return "no_separator"
	case errors.Is(err, ErrMalformedTag):
		return "malformed_tag"
	case errors.Is(err, ErrMissingTag):
		return "missing_tag"
	case errors.Is(err, ErrMalformedEmote):
		return "malformed_emote"
	case errors.Is(err, ErrEmoteSpan):
		return "emote_span"
	case errors.Is(err, ErrMalformedBadge):
		return "malformed_badge"
	default:
		return "other"
	}
}
