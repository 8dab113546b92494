package twitchirc

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"

	"github.com/you/gnasty-chatconv/internal/core"
)

// EmoteSpan is one occurrence of an emote. Start and End are inclusive
// offsets in UTF-16 code units, which is how Twitch reports positions.
type EmoteSpan struct {
	ID    string
	Start int
	End   int
}

// ParseEmotes decodes an emotes tag ("25:0-4,6-10/1902:12-16") into spans
// ordered by start offset. Spans sharing a start keep their tag order.
func ParseEmotes(raw string) ([]EmoteSpan, error) {
	if raw == "" {
		return nil, nil
	}
	var spans []EmoteSpan
	for _, group := range strings.Split(raw, "/") {
		if group == "" {
			continue
		}
		id, positions, ok := strings.Cut(group, ":")
		if !ok || id == "" || positions == "" {
			return nil, errors.Wrapf(ErrMalformedEmote, "group %q", group)
		}
		for _, pos := range strings.Split(positions, ",") {
			s, e, ok := strings.Cut(pos, "-")
			if !ok {
				return nil, errors.Wrapf(ErrMalformedEmote, "position %q in group %q", pos, group)
			}
			start, err := strconv.Atoi(s)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedEmote, "start %q: %v", s, err)
			}
			end, err := strconv.Atoi(e)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedEmote, "end %q: %v", e, err)
			}
			spans = append(spans, EmoteSpan{ID: id, Start: start, End: end})
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans, nil
}

// BuildFragments cuts body into plain-text and emote fragments. spans must be
// sorted by Start. A span that is reversed, runs past the body, overlaps the
// previous span, or splits a surrogate pair fails the whole message; the
// fragments of a successful call always concatenate back to body.
func BuildFragments(body string, spans []EmoteSpan) ([]core.Fragment, error) {
	if len(spans) == 0 {
		return []core.Fragment{{Text: body}}, nil
	}

	units := utf16.Encode([]rune(body))
	fragments := make([]core.Fragment, 0, len(spans)*2+1)
	cursor := 0
	for _, sp := range spans {
		if sp.Start < 0 || sp.End < sp.Start || sp.End >= len(units) {
			return nil, errors.Wrapf(ErrEmoteSpan, "emote %s at %d-%d, body has %d units", sp.ID, sp.Start, sp.End, len(units))
		}
		if sp.Start < cursor {
			return nil, errors.Wrapf(ErrEmoteSpan, "emote %s at %d-%d overlaps previous span ending at %d", sp.ID, sp.Start, sp.End, cursor-1)
		}
		if splitsPair(units, sp.Start) || splitsPair(units, sp.End+1) {
			return nil, errors.Wrapf(ErrEmoteSpan, "emote %s at %d-%d splits a surrogate pair", sp.ID, sp.Start, sp.End)
		}
		if sp.Start > cursor {
			fragments = append(fragments, core.Fragment{Text: decode(units[cursor:sp.Start])})
		}
		fragments = append(fragments, core.Fragment{
			Text:     decode(units[sp.Start : sp.End+1]),
			Emoticon: &core.FragmentEmoticon{EmoticonID: sp.ID},
		})
		cursor = sp.End + 1
	}
	if cursor < len(units) {
		fragments = append(fragments, core.Fragment{Text: decode(units[cursor:])})
	}
	return fragments, nil
}

// Emoticons flattens spans into the message's emoticons list.
func Emoticons(spans []EmoteSpan) []core.Emoticon {
	out := make([]core.Emoticon, 0, len(spans))
	for _, sp := range spans {
		out = append(out, core.Emoticon{ID: sp.ID, Begin: sp.Start, End: sp.End})
	}
	return out
}

// splitsPair reports whether a cut before units[i] lands inside a surrogate pair.
func splitsPair(units []uint16, i int) bool {
	if i <= 0 || i >= len(units) {
		return false
	}
	return utf16.IsSurrogate(rune(units[i-1])) && units[i-1] < 0xDC00 && units[i] >= 0xDC00 && units[i] <= 0xDFFF
}

func decode(units []uint16) string {
	return string(utf16.Decode(units))
}
