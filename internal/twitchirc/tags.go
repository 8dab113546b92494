package twitchirc

import (
	"strings"

	"github.com/pkg/errors"
)

// MessageKey is the reserved tag holding the trailing text of a line.
const MessageKey = "message"

// Tags maps tag names to their raw, unescaped values.
type Tags map[string]string

// ParseLine splits a logged chat line of the form
// "k1=v1;k2=v2 :nick!nick@nick.tmi.twitch.tv PRIVMSG #chan :text" on the
// first " :" into its tags and trailing text. Later duplicates of a key win.
func ParseLine(line string) (Tags, error) {
	meta, text, ok := strings.Cut(line, " :")
	if !ok {
		return nil, ErrNoSeparator
	}
	meta = strings.TrimPrefix(meta, "@")

	tags := make(Tags)
	for _, kv := range strings.Split(meta, ";") {
		if kv == "" {
			continue
		}
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.Wrapf(ErrMalformedTag, "token %q has no '='", kv)
		}
		tags[key] = val
	}
	tags[MessageKey] = strings.TrimSpace(text)
	return tags, nil
}

// Lookup returns the value for key, failing when the tag is absent.
// A present but empty tag is returned as "".
func (t Tags) Lookup(key string) (string, error) {
	v, ok := t[key]
	if !ok {
		return "", errors.Wrapf(ErrMissingTag, "%q", key)
	}
	return v, nil
}

// Optional returns the value for key or "" when absent.
func (t Tags) Optional(key string) string {
	return t[key]
}

// Body returns the text after marker in the message tag.
func (t Tags) Body(marker string) (string, bool) {
	_, body, ok := strings.Cut(t[MessageKey], marker)
	return body, ok
}
