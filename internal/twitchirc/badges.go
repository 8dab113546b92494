package twitchirc

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/you/gnasty-chatconv/internal/core"
)

// ParseBadges decodes a badges tag ("subscriber/12,premium/1"). The result is
// never nil so an absent tag serializes as [].
func ParseBadges(raw string) ([]core.Badge, error) {
	badges := []core.Badge{}
	if raw == "" {
		return badges, nil
	}
	for _, tok := range strings.Split(raw, ",") {
		parts := strings.Split(tok, "/")
		if len(parts) < 2 {
			return nil, errors.Wrapf(ErrMalformedBadge, "token %q has no version", tok)
		}
		badges = append(badges, core.Badge{ID: parts[0], Version: parts[1]})
	}
	return badges, nil
}
