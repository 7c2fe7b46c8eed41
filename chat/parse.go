package chat

import "strings"

// ParseMessage parses one tagged PRIVMSG line of the form
// "<tags> PRIVMSG #<channel> :<text>" into a Message. It returns nil for
// anything that doesn't match that shape; such lines are protocol noise and
// are dropped, not errors.
//
// Tag values are taken verbatim, with no IRCv3 unescaping. The frontend
// depends on the literal wire values, so this must not be "improved".
// Channel is left empty; only the read loop knows which channel the
// connection is joined to.
func ParseMessage(line string) *Message {
	tags, rest, ok := strings.Cut(line, " PRIVMSG #")
	if !ok {
		return nil
	}
	_, body, ok := strings.Cut(rest, " :")
	if !ok {
		return nil
	}
	return &Message{
		ID:     tagValue(tags, "id", ""),
		User:   tagValue(tags, "display-name", "Unknown"),
		Color:  tagValue(tags, "color", ""),
		Body:   strings.TrimSpace(body),
		Badges: parseBadges(tagValue(tags, "badges", "")),
	}
}

// tagValue extracts one key from the ;-separated key=value tag prefix,
// returning def when the key is absent.
func tagValue(tags, key, def string) string {
	for _, entry := range strings.Split(tags, ";") {
		if k, v, ok := strings.Cut(entry, "="); ok && k == key {
			return v
		}
	}
	return def
}

// parseBadges splits the badges tag value into ordered (set, version) pairs.
// Entries that don't split into exactly two non-empty parts are skipped.
func parseBadges(raw string) []Badge {
	badges := make([]Badge, 0)
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(entry, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		badges = append(badges, Badge{Set: parts[0], Version: parts[1]})
	}
	return badges
}
