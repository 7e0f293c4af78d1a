package querycache

import "strings"

// Key identifies a cached query as ordered segments, e.g. {"posts", "42"}.
type Key []string

// K builds a Key from segments.
func K(segments ...string) Key {
	return Key(segments)
}

// String renders the key as slash-joined segments.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether k starts with every segment of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, seg := range prefix {
		if k[i] != seg {
			return false
		}
	}
	return true
}

func (k Key) id() string {
	return strings.Join(k, "\x1f")
}

func (k Key) clone() Key {
	return append(Key(nil), k...)
}
