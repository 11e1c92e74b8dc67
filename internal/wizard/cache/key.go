package cache

import "strings"

// Key addresses one cache entry: the flow (or child flow) identity plus the
// caller's session identity. Keys are values; they are never inferred from
// ambient state.
type Key struct {
	Flow    string
	Session string
}

// NewKey builds a key for flow within session.
func NewKey(flow, session string) Key {
	return Key{Flow: flow, Session: session}
}

// Child derives the key of a sub-wizard nested under k. The child entry is
// independent of the parent's so an abandoned child never touches it.
func (k Key) Child(name string) Key {
	return Key{Flow: k.Flow + "/" + name, Session: k.Session}
}

// Valid reports whether both parts are present.
func (k Key) Valid() bool {
	return k.Flow != "" && k.Session != ""
}

func (k Key) String() string {
	return "wizard:" + strings.ReplaceAll(k.Flow, ":", "_") + ":" + k.Session
}
