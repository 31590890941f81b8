package proto

// UnknownTokenID is returned by TokenTable.Lookup for a name that has not
// been resolved, and is the sentinel value transmitted in its place on an
// outbound packet that still names it.
const UnknownTokenID = unknownToken

// TokenTable maps textual command names to the numeric, session-scoped ids
// the device assigns to them. It is populated once during initialization and
// is read-only thereafter within a session.
type TokenTable struct {
	ids map[string]uint32
}

// NewTokenTable returns an empty TokenTable.
func NewTokenTable() *TokenTable {
	return &TokenTable{ids: make(map[string]uint32)}
}

// Set records the numeric id assigned to name. Called by the dispatcher when
// a ReadToken response arrives — the response's leading-header token field
// *is* the assigned id.
func (t *TokenTable) Set(name string, id uint32) {
	t.ids[name] = id
}

// Lookup returns the numeric id for name, or UnknownTokenID if name has not
// been resolved.
func (t *TokenTable) Lookup(name string) uint32 {
	id, ok := t.ids[name]
	if !ok {
		return UnknownTokenID
	}
	return id
}

// Has reports whether name has been resolved.
func (t *TokenTable) Has(name string) bool {
	_, ok := t.ids[name]
	return ok
}
