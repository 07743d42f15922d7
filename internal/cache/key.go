package cache

import (
	"fmt"
	"net/url"
)

// Key identifies one cache slot: a resource kind plus either a single
// resource ID (detail queries) or a canonical parameter string (list
// queries). Two queries with identical kind and parameters share a slot;
// any differing parameter addresses a distinct slot.
type Key struct {
	Kind   string // Resource kind, e.g. "entity", "task", "stats"
	ID     string // Resource ID for detail queries, empty for lists
	Params string // Canonical query-string encoding of list parameters
}

// DetailKey returns the cache key for a single resource.
func DetailKey(kind, id string) Key {
	return Key{Kind: kind, ID: id}
}

// ListKey returns the cache key for a list query. Params are canonicalized
// via url.Values.Encode (sorted keys), so equal parameter sets always
// produce the same key.
func ListKey(kind string, params url.Values) Key {
	return Key{Kind: kind, Params: params.Encode()}
}

// IsList returns true for list-query keys.
func (k Key) IsList() bool {
	return k.ID == ""
}

// String renders the key for logs and error messages.
func (k Key) String() string {
	if k.IsList() {
		return fmt.Sprintf("%s?%s", k.Kind, k.Params)
	}
	return fmt.Sprintf("%s/%s", k.Kind, k.ID)
}
