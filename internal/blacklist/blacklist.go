// Package blacklist implements the proxy's static host-substring filter.
// Grounded on original_source/proxy_server.c's is_blacklisted: linear scan,
// no synchronization, since the list is read-only after startup.
package blacklist

import "strings"

// List is an immutable, ordered set of host substrings.
type List struct {
	entries []string
}

// New returns a List containing entries, capped at 100 per spec.md §6.
func New(entries []string) *List {
	if len(entries) > 100 {
		entries = entries[:100]
	}
	out := make([]string, len(entries))
	copy(out, entries)
	return &List{entries: out}
}

// IsBlacklisted reports whether any entry is a substring of host. An
// empty host is never blacklisted.
func (l *List) IsBlacklisted(host string) bool {
	if host == "" {
		return false
	}
	for _, entry := range l.entries {
		if strings.Contains(host, entry) {
			return true
		}
	}
	return false
}

// Len returns the number of loaded blacklist entries.
func (l *List) Len() int {
	return len(l.entries)
}
