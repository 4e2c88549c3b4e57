package blacklist

import "testing"

func TestIsBlacklisted(t *testing.T) {
	l := New([]string{"ads.", "tracker.evil.com"})

	cases := []struct {
		host string
		want bool
	}{
		{"ads.example.com", true},
		{"tracker.evil.com", true},
		{"sub.tracker.evil.com", true},
		{"example.com", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := l.IsBlacklisted(tc.host); got != tc.want {
			t.Errorf("IsBlacklisted(%q) = %v, want %v", tc.host, got, tc.want)
		}
	}
}

func TestNewCapsAt100Entries(t *testing.T) {
	entries := make([]string, 150)
	for i := range entries {
		entries[i] = "entry"
	}
	l := New(entries)
	if l.Len() != 100 {
		t.Errorf("Len() = %d, want 100", l.Len())
	}
}

func TestEmptyBlacklistBlocksNothing(t *testing.T) {
	l := New(nil)
	if l.IsBlacklisted("anything.com") {
		t.Error("empty blacklist should never match")
	}
}
