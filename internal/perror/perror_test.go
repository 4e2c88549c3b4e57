package perror

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorIncludesTypeOpAndMessage(t *testing.T) {
	err := New(Malformed, "parse", "request line has fewer than 3 tokens")
	s := err.Error()

	for _, want := range []string{string(Malformed), "parse", "request line has fewer than 3 tokens"} {
		if !strings.Contains(s, want) {
			t.Errorf("Error() = %q, missing %q", s, want)
		}
	}
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(Connect, "tunnel-dial", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q, missing cause text", err.Error())
	}
}

func TestWithHostAddsHostToMessage(t *testing.T) {
	err := Wrap(Connect, "tunnel-dial", errors.New("timeout")).WithHost("example.com")
	if !strings.Contains(err.Error(), "example.com") {
		t.Errorf("Error() = %q, missing host", err.Error())
	}
}

func TestIsMatchesOnType(t *testing.T) {
	a := New(Blacklisted, "dispatch", "blocked")
	b := New(Blacklisted, "other-op", "also blocked")
	c := New(DNS, "resolve", "no such host")

	if !errors.Is(a, b) {
		t.Error("expected two Blacklisted errors to match via errors.Is")
	}
	if errors.Is(a, c) {
		t.Error("expected a Blacklisted error not to match a DNS error")
	}
}
