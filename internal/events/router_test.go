package events

import (
	"reflect"
	"sort"
	"testing"
)

func TestResolve_DottedAndLegacyNamesRouteIdentically(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"dotted qr", SessionQR, []string{"session.qr", "qr"}},
		{"legacy qr", "qr", []string{"session.qr", "qr"}},
		{"dotted ready", SessionReady, []string{"session.ready", "ready"}},
		{"legacy ready", "ready", []string{"session.ready", "ready"}},
		{"auth failure maps to session.failed", "auth_failure", []string{"session.failed", "auth_failure"}},
		{"message sent has no legacy alias", MessageSent, []string{"message.sent"}},
		{"legacy call", "call", []string{"call.received", "call"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolve_UnknownNamePassesThrough(t *testing.T) {
	got := Resolve("presence.update")
	if !reflect.DeepEqual(got, []string{"presence.update"}) {
		t.Errorf("unknown name should pass through unchanged, got %v", got)
	}
}

func TestResolve_NoDuplicateTargets(t *testing.T) {
	for name := range routes {
		targets := Resolve(name)
		seen := make(map[string]bool)
		for _, tgt := range targets {
			if seen[tgt] {
				t.Errorf("Resolve(%q) returned duplicate target %q", name, tgt)
			}
			seen[tgt] = true
		}
	}
}

func TestIsCanonical(t *testing.T) {
	for _, name := range []string{SessionQR, "qr", SessionFailed, "auth_failure", MessageSent} {
		if !IsCanonical(name) {
			t.Errorf("IsCanonical(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"", "session", "SESSION.QR", "presence.update", WildcardStar} {
		if IsCanonical(name) {
			t.Errorf("IsCanonical(%q) = true, want false", name)
		}
	}
}

func TestIsWildcard(t *testing.T) {
	if !IsWildcard("*") || !IsWildcard("ALL") {
		t.Error("* and ALL should both be wildcards")
	}
	if IsWildcard("all") || IsWildcard("session.qr") {
		t.Error("lowercase all and event names are not wildcards")
	}
}

func TestAll_SortedAndComplete(t *testing.T) {
	all := All()

	if !sort.StringsAreSorted(all) {
		t.Error("All() should return a sorted slice")
	}

	// Every routing target must be present exactly once.
	seen := make(map[string]int)
	for _, name := range all {
		seen[name]++
	}
	for name, targets := range routes {
		for _, tgt := range targets {
			if seen[tgt] != 1 {
				t.Errorf("target %q of %q appears %d times in All()", tgt, name, seen[tgt])
			}
		}
	}
}
