package statemachine

import "testing"

func TestExactMatcher(t *testing.T) {
	tests := []struct {
		name     string
		callee   string
		patterns []string
		want     bool
	}{
		{
			name:     "match by function name only",
			patterns: []string{"sleep"},
			callee:   "env.sleep",
			want:     true,
		},
		{
			name:     "match by ns.name",
			patterns: []string{"env.sleep"},
			callee:   "env.sleep",
			want:     true,
		},
		{
			name:     "no match different namespace",
			patterns: []string{"env.sleep"},
			callee:   "other.sleep",
			want:     false,
		},
		{
			name:     "no match different name",
			patterns: []string{"sleep"},
			callee:   "env.log",
			want:     false,
		},
		{
			name:     "unqualified callee",
			patterns: []string{"read", "write"},
			callee:   "write",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewExactMatcher(tt.patterns)
			if got := m.Match(tt.callee); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.callee, got, tt.want)
			}
		})
	}
}

func TestWildcardMatcher(t *testing.T) {
	tests := []struct {
		name     string
		callee   string
		patterns []string
		want     bool
	}{
		{"match all", "anything.at.all", []string{"*"}, true},
		{"namespace wildcard", "io.read", []string{"io.*"}, true},
		{"namespace wildcard other ns", "net.read", []string{"io.*"}, false},
		{"nested namespace", "a.b.c", []string{"a.b.*"}, true},
		{"exact", "io.read", []string{"io.read"}, true},
		{"name in any namespace", "net.read", []string{"read"}, true},
		{"name prefix", "io.readAll", []string{"read*"}, true},
		{"name prefix miss", "io.write", []string{"read*"}, false},
		{"empty", "f", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewWildcardMatcher(tt.patterns)
			if got := m.Match(tt.callee); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.callee, got, tt.want)
			}
		})
	}
}

func TestCompositeMatcher(t *testing.T) {
	m := NewCompositeMatcher(
		NewExactMatcher([]string{"sleep"}),
		nil,
		NewWildcardMatcher([]string{"io.*"}),
	)
	for callee, want := range map[string]bool{
		"sleep":   true,
		"io.read": true,
		"log":     false,
	} {
		if got := m.Match(callee); got != want {
			t.Errorf("Match(%q) = %v, want %v", callee, got, want)
		}
	}
}
