package statemachine

import (
	"strings"

	"github.com/wippyai/statemachine/internal/engine"
)

// SuspendMatcher decides which callees suspend.
//
// Calls written as (await ...) always suspend. A matcher marks additional
// callees, typically host functions known to block.
type SuspendMatcher = engine.SuspendMatcher

// splitCallee splits "ns.name" into its namespace and name. A callee without
// a dot has an empty namespace.
func splitCallee(callee string) (string, string) {
	if i := strings.LastIndexByte(callee, '.'); i >= 0 {
		return callee[:i], callee[i+1:]
	}
	return "", callee
}

// ExactMatcher matches exact "ns.name" or just "name" patterns.
type ExactMatcher struct {
	patterns map[string]bool
}

// NewExactMatcher creates a matcher from a list of patterns.
// Patterns can be "name" (matches in any namespace) or "ns.name" (exact match).
func NewExactMatcher(patterns []string) *ExactMatcher {
	m := &ExactMatcher{patterns: make(map[string]bool)}
	for _, p := range patterns {
		m.patterns[p] = true
	}
	return m
}

// Match returns true if the callee matches any pattern.
func (m *ExactMatcher) Match(callee string) bool {
	if m.patterns[callee] {
		return true
	}
	_, name := splitCallee(callee)
	return m.patterns[name]
}

// WildcardMatcher matches callee patterns with wildcard support.
//
// Supports patterns like:
//   - "ns.name" - exact match
//   - "name" - matches any namespace with this function name
//   - "ns.*" - matches every callee in ns
//   - "read*" - matches callees whose name starts with read
//   - "*" - matches everything
type WildcardMatcher struct {
	exact    map[string]bool // exact "ns.name" matches
	names    map[string]bool // unqualified "name" matches
	nsWilds  map[string]bool // "ns.*" matches
	prefixes []string        // "prefix*" matches on the unqualified name
	matchAll bool            // "*" matches everything
}

// NewWildcardMatcher creates a matcher with wildcard support.
func NewWildcardMatcher(patterns []string) *WildcardMatcher {
	m := &WildcardMatcher{
		exact:   make(map[string]bool),
		names:   make(map[string]bool),
		nsWilds: make(map[string]bool),
	}
	for _, p := range patterns {
		switch {
		case p == "*":
			m.matchAll = true
		case strings.HasSuffix(p, ".*"):
			m.nsWilds[strings.TrimSuffix(p, ".*")] = true
		case strings.HasSuffix(p, "*"):
			m.prefixes = append(m.prefixes, strings.TrimSuffix(p, "*"))
		case strings.Contains(p, "."):
			m.exact[p] = true
		default:
			m.names[p] = true
		}
	}
	return m
}

// Match returns true if the callee matches any pattern.
func (m *WildcardMatcher) Match(callee string) bool {
	if m.matchAll || m.exact[callee] {
		return true
	}
	ns, name := splitCallee(callee)
	if ns != "" && m.nsWilds[ns] {
		return true
	}
	if m.names[name] {
		return true
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// CompositeMatcher combines multiple matchers.
type CompositeMatcher struct {
	matchers []SuspendMatcher
}

// NewCompositeMatcher creates a matcher that matches if any sub-matcher matches.
func NewCompositeMatcher(matchers ...SuspendMatcher) *CompositeMatcher {
	return &CompositeMatcher{matchers: matchers}
}

// Match returns true if any sub-matcher matches.
func (m *CompositeMatcher) Match(callee string) bool {
	for _, matcher := range m.matchers {
		if matcher != nil && matcher.Match(callee) {
			return true
		}
	}
	return false
}
