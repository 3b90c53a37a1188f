package engine

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/statemachine/ir"
	"github.com/wippyai/statemachine/text"
)

const chain = `(module m
  (func leaf (suspend) (return (await io)))
  (func mid (return (call leaf)))
  (func top (do (call mid)) (do (call mid)))
  (func pure (return (call helper 1)))
  (func helper (param x) (return x)))`

func parse(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := text.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return m
}

func keys(m map[string]bool) []string {
	var out []string
	for k, ok := range m {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func TestBuildCallGraph(t *testing.T) {
	cg := BuildCallGraph(parse(t, chain))
	want := CallGraph{
		"leaf":   {"io"},
		"mid":    {"leaf"},
		"top":    {"mid"},
		"pure":   {"helper"},
		"helper": {},
	}
	if diff := cmp.Diff(want, cg); diff != "" {
		t.Errorf("call graph (-want +got):\n%s", diff)
	}
}

func TestTransitiveCallers(t *testing.T) {
	cg := CallGraph{
		"a": {"b"},
		"b": {"c"},
		"c": {},
		"d": {"e"},
	}
	got := keys(cg.TransitiveCallers(map[string]bool{"c": true}))
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("callers (-want +got):\n%s", diff)
	}
}

func TestSuspendingFuncs(t *testing.T) {
	m := parse(t, chain)
	got := keys(SuspendingFuncs(m, func(c *ir.Call) bool { return c.Suspend }))
	if diff := cmp.Diff([]string{"leaf", "mid", "top"}, got); diff != "" {
		t.Errorf("suspending (-want +got):\n%s", diff)
	}

	got = keys(SuspendingFuncs(m, func(c *ir.Call) bool { return c.Suspend || c.Callee == "helper" }))
	if diff := cmp.Diff([]string{"leaf", "mid", "pure", "top"}, got); diff != "" {
		t.Errorf("with matcher (-want +got):\n%s", diff)
	}
}
