package engine

import (
	"github.com/wippyai/statemachine/ir"
)

// CallGraph maps each module function to the callees it names directly.
type CallGraph map[string][]string

// BuildCallGraph collects the direct calls of every function in m.
func BuildCallGraph(m *ir.Module) CallGraph {
	cg := make(CallGraph)
	for _, fn := range m.Funcs() {
		callees := []string{}
		ir.Inspect(fn.Body, func(n ir.Node) bool {
			if c, ok := n.(*ir.Call); ok {
				callees = appendUnique(callees, c.Callee)
			}
			return true
		})
		cg[fn.Name] = callees
	}
	return cg
}

// TransitiveCallers finds all functions that transitively call any of the targets.
// Targets are included in the result.
func (cg CallGraph) TransitiveCallers(targets map[string]bool) map[string]bool {
	result := make(map[string]bool, len(targets))
	for t := range targets {
		result[t] = true
	}

	// Fixed-point iteration: keep expanding until no changes
	changed := true
	for changed {
		changed = false
		for caller, callees := range cg {
			if result[caller] {
				continue
			}
			for _, callee := range callees {
				if result[callee] {
					result[caller] = true
					changed = true
					break
				}
			}
		}
	}
	return result
}

// SuspendingFuncs returns the module functions that may suspend: those
// declared suspendable, those with a call the predicate accepts, and their
// transitive callers.
func SuspendingFuncs(m *ir.Module, suspends func(*ir.Call) bool) map[string]bool {
	roots := map[string]bool{}
	for _, fn := range m.Funcs() {
		if fn.Suspend || ir.ContainsSuspendFunc(fn.Body, suspends) {
			roots[fn.Name] = true
		}
	}
	return BuildCallGraph(m).TransitiveCallers(roots)
}

func appendUnique(slice []string, val string) []string {
	for _, v := range slice {
		if v == val {
			return slice
		}
	}
	return append(slice, val)
}
