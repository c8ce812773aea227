package compiler

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/keymagic/keymagic/internal/km2"
)

// CycleWarning reports rules that may keep rewriting each other.
//
// The engine reapplies text rules after a match until the output is a stop
// output or the recursion limit is hit. A cycle is a warning, not an
// error: the limit ends it, but the result is rarely what the author meant.
type CycleWarning struct {
	Path    []string `json:"path"`    // ["rule 2", "rule 5", "rule 2"]
	Message string   `json:"message"` // human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeCycles builds the rewrite graph of l and reports each strongly
// connected component that forms a cycle.
//
// Only rules whose sides are plain text are analyzed: an edge a -> b means
// the output of a can complete the pattern of b during recursion. Rules
// with key combinations never fire during recursion and are skipped.
func AnalyzeCycles(l *km2.Layout) []CycleWarning {
	if l == nil || len(l.Rules) == 0 {
		return []CycleWarning{}
	}

	graph := buildRewriteGraph(l)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// rewriteGraph maps a rule label to the rules its output may trigger.
type rewriteGraph map[string][]string

type textRule struct {
	label  string
	lhs    string
	output string
	states []uint16
	sets   []uint16
}

func ruleLabel(i int) string {
	return fmt.Sprintf("rule %03d", i+1)
}

func buildRewriteGraph(l *km2.Layout) rewriteGraph {
	var rules []textRule
	for i, r := range l.Rules {
		tr, ok := asTextRule(r, l.Strings)
		if !ok {
			continue
		}
		tr.label = ruleLabel(i)
		rules = append(rules, tr)
	}

	graph := make(rewriteGraph)
	for _, a := range rules {
		if graph[a.label] == nil {
			graph[a.label] = []string{}
		}
		if stopsRecursion(a.output) {
			continue
		}
		for _, b := range rules {
			if !statesReachable(b.states, a.sets) {
				continue
			}
			if strings.HasSuffix(a.output, b.lhs) || strings.HasSuffix(b.lhs, a.output) {
				graph[a.label] = append(graph[a.label], b.label)
			}
		}
	}
	return graph
}

// asTextRule extracts rules made of literal strings, whole variables and
// switch states.
func asTextRule(r km2.Rule, strs []string) (textRule, bool) {
	var tr textRule
	var lhs, out strings.Builder

	for i, e := range r.LHS {
		switch e.Op {
		case km2.OpString:
			lhs.WriteString(e.Text)
		case km2.OpVariable:
			if i+1 < len(r.LHS) && r.LHS[i+1].Op == km2.OpModifier {
				return tr, false
			}
			if int(e.Value) < 1 || int(e.Value) > len(strs) {
				return tr, false
			}
			lhs.WriteString(strs[e.Value-1])
		case km2.OpSwitch:
			tr.states = append(tr.states, e.Value)
		default:
			return tr, false
		}
	}

	for i, e := range r.RHS {
		switch e.Op {
		case km2.OpString:
			out.WriteString(e.Text)
		case km2.OpVariable:
			if i+1 < len(r.RHS) && r.RHS[i+1].Op == km2.OpModifier {
				return tr, false
			}
			if int(e.Value) < 1 || int(e.Value) > len(strs) {
				return tr, false
			}
			out.WriteString(strs[e.Value-1])
		case km2.OpSwitch:
			tr.sets = append(tr.sets, e.Value)
		default:
			return tr, false
		}
	}

	tr.lhs = lhs.String()
	tr.output = out.String()
	return tr, tr.lhs != ""
}

// statesReachable reports whether every state a rule needs is switched on
// by the rule before it. States are cleared on every match.
func statesReachable(needs, sets []uint16) bool {
	for _, s := range needs {
		if !slices.Contains(sets, s) {
			return false
		}
	}
	return true
}

// stopsRecursion mirrors the engine: empty output or one printable ASCII
// character.
func stopsRecursion(out string) bool {
	if out == "" {
		return true
	}
	r, n := utf8.DecodeRuneInString(out)
	return n == len(out) && r >= '!' && r <= '~'
}

func hasSelfLoop(node string, graph rewriteGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are stable.
func tarjanSCC(graph rewriteGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, graph rewriteGraph) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("rule rewrites its own output: %s → %s", id, id),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("rules may rewrite each other until the recursion limit: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph rewriteGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, n := range graph[current] {
			if members[n] && (!visited[n] || n == start) {
				next = n
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
