package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/duzhibot/pkg/hsm"
)

// anyState stands in for the machine root when a transition is declared on it.
const anyState = "any__"

// Overlay contains session data to visualize on the graph.
type Overlay struct {
	Visited []string
	Current string
}

// reserved words cannot be used as bare state ids.
var reserved = map[string]bool{"end": true, "state": true, "note": true, "class": true, "classDef": true, "direction": true}

// Mermaid renders g as a stateDiagram-v2. Composite states nest their children and mark their
// initial child with [*]. Internal transitions are left out since they never change the state.
// Overlay paths that are not states of g are ignored.
func Mermaid(g hsm.Graph, overlay *Overlay) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "---\ntitle: %s\n---\nstateDiagram-v2\n", g.Title)

	known := make(map[string]bool, len(g.Nodes))
	children := make(map[string][]hsm.GraphNode)
	for _, n := range g.Nodes {
		known[n.Path] = true
		children[n.Parent] = append(children[n.Parent], n)
	}

	var write func(parent, initial string, depth int)
	write = func(parent, initial string, depth int) {
		pad := strings.Repeat("    ", depth)
		for _, c := range children[parent] {
			if initial != "" && (c.Path == initial || strings.HasPrefix(initial, c.Path+hsm.Separator)) {
				fmt.Fprintf(&sb, "%s[*] --> %s\n", pad, sanitizeID(c.Path))
				break
			}
		}
		for _, c := range children[parent] {
			id := sanitizeID(c.Path)
			if !c.Composite {
				fmt.Fprintf(&sb, "%s%s : %s\n", pad, id, name(c.Path))
				continue
			}
			fmt.Fprintf(&sb, "%sstate %s {\n", pad, id)
			write(c.Path, c.Initial, depth+1)
			fmt.Fprintf(&sb, "%s}\n", pad)
		}
	}
	write("", g.Initial, 1)

	var edges strings.Builder
	rooted := false
	for _, e := range g.Edges {
		if e.Kind == hsm.EdgeInternal.String() {
			continue
		}
		src, dst := sanitizeID(e.Source), sanitizeID(e.Dest)
		if e.Source == "" {
			src, rooted = anyState, true
		}
		if e.Dest == "" {
			dst = anyState
		}
		fmt.Fprintf(&edges, "    %s --> %s : %s\n", src, dst, label(e))
	}
	if rooted {
		fmt.Fprintf(&sb, "    %s : %s\n", anyState, hsm.Wildcard)
	}
	sb.WriteString(edges.String())

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000\n")

		seen := make(map[string]bool)
		for _, p := range overlay.Visited {
			if !known[p] || seen[p] || p == overlay.Current {
				continue
			}
			seen[p] = true
			fmt.Fprintf(&sb, "    class %s visited\n", sanitizeID(p))
		}
		if known[overlay.Current] {
			fmt.Fprintf(&sb, "    class %s current\n", sanitizeID(overlay.Current))
		}
	}
	return sb.String()
}

func label(e hsm.GraphEdge) string {
	var conds []string
	conds = append(conds, e.Guards...)
	for _, u := range e.Unless {
		conds = append(conds, "!"+u)
	}
	if len(conds) == 0 {
		return e.Trigger
	}
	return fmt.Sprintf("%s [%s]", e.Trigger, strings.Join(conds, ", "))
}

func name(path string) string {
	if i := strings.LastIndex(path, hsm.Separator); i >= 0 {
		return path[i+1:]
	}
	return path
}

func sanitizeID(id string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, id)
	if s == "" || reserved[s] || (s[0] >= '0' && s[0] <= '9') {
		s = "s_" + s
	}
	return s
}
