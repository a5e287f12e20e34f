package hsm

// Graph is a flat, serializable view of a compiled table, used for diagrams.
type Graph struct {
	Title string `json:"title"`
	// Initial is the resolved path machines start in.
	Initial string      `json:"initial"`
	Nodes   []GraphNode `json:"nodes"`
	Edges   []GraphEdge `json:"edges"`
}

// GraphNode is one state. The root is not listed; edges declared on it have an empty Source.
type GraphNode struct {
	Path      string   `json:"path"`
	Parent    string   `json:"parent,omitempty"`
	Composite bool     `json:"composite,omitempty"`
	Initial   string   `json:"initial,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// GraphEdge is one transition from one source.
type GraphEdge struct {
	Trigger string   `json:"trigger"`
	Source  string   `json:"source"`
	Dest    string   `json:"dest"`
	Kind    string   `json:"kind"`
	Guards  []string `json:"guards,omitempty"`
	Unless  []string `json:"unless,omitempty"`
}

// Graph exports the table.
func (t *Table[T]) Graph() Graph {
	g := Graph{Title: t.tree.Title(), Initial: t.Initial()}
	for id := 1; id < t.tree.Len(); id++ {
		n := GraphNode{
			Path:      t.tree.Path(id),
			Parent:    t.tree.Path(t.tree.Parent(id)),
			Composite: t.tree.IsComposite(id),
			Tags:      t.tree.nodes[id].tags,
		}
		if n.Composite && t.tree.nodes[id].initial != "" {
			n.Initial = t.tree.Path(t.tree.ResolveInitial(id))
		}
		g.Nodes = append(g.Nodes, n)
	}

	for _, e := range t.edges {
		guards := guardNames(e.guards)
		unless := guardNames(e.unless)
		for _, src := range e.sources {
			ge := GraphEdge{
				Trigger: e.trigger,
				Source:  t.tree.Path(src),
				Dest:    t.tree.Path(src),
				Kind:    e.kind.String(),
				Guards:  guards,
				Unless:  unless,
			}
			if e.kind == EdgeExternal {
				ge.Dest = t.tree.Path(e.dest)
			}
			g.Edges = append(g.Edges, ge)
		}
	}
	return g
}

func guardNames[T any](gs []Guard[T]) []string {
	if len(gs) == 0 {
		return nil
	}
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.Name
	}
	return out
}
