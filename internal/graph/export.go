package graph

import "github.com/bayleafwalker/artifact-resolver/internal/artifact"

// NodeView is a plain nested representation of a subtree, for printing and
// inspection.
type NodeView struct {
	Coordinates string         `json:"coordinates"`
	Scope       artifact.Scope `json:"scope,omitempty"`
	Optional    bool           `json:"optional,omitempty"`
	State       string         `json:"state"`
	Error       string         `json:"error,omitempty"`
	Children    []NodeView     `json:"children,omitempty"`
}

// View converts the tree into nested NodeViews, one per root.
func (t *Tree) View() []NodeView {
	var view func(id NodeID) NodeView
	view = func(id NodeID) NodeView {
		n := t.Node(id)
		v := NodeView{
			Coordinates: n.Metadata.Coordinates.String(),
			Scope:       n.Metadata.Scope,
			Optional:    n.Metadata.Optional,
			State:       n.State.String(),
		}
		if n.Err != nil {
			v.Error = n.Err.Error()
		}
		for _, c := range n.Children {
			v.Children = append(v.Children, view(c))
		}
		return v
	}

	roots := t.Roots()
	out := make([]NodeView, 0, len(roots))
	for _, r := range roots {
		out = append(out, view(r))
	}
	return out
}
