// Package graph holds the resolved dependency tree.
//
// Nodes live in an arena owned by Tree and refer to each other by NodeID.
// A node owns its children; the parent reference is only used to walk the
// ancestor chain and never for ownership.
package graph

import (
	"fmt"
	"sync"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
)

type NodeID int

// NoParent is the parent of a root node.
const NoParent NodeID = -1

type State int

const (
	StatePending State = iota
	StateExpanding
	StateResolved
	StateCyclePruned
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateExpanding:
		return "Expanding"
	case StateResolved:
		return "Resolved"
	case StateCyclePruned:
		return "CyclePruned"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Node is one occurrence of an artifact in the tree.
type Node struct {
	ID       NodeID
	Metadata artifact.Metadata
	Parent   NodeID
	Children []NodeID
	State    State
	// Err is set when the node's own lookups failed. It does not stop the
	// rest of the tree from resolving.
	Err error
}

func (n *Node) IsRoot() bool {
	return n.Parent == NoParent
}

// Tree is an arena of nodes. Adding nodes is safe for concurrent use; a
// node's Children, State, Err and Metadata.Scope must only be written by the
// task expanding that node.
type Tree struct {
	mu    sync.RWMutex
	nodes []*Node
	roots []NodeID
}

func NewTree() *Tree {
	return &Tree{}
}

func (t *Tree) AddRoot(md artifact.Metadata) NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.addLocked(md, NoParent)
	t.roots = append(t.roots, id)
	return id
}

// AddChild creates a node for md and appends it to parent's children.
func (t *Tree) AddChild(parent NodeID, md artifact.Metadata) NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.addLocked(md, parent)
	p := t.nodes[parent]
	p.Children = append(p.Children, id)
	return id
}

func (t *Tree) addLocked(md artifact.Metadata, parent NodeID) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, &Node{
		ID:       id,
		Metadata: md,
		Parent:   parent,
		State:    StatePending,
	})
	return id
}

// Node returns the node with the given id. It panics on unknown ids.
func (t *Tree) Node(id NodeID) *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nodes[id]
}

func (t *Tree) Roots() []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]NodeID(nil), t.roots...)
}

func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Ancestors returns the chain from id's parent up to its root.
func (t *Tree) Ancestors(id NodeID) []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []NodeID
	for p := t.nodes[id].Parent; p != NoParent; p = t.nodes[p].Parent {
		out = append(out, p)
	}
	return out
}

// HasAncestor reports whether any ancestor of id has the given GA.
func (t *Tree) HasAncestor(id NodeID, ga artifact.GA) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for p := t.nodes[id].Parent; p != NoParent; p = t.nodes[p].Parent {
		if t.nodes[p].Metadata.GA() == ga {
			return true
		}
	}
	return false
}

// Walk visits nodes depth-first in child order, starting from each root.
// Returning false from fn skips the node's subtree.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		n := t.Node(id)
		if !fn(n, depth) {
			return
		}
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, r := range t.Roots() {
		visit(r, 0)
	}
}

// Find returns every node whose GA is ga, in walk order.
func (t *Tree) Find(ga artifact.GA) []*Node {
	var out []*Node
	t.Walk(func(n *Node, _ int) bool {
		if n.Metadata.GA() == ga {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Errors returns the nodes that carry an error, in walk order.
func (t *Tree) Errors() []*Node {
	var out []*Node
	t.Walk(func(n *Node, _ int) bool {
		if n.Err != nil {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Err aggregates the errors attached to nodes, or returns nil.
func (t *Tree) Err() error {
	var errs []error
	for _, n := range t.Errors() {
		errs = append(errs, fmt.Errorf("%s: %w", n.Metadata.Coordinates, n.Err))
	}
	return utilerrors.NewAggregate(errs)
}
