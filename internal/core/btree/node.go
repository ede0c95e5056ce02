package btree

import "github.com/google/uuid"

const noIndex int32 = -1

// Node is one immutable entry of a bound graph's arena. Nodes refer to each other by
// arena index; the parent index is a non-owning back-reference written once by the
// binder and only ever read for upward queries.
type Node struct {
	index    int32
	parent   int32
	children []int32

	id    uuid.UUID
	asset AssetID
	name  string
	kind  Kind
	abort AbortType

	leaf   Leaf
	guard  Condition
	policy ParallelPolicy

	times         uint64
	stopOnFailure bool
	cooldown      uint64

	// scope is the nearest enclosing Sequence or Selector, anchor the position of the
	// scope's child whose subtree holds this node. Both are noIndex without a scope.
	scope  int32
	anchor int32
}

func (n *Node) Index() int32         { return n.index }
func (n *Node) ID() uuid.UUID        { return n.id }
func (n *Node) Asset() AssetID       { return n.asset }
func (n *Node) Name() string         { return n.name }
func (n *Node) Kind() Kind           { return n.kind }
func (n *Node) AbortType() AbortType { return n.abort }

// Parent returns the parent's arena index, or -1 for the root.
func (n *Node) Parent() int32 { return n.parent }

// Children returns the children's arena indices. The slice must not be modified.
func (n *Node) Children() []int32 { return n.children }

func (n *Node) IsComposite() bool { return n.kind.Category() == CategoryComposite }
func (n *Node) IsDecorator() bool { return n.kind.Category() == CategoryDecorator }
func (n *Node) IsLeaf() bool      { return n.kind.Category() == CategoryLeaf }

// child returns a decorator's only child.
func (n *Node) child() int32 {
	if len(n.children) == 0 {
		return noIndex
	}
	return n.children[0]
}

// Graph is a bound, executable tree. It is read-only after Bind and may back any
// number of concurrently evaluated agents.
type Graph struct {
	nodes       []Node
	watchers    []int32
	decorators  int
	root        AssetID
	fingerprint uint64
}

// Len returns the arena size.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

// Root returns the root node, nil for an empty graph.
func (g *Graph) Root() *Node {
	if g.Len() == 0 {
		return nil
	}
	return &g.nodes[0]
}

// Node returns the node at arena index i.
func (g *Graph) Node(i int32) *Node {
	return &g.nodes[i]
}

// Find returns the first node with the given name in pre-order.
func (g *Graph) Find(name string) (*Node, bool) {
	for i := range g.nodes {
		if g.nodes[i].name == name {
			return &g.nodes[i], true
		}
	}
	return nil, false
}

// RootAsset is the asset the graph was bound from.
func (g *Graph) RootAsset() AssetID { return g.root }

// Fingerprint hashes the resolved definition closure. Equal fingerprints mean
// re-binding produced no change.
func (g *Graph) Fingerprint() uint64 { return g.fingerprint }

// Watchers returns the decorators carrying an abort type, in pre-order.
func (g *Graph) Watchers() []int32 { return g.watchers }

// Ancestors walks parent back-references from i up to the root.
func (g *Graph) Ancestors(i int32, visit func(n *Node) bool) {
	for p := g.nodes[i].parent; p != noIndex; p = g.nodes[p].parent {
		if !visit(&g.nodes[p]) {
			return
		}
	}
}
