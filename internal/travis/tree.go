package travis

import "fmt"

// Node is a top-level entry of a parsed log: a *Block, or after regrouping a
// *Group or *Script composite.
type Node interface {
	NodeName() string
}

// Tree is an ordered, name-indexed sequence of nodes. Insertion order is the
// document order of the log.
type Tree struct {
	nodes []Node
	index map[string]int
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{index: make(map[string]int)}
}

// Len is the number of top-level nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Nodes returns the nodes in document order.
func (t *Tree) Nodes() []Node {
	out := make([]Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// Names returns the node names in document order.
func (t *Tree) Names() []string {
	out := make([]string, len(t.nodes))
	for i, n := range t.nodes {
		out[i] = n.NodeName()
	}
	return out
}

// Blocks returns the top-level nodes that are plain blocks.
func (t *Tree) Blocks() []*Block {
	var out []*Block
	for _, n := range t.nodes {
		if b, ok := n.(*Block); ok {
			out = append(out, b)
		}
	}
	return out
}

// At returns the node at position i. Negative positions count from the end.
func (t *Tree) At(i int) (Node, bool) {
	if i < 0 {
		i += len(t.nodes)
	}
	if i < 0 || i >= len(t.nodes) {
		return nil, false
	}
	return t.nodes[i], true
}

// Last returns the most recently appended node, or nil when empty.
func (t *Tree) Last() Node {
	if len(t.nodes) == 0 {
		return nil
	}
	return t.nodes[len(t.nodes)-1]
}

// Get looks a node up by name. A numbered name such as "git.2" resolves to
// the block holding its group.
func (t *Tree) Get(name string) (Node, bool) {
	if i, ok := t.index[name]; ok {
		return t.nodes[i], true
	}
	n, err := ParseName(name)
	if err != nil || !n.Numbered() {
		return nil, false
	}
	if i, ok := t.index[n.Key()]; ok {
		return t.nodes[i], true
	}
	return nil, false
}

// Has reports whether a node is registered under name.
func (t *Tree) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

// Block returns the named node when it is a plain block.
func (t *Tree) Block(name string) (*Block, bool) {
	n, ok := t.Get(name)
	if !ok {
		return nil, false
	}
	b, ok := n.(*Block)
	return b, ok
}

// Index returns the position of the named node, or -1.
func (t *Tree) Index(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Append adds a node at the end. Names are unique within a tree.
func (t *Tree) Append(n Node) error {
	name := n.NodeName()
	if _, ok := t.index[name]; ok {
		return fmt.Errorf("%s already present", name)
	}
	t.index[name] = len(t.nodes)
	t.nodes = append(t.nodes, n)
	return nil
}

// insert places n at position i.
func (t *Tree) insert(i int, n Node) error {
	if _, ok := t.index[n.NodeName()]; ok {
		return fmt.Errorf("%s already present", n.NodeName())
	}
	t.nodes = append(t.nodes, nil)
	copy(t.nodes[i+1:], t.nodes[i:])
	t.nodes[i] = n
	t.reindex()
	return nil
}

// remove deletes the node at position i.
func (t *Tree) remove(i int) {
	t.nodes = append(t.nodes[:i], t.nodes[i+1:]...)
	t.reindex()
}

func (t *Tree) reindex() {
	t.index = make(map[string]int, len(t.nodes))
	for i, n := range t.nodes {
		t.index[n.NodeName()] = i
	}
}
