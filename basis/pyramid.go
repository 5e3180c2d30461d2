// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package basis

// Pyramid owns a topologically-ordered slice of basis nodes: for any node
// at index i, its ParentIndex() is < i (§3). It is a plain arena — nodes
// hold their parent's index, never a back-pointer — so construction is
// append-only and teardown (simply letting the Pyramid go out of scope) is
// safe in any order (§9 "Pyramid as arena + index").
type Pyramid struct {
	nodes    []Node
	children [][]int // children[i] = indices of nodes whose ParentIndex() == i
}

// NewPyramid starts a new Pyramid with root as its sole, index-0 node.
// root's ParentIndex() must be -1.
func NewPyramid(root Node) *Pyramid {
	if root.ParentIndex() != -1 {
		panic("basis: pyramid root must have ParentIndex() == -1")
	}
	return &Pyramid{
		nodes:    []Node{root},
		children: [][]int{nil},
	}
}

// Append adds node to the pyramid. node.Index() must equal Len() before
// the call (i.e. the caller must have constructed it against the pyramid's
// next free index) and node.ParentIndex() must reference an already-added
// node.
func (p *Pyramid) Append(node Node) {
	idx := len(p.nodes)
	if node.Index() != idx {
		panic("basis: node constructed with stale index for this pyramid")
	}
	if node.ParentIndex() < 0 || node.ParentIndex() >= idx {
		panic("basis: node's parent must already be in the pyramid")
	}
	p.nodes = append(p.nodes, node)
	p.children = append(p.children, nil)
	p.children[node.ParentIndex()] = append(p.children[node.ParentIndex()], idx)
}

// ReplaceRoot swaps the root node (index 0) for a wrapper over it (used by
// seamass.New to install a GroupNode). The replacement must report the same
// Index/Grid as the node it replaces.
func (p *Pyramid) ReplaceRoot(root Node) {
	if root.Index() != 0 || root.ParentIndex() != -1 {
		panic("basis: replacement root must keep Index()==0, ParentIndex()==-1")
	}
	p.nodes[0] = root
}

// Root returns the index-0 node.
func (p *Pyramid) Root() Node { return p.nodes[0] }

// Len returns the number of nodes in the pyramid.
func (p *Pyramid) Len() int { return len(p.nodes) }

// At returns the node at index i.
func (p *Pyramid) At(i int) Node { return p.nodes[i] }

// Children returns the indices of i's direct children.
func (p *Pyramid) Children(i int) []int { return p.children[i] }

// Nodes returns the pyramid's nodes in topological (construction) order.
// The returned slice must not be mutated.
func (p *Pyramid) Nodes() []Node { return p.nodes }

// NonTransientIndices returns the indices of every node whose Transient()
// is false, i.e. every node the optimizer must maintain real coefficient
// state for (§3, §4.2).
func (p *Pyramid) NonTransientIndices() []int {
	var idx []int
	for i, n := range p.nodes {
		if !n.Transient() {
			idx = append(idx, i)
		}
	}
	return idx
}
