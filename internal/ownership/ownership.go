// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package ownership tracks native resource lifetimes as a reference
// counted DAG. A node keeps each of its parents alive; its destroy action
// runs exactly once, when the last reference is released, and only then are
// the parents released in turn.
package ownership

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrReleased is returned by Check when a node has already been destroyed.
var ErrReleased = errors.New("ownership: resource already destroyed")

// Node is one resource in the ownership graph.
type Node struct {
	kind    string
	destroy func()
	parents []*Node

	refs       atomic.Int32
	dependents atomic.Int32
}

// New creates a node holding a single reference. Every non-nil parent is
// retained until the node is destroyed. Parents must be alive; use Check
// before performing the native creation the node stands for.
func New(kind string, destroy func(), parents ...*Node) *Node {
	n := &Node{
		kind:    kind,
		destroy: destroy,
	}
	for _, p := range parents {
		if p == nil {
			continue
		}
		p.Retain()
		p.dependents.Add(1)
		n.parents = append(n.parents, p)
	}
	n.refs.Store(1)
	return n
}

// Check returns ErrReleased if any non-nil node is no longer alive.
func Check(nodes ...*Node) error {
	for _, n := range nodes {
		if n != nil && !n.Alive() {
			return ErrReleased
		}
	}
	return nil
}

// Kind returns the resource kind the node was created with.
func (n *Node) Kind() string {
	return n.kind
}

// Alive reports whether the destroy action has not run yet.
func (n *Node) Alive() bool {
	return n.refs.Load() > 0
}

// Refs returns the number of outstanding references.
func (n *Node) Refs() int {
	return int(n.refs.Load())
}

// Dependents returns the number of live nodes that hold n as a parent.
func (n *Node) Dependents() int {
	return int(n.dependents.Load())
}

// Retain adds a reference. Retaining a destroyed node panics: a dead
// resource cannot be brought back.
func (n *Node) Retain() *Node {
	for {
		refs := n.refs.Load()
		if refs <= 0 {
			panic("ownership: retain of destroyed " + n.kind)
		}
		if n.refs.CompareAndSwap(refs, refs+1) {
			return n
		}
	}
}

// Release drops a reference and reports whether it was the last one.
// The destroy action runs before the parents are released.
func (n *Node) Release() bool {
	refs := n.refs.Add(-1)
	if refs > 0 {
		return false
	}
	if refs < 0 {
		panic("ownership: release of destroyed " + n.kind)
	}
	if n.destroy != nil {
		n.destroy()
	}
	for i := len(n.parents) - 1; i >= 0; i-- {
		p := n.parents[i]
		p.dependents.Add(-1)
		p.Release()
	}
	n.parents = nil
	return true
}

// Ref is a single owning reference to a node. Releasing a Ref more than
// once has no effect, which lets wrappers expose an idempotent Destroy.
type Ref struct {
	node     *Node
	released atomic.Bool
}

// NewRef adopts one reference already counted on n.
func NewRef(n *Node) *Ref {
	return &Ref{node: n}
}

// Node returns the referenced node.
func (r *Ref) Node() *Node {
	return r.node
}

// Clone returns a new reference to the same node.
func (r *Ref) Clone() *Ref {
	return NewRef(r.node.Retain())
}

// Released reports whether Release has been called.
func (r *Ref) Released() bool {
	return r.released.Load()
}

// Release drops the reference. The first call returns true; later calls do
// nothing and return false.
func (r *Ref) Release() bool {
	if !r.released.CompareAndSwap(false, true) {
		return false
	}
	r.node.Release()
	return true
}
