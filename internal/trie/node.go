// Package trie implements the level-indexed topic trie: literal children,
// a single-level wildcard edge, a multi-level wildcard terminator, and the
// per-node subscription bookkeeping, matched against a publish topic in
// O(L) levels.
package trie

import "github.com/odin-mesh/routecore/internal/subscription"

// Node is one level of the trie. It exclusively owns literalChildren,
// singleLevelChild, and multiLevelTerminator: no node is ever shared
// between filters, so mutation stays local to the path being edited.
type Node struct {
	literalChildren     map[string]*Node
	singleLevelChild    *Node
	multiLevelTerminator *subscription.Record
	ownRecord           *subscription.Record
}

// newNode returns an empty node.
func newNode() *Node {
	return &Node{}
}

// literalChild returns the existing literal child for level, creating it
// if absent.
func (n *Node) literalChild(level string) *Node {
	if n.literalChildren == nil {
		n.literalChildren = make(map[string]*Node, 1)
	}
	child, ok := n.literalChildren[level]
	if !ok {
		child = newNode()
		n.literalChildren[level] = child
	}
	return child
}

// singleChild returns the "+" edge, creating it if absent.
func (n *Node) singleChild() *Node {
	if n.singleLevelChild == nil {
		n.singleLevelChild = newNode()
	}
	return n.singleLevelChild
}

// multiTerminator returns the "#" terminator record at this node, creating
// it if absent. A multi-level terminator is always a leaf: it is never
// given children of its own.
func (n *Node) multiTerminator() *subscription.Record {
	if n.multiLevelTerminator == nil {
		n.multiLevelTerminator = subscription.NewRecord()
	}
	return n.multiLevelTerminator
}

// own returns this node's own subscription record, creating it if absent.
func (n *Node) own() *subscription.Record {
	if n.ownRecord == nil {
		n.ownRecord = subscription.NewRecord()
	}
	return n.ownRecord
}

// isEmpty reports whether the node carries no subscriptions and no
// children — used to prune dead paths after a remove.
func (n *Node) isEmpty() bool {
	if n.ownRecord != nil && !n.ownRecord.IsEmpty() {
		return false
	}
	if n.multiLevelTerminator != nil && !n.multiLevelTerminator.IsEmpty() {
		return false
	}
	if n.singleLevelChild != nil {
		return false
	}
	return len(n.literalChildren) == 0
}

// clone returns a deep, structurally independent copy of the subtree
// rooted at n, with no aliased mutable state shared with the original.
func (n *Node) clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{}
	if n.ownRecord != nil {
		c.ownRecord = n.ownRecord.Clone()
	}
	if n.multiLevelTerminator != nil {
		c.multiLevelTerminator = n.multiLevelTerminator.Clone()
	}
	if n.singleLevelChild != nil {
		c.singleLevelChild = n.singleLevelChild.clone()
	}
	if len(n.literalChildren) > 0 {
		c.literalChildren = make(map[string]*Node, len(n.literalChildren))
		for k, v := range n.literalChildren {
			c.literalChildren[k] = v.clone()
		}
	}
	return c
}
