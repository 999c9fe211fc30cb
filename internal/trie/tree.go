package trie

import (
	"github.com/odin-mesh/routecore/internal/subscription"
	"github.com/odin-mesh/routecore/internal/topic"
)

// Tree is a level-indexed trie over topic filters plus a running count of
// successful add_subscription calls minus successful remove_subscription
// calls, used only to pre-size Match's result buffer.
type Tree struct {
	root            *Node
	subscriberCount uint64
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{root: newNode()}
}

// SubscriberCount returns the current upper-bound subscriber count.
func (t *Tree) SubscriberCount() uint64 { return t.subscriberCount }

// Add attaches (clientID, qos) to filter, creating any missing path nodes.
// A repeat subscription by the same client under the same filter updates
// its QoS in place.
func (t *Tree) Add(filter topic.Filter, clientID subscription.ClientID, qos subscription.QoS) {
	node := t.root
	for i := 0; i < filter.Levels(); i++ {
		level := filter.Level(i)
		switch level {
		case "#":
			attach(node.multiTerminator(), filter, clientID, qos)
			t.subscriberCount++
			return
		case "+":
			node = node.singleChild()
		default:
			node = node.literalChild(level)
		}
	}
	attach(node.own(), filter, clientID, qos)
	t.subscriberCount++
}

func attach(rec *subscription.Record, filter topic.Filter, clientID subscription.ClientID, qos subscription.QoS) {
	if filter.IsShared() {
		rec.AddShared(clientID, qos, filter.SharedGroup())
		return
	}
	rec.AddClient(clientID, qos)
}

func detach(rec *subscription.Record, filter topic.Filter, clientID subscription.ClientID) bool {
	if rec == nil {
		return false
	}
	if filter.IsShared() {
		return rec.RemoveShared(clientID, filter.SharedGroup())
	}
	return rec.RemoveClient(clientID)
}

// Remove walks the same path Add would have taken. If any edge along the
// way doesn't exist it returns silently (idempotent). subscriber_count is
// decremented only when an entry was actually removed, so removing an
// absent subscription never lowers it. A repeat Add of the same (filter,
// client) still increments it, so the count is an upper bound on the
// number of subscribers, not an exact total. Empty intermediate nodes are
// pruned opportunistically.
func (t *Tree) Remove(filter topic.Filter, clientID subscription.ClientID) {
	if removeAt(t.root, filter, 0, clientID) {
		t.subscriberCount--
	}
}

func removeAt(node *Node, filter topic.Filter, i int, clientID subscription.ClientID) bool {
	if i == filter.Levels() {
		return detach(node.ownRecord, filter, clientID)
	}

	level := filter.Level(i)
	if level == "#" {
		if node.multiLevelTerminator == nil {
			return false
		}
		removed := detach(node.multiLevelTerminator, filter, clientID)
		if removed && node.multiLevelTerminator.IsEmpty() {
			node.multiLevelTerminator = nil
		}
		return removed
	}

	if level == "+" {
		child := node.singleLevelChild
		if child == nil {
			return false
		}
		removed := removeAt(child, filter, i+1, clientID)
		if removed && child.isEmpty() {
			node.singleLevelChild = nil
		}
		return removed
	}

	child := node.literalChildren[level]
	if child == nil {
		return false
	}
	removed := removeAt(child, filter, i+1, clientID)
	if removed && child.isEmpty() {
		delete(node.literalChildren, level)
	}
	return removed
}

// Match returns every subscriber whose filter matches topic name, advancing
// a breadth-wise frontier of candidate nodes one level at a time:
//   - a node's multi-level terminator, wherever reached, consumes the
//     remainder of the topic regardless of depth;
//   - "+" and any matching literal child both advance the frontier;
//   - after the last level, each surviving node's own record (an exact
//     length match) and multi-level terminator (matching zero trailing
//     levels) both contribute.
//
// Result order is unspecified.
func (t *Tree) Match(name topic.Name) []subscription.Subscriber {
	out := make([]subscription.Subscriber, 0, t.subscriberCount)
	frontier := []*Node{t.root}

	for i := 0; i < name.Levels(); i++ {
		level := name.Level(i)
		next := make([]*Node, 0, len(frontier))
		for _, n := range frontier {
			if n.multiLevelTerminator != nil {
				out = n.multiLevelTerminator.Collect(out)
			}
			if n.singleLevelChild != nil {
				next = append(next, n.singleLevelChild)
			}
			if n.literalChildren != nil {
				if c, ok := n.literalChildren[level]; ok {
					next = append(next, c)
				}
			}
		}
		frontier = next
	}

	for _, n := range frontier {
		if n.ownRecord != nil {
			out = n.ownRecord.Collect(out)
		}
		if n.multiLevelTerminator != nil {
			out = n.multiLevelTerminator.Collect(out)
		}
	}
	return out
}

// Clone returns a structurally independent, observationally equivalent
// duplicate of the tree: no aliased mutable state is shared with t.
func (t *Tree) Clone() *Tree {
	return &Tree{root: t.root.clone(), subscriberCount: t.subscriberCount}
}
