package envelope

import (
	"github.com/odin-mesh/routecore/internal/subscription"
	"github.com/odin-mesh/routecore/internal/topic"
	"github.com/odin-mesh/routecore/internal/trie"
)

// operation is a closed, two-variant polymorphism (add | remove) applied to
// a plain trie.Tree — no dynamic dispatch beyond this single interface is
// needed anywhere in the envelope.
type operation interface {
	apply(t *trie.Tree)
}

type addOp struct {
	filter   topic.Filter
	clientID subscription.ClientID
	qos      subscription.QoS
}

func (o addOp) apply(t *trie.Tree) { t.Add(o.filter, o.clientID, o.qos) }

type removeOp struct {
	filter   topic.Filter
	clientID subscription.ClientID
}

func (o removeOp) apply(t *trie.Tree) { t.Remove(o.filter, o.clientID) }
