package subscription

import "math/rand/v2"

// Record is the subscriber bookkeeping attached to one trie node slot: a
// client->QoS map for ordinary subscriptions, plus any shared-subscription
// groups rooted at that node.
type Record struct {
	clients map[ClientID]QoS
	groups  map[string]*Group
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{}
}

// AddClient upserts (clientID, qos). A repeat subscription by the same
// client updates its QoS.
func (r *Record) AddClient(clientID ClientID, qos QoS) {
	if r.clients == nil {
		r.clients = make(map[ClientID]QoS, 1)
	}
	r.clients[clientID] = qos
}

// RemoveClient deletes clientID if present and reports whether an entry
// was actually removed.
func (r *Record) RemoveClient(clientID ClientID) bool {
	if r.clients == nil {
		return false
	}
	if _, ok := r.clients[clientID]; !ok {
		return false
	}
	delete(r.clients, clientID)
	return true
}

// AddShared upserts (clientID, qos) into the named shared group, creating
// the group if it doesn't already exist on this record.
func (r *Record) AddShared(clientID ClientID, qos QoS, group string) {
	if r.groups == nil {
		r.groups = make(map[string]*Group, 1)
	}
	g, ok := r.groups[group]
	if !ok {
		g = &Group{Name: group}
		r.groups[group] = g
	}
	g.Add(clientID, qos)
}

// RemoveShared removes clientID from the named group, if both exist, and
// reports whether an entry was actually removed.
func (r *Record) RemoveShared(clientID ClientID, group string) bool {
	if r.groups == nil {
		return false
	}
	g, ok := r.groups[group]
	if !ok {
		return false
	}
	return g.Remove(clientID)
}

// IsEmpty reports whether the record holds no direct clients and no
// shared groups — used by callers that prune dead trie nodes.
func (r *Record) IsEmpty() bool {
	return len(r.clients) == 0 && len(r.groups) == 0
}

// Collect appends every direct client subscriber, and for each shared
// group, exactly one subscriber chosen uniformly at random from the
// group's current clients. Empty groups contribute nothing.
func (r *Record) Collect(out []Subscriber) []Subscriber {
	for clientID, qos := range r.clients {
		out = append(out, Subscriber{ClientID: clientID, QoS: qos})
	}
	for _, g := range r.groups {
		n := g.Len()
		if n == 0 {
			continue
		}
		out = append(out, g.At(rand.IntN(n)))
	}
	return out
}

// Clone returns a deep, independently-mutable copy of the record.
func (r *Record) Clone() *Record {
	clone := &Record{}
	if len(r.clients) > 0 {
		clone.clients = make(map[ClientID]QoS, len(r.clients))
		for k, v := range r.clients {
			clone.clients[k] = v
		}
	}
	if len(r.groups) > 0 {
		clone.groups = make(map[string]*Group, len(r.groups))
		for k, g := range r.groups {
			clone.groups[k] = g.Clone()
		}
	}
	return clone
}
