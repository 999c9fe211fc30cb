package subscription

// Group is a single shared-subscription group: a named, insertion-ordered
// pool of subscribers that load-balances one delivery per publish across
// its current members.
type Group struct {
	Name    string
	clients []Subscriber
}

// Add upserts (clientID, qos) into the group. A resubscribe by the same client updates its QoS in place rather than
// appending a second entry — the corrected add-path (see DESIGN.md) never
// lets the same client occupy two slots in one group.
func (g *Group) Add(clientID ClientID, qos QoS) {
	for i := range g.clients {
		if g.clients[i].ClientID == clientID {
			g.clients[i].QoS = qos
			return
		}
	}
	g.clients = append(g.clients, Subscriber{ClientID: clientID, QoS: qos})
}

// Remove deletes the first entry matching clientID, if any. It reports
// whether an entry was removed.
func (g *Group) Remove(clientID ClientID) bool {
	for i := range g.clients {
		if g.clients[i].ClientID == clientID {
			g.clients = append(g.clients[:i], g.clients[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of clients currently in the group.
func (g *Group) Len() int { return len(g.clients) }

// At returns the subscriber at position i. Callers must hold i < Len().
func (g *Group) At(i int) Subscriber { return g.clients[i] }

// Clone returns a deep, independently-mutable copy of the group.
func (g *Group) Clone() *Group {
	clone := &Group{Name: g.Name}
	if len(g.clients) > 0 {
		clone.clients = append([]Subscriber(nil), g.clients...)
	}
	return clone
}
