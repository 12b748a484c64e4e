// Package peer implements the chat node side of the system: the inbox of
// directly received messages, the agent that talks to the tracker and to
// other peers, the HTTP surface remote peers call, and a websocket notifier
// for the local UI.
package peer

import (
	"sync"

	"github.com/peerchat-io/peerchat/internal/protocol"
)

// Inbox stores the messages a peer has received directly from other peers,
// together with the address book of peers this node has explicitly connected
// to. The message log carries the same cursor contract as a channel log;
// the address book is guarded separately so remote receives and local
// connection queries never contend.
type Inbox struct {
	log *protocol.Log

	mu          sync.RWMutex
	connections map[string]protocol.Connection
	order       []string
}

// NewInbox creates an empty inbox with the given retention cap (zero means
// unbounded).
func NewInbox(retention int) *Inbox {
	return &Inbox{
		log:         protocol.NewLog(retention),
		connections: make(map[string]protocol.Connection),
	}
}

// Receive appends a directly addressed message and returns its sequence
// number. It always succeeds: any peer may message any peer whose address it
// knows.
func (i *Inbox) Receive(senderID, body string) int64 {
	return i.log.Append(senderID, body)
}

// ReadSince returns every received message with a sequence number strictly
// greater than since, plus the new cursor.
func (i *Inbox) ReadSince(since int64) ([]protocol.Message, int64) {
	return i.log.ReadSince(since)
}

// AddConnection records a remote peer this agent has chosen to talk to.
// Re-adding the same peer updates its address and is otherwise a no-op.
func (i *Inbox) AddConnection(peerID, address string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, exists := i.connections[peerID]; !exists {
		i.order = append(i.order, peerID)
	}
	i.connections[peerID] = protocol.Connection{PeerID: peerID, Address: address}
}

// ListConnections returns the address book in connection order.
func (i *Inbox) ListConnections() []protocol.Connection {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]protocol.Connection, 0, len(i.order))
	for _, id := range i.order {
		out = append(out, i.connections[id])
	}
	return out
}

// Lookup resolves a connected peer's address.
func (i *Inbox) Lookup(peerID string) (protocol.Connection, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	conn, ok := i.connections[peerID]
	return conn, ok
}
