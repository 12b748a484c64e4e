// Package protocol defines the shared message types, error kinds, and the
// cursor-based delivery contract used by both the tracker's channel store and
// each peer's inbox.
package protocol

// PeerStatus tracks where a directory entry is in its lifecycle: registered
// but unclaimed, claimed by a login, or actively chatting under a username.
type PeerStatus string

// Peer lifecycle states, in the order they are normally reached.
const (
	StatusUnassigned PeerStatus = "unassigned"
	StatusAssigned   PeerStatus = "assigned"
	StatusActive     PeerStatus = "active"
)

// Message is a single immutable chat message. Seq is a per-store sequence
// number assigned on append; it establishes total order within one channel or
// one inbox and doubles as the polling cursor.
type Message struct {
	Seq      int64  `json:"seq"`
	SenderID string `json:"sender_id"`
	Body     string `json:"body"`
}

// PeerInfo describes a peer as known to the tracker directory.
type PeerInfo struct {
	ID       string     `json:"peer_id"`
	Username string     `json:"username,omitempty"`
	Address  string     `json:"address"`
	Status   PeerStatus `json:"status"`
}

// Connection is one entry in a peer's address book: a remote peer this agent
// has explicitly connected to.
type Connection struct {
	PeerID  string `json:"peer_id"`
	Address string `json:"address"`
}
