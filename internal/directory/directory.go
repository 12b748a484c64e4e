// Package directory implements the tracker's peer registry: the single
// source of truth for which peers exist, where they listen, and whether a
// login has claimed them.
package directory

import (
	"fmt"
	"sync"

	"github.com/peerchat-io/peerchat/internal/protocol"
)

// Directory holds every registered peer in registration order. It is a hot
// shared structure hit by every registration and every list-peers poll, so
// all access serializes through an RWMutex: reads take the shared lock,
// mutations take the exclusive lock.
//
// Peers are never deleted during the process lifetime; an entry whose process
// has exited simply goes stale until the tracker restarts.
type Directory struct {
	mu       sync.RWMutex
	peers    []*protocol.PeerInfo
	byID     map[string]*protocol.PeerInfo
	byAddr   map[string]*protocol.PeerInfo
	nextID   int64
	maxPeers int
}

// New creates an empty directory. maxPeers greater than zero caps the number
// of registrations; further registrations fail with ErrResourceExhausted.
// Zero means unbounded.
func New(maxPeers int) *Directory {
	return &Directory{
		byID:     make(map[string]*protocol.PeerInfo),
		byAddr:   make(map[string]*protocol.PeerInfo),
		maxPeers: maxPeers,
	}
}

// Register allocates a new peer id for the given listen address and stores
// the peer with status unassigned. Registering the same address twice fails
// with ErrBadRequest, and a full directory fails with ErrResourceExhausted.
func (d *Directory) Register(address string) (string, error) {
	if address == "" {
		return "", fmt.Errorf("%w: empty address", protocol.ErrBadRequest)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byAddr[address]; exists {
		return "", fmt.Errorf("%w: address %s already registered", protocol.ErrBadRequest, address)
	}
	if d.maxPeers > 0 && len(d.peers) >= d.maxPeers {
		return "", fmt.Errorf("%w: directory holds %d peers", protocol.ErrResourceExhausted, d.maxPeers)
	}

	d.nextID++
	peer := &protocol.PeerInfo{
		ID:      fmt.Sprintf("peer-%d", d.nextID),
		Address: address,
		Status:  protocol.StatusUnassigned,
	}
	d.peers = append(d.peers, peer)
	d.byID[peer.ID] = peer
	d.byAddr[address] = peer

	return peer.ID, nil
}

// AttachUsername records the display name a peer submitted and marks the
// peer active. It fails with ErrNotFound for an unknown id.
func (d *Directory) AttachUsername(peerID, username string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	peer, ok := d.byID[peerID]
	if !ok {
		return fmt.Errorf("%w: peer %s", protocol.ErrNotFound, peerID)
	}

	peer.Username = username
	peer.Status = protocol.StatusActive
	return nil
}

// Get returns a copy of the peer with the given id, or ErrNotFound.
func (d *Directory) Get(peerID string) (protocol.PeerInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	peer, ok := d.byID[peerID]
	if !ok {
		return protocol.PeerInfo{}, fmt.Errorf("%w: peer %s", protocol.ErrNotFound, peerID)
	}
	return *peer, nil
}

// ListActive returns copies of all known peers in registration order,
// skipping the excluded id when it is non-empty.
func (d *Directory) ListActive(excludeID string) []protocol.PeerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]protocol.PeerInfo, 0, len(d.peers))
	for _, peer := range d.peers {
		if excludeID != "" && peer.ID == excludeID {
			continue
		}
		out = append(out, *peer)
	}
	return out
}

// Assign claims the first unassigned peer in registration order for a fresh
// login and returns a copy of it. When every pool entry is already claimed it
// fails with ErrResourceExhausted.
func (d *Directory) Assign() (protocol.PeerInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, peer := range d.peers {
		if peer.Status == protocol.StatusUnassigned {
			peer.Status = protocol.StatusAssigned
			return *peer, nil
		}
	}
	return protocol.PeerInfo{}, fmt.Errorf("%w: no unassigned peer available", protocol.ErrResourceExhausted)
}

// Len reports how many peers are registered.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}
