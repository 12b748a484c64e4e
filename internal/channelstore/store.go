// Package channelstore implements the tracker's channel registry: named
// append-only message logs with explicit membership.
package channelstore

import (
	"fmt"
	"sync"

	"github.com/peerchat-io/peerchat/internal/protocol"
)

// ChannelInfo is the listing view of one channel.
type ChannelInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// channel pairs a membership set with its message log. Membership is guarded
// by the channel's own mutex; the log carries its own lock, so posts to
// unrelated channels never contend.
type channel struct {
	mu      sync.RWMutex
	members map[string]struct{}
	log     *protocol.Log
}

// Store owns every channel. The store-level RWMutex only guards the channel
// map and creation order; per-channel state has per-channel locks.
type Store struct {
	mu        sync.RWMutex
	channels  map[string]*channel
	order     []string
	retention int
}

// New creates a store with the given per-channel retention cap (zero means
// unbounded) and pre-seeds the named default channels.
func New(retention int, defaults ...string) *Store {
	s := &Store{
		channels:  make(map[string]*channel),
		retention: retention,
	}
	for _, name := range defaults {
		s.Ensure(name)
	}
	return s
}

// Ensure creates the channel if it does not exist yet. It is idempotent.
func (s *Store) Ensure(name string) {
	if name == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(name)
}

func (s *Store) ensureLocked(name string) *channel {
	if ch, ok := s.channels[name]; ok {
		return ch
	}
	ch := &channel{
		members: make(map[string]struct{}),
		log:     protocol.NewLog(s.retention),
	}
	s.channels[name] = ch
	s.order = append(s.order, name)
	return ch
}

// Join adds peerID to the channel's membership, creating the channel lazily
// on first join. Joining twice is a no-op, not an error.
func (s *Store) Join(name, peerID string) error {
	if name == "" || peerID == "" {
		return fmt.Errorf("%w: channel name and peer id required", protocol.ErrBadRequest)
	}

	s.mu.Lock()
	ch := s.ensureLocked(name)
	s.mu.Unlock()

	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.members[peerID] = struct{}{}
	return nil
}

// Post appends a message from senderID to the channel and returns its
// sequence number. It fails with ErrNotFound for an unknown channel and
// ErrNotMember when the sender has not joined; neither failure mutates the
// log or advances the sequence counter.
func (s *Store) Post(name, senderID, body string) (int64, error) {
	if name == "" || senderID == "" || body == "" {
		return 0, fmt.Errorf("%w: channel, sender, and body required", protocol.ErrBadRequest)
	}

	ch, err := s.get(name)
	if err != nil {
		return 0, err
	}

	ch.mu.RLock()
	_, member := ch.members[senderID]
	ch.mu.RUnlock()
	if !member {
		return 0, fmt.Errorf("%w: peer %s has not joined %s", protocol.ErrNotMember, senderID, name)
	}

	return ch.log.Append(senderID, body), nil
}

// ReadSince returns every message in the channel with a sequence number
// strictly greater than since, plus the new cursor. It fails with
// ErrNotFound for an unknown channel.
func (s *Store) ReadSince(name string, since int64) ([]protocol.Message, int64, error) {
	ch, err := s.get(name)
	if err != nil {
		return nil, 0, err
	}

	messages, cursor := ch.log.ReadSince(since)
	return messages, cursor, nil
}

// List returns every channel with its member count, in creation order.
func (s *Store) List() []ChannelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ChannelInfo, 0, len(s.order))
	for _, name := range s.order {
		ch := s.channels[name]
		ch.mu.RLock()
		members := len(ch.members)
		ch.mu.RUnlock()
		out = append(out, ChannelInfo{Name: name, Members: members})
	}
	return out
}

// Members reports how many peers have joined the channel, or ErrNotFound.
func (s *Store) Members(name string) (int, error) {
	ch, err := s.get(name)
	if err != nil {
		return 0, err
	}

	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.members), nil
}

func (s *Store) get(name string) (*channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: channel %s", protocol.ErrNotFound, name)
	}
	return ch, nil
}
