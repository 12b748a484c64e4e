// Package tracker implements the coordination authority: the peer directory,
// the channel store, and the HTTP surface peers call to register, discover
// each other, and exchange channel messages.
package tracker

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/peerchat-io/peerchat/internal/auth"
	"github.com/peerchat-io/peerchat/internal/channelstore"
	"github.com/peerchat-io/peerchat/internal/directory"
	"github.com/peerchat-io/peerchat/internal/protocol"
)

// LoginResult describes the outcome of a successful login: the pool peer the
// user was assigned to, the URL the browser should be redirected to, and the
// session token set as a cookie.
type LoginResult struct {
	Peer         protocol.PeerInfo `json:"chosen_peer"`
	Redirect     string            `json:"redirect"`
	SessionToken string            `json:"session_token"`
}

// Coordinator composes the peer directory and channel store behind the
// tracker's externally callable operations, adding input validation and the
// login assignment policy. All authoritative state lives in the composed
// stores; the coordinator itself only owns the session table.
type Coordinator struct {
	directory *directory.Directory
	channels  *channelstore.Store
	auth      auth.Authenticator

	sessionMu sync.RWMutex
	sessions  map[string]string
}

// NewCoordinator wires a coordinator from its owned stores and the external
// authentication collaborator.
func NewCoordinator(dir *directory.Directory, channels *channelstore.Store, authenticator auth.Authenticator) *Coordinator {
	return &Coordinator{
		directory: dir,
		channels:  channels,
		auth:      authenticator,
		sessions:  make(map[string]string),
	}
}

// RegisterPeer adds a peer server address to the directory pool.
func (c *Coordinator) RegisterPeer(address string) (string, error) {
	id, err := c.directory.Register(address)
	if err != nil {
		return "", err
	}
	log.Printf("[Tracker] Registered peer %s at %s. Pool size: %d", id, address, c.directory.Len())
	return id, nil
}

// SubmitInfo attaches a username to a registered peer.
func (c *Coordinator) SubmitInfo(peerID, username string) error {
	if peerID == "" || username == "" {
		return fmt.Errorf("%w: peer id and username required", protocol.ErrBadRequest)
	}
	if err := c.directory.AttachUsername(peerID, username); err != nil {
		return err
	}
	log.Printf("[Tracker] Peer %s is now %q", peerID, username)
	return nil
}

// ListPeers returns all known peers in registration order, excluding the
// requesting peer when excludeID is non-empty.
func (c *Coordinator) ListPeers(excludeID string) []protocol.PeerInfo {
	return c.directory.ListActive(excludeID)
}

// GetPeer returns the directory entry for one peer.
func (c *Coordinator) GetPeer(peerID string) (protocol.PeerInfo, error) {
	return c.directory.Get(peerID)
}

// Login checks credentials with the external authenticator, assigns the
// first unassigned pool peer to the user, and issues a session token. It
// fails with auth.ErrInvalidCredentials on a bad login and
// ErrResourceExhausted when the pool has no free peer.
func (c *Coordinator) Login(username, password string) (LoginResult, error) {
	if username == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: username and password required", protocol.ErrBadRequest)
	}

	if err := c.auth.Login(username, password); err != nil {
		return LoginResult{}, err
	}

	peer, err := c.directory.Assign()
	if err != nil {
		return LoginResult{}, err
	}

	if err := c.directory.AttachUsername(peer.ID, username); err != nil {
		return LoginResult{}, err
	}
	peer.Username = username
	peer.Status = protocol.StatusActive

	token := uuid.NewString()
	c.sessionMu.Lock()
	c.sessions[token] = peer.ID
	c.sessionMu.Unlock()

	log.Printf("[Tracker] Login %q assigned to %s at %s", username, peer.ID, peer.Address)
	return LoginResult{
		Peer:         peer,
		Redirect:     fmt.Sprintf("http://%s", peer.Address),
		SessionToken: token,
	}, nil
}

// ResolveSession maps a session token back to its peer id.
func (c *Coordinator) ResolveSession(token string) (string, bool) {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	id, ok := c.sessions[token]
	return id, ok
}

// EnsureChannel idempotently creates a channel.
func (c *Coordinator) EnsureChannel(name string) error {
	if name == "" {
		return fmt.Errorf("%w: channel name required", protocol.ErrBadRequest)
	}
	c.channels.Ensure(name)
	return nil
}

// JoinChannel adds a registered peer to a channel's membership. The peer
// must exist in the directory; joining twice is a no-op.
func (c *Coordinator) JoinChannel(name, peerID string) error {
	if name == "" || peerID == "" {
		return fmt.Errorf("%w: channel name and peer id required", protocol.ErrBadRequest)
	}
	if _, err := c.directory.Get(peerID); err != nil {
		return err
	}
	return c.channels.Join(name, peerID)
}

// PostMessage appends a message to a channel on behalf of a member peer and
// returns its sequence number.
func (c *Coordinator) PostMessage(name, peerID, body string) (int64, error) {
	if name == "" || peerID == "" || body == "" {
		return 0, fmt.Errorf("%w: channel name, peer id, and body required", protocol.ErrBadRequest)
	}
	if _, err := c.directory.Get(peerID); err != nil {
		return 0, err
	}
	return c.channels.Post(name, peerID, body)
}

// ReadMessages returns the channel messages newer than since plus the new
// cursor.
func (c *Coordinator) ReadMessages(name string, since int64) ([]protocol.Message, int64, error) {
	return c.channels.ReadSince(name, since)
}

// ListChannels returns every channel with its member count.
func (c *Coordinator) ListChannels() []channelstore.ChannelInfo {
	return c.channels.List()
}
