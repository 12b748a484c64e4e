package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerchat-io/peerchat/internal/auth"
	"github.com/peerchat-io/peerchat/internal/channelstore"
	"github.com/peerchat-io/peerchat/internal/directory"
	"github.com/peerchat-io/peerchat/internal/protocol"
)

// fakeAuth accepts a single hardcoded credential pair.
type fakeAuth struct {
	username string
	password string
}

func (f *fakeAuth) Login(username, password string) error {
	if username == f.username && password == f.password {
		return nil
	}
	return auth.ErrInvalidCredentials
}

func newTestCoordinator() *Coordinator {
	return NewCoordinator(
		directory.New(0),
		channelstore.New(0, "general"),
		&fakeAuth{username: "alice", password: "secret"},
	)
}

// TestLoginAssignsPoolPeer verifies the login policy: credentials are checked
// first, then the first unassigned pool peer is claimed and named.
func TestLoginAssignsPoolPeer(t *testing.T) {
	c := newTestCoordinator()

	id, err := c.RegisterPeer("127.0.0.1:9001")
	require.NoError(t, err)

	result, err := c.Login("alice", "secret")
	require.NoError(t, err)

	assert.Equal(t, id, result.Peer.ID)
	assert.Equal(t, "alice", result.Peer.Username)
	assert.Equal(t, protocol.StatusActive, result.Peer.Status)
	assert.Equal(t, "http://127.0.0.1:9001", result.Redirect)
	assert.NotEmpty(t, result.SessionToken)

	peerID, ok := c.ResolveSession(result.SessionToken)
	assert.True(t, ok)
	assert.Equal(t, id, peerID)
}

// TestLoginBadCredentials verifies that a failed credential check assigns no
// pool peer.
func TestLoginBadCredentials(t *testing.T) {
	c := newTestCoordinator()
	_, err := c.RegisterPeer("127.0.0.1:9001")
	require.NoError(t, err)

	_, err = c.Login("alice", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	// The pool entry must still be claimable.
	result, err := c.Login("alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "peer-1", result.Peer.ID)
}

// TestLoginPoolExhausted verifies exhaustion when every pool peer is taken.
func TestLoginPoolExhausted(t *testing.T) {
	c := newTestCoordinator()
	_, err := c.RegisterPeer("127.0.0.1:9001")
	require.NoError(t, err)

	_, err = c.Login("alice", "secret")
	require.NoError(t, err)

	_, err = c.Login("alice", "secret")
	assert.ErrorIs(t, err, protocol.ErrResourceExhausted)
}

// TestLoginValidation verifies that malformed logins are rejected up front.
func TestLoginValidation(t *testing.T) {
	c := newTestCoordinator()

	_, err := c.Login("", "secret")
	assert.ErrorIs(t, err, protocol.ErrBadRequest)
	_, err = c.Login("alice", "")
	assert.ErrorIs(t, err, protocol.ErrBadRequest)
}

// TestChannelPassThroughValidation verifies the coordinator's input checks
// in front of the channel store.
func TestChannelPassThroughValidation(t *testing.T) {
	c := newTestCoordinator()
	id, err := c.RegisterPeer("127.0.0.1:9001")
	require.NoError(t, err)

	_, err = c.PostMessage("general", id, "")
	assert.ErrorIs(t, err, protocol.ErrBadRequest)
	_, err = c.PostMessage("", id, "hi")
	assert.ErrorIs(t, err, protocol.ErrBadRequest)

	err = c.JoinChannel("general", "peer-99")
	assert.ErrorIs(t, err, protocol.ErrNotFound)

	require.NoError(t, c.JoinChannel("general", id))
	seq, err := c.PostMessage("general", id, "hi")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	messages, cursor, err := c.ReadMessages("general", 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, int64(1), cursor)
}

// TestEnsureChannel verifies idempotent channel creation.
func TestEnsureChannel(t *testing.T) {
	c := newTestCoordinator()

	require.NoError(t, c.EnsureChannel("ops"))
	require.NoError(t, c.EnsureChannel("ops"))
	assert.ErrorIs(t, c.EnsureChannel(""), protocol.ErrBadRequest)

	channels := c.ListChannels()
	require.Len(t, channels, 2)
	assert.Equal(t, "general", channels[0].Name)
	assert.Equal(t, "ops", channels[1].Name)
}

// TestSubmitInfo verifies the username submission pass-through.
func TestSubmitInfo(t *testing.T) {
	c := newTestCoordinator()
	id, err := c.RegisterPeer("127.0.0.1:9001")
	require.NoError(t, err)

	require.NoError(t, c.SubmitInfo(id, "bob"))

	peer, err := c.GetPeer(id)
	require.NoError(t, err)
	assert.Equal(t, "bob", peer.Username)

	assert.ErrorIs(t, c.SubmitInfo("", "bob"), protocol.ErrBadRequest)
	assert.ErrorIs(t, c.SubmitInfo("peer-99", "bob"), protocol.ErrNotFound)
}
