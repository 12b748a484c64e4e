package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerchat-io/peerchat/internal/protocol"
)

// fakeTracker is a minimal in-test stand-in for the tracker's directory
// surface.
type fakeTracker struct {
	peers  []protocol.PeerInfo
	nextID int
}

func (f *fakeTracker) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/register-peer-pool", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Address string `json:"address"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.nextID++
		peer := protocol.PeerInfo{ID: fmt.Sprintf("peer-%d", f.nextID), Address: req.Address}
		f.peers = append(f.peers, peer)
		_ = json.NewEncoder(w).Encode(map[string]string{"peer_id": peer.ID})
	})
	mux.HandleFunc("/submit-info", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	mux.HandleFunc("/get-list", func(w http.ResponseWriter, r *http.Request) {
		exclude := r.URL.Query().Get("exclude")
		out := make([]protocol.PeerInfo, 0, len(f.peers))
		for _, p := range f.peers {
			if p.ID != exclude {
				out = append(out, p)
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	return mux
}

// remoteInbox records messages delivered to a fake remote peer and returns
// its host:port address.
func remoteInbox(t *testing.T) (*Inbox, string) {
	t.Helper()

	inbox := NewInbox(0)
	mux := http.NewServeMux()
	mux.HandleFunc("/receive-message", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SenderID string `json:"sender_id"`
			Body     string `json:"body"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		seq := inbox.Receive(req.SenderID, req.Body)
		_ = json.NewEncoder(w).Encode(map[string]int64{"seq": seq})
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return inbox, strings.TrimPrefix(ts.URL, "http://")
}

func newTestAgent(t *testing.T) (*Agent, *fakeTracker) {
	t.Helper()

	tracker := &fakeTracker{}
	ts := httptest.NewServer(tracker.handler())
	t.Cleanup(ts.Close)

	agent := NewAgent("127.0.0.1:9001", "alice", ts.URL, time.Second, NewInbox(0), nil)
	require.NoError(t, agent.RegisterWithTracker(context.Background()))
	return agent, tracker
}

// TestRegisterWithTracker verifies that registration stores the assigned id.
func TestRegisterWithTracker(t *testing.T) {
	agent, _ := newTestAgent(t)
	assert.Equal(t, "peer-1", agent.ID())
}

// TestFetchPeersExcludesSelf verifies that the agent never sees itself in
// the tracker listing.
func TestFetchPeersExcludesSelf(t *testing.T) {
	agent, tracker := newTestAgent(t)
	tracker.peers = append(tracker.peers, protocol.PeerInfo{ID: "peer-9", Address: "127.0.0.1:9009"})

	peers, err := agent.FetchPeers(context.Background())
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "peer-9", peers[0].ID)
}

// TestSendDirectToConnection verifies delivery through the connection list.
func TestSendDirectToConnection(t *testing.T) {
	agent, _ := newTestAgent(t)
	inbox, addr := remoteInbox(t)

	require.NoError(t, agent.ConnectTo(context.Background(), "peer-2", addr))
	require.NoError(t, agent.SendDirect(context.Background(), "peer-2", "ping"))

	messages, cursor := inbox.ReadSince(0)
	require.Len(t, messages, 1)
	assert.Equal(t, "peer-1", messages[0].SenderID)
	assert.Equal(t, "ping", messages[0].Body)
	assert.Equal(t, int64(1), cursor)
}

// TestSendDirectResolvesViaTracker verifies the tracker-directory fallback
// when the target is not in the connection list.
func TestSendDirectResolvesViaTracker(t *testing.T) {
	agent, tracker := newTestAgent(t)
	inbox, addr := remoteInbox(t)
	tracker.peers = append(tracker.peers, protocol.PeerInfo{ID: "peer-7", Address: addr})

	require.NoError(t, agent.SendDirect(context.Background(), "peer-7", "hello"))

	messages, _ := inbox.ReadSince(0)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Body)
}

// TestSendDirectUnresolvable verifies ErrUnreachablePeer for a target the
// tracker does not know.
func TestSendDirectUnresolvable(t *testing.T) {
	agent, _ := newTestAgent(t)

	err := agent.SendDirect(context.Background(), "peer-404", "hello")
	assert.ErrorIs(t, err, protocol.ErrUnreachablePeer)
}

// TestSendDirectDeliveryFailed verifies ErrDeliveryFailed when the remote
// call errors.
func TestSendDirectDeliveryFailed(t *testing.T) {
	agent, _ := newTestAgent(t)

	// A connection whose server has already gone away.
	dead := httptest.NewServer(http.NotFoundHandler())
	deadAddr := strings.TrimPrefix(dead.URL, "http://")
	dead.Close()

	require.NoError(t, agent.ConnectTo(context.Background(), "peer-2", deadAddr))
	err := agent.SendDirect(context.Background(), "peer-2", "hello")
	assert.ErrorIs(t, err, protocol.ErrDeliveryFailed)
}

// TestBroadcastPartialFailure runs the best-effort fan-out scenario:
// with connections A, B, C and B unreachable, A and C each receive exactly
// one message and only B is reported failed.
func TestBroadcastPartialFailure(t *testing.T) {
	agent, _ := newTestAgent(t)

	inboxA, addrA := remoteInbox(t)
	inboxC, addrC := remoteInbox(t)

	dead := httptest.NewServer(http.NotFoundHandler())
	deadAddr := strings.TrimPrefix(dead.URL, "http://")
	dead.Close()

	require.NoError(t, agent.ConnectTo(context.Background(), "peer-A", addrA))
	require.NoError(t, agent.ConnectTo(context.Background(), "peer-B", deadAddr))
	require.NoError(t, agent.ConnectTo(context.Background(), "peer-C", addrC))

	failed := agent.Broadcast(context.Background(), "to everyone")

	require.Len(t, failed, 1)
	assert.Equal(t, "peer-B", failed[0].PeerID)

	messagesA, _ := inboxA.ReadSince(0)
	require.Len(t, messagesA, 1)
	assert.Equal(t, "to everyone", messagesA[0].Body)

	messagesC, _ := inboxC.ReadSince(0)
	require.Len(t, messagesC, 1)
	assert.Equal(t, "to everyone", messagesC[0].Body)
}

// TestReceiveNotifiesHub verifies that an accepted message lands in the
// inbox and reaches the notifier queue.
func TestReceiveNotifiesHub(t *testing.T) {
	hub := NewHub()
	agent := NewAgent("127.0.0.1:9001", "alice", "http://127.0.0.1:0", time.Second, NewInbox(0), hub)

	seq := agent.Receive("peer-2", "ping")
	assert.Equal(t, int64(1), seq)

	select {
	case msg := <-hub.notify:
		assert.Equal(t, int64(1), msg.Seq)
		assert.Equal(t, "peer-2", msg.SenderID)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected a queued notification")
	}
}

// TestSendDirectValidation verifies the up-front input checks.
func TestSendDirectValidation(t *testing.T) {
	agent, _ := newTestAgent(t)

	assert.ErrorIs(t, agent.SendDirect(context.Background(), "", "x"), protocol.ErrBadRequest)
	assert.ErrorIs(t, agent.SendDirect(context.Background(), "peer-2", ""), protocol.ErrBadRequest)
}
