package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/peerchat-io/peerchat/internal/protocol"
)

// BroadcastFailure identifies one broadcast target that could not be
// reached, with the reason delivery failed.
type BroadcastFailure struct {
	PeerID string `json:"peer_id"`
	Reason string `json:"reason"`
}

// Agent orchestrates a peer's outbound calls: registration and discovery
// against the tracker, and direct message delivery to other peers. Its only
// authoritative state is the composed Inbox; everything else is a copy of
// what the tracker knows.
type Agent struct {
	id       string
	username string
	address  string

	trackerURL string
	client     *http.Client
	inbox      *Inbox
	notifier   *Hub
}

// NewAgent creates an agent that advertises the given address and talks to
// the tracker at trackerURL. Every outbound call is bounded by timeout;
// expiry surfaces as ErrDeliveryFailed (or ErrUnreachablePeer during
// resolution). The notifier may be nil when no local UI is attached.
func NewAgent(address, username, trackerURL string, timeout time.Duration, inbox *Inbox, notifier *Hub) *Agent {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Agent{
		username:   username,
		address:    address,
		trackerURL: trackerURL,
		client:     &http.Client{Timeout: timeout},
		inbox:      inbox,
		notifier:   notifier,
	}
}

// ID returns the peer id the tracker assigned, or empty before registration.
func (a *Agent) ID() string {
	return a.id
}

// Inbox returns the agent's message store.
func (a *Agent) Inbox() *Inbox {
	return a.inbox
}

// RegisterWithTracker announces this peer's address to the tracker and
// stores the assigned peer id. It then submits the username when one is
// configured.
func (a *Agent) RegisterWithTracker(ctx context.Context) error {
	var result struct {
		PeerID string `json:"peer_id"`
	}
	err := a.postJSON(ctx, a.trackerURL+"/register-peer-pool",
		map[string]string{"address": a.address}, &result)
	if err != nil {
		return fmt.Errorf("tracker registration: %w", err)
	}

	a.id = result.PeerID
	log.Printf("[Peer] Registered with tracker as %s", a.id)

	if a.username != "" {
		err := a.postJSON(ctx, a.trackerURL+"/submit-info",
			map[string]string{"peer_id": a.id, "username": a.username}, nil)
		if err != nil {
			return fmt.Errorf("username submission: %w", err)
		}
	}
	return nil
}

// FetchPeers asks the tracker for every known peer except this one.
func (a *Agent) FetchPeers(ctx context.Context) ([]protocol.PeerInfo, error) {
	url := a.trackerURL + "/get-list"
	if a.id != "" {
		url += "?exclude=" + a.id
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: tracker unavailable: %v", protocol.ErrDeliveryFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tracker returned %d", protocol.ErrDeliveryFailed, resp.StatusCode)
	}

	var peers []protocol.PeerInfo
	if err := json.NewDecoder(resp.Body).Decode(&peers); err != nil {
		return nil, fmt.Errorf("%w: invalid tracker response: %v", protocol.ErrDeliveryFailed, err)
	}
	return peers, nil
}

// ConnectTo records a target in the connection list. When the address is
// unknown it is resolved through the tracker directory; a peer that cannot
// be resolved fails with ErrUnreachablePeer. No persistent socket is opened;
// each subsequent send is a stateless outbound call.
func (a *Agent) ConnectTo(ctx context.Context, peerID, address string) error {
	if address == "" {
		resolved, err := a.resolve(ctx, peerID)
		if err != nil {
			return err
		}
		address = resolved
	}
	if peerID == "" {
		return fmt.Errorf("%w: peer id required", protocol.ErrBadRequest)
	}

	a.inbox.AddConnection(peerID, address)
	log.Printf("[Peer] Connected to %s at %s", peerID, address)
	return nil
}

// SendDirect delivers a message straight to the target peer's inbox. The
// target's address comes from the connection list or, failing that, the
// tracker directory; an unresolvable target fails with ErrUnreachablePeer
// and a failed or timed-out remote call with ErrDeliveryFailed. Neither is
// retried.
func (a *Agent) SendDirect(ctx context.Context, targetID, body string) error {
	if targetID == "" || body == "" {
		return fmt.Errorf("%w: target peer id and body required", protocol.ErrBadRequest)
	}

	address, err := a.resolveOrConnection(ctx, targetID)
	if err != nil {
		return err
	}

	err = a.postJSON(ctx, fmt.Sprintf("http://%s/receive-message", address),
		map[string]string{"sender_id": a.id, "body": body}, nil)
	if err != nil {
		return fmt.Errorf("%w: send to %s at %s: %v", protocol.ErrDeliveryFailed, targetID, address, err)
	}
	return nil
}

// Broadcast fans a message out to every connection. Delivery is best-effort:
// a failing target never aborts the rest, and the returned slice names each
// target that could not be reached (empty when all succeeded).
func (a *Agent) Broadcast(ctx context.Context, body string) []BroadcastFailure {
	var failed []BroadcastFailure
	for _, conn := range a.inbox.ListConnections() {
		err := a.postJSON(ctx, fmt.Sprintf("http://%s/receive-message", conn.Address),
			map[string]string{"sender_id": a.id, "body": body}, nil)
		if err != nil {
			log.Printf("[Peer] Broadcast to %s at %s failed: %v", conn.PeerID, conn.Address, err)
			failed = append(failed, BroadcastFailure{PeerID: conn.PeerID, Reason: err.Error()})
		}
	}
	return failed
}

// Receive stores an incoming direct message and pushes it to any attached UI
// sockets. It always accepts.
func (a *Agent) Receive(senderID, body string) int64 {
	seq := a.inbox.Receive(senderID, body)
	log.Printf("[Peer] Message %d from %s", seq, senderID)

	if a.notifier != nil {
		a.notifier.Notify(protocol.Message{Seq: seq, SenderID: senderID, Body: body})
	}
	return seq
}

// resolveOrConnection resolves a target address from the connection list
// first, then the tracker directory.
func (a *Agent) resolveOrConnection(ctx context.Context, peerID string) (string, error) {
	if conn, ok := a.inbox.Lookup(peerID); ok {
		return conn.Address, nil
	}
	return a.resolve(ctx, peerID)
}

// resolve asks the tracker directory for the peer's address.
func (a *Agent) resolve(ctx context.Context, peerID string) (string, error) {
	if peerID == "" {
		return "", fmt.Errorf("%w: peer id required", protocol.ErrBadRequest)
	}

	peers, err := a.FetchPeers(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", protocol.ErrUnreachablePeer, peerID, err)
	}
	for _, p := range peers {
		if p.ID == peerID {
			return p.Address, nil
		}
	}
	return "", fmt.Errorf("%w: %s not in tracker directory", protocol.ErrUnreachablePeer, peerID)
}

// postJSON issues a bounded outbound POST and decodes the response into out
// when it is non-nil. Non-2xx responses are errors.
func (a *Agent) postJSON(ctx context.Context, url string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("remote returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("invalid response: %w", err)
		}
	}
	return nil
}
