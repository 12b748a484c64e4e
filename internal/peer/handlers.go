package peer

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/peerchat-io/peerchat/internal/config"
	"github.com/peerchat-io/peerchat/internal/protocol"
)

// Server exposes a peer's HTTP surface: the endpoints other peers call to
// deliver messages, the endpoints the local client calls to connect, send,
// and poll, and the websocket upgrade for live UI notifications.
type Server struct {
	agent    *Agent
	hub      *Hub
	cfg      *config.PeerConfig
	upgrader websocket.Upgrader
	router   *httprouter.Router
}

// NewServer builds the peer's HTTP surface around an agent and its notifier
// hub.
func NewServer(agent *Agent, hub *Hub, cfg *config.PeerConfig) *Server {
	origins := newOriginPolicy(cfg.AllowedOrigins)
	s := &Server{
		agent: agent,
		hub:   hub,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		router: httprouter.New(),
	}
	s.registerRoutes()
	return s
}

// Router returns the configured handler for mounting into an http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleHealth)

	s.router.POST("/connect-peer", s.handleConnectPeer)
	s.router.GET("/get-connected-peers", s.handleGetConnectedPeers)
	s.router.POST("/send-peer", s.handleSendPeer)
	s.router.POST("/receive-message", s.handleReceiveMessage)
	s.router.GET("/get-received-messages", s.handleGetReceivedMessages)
	s.router.POST("/broadcast-peer", s.handleBroadcastPeer)
	s.router.GET("/peers", s.handlePeerList)

	s.router.GET("/ws", s.handleWebSocket)
}

type connectPeerRequest struct {
	PeerID  string `json:"peer_id"`
	Address string `json:"address"`
}

type sendPeerRequest struct {
	TargetID string `json:"target_id"`
	Body     string `json:"body"`
}

type receiveMessageRequest struct {
	SenderID string `json:"sender_id"`
	Body     string `json:"body"`
}

type broadcastRequest struct {
	Body string `json:"body"`
}

type broadcastResponse struct {
	Failed []BroadcastFailure `json:"failed"`
}

type inboxResponse struct {
	Messages []protocol.Message `json:"messages"`
	Cursor   int64              `json:"cursor"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("PeerChat peer is running!"))
}

func (s *Server) handleConnectPeer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req connectPeerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.agent.ConnectTo(r.Context(), req.PeerID, req.Address); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGetConnectedPeers(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	connections := s.agent.Inbox().ListConnections()
	if connections == nil {
		connections = []protocol.Connection{}
	}
	s.writeJSON(w, http.StatusOK, connections)
}

func (s *Server) handleSendPeer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req sendPeerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.agent.SendDirect(r.Context(), req.TargetID, req.Body); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleReceiveMessage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req receiveMessageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	seq := s.agent.Receive(req.SenderID, req.Body)
	s.writeJSON(w, http.StatusOK, map[string]int64{"seq": seq})
}

func (s *Server) handleGetReceivedMessages(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	since, ok := s.parseSince(w, r)
	if !ok {
		return
	}

	messages, cursor := s.agent.Inbox().ReadSince(since)
	if messages == nil {
		messages = []protocol.Message{}
	}
	s.writeJSON(w, http.StatusOK, inboxResponse{Messages: messages, Cursor: cursor})
}

func (s *Server) handleBroadcastPeer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req broadcastRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Body == "" {
		s.writeError(w, protocol.ErrBadRequest)
		return
	}

	failed := s.agent.Broadcast(r.Context(), req.Body)
	if failed == nil {
		failed = []BroadcastFailure{}
	}
	s.writeJSON(w, http.StatusOK, broadcastResponse{Failed: failed})
}

func (s *Server) handlePeerList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	peers, err := s.agent.FetchPeers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if peers == nil {
		peers = []protocol.PeerInfo{}
	}
	s.writeJSON(w, http.StatusOK, peers)
}

// handleWebSocket upgrades a local UI connection and hands it to the hub,
// which launches the pump goroutines.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	client := NewUIClient(conn, s.hub, r.RemoteAddr,
		s.cfg.MaxMessageSize,
		s.cfg.RateLimit.Burst, s.cfg.RateLimit.RefillInterval,
		s.agent.SendDirect, s.cfg.RequestTimeout)

	s.hub.register <- client
}

func (s *Server) parseSince(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return 0, true
	}
	since, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || since < 0 {
		s.writeError(w, protocol.ErrBadRequest)
		return 0, false
	}
	return since, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, protocol.ErrBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

// writeError maps the protocol error kinds onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, protocol.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, protocol.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, protocol.ErrUnreachablePeer):
		status = http.StatusBadGateway
	case errors.Is(err, protocol.ErrDeliveryFailed):
		status = http.StatusGatewayTimeout
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
