package tracker

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/peerchat-io/peerchat/internal/auth"
	"github.com/peerchat-io/peerchat/internal/protocol"
)

// Server exposes the coordinator over HTTP. Routes follow the original
// tracker surface (/register-peer-pool, /submit-info, /get-list, /login)
// plus the channel API.
type Server struct {
	coordinator *Coordinator
	registrar   auth.Registrar
	router      *httprouter.Router
}

// NewServer builds the tracker's HTTP surface around a coordinator. The
// registrar backs the signup route and may be nil when signup is disabled.
func NewServer(coordinator *Coordinator, registrar auth.Registrar) *Server {
	s := &Server{
		coordinator: coordinator,
		registrar:   registrar,
		router:      httprouter.New(),
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

	s.router.POST("/register-peer-pool", s.handleRegisterPeer)
	s.router.POST("/submit-info", s.handleSubmitInfo)
	s.router.GET("/get-list", s.handleGetList)
	s.router.POST("/login", s.handleLogin)
	s.router.POST("/signup", s.handleSignup)

	s.router.GET("/channels", s.handleListChannels)
	s.router.POST("/channels/:name/join", s.handleJoinChannel)
	s.router.POST("/channels/:name/messages", s.handlePostMessage)
	s.router.GET("/channels/:name/messages", s.handleReadMessages)
}

type registerPeerRequest struct {
	Address string `json:"address"`
}

type submitInfoRequest struct {
	PeerID   string `json:"peer_id"`
	Username string `json:"username"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type joinChannelRequest struct {
	PeerID string `json:"peer_id"`
}

type postMessageRequest struct {
	PeerID string `json:"peer_id"`
	Body   string `json:"body"`
}

type messagesResponse struct {
	Messages []protocol.Message `json:"messages"`
	Cursor   int64              `json:"cursor"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("PeerChat tracker is running!"))
}

func (s *Server) handleRegisterPeer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registerPeerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.coordinator.RegisterPeer(req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"peer_id": id})
}

func (s *Server) handleSubmitInfo(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req submitInfoRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.coordinator.SubmitInfo(req.PeerID, req.Username); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	exclude := r.URL.Query().Get("exclude")
	writeJSON(w, http.StatusOK, s.coordinator.ListPeers(exclude))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.coordinator.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    result.SessionToken,
		Path:     "/",
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, protocol.ErrBadRequest)
		return
	}

	if s.registrar == nil {
		http.Error(w, "signup not supported", http.StatusNotImplemented)
		return
	}
	if err := s.registrar.Register(req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

func (s *Server) handleListChannels(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.coordinator.ListChannels())
}

func (s *Server) handleJoinChannel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req joinChannelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.coordinator.JoinChannel(ps.ByName("name"), req.PeerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req postMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	seq, err := s.coordinator.PostMessage(ps.ByName("name"), req.PeerID, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"seq": seq})
}

func (s *Server) handleReadMessages(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	since, ok := parseSince(w, r)
	if !ok {
		return
	}

	messages, cursor, err := s.coordinator.ReadMessages(ps.ByName("name"), since)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []protocol.Message{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: messages, Cursor: cursor})
}

// parseSince extracts the polling cursor from the query string; a missing
// parameter means "from the beginning".
func parseSince(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return 0, true
	}
	since, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || since < 0 {
		writeError(w, protocol.ErrBadRequest)
		return 0, false
	}
	return since, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, protocol.ErrBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

// writeError maps the protocol error kinds onto HTTP status codes so that no
// failure is silently dropped.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, protocol.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, protocol.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, protocol.ErrNotMember):
		status = http.StatusForbidden
	case errors.Is(err, protocol.ErrResourceExhausted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrUserExists):
		status = http.StatusConflict
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
