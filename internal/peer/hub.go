package peer

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/peerchat-io/peerchat/internal/protocol"
)

// Hub manages the websocket connections local UI clients open against this
// peer and pushes every newly received inbox message to all of them. It
// maintains client registration/unregistration and ensures thread-safe
// operations through mutex protection.
//
// The hub is a convenience on top of the polling contract, not a replacement
// for it: a UI that ignores the socket can still poll the inbox with a
// cursor and miss nothing.
type Hub struct {
	clients    map[*UIClient]bool
	notify     chan protocol.Message
	register   chan *UIClient
	unregister chan *UIClient
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates and initializes a new Hub instance with all necessary
// channels and client map. The returned Hub is ready to manage UI
// connections once Run is started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*UIClient]bool),
		notify:     make(chan protocol.Message, 64),
		register:   make(chan *UIClient),
		unregister: make(chan *UIClient),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Notify queues an inbox message for fan-out to every attached UI socket.
// It never blocks the caller: when the hub is saturated or shut down the
// notification is dropped, since the message itself is safely in the inbox
// and reachable by polling.
func (h *Hub) Notify(msg protocol.Message) {
	select {
	case h.notify <- msg:
	case <-h.ctx.Done():
	default:
		log.Printf("Notifier queue full; UI clients will catch up by polling")
	}
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and message fan-out. This method should be called in a
// separate goroutine as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil UI client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("UI client attached from %s. Total clients: %d", client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				close(client.send)
				log.Printf("UI client detached from %s. Total clients: %d", client.addr, clientCount)
			} else {
				h.mutex.Unlock()
			}

		case msg := <-h.notify:
			h.fanOut(msg)
		}
	}
}

// fanOut pushes one inbox message to every attached UI socket and drops the
// clients whose send buffers are full.
func (h *Hub) fanOut(msg protocol.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error encoding notification: %v", err)
		return
	}

	clients := h.clientSnapshot()
	var clientsToRemove []*UIClient
	for _, client := range clients {
		if !h.safeSend(client, payload) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	h.removeFailedClients(clientsToRemove)
}

func (h *Hub) safeSend(client *UIClient, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// clientSnapshot returns a thread-safe snapshot of all attached clients.
func (h *Hub) clientSnapshot() []*UIClient {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*UIClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// removeFailedClients removes clients that failed to receive notifications
// and closes their channels.
func (h *Hub) removeFailedClients(clientsToRemove []*UIClient) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("UI client from %s removed due to full send buffer", client.addr)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients closes all attached UI connections.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all UI client connections...")

	h.mutex.Lock()
	clients := make([]*UIClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing UI connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d UI client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// goroutines to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating notifier shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Notifier shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Notifier shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
