// This file implements the per-session progress broadcast hub. One logical
// channel exists per upload session id; clients subscribe by opening a
// websocket scoped to that id. Delivery is best-effort: if nobody is
// listening the event is dropped, and the session store retains the last
// snapshot for late joiners.

package websocket

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/panicsense/panicsense-go/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from the same origin; cross-origin subscribers
	// are not a concern for this deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type envelope struct {
	sessionID string
	data      []byte
	terminal  bool
}

// Hub maintains the set of active subscribers grouped by session id and
// routes snapshots to them.
type Hub struct {
	// Registered subscribers, keyed by session id. The registry has an
	// explicit lifecycle: rooms open on subscribe and close on the terminal
	// event or client disconnect.
	rooms map[string]map[*Client]bool

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan envelope, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes subscribe/unsubscribe/broadcast events. It must be started
// in its own goroutine before the hub is used.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			room, ok := h.rooms[client.sessionID]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[client.sessionID] = room
			}
			room[client] = true

		case client := <-h.unregister:
			if room, ok := h.rooms[client.sessionID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.send)
					if len(room) == 0 {
						delete(h.rooms, client.sessionID)
					}
				}
			}

		case msg := <-h.broadcast:
			room := h.rooms[msg.sessionID]
			for client := range room {
				select {
				case client.send <- msg.data:
				default:
					// Subscriber is not keeping up; drop it rather than
					// blocking the hub.
					delete(room, client)
					close(client.send)
				}
			}
			if msg.terminal {
				// Terminal events close the channel from the server side so
				// clients can treat "stream closed" as a secondary completion
				// signal.
				for client := range room {
					delete(room, client)
					close(client.send)
				}
				delete(h.rooms, msg.sessionID)
			}
		}
	}
}

// Publish sends a progress snapshot to every subscriber of the session. When
// the snapshot is terminal the hub closes all of the session's subscribers
// after delivering it.
func (h *Hub) Publish(sessionID string, snapshot models.ProgressSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("Failed to marshal progress snapshot for session %s: %v", sessionID, err)
		return
	}
	h.broadcast <- envelope{sessionID: sessionID, data: data, terminal: snapshot.IsTerminal()}
}

// CloseSession tears down a session's room without publishing anything, for
// explicit teardown paths such as dataset deletion.
func (h *Hub) CloseSession(sessionID string) {
	h.broadcast <- envelope{sessionID: sessionID, data: nil, terminal: true}
}

// ServeWs upgrades an HTTP request to a websocket subscription for one
// session id.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "sessionId query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket connection: %v", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 32),
		sessionID: sessionID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
