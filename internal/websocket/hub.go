package websocket

import "github.com/rs/zerolog/log"

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages for every client.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			log.Info().Str("username", client.Username).Int("total_clients", len(h.clients)).Msg("Console client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Info().Str("username", client.Username).Int("total_clients", len(h.clients)).Msg("Console client disconnected")
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Slow consumer; drop it rather than stall the console.
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	close(h.done)
}

// BroadcastLine queues a console line for every client. It never blocks the
// caller: when the queue is full the line is dropped for live viewers, who
// can still read it from the console history.
func (h *Hub) BroadcastLine(line string) {
	select {
	case h.Broadcast <- NewConsoleLineMessage(line):
	default:
		log.Debug().Msg("Console broadcast queue full, dropping line")
	}
}
