package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/metrics"
)

// EventFrame is the JSON frame pushed to WebSocket clients for every bridge
// event. Amount is a decimal string.
type EventFrame struct {
	Type       string    `json:"type"`
	User       string    `json:"user"`
	Amount     string    `json:"amount"`
	Nonce      uint64    `json:"nonce"`
	ChainID    uint64    `json:"chain_id"`
	TransferID string    `json:"transfer_id"`
	EmittedAt  time.Time `json:"emitted_at"`
}

// WebSocketHub broadcasts bridge events to connected WebSocket clients. It
// implements bridge.Publisher so the endpoint can treat it as just another
// event sink.
type WebSocketHub struct {
	mu      sync.RWMutex
	clients map[string]chan []byte
}

func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients: make(map[string]chan []byte),
	}
}

// Register adds a client and returns its outbound channel. The caller owns
// the read/write loops; the hub only feeds the channel.
func (h *WebSocketHub) Register(clientID string) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[clientID] = ch
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(count))
	log.Printf("📡 [WebSocket] client connected: %s (total %d)", clientID, count)
	return ch
}

// Unregister removes a client and closes its channel.
func (h *WebSocketHub) Unregister(clientID string) {
	h.mu.Lock()
	if ch, ok := h.clients[clientID]; ok {
		delete(h.clients, clientID)
		close(ch)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(count))
	log.Printf("📡 [WebSocket] client disconnected: %s (total %d)", clientID, count)
}

// Publish implements bridge.Publisher. Slow clients are skipped rather than
// blocking the operation path.
func (h *WebSocketHub) Publish(ctx context.Context, event bridge.Event) error {
	frame := EventFrame{
		Type:       string(event.Type),
		User:       event.User,
		Amount:     event.Amount.String(),
		Nonce:      event.Nonce,
		ChainID:    event.ChainID,
		TransferID: event.TransferID.Hex(),
		EmittedAt:  event.EmittedAt,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for clientID, ch := range h.clients {
		select {
		case ch <- data:
		default:
			log.Printf("⚠️ [WebSocket] client %s send buffer full, dropping %s event", clientID, event.Type)
		}
	}
	return nil
}
