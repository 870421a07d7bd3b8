package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"direct-chat/internal/models"
	"direct-chat/internal/observability"
)

const writeTimeout = 10 * time.Second

// Relay fans hub events out to every instance, including this one.
type Relay interface {
	Publish(event models.ChatEvent) error
}

// Hub maintains active websocket rooms keyed by chat id.
type Hub struct {
	chatRooms    map[string]map[*websocket.Conn]bool
	chatConnInfo map[string]map[*websocket.Conn]ConnInfo
	mu           sync.RWMutex
	writeMu      sync.Mutex
	relay        Relay
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		chatRooms:    make(map[string]map[*websocket.Conn]bool),
		chatConnInfo: make(map[string]map[*websocket.Conn]ConnInfo),
	}
}

// SetRelay routes broadcasts through relay. Local delivery then happens when
// the relay hands the event back through Deliver.
func (h *Hub) SetRelay(relay Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = relay
}

// AddChatClient registers a websocket connection to a chat room.
func (h *Hub) AddChatClient(chatID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chatRooms[chatID]; !ok {
		h.chatRooms[chatID] = make(map[*websocket.Conn]bool)
	}
	h.chatRooms[chatID][conn] = true
	if _, ok := h.chatConnInfo[chatID]; !ok {
		h.chatConnInfo[chatID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.chatConnInfo[chatID][conn] = info
}

// RemoveChatClient removes a chat websocket connection.
func (h *Hub) RemoveChatClient(chatID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.chatRooms[chatID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.chatRooms, chatID)
		}
	}
	if infos, ok := h.chatConnInfo[chatID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.chatConnInfo, chatID)
		}
	}
}

// ClientCount reports the connections subscribed to a chat on this instance.
func (h *Hub) ClientCount(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chatRooms[chatID])
}

// BroadcastChatMessage sends a new message to all clients of the chat.
func (h *Hub) BroadcastChatMessage(chatID string, msg models.Message) {
	h.dispatch(models.ChatEvent{Type: models.EventMessage, ChatID: chatID, Message: &msg})
}

// BroadcastRead tells clients of the chat that readerID read count messages.
func (h *Hub) BroadcastRead(chatID, readerID string, count int) {
	h.dispatch(models.ChatEvent{Type: models.EventRead, ChatID: chatID, ReaderID: readerID, Count: count})
}

func (h *Hub) dispatch(event models.ChatEvent) {
	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()

	if relay != nil {
		err := relay.Publish(event)
		if err == nil {
			return
		}
		log.Printf("ws relay publish failed chat_id=%s err=%v, delivering locally", event.ChatID, err)
	}
	h.Deliver(event)
}

// Deliver writes the event to the clients connected to this instance.
func (h *Hub) Deliver(event models.ChatEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.chatRooms[event.ChatID]))
	for conn := range h.chatRooms[event.ChatID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws event marshal failed chat_id=%s err=%v", event.ChatID, err)
		return
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			h.publishWSError(event.ChatID, conn, err)
			conn.Close()
			h.RemoveChatClient(event.ChatID, conn)
			continue
		}
		observability.IncWSEvent("ws_" + event.Type)
	}
}

func (h *Hub) publishWSError(chatID string, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(chatID, conn)
	if !ok {
		return
	}

	observability.IncWSEvent("ws_error")
	_ = observability.PublishEvent(context.Background(), wsRoutingKey, wsEnvelope("ws_error", chatID, info, err.Error()))
}

func (h *Hub) getConnInfo(chatID string, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.chatConnInfo[chatID]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}

const wsRoutingKey = "ws_events.chats"

func wsEnvelope(event, chatID string, info ConnInfo, reason string) observability.EventEnvelope {
	return observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		RequestID: info.RequestID,
		TraceID:   info.TraceID,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "chat",
				"resource_id": chatID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}
}
