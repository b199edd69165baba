package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"parkingserver/internal/dto"
	"parkingserver/internal/logger"
	"parkingserver/internal/model"
)

const (
	writeTimeout = 5 * time.Second
	queueSize    = 16
)

// HubService fans detection updates out to connected dashboard viewers.
// Publishing never blocks the caller; messages are dropped when the queue is full.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger

	stateMu   sync.Mutex
	lastState []byte
	lastKey   string
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, queueSize),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then closes
// every client connection.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", total)

			if state := h.currentState(); state != nil {
				h.send(client, state)
			}

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			for _, client := range h.snapshotClients() {
				h.send(client, message)
			}
		}
	}
}

// Register adds a viewer. It returns false when the hub is not running.
func (h *HubService) Register(client *websocket.Conn) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes and closes a viewer.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// PublishState queues a state message when occupancy, camera health or the
// error differ from the last published state.
func (h *HubService) PublishState(st model.DetectionState) {
	msg := dto.NewStateMessage(st)
	key := stateKey(msg)

	h.stateMu.Lock()
	if key == h.lastKey {
		h.stateMu.Unlock()
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.stateMu.Unlock()
		h.logger.Error("Failed to encode state message: %v", err)
		return
	}
	h.lastKey = key
	h.lastState = payload
	h.stateMu.Unlock()

	h.enqueue(payload)
}

// PublishPreview queues an annotated JPEG frame for viewers.
func (h *HubService) PublishPreview(jpeg []byte) {
	if h.GetClientCount() == 0 {
		return
	}
	payload, err := json.Marshal(dto.PreviewMessage{
		Type:  dto.MessagePreview,
		Image: base64.StdEncoding.EncodeToString(jpeg),
	})
	if err != nil {
		h.logger.Error("Failed to encode preview message: %v", err)
		return
	}
	h.enqueue(payload)
}

// GetClientCount returns the number of connected viewers.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *HubService) enqueue(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warning("Viewer queue full, dropping message")
	}
}

func (h *HubService) currentState() []byte {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.lastState
}

func (h *HubService) snapshotClients() []*websocket.Conn {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *HubService) send(client *websocket.Conn, message []byte) {
	client.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
		h.logger.Error("Error sending message: %v", err)
		h.remove(client)
	}
}

func (h *HubService) remove(client *websocket.Conn) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	total := len(h.clients)
	h.mutex.Unlock()

	if ok {
		client.Close()
		h.logger.Info("Viewer disconnected. Total: %d", total)
	}
}

func (h *HubService) closeAll() {
	for _, c := range h.snapshotClients() {
		h.remove(c)
	}
}

// stateKey ignores the frame timestamp so steady scenes are not re-sent every cycle.
func stateKey(msg dto.StateMessage) string {
	errText := ""
	if msg.Error != nil {
		errText = *msg.Error
	}
	key, _ := json.Marshal(struct {
		Slots    []int
		CameraOK bool
		Error    string
	}{msg.Slots, msg.CameraOK, errText})
	return string(key)
}
