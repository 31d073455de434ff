package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/flybeeper/balises-backend/internal/metrics"
	"github.com/flybeeper/balises-backend/internal/models"
	"github.com/flybeeper/balises-backend/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Сообщения live-ленты
const (
	messageSnapshot = "snapshot"
	messageReadings = "readings"
)

type readingsMessage struct {
	Type     string            `json:"type"`
	Provider string            `json:"provider"`
	Time     time.Time         `json:"time"`
	Readings []*models.Reading `json:"readings"`
}

// WebSocketHandler рассылает измененные наблюдения подключенным клиентам
type WebSocketHandler struct {
	upgrader     websocket.Upgrader
	source       Source
	logger       *utils.Logger
	pingInterval time.Duration
	pongTimeout  time.Duration

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

// Client представляет WebSocket соединение
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	handler *WebSocketHandler

	// Фильтр по станциям, пустой = все станции
	mu       sync.RWMutex
	stations map[string]struct{}
}

// NewWebSocketHandler создает новый WebSocket handler
func NewWebSocketHandler(source Source, pingInterval, pongTimeout time.Duration, logger *utils.Logger) *WebSocketHandler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if pongTimeout <= pingInterval {
		pongTimeout = 2 * pingInterval
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		source:       source,
		logger:       logger.WithField("component", "websocket"),
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		clients:      make(map[*Client]struct{}),
	}
}

// HandleWebSocket обрабатывает WebSocket подключения
// GET /ws/v1/readings?stations=12,44
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to upgrade to WebSocket")
		return
	}

	client := &Client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		handler:  h,
		stations: parseStationFilter(c.QueryArray("stations")),
	}

	if !h.register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"client_ip": c.ClientIP(),
		"stations":  len(client.stations),
	}).Info("WebSocket client connected")

	go client.writePump()
	go client.readPump()

	// Начальный снимок текущих наблюдений
	client.sendReadings(messageSnapshot, h.source.Provider().Name(), h.source.Readings())
}

func (h *WebSocketHandler) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.WebSocketConnections.Inc()
	return true
}

// unregisterClient удаляет клиента из списка активных
func (h *WebSocketHandler) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.WebSocketConnections.Dec()
	h.logger.Debug("WebSocket client disconnected")
}

// BroadcastReadings рассылает измененные наблюдения.
// Сигнатура совпадает с service.ChangeListener.
func (h *WebSocketHandler) BroadcastReadings(providerName string, readings []*models.Reading) {
	if len(readings) == 0 {
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.sendReadings(messageReadings, providerName, readings)
	}
}

// ClientCount количество подключенных клиентов
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close отключает всех клиентов и запрещает новые подключения
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregisterClient(c)
	}
}

func parseStationFilter(values []string) map[string]struct{} {
	filter := make(map[string]struct{})
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				filter[id] = struct{}{}
			}
		}
	}
	return filter
}

// filter оставляет наблюдения станций из подписки клиента
func (c *Client) filter(readings []*models.Reading) []*models.Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.stations) == 0 {
		return readings
	}
	out := make([]*models.Reading, 0, len(readings))
	for _, r := range readings {
		if _, ok := c.stations[r.ID()]; ok {
			out = append(out, r)
		}
	}
	return out
}

// sendReadings ставит сообщение в очередь клиента. Медленный клиент,
// у которого очередь заполнена, отключается.
func (c *Client) sendReadings(kind, providerName string, readings []*models.Reading) {
	readings = c.filter(readings)
	if kind == messageReadings && len(readings) == 0 {
		return
	}
	if readings == nil {
		readings = []*models.Reading{}
	}

	data, err := json.Marshal(readingsMessage{
		Type:     kind,
		Provider: providerName,
		Time:     time.Now().UTC(),
		Readings: readings,
	})
	if err != nil {
		c.handler.logger.WithField("error", err).Error("Failed to marshal readings message")
		return
	}

	c.handler.mu.RLock()
	defer c.handler.mu.RUnlock()
	if _, ok := c.handler.clients[c]; !ok {
		return
	}

	select {
	case c.send <- data:
	default:
		c.handler.logger.Warn("WebSocket client too slow, disconnecting")
		metrics.WebSocketErrors.Inc()
		go c.handler.unregisterClient(c)
	}
}

// readPump обрабатывает входящие сообщения от клиента
func (c *Client) readPump() {
	defer func() {
		c.handler.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.handler.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.handler.pongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.handler.logger.WithField("error", err).Error("WebSocket read error")
				metrics.WebSocketErrors.Inc()
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(c.handler.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.handler.logger.WithField("error", err).Error("WebSocket write error")
				metrics.WebSocketErrors.Inc()
				return
			}
			metrics.WebSocketMessagesOut.WithLabelValues("readings").Inc()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketErrors.Inc()
				return
			}
			metrics.WebSocketMessagesOut.WithLabelValues("ping").Inc()
		}
	}
}

// handleMessage обрабатывает подписку клиента на станции:
// {"type":"subscribe","stations":["12","44"]}, пустой список = все станции
func (c *Client) handleMessage(message []byte) {
	var req struct {
		Type     string   `json:"type"`
		Stations []string `json:"stations"`
	}
	if err := json.Unmarshal(message, &req); err != nil || req.Type != "subscribe" {
		return
	}

	c.mu.Lock()
	c.stations = parseStationFilter(req.Stations)
	c.mu.Unlock()

	c.handler.logger.WithField("stations", len(req.Stations)).Debug("Client subscription updated")
}
