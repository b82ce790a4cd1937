package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/room"
)

// ConnectionManager tracks websocket connections by player and delivers room events to them.
type ConnectionManager struct {
	// Connections organised by player id. A player may have several tabs open.
	players map[string]map[*Connection]bool
	mu      sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage

	// onLastClose runs after a player's final connection is gone.
	onLastClose func(playerID string)
}

// Connection is one websocket client.
type Connection struct {
	ID       string
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time
}

type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is an encoded frame and who it is for. A message with Target set is a reply
// to that one connection; otherwise it goes to every connection of each recipient.
type BroadcastMessage struct {
	RoomCode   string
	EventType  string
	Recipients []string
	Target     *Connection
	Data       []byte
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8192,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		players: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
		onLastClose: func(string) {},
	}
}

// OnLastClose registers the callback for a player losing their last connection.
func (cm *ConnectionManager) OnLastClose(fn func(playerID string)) {
	cm.onLastClose = fn
}

// Start delivers queued broadcasts until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Int("queue_size", cap(cm.broadcastCh)).Msg("room event fan-out running")

	for {
		select {
		case <-ctx.Done():
			log.Info().Int("pending", len(cm.broadcastCh)).Msg("room event fan-out stopped")
			return
		case msg := <-cm.broadcastCh:
			cm.handleBroadcast(msg)
		}
	}
}

// Notify implements room.Notifier. It only encodes and queues, so it is safe under a room lock.
func (cm *ConnectionManager) Notify(roomCode string, recipients []string, event room.Event) {
	if len(recipients) == 0 {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Msg("failed to marshal event for broadcast")
		return
	}
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomCode: roomCode, EventType: event.Type, Recipients: recipients, Data: data}:
	default:
		log.Warn().Str("room_code", roomCode).Str("event_type", event.Type).Msg("broadcast channel full, dropping message")
	}
}

// upgrade turns the request into a websocket for playerID and registers it.
func (cm *ConnectionManager) upgrade(w http.ResponseWriter, r *http.Request, playerID string) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.NewString(),
		PlayerID:    playerID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.registerConnection(connection)

	log.Info().
		Str("connection_id", connection.ID).
		Str("player_id", playerID).
		Msg("player socket opened")
	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.players[conn.PlayerID] == nil {
		cm.players[conn.PlayerID] = make(map[*Connection]bool)
	}
	cm.players[conn.PlayerID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("player_id", conn.PlayerID).
		Int("player_connections", len(cm.players[conn.PlayerID])).
		Msg("player connection added")
}

// unregisterConnection removes conn and closes its send channel. It is safe to call twice.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	connections, exists := cm.players[conn.PlayerID]
	if !exists || !connections[conn] {
		cm.mu.Unlock()
		return
	}
	delete(connections, conn)
	close(conn.Send)
	last := len(connections) == 0
	if last {
		delete(cm.players, conn.PlayerID)
	}
	cm.mu.Unlock()

	log.Info().
		Str("connection_id", conn.ID).
		Str("player_id", conn.PlayerID).
		Msg("player connection removed")

	if last {
		cm.onLastClose(conn.PlayerID)
	}
}

// sendTo queues a reply for one connection on the broadcast queue, behind any room events
// already raised by the request it answers. It reports false if the queue is full.
func (cm *ConnectionManager) sendTo(conn *Connection, data []byte) bool {
	select {
	case cm.broadcastCh <- BroadcastMessage{Target: conn, EventType: "reply", Data: data}:
		return true
	default:
		return false
	}
}

// whenOffline runs fn only if playerID has no live connection. New connections for the
// player wait until fn returns.
func (cm *ConnectionManager) whenOffline(playerID string, fn func()) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if len(cm.players[playerID]) > 0 {
		return false
	}
	fn()
	return true
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	var slow []*Connection
	delivered := 0

	deliver := func(conn *Connection) {
		select {
		case conn.Send <- message.Data:
			delivered++
		default:
			slow = append(slow, conn)
		}
	}

	// Sends happen under the read lock so no channel can be closed mid-send.
	cm.mu.RLock()
	if target := message.Target; target != nil {
		if cm.players[target.PlayerID][target] {
			deliver(target)
		}
	} else {
		for _, playerID := range message.Recipients {
			for conn := range cm.players[playerID] {
				deliver(conn)
			}
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("player_id", conn.PlayerID).
			Msg("player connection too slow, evicting")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", message.EventType).
		Str("room_code", message.RoomCode).
		Int("connections", delivered).
		Msg("room event delivered")
}

// ConnectionStats is a point-in-time count of live connections.
type ConnectionStats struct {
	TotalConnections int `json:"total_connections"`
	ConnectedPlayers int `json:"connected_players"`
	QueuedBroadcasts int `json:"queued_broadcasts"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	total := 0
	for _, connections := range cm.players {
		total += len(connections)
	}
	return ConnectionStats{
		TotalConnections: total,
		ConnectedPlayers: len(cm.players),
		QueuedBroadcasts: len(cm.broadcastCh),
	}
}

// writePump sends queued messages and keeps the connection alive with pings.
func (c *Connection) writePump() {
	cfg := c.Manager.config
	ping := time.NewTicker(cfg.PingInterval)
	defer func() {
		ping.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("write to player failed")
				return
			}

		case <-ping.C:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("ping failed")
				return
			}
		}
	}
}

// readPump hands every client message to handle until the connection fails.
func (c *Connection) readPump(handle func(c *Connection, message []byte)) {
	cfg := c.Manager.config
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("player socket closed unexpectedly")
			}
			break
		}

		handle(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}
