package realtime

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"zephyrm-backend/internal/config"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/security"
)

const maxInboundMessage = 512

// WSOptions tunes websocket channels. Zero values pick defaults.
type WSOptions struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// WSOptionsFromConfig converts the realtime section of the config.
func WSOptionsFromConfig(cfg config.RealtimeConfig) WSOptions {
	return WSOptions{
		SendBuffer:   cfg.SendBuffer,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		PingInterval: time.Duration(cfg.PingIntervalSeconds) * time.Second,
	}
}

func (o WSOptions) withDefaults() WSOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 50 * time.Second
	}
	return o
}

// pongWait is how long a peer may stay silent before the read pump gives up.
func (o WSOptions) pongWait() time.Duration {
	return o.PingInterval * 10 / 9
}

// WSChannel is a Channel backed by a websocket connection. Writes happen on
// a single pump goroutine fed by a buffered queue.
type WSChannel struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	opts WSOptions
}

func newWSChannel(conn *websocket.Conn, opts WSOptions) *WSChannel {
	return &WSChannel{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, opts.SendBuffer),
		done: make(chan struct{}),
		opts: opts,
	}
}

func (c *WSChannel) ID() string { return c.id }

func (c *WSChannel) Enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *WSChannel) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *WSChannel) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("Websocket write failed", "channelID", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump only services control frames; clients never send data that
// matters. It returns when the peer goes away.
func (c *WSChannel) readPump() {
	c.conn.SetReadLimit(maxInboundMessage)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.pongWait()))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Websocket closed unexpectedly", "channelID", c.id, "error", err)
			}
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS upgrades an authenticated request and registers the connection as
// one of the user's channels. The token is taken from the access_token query
// parameter since browsers cannot set headers on websocket requests.
func ServeWS(hub *Hub, tokens security.TokenManager, opts WSOptions) http.HandlerFunc {
	opts = opts.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("access_token")
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if token == "" {
			http.Error(w, "authentication token required", http.StatusUnauthorized)
			return
		}
		claims, err := tokens.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied.
			logger.Warn("Websocket upgrade failed", "userID", claims.UserID, "error", err)
			return
		}

		ch := newWSChannel(conn, opts)
		hub.Register(claims.UserID, ch)
		logger.Info("Websocket connected", "userID", claims.UserID, "channelID", ch.ID())

		go ch.writePump()
		go func() {
			ch.readPump()
			hub.Unregister(claims.UserID, ch.ID())
			logger.Info("Websocket disconnected", "userID", claims.UserID, "channelID", ch.ID())
		}()
	}
}
