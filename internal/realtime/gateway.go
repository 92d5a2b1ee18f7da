package realtime

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/metrics"
	"github.com/yourorg/pairchat/internal/models"
)

// Wire events pushed to clients.
const (
	EventOnlineUsers = "online-users"
	EventNewMessage  = "new-message"
)

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type Options struct {
	PingInterval   time.Duration
	WriteDeadline  time.Duration
	MaxMessageSize int64
	SendBufferSize int
}

// Gateway owns the connection lifecycle: handshake, registration, presence
// broadcasts, relay, disconnect cleanup. Nothing outside this package touches
// the registry maps directly.
type Gateway struct {
	reg *Registry
	log *zap.SugaredLogger
	opt Options
}

func NewGateway(log *zap.SugaredLogger, opt Options) *Gateway {
	if opt.SendBufferSize == 0 {
		opt.SendBufferSize = 256
	}
	return &Gateway{
		reg: NewRegistry(),
		log: log,
		opt: opt,
	}
}

// HandleWS runs one connection from handshake to disconnect. The userId query
// parameter is optional: absent or blank means the connection proceeds
// anonymously, excluded from the registry and from relay.
func (g *Gateway) HandleWS() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		userID := strings.TrimSpace(conn.Query("userId"))
		c := newClient(conn, uuid.New().String(), userID, g.opt.SendBufferSize)

		g.reg.Register(c)
		metrics.WSConnections.Inc()
		metrics.OnlineUsers.Set(float64(g.reg.OnlineCount()))
		g.log.Infow("ws connected", "connId", c.ID(), "userId", userID)
		g.Announce()

		go c.writePump(g.opt.PingInterval, g.opt.WriteDeadline)

		conn.SetReadLimit(g.opt.MaxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(2 * g.opt.PingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * g.opt.PingInterval))
		})

		// The server only pushes; inbound frames are drained so the close
		// notification surfaces here, exactly once.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		g.reg.Unregister(c)
		c.close()
		metrics.WSConnections.Dec()
		metrics.OnlineUsers.Set(float64(g.reg.OnlineCount()))
		g.log.Infow("ws disconnected", "connId", c.ID(), "userId", userID)
		g.Announce()
	}
}

// Announce pushes the full current online-user set to every live connection.
// Always full state, never a delta. Best effort: a push that fails for one
// connection does not affect the others. The returned delivered count exists
// for observability; callers ignore it.
func (g *Gateway) Announce() int {
	ids := g.reg.OnlineUserIDs()
	conns := g.reg.Connections()

	b, err := json.Marshal(envelope{Event: EventOnlineUsers, Data: ids})
	if err != nil {
		return 0
	}

	delivered := 0
	for _, c := range conns {
		if err := c.Push(b); err != nil {
			g.log.Debugw("presence push dropped", "connId", c.ID())
			continue
		}
		delivered++
	}
	metrics.PresenceBroadcasts.Inc()
	return delivered
}

// Relay pushes a persisted message to its recipient's connection, if the
// recipient is currently registered. Fire-and-forget: no ack, no retry, no
// queueing. Callers must invoke this only after the message has been durably
// stored, and are documented to ignore the returned delivery flag.
func (g *Gateway) Relay(m *models.Message) bool {
	c, ok := g.reg.Lookup(m.RecipientID)
	if !ok {
		// Recipient offline: the message is already persisted and shows up on
		// their next history fetch.
		return false
	}
	b, err := json.Marshal(envelope{Event: EventNewMessage, Data: m})
	if err != nil {
		return false
	}
	if err := c.Push(b); err != nil {
		g.log.Warnw("relay push dropped", "recipientId", m.RecipientID, "connId", c.ID())
		return false
	}
	metrics.MessagesRelayed.Inc()
	g.log.Debugw("message relayed", "messageId", m.ID.Hex(), "recipientId", m.RecipientID)
	return true
}
