package realtime

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// EndpointConfig configures the websocket endpoint.
type EndpointConfig struct {
	// SendBuffer is the number of frames queued per session before new
	// frames are dropped.
	SendBuffer int
	// AllowedOrigins restricts the Origin header. Empty or "*" allows all.
	AllowedOrigins []string
}

// Endpoint upgrades HTTP requests to restaurant sessions.
type Endpoint struct {
	hub        *Hub
	upgrader   websocket.Upgrader
	sendBuffer int
	wg         sync.WaitGroup
}

// NewEndpoint creates an Endpoint registering sessions in hub.
func NewEndpoint(hub *Hub, cfg EndpointConfig) *Endpoint {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	origins := cfg.AllowedOrigins
	return &Endpoint{
		hub:        hub,
		sendBuffer: cfg.SendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 || slices.Contains(origins, "*") {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(origins, origin)
			},
		},
	}
}

// Serve upgrades the request and runs the session of restaurantID until
// the client disconnects or the session is replaced.
func (ep *Endpoint) Serve(w http.ResponseWriter, r *http.Request, restaurantID string) {
	lg := zctx.From(r.Context()).With(zap.String("restaurant_id", restaurantID))

	conn, err := ep.upgrader.Upgrade(w, r, nil)
	if err != nil {
		lg.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	s := newWSSession(conn, ep.sendBuffer)
	ep.hub.Register(restaurantID, s)
	lg.Info("Restaurant session connected")

	ep.wg.Add(1)
	go func() {
		defer ep.wg.Done()
		s.writeLoop(lg)
	}()

	s.readLoop()
	ep.hub.Unregister(s)
	s.Close()
	lg.Info("Restaurant session disconnected")
}

// Wait blocks until all session writers exit.
func (ep *Endpoint) Wait() {
	ep.wg.Wait()
}

type wsSession struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ Session = (*wsSession)(nil)

func newWSSession(conn *websocket.Conn, buffer int) *wsSession {
	return &wsSession{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (s *wsSession) Send(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *wsSession) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// readLoop discards client messages and keeps the read deadline fresh on
// pongs. It returns on any read error.
func (s *wsSession) readLoop() {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only writer of the connection. It closes the
// connection on exit, which also unblocks readLoop.
func (s *wsSession) writeLoop(lg *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				lg.Debug("Websocket write failed", zap.Error(err))
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		}
	}
}
