package ws

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"avocado.town/internal/protocol"
	"avocado.town/internal/sim/engine"
)

const (
	readLimit    = 64 * 1024
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
	pingEvery    = 25 * time.Second
)

// Engine is the part of the game loop a connection talks to.
type Engine interface {
	Connect() chan<- engine.ConnectRequest
	Inbox() chan<- engine.Inbound
	Leave() chan<- string
	Done() <-chan struct{}
}

type Options struct {
	// QueueSize bounds frames buffered per connection; a client that falls
	// further behind is disconnected.
	QueueSize int
	// AllowedOrigins lists accepted Origin hosts. Empty allows any origin.
	AllowedOrigins []string
}

type Server struct {
	eng  Engine
	log  *log.Logger
	opts Options

	upgrader websocket.Upgrader
}

func NewServer(eng Engine, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags|log.Lmicroseconds)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	s := &Server{
		eng:  eng,
		log:  logger,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, o := range s.opts.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(o), u.Host) {
			return true
		}
	}
	return false
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		connID := uuid.NewString()
		out := make(chan []byte, s.opts.QueueSize)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req := engine.ConnectRequest{
			ConnID: connID,
			Out:    out,
			// Called from the engine loop; it must not block.
			Close: func() { _ = conn.Close() },
		}
		select {
		case s.eng.Connect() <- req:
		case <-s.eng.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"), time.Now().Add(time.Second))
			return
		}

		// Writer goroutine.
		go func() {
			ping := time.NewTicker(pingEvery)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				case <-ping.C:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				}
			}
		}()

		// Reader loop.
		conn.SetReadLimit(readLimit)
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
		for {
			typ, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			if typ != websocket.TextMessage {
				continue
			}
			env, err := protocol.DecodeEnvelope(msg)
			if err != nil {
				continue
			}
			select {
			case s.eng.Inbox() <- engine.Inbound{ConnID: connID, Env: env}:
			case <-s.eng.Done():
				return
			}
		}

		// Cleanup.
		cancel()
		select {
		case s.eng.Leave() <- connID:
		case <-s.eng.Done():
		}
	}
}
