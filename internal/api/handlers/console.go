package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/cogserver/internal/request"
	"github.com/Harshitk-cp/cogserver/internal/server"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
	sendBuffer     = 64
)

// ConsoleHandler runs interactive sessions over a websocket: every text
// message is a command line and every answer comes back as a text message.
type ConsoleHandler struct {
	srv      *server.Server
	proc     *request.Processor
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewConsoleHandler(srv *server.Server, proc *request.Processor, logger *zap.Logger) *ConsoleHandler {
	return &ConsoleHandler{
		srv:    srv,
		proc:   proc,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 2048,
		},
	}
}

func (h *ConsoleHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("console upgrade failed", zap.Error(err))
		return
	}

	s := &session{
		conn:   conn,
		send:   make(chan string, sendBuffer),
		done:   make(chan struct{}),
		logger: h.logger.With(zap.String("remote_addr", r.RemoteAddr)),
	}
	s.logger.Info("console session opened")

	s.wg.Add(1)
	go s.writePump()
	s.readPump(h.srv, h.proc)

	close(s.done)
	s.wg.Wait()
	_ = conn.Close()
	s.logger.Info("console session closed")
}

type session struct {
	conn   *websocket.Conn
	send   chan string
	done   chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// CallBack is called from the cognitive loop and from bulk operations. It
// never blocks: answers for a closed or backed-up session are dropped.
func (s *session) CallBack(msg string) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.send <- msg:
	default:
		s.logger.Warn("console answer dropped", zap.Int("bytes", len(msg)))
	}
}

func (s *session) readPump(srv *server.Server, proc *request.Processor) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("console read failed", zap.Error(err))
			}
			return
		}
		line := strings.TrimSpace(string(data))
		switch line {
		case "":
			continue
		case "exit":
			s.CallBack("Goodbye")
			return
		}
		srv.PushRequest(proc.Command(line, s))
	}
}

func (s *session) writePump() {
	defer s.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.send:
			if err := s.write(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			for {
				select {
				case msg := <-s.send:
					if err := s.write(websocket.TextMessage, []byte(msg)); err != nil {
						return
					}
				default:
					closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
					_ = s.conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(writeWait))
					return
				}
			}
		}
	}
}

func (s *session) write(kind int, data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(kind, data)
}
