// Package remote exposes the dialogue to external input sources, such as a
// hand-tracking sidecar, over WebSocket. Clients send submit and choice
// commands; they receive every displayed line and the end of each session.
//
// Network goroutines never touch the engine. Inbound commands are queued on
// Commands() for the host loop, and bus events are forwarded to clients from
// the host loop's own goroutine.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/events"
)

// CommandType names an inbound command.
type CommandType string

const (
	CommandSubmit CommandType = "submit"
	CommandChoice CommandType = "choice"
)

// Command is one inbound message.
type Command struct {
	Type  CommandType `json:"type"`
	Index int         `json:"index"`
}

// Message is one outbound message.
type Message struct {
	Type    string   `json:"type"` // "display", "finished", "quest", "error"
	Line    string   `json:"line,omitempty"`
	Choices []string `json:"choices,omitempty"`
	Quest   string   `json:"quest,omitempty"`
	State   string   `json:"state,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Input is the host surface commands are applied to. *engine.Engine
// satisfies it.
type Input interface {
	Submit()
	SelectChoice(i int)
}

// Apply performs cmd against in. It must run on the host loop.
func Apply(cmd Command, in Input) {
	switch cmd.Type {
	case CommandSubmit:
		in.Submit()
	case CommandChoice:
		in.SelectChoice(cmd.Index)
	}
}

const commandBuffer = 64

// Server is the HTTP/WebSocket endpoint.
type Server struct {
	log      *slog.Logger
	router   *gin.Engine
	upgrader websocket.Upgrader
	commands chan Command

	mu      sync.Mutex
	clients map[*client]struct{}

	bus  *bus.Bus
	subs []bus.Subscription
}

// New builds a server with /ws and /healthz routes.
func New(log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		log:      log,
		router:   gin.New(),
		commands: make(chan Command, commandBuffer),
		clients:  map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Sidecars run locally and send no Origin header we could check.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router.Use(gin.Recovery())
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.router }

// Commands delivers inbound commands to the host loop.
func (s *Server) Commands() <-chan Command { return s.commands }

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Attach forwards dialogue and quest events from b to every client. Call it
// from the goroutine that owns b.
func (s *Server) Attach(b *bus.Bus) {
	s.Detach()
	s.bus = b
	s.subs = []bus.Subscription{
		bus.Subscribe(b, events.DisplayDialogueTopic, func(d events.DisplayDialogue) {
			msg := Message{Type: "display", Line: d.Line}
			for _, c := range d.Choices {
				msg.Choices = append(msg.Choices, c.Text)
			}
			s.Broadcast(msg)
		}),
		bus.Subscribe(b, events.DialogueFinishedTopic, func(events.DialogueFinished) {
			s.Broadcast(Message{Type: "finished"})
		}),
		bus.Subscribe(b, events.QuestStateChangedTopic, func(c events.QuestStateChanged) {
			if c.From != c.State {
				s.Broadcast(Message{Type: "quest", Quest: c.ID, State: c.State.String()})
			}
		}),
	}
}

// Detach stops forwarding bus events.
func (s *Server) Detach() {
	for _, sub := range s.subs {
		s.bus.Unsubscribe(sub)
	}
	s.subs = nil
}

// Broadcast queues msg for every client. Clients whose queue is full miss
// the message.
func (s *Server) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("encode broadcast", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.queue(data)
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("remote listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then disconnects every client.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("remote input listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeClients()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.ClientCount()})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	cl := newClient(conn)
	s.register(cl)
	s.log.Info("remote client connected", "addr", conn.RemoteAddr().String())

	go cl.writeLoop()
	s.readLoop(cl)

	s.unregister(cl)
	s.log.Info("remote client disconnected", "addr", conn.RemoteAddr().String())
}

func (s *Server) readLoop(cl *client) {
	for {
		var cmd Command
		if err := cl.conn.ReadJSON(&cmd); err != nil {
			var syntax *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntax) || errors.As(err, &typeErr) {
				s.reply(cl, Message{Type: "error", Error: "malformed message"})
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("remote read", "error", err)
			}
			return
		}

		switch cmd.Type {
		case CommandSubmit, CommandChoice:
		default:
			s.reply(cl, Message{Type: "error", Error: fmt.Sprintf("unknown command %q", cmd.Type)})
			continue
		}

		select {
		case s.commands <- cmd:
		default:
			s.log.Warn("remote command dropped, host loop is behind", "type", cmd.Type)
		}
	}
}

// reply queues msg for a single client if it is still registered.
func (s *Server) reply(cl *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[cl]; ok {
		cl.queue(data)
	}
}

func (s *Server) register(cl *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[cl] = struct{}{}
}

func (s *Server) unregister(cl *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[cl]; !ok {
		return
	}
	delete(s.clients, cl)
	cl.close()
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cl := range s.clients {
		delete(s.clients, cl)
		cl.close()
	}
}
