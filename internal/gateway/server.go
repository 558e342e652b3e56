// Package gateway implements the Vargos message-bus server: service
// registration, RPC dispatch, and topic-based event publish/subscribe
// over a WebSocket transport (spec §4.6-§4.8, §4.13).
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/vargos/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Config tunes the server's HTTP listener and per-connection queue
// sizing (spec §5.8/§5.13).
type Config struct {
	Addr                    string
	SubscriberQueueSize     int
	SubscriberHighWaterMark int
}

// registerParams is the payload of the _register method, sent by a
// service immediately after dialing (spec's ServiceRegistration).
type registerParams struct {
	Service       string   `json:"service"`
	Version       string   `json:"version"`
	Methods       []string `json:"methods"`
	Events        []string `json:"events"`
	Subscriptions []string `json:"subscriptions"`
}

// Server is the Gateway's WebSocket listener: it upgrades every
// connection, registers services on request, routes RPC frames through
// the Dispatcher, and fans out Events through the EventBus.
type Server struct {
	cfg      Config
	registry *Registry
	bus      *EventBus
	dispatch *Dispatcher
	httpSrv  *http.Server
	log      *slog.Logger
}

// NewServer builds a Server. An empty cfg.Addr defaults to ":8090".
func NewServer(cfg Config, log *slog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{cfg: cfg, log: log}
	s.registry = NewRegistry()
	s.bus = NewEventBus(s.dropSubscriber)
	s.dispatch = NewDispatcher(s.registry, DefaultDispatchTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/", s.handleWebSocket)

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  0, // WebSocket connections are long-lived
		WriteTimeout: 0,
	}
	return s
}

// Registry exposes the service registry, e.g. for an in-process method
// handler that needs to publish events under its own service name.
func (s *Server) Registry() *Registry { return s.registry }

// Bus exposes the event bus for in-process publishers.
func (s *Server) Bus() *EventBus { return s.bus }

// Handler returns the server's HTTP handler, for tests that want to
// drive it through httptest.NewServer instead of a real listener.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"status":"ready","services":%d}`, len(s.registry.Names()))))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(uuid.NewString(), conn, s.cfg.SubscriberQueueSize, s.cfg.SubscriberHighWaterMark)
	s.readLoop(client)
}

func (s *Server) readLoop(client *Client) {
	defer s.onDisconnect(client)

	for {
		_, data, err := client.ReadMessage()
		if err != nil {
			return
		}

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			if ep, ok := err.(*protocol.ErrorPayload); ok {
				client.Enqueue(protocol.NewErrorResponse("", ep.Code, ep.Message))
			}
			continue
		}

		switch f := frame.(type) {
		case *protocol.RequestFrame:
			s.handleRequest(client, f)
		case *protocol.ResponseFrame:
			s.dispatch.Resolve(f)
		case *protocol.EventFrame:
			// Clients don't publish raw Event frames directly; services
			// publish through the in-process EventBus.Publish API instead.
			s.log.Debug("ignoring client-originated event frame", "source", f.Source, "event", f.Event)
		}
	}
}

func (s *Server) handleRequest(client *Client, req *protocol.RequestFrame) {
	if req.Method == protocol.MethodRegister {
		s.handleRegister(client, req)
		return
	}
	if client.Name == "" {
		client.Enqueue(protocol.NewErrorResponse(req.ID, protocol.ErrProtocolError, "only _register is accepted before registration"))
		return
	}
	if err := s.dispatch.Route(client, req); err != nil {
		client.Enqueue(protocol.NewErrorResponse(req.ID, protocol.ErrInternal, err.Error()))
	}
}

func (s *Server) handleRegister(client *Client, req *protocol.RequestFrame) {
	var params registerParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Service == "" {
		client.Enqueue(protocol.NewErrorResponse(req.ID, protocol.ErrValidation, "malformed registration"))
		return
	}

	if err := s.registry.Register(params.Service, client); err != nil {
		client.Enqueue(protocol.NewErrorResponse(req.ID, protocol.ErrAlreadyRegistered, err.Error()))
		return
	}
	client.Name = params.Service

	for _, topic := range params.Subscriptions {
		source, event := splitTopic(topic)
		s.bus.Subscribe(client, source, event)
	}

	s.log.Info("service registered", "service", params.Service, "methods", params.Methods)
	client.Enqueue(protocol.NewOKResponse(req.ID, map[string]string{"service": params.Service}))
}

func (s *Server) onDisconnect(client *Client) {
	client.Close()
	s.bus.RemoveClient(client)
	if client.Name != "" {
		s.registry.Deregister(client.Name)
		s.dispatch.CancelForService(client.Name)
		s.log.Info("service disconnected", "service", client.Name)
	}
}

func (s *Server) dropSubscriber(c *Client, reason string) {
	s.log.Warn("dropping backpressured subscriber", "client", c.ID, "service", c.Name, "reason", reason)
	s.onDisconnect(c)
}

// splitTopic parses a "source.event" subscription string into its two
// parts. A topic with no separator is treated as (topic, "*").
func splitTopic(topic string) (source, event string) {
	for i := 0; i < len(topic); i++ {
		if topic[i] == '.' {
			return topic[:i], topic[i+1:]
		}
	}
	return topic, "*"
}

// Start runs the HTTP/WebSocket listener until ctx is cancelled, then
// gracefully shuts it down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gateway listening", "addr", s.cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
