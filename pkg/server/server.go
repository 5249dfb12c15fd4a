package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"evmxfer/pkg/models"
	"evmxfer/pkg/wallet"
	"evmxfer/pkg/walleterr"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes a Controller over HTTP and streams its events over websockets.
type Server struct {
	ctrl    *wallet.Controller
	logger  *log.Logger
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	mux     *http.ServeMux
}

// NewServer registers the API routes for c.
func NewServer(c *wallet.Controller, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		ctrl:    c,
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/networks", s.handleNetworks)
	s.mux.HandleFunc("POST /api/connect", s.handleConnect)
	s.mux.HandleFunc("POST /api/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("POST /api/network", s.handleNetwork)
	s.mux.HandleFunc("POST /api/token", s.handleToken)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/transfer", s.handleTransfer)
	s.mux.HandleFunc("/ws", s.handleWS)
}

// Handler exposes the routes, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves on port until ctx is done.
func (s *Server) Start(ctx context.Context, port int) error {
	go s.listenToController(ctx, s.ctrl.Subscribe())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("API server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(c walleterr.Category) int {
	switch c {
	case walleterr.Invalid, walleterr.Unsupported:
		return http.StatusBadRequest
	case walleterr.RequestAlreadyPending:
		return http.StatusConflict
	case walleterr.UserRejected, walleterr.OriginBlocked:
		return http.StatusForbidden
	case walleterr.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	ce := walleterr.Classify(err)
	s.logger.Debug("request failed", "category", ce.Category, "err", ce.Message)
	writeJSON(w, statusFor(ce.Category), ce)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return walleterr.New(walleterr.Invalid, "Malformed request body.")
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleNetworks(w http.ResponseWriter, r *http.Request) {
	reg := s.ctrl.Registry()
	type entry struct {
		models.NetworkDescriptor
		Tokens []models.TokenDescriptor `json:"tokens"`
	}
	var out []entry
	for _, n := range reg.Networks() {
		out = append(out, entry{NetworkDescriptor: n, Tokens: reg.TokensFor(n.ID)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ctrl.Connect(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Disconnect()
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Network string `json:"network"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ctrl.ChangeNetwork(r.Context(), body.Network); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol string `json:"symbol"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ctrl.SetToken(r.Context(), body.Symbol); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind models.BalanceKind `json:"kind"`
	}
	if r.ContentLength != 0 {
		if err := decode(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
	}
	var err error
	switch body.Kind {
	case models.BalanceNative:
		err = s.ctrl.RefreshNative(r.Context())
	case models.BalanceToken:
		err = s.ctrl.RefreshToken(r.Context())
	case "":
		err = s.ctrl.Refresh(r.Context())
	default:
		err = walleterr.New(walleterr.Invalid, "Unknown balance kind: %s", body.Kind)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	receipt, err := s.ctrl.Transfer(r.Context(), body.Recipient, body.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// Send initial state before registering so writes never interleave.
	s.mu.Lock()
	err = conn.WriteJSON(map[string]interface{}{
		"type": "initial",
		"data": s.ctrl.State(),
	})
	if err == nil {
		s.clients[conn] = true
	}
	s.mu.Unlock()
	if err != nil {
		return
	}

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToController(ctx context.Context, sub wallet.Subscriber) {
	defer s.ctrl.Unsubscribe(sub)

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(event)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) broadcast(event wallet.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
