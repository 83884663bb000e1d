package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jcdickinson/phpdomain/internal/rpc"
)

type Server struct {
	svc        *Service
	logger     *slog.Logger
	socketPath string
	httpServer *http.Server
	listener   net.Listener

	mu         sync.Mutex
	expTimer   *time.Timer
	expiration time.Duration

	// exit is called once the server stopped on its own, after idle expiry
	// or a shutdown request.
	exit func()
}

func NewServer(svc *Service, socketPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	expSec := svc.Config().Daemon.ExpirationSeconds
	if expSec <= 0 {
		expSec = 600
	}
	return &Server{
		svc:        svc,
		logger:     logger,
		socketPath: socketPath,
		expiration: time.Duration(expSec) * time.Second,
		exit:       func() { os.Exit(0) },
	}
}

// Handler returns the HTTP routes of the daemon.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /build", s.withExpReset(s.handleBuild))
	mux.HandleFunc("POST /resolve", s.withExpReset(s.handleResolve))
	mux.HandleFunc("POST /parse", s.withExpReset(s.handleParse))
	mux.HandleFunc("POST /search", s.withExpReset(s.handleSearch))
	mux.HandleFunc("POST /objects", s.withExpReset(s.handleObjects))
	mux.HandleFunc("POST /object", s.withExpReset(s.handleObject))
	mux.HandleFunc("GET /namespaces", s.withExpReset(s.handleNamespaces))
	mux.HandleFunc("GET /status", s.withExpReset(s.handleStatus))
	mux.HandleFunc("POST /clear-cache", s.withExpReset(s.handleClearCache))
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	s.listener = listener
	s.httpServer = &http.Server{Handler: s.Handler()}

	s.mu.Lock()
	s.expTimer = time.AfterFunc(s.expiration, s.expire)
	s.mu.Unlock()

	s.logger.Info("daemon listening", "socket", s.socketPath, "root", s.svc.Config().Root, "expiration", s.expiration)

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("closing listener failed", "error", err)
			errs = append(errs, err)
		}
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("removing socket failed", "error", err)
		errs = append(errs, err)
	}
	if err := s.svc.Close(); err != nil {
		s.logger.Error("closing inventory failed", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) expire() {
	s.logger.Info("expiring due to inactivity")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	s.exit()
}

func (s *Server) resetExpiration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer.Reset(s.expiration)
	}
}

func (s *Server) withExpReset(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.resetExpiration()
		handler(w, r)
	}
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req rpc.BuildRequest
	if !decode(w, r, &req) {
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	var mu sync.Mutex
	enc := json.NewEncoder(w)
	send := func(line rpc.ProgressLine) {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(line); err != nil {
			s.logger.Debug("client disconnected", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	res, err := s.svc.Build(r.Context(), req.Force, func(msg string) {
		s.logger.Debug(msg)
		send(rpc.ProgressLine{Type: "progress", Message: msg})
	})
	if err != nil {
		s.logger.Error("build failed", "error", err)
		send(rpc.ProgressLine{Type: "error", Message: err.Error()})
		return
	}
	send(rpc.ProgressLine{Type: "result", Result: res})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req rpc.ResolveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "missing target")
		return
	}
	resp, err := s.svc.Resolve(r.Context(), req)
	reply(w, resp, err)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req rpc.ParseRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Parse(req))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req rpc.SearchRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	resp, err := s.svc.Search(r.Context(), req)
	reply(w, resp, err)
}

func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	var req rpc.ObjectsRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.svc.Objects(r.Context(), req)
	reply(w, resp, err)
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	var req rpc.ObjectRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.svc.Object(r.Context(), req.Name)
	if err == nil && resp.Object == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("object %s not found", req.Name))
		return
	}
	reply(w, resp, err)
}

func (s *Server) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.Namespaces(r.Context())
	reply(w, resp, err)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.ClearCache()
	reply(w, resp, err)
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		s.exit()
	}()
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func reply(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
