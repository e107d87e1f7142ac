// Package web serves the dashboard API: scan submission, scan history
// and a websocket live feed.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/history"
)

// Server is the HTTP gateway.
type Server struct {
	listenAddr string
	service    *core.TriageService
	store      *history.Store
	hub        *Hub
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates the HTTP gateway
func NewServer(listenAddr string, service *core.TriageService, store *history.Store, hub *Hub, logger *zap.Logger) *Server {
	return &Server{
		listenAddr: listenAddr,
		service:    service,
		store:      store,
		hub:        hub,
		logger:     logger,
	}
}

type urlScanRequest struct {
	URL string `json:"url"`
}

type emailScanRequest struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Start runs the server until Stop is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/scan/url", s.handleScanURL)
	mux.HandleFunc("/api/v1/scan/email", s.handleScanEmail)
	mux.HandleFunc("/api/v1/scans", s.handleListScans)
	mux.HandleFunc("/api/v1/scans/", s.handleGetScan)
	mux.HandleFunc("/ws", s.hub.ServeWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.server = &http.Server{
		Addr:         s.listenAddr,
		Handler:      withCORS(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("HTTP gateway starting", zap.String("address", s.listenAddr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	s.hub.Close()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleScanURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req urlScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.service.ScanURL(r.Context(), req.URL)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
			return
		}
		s.logger.Error("URL scan failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "scan failed"})
		return
	}

	s.record(history.KindURL, req.URL, result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleScanEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req emailScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	email := &core.Email{
		From:    req.Sender,
		Subject: req.Subject,
		Body:    req.Content,
	}
	result, err := s.service.ScanEmail(r.Context(), email)
	if err != nil {
		s.logger.Error("Email scan failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "scan failed"})
		return
	}

	s.record(history.KindEmail, req.Sender, result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/scans/")
	record, ok := s.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "scan not found"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// record stores the result and pushes it to the live feed.
func (s *Server) record(kind, target string, result *core.ClassificationResult) {
	s.store.Add(kind, target, result)
	s.hub.Broadcast(&history.Record{Kind: kind, Target: target, ClassificationResult: result})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
