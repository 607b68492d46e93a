// Package notify runs a small localhost HTTP listener that accepts
// download requests pushed from outside the process, such as a browser
// extension forwarding a link.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Request is the payload a sender posts to the listener.
type Request struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// AddFunc enqueues a download and returns its ID.
type AddFunc func(url, outputPath string) (string, error)

type Listener struct {
	addr   string
	add    AddFunc
	server *http.Server
}

func NewListener(addr string, add AddFunc) *Listener {
	l := &Listener{addr: addr, add: add}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)
	r.Post("/", l.handleDownload)
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	l.server = &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	return l
}

// Handler exposes the router for tests.
func (l *Listener) Handler() http.Handler {
	return l.server.Handler
}

func (l *Listener) Start() error {
	log.Info().Str("op", "notify/listener").Msgf("Listening for download requests on %s", l.addr)
	err := l.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (l *Listener) Stop(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}

func (l *Listener) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Type != "" && req.Type != "download" {
		http.Error(w, "unknown request type", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}
	id, err := l.add(req.URL, req.Filename)
	if err != nil {
		log.Error().Str("op", "notify/listener").Err(err).Msgf("Error adding download for %s", req.URL)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	log.Info().Str("op", "notify/listener").Msgf("Accepted download request for %s (%s)", req.URL, id)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "id": id})
}

// cors lets browser extensions post to the listener from any origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
