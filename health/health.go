// Package health serves the `GET /v1/health` endpoint: a mutex-guarded
// read of the records store's current size, optionally over TLS.
//
// Grounded on original_source/src/collector/ws.rs's `WebSocketListener`
// (warp-based, serving the same route and reply shape); re-expressed with
// chi, the teacher pack's router of choice.
package health

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// Reply is the `/v1/health` response body.
type Reply struct {
	CandidatesStored int    `json:"candidates_stored"`
	Ts               uint64 `json:"ts"`
}

// Store is the minimal read surface health needs from the records store:
// a length query, nothing else. Guarded by a mutex on the caller's side
// per the concurrency model's "shared handle... used only for length
// queries and never for mutation."
type Store interface {
	Len() int
}

// Config configures the listener; Cert/Key are optional, enabling TLS
// only when both are set.
type Config struct {
	ListenAddr string
	CertFile   string
	KeyFile    string
}

// Listener serves the health endpoint against a mutex-guarded Store.
type Listener struct {
	config Config
	mu     *sync.Mutex
	store  Store
	log    *logrus.Entry
}

// New builds a Listener. mu must be the same mutex callers take before
// mutating store.
func New(config Config, mu *sync.Mutex, store Store, log *logrus.Entry) *Listener {
	return &Listener{config: config, mu: mu, store: store, log: log}
}

func (l *Listener) router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}}))
	r.Get("/v1/health", l.handleHealth)
	r.NotFound(writePlainText(http.StatusNotFound, "Not Found"))
	r.MethodNotAllowed(writePlainText(http.StatusMethodNotAllowed, "Method Not Allowed"))
	return r
}

func (l *Listener) handleHealth(w http.ResponseWriter, r *http.Request) {
	ts, err := parseTimestamp(r)
	if err != nil {
		http.Error(w, "Invalid Body", http.StatusBadRequest)
		return
	}

	l.mu.Lock()
	count := l.store.Len()
	l.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(Reply{CandidatesStored: count, Ts: ts}); err != nil {
		l.log.WithError(err).Warn("failed to write health reply")
	}
}

func parseTimestamp(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("ts")
	if raw == "" {
		return uint64(time.Now().Unix()), nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

func writePlainText(status int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, message, status)
	}
}

// Run serves the health endpoint until ctx is canceled.
func (l *Listener) Run(ctx context.Context) error {
	server := &http.Server{Addr: l.config.ListenAddr, Handler: l.router()}

	errCh := make(chan error, 1)
	go func() {
		ln, err := net.Listen("tcp", l.config.ListenAddr)
		if err != nil {
			errCh <- err
			return
		}
		if l.config.CertFile != "" && l.config.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(l.config.CertFile, l.config.KeyFile)
			if err != nil {
				errCh <- err
				return
			}
			ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
		}
		errCh <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
