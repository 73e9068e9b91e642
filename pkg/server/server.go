package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-flowstore/pkg/interfaces/logger"
	iface "github.com/goliatone/go-flowstore/pkg/interfaces/store"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	entriesRoute    = "/v1/store-entries"
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// TokenVerifier decides whether a bearer token may use the store.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) bool
}

// StaticTokens accepts a fixed set of tokens.
type StaticTokens []string

func (s StaticTokens) Verify(_ context.Context, token string) bool {
	for _, candidate := range s {
		if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

// Server serves the store-entries API over an EntryRepository.
type Server struct {
	repo       iface.EntryRepository
	verifier   TokenVerifier
	logger     logger.Logger
	pathPrefix string
	router     *mux.Router
}

type Option func(*Server)

// WithTokenVerifier sets the bearer token check. Without one every request
// is rejected.
func WithTokenVerifier(v TokenVerifier) Option {
	return func(s *Server) {
		if v != nil {
			s.verifier = v
		}
	}
}

// WithLogger sets the access/error logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPathPrefix mounts the API under prefix, e.g. "/api".
func WithPathPrefix(prefix string) Option {
	return func(s *Server) {
		s.pathPrefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	}
}

// New builds the HTTP handler.
func New(repo iface.EntryRepository, opts ...Option) (*Server, error) {
	if repo == nil {
		return nil, errors.New("server: entry repository is required")
	}
	s := &Server{
		repo:     repo,
		verifier: StaticTokens(nil),
		logger:   &logger.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	root := mux.NewRouter()
	router := root
	if s.pathPrefix != "" {
		router = root.PathPrefix(s.pathPrefix).Subrouter()
	}
	router.Use(s.requestID, s.authenticate)
	router.HandleFunc(entriesRoute, s.handleGet).Methods(http.MethodGet)
	router.HandleFunc(entriesRoute, s.handlePut).Methods(http.MethodPost)
	router.HandleFunc(entriesRoute, s.handleDelete).Methods(http.MethodDelete)
	s.router = root
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := s.requireKey(w, r)
	if !ok {
		return
	}
	entry, err := s.repo.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, r, key, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	var entry iface.Entry
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("entry body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(body, &entry); err != nil {
		http.Error(w, "invalid entry: "+err.Error(), http.StatusBadRequest)
		return
	}
	stored, err := s.repo.Upsert(r.Context(), entry)
	if err != nil {
		s.writeError(w, r, entry.Key, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := s.requireKey(w, r)
	if !ok {
		return
	}
	if err := s.repo.Delete(r.Context(), key); err != nil {
		s.writeError(w, r, key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.URL.Query().Get("key")
	if strings.TrimSpace(key) == "" {
		http.Error(w, iface.ErrEmptyKey.Error(), http.StatusBadRequest)
		return "", false
	}
	return key, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, key string, err error) {
	switch {
	case errors.Is(err, iface.ErrNotFound):
		http.Error(w, fmt.Sprintf("entry %q not found", key), http.StatusNotFound)
	case errors.Is(err, iface.ErrEmptyKey), errors.Is(err, iface.ErrKeyTooLong):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("store entry operation failed",
			logger.Field{Key: "method", Value: r.Method},
			logger.Field{Key: "key", Value: key},
			logger.Field{Key: "request_id", Value: r.Header.Get(requestIDHeader)},
			logger.Field{Key: "error", Value: err},
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response failed", logger.Field{Key: "error", Value: err})
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("store request",
			logger.Field{Key: "method", Value: r.Method},
			logger.Field{Key: "path", Value: r.URL.Path},
			logger.Field{Key: "status", Value: rec.status},
			logger.Field{Key: "request_id", Value: id},
			logger.Field{Key: "duration", Value: time.Since(start)},
		)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || !s.verifier.Verify(r.Context(), token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Run serves handler on addr until ctx is cancelled.
func Run(ctx context.Context, addr string, handler http.Handler, lgr logger.Logger) error {
	lgr = logger.OrNop(lgr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lgr.Info("store server listening", logger.Field{Key: "addr", Value: addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		lgr.Info("store server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
