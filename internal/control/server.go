// Package control exposes a looper over HTTP.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/leandrodaf/midiloop/internal/looper"
	"github.com/leandrodaf/midiloop/sdk/contracts"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:8080"

const shutdownTimeout = 5 * time.Second

// ErrPathOutsideRoot is returned for save and load paths that leave the file root.
var ErrPathOutsideRoot = errors.New("path is outside the file root")

// Server routes HTTP requests to a looper's commands.
type Server struct {
	looper  contracts.Looper
	logger  contracts.Logger
	addr    string
	timeout time.Duration
	origins []string
	root    string
	limiter *rate.Limiter
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithCommandTimeout bounds how long a request waits for the looper.
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithAllowedOrigins lets browser pages from origins send commands. By default
// only same-origin pages and clients that send no Origin header are served.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithFileRoot confines save and load to dir. Relative paths are taken from
// it. The default is the working directory.
func WithFileRoot(dir string) Option {
	return func(s *Server) { s.root = dir }
}

// WithRateLimit caps commands at one per every interval with the given
// burst; requests over the limit get 429. Status reads are not limited.
func WithRateLimit(every time.Duration, burst int) Option {
	return func(s *Server) { s.limiter = rate.NewLimiter(rate.Every(every), burst) }
}

// New creates a server for l.
func New(l contracts.Looper, logger contracts.Logger, opts ...Option) *Server {
	s := &Server{
		looper:  l,
		logger:  logger,
		addr:    DefaultAddr,
		timeout: 5 * time.Second,
		root:    ".",
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type tempoRequest struct {
	Multiplier float64 `json:"multiplier"`
}

type fileRequest struct {
	Path string  `json:"path"`
	BPM  float64 `json:"bpm,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the routes wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/record", s.simple(contracts.CommandRecord)).Methods(http.MethodPost)
	router.HandleFunc("/overdub", s.simple(contracts.CommandOverdub)).Methods(http.MethodPost)
	router.HandleFunc("/play", s.simple(contracts.CommandPlay)).Methods(http.MethodPost)
	router.HandleFunc("/stop", s.simple(contracts.CommandStop)).Methods(http.MethodPost)
	router.HandleFunc("/clear", s.simple(contracts.CommandClear)).Methods(http.MethodPost)
	router.HandleFunc("/tempo", s.handleTempo).Methods(http.MethodPut)
	router.HandleFunc("/save", s.handleFile(contracts.CommandSave)).Methods(http.MethodPost)
	router.HandleFunc("/load", s.handleFile(contracts.CommandLoad)).Methods(http.MethodPost)
	router.HandleFunc("/slots/{index:[0-9]+}", s.handleSelect).Methods(http.MethodPut)

	handler := s.checkOrigin(router)
	if len(s.origins) == 0 {
		return handler
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(handler)
}

// checkOrigin rejects browser requests from pages that are neither same-origin
// nor allowed.
func (s *Server) checkOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || s.allowedOrigin(origin) {
			next.ServeHTTP(w, r)
			return
		}
		if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
			next.ServeHTTP(w, r)
			return
		}
		s.logger.Warn("Cross-origin request rejected",
			s.logger.Field().String("origin", origin),
			s.logger.Field().String("path", r.URL.Path))
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "origin not allowed"})
	})
}

func (s *Server) allowedOrigin(origin string) bool {
	for _, o := range s.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// decodeJSON reads an application/json body into v, answering the request
// itself when it cannot.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: "content type must be application/json"})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// resolvePath maps a requested path into the file root.
func (s *Server) resolvePath(path string) (string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("error resolving file root: %w", err)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideRoot, path)
	}
	return path, nil
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Control server listening", s.logger.Field().String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Control server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.looper.Status())
}

func (s *Server) simple(kind contracts.CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, contracts.Command{Kind: kind})
	}
}

func (s *Server) handleTempo(w http.ResponseWriter, r *http.Request) {
	var req tempoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.dispatch(w, r, contracts.Command{Kind: contracts.CommandTempo, Tempo: req.Multiplier})
}

func (s *Server) handleFile(kind contracts.CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fileRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Path == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "path is required"})
			return
		}
		path, err := s.resolvePath(req.Path)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.dispatch(w, r, contracts.Command{Kind: kind, Path: path, BPM: req.BPM})
	}
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid slot index"})
		return
	}
	s.dispatch(w, r, contracts.Command{Kind: contracts.CommandSelect, Index: index})
}

// dispatch sends cmd and answers with the resulting status.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, cmd contracts.Command) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many commands"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	if err := s.looper.Send(ctx, cmd); err != nil {
		s.logger.Warn("Command rejected",
			s.logger.Field().String("command", cmd.Kind.String()),
			s.logger.Field().Error("error", err))
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.looper.Status())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, looper.ErrLooperStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusUnprocessableEntity
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
