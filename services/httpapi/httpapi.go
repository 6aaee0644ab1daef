// Package httpapi is the HTTP listener in front of the node. It does no
// configuration work itself: every request is reduced to a protocol.Request,
// handed to the node's run loop, and the response is written back verbatim.
package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sensornode-go/services/protocol"
)

const (
	PathMetrics = "/metrics"

	DefaultAddr    = ":80"
	DefaultTimeout = 5 * time.Second
)

// Submitter runs a request on the node loop.
type Submitter interface {
	Submit(ctx context.Context, req protocol.Request) (protocol.Response, error)
}

type Server struct {
	node     Submitter
	gatherer prometheus.Gatherer
	log      *slog.Logger
	timeout  time.Duration
}

// New builds the adapter. A nil gatherer leaves /metrics to the node, which
// answers 404.
func New(node Submitter, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{node: node, gatherer: gatherer, log: log, timeout: DefaultTimeout}
}

// Router wires the configuration routes. Requests that match none of them
// still go to the node so that it stays the one place deciding on 404.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	if s.gatherer != nil {
		r.Handle(PathMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.HandleFunc(protocol.PathRoot, s.forward).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc(protocol.PathConfig, s.forward).Methods(http.MethodGet)
	r.HandleFunc(protocol.PathSensors, s.forward).Methods(http.MethodGet)
	r.HandleFunc(protocol.PathLogs, s.forward).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(s.forward)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.forward)
	return r
}

func (s *Server) forward(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, protocol.MaxBodyLen))
	if err != nil {
		s.log.Warn("request body read failed", "path", r.URL.Path, "err", err)
	}
	req := protocol.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   string(body),
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	resp, err := s.node.Submit(ctx, req)
	if err != nil {
		s.log.Warn("node did not answer", "method", r.Method, "path", r.URL.Path, "err", err)
		http.Error(w, "node busy", http.StatusServiceUnavailable)
		return
	}
	s.log.Debug("request served", "method", r.Method, "path", r.URL.Path, "status", resp.Status)
	write(w, resp)
}

func write(w http.ResponseWriter, resp protocol.Response) {
	h := w.Header()
	if resp.ContentType != "" {
		h.Set("Content-Type", resp.ContentType)
	}
	if resp.ContentType == protocol.ContentJSON {
		h.Set("Access-Control-Allow-Origin", "null")
	}
	if resp.Location != "" {
		h.Set("Location", resp.Location)
	}
	h.Set("Connection", "close")
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

// ListenAndServe serves on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: DefaultTimeout,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("http listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
