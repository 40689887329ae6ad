package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raphi011/gauntlet/internal/html"
	"github.com/raphi011/gauntlet/internal/model"
)

type MalformedRequestError struct {
	param string
}

func (e MalformedRequestError) Error() string {
	return "malformed request param: " + e.param
}

// Server serves the snapshots of a Cache and the prometheus metrics.
type Server struct {
	cache  *Cache
	router *httprouter.Router
	log    *slog.Logger
}

func NewServer(cache *Cache, log *slog.Logger) *Server {
	s := &Server{cache: cache, router: httprouter.New(), log: log}

	s.router.GET("/", s.GetRunHTML)
	s.router.GET("/run", s.GetRun)
	s.router.GET("/cases/:case-id", s.GetCase)
	s.router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("shutting down status server", "error", err)
		}
	}()

	s.log.Info("status server listening", "addr", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) GetRun(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	run, err := s.cache.Run()
	if err != nil {
		s.httpError(w, err)
		return
	}

	s.writeResponse(w, run)
}

func (s *Server) GetRunHTML(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	run, err := s.cache.Run()
	if err != nil {
		s.httpError(w, err)
		return
	}

	cases, err := s.cache.Cases()
	if err != nil {
		s.httpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := html.RenderRun(html.RunPage{Run: run, Cases: cases}, w); err != nil {
		s.log.Warn("rendering run page", "error", err)
	}
}

func (s *Server) GetCase(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id, err := strconv.ParseUint(p.ByName("case-id"), 10, 64)
	if err != nil {
		s.httpError(w, MalformedRequestError{param: "case-id"})
		return
	}

	cs, err := s.cache.Case(id)
	if err != nil {
		s.httpError(w, err)
		return
	}

	s.writeResponse(w, cs)
}

func (s *Server) httpError(w http.ResponseWriter, err error) {
	var notFound model.NotFoundError
	var malformedRequest MalformedRequestError

	if errors.As(err, &notFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	} else if errors.As(err, &malformedRequest) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
}

func (s *Server) writeResponse(w http.ResponseWriter, body any) {
	content, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err = w.Write(content); err != nil {
		s.log.Warn("error writing body", "error", err)
	}
}
