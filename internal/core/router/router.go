package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/rectrel/internal/cache/keys"
	"github.com/mohammed-shakir/rectrel/internal/cache/resultcache"
	"github.com/mohammed-shakir/rectrel/internal/core/model"
	"github.com/mohammed-shakir/rectrel/internal/core/observability"
	"github.com/mohammed-shakir/rectrel/internal/engine"
	mylog "github.com/mohammed-shakir/rectrel/internal/logger"
	"github.com/mohammed-shakir/rectrel/internal/presenter"
)

var (
	ErrTooManyRectangles = errors.New("too many rectangles")
	ErrMissingPoint      = errors.New("missing required field: point")
	ErrBadBody           = errors.New("malformed request body")
)

// Request is the JSON body accepted by every /v1 endpoint.
type Request struct {
	Rectangles []model.Rectangle `json:"rectangles"`
	Point      *model.Point      `json:"point,omitempty"`
}

type Limits struct {
	MaxRectangles int
	MaxBodyBytes  int64
}

type Service struct {
	logger *slog.Logger
	eng    *engine.Engine
	cache  *resultcache.Cache
	limits Limits
}

// NewService wires the engine behind HTTP. cache may be nil.
func NewService(logger *slog.Logger, eng *engine.Engine, cache *resultcache.Cache, limits Limits) *Service {
	if limits.MaxRectangles <= 0 {
		limits.MaxRectangles = 10000
	}
	if limits.MaxBodyBytes <= 0 {
		limits.MaxBodyBytes = 8 << 20
	}
	return &Service{logger: logger, eng: eng, cache: cache, limits: limits}
}

// parsed request handed to each endpoint
type query struct {
	set   model.Set
	point *model.Point
	text  bool
}

type endpoint func(w http.ResponseWriter, r *http.Request, q query) error

// Mount registers the /v1 endpoints on r.
func (s *Service) Mount(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/enclosing", s.handle("/v1/enclosing", s.enclosing))
		r.Post("/non-overlapping", s.handle("/v1/non-overlapping", s.nonOverlapping))
		r.Post("/overlap-groups", s.handle("/v1/overlap-groups", s.overlapGroups))
		r.Post("/contained", s.handle("/v1/contained", s.contained))
		r.Post("/abutting", s.handle("/v1/abutting", s.abutting))
		r.Post("/analyze", s.handle("/v1/analyze", s.analyze))
	})
}

// handle decodes and validates the body, runs ep, and records the request
func (s *Service) handle(route string, ep endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
		}()

		q, err := s.ParseRequest(w, r)
		if err != nil {
			s.fail(sw, r, err)
			return
		}
		ctx := mylog.WithSetKey(r.Context(), keys.Short(q.set))
		r = r.WithContext(ctx)
		observability.ObserveSetSize(q.set.Len())

		if err := ep(sw, r, q); err != nil {
			s.fail(sw, r, err)
			return
		}
		s.logger.DebugContext(ctx, "query served", "route", route, "rects", q.set.Len())
	}
}

// ParseRequest reads the JSON body into a validated set and optional point.
func (s *Service) ParseRequest(w http.ResponseWriter, r *http.Request) (query, error) {
	body := http.MaxBytesReader(w, r.Body, s.limits.MaxBodyBytes)
	defer body.Close()

	var req Request
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return query{}, fmt.Errorf("%w: %w", ErrBadBody, err)
	}
	if len(req.Rectangles) > s.limits.MaxRectangles {
		return query{}, fmt.Errorf("%w: %d > %d", ErrTooManyRectangles, len(req.Rectangles), s.limits.MaxRectangles)
	}
	set, err := model.NewSet(req.Rectangles)
	if err != nil {
		return query{}, err
	}
	if req.Point != nil {
		if err := req.Point.Validate(); err != nil {
			return query{}, err
		}
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	return query{set: set, point: req.Point, text: format == "text"}, nil
}

func (s *Service) enclosing(w http.ResponseWriter, _ *http.Request, q query) error {
	if q.point == nil {
		return ErrMissingPoint
	}
	ids, err := s.eng.FindEnclosing(q.set, *q.point)
	if err != nil {
		return err
	}
	respond(w, q.text, presenter.IDs(ids), map[string]any{"ids": ids})
	return nil
}

func (s *Service) nonOverlapping(w http.ResponseWriter, _ *http.Request, q query) error {
	ids := s.eng.FindNonOverlapping(q.set)
	respond(w, q.text, presenter.IDs(ids), map[string]any{"ids": ids})
	return nil
}

func (s *Service) overlapGroups(w http.ResponseWriter, _ *http.Request, q query) error {
	groups := s.eng.FindOverlapGroups(q.set)
	respond(w, q.text, presenter.Groups(groups), map[string]any{"groups": groups})
	return nil
}

func (s *Service) contained(w http.ResponseWriter, _ *http.Request, q query) error {
	entries := s.eng.FindContained(q.set)
	respond(w, q.text, presenter.Contained(entries), map[string]any{"entries": entries})
	return nil
}

func (s *Service) abutting(w http.ResponseWriter, _ *http.Request, q query) error {
	edges := s.eng.FindAbutting(q.set)
	respond(w, q.text, presenter.Edges(edges), map[string]any{"edges": edges})
	return nil
}

func (s *Service) analyze(w http.ResponseWriter, r *http.Request, q query) error {
	compute := func() (model.Analysis, error) { return s.eng.Analyze(q.set, q.point) }

	var (
		a   model.Analysis
		err error
	)
	if s.cache != nil {
		var out resultcache.Outcome
		a, out, err = s.cache.GetOrCompute(r.Context(), keys.Analysis(q.set, s.eng.Options(), q.point), compute)
		w.Header().Set("X-Cache", string(out))
	} else {
		a, err = compute()
	}
	if err != nil {
		return err
	}

	if q.text {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_ = presenter.WriteAnalysis(w, a)
		return nil
	}
	writeJSON(w, http.StatusOK, a)
	return nil
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", code, "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrTooManyRectangles):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvalidRectangle),
		errors.Is(err, model.ErrMalformedPoint),
		errors.Is(err, ErrMissingPoint),
		errors.Is(err, ErrBadBody):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// response write errors mean the client went away; nothing left to report
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s + "\n"))
}

func respond(w http.ResponseWriter, text bool, plain string, v any) {
	if text {
		writeText(w, plain)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
