// Package chi exposes search, ingestion and record endpoints over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	chiv5 "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/request"
	domusage "github.com/kailas-cloud/cvsearch/internal/domain/usage"
	"github.com/kailas-cloud/cvsearch/internal/metrics"
	healthuc "github.com/kailas-cloud/cvsearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/cvsearch/internal/usecase/ingest"
	recorduc "github.com/kailas-cloud/cvsearch/internal/usecase/record"
	searchuc "github.com/kailas-cloud/cvsearch/internal/usecase/search"
	usageuc "github.com/kailas-cloud/cvsearch/internal/usecase/usage"
)

// maxBodyBytes bounds request bodies; a full ingest batch fits comfortably.
const maxBodyBytes = 64 << 20

// Options tune the HTTP layer.
type Options struct {
	APIKeys      []string
	DefaultLimit int
	MaxLimit     int
}

// Server serves the HTTP API.
type Server struct {
	search  *searchuc.Service
	ingest  *ingestuc.Service
	records *recorduc.Service
	health  *healthuc.Service
	usage   *usageuc.Service
	opts    Options
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	ingest *ingestuc.Service,
	records *recorduc.Service,
	health *healthuc.Service,
	usage *usageuc.Service,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.MaxLimit <= 0 || opts.MaxLimit > request.MaxLimit {
		opts.MaxLimit = request.MaxLimit
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = request.DefaultLimit
	}
	return &Server{
		search:  search,
		ingest:  ingest,
		records: records,
		health:  health,
		usage:   usage,
		opts:    opts,
		logger:  logger,
	}
}

// Handler builds the router with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chiv5.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.opts.APIKeys))
	r.Use(metrics.Middleware("/metrics"))

	r.Get("/search", s.SearchGet)
	r.Post("/search", s.SearchPost)
	r.Post("/records", s.IngestRecords)
	r.Get("/records/{id}", s.GetRecord)
	r.Delete("/records/{id}", s.DeleteRecord)
	r.Get("/health", s.HealthCheck)
	r.Get("/usage", s.GetUsage)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
	return r
}

// SearchPost handles POST /search.
func (s *Server) SearchPost(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.runSearch(w, r, &body)
}

// SearchGet handles GET /search with flattened parameters.
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request) {
	body, err := searchParamsFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	s.runSearch(w, r, &body)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, body *SearchRequest) {
	params, err := body.toParams()
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if params.Limit == 0 {
		params.Limit = s.opts.DefaultLimit
	}
	params.Limit = min(params.Limit, s.opts.MaxLimit)

	req, err := request.New(params)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set(headerSearchMethod, resp.Method().String())
	setEmbeddingHeaders(w, domain.UsageFromContext(r.Context()))
	writeJSON(w, http.StatusOK, responseToWire(&resp))
}

// IngestRecords handles POST /records.
func (s *Server) IngestRecords(w http.ResponseWriter, r *http.Request) {
	var body IngestRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(body.Records) == 0 {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "records must not be empty")
		return
	}

	drafts := make([]record.Draft, 0, len(body.Records))
	for i := range body.Records {
		d, err := body.Records[i].toDraft()
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, fmt.Sprintf("records[%d]: %s", i, err))
			return
		}
		drafts = append(drafts, d)
	}

	results := s.ingest.Ingest(r.Context(), drafts)
	setEmbeddingHeaders(w, domain.UsageFromContext(r.Context()))
	writeJSON(w, http.StatusOK, ingestToWire(results))
}

// GetRecord handles GET /records/{id}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Get(r.Context(), chiv5.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToWire(&rec))
}

// DeleteRecord handles DELETE /records/{id}.
func (s *Server) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.records.Delete(r.Context(), chiv5.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health. Degraded still answers 200: text search works.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

// GetUsage handles GET /usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	report := s.usage.Report(r.Context(), period)
	writeJSON(w, http.StatusOK, usageToWire(&report))
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.SearchUsage) {
	if usage.Embedded() {
		w.Header().Set(headerEmbeddingTokens, strconv.Itoa(usage.TotalTokens()))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}
