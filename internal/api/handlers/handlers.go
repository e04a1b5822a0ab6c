package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avelkov/finfacts/internal/api/middleware"
	"github.com/avelkov/finfacts/internal/domain"
	"github.com/avelkov/finfacts/internal/jobs"
	"github.com/avelkov/finfacts/internal/mediator"
	"github.com/rs/zerolog"
)

// QueryHandler exposes the query mediator over HTTP.
type QueryHandler struct {
	mediator *mediator.Mediator
	log      zerolog.Logger
}

func NewQueryHandler(m *mediator.Mediator, log zerolog.Logger) *QueryHandler {
	return &QueryHandler{mediator: m, log: log}
}

// Query handles POST /v1/query
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SQL string `json:"sql"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SQL == "" {
		middleware.WriteError(w, http.StatusBadRequest, "sql is required")
		return
	}

	resp, err := h.mediator.Handle(r.Context(), mediator.Request{SQL: req.SQL})
	if err != nil {
		h.writeMediatorError(w, err, "query failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// ResolveAccount handles POST /v1/resolve
func (h *QueryHandler) ResolveAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Term       string  `json:"term"`
		MaxResults int     `json:"max_results"`
		MinScore   float64 `json:"min_score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Term == "" {
		middleware.WriteError(w, http.StatusBadRequest, "term is required")
		return
	}

	resp, err := h.mediator.Handle(r.Context(), mediator.Request{
		AccountTerm: req.Term,
		MaxResults:  req.MaxResults,
		MinScore:    req.MinScore,
	})
	if err != nil {
		h.writeMediatorError(w, err, "account resolution failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"matches": resp.Matches,
		"count":   len(resp.Matches),
	})
}

// GetSchema handles GET /v1/schema
func (h *QueryHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	resp, err := h.mediator.Handle(r.Context(), mediator.Request{
		FetchSchema:    true,
		FreshnessToken: r.URL.Query().Get("token"),
	})
	if err != nil {
		h.writeMediatorError(w, err, "schema snapshot failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, resp.Schema)
}

func (h *QueryHandler) writeMediatorError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrUnsafeQuery):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		h.log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}

// IngestHandler enqueues ingestion jobs.
type IngestHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

func NewIngestHandler(publisher jobs.Publisher, log zerolog.Logger) *IngestHandler {
	return &IngestHandler{publisher: publisher, log: log}
}

// EnqueueIngest handles POST /v1/ingest
func (h *IngestHandler) EnqueueIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source       string `json:"source"`
		DocumentPath string `json:"document_path"`
		Force        bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Source != domain.SourceColumnReport && req.Source != domain.SourceCategoryReport {
		middleware.WriteError(w, http.StatusBadRequest, "source must be column_report or category_report")
		return
	}
	if req.DocumentPath == "" {
		middleware.WriteError(w, http.StatusBadRequest, "document_path is required")
		return
	}

	job := &jobs.IngestSourceJob{
		Source:       req.Source,
		DocumentPath: req.DocumentPath,
		Force:        req.Force,
	}
	if err := h.publisher.PublishIngestSource(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue ingestion job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue ingestion job")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// JobsHandler exposes job status.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// ListJobs handles GET /v1/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		Source: r.URL.Query().Get("source"),
		Status: jobs.JobStatus(r.URL.Query().Get("status")),
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /v1/jobs/:jobId
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}
