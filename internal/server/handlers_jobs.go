package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/jonathan/article-engine/internal/types"
)

// parseJobID extracts and validates the {id} path segment.
func (s *Server) parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid job ID")
		return uuid.Nil, false
	}
	return id, true
}

// handleEnqueueJob creates a new queued job.
func (s *Server) handleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req types.EnqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.queue.Enqueue(r.Context(), &req)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusCreated, job)
}

// handleListJobs lists jobs, optionally filtered by status and configuration.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseJobFilter(r.URL.Query())
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := s.queue.List(r.Context(), filter)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if jobs == nil {
		jobs = []types.ArticleJob{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func parseJobFilter(query url.Values) (types.JobFilter, error) {
	filter := types.JobFilter{}

	if status := query.Get("status"); status != "" {
		js := types.JobStatus(status)
		if !js.IsValid() {
			return filter, &types.ErrValidation{Field: "status", Message: "unknown status " + status}
		}
		filter.Status = js
	}
	if cfgID := query.Get("configuration_id"); cfgID != "" {
		id, err := uuid.Parse(cfgID)
		if err != nil {
			return filter, &types.ErrValidation{Field: "configuration_id", Message: "must be a valid UUID"}
		}
		filter.ConfigurationID = id
	}
	if limit := query.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return filter, &types.ErrValidation{Field: "limit", Message: "must be a non-negative integer"}
		}
		filter.Limit = n
	}
	if offset := query.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return filter, &types.ErrValidation{Field: "offset", Message: "must be a non-negative integer"}
		}
		filter.Offset = n
	}

	return filter, nil
}

// handleGetJob returns a single job.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	job, err := s.queue.Get(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, job)
}

// handleUpdateJob applies a partial update to a queued job.
func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	var req types.UpdateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.queue.Update(r.Context(), id, &req)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, job)
}

// handleDeleteJob removes a job regardless of status.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	if err := s.queue.Delete(r.Context(), id); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCancelJob removes a job that has not started processing.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	if err := s.queue.Cancel(r.Context(), id); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRequeueJob puts a failed job back in the queue. With ?force=true it
// also recovers a job stuck in processing after a worker crash.
func (s *Server) handleRequeueJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if err := s.queue.Requeue(r.Context(), id, force); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	job, err := s.queue.Get(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleJobAudit returns every stored audit trail for the job, oldest first.
func (s *Server) handleJobAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	// Reject unknown jobs explicitly; an empty trail list is a valid answer
	// for a job that has not run yet.
	if _, err := s.queue.Get(r.Context(), id); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	trails, err := s.audit.ListAuditTrails(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"job_id": id,
		"trails": trails,
		"count":  len(trails),
	})
}

// handleStats returns queue counts plus the combined cost of recent runs.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queue.Statistics(r.Context())
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	recentCost, err := s.audit.RecentCost(r.Context(), 100)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"queue":                stats,
		"recent_runs_cost_usd": recentCost,
	})
}

// labelRequest is the body for category and tag additions.
type labelRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	s.listLabels(w, r, func(job *types.ArticleJob) []string { return job.Categories })
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	s.addLabel(w, r, s.queue.Store().AddCategory)
}

func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	s.removeLabel(w, r, s.queue.Store().RemoveCategory)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	s.listLabels(w, r, func(job *types.ArticleJob) []string { return job.Tags })
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	s.addLabel(w, r, s.queue.Store().AddTag)
}

func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	s.removeLabel(w, r, s.queue.Store().RemoveTag)
}

func (s *Server) listLabels(w http.ResponseWriter, r *http.Request, pick func(*types.ArticleJob) []string) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	job, err := s.queue.Get(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	labels := pick(job)
	if labels == nil {
		labels = []string{}
	}
	s.jsonResponse(w, http.StatusOK, labels)
}

func (s *Server) addLabel(w http.ResponseWriter, r *http.Request,
	add func(ctx context.Context, id uuid.UUID, name string) error) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.errorResponse(w, http.StatusBadRequest, "request body must include a non-empty name")
		return
	}

	if err := add(r.Context(), id, req.Name); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeLabel(w http.ResponseWriter, r *http.Request,
	remove func(ctx context.Context, id uuid.UUID, name string) error) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	name, err := url.PathUnescape(r.PathValue("name"))
	if err != nil || name == "" {
		s.errorResponse(w, http.StatusBadRequest, "invalid label name")
		return
	}

	if err := remove(r.Context(), id, name); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
