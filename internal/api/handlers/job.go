package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/subtrans/backend/internal/audit"
	"github.com/subtrans/backend/internal/job"
)

// AuditLister reads the batch exchanges recorded for a run
type AuditLister interface {
	ListBatchAudit(runID string) ([]audit.Entry, error)
	DeleteBatchAudit(runID string) error
}

type JobHandler struct {
	queue  *job.JobQueue
	audits AuditLister
}

func NewJobHandler(queue *job.JobQueue, audits AuditLister) *JobHandler {
	return &JobHandler{queue: queue, audits: audits}
}

// ListJobs returns all jobs
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.queue.ListJobs()
	if err != nil {
		jsonError(w, "failed to list jobs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// GetJob returns a single job by ID
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, "missing job ID", http.StatusBadRequest)
		return
	}

	j, err := h.queue.GetJob(id)
	if err != nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(j)
}

// CancelJob cancels a pending or running job
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, "missing job ID", http.StatusBadRequest)
		return
	}

	if err := h.queue.CancelJob(id); err != nil {
		jsonError(w, "failed to cancel job: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RetryJob re-queues a failed or cancelled job
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, "missing job ID", http.StatusBadRequest)
		return
	}

	if err := h.queue.RetryJob(id); err != nil {
		jsonError(w, "failed to retry job: "+err.Error(), http.StatusBadRequest)
		return
	}
	// a retry starts a fresh audit trail under the same run id
	h.audits.DeleteBatchAudit(id)

	jsonResponse(w, map[string]string{"status": "retrying"}, http.StatusOK)
}

// GetBatches returns the recorded request and response of every batch of a job
func (h *JobHandler) GetBatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.queue.GetJob(id); err != nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	entries, err := h.audits.ListBatchAudit(id)
	if err != nil {
		jsonError(w, "failed to list batches: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, entries, http.StatusOK)
}
