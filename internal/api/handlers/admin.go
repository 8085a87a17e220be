package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/subtrans/backend/internal/api/middleware"
	"github.com/subtrans/backend/internal/auth"
	"github.com/subtrans/backend/internal/db"
	"github.com/subtrans/backend/internal/db/models"
	"github.com/subtrans/backend/internal/job"
)

var startTime = time.Now()

type AdminHandler struct {
	db          *db.Database
	queue       *job.JobQueue
	rateLimiter *middleware.RateLimiter
}

func NewAdminHandler(db *db.Database, queue *job.JobQueue, rateLimiter *middleware.RateLimiter) *AdminHandler {
	return &AdminHandler{db: db, queue: queue, rateLimiter: rateLimiter}
}

// ListUsers returns all users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers()
	if err != nil {
		jsonError(w, "failed to list users: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, users, http.StatusOK)
}

// CreateUser creates a new user
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		jsonError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	if !models.ValidRole(req.Role) {
		jsonError(w, "role must be one of: admin, editor, viewer", http.StatusBadRequest)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	id, err := h.db.CreateUser(req.Username, hashed, req.Role)
	if err != nil {
		jsonError(w, "failed to create user (username may already exist)", http.StatusConflict)
		return
	}

	jsonResponse(w, map[string]interface{}{"id": id, "username": req.Username, "role": req.Role}, http.StatusCreated)
}

// UpdateUser updates user details
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Username string `json:"username"`
		Role     string `json:"role"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	existing, err := h.db.GetUserByID(id)
	if err != nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}

	if req.Role != "" && !models.ValidRole(req.Role) {
		jsonError(w, "role must be one of: admin, editor, viewer", http.StatusBadRequest)
		return
	}

	// Prevent demoting the last admin
	if existing.Role == models.RoleAdmin && req.Role != "" && req.Role != models.RoleAdmin {
		if !h.hasOtherAdmin(w) {
			return
		}
	}

	username := existing.Username
	role := existing.Role
	if req.Username != "" {
		username = req.Username
	}
	if req.Role != "" {
		role = req.Role
	}

	if err := h.db.UpdateUser(id, username, role); err != nil {
		jsonError(w, "failed to update user: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if req.Password != "" {
		hashed, err := auth.HashPassword(req.Password)
		if err != nil {
			jsonError(w, "failed to hash password", http.StatusInternalServerError)
			return
		}
		if err := h.db.UpdateUserPassword(id, hashed); err != nil {
			jsonError(w, "failed to update password", http.StatusInternalServerError)
			return
		}
	}

	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// DeleteUser removes a user
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	// Prevent self-deletion
	claims := middleware.GetClaims(r)
	if claims != nil && claims.UserID == id {
		jsonError(w, "cannot delete yourself", http.StatusBadRequest)
		return
	}

	user, err := h.db.GetUserByID(id)
	if err != nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}
	if user.Role == models.RoleAdmin && !h.hasOtherAdmin(w) {
		return
	}

	if err := h.db.DeleteUser(id); err != nil {
		jsonError(w, "failed to delete user: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// hasOtherAdmin writes an error and returns false when only one admin is left
func (h *AdminHandler) hasOtherAdmin(w http.ResponseWriter) bool {
	count, err := h.db.CountAdmins()
	if err != nil {
		jsonError(w, "failed to check admin count", http.StatusInternalServerError)
		return false
	}
	if count <= 1 {
		jsonError(w, "cannot remove the last admin", http.StatusBadRequest)
		return false
	}
	return true
}

// RateLimitStatus returns the login rate limiter state
func (h *AdminHandler) RateLimitStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, h.rateLimiter.Status(), http.StatusOK)
}

// ClearRateLimit resets the login rate limiter
func (h *AdminHandler) ClearRateLimit(w http.ResponseWriter, r *http.Request) {
	h.rateLimiter.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// DashboardStats returns system and job stats for the admin dashboard
func (h *AdminHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	var memStat runtime.MemStats
	runtime.ReadMemStats(&memStat)

	users, _ := h.db.ListUsers()

	jobCounts := map[job.JobStatus]int{}
	if jobs, err := h.queue.ListJobs(); err == nil {
		for _, j := range jobs {
			jobCounts[j.Status]++
		}
	}

	jsonResponse(w, map[string]interface{}{
		"system": map[string]interface{}{
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
			"uptime_seconds": int(time.Since(startTime).Seconds()),
			"mem_alloc":      memStat.Alloc,
			"mem_sys":        memStat.Sys,
		},
		"jobs":       jobCounts,
		"user_count": len(users),
	}, http.StatusOK)
}
