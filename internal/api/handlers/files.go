package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/subtrans/backend/internal/storage"
)

// extractPath extracts and URL-decodes the wildcard path from chi router
func extractPath(r *http.Request) string {
	path := chi.URLParam(r, "*")
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return path
	}
	// Clean any double slashes or trailing slashes
	decoded = strings.TrimPrefix(decoded, "/")
	decoded = strings.TrimSuffix(decoded, "/")
	return decoded
}

const maxTreeDepth = 5

type FilesHandler struct {
	mediaPath string
}

func NewFilesHandler(mediaPath string) *FilesHandler {
	return &FilesHandler{mediaPath: mediaPath}
}

// GetTree lists directories and subtitle files. ?depth=N expands N levels
// of sub-directories.
func (h *FilesHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	path := extractPath(r)
	if path == "" {
		path = "."
	}

	depth, _ := strconv.Atoi(r.URL.Query().Get("depth"))
	if depth < 0 {
		depth = 0
	}
	if depth > maxTreeDepth {
		depth = maxTreeDepth
	}

	tree, err := storage.BuildTree(h.mediaPath, path, depth)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrPermission):
			jsonError(w, "invalid path", http.StatusForbidden)
		case errors.Is(err, os.ErrNotExist):
			jsonError(w, "directory not found", http.StatusNotFound)
		default:
			jsonError(w, "failed to list directory", http.StatusInternalServerError)
		}
		return
	}

	entries := tree.Children
	if entries == nil {
		entries = []*storage.FileEntry{}
	}
	jsonResponse(w, map[string]interface{}{
		"path":    path,
		"entries": entries,
	}, http.StatusOK)
}

func (h *FilesHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		jsonError(w, "query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	results, err := storage.Search(h.mediaPath, q, limit)
	if err != nil {
		jsonError(w, "search failed", http.StatusInternalServerError)
		return
	}

	if results == nil {
		results = []*storage.FileEntry{}
	}
	jsonResponse(w, map[string]interface{}{
		"query":   q,
		"results": results,
	}, http.StatusOK)
}
