package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dockhand/internal/runtime"
)

func apiTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// errorBody is the REST error payload: {"error": {name, message, timestamp}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, name, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{
		Name:      name,
		Message:   message,
		Timestamp: apiTimestamp(),
	}})
}

// writeRuntimeError maps a runtime call failure to a response: missing
// containers are 404, everything else is a gateway-side Docker error.
func writeRuntimeError(w http.ResponseWriter, err error) {
	if runtime.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "NotFoundError", "Container not found")
		return
	}
	writeError(w, http.StatusBadGateway, "DockerError", err.Error())
}

// requireAuth validates the Authorization bearer token before the
// handler runs. The principal is not threaded further; verifying it is
// the extent of this layer's authorization.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "AuthenticationError", "No token provided")
			return
		}
		if _, err := s.gate.Verify(token); err != nil {
			writeError(w, http.StatusUnauthorized, "AuthenticationError", "Invalid or expired token")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "StoreError", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"containers": records,
		"count":      len(records),
		"timestamp":  apiTimestamp(),
	})
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	images, err := s.runtime.ListImages(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "DockerError", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"images":    images,
		"count":     len(images),
		"timestamp": apiTimestamp(),
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.syncer.SyncNow(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "DockerError", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Containers synced successfully",
		"timestamp": apiTimestamp(),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			writeError(w, http.StatusNotFound, "NotFoundError", "Container not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "StoreError", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"container": rec,
		"timestamp": apiTimestamp(),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tail := 100
	if v := r.URL.Query().Get("tail"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			tail = n
		}
	}
	logs, err := s.runtime.Logs(r.Context(), id, tail)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":        logs,
		"containerId": id,
		"timestamp":   apiTimestamp(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stats, err := s.runtime.StatsOnce(r.Context(), id)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":       stats,
		"containerId": id,
		"timestamp":   apiTimestamp(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.runtime.Start(r.Context(), id); err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Container started successfully",
		"containerId": id,
		"timestamp":   apiTimestamp(),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.runtime.Stop(r.Context(), id); err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Container stopped successfully",
		"containerId": id,
		"timestamp":   apiTimestamp(),
	})
}

type execRequest struct {
	Command string `json:"command"`
}

// handleExec runs one shell command inside the container and returns its
// combined output. Unlike the WebSocket bridge this is non-interactive:
// stdin is closed immediately and the stream is drained until the
// process exits.
func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req execRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "Command is required")
		return
	}

	execID, err := s.runtime.CreateExec(r.Context(), id, []string{"/bin/sh", "-c", req.Command})
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	stream, err := s.runtime.AttachExec(r.Context(), execID)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	defer stream.Close()
	_ = stream.CloseWrite()

	output, err := io.ReadAll(stream)
	if err != nil {
		writeError(w, http.StatusBadGateway, "DockerError", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"output":      string(output),
		"containerId": id,
		"timestamp":   apiTimestamp(),
	})
}

// handleBuild builds an image from a tar build context in the request
// body. Tags come from repeated ?tag= parameters.
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	tags := r.URL.Query()["tag"]
	if err := s.runtime.BuildImage(r.Context(), r.Body, tags); err != nil {
		writeError(w, http.StatusBadGateway, "DockerError", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Image built successfully",
		"tags":      tags,
		"timestamp": apiTimestamp(),
	})
}

// handleRemove removes the container from the runtime and then its
// record. This is the only path that deletes records; the sync loop
// never does.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.runtime.Remove(r.Context(), id); err != nil {
		writeRuntimeError(w, err)
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "StoreError", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Container removed successfully",
		"containerId": id,
		"timestamp":   apiTimestamp(),
	})
}
