package management

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
)

const requestTimeout = 10 * time.Second

// CachesResponse is the body of GET /caches.
type CachesResponse struct {
	Caches map[string]map[string]any `json:"caches"`
}

// CacheResponse is the body of GET /caches/{name}.
type CacheResponse struct {
	Name string         `json:"name"`
	Info map[string]any `json:"info"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error    string `json:"error"`
	TextCode string `json:"text_code,omitempty"`
}

// Handler serves the management endpoints:
//
//	GET    /caches               every cache with its summary
//	GET    /caches/{name}        one cache
//	DELETE /caches               clear every cache
//	DELETE /caches/{name}        clear one cache
//	DELETE /caches/{name}/{key}  evict one key
func Handler(svc *Service) http.Handler {
	mux := http.NewServeMux()
	RegisterHandlers(mux, svc)
	return mux
}

// RegisterHandlers registers the management endpoints on mux.
func RegisterHandlers(mux *http.ServeMux, svc *Service) {
	mux.HandleFunc("GET /caches", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		caches, err := svc.Caches(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CachesResponse{Caches: caches})
	})

	mux.HandleFunc("GET /caches/{name}", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		name := r.PathValue("name")
		info, err := svc.Cache(ctx, name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CacheResponse{Name: name, Info: info})
	})

	mux.HandleFunc("DELETE /caches", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if err := svc.InvalidateAll(ctx); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE /caches/{name}", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if err := svc.Invalidate(ctx, r.PathValue("name")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE /caches/{name}/{key}", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if err := svc.InvalidateKey(ctx, r.PathValue("name"), r.PathValue("key")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: err.Error()}

	var rich *errors.Error
	if errors.As(err, &rich) {
		resp.TextCode = rich.TextCode
		switch rich.Category {
		case errors.CategoryNotFound:
			status = http.StatusNotFound
		case errors.CategoryValidation, errors.CategoryBadInput:
			status = http.StatusBadRequest
		}
	}
	writeJSON(w, status, resp)
}
