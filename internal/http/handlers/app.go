package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"mockupstudio/internal/catalog"
	"mockupstudio/internal/domain"
	"mockupstudio/internal/middleware"
	"mockupstudio/internal/pipeline"
)

// JobService is the orchestrator surface the handlers use.
type JobService interface {
	CreateJob(ctx context.Context, in pipeline.CreateJobInput) (*domain.Job, error)
	Regenerate(ctx context.Context, jobID string) (*domain.Job, error)
	Modify(ctx context.Context, jobID, changeText string) (*domain.Job, error)
	GenerateSimulationVariants(ctx context.Context, jobID string, templateIDs []int64) error
	Job(ctx context.Context, id string) (*domain.Job, error)
	Jobs(ctx context.Context, baseProductID int64, limit int) ([]domain.Job, error)
	DeleteJob(ctx context.Context, id string) error
}

// CatalogService is the catalog surface the handlers use.
type CatalogService interface {
	CreateProduct(ctx context.Context, in catalog.ProductInput) (*domain.BaseProduct, error)
	Product(ctx context.Context, id int64) (*domain.BaseProduct, error)
	Products(ctx context.Context) ([]domain.BaseProduct, error)
	UpdateProduct(ctx context.Context, id int64, patch catalog.ProductPatch) (*domain.BaseProduct, error)
	DeleteProduct(ctx context.Context, id int64) error
	AddReference(ctx context.Context, baseProductID int64, description string, image *domain.Upload) (*domain.Reference, error)
	References(ctx context.Context, baseProductID int64) ([]domain.Reference, error)
	DeleteReference(ctx context.Context, id int64) error
	CreatePrompt(ctx context.Context, in catalog.PromptInput) (*domain.PromptTemplate, error)
	UpdatePrompt(ctx context.Context, id int64, in catalog.PromptInput) (*domain.PromptTemplate, error)
	DeletePrompt(ctx context.Context, id int64) error
	Prompts(ctx context.Context) ([]domain.PromptTemplate, error)
}

// Blobs resolves stored references for responses and downloads.
type Blobs interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
	URLFor(ref string) (string, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Jobs           JobService
	Catalog        CatalogService
	Blobs          Blobs
	DB             Pinger
	Logger         zerolog.Logger
	StorageKind    string
	Model          string
	MaxUploadBytes int64
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: v})
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: message})
}

// fail maps domain errors onto status codes. Unexpected errors are logged and
// answered with a generic message.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotCompleted), errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInputUnavailable):
		a.error(w, http.StatusUnprocessableEntity, err.Error())
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal server error")
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return invalid("invalid JSON body")
	}
	return nil
}

// url resolves a stored ref for clients; failures leave the URL empty.
func (a *App) url(ref string) string {
	if ref == "" || a.Blobs == nil {
		return ""
	}
	u, err := a.Blobs.URLFor(ref)
	if err != nil {
		a.Logger.Warn().Err(err).Str("ref", ref).Msg("resolve url failed")
		return ""
	}
	return u
}

func pathID(r *http.Request) (int64, error) {
	return parseID(chi.URLParam(r, "id"), "id")
}

func parseID(raw, field string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid(field + " must be a positive integer")
	}
	return id, nil
}

func invalid(msg string) error {
	return &inputError{msg: msg}
}

type inputError struct{ msg string }

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Unwrap() error { return domain.ErrInvalidInput }
