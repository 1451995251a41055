// Package caseapi exposes the case service over HTTP.
package caseapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/pleura/internal/authmw"
	"github.com/linnemanlabs/pleura/internal/cases"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// CaseService defines the business operations caseapi needs.
type CaseService interface {
	CreateCase(ctx context.Context, actor cases.Actor, in cases.NewCase) (string, error)
	FetchCase(ctx context.Context, actor cases.Actor, id string) (*cases.Case, error)
	ResolveCase(ctx context.Context, actor cases.Actor, id, resolution string, notes *string) (*cases.Case, error)
	ListCases(ctx context.Context, actor cases.Actor) ([]*cases.Case, error)
	ListAllCases(ctx context.Context) ([]*cases.Case, error)
	RegisterClinician(ctx context.Context, actor cases.Actor, name string) (*cases.Clinician, error)
	GenerateReport(ctx context.Context, actor cases.Actor, id string) (*cases.Case, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    CaseService
}

// New creates a new API handler.
func New(logger log.Logger, svc CaseService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("case service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/cases", a.handleCreateCase)
		r.Get("/cases", a.handleListCases)
		r.Get("/cases/{id}", a.handleGetCase)
		r.Post("/cases/{id}/resolution", a.handleResolveCase)
		r.Post("/cases/{id}/report", a.handleGenerateReport)
		r.Put("/clinicians/me", a.handleRegisterClinician)
	})
}

// actorFrom converts the identity resolved by authmw. A missing identity
// yields the zero Actor, which the service rejects.
func actorFrom(ctx context.Context) cases.Actor {
	id, ok := authmw.FromContext(ctx)
	if !ok {
		return cases.Actor{}
	}
	return cases.Actor{ID: id.Subject, Email: id.Email}
}

func caseSpan(r *http.Request, id string) {
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("pleura.case.id", id))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, cases.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cases.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, cases.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, cases.ErrReportingDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, cases.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the mapped error. Server-side failures are logged and their
// detail is not echoed.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error, msg string, kv ...any) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		a.logger.Error(r.Context(), err, msg, kv...)
		writeError(w, status, http.StatusText(status))
	case http.StatusBadRequest:
		writeError(w, status, err.Error())
	default:
		writeError(w, status, statusMessage(status))
	}
}

func statusMessage(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not found"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotImplemented:
		return "report drafting is not configured"
	default:
		return http.StatusText(status)
	}
}
