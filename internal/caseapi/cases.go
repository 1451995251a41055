package caseapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/pleura/internal/cases"
)

type createCaseRequest struct {
	Patient       cases.Patient       `json:"patient"`
	Predictions   map[string]*float64 `json:"predictions"`
	ImageFilename string              `json:"imageFilename"`
}

type resolveRequest struct {
	Resolution string  `json:"resolution"`
	Notes      *string `json:"notes"`
}

type clinicianRequest struct {
	Name string `json:"name"`
}

func (a *API) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := a.svc.CreateCase(r.Context(), actorFrom(r.Context()), cases.NewCase{
		Patient:       req.Patient,
		Predictions:   req.Predictions,
		ImageFilename: req.ImageFilename,
	})
	if err != nil {
		a.fail(w, r, err, "failed to create case")
		return
	}

	caseSpan(r, id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *API) handleListCases(w http.ResponseWriter, r *http.Request) {
	var (
		out []*cases.Case
		err error
	)
	if r.URL.Query().Get("scope") == "all" {
		out, err = a.svc.ListAllCases(r.Context())
	} else {
		out, err = a.svc.ListCases(r.Context(), actorFrom(r.Context()))
	}
	if err != nil {
		a.fail(w, r, err, "failed to list cases")
		return
	}
	if out == nil {
		out = []*cases.Case{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": out})
}

func (a *API) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caseSpan(r, id)

	c, err := a.svc.FetchCase(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		a.fail(w, r, err, "failed to get case", "case_id", id)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleResolveCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caseSpan(r, id)

	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := a.svc.ResolveCase(r.Context(), actorFrom(r.Context()), id, req.Resolution, req.Notes)
	if err != nil {
		a.fail(w, r, err, "failed to resolve case", "case_id", id)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caseSpan(r, id)

	c, err := a.svc.GenerateReport(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		a.fail(w, r, err, "failed to generate report", "case_id", id)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleRegisterClinician(w http.ResponseWriter, r *http.Request) {
	var req clinicianRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := a.svc.RegisterClinician(r.Context(), actorFrom(r.Context()), req.Name)
	if err != nil {
		a.fail(w, r, err, "failed to register clinician")
		return
	}
	writeJSON(w, http.StatusOK, c)
}
