package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/RubachokBoss/assignment-tracker/internal/models"
)

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req models.TemplateRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	template, err := h.templateService.Create(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeCreated(w, template)
}

func (h *Handler) GetAllTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templateService.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, templates)
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := h.templateService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, template)
}

func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req models.TemplateRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	template, err := h.templateService.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, template)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.templateService.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"id": id})
}

func (h *Handler) AddStageTemplate(w http.ResponseWriter, r *http.Request) {
	var req models.StageTemplateRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	stage, err := h.templateService.AddStage(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeCreated(w, stage)
}

func (h *Handler) UpdateStageTemplate(w http.ResponseWriter, r *http.Request) {
	var req models.StageTemplateRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	stage, err := h.templateService.UpdateStage(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, stage)
}

func (h *Handler) DeleteStageTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.templateService.DeleteStage(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"id": id})
}
