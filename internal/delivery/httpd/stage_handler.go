package httpd

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/RubachokBoss/assignment-tracker/internal/models"
)

// multipartOverhead is the slack allowed on top of the file size for form
// boundaries and the other fields.
const multipartOverhead = 1 << 20

func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProgressRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	stage, err := h.progressService.UpdateProgress(r.Context(), chi.URLParam(r, "id"), principal.UserID, *req.ProgressPercent)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, stage)
}

func (h *Handler) AttachEvidence(w http.ResponseWriter, r *http.Request) {
	// Парсим multipart форму
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("file exceeds the maximum size of %d MiB", h.maxUploadSize>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	// Получаем файл
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	// Читаем содержимое файла
	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	principal := principalFrom(r.Context())
	evidence, err := h.evidenceService.Attach(r.Context(), &models.AttachEvidenceRequest{
		StageID:          chi.URLParam(r, "id"),
		RequestingUserID: principal.UserID,
		FileBytes:        content,
		OriginalFileName: header.Filename,
		Notes:            r.FormValue("notes"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeCreated(w, evidence)
}

func (h *Handler) ListEvidence(w http.ResponseWriter, r *http.Request) {
	evidences, err := h.evidenceService.ListForStage(r.Context(), chi.URLParam(r, "id"), principalFrom(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, evidences)
}

func (h *Handler) DownloadEvidence(w http.ResponseWriter, r *http.Request) {
	evidence, data, err := h.evidenceService.Download(r.Context(), chi.URLParam(r, "id"), principalFrom(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", evidence.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": evidence.OriginalFileName}))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
