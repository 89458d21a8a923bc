package httpd

import (
	"net/http"

	"github.com/RubachokBoss/assignment-tracker/internal/models"
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	signed, expiresAt, err := h.issuer.Issue(user.ID, user.IsAdmin)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to issue token")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, models.LoginResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
		User:      user,
	})
}
