package httpd

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/service"
	"github.com/RubachokBoss/assignment-tracker/pkg/token"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	userService       service.UserService
	templateService   service.TemplateService
	assignmentService service.AssignmentService
	progressService   service.ProgressService
	evidenceService   service.EvidenceService
	statusService     service.StatusService
	issuer            *token.Issuer
	db                Pinger
	validate          *validator.Validate
	maxUploadSize     int64
	logger            zerolog.Logger
}

func NewHandler(
	userService service.UserService,
	templateService service.TemplateService,
	assignmentService service.AssignmentService,
	progressService service.ProgressService,
	evidenceService service.EvidenceService,
	statusService service.StatusService,
	issuer *token.Issuer,
	db Pinger,
	maxUploadSize int64,
	logger zerolog.Logger,
) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = service.DefaultMaxEvidenceSize
	}
	return &Handler{
		userService:       userService,
		templateService:   templateService,
		assignmentService: assignmentService,
		progressService:   progressService,
		evidenceService:   evidenceService,
		statusService:     statusService,
		issuer:            issuer,
		db:                db,
		validate:          newValidator(),
		maxUploadSize:     maxUploadSize,
		logger:            logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)

	router.Route("/api/v1", func(api chi.Router) {
		api.Post("/auth/login", h.Login)

		api.Group(func(r chi.Router) {
			r.Use(Authenticate(h.issuer))

			r.Get("/assignments/my", h.GetMyAssignments)
			r.Get("/assignments/{id}", h.GetAssignment)

			r.Route("/stages/{id}", func(r chi.Router) {
				r.Post("/progress", h.UpdateProgress)
				r.Post("/evidence", h.AttachEvidence)
				r.Get("/evidence", h.ListEvidence)
			})
			r.Get("/evidence/{id}/download", h.DownloadEvidence)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)

				r.Post("/assignments", h.CreateAssignment)
				r.Get("/assignments", h.GetAllAssignments)
				r.Delete("/assignments/{id}", h.DeleteAssignment)

				r.Get("/admin/dashboard", h.GetDashboard)

				r.Route("/templates", func(r chi.Router) {
					r.Post("/", h.CreateTemplate)
					r.Get("/", h.GetAllTemplates)
					r.Get("/{id}", h.GetTemplate)
					r.Put("/{id}", h.UpdateTemplate)
					r.Delete("/{id}", h.DeleteTemplate)
					r.Post("/{id}/stages", h.AddStageTemplate)
				})
				r.Route("/stage-templates", func(r chi.Router) {
					r.Put("/{id}", h.UpdateStageTemplate)
					r.Delete("/{id}", h.DeleteStageTemplate)
				})

				r.Route("/users", func(r chi.Router) {
					r.Post("/", h.CreateUser)
					r.Get("/", h.GetAllUsers)
					r.Get("/assignable", h.GetAssignableUsers)
					r.Get("/{id}", h.GetUser)
					r.Put("/{id}", h.UpdateUser)
					r.Delete("/{id}", h.DeleteUser)
				})
			})
		})
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Error().Err(err).Msg("Health check: database unreachable")
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	response := map[string]interface{}{
		"status":    status,
		"service":   "assignment-tracker",
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, code, response)
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}
