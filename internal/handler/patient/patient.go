package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/petmatch/clinic-api/internal/email"
	"github.com/petmatch/clinic-api/internal/handler"
	"github.com/petmatch/clinic-api/internal/middleware"
	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/service/patient"
	"github.com/petmatch/clinic-api/pkg/logger"
)

// Handler exposes the staff dashboard surface: patient CRUD plus explicit
// invite sharing.
type Handler struct {
	patients patient.PatientService
	email    email.Sender
	logger   *logger.Logger
}

func NewHandler(patients patient.PatientService, email email.Sender, logger *logger.Logger) *Handler {
	return &Handler{patients: patients, email: email, logger: logger}
}

func (h *Handler) RegisterRoutes(staff *gin.RouterGroup) {
	staff.GET("/patients", h.List)
	staff.POST("/patients", h.Create)
	staff.GET("/patients/:id", h.Get)
	staff.PUT("/patients/:id", h.Update)
	staff.POST("/patients/:id/invite", h.Invite)
}

func (h *Handler) List(c *gin.Context) {
	clinicID, ok := currentClinicID(c)
	if !ok {
		return
	}

	patients, err := h.patients.List(c.Request.Context(), clinicID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

func (h *Handler) Create(c *gin.Context) {
	clinicID, ok := currentClinicID(c)
	if !ok {
		return
	}

	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	record, err := h.patients.Create(c.Request.Context(), clinicID, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(record))
}

func (h *Handler) Get(c *gin.Context) {
	clinicID, ok := currentClinicID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	record, err := h.patients.Get(c.Request.Context(), clinicID, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

func (h *Handler) Update(c *gin.Context) {
	clinicID, ok := currentClinicID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	record, err := h.patients.Update(c.Request.Context(), clinicID, id, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

// Invite mints or refreshes the patient's invite and returns the shareable
// view. When the owner record carries an email, a copy goes out by mail; mail
// failures are logged, not surfaced.
func (h *Handler) Invite(c *gin.Context) {
	clinicID, ok := currentClinicID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	view, err := h.patients.Invite(c.Request.Context(), clinicID, id)
	if err != nil {
		c.Error(err)
		return
	}

	if to := c.Query("email"); to != "" && h.email != nil {
		if err := h.email.SendInvite(to, view); err != nil {
			h.logger.Warn("failed to email invite", "patient_id", id.String(), "error", err.Error())
		}
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient id"))
		return uuid.Nil, false
	}
	return id, true
}

func currentClinicID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString(middleware.ContextClinicID))
	if err != nil {
		c.JSON(http.StatusForbidden, handler.NewErrorResponse("clinic scope required"))
		return uuid.Nil, false
	}
	return id, true
}
