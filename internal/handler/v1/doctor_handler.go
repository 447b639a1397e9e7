package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/service"
)

type DoctorHandler struct {
	doctorSvc *service.DoctorService
}

func NewDoctorHandler(doctorSvc *service.DoctorService) *DoctorHandler {
	return &DoctorHandler{doctorSvc: doctorSvc}
}

type createDoctorRequest struct {
	FirstName     string     `json:"firstName" binding:"required"`
	LastName      string     `json:"lastName" binding:"required"`
	Specialty     string     `json:"specialty"`
	LicenseNumber string     `json:"licenseNumber" binding:"required"`
	UserAccountID *uuid.UUID `json:"userAccountId"`
}

type doctorResponse struct {
	ID            uuid.UUID                `json:"id"`
	DisplayName   string                   `json:"displayName"`
	Specialty     string                   `json:"specialty,omitempty"`
	LicenseNumber string                   `json:"licenseNumber"`
	IsActive      bool                     `json:"isActive"`
	Worklist      doctor.AssignedStudyList `json:"worklist"`
	CreatedAt     time.Time                `json:"createdAt"`
}

func renderDoctor(d *doctor.Doctor) doctorResponse {
	return doctorResponse{
		ID:            d.ID,
		DisplayName:   d.DisplayName(),
		Specialty:     d.Specialty,
		LicenseNumber: d.LicenseNumber,
		IsActive:      d.IsActiveProfile,
		Worklist:      d.AssignedStudies,
		CreatedAt:     d.CreatedAt,
	}
}

func (h *DoctorHandler) Create(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		respondError(c, http.StatusUnauthorized, "missing authentication")
		return
	}

	var req createDoctorRequest
	if !bindJSON(c, &req) {
		return
	}

	d, err := h.doctorSvc.Create(c.Request.Context(), &doctor.CreateDoctorCommand{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Specialty:     req.Specialty,
		LicenseNumber: req.LicenseNumber,
		UserAccountID: req.UserAccountID,
	}, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, renderDoctor(d))
}

func (h *DoctorHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	d, err := h.doctorSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, renderDoctor(d))
}
