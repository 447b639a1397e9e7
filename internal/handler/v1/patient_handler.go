package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/service"
)

type PatientHandler struct {
	patientSvc *service.PatientService
}

func NewPatientHandler(patientSvc *service.PatientService) *PatientHandler {
	return &PatientHandler{patientSvc: patientSvc}
}

type createPatientRequest struct {
	FirstName   string    `json:"firstName" binding:"required"`
	LastName    string    `json:"lastName" binding:"required"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Gender      string    `json:"gender"`
	MRN         string    `json:"mrn" binding:"required"`
}

type patientResponse struct {
	ID                    uuid.UUID       `json:"id"`
	FullName              string          `json:"fullName"`
	MRN                   string          `json:"mrn"`
	Gender                patient.Gender  `json:"gender,omitempty"`
	DateOfBirth           time.Time       `json:"dateOfBirth"`
	CurrentWorkflowStatus string          `json:"currentWorkflowStatus,omitempty"`
	AssignedDoctors       patient.UUIDSet `json:"assignedDoctors"`
	CreatedAt             time.Time       `json:"createdAt"`
}

func renderPatient(p *patient.Patient) patientResponse {
	return patientResponse{
		ID:                    p.ID,
		FullName:              p.FullName(),
		MRN:                   p.MRN,
		Gender:                p.Gender,
		DateOfBirth:           p.DateOfBirth,
		CurrentWorkflowStatus: p.CurrentWorkflowStatus,
		AssignedDoctors:       p.ActiveStudyAssignedDoctors,
		CreatedAt:             p.CreatedAt,
	}
}

func (h *PatientHandler) Create(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		respondError(c, http.StatusUnauthorized, "missing authentication")
		return
	}

	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.patientSvc.Create(c.Request.Context(), &patient.CreatePatientCommand{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth,
		Gender:      patient.Gender(req.Gender),
		MRN:         req.MRN,
		CreatedBy:   claims.UserID,
	}, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, renderPatient(p))
}

func (h *PatientHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.patientSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, renderPatient(p))
}
