package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/study"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/service"
)

type StudyHandler struct {
	studySvc      *service.StudyService
	assignmentSvc *service.AssignmentService
}

func NewStudyHandler(studySvc *service.StudyService, assignmentSvc *service.AssignmentService) *StudyHandler {
	return &StudyHandler{studySvc: studySvc, assignmentSvc: assignmentSvc}
}

type createStudyRequest struct {
	PatientID       string `json:"patientId" binding:"required,uuid"`
	AccessionNumber string `json:"accessionNumber" binding:"required"`
	Modality        string `json:"modality"`
	BodyPart        string `json:"bodyPart"`
	Description     string `json:"description"`
	StudyDate       string `json:"studyDate"`
	StudyTime       string `json:"studyTime"`
}

// studyResponse is the external study view. Category is always derived at
// render time, never read from storage.
type studyResponse struct {
	*study.Study
	Category   study.Category `json:"category"`
	TATDisplay string         `json:"tatDisplay,omitempty"`
}

func renderStudy(st *study.Study) studyResponse {
	resp := studyResponse{Study: st, Category: st.WorkflowStatus.Category()}
	if st.CalculatedTAT != nil && st.CalculatedTAT.TotalMinutes != nil {
		resp.TATDisplay = study.FormatMinutes(*st.CalculatedTAT.TotalMinutes)
	}
	return resp
}

func (h *StudyHandler) Create(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		respondError(c, http.StatusUnauthorized, "missing authentication")
		return
	}

	var req createStudyRequest
	if !bindJSON(c, &req) {
		return
	}
	patientID, ok := parseUUIDString(c, req.PatientID, "patientId")
	if !ok {
		return
	}

	st, err := h.studySvc.Create(c.Request.Context(), &study.CreateStudyCommand{
		PatientID:       patientID,
		AccessionNumber: req.AccessionNumber,
		Modality:        req.Modality,
		BodyPart:        req.BodyPart,
		Description:     req.Description,
		StudyDate:       req.StudyDate,
		StudyTime:       req.StudyTime,
		CreatedBy:       claims.UserID,
	}, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, renderStudy(st))
}

func (h *StudyHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	st, err := h.studySvc.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, renderStudy(st))
}

type assignRequest struct {
	DoctorID string     `json:"doctorId" binding:"required,uuid"`
	Priority string     `json:"priority"`
	DueDate  *time.Time `json:"dueDate"`
	Note     string     `json:"note"`
}

func (h *StudyHandler) Assign(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		respondError(c, http.StatusUnauthorized, "missing authentication")
		return
	}

	studyID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req assignRequest
	if !bindJSON(c, &req) {
		return
	}
	doctorID, ok := parseUUIDString(c, req.DoctorID, "doctorId")
	if !ok {
		return
	}

	result, err := h.assignmentSvc.AssignDoctor(c.Request.Context(), &study.AssignDoctorCommand{
		StudyID:    studyID,
		DoctorID:   doctorID,
		AssignedBy: claims.UserID,
		Priority:   study.Priority(req.Priority),
		DueDate:    req.DueDate,
		Note:       req.Note,
	}, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, result)
}

func (h *StudyHandler) Unassign(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		respondError(c, http.StatusUnauthorized, "missing authentication")
		return
	}

	studyID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	doctorID, ok := parseUUID(c, "doctorId")
	if !ok {
		return
	}

	result, err := h.assignmentSvc.UnassignDoctor(c.Request.Context(), studyID, doctorID, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, result)
}

type advanceStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

func (h *StudyHandler) AdvanceStatus(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		respondError(c, http.StatusUnauthorized, "missing authentication")
		return
	}

	studyID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req advanceStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	status, err := h.assignmentSvc.AdvanceWorkflow(c.Request.Context(), studyID, study.WorkflowStatus(req.Status), claims.UserID, req.Note)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"status":   status,
		"category": status.Category(),
	})
}

type finalizeRequest struct {
	DocumentName string `json:"documentName"`
	Note         string `json:"note"`
}

func (h *StudyHandler) Finalize(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		respondError(c, http.StatusUnauthorized, "missing authentication")
		return
	}

	studyID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req finalizeRequest
	if !bindJSON(c, &req) {
		return
	}

	st, err := h.assignmentSvc.FinalizeReport(c.Request.Context(), &study.FinalizeReportCommand{
		StudyID:      studyID,
		FinalizedBy:  claims.UserID,
		DocumentName: req.DocumentName,
		Note:         req.Note,
	}, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, renderStudy(st))
}

// tatResponse mirrors the TAT struct with display strings alongside the raw
// minute fields.
type tatResponse struct {
	*study.TAT
	TotalDisplay     string `json:"totalDisplay,omitempty"`
	TotalDaysDisplay string `json:"totalDaysDisplay,omitempty"`
}

func (h *StudyHandler) GetTAT(c *gin.Context) {
	studyID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	tat, err := h.assignmentSvc.GetTAT(c.Request.Context(), studyID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := tatResponse{TAT: tat}
	if tat.TotalMinutes != nil {
		resp.TotalDisplay = study.FormatMinutes(*tat.TotalMinutes)
	}
	if tat.TotalDays != nil {
		resp.TotalDaysDisplay = study.FormatTotalDays(*tat.TotalDays)
	}

	respondOK(c, resp)
}
