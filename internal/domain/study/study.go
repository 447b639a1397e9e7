package study

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Priority orders reporting work. It also drives the default due date when
// an assignment is created without one.
type Priority string

const (
	PriorityRoutine Priority = "routine"
	PriorityUrgent  Priority = "urgent"
	PriorityStat    Priority = "stat"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityRoutine, PriorityUrgent, PriorityStat:
		return true
	}
	return false
}

// Assignment binds a study to a reporting doctor. AssigneeID holds the
// canonical identity (the doctor's linked user account when one exists,
// otherwise the doctor record id); historical rows may hold either, which is
// why removal matches multiple ids.
type Assignment struct {
	AssigneeID uuid.UUID  `json:"assigneeId"`
	AssignedBy uuid.UUID  `json:"assignedBy"`
	Priority   Priority   `json:"priority"`
	AssignedAt time.Time  `json:"assignedAt"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
}

// AssignmentList tolerates the legacy single-object storage shape: older
// rows persisted one assignment as a bare object rather than an array. The
// UnmarshalJSON below is the normalization boundary: after decoding, the
// field is always a list and no other code may re-inspect the raw shape.
type AssignmentList []Assignment

func (l *AssignmentList) UnmarshalJSON(data []byte) error {
	*l = nil
	var list []Assignment
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var single Assignment
	if err := json.Unmarshal(data, &single); err == nil {
		*l = AssignmentList{single}
		return nil
	}
	// Malformed payloads degrade to an empty ledger rather than failing the
	// surrounding row decode.
	return nil
}

// DoctorRef is the denormalized "who is the doctor" mirror entry.
type DoctorRef struct {
	DoctorID   uuid.UUID `json:"doctorId"`
	AssignedAt time.Time `json:"assignedAt"`
}

// DoctorRefList normalizes the legacy object-vs-array duality exactly like
// AssignmentList.
type DoctorRefList []DoctorRef

func (l *DoctorRefList) UnmarshalJSON(data []byte) error {
	*l = nil
	var list []DoctorRef
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var single DoctorRef
	if err := json.Unmarshal(data, &single); err == nil {
		*l = DoctorRefList{single}
		return nil
	}
	return nil
}

// StatusHistoryList exists for symmetry with the other embedded ledgers.
type StatusHistoryList []StatusHistoryEntry

// ReportInfo carries report metadata nested the way some legacy consumers
// wrote it; FinalizedAt here is one of the fallbacks for the TAT report
// timestamp.
type ReportInfo struct {
	FinalizedAt  *time.Time `json:"finalizedAt,omitempty"`
	FinalizedBy  *uuid.UUID `json:"finalizedBy,omitempty"`
	DocumentName string     `json:"documentName,omitempty"`
}

// Study is the imaging study aggregate. CreatedAt doubles as the intake
// (upload) timestamp; StudyDate/StudyTime keep the acquisition-time strings
// as received from the modality.
type Study struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	PatientID       uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	AccessionNumber string    `gorm:"column:accession_number;type:varchar(64);uniqueIndex;not null"`
	Modality        string    `gorm:"column:modality;type:varchar(16);index"`
	BodyPart        string    `gorm:"column:body_part;type:varchar(64)"`
	Description     string    `gorm:"column:description;type:text"`

	// 8-digit YYYYMMDD and 6-digit HHMMSS acquisition strings. Kept verbatim;
	// parsing happens in the TAT engine and never fails the row.
	StudyDate string `gorm:"column:study_date;type:varchar(16)"`
	StudyTime string `gorm:"column:study_time;type:varchar(16)"`

	WorkflowStatus WorkflowStatus `gorm:"column:workflow_status;type:varchar(40);not null;default:'new_study_received';index"`

	Assignments        AssignmentList    `gorm:"column:assignments;serializer:json"`
	LastAssignedDoctor DoctorRefList     `gorm:"column:last_assigned_doctor;serializer:json"`
	StatusHistory      StatusHistoryList `gorm:"column:status_history;serializer:json"`

	ReportFinalizedAt *time.Time  `gorm:"column:report_finalized_at"`
	Report            *ReportInfo `gorm:"column:report;serializer:json"`
	// Legacy column some upstream writers still populate instead of
	// report_finalized_at.
	LegacyReportDate *time.Time `gorm:"column:report_date"`

	// CalculatedTAT is fully derived from the timestamps above. It is never a
	// source of truth and is overwritten on every recomputation.
	CalculatedTAT *TAT `gorm:"column:calculated_tat;serializer:json"`

	// Legacy mirror columns kept for backward-compatible consumers; rewritten
	// together with CalculatedTAT.
	TurnaroundMinutes *int64 `gorm:"column:turnaround_minutes"`
	TurnaroundDays    *int64 `gorm:"column:turnaround_days"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Study) TableName() string {
	return "imaging.studies"
}

type CreateStudyCommand struct {
	PatientID       uuid.UUID
	AccessionNumber string
	Modality        string
	BodyPart        string
	Description     string
	StudyDate       string
	StudyTime       string
	CreatedBy       uuid.UUID
}

type AssignDoctorCommand struct {
	StudyID    uuid.UUID
	DoctorID   uuid.UUID
	AssignedBy uuid.UUID
	Priority   Priority
	DueDate    *time.Time
	Note       string
}

type FinalizeReportCommand struct {
	StudyID      uuid.UUID
	FinalizedBy  uuid.UUID
	DocumentName string
	Note         string
}

// AssignmentResult is returned to assignment UIs after a successful assign.
type AssignmentResult struct {
	StudyID           uuid.UUID `json:"studyId"`
	DoctorDisplayName string    `json:"doctorDisplayName"`
	AssignedAt        time.Time `json:"assignedAt"`
	Priority          Priority  `json:"priority"`
}

// UnassignResult reports the ledger state after an unassign.
type UnassignResult struct {
	RemainingAssignments int            `json:"remainingAssignments"`
	Status               WorkflowStatus `json:"status"`
}
