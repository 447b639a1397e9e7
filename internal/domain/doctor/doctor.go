package doctor

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssignedStudy is the doctor-side mirror of a study assignment, kept for
// fast worklist rendering.
type AssignedStudy struct {
	StudyID      uuid.UUID `json:"studyId"`
	PatientID    uuid.UUID `json:"patientId"`
	AssignedDate time.Time `json:"assignedDate"`
	Status       string    `json:"status"`
}

type AssignedStudyList []AssignedStudy

// Doctor is a reporting radiologist profile. UserAccountID links to the
// login account; when present it is the canonical assignee identity written
// into study ledgers. Older ledger rows may reference either id.
type Doctor struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	UserAccountID *uuid.UUID `gorm:"column:user_account_id;type:uuid;index"`

	FirstName     string `gorm:"column:first_name;type:varchar(100);not null"`
	LastName      string `gorm:"column:last_name;type:varchar(100);not null"`
	Specialty     string `gorm:"column:specialty;type:varchar(100)"`
	LicenseNumber string `gorm:"column:license_number;type:varchar(50);uniqueIndex"`

	AssignedStudies AssignedStudyList `gorm:"column:assigned_studies;serializer:json"`

	IsActiveProfile bool `gorm:"column:is_active_profile;default:true;index"`
}

func (Doctor) TableName() string {
	return "imaging.doctors"
}

func (d *Doctor) DisplayName() string {
	return strings.TrimSpace("Dr. " + d.FirstName + " " + d.LastName)
}

// AssigneeID resolves the canonical identity written into study ledgers.
func (d *Doctor) AssigneeID() uuid.UUID {
	if d.UserAccountID != nil {
		return *d.UserAccountID
	}
	return d.ID
}

// MatchIDs returns every id this doctor may appear under in historical
// ledger rows.
func (d *Doctor) MatchIDs() []uuid.UUID {
	ids := []uuid.UUID{d.ID}
	if d.UserAccountID != nil && *d.UserAccountID != d.ID {
		ids = append(ids, *d.UserAccountID)
	}
	return ids
}

// UpsertAssignedStudy refreshes or appends the worklist mirror entry for a
// study.
func (d *Doctor) UpsertAssignedStudy(studyID, patientID uuid.UUID, assignedAt time.Time, status string) {
	for i := range d.AssignedStudies {
		if d.AssignedStudies[i].StudyID == studyID {
			d.AssignedStudies[i].AssignedDate = assignedAt
			d.AssignedStudies[i].Status = status
			return
		}
	}
	d.AssignedStudies = append(d.AssignedStudies, AssignedStudy{
		StudyID:      studyID,
		PatientID:    patientID,
		AssignedDate: assignedAt,
		Status:       status,
	})
}

// RemoveAssignedStudy drops the worklist mirror entry; absent entries are a
// no-op.
func (d *Doctor) RemoveAssignedStudy(studyID uuid.UUID) bool {
	for i := range d.AssignedStudies {
		if d.AssignedStudies[i].StudyID == studyID {
			d.AssignedStudies = append(d.AssignedStudies[:i], d.AssignedStudies[i+1:]...)
			return true
		}
	}
	return false
}

type CreateDoctorCommand struct {
	FirstName     string
	LastName      string
	Specialty     string
	LicenseNumber string
	UserAccountID *uuid.UUID
}
