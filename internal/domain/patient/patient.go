package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

// UUIDSet is a small JSON-persisted set of ids.
type UUIDSet []uuid.UUID

func (s UUIDSet) Contains(id uuid.UUID) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

func (s UUIDSet) Add(id uuid.UUID) UUIDSet {
	if s.Contains(id) {
		return s
	}
	return append(s, id)
}

func (s UUIDSet) Remove(ids ...uuid.UUID) UUIDSet {
	match := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		match[id] = true
	}
	kept := s[:0]
	for _, v := range s {
		if match[v] {
			continue
		}
		kept = append(kept, v)
	}
	return kept
}

// Patient is the imaging subject. CurrentWorkflowStatus and
// ActiveStudyAssignedDoctors are denormalized mirrors of the active study's
// state, written only by the assignment coordinator as part of its atomic
// write-set.
type Patient struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	FirstName   string    `gorm:"column:first_name;type:varchar(100);not null"`
	LastName    string    `gorm:"column:last_name;type:varchar(100);not null"`
	DateOfBirth time.Time `gorm:"column:date_of_birth"`
	Gender      Gender    `gorm:"column:gender;type:varchar(20)"`

	// MRN is the medical record number the imaging center keys patients by.
	MRN string `gorm:"column:mrn;type:varchar(64);uniqueIndex;not null"`

	CurrentWorkflowStatus      string  `gorm:"column:current_workflow_status;type:varchar(40);index"`
	ActiveStudyAssignedDoctors UUIDSet `gorm:"column:active_study_assigned_doctors;serializer:json"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Patient) TableName() string {
	return "imaging.patients"
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Patient) IsActive() bool {
	return p.DeletedAt == nil
}

type CreatePatientCommand struct {
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Gender      Gender
	MRN         string
	CreatedBy   uuid.UUID
}
