package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new patient. Returns ErrPatientAlreadyExists on a
	// duplicate MRN.
	Create(ctx context.Context, p *Patient) error

	// GetByID retrieves a patient by primary key. Returns ErrPatientNotFound
	// if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Save writes back the patient including the workflow mirror fields.
	Save(ctx context.Context, p *Patient) error
}
