package doctor

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new doctor profile. Returns ErrDoctorAlreadyExists on
	// a duplicate license number.
	Create(ctx context.Context, d *Doctor) error

	// GetByID retrieves a doctor by primary key. Returns ErrDoctorNotFound if
	// not found.
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	// Save writes back the whole profile including the worklist mirror.
	Save(ctx context.Context, d *Doctor) error
}
