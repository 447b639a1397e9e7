package study

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new study. Returns ErrStudyAlreadyExists on a
	// duplicate accession number.
	Create(ctx context.Context, s *Study) error

	// GetByID retrieves a study by primary key. Returns ErrStudyNotFound if
	// not found.
	GetByID(ctx context.Context, id uuid.UUID) (*Study, error)

	// GetForUpdate retrieves a study and locks its row for the duration of
	// the enclosing transaction, serializing concurrent assignment writes.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Study, error)

	// Save writes back the whole aggregate (ledgers, status, TAT mirrors).
	Save(ctx context.Context, s *Study) error

	// CountOverdue reports how many unfinalized studies were received before
	// the cutoff. Feeds the overdue gauge.
	CountOverdue(ctx context.Context, cutoff time.Time) (int64, error)
}
