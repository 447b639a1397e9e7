package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/service"
)

// TxManager runs a unit of work against transaction-scoped repositories.
// gorm rolls the whole transaction back when the closure errors, which is
// what gives assign/unassign their all-or-nothing write-set.
type TxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

var _ service.TxManager = (*TxManager)(nil)

func (m *TxManager) InTx(ctx context.Context, fn func(r *service.Repos) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&service.Repos{
			Studies:  NewStudyRepository(tx),
			Doctors:  NewDoctorRepository(tx),
			Patients: NewPatientRepository(tx),
		})
	})
}
