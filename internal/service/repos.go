package service

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/study"
)

// Repos bundles the transaction-scoped repositories the coordinator writes
// through. Every repository in one bundle shares a single transaction, which
// is what makes the cross-entity mirror updates atomic.
type Repos struct {
	Studies  study.Repository
	Doctors  doctor.Repository
	Patients patient.Repository
}

// TxManager executes a unit of work transactionally: if fn returns an error
// every write made through the bundle is rolled back. The coordinator never
// retries internally; callers may, because ledger mutations are idempotent.
type TxManager interface {
	InTx(ctx context.Context, fn func(r *Repos) error) error
}
