package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/study"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/cache"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/metrics"
)

// StudyService covers intake and reads. All ledger and status mutations live
// on AssignmentService; this service never writes assignment state.
type StudyService struct {
	studies  study.Repository
	patients patient.Repository
	cache    cache.Cache
	auditSvc *AuditService
	metrics  *metrics.Collector
	log      *zap.Logger

	now func() time.Time
}

func NewStudyService(
	studies study.Repository,
	patients patient.Repository,
	c cache.Cache,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *StudyService {
	return &StudyService{
		studies:  studies,
		patients: patients,
		cache:    c,
		auditSvc: auditSvc,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Create registers a newly received study. The study starts at
// new_study_received with an empty assignment ledger and one history entry.
func (s *StudyService) Create(ctx context.Context, cmd *study.CreateStudyCommand, callerRole string, ip string) (*study.Study, error) {
	if cmd.AccessionNumber == "" {
		return nil, study.ErrAccessionRequired
	}
	if cmd.PatientID == uuid.Nil {
		return nil, &ValidationError{Fields: []string{"patientId is required"}}
	}

	// The patient must exist before intake; studies are never orphaned.
	if _, err := s.patients.GetByID(ctx, cmd.PatientID); err != nil {
		return nil, err
	}

	now := s.now()
	st := &study.Study{
		PatientID:       cmd.PatientID,
		AccessionNumber: cmd.AccessionNumber,
		Modality:        cmd.Modality,
		BodyPart:        cmd.BodyPart,
		Description:     cmd.Description,
		StudyDate:       cmd.StudyDate,
		StudyTime:       cmd.StudyTime,
		WorkflowStatus:  study.StatusNewStudyReceived,
		StatusHistory: study.StatusHistoryList{{
			Status:    study.StatusNewStudyReceived,
			ChangedAt: now,
			ChangedBy: cmd.CreatedBy,
			Note:      "study received",
		}},
		CreatedBy: cmd.CreatedBy,
	}

	if err := s.studies.Create(ctx, st); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.StudiesRegisteredTotal.Inc()
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: cmd.CreatedBy, UserRole: callerRole,
		Action: "create", ResourceType: "study", ResourceID: st.ID.String(), IPAddress: ip,
	})
	s.log.Info("study registered",
		zap.String("study_id", st.ID.String()),
		zap.String("accession_number", st.AccessionNumber),
	)

	return st, nil
}

// GetByID reads through the cache. Cache misses and cache errors both fall
// back to the database; the cache is a read accelerator, never a source of
// truth.
func (s *StudyService) GetByID(ctx context.Context, id uuid.UUID) (*study.Study, error) {
	key := cache.StudyKey(id)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var st study.Study
		if err := json.Unmarshal([]byte(cached), &st); err == nil {
			return &st, nil
		}
	}

	st, err := s.studies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(st); err == nil {
		if err := s.cache.Set(ctx, key, string(payload)); err != nil {
			s.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}

	return st, nil
}
