package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/study"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/cache"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/metrics"
)

// AssignmentService is the transactional coordinator for the reporting
// workflow: it is the only writer of the assignment ledger, the workflow
// status, the cached TAT, and the cross-entity mirrors on Doctor and
// Patient. Each operation runs in one transaction; on any failure nothing
// is visible; after commit, affected cache keys are invalidated best-effort.
type AssignmentService struct {
	tx       TxManager
	studies  study.Repository
	cache    cache.Cache
	auditSvc *AuditService
	metrics  *metrics.Collector
	log      *zap.Logger
	workflow config.WorkflowConfig

	now func() time.Time
}

func NewAssignmentService(
	tx TxManager,
	studies study.Repository,
	c cache.Cache,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
	workflow config.WorkflowConfig,
) *AssignmentService {
	return &AssignmentService{
		tx:       tx,
		studies:  studies,
		cache:    c,
		auditSvc: auditSvc,
		metrics:  m,
		log:      log,
		workflow: workflow,
		now:      time.Now,
	}
}

// AssignDoctor validates the doctor and study, upserts the ledger entry,
// advances the status, recomputes TAT, and mirrors the assignment onto the
// doctor's worklist and the patient's workflow fields, atomically.
// Re-assigning the same doctor refreshes the existing entry, so retries are
// safe.
func (s *AssignmentService) AssignDoctor(
	ctx context.Context,
	cmd *study.AssignDoctorCommand,
	callerRole string,
	ip string,
) (*study.AssignmentResult, error) {
	if cmd.Priority == "" {
		cmd.Priority = study.PriorityRoutine
	}
	if !cmd.Priority.IsValid() {
		return nil, study.ErrInvalidPriority
	}
	if cmd.DoctorID == uuid.Nil {
		return nil, &ValidationError{Fields: []string{"doctorId is required"}}
	}

	now := s.now()
	var (
		result    study.AssignmentResult
		cacheKeys []string
		appended  bool
	)

	err := s.tx.InTx(ctx, func(r *Repos) error {
		d, err := r.Doctors.GetByID(ctx, cmd.DoctorID)
		if err != nil {
			return err
		}
		if !d.IsActiveProfile {
			return doctor.ErrDoctorInactive
		}

		st, err := r.Studies.GetForUpdate(ctx, cmd.StudyID)
		if err != nil {
			return err
		}

		p, err := r.Patients.GetByID(ctx, st.PatientID)
		if err != nil {
			return err
		}

		assignee := d.AssigneeID()
		due := cmd.DueDate
		if due == nil {
			deadline := now.Add(s.dueIn(cmd.Priority))
			due = &deadline
		}

		appended = st.ApplyAssignment(assignee, cmd.AssignedBy, cmd.Priority, due, now)
		if !st.AdvanceStatus(study.StatusAssignedToDoctor, cmd.AssignedBy, cmd.Note, now) {
			// Status was already past assignment; the ledger change still
			// deserves a history record.
			st.NoteHistory(cmd.AssignedBy, "assignment updated: "+d.DisplayName(), now)
		}

		st.ApplyTAT(study.ComputeTAT(st, now, s.workflow.OverdueSLA))

		d.UpsertAssignedStudy(st.ID, st.PatientID, now, string(st.WorkflowStatus))
		p.CurrentWorkflowStatus = string(st.WorkflowStatus)
		p.ActiveStudyAssignedDoctors = p.ActiveStudyAssignedDoctors.Add(assignee)

		if err := r.Studies.Save(ctx, st); err != nil {
			return err
		}
		if err := r.Doctors.Save(ctx, d); err != nil {
			return err
		}
		if err := r.Patients.Save(ctx, p); err != nil {
			return err
		}

		result = study.AssignmentResult{
			StudyID:           st.ID,
			DoctorDisplayName: d.DisplayName(),
			AssignedAt:        now,
			Priority:          cmd.Priority,
		}
		cacheKeys = []string{cache.StudyKey(st.ID), cache.DoctorKey(d.ID), cache.PatientKey(p.ID)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, cacheKeys)
	if s.metrics != nil {
		action := "assign"
		if !appended {
			action = "reassign"
		}
		s.metrics.AssignmentsTotal.WithLabelValues(action).Inc()
		s.metrics.TATRecomputesTotal.Inc()
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: cmd.AssignedBy, UserRole: callerRole,
		Action: "update", ResourceType: "study", ResourceID: cmd.StudyID.String(), IPAddress: ip,
		Changes: fmt.Sprintf(`{"assigned":"%s","priority":"%s"}`, cmd.DoctorID, cmd.Priority),
	})

	return &result, nil
}

// UnassignDoctor removes every ledger and mirror entry for the doctor,
// matching both its record id and its linked account id because historical
// rows stored either. Removing the last assignment resets the study to
// pending_assignment, the one sanctioned backward transition. Unassigning
// a doctor with no entry is a no-op.
func (s *AssignmentService) UnassignDoctor(
	ctx context.Context,
	studyID, doctorID uuid.UUID,
	actor uuid.UUID,
	callerRole string,
	ip string,
) (*study.UnassignResult, error) {
	now := s.now()
	var (
		result    study.UnassignResult
		cacheKeys []string
		removed   int
	)

	err := s.tx.InTx(ctx, func(r *Repos) error {
		// The doctor profile may be gone; removal then matches the raw id
		// only.
		ids := []uuid.UUID{doctorID}
		d, err := r.Doctors.GetByID(ctx, doctorID)
		if err == nil {
			ids = d.MatchIDs()
		} else if !errors.Is(err, doctor.ErrDoctorNotFound) {
			return err
		}

		st, err := r.Studies.GetForUpdate(ctx, studyID)
		if err != nil {
			return err
		}

		removed = st.RemoveAssignees(ids...)
		if removed == 0 {
			result = study.UnassignResult{
				RemainingAssignments: len(st.Assignments),
				Status:               st.WorkflowStatus,
			}
			return nil
		}

		if len(st.Assignments) == 0 {
			st.ResetToPendingAssignment(actor, now)
		}
		st.ApplyTAT(study.ComputeTAT(st, now, s.workflow.OverdueSLA))

		if err := r.Studies.Save(ctx, st); err != nil {
			return err
		}

		if d != nil {
			d.RemoveAssignedStudy(st.ID)
			if err := r.Doctors.Save(ctx, d); err != nil {
				return err
			}
		}

		p, err := r.Patients.GetByID(ctx, st.PatientID)
		if err != nil {
			return err
		}
		p.ActiveStudyAssignedDoctors = p.ActiveStudyAssignedDoctors.Remove(ids...)
		p.CurrentWorkflowStatus = string(st.WorkflowStatus)
		if err := r.Patients.Save(ctx, p); err != nil {
			return err
		}

		result = study.UnassignResult{
			RemainingAssignments: len(st.Assignments),
			Status:               st.WorkflowStatus,
		}
		cacheKeys = []string{cache.StudyKey(st.ID), cache.DoctorKey(doctorID), cache.PatientKey(p.ID)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if removed > 0 {
		s.invalidate(ctx, cacheKeys)
		if s.metrics != nil {
			s.metrics.AssignmentsTotal.WithLabelValues("unassign").Inc()
			s.metrics.TATRecomputesTotal.Inc()
		}
		s.auditSvc.LogAsync(ctx, AuditEntry{
			UserID: actor, UserRole: callerRole,
			Action: "update", ResourceType: "study", ResourceID: studyID.String(), IPAddress: ip,
			Changes: fmt.Sprintf(`{"unassigned":"%s"}`, doctorID),
		})
	}

	return &result, nil
}

// FinalizeReport stamps the finalization time, advances the workflow, and
// recomputes TAT in the same transaction.
func (s *AssignmentService) FinalizeReport(
	ctx context.Context,
	cmd *study.FinalizeReportCommand,
	callerRole string,
	ip string,
) (*study.Study, error) {
	now := s.now()
	var (
		finalized *study.Study
		cacheKeys []string
	)

	err := s.tx.InTx(ctx, func(r *Repos) error {
		st, err := r.Studies.GetForUpdate(ctx, cmd.StudyID)
		if err != nil {
			return err
		}
		if st.ReportFinalizedAt != nil {
			return study.ErrAlreadyFinalized
		}

		st.ReportFinalizedAt = &now
		st.Report = &study.ReportInfo{
			FinalizedAt:  &now,
			FinalizedBy:  &cmd.FinalizedBy,
			DocumentName: cmd.DocumentName,
		}
		st.AdvanceStatus(study.StatusReportFinalized, cmd.FinalizedBy, cmd.Note, now)
		st.ApplyTAT(study.ComputeTAT(st, now, s.workflow.OverdueSLA))

		if err := r.Studies.Save(ctx, st); err != nil {
			return err
		}

		p, err := r.Patients.GetByID(ctx, st.PatientID)
		if err != nil {
			return err
		}
		p.CurrentWorkflowStatus = string(st.WorkflowStatus)
		if err := r.Patients.Save(ctx, p); err != nil {
			return err
		}

		finalized = st
		cacheKeys = []string{cache.StudyKey(st.ID), cache.PatientKey(p.ID)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, cacheKeys)
	if s.metrics != nil {
		s.metrics.ReportsFinalizedTotal.Inc()
		s.metrics.TATRecomputesTotal.Inc()
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: cmd.FinalizedBy, UserRole: callerRole,
		Action: "update", ResourceType: "study", ResourceID: cmd.StudyID.String(), IPAddress: ip,
		Changes: `{"report":"finalized"}`,
	})

	return finalized, nil
}

// AdvanceWorkflow moves a study forward on the canonical ladder (report
// downloads, opens, upload progress). Regressive candidates are logged
// no-ops, never errors; callers must not assume their candidate applied.
func (s *AssignmentService) AdvanceWorkflow(
	ctx context.Context,
	studyID uuid.UUID,
	candidate study.WorkflowStatus,
	actor uuid.UUID,
	note string,
) (study.WorkflowStatus, error) {
	if !candidate.IsValid() {
		return "", study.ErrInvalidStatus
	}

	now := s.now()
	var (
		status    study.WorkflowStatus
		applied   bool
		cacheKeys []string
	)

	err := s.tx.InTx(ctx, func(r *Repos) error {
		st, err := r.Studies.GetForUpdate(ctx, studyID)
		if err != nil {
			return err
		}

		applied = st.AdvanceStatus(candidate, actor, note, now)
		status = st.WorkflowStatus
		if !applied {
			return nil
		}

		if err := r.Studies.Save(ctx, st); err != nil {
			return err
		}

		p, err := r.Patients.GetByID(ctx, st.PatientID)
		if err != nil {
			return err
		}
		p.CurrentWorkflowStatus = string(st.WorkflowStatus)
		if err := r.Patients.Save(ctx, p); err != nil {
			return err
		}

		cacheKeys = []string{cache.StudyKey(st.ID), cache.PatientKey(p.ID)}
		return nil
	})
	if err != nil {
		return "", err
	}

	if s.metrics != nil {
		if applied {
			s.metrics.StatusTransitionsTotal.WithLabelValues(string(candidate)).Inc()
		} else {
			s.metrics.StatusTransitionsTotal.WithLabelValues("rejected").Inc()
		}
	}
	if applied {
		s.invalidate(ctx, cacheKeys)
	} else {
		s.log.Info("workflow status candidate rejected",
			zap.String("study_id", studyID.String()),
			zap.String("current", string(status)),
			zap.String("candidate", string(candidate)),
		)
	}

	return status, nil
}

// GetTAT recomputes the turnaround view on the fly. The read is
// non-blocking and purely derived, so it may briefly trail a concurrent
// assignment write; acceptable, TAT is advisory.
func (s *AssignmentService) GetTAT(ctx context.Context, studyID uuid.UUID) (*study.TAT, error) {
	st, err := s.studies.GetByID(ctx, studyID)
	if err != nil {
		return nil, err
	}
	return study.ComputeTAT(st, s.now(), s.workflow.OverdueSLA), nil
}

// RefreshOverdueGauge recounts the studies past the reporting SLA and
// publishes the figure on the overdue gauge. It returns the count so callers
// can log or assert on it.
func (s *AssignmentService) RefreshOverdueGauge(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.workflow.OverdueSLA)
	n, err := s.studies.CountOverdue(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.OverdueStudiesGauge.Set(float64(n))
	}
	return n, nil
}

// RunOverdueSweep refreshes the overdue gauge once immediately and then on
// every tick until the context is cancelled. Run it as a goroutine from main.
func (s *AssignmentService) RunOverdueSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := s.RefreshOverdueGauge(ctx); err != nil {
			s.log.Warn("overdue sweep failed", zap.Error(err))
		} else {
			s.log.Debug("overdue sweep", zap.Int64("overdue_studies", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *AssignmentService) dueIn(p study.Priority) time.Duration {
	switch p {
	case study.PriorityStat:
		return s.workflow.StatDueIn
	case study.PriorityUrgent:
		return s.workflow.UrgentDueIn
	default:
		return s.workflow.RoutineDueIn
	}
}

// invalidate is fire-and-forget: a crash between commit and invalidation
// leaves a TTL-bounded stale entry, which is tolerated.
func (s *AssignmentService) invalidate(ctx context.Context, keys []string) {
	if s.cache == nil || len(keys) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
