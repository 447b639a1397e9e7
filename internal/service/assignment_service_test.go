package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/study"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/metrics"
)

// In-memory fakes. The fake transaction runner hands the coordinator the
// same repositories for every "transaction"; rollback is not simulated, the
// tests assert on the happy-path write-set and on error short-circuits.

type memStudyRepo struct {
	studies map[uuid.UUID]*study.Study
}

func newMemStudyRepo() *memStudyRepo {
	return &memStudyRepo{studies: make(map[uuid.UUID]*study.Study)}
}

func (r *memStudyRepo) Create(_ context.Context, s *study.Study) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.studies[s.ID] = s
	return nil
}

func (r *memStudyRepo) GetByID(_ context.Context, id uuid.UUID) (*study.Study, error) {
	s, ok := r.studies[id]
	if !ok {
		return nil, study.ErrStudyNotFound
	}
	return s, nil
}

func (r *memStudyRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*study.Study, error) {
	return r.GetByID(ctx, id)
}

func (r *memStudyRepo) Save(_ context.Context, s *study.Study) error {
	r.studies[s.ID] = s
	return nil
}

func (r *memStudyRepo) CountOverdue(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, s := range r.studies {
		if s.ReportFinalizedAt == nil && s.CreatedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

type memDoctorRepo struct {
	doctors map[uuid.UUID]*doctor.Doctor
}

func newMemDoctorRepo() *memDoctorRepo {
	return &memDoctorRepo{doctors: make(map[uuid.UUID]*doctor.Doctor)}
}

func (r *memDoctorRepo) Create(_ context.Context, d *doctor.Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	r.doctors[d.ID] = d
	return nil
}

func (r *memDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	d, ok := r.doctors[id]
	if !ok {
		return nil, doctor.ErrDoctorNotFound
	}
	return d, nil
}

func (r *memDoctorRepo) Save(_ context.Context, d *doctor.Doctor) error {
	r.doctors[d.ID] = d
	return nil
}

type memPatientRepo struct {
	patients map[uuid.UUID]*patient.Patient
}

func newMemPatientRepo() *memPatientRepo {
	return &memPatientRepo{patients: make(map[uuid.UUID]*patient.Patient)}
}

func (r *memPatientRepo) Create(_ context.Context, p *patient.Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.patients[p.ID] = p
	return nil
}

func (r *memPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return p, nil
}

func (r *memPatientRepo) Save(_ context.Context, p *patient.Patient) error {
	r.patients[p.ID] = p
	return nil
}

type fakeTxManager struct {
	repos *Repos
}

func (m *fakeTxManager) InTx(_ context.Context, fn func(r *Repos) error) error {
	return fn(m.repos)
}

type memAuditRepo struct{}

func (memAuditRepo) Create(context.Context, *domain.AuditLog) error { return nil }

func newTestAuditService() *AuditService {
	return NewAuditService(memAuditRepo{}, zap.NewNop(), nil)
}

type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (c *recordingCache) Set(context.Context, string, string) error         { return nil }
func (c *recordingCache) Close() error                                      { return nil }

func (c *recordingCache) Invalidate(_ context.Context, keys ...string) error {
	c.invalidated = append(c.invalidated, keys...)
	return nil
}

type fixture struct {
	svc      *AssignmentService
	studies  *memStudyRepo
	doctors  *memDoctorRepo
	patients *memPatientRepo
	cache    *recordingCache
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	studies := newMemStudyRepo()
	doctors := newMemDoctorRepo()
	patients := newMemPatientRepo()
	cache := &recordingCache{}
	tx := &fakeTxManager{repos: &Repos{Studies: studies, Doctors: doctors, Patients: patients}}

	workflow := config.WorkflowConfig{
		OverdueSLA:   24 * time.Hour,
		StatDueIn:    time.Hour,
		UrgentDueIn:  4 * time.Hour,
		RoutineDueIn: 24 * time.Hour,
	}

	svc := NewAssignmentService(tx, studies, cache, newTestAuditService(), nil, zap.NewNop(), workflow)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &fixture{svc: svc, studies: studies, doctors: doctors, patients: patients, cache: cache, now: now}
}

func (f *fixture) seedPatient(t *testing.T) *patient.Patient {
	t.Helper()
	p := &patient.Patient{FirstName: "Jan", LastName: "Kowalski", MRN: "MRN-1"}
	if err := f.patients.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) seedDoctor(t *testing.T, account *uuid.UUID, active bool) *doctor.Doctor {
	t.Helper()
	d := &doctor.Doctor{
		FirstName:       "Maria",
		LastName:        "Nowak",
		LicenseNumber:   uuid.NewString(),
		UserAccountID:   account,
		IsActiveProfile: active,
	}
	if err := f.doctors.Create(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	return d
}

func (f *fixture) seedStudy(t *testing.T, patientID uuid.UUID) *study.Study {
	t.Helper()
	s := &study.Study{
		PatientID:       patientID,
		AccessionNumber: uuid.NewString(),
		CreatedAt:       f.now.Add(-6 * time.Hour),
		WorkflowStatus:  study.StatusPendingAssignment,
	}
	if err := f.studies.Create(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAssignDoctor(t *testing.T) {
	f := newFixture(t)
	p := f.seedPatient(t)
	d := f.seedDoctor(t, nil, true)
	s := f.seedStudy(t, p.ID)
	actor := uuid.New()

	result, err := f.svc.AssignDoctor(context.Background(), &study.AssignDoctorCommand{
		StudyID:    s.ID,
		DoctorID:   d.ID,
		AssignedBy: actor,
		Priority:   study.PriorityUrgent,
	}, "operator", "10.0.0.1")
	if err != nil {
		t.Fatalf("AssignDoctor: %v", err)
	}

	if result.DoctorDisplayName != "Dr. Maria Nowak" {
		t.Errorf("DoctorDisplayName = %q", result.DoctorDisplayName)
	}
	if result.Priority != study.PriorityUrgent {
		t.Errorf("Priority = %q", result.Priority)
	}

	got, _ := f.studies.GetByID(context.Background(), s.ID)
	if len(got.Assignments) != 1 {
		t.Fatalf("assignments length = %d, want 1", len(got.Assignments))
	}
	a := got.Assignments[0]
	if a.AssigneeID != d.ID {
		t.Errorf("AssigneeID = %v, want doctor id (no linked account)", a.AssigneeID)
	}
	if a.DueDate == nil || !a.DueDate.Equal(f.now.Add(4*time.Hour)) {
		t.Errorf("DueDate = %v, want urgent default %v", a.DueDate, f.now.Add(4*time.Hour))
	}
	if got.WorkflowStatus != study.StatusAssignedToDoctor {
		t.Errorf("WorkflowStatus = %q", got.WorkflowStatus)
	}
	if got.CalculatedTAT == nil || got.CalculatedTAT.UploadToAssignment == nil || *got.CalculatedTAT.UploadToAssignment != 360 {
		t.Errorf("TAT not recomputed: %+v", got.CalculatedTAT)
	}

	gotDoctor, _ := f.doctors.GetByID(context.Background(), d.ID)
	if len(gotDoctor.AssignedStudies) != 1 || gotDoctor.AssignedStudies[0].StudyID != s.ID {
		t.Errorf("doctor worklist mirror not written: %+v", gotDoctor.AssignedStudies)
	}

	gotPatient, _ := f.patients.GetByID(context.Background(), p.ID)
	if gotPatient.CurrentWorkflowStatus != string(study.StatusAssignedToDoctor) {
		t.Errorf("patient status mirror = %q", gotPatient.CurrentWorkflowStatus)
	}
	if !gotPatient.ActiveStudyAssignedDoctors.Contains(d.ID) {
		t.Error("patient assigned-doctors mirror not written")
	}

	if len(f.cache.invalidated) != 3 {
		t.Errorf("invalidated %d cache keys, want 3: %v", len(f.cache.invalidated), f.cache.invalidated)
	}
}

func TestAssignDoctorUsesLinkedAccountID(t *testing.T) {
	f := newFixture(t)
	p := f.seedPatient(t)
	account := uuid.New()
	d := f.seedDoctor(t, &account, true)
	s := f.seedStudy(t, p.ID)

	if _, err := f.svc.AssignDoctor(context.Background(), &study.AssignDoctorCommand{
		StudyID: s.ID, DoctorID: d.ID, AssignedBy: uuid.New(),
	}, "operator", ""); err != nil {
		t.Fatalf("AssignDoctor: %v", err)
	}

	got, _ := f.studies.GetByID(context.Background(), s.ID)
	if got.Assignments[0].AssigneeID != account {
		t.Errorf("AssigneeID = %v, want linked account %v", got.Assignments[0].AssigneeID, account)
	}
}

func TestAssignDoctorIdempotent(t *testing.T) {
	f := newFixture(t)
	p := f.seedPatient(t)
	d := f.seedDoctor(t, nil, true)
	s := f.seedStudy(t, p.ID)
	cmd := &study.AssignDoctorCommand{StudyID: s.ID, DoctorID: d.ID, AssignedBy: uuid.New()}

	if _, err := f.svc.AssignDoctor(context.Background(), cmd, "operator", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AssignDoctor(context.Background(), cmd, "operator", ""); err != nil {
		t.Fatal(err)
	}

	got, _ := f.studies.GetByID(context.Background(), s.ID)
	if len(got.Assignments) != 1 {
		t.Errorf("assignments length = %d after double assign, want 1", len(got.Assignments))
	}
	gotDoctor, _ := f.doctors.GetByID(context.Background(), d.ID)
	if len(gotDoctor.AssignedStudies) != 1 {
		t.Errorf("doctor worklist length = %d after double assign, want 1", len(gotDoctor.AssignedStudies))
	}
	// Both calls leave a trail.
	if len(got.StatusHistory) != 2 {
		t.Errorf("history length = %d, want 2 (one advance, one note)", len(got.StatusHistory))
	}
}

func TestAssignDoctorErrors(t *testing.T) {
	f := newFixture(t)
	p := f.seedPatient(t)
	active := f.seedDoctor(t, nil, true)
	inactive := f.seedDoctor(t, nil, false)
	s := f.seedStudy(t, p.ID)

	tests := []struct {
		name string
		cmd  *study.AssignDoctorCommand
		want error
	}{
		{"doctor not found", &study.AssignDoctorCommand{StudyID: s.ID, DoctorID: uuid.New()}, doctor.ErrDoctorNotFound},
		{"doctor inactive", &study.AssignDoctorCommand{StudyID: s.ID, DoctorID: inactive.ID}, doctor.ErrDoctorInactive},
		{"study not found", &study.AssignDoctorCommand{StudyID: uuid.New(), DoctorID: active.ID}, study.ErrStudyNotFound},
		{"bad priority", &study.AssignDoctorCommand{StudyID: s.ID, DoctorID: active.ID, Priority: "asap"}, study.ErrInvalidPriority},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AssignDoctor(context.Background(), tt.cmd, "operator", "")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	got, _ := f.studies.GetByID(context.Background(), s.ID)
	if len(got.Assignments) != 0 {
		t.Errorf("failed assigns mutated the ledger: %+v", got.Assignments)
	}
}

func TestUnassignLastDoctorResetsStatus(t *testing.T) {
	f := newFixture(t)
	p := f.seedPatient(t)
	d := f.seedDoctor(t, nil, true)
	s := f.seedStudy(t, p.ID)
	actor := uuid.New()

	if _, err := f.svc.AssignDoctor(context.Background(), &study.AssignDoctorCommand{
		StudyID: s.ID, DoctorID: d.ID, AssignedBy: actor,
	}, "operator", ""); err != nil {
		t.Fatal(err)
	}

	result, err := f.svc.UnassignDoctor(context.Background(), s.ID, d.ID, actor, "operator", "")
	if err != nil {
		t.Fatalf("UnassignDoctor: %v", err)
	}

	if result.RemainingAssignments != 0 {
		t.Errorf("RemainingAssignments = %d, want 0", result.RemainingAssignments)
	}
	if result.Status != study.StatusPendingAssignment {
		t.Errorf("Status = %q, want pending_assignment", result.Status)
	}

	gotDoctor, _ := f.doctors.GetByID(context.Background(), d.ID)
	if len(gotDoctor.AssignedStudies) != 0 {
		t.Errorf("doctor worklist not cleared: %+v", gotDoctor.AssignedStudies)
	}
	gotPatient, _ := f.patients.GetByID(context.Background(), p.ID)
	if gotPatient.ActiveStudyAssignedDoctors.Contains(d.ID) {
		t.Error("patient mirror still holds the doctor")
	}
}

func TestUnassignOneOfTwoKeepsStatus(t *testing.T) {
	f := newFixture(t)
	p := f.seedPatient(t)
	dx := f.seedDoctor(t, nil, true)
	dy := f.seedDoctor(t, nil, true)
	s := f.seedStudy(t, p.ID)
	actor := uuid.New()

	for _, d := range []*doctor.Doctor{dx, dy} {
		if _, err := f.svc.AssignDoctor(context.Background(), &study.AssignDoctorCommand{
			StudyID: s.ID, DoctorID: d.ID, AssignedBy: actor,
		}, "operator", ""); err != nil {
			t.Fatal(err)
		}
	}

	result, err := f.svc.UnassignDoctor(context.Background(), s.ID, dx.ID, actor, "operator", "")
	if err != nil {
		t.Fatal(err)
	}
	if result.RemainingAssignments != 1 {
		t.Errorf("RemainingAssignments = %d, want 1", result.RemainingAssignments)
	}
	if result.Status != study.StatusAssignedToDoctor {
		t.Errorf("Status = %q, removing one of two must not reset", result.Status)
	}

	got, _ := f.studies.GetByID(context.Background(), s.ID)
	if current := got.CurrentAssignment(); current == nil || current.AssigneeID != dy.ID {
		t.Errorf("current assignment = %+v, want doctor Y", current)
	}
}

func TestUnassignAbsentDoctorIsNoOp(t *testing.T) {
	f := newFixture(t)
	p := f.seedPatient(t)
	d := f.seedDoctor(t, nil, true)
	s := f.seedStudy(t, p.ID)

	result, err := f.svc.UnassignDoctor(context.Background(), s.ID, d.ID, uuid.New(), "operator", "")
	if err != nil {
		t.Fatalf("unassigning an absent doctor should not error: %v", err)
	}
	if result.RemainingAssignments != 0 {
		t.Errorf("RemainingAssignments = %d", result.RemainingAssignments)
	}
	if result.Status != study.StatusPendingAssignment {
		t.Errorf("Status = %q, no-op must not change status", result.Status)
	}
	if len(f.cache.invalidated) != 0 {
		t.Errorf("no-op unassign invalidated cache keys: %v", f.cache.invalidated)
	}
}

func TestFinalizeReport(t *testing.T) {
	f := newFixture(t)
	p := f.seedPatient(t)
	d := f.seedDoctor(t, nil, true)
	s := f.seedStudy(t, p.ID)
	radiologist := uuid.New()

	if _, err := f.svc.AssignDoctor(context.Background(), &study.AssignDoctorCommand{
		StudyID: s.ID, DoctorID: d.ID, AssignedBy: uuid.New(),
	}, "operator", ""); err != nil {
		t.Fatal(err)
	}

	finalized, err := f.svc.FinalizeReport(context.Background(), &study.FinalizeReportCommand{
		StudyID:      s.ID,
		FinalizedBy:  radiologist,
		DocumentName: "chest-ct-report.pdf",
	}, "radiologist", "")
	if err != nil {
		t.Fatalf("FinalizeReport: %v", err)
	}

	if finalized.WorkflowStatus != study.StatusReportFinalized {
		t.Errorf("WorkflowStatus = %q", finalized.WorkflowStatus)
	}
	if finalized.ReportFinalizedAt == nil || !finalized.ReportFinalizedAt.Equal(f.now) {
		t.Errorf("ReportFinalizedAt = %v", finalized.ReportFinalizedAt)
	}
	if finalized.Report == nil || finalized.Report.DocumentName != "chest-ct-report.pdf" {
		t.Errorf("Report = %+v", finalized.Report)
	}
	if finalized.CalculatedTAT == nil || finalized.CalculatedTAT.Phase != study.PhaseCompleted {
		t.Errorf("TAT phase = %+v, want completed", finalized.CalculatedTAT)
	}

	// Finalizing twice is rejected.
	if _, err := f.svc.FinalizeReport(context.Background(), &study.FinalizeReportCommand{
		StudyID: s.ID, FinalizedBy: radiologist,
	}, "radiologist", ""); !errors.Is(err, study.ErrAlreadyFinalized) {
		t.Errorf("second finalize err = %v, want ErrAlreadyFinalized", err)
	}
}

func TestAdvanceWorkflowRejectsRegression(t *testing.T) {
	f := newFixture(t)
	p := f.seedPatient(t)
	s := f.seedStudy(t, p.ID)
	actor := uuid.New()

	status, err := f.svc.AdvanceWorkflow(context.Background(), s.ID, study.StatusReportInProgress, actor, "")
	if err != nil {
		t.Fatalf("AdvanceWorkflow: %v", err)
	}
	if status != study.StatusReportInProgress {
		t.Errorf("status = %q", status)
	}

	// Regression is a logged no-op, not an error.
	status, err = f.svc.AdvanceWorkflow(context.Background(), s.ID, study.StatusAssignedToDoctor, actor, "")
	if err != nil {
		t.Fatalf("regressive advance errored: %v", err)
	}
	if status != study.StatusReportInProgress {
		t.Errorf("status after regression attempt = %q, want unchanged", status)
	}

	// Unknown candidates are errors.
	if _, err := f.svc.AdvanceWorkflow(context.Background(), s.ID, "bogus", actor, ""); !errors.Is(err, study.ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestRefreshOverdueGauge(t *testing.T) {
	f := newFixture(t)
	p := f.seedPatient(t)

	// One study well past the 24h SLA, one fresh, one old but finalized.
	overdue := f.seedStudy(t, p.ID)
	overdue.CreatedAt = f.now.Add(-48 * time.Hour)
	f.seedStudy(t, p.ID)
	done := f.seedStudy(t, p.ID)
	done.CreatedAt = f.now.Add(-72 * time.Hour)
	finalizedAt := f.now.Add(-48 * time.Hour)
	done.ReportFinalizedAt = &finalizedAt

	m := metrics.NewCollector("radflow_test")
	f.svc.metrics = m

	n, err := f.svc.RefreshOverdueGauge(context.Background())
	if err != nil {
		t.Fatalf("RefreshOverdueGauge: %v", err)
	}
	if n != 1 {
		t.Errorf("overdue count = %d, want 1", n)
	}
	if got := testutil.ToFloat64(m.OverdueStudiesGauge); got != 1 {
		t.Errorf("overdue gauge = %v, want 1", got)
	}
}

func TestGetTAT(t *testing.T) {
	f := newFixture(t)
	p := f.seedPatient(t)
	s := f.seedStudy(t, p.ID)

	tat, err := f.svc.GetTAT(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("GetTAT: %v", err)
	}
	// Seeded 6h before the fixture clock.
	if tat.TotalMinutes == nil || *tat.TotalMinutes != 360 {
		t.Errorf("TotalMinutes = %v, want 360", tat.TotalMinutes)
	}
	if tat.IsOverdue {
		t.Error("6h old study flagged overdue against a 24h SLA")
	}

	if _, err := f.svc.GetTAT(context.Background(), uuid.New()); !errors.Is(err, study.ErrStudyNotFound) {
		t.Errorf("err = %v, want ErrStudyNotFound", err)
	}
}
