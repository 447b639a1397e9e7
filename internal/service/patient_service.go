package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/cache"
)

type PatientService struct {
	patients patient.Repository
	cache    cache.Cache
	auditSvc *AuditService
	log      *zap.Logger
}

func NewPatientService(patients patient.Repository, c cache.Cache, auditSvc *AuditService, log *zap.Logger) *PatientService {
	return &PatientService{patients: patients, cache: c, auditSvc: auditSvc, log: log}
}

func (s *PatientService) Create(ctx context.Context, cmd *patient.CreatePatientCommand, callerRole string, ip string) (*patient.Patient, error) {
	var fields []string
	if cmd.FirstName == "" {
		fields = append(fields, "firstName is required")
	}
	if cmd.LastName == "" {
		fields = append(fields, "lastName is required")
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	if cmd.MRN == "" {
		return nil, patient.ErrMRNRequired
	}
	if cmd.Gender != "" && !cmd.Gender.IsValid() {
		return nil, patient.ErrInvalidGender
	}

	p := &patient.Patient{
		FirstName:   cmd.FirstName,
		LastName:    cmd.LastName,
		DateOfBirth: cmd.DateOfBirth,
		Gender:      cmd.Gender,
		MRN:         cmd.MRN,
		CreatedBy:   cmd.CreatedBy,
	}

	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: cmd.CreatedBy, UserRole: callerRole,
		Action: "create", ResourceType: "patient", ResourceID: p.ID.String(), IPAddress: ip,
	})
	s.log.Info("patient registered", zap.String("patient_id", p.ID.String()))

	return p, nil
}

func (s *PatientService) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	key := cache.PatientKey(id)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var p patient.Patient
		if err := json.Unmarshal([]byte(cached), &p); err == nil {
			return &p, nil
		}
	}

	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(p); err == nil {
		if err := s.cache.Set(ctx, key, string(payload)); err != nil {
			s.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}

	return p, nil
}
