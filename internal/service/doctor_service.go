package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/cache"
)

type DoctorService struct {
	doctors  doctor.Repository
	cache    cache.Cache
	auditSvc *AuditService
	log      *zap.Logger
}

func NewDoctorService(doctors doctor.Repository, c cache.Cache, auditSvc *AuditService, log *zap.Logger) *DoctorService {
	return &DoctorService{doctors: doctors, cache: c, auditSvc: auditSvc, log: log}
}

func (s *DoctorService) Create(ctx context.Context, cmd *doctor.CreateDoctorCommand, createdBy uuid.UUID, callerRole string, ip string) (*doctor.Doctor, error) {
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
	if cmd.LicenseNumber == "" {
		return nil, doctor.ErrLicenseRequired
	}

	d := &doctor.Doctor{
		UserAccountID:   cmd.UserAccountID,
		FirstName:       cmd.FirstName,
		LastName:        cmd.LastName,
		Specialty:       cmd.Specialty,
		LicenseNumber:   cmd.LicenseNumber,
		IsActiveProfile: true,
	}

	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: createdBy, UserRole: callerRole,
		Action: "create", ResourceType: "doctor", ResourceID: d.ID.String(), IPAddress: ip,
	})
	s.log.Info("doctor profile created", zap.String("doctor_id", d.ID.String()))

	return d, nil
}

func (s *DoctorService) GetByID(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	key := cache.DoctorKey(id)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var d doctor.Doctor
		if err := json.Unmarshal([]byte(cached), &d); err == nil {
			return &d, nil
		}
	}

	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(d); err == nil {
		if err := s.cache.Set(ctx, key, string(payload)); err != nil {
			s.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}

	return d, nil
}
