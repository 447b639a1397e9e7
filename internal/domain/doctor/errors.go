package doctor

import "errors"

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrDoctorInactive      = errors.New("doctor profile is inactive")
	ErrDoctorAlreadyExists = errors.New("doctor with this license number already exists")
	ErrLicenseRequired     = errors.New("license number is required")
)
