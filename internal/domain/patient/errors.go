package patient

import "errors"

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPatientAlreadyExists = errors.New("patient with this MRN already exists")
	ErrMRNRequired          = errors.New("MRN is required")
	ErrInvalidGender        = errors.New("invalid gender value")
)
