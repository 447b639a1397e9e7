package study

import "errors"

var (
	ErrStudyNotFound      = errors.New("study not found")
	ErrStudyAlreadyExists = errors.New("study with this accession number already exists")
	ErrInvalidPriority    = errors.New("invalid assignment priority")
	ErrInvalidStatus      = errors.New("invalid workflow status")
	ErrAlreadyFinalized   = errors.New("report has already been finalized")
	ErrAccessionRequired  = errors.New("accession number is required")
)
