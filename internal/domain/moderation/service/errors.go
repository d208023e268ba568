package service

import "errors"

var (
	ErrFailureNotFound = errors.New("exam failure not found")
	ErrAlreadyReviewed = errors.New("exam failure already reviewed")
	ErrUnknownAction   = errors.New("unknown review action")
)
