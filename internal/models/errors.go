package models

import "github.com/pkg/errors"

// Доменные ошибки. Сравнивать через errors.Is.
var (
	ErrInvalidIdentifier   = errors.New("invalid identifier")
	ErrConflict            = errors.New("identifier already tracked")
	ErrNotFound            = errors.New("tracking not found")
	ErrProviderUnavailable = errors.New("status provider unavailable")
)
