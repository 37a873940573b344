package services

import (
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"gorm.io/gorm"
)

var (
	// ErrValidation rejects malformed input before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrSelfReport is returned when the author reports their own content.
	ErrSelfReport = errors.New("cannot report your own content")
	// ErrDuplicateReport is returned when the policy forbids a second report
	// by the same user on the same item.
	ErrDuplicateReport = errors.New("content already reported by this user")
	// ErrStorageUnavailable wraps persistence failures; it is never swallowed.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConfiguration fails closed on missing or invalid constants.
	ErrConfiguration = config.ErrConfiguration

	ErrReportNotFound  = errors.New("report not found")
	ErrScoreNotFound   = errors.New("report score not found")
	ErrAlreadyResolved = errors.New("report already resolved")
	ErrForbidden       = errors.New("moderator role required")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storageErr wraps a persistence failure. Sentinel errors that already carry
// meaning pass through untouched.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrValidation, ErrSelfReport, ErrDuplicateReport, ErrConfiguration,
		ErrReportNotFound, ErrScoreNotFound, ErrAlreadyResolved, ErrStorageUnavailable,
		ErrContentNotFound, ErrForbidden,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, ErrDuplicateReport)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

func configErr(what string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, what)
}
