package services

import (
	"fmt"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
)

// DuplicateIdentityError is returned when an identity with the same
// (user, type, value) already exists. It matches common.ErrorConflict.
type DuplicateIdentityError struct {
	ExistingID string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("identity already exists: %s", e.ExistingID)
}

func (e *DuplicateIdentityError) Is(target error) bool {
	return target == common.ErrorConflict
}

// DuplicateAccountError is returned when another account with the same name
// and username already exists. It matches common.ErrorConflict.
type DuplicateAccountError struct {
	Existing *models.Account
}

func (e *DuplicateAccountError) Error() string {
	return fmt.Sprintf("account already exists: %s", e.Existing.ID)
}

func (e *DuplicateAccountError) Is(target error) bool {
	return target == common.ErrorConflict
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrorValidation, fmt.Sprintf(format, args...))
}
