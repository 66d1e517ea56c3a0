package service

import (
	"errors"
	"fmt"

	"masterdata/internal/masterdata/models"
	dErrors "masterdata/pkg/domain-errors"
	"masterdata/pkg/platform/sentinel"
)

func validationErr(kind error, format string, args ...any) error {
	return dErrors.Wrap(kind, dErrors.CodeValidation, fmt.Sprintf(format, args...))
}

func notFoundErr(kind error, format string, args ...any) error {
	return dErrors.Wrap(kind, dErrors.CodeNotFound, fmt.Sprintf(format, args...))
}

// storageErr translates store failures. Coded errors pass through; conflicts
// that survived retries and everything else become ErrStorageFailure.
func storageErr(err error, action string) error {
	if err == nil {
		return nil
	}
	if dErrors.IsCoded(err) {
		return err
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(errors.Join(models.ErrStorageFailure, err), dErrors.CodeConflict, action+": concurrent update")
	}
	return dErrors.Wrap(errors.Join(models.ErrStorageFailure, err), dErrors.CodeInternal, action)
}
