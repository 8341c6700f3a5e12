package documents

import (
	"invoice-backend/internal/shared/apperr"
)

func notFound(op, id string) error {
	return apperr.New(apperr.ErrNotFound, op, "document "+id+" not found")
}

func inProgress(op, id string) error {
	return apperr.New(apperr.ErrAlreadyInProgress, op, "document "+id+" is already being processed")
}

func notProcessing(op, id string) error {
	return apperr.New(apperr.ErrAlreadyInProgress, op, "document "+id+" is no longer held by this attempt")
}

func storeErr(op string, err error) error {
	return apperr.WrapError(apperr.ErrStore, op, err)
}
