package handler

import (
	"errors"
	"net/http"

	"referral-service/pkg/response"
	"referral-service/pkg/xerrors"
)

// writeError maps the service error taxonomy onto HTTP statuses. Business
// rejections are 4xx; only retry exhaustion and unknown failures are 5xx.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.ErrInvalidInput):
		response.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, xerrors.ErrUserNotFound),
		errors.Is(err, xerrors.ErrTradeNotFound),
		errors.Is(err, xerrors.ErrNotFound):
		response.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, xerrors.ErrNotOwner):
		response.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, xerrors.ErrAlreadyReferred),
		errors.Is(err, xerrors.ErrSelfReferral),
		errors.Is(err, xerrors.ErrCircularReference),
		errors.Is(err, xerrors.ErrMaxDepthExceeded),
		errors.Is(err, xerrors.ErrCodeAlreadySet),
		errors.Is(err, xerrors.ErrAlreadyProcessed):
		response.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, xerrors.ErrTransactionFailed):
		// Retryable by the caller.
		response.Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		response.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
