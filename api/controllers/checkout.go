package controllers

import (
	"net/http"

	"github.com/storekart/storekart-backend/api/responses"
	checkoutsvc "github.com/storekart/storekart-backend/internal/checkout"
	pkgerrors "github.com/storekart/storekart-backend/pkg/errors"
	"github.com/storekart/storekart-backend/pkg/logger"
)

// Checkout converts the requester's open cart into a pending order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
