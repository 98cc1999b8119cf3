package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/storekart/storekart-backend/api/middleware"
	"github.com/storekart/storekart-backend/pkg/enums"
	pkgerrors "github.com/storekart/storekart-backend/pkg/errors"
)

func requesterID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user context")
	}
	return userID, nil
}

func requesterIsAdmin(r *http.Request) bool {
	return middleware.RoleFromContext(r.Context()) == string(enums.UserRoleAdmin)
}
