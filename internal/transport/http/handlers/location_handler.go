package handlers

import (
	"context"
	"errors"
	"net/http"

	pgrepo "github.com/leorifa93/desires-backend/internal/repo/postgres"
	authsvc "github.com/leorifa93/desires-backend/internal/services/auth"
	locationsvc "github.com/leorifa93/desires-backend/internal/services/locations"
	"github.com/leorifa93/desires-backend/internal/transport/http/dto"
	httperrors "github.com/leorifa93/desires-backend/internal/transport/http/errors"
)

type LocationUpdater interface {
	UpdateLocation(ctx context.Context, userID int64, lat, lon float64) (string, error)
}

type LocationHandler struct {
	locations LocationUpdater
}

func NewLocationHandler(locations LocationUpdater) *LocationHandler {
	return &LocationHandler{locations: locations}
}

func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.locations == nil {
		writeInternal(w, "LOCATION_SERVICE_UNAVAILABLE", "location service is unavailable")
		return
	}

	var req dto.LocationUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeBadRequest(w, "VALIDATION_ERROR", "lat and lon are required")
		return
	}

	hash, err := h.locations.UpdateLocation(r.Context(), identity.UserID, *req.Lat, *req.Lon)
	if err != nil {
		switch {
		case errors.Is(err, locationsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "coordinates out of range")
		case errors.Is(err, pgrepo.ErrProfileNotFound):
			writeNotFound(w, "PROFILE_NOT_FOUND", "profile not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to update location")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.LocationUpdateResponse{Geohash: hash})
}
