package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leorifa93/desires-backend/internal/domain/enums"
	"github.com/leorifa93/desires-backend/internal/domain/model"
	"github.com/leorifa93/desires-backend/internal/geo"
	pgrepo "github.com/leorifa93/desires-backend/internal/repo/postgres"
	authsvc "github.com/leorifa93/desires-backend/internal/services/auth"
	decksvc "github.com/leorifa93/desires-backend/internal/services/deck"
	swipesvc "github.com/leorifa93/desires-backend/internal/services/swipes"
	"github.com/leorifa93/desires-backend/internal/transport/http/dto"
	httperrors "github.com/leorifa93/desires-backend/internal/transport/http/errors"
)

const kmPerMile = 1.609344

type ProfileSource interface {
	GetByID(ctx context.Context, userID int64) (pgrepo.ProfileRecord, error)
}

type PhotoPresigner interface {
	PresignPhotoURL(ctx context.Context, key string) (string, error)
}

type DeckHandler struct {
	manager   *decksvc.Manager
	profiles  ProfileSource
	presigner PhotoPresigner
	logger    *zap.Logger
}

func NewDeckHandler(manager *decksvc.Manager, profiles ProfileSource, logger *zap.Logger) *DeckHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeckHandler{manager: manager, profiles: profiles, logger: logger}
}

// AttachPresigner enables photo URLs in snapshots. Without one the payload
// carries keysless entries and the client falls back to its placeholder.
func (h *DeckHandler) AttachPresigner(presigner PhotoPresigner) {
	h.presigner = presigner
}

func (h *DeckHandler) Start(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.manager == nil {
		writeInternal(w, "DECK_SERVICE_UNAVAILABLE", "deck service is unavailable")
		return
	}

	session, err := h.manager.StartSession(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to start discovery session")
		return
	}

	entries, ready := session.Snapshot()
	httperrors.Write(w, http.StatusCreated, dto.DeckSessionResponse{
		SessionID:  session.ID,
		Ready:      ready,
		LoadFailed: session.LoadFailed(),
		Entries:    h.mapEntries(r, identity.UserID, entries),
	})
}

func (h *DeckHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	session, err := h.manager.Session(chi.URLParam(r, "sessionID"), identity.UserID)
	if err != nil {
		writeNotFound(w, "SESSION_NOT_FOUND", "discovery session not found")
		return
	}

	entries, ready := session.Snapshot()
	httperrors.Write(w, http.StatusOK, dto.DeckSessionResponse{
		SessionID:  session.ID,
		Ready:      ready,
		LoadFailed: session.LoadFailed(),
		Entries:    h.mapEntries(r, identity.UserID, entries),
	})
}

// Refill lets the client retry a deck whose loading gave up, and request
// more cards for an empty deck. Sessions mid-fill or still holding unused
// entries treat it as a no-op.
func (h *DeckHandler) Refill(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	session, err := h.manager.Session(chi.URLParam(r, "sessionID"), identity.UserID)
	if err != nil {
		writeNotFound(w, "SESSION_NOT_FOUND", "discovery session not found")
		return
	}

	if err := session.Refill(); err != nil {
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "SESSION_CLOSED",
			Message: "discovery session is closed",
		})
		return
	}

	httperrors.Write(w, http.StatusAccepted, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

func (h *DeckHandler) Swipe(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	session, err := h.manager.Session(chi.URLParam(r, "sessionID"), identity.UserID)
	if err != nil {
		writeNotFound(w, "SESSION_NOT_FOUND", "discovery session not found")
		return
	}

	var req dto.SwipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.TargetID <= 0 || strings.TrimSpace(req.Decision) == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id and decision are required")
		return
	}

	err = session.Swipe(r.Context(), req.TargetID, enums.Decision(strings.ToUpper(req.Decision)))
	if err != nil {
		h.writeSwipeError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SwipeResponse{OK: true})
}

func (h *DeckHandler) Close(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	if err := h.manager.CloseSession(chi.URLParam(r, "sessionID"), identity.UserID); err != nil {
		writeNotFound(w, "SESSION_NOT_FOUND", "discovery session not found")
		return
	}

	httperrors.Write(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

func (h *DeckHandler) writeSwipeError(w http.ResponseWriter, err error) {
	var tooFast *swipesvc.TooFastError
	var writeErr *swipesvc.LedgerWriteError

	switch {
	case errors.Is(err, decksvc.ErrSessionClosed):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "SESSION_CLOSED",
			Message: "discovery session is closed",
		})
	case errors.Is(err, decksvc.ErrUnknownTarget):
		writeBadRequest(w, "VALIDATION_ERROR", "target is not in this deck")
	case errors.Is(err, swipesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid swipe request")
	case errors.Is(err, swipesvc.ErrQuotaExceeded):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.APIError{
			Code:    "QUOTA_EXCEEDED",
			Message: "like quota exhausted, upgrade or wait for replenishment",
		})
	case errors.As(err, &tooFast):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "TOO_FAST",
			Message:       "too many like actions, slow down",
			RetryAfterSec: tooFast.RetryAfterSec,
		})
	case errors.As(err, &writeErr):
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code:    "LEDGER_WRITE_FAILED",
			Message: "decision accepted but not yet recorded, retry",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to process swipe")
	}
}

func (h *DeckHandler) mapEntries(r *http.Request, requesterID int64, entries []model.DeckEntry) []dto.DeckEntryPayload {
	unit := distanceUnitFromRequest(r)

	var origin *model.Location
	if h.profiles != nil {
		if rec, err := h.profiles.GetByID(r.Context(), requesterID); err == nil && rec.Geohash != "" {
			origin = &model.Location{Lat: rec.Lat, Lon: rec.Lon}
		}
	}

	out := make([]dto.DeckEntryPayload, 0, len(entries))
	for _, e := range entries {
		payload := dto.DeckEntryPayload{
			UserID:      e.Profile.UserID,
			DisplayName: e.Profile.DisplayName,
			Used:        e.Used,
		}

		if origin != nil && e.Profile.Location.Geohash != "" {
			d := geo.HaversineKM(origin.Lat, origin.Lon, e.Profile.Location.Lat, e.Profile.Location.Lon)
			if unit == "mi" {
				d /= kmPerMile
			}
			payload.Distance = &d
			payload.DistanceUnit = unit
		}

		if h.presigner != nil && e.Profile.PhotoKey != "" {
			url, err := h.presigner.PresignPhotoURL(r.Context(), e.Profile.PhotoKey)
			if err != nil {
				h.logger.Warn("photo presign failed",
					zap.Int64("user_id", e.Profile.UserID),
					zap.Error(err),
				)
			} else {
				payload.PhotoURL = url
			}
		}

		out = append(out, payload)
	}

	return out
}

func distanceUnitFromRequest(r *http.Request) string {
	if strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Distance-Unit")), "mi") {
		return "mi"
	}
	return "km"
}
