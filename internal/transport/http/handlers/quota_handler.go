package handlers

import (
	"errors"
	"net/http"

	"github.com/leorifa93/desires-backend/internal/domain/rules"
	accountsvc "github.com/leorifa93/desires-backend/internal/services/accounts"
	authsvc "github.com/leorifa93/desires-backend/internal/services/auth"
	"github.com/leorifa93/desires-backend/internal/transport/http/dto"
	httperrors "github.com/leorifa93/desires-backend/internal/transport/http/errors"
)

type QuotaHandler struct {
	accounts *accountsvc.Service
}

func NewQuotaHandler(accounts *accountsvc.Service) *QuotaHandler {
	return &QuotaHandler{accounts: accounts}
}

func (h *QuotaHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.accounts == nil {
		writeInternal(w, "QUOTA_SERVICE_UNAVAILABLE", "quota service is unavailable")
		return
	}

	quota, err := h.accounts.GetQuota(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, accountsvc.ErrAccountNotFound) {
			writeNotFound(w, "ACCOUNT_NOT_FOUND", "account not found")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load quota")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.QuotaResponse{
		AvailableLikes: quota.AvailableLikes,
		Tier:           int(quota.Tier),
		QuotaExempt:    rules.QuotaExempt(quota.Tier),
	})
}
