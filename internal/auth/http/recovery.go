package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
	"github.com/luminara-labs/storefront-auth/internal/auth/service"
	"github.com/luminara-labs/storefront-auth/pkg/httpx"
	"github.com/luminara-labs/storefront-auth/pkg/slogx"
)

// RecoveryHandler handles POST /v1/auth/recovery. The response is uniform
// regardless of whether the email maps to an account; only the throttle is
// allowed to change what the caller sees.
type RecoveryHandler struct {
	AuthService *service.AuthService
}

type recoveryRequest struct {
	Email string `json:"email"`
}

func (h *RecoveryHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req recoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	if err := h.AuthService.RequestRecovery(ctx, req.Email); err != nil {
		var blocked *domain.RecoveryBlockedError
		if errors.As(err, &blocked) {
			writeDomainError(w, err)
			return
		}
		// Internal failures still answer uniformly; the request may simply
		// never arrive.
		slogx.FromContext(ctx).Error("recovery request failed", "err", err)
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
	})
}
