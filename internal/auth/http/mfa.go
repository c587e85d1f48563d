package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/service"
	"github.com/luminara-labs/storefront-auth/pkg/httpx"
	"github.com/luminara-labs/storefront-auth/pkg/slogx"
)

// MFAHandler serves TOTP enrollment, confirmation, and disable.
type MFAHandler struct {
	MFAService *service.MFAService
}

type mfaEnrollResponse struct {
	Secret      string   `json:"secret"`
	OTPAuthURI  string   `json:"otpauth_uri"`
	QRCodePNG   string   `json:"qr_code_png"` // base64
	BackupCodes []string `json:"backup_codes"`
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

// HandleEnroll handles POST /v1/auth/mfa/totp/enroll. The returned backup
// codes are shown exactly once.
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := PrincipalFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_credentials", "")
		return
	}

	setup, err := h.MFAService.EnrollTOTP(ctx, p.Identity.ID)
	if err != nil {
		slogx.FromContext(ctx).Warn("mfa enroll failed", "user_id", p.Identity.ID, "err", err)
		writeDomainError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, mfaEnrollResponse{
		Secret:      setup.Secret,
		OTPAuthURI:  setup.OTPAuthURI,
		QRCodePNG:   base64.StdEncoding.EncodeToString(setup.QRCodePNG),
		BackupCodes: setup.BackupCodes,
	})
}

// HandleConfirm handles POST /v1/auth/mfa/totp/verify: the possession proof
// that flips the enrollment to enabled.
func (h *MFAHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := PrincipalFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_credentials", "")
		return
	}

	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	if err := h.MFAService.ConfirmTOTP(ctx, p.Identity.ID, req.Code, time.Now().UTC()); err != nil {
		writeDomainError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

// HandleDisable handles DELETE /v1/auth/mfa/totp. Requires a fresh valid
// code so a hijacked session cannot silently strip the second factor.
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := PrincipalFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_credentials", "")
		return
	}

	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	if err := h.MFAService.VerifyCode(ctx, p.Identity, req.Code, time.Now().UTC()); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.MFAService.Disable(ctx, p.Identity.ID); err != nil {
		slogx.FromContext(ctx).Error("mfa disable failed", "user_id", p.Identity.ID, "err", err)
		writeDomainError(w, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
